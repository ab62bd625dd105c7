// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"net"
	"net/http"
	"strings"

	"github.com/luxfi/math/set"
)

const wildcard = "*"

// filterInvalidHosts rejects requests whose Host header names a host outside
// [allowed]. Requests addressed to a literal IP are always served.
func filterInvalidHosts(
	handler http.Handler,
	allowed []string,
) http.Handler {
	s := set.Set[string]{}
	for _, host := range allowed {
		if host == wildcard {
			return handler
		}
		s.Add(strings.ToLower(host))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Host == "" {
			handler.ServeHTTP(w, r)
			return
		}

		host, _, err := net.SplitHostPort(r.Host)
		if err != nil {
			// the Host header has no port
			host = r.Host
		}
		if net.ParseIP(host) != nil {
			handler.ServeHTTP(w, r)
			return
		}

		if !s.Contains(strings.ToLower(host)) {
			http.Error(w, "invalid host specified", http.StatusForbidden)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
