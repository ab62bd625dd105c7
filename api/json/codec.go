// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package json

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
)

// NewCodec returns a JSON-RPC 2.0 codec that accepts lower camel case method
// names, so "bridge.getTransfer" dispatches to Service.GetTransfer.
func NewCodec() rpc.Codec {
	return lowercase{json2.NewCodec()}
}

type lowercase struct{ *json2.Codec }

func (lc lowercase) NewRequest(r *http.Request) rpc.CodecRequest {
	return &request{CodecRequest: lc.Codec.NewRequest(r).(*json2.CodecRequest)}
}

type request struct{ *json2.CodecRequest }

func (r *request) Method() (string, error) {
	method, err := r.CodecRequest.Method()
	if err != nil {
		return method, err
	}
	service, function, ok := strings.Cut(method, ".")
	if !ok {
		return method, nil
	}
	first, size := utf8.DecodeRuneInString(function)
	if first == utf8.RuneError {
		return method, nil
	}
	return fmt.Sprintf("%s.%c%s", service, unicode.ToUpper(first), function[size:]), nil
}
