// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/bridge/coordinator"
)

const (
	bearerPrefix = "Bearer "
	tokenIssuer  = "bridged"
)

var (
	errEmptySecret    = errors.New("token secret must not be empty")
	errInvalidSubject = errors.New("token subject is not an address")
	errMalformedAuth  = errors.New("authorization header must be a bearer token")
)

type callerKey struct{}

// Authenticator issues and checks the HS256 tokens that identify callers.
// The subject of a token is the caller's address.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret []byte) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, errEmptySecret
	}
	return &Authenticator{secret: secret}, nil
}

// NewToken returns a token for [addr] valid from [now] for [ttl].
func (a *Authenticator) NewToken(addr common.Address, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   addr.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates [token] and returns the caller it names.
func (a *Authenticator) Parse(token string) (common.Address, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(*jwt.Token) (interface{}, error) {
			return a.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(claims.Subject) {
		return common.Address{}, fmt.Errorf("%w: %q", errInvalidSubject, claims.Subject)
	}
	return common.HexToAddress(claims.Subject), nil
}

// Wrap attaches the caller named by the request's bearer token to the request
// context. Requests without a token pass through anonymously; requests with a
// bad token are rejected.
func (a *Authenticator) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(header, bearerPrefix)
		if !ok {
			http.Error(w, errMalformedAuth.Error(), http.StatusUnauthorized)
			return
		}
		caller, err := a.Parse(strings.TrimSpace(token))
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

// callerFrom returns the authenticated caller of [r].
func callerFrom(r *http.Request) (common.Address, error) {
	caller, ok := r.Context().Value(callerKey{}).(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: request is not authenticated", coordinator.ErrUnauthorized)
	}
	return caller, nil
}
