// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package server hosts the bridge HTTP endpoints under /ext.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	baseURL              = "/ext"
	maxConcurrentStreams = 64
)

type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"readTimeout"`
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout"`
	WriteTimeout      time.Duration `json:"writeTimeout"`
	IdleTimeout       time.Duration `json:"idleTimeout"`
}

type Config struct {
	HTTPConfig
	AllowedOrigins  []string      `json:"allowedOrigins"`
	AllowedHosts    []string      `json:"allowedHosts"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
}

// Server maintains the HTTP router. Routes must be added before Dispatch.
type Server struct {
	// log this server writes to
	log log.Logger

	shutdownTimeout time.Duration

	metrics *serverMetrics

	// Maps endpoints to handlers
	router *mux.Router

	handler http.Handler
	srv     *http.Server

	// Listener used to serve traffic
	listener net.Listener
}

// New returns an instance of a Server.
func New(
	log log.Logger,
	listener net.Listener,
	config Config,
	registerer prometheus.Registerer,
) (*Server, error) {
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown endpoint", http.StatusNotFound)
	})
	handler := wrapHandler(router, config.AllowedOrigins, config.AllowedHosts)

	httpServer := &http.Server{
		Handler: h2c.NewHandler(
			handler,
			&http2.Server{
				MaxConcurrentStreams: maxConcurrentStreams,
			}),
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	log.Info("API created with allowed origins: " + strings.Join(config.AllowedOrigins, ","))

	return &Server{
		log:             log,
		shutdownTimeout: config.ShutdownTimeout,
		metrics:         m,
		router:          router,
		handler:         handler,
		srv:             httpServer,
		listener:        listener,
	}, nil
}

// AddRoute serves [handler] at /ext/[endpoint].
func (s *Server) AddRoute(handler http.Handler, endpoint string) error {
	endpoint = strings.Trim(endpoint, "/")
	if endpoint == "" {
		return fmt.Errorf("invalid endpoint %q", endpoint)
	}
	url := fmt.Sprintf("%s/%s", baseURL, endpoint)
	s.log.Info("adding route",
		log.String("url", url),
	)
	return s.router.Handle(url, s.metrics.wrapHandler(endpoint, handler)).GetError()
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Dispatch starts the API server and blocks until it stops.
func (s *Server) Dispatch() error {
	s.log.Info("HTTP API server listening",
		log.String("address", s.listener.Addr().String()),
	)
	err := s.srv.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	err := s.srv.Shutdown(ctx)
	cancel()

	// If shutdown times out, make sure the server is still shutdown.
	_ = s.srv.Close()
	return err
}

func wrapHandler(
	handler http.Handler,
	allowedOrigins []string,
	allowedHosts []string,
) http.Handler {
	h := filterInvalidHosts(handler, allowedHosts)
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(h)
}
