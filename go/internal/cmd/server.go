package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/mockdrive/go/internal/assessment/gateway"
	"github.com/mcdev12/mockdrive/go/internal/assessment/service"
	"github.com/mcdev12/mockdrive/go/internal/config"
)

func setupServer(cfg *config.Config, services *Services, dbs *Databases) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	registerServices(mux, services)
	setupHealthCheck(mux, dbs)
	mux.Handle("/metrics", promhttp.Handler())

	handler := c.Handler(mux)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func registerServices(mux *http.ServeMux, services *Services) {
	sessionServicePath, sessionServiceHandler := service.NewSessionServiceHandler(services.Session)
	mux.Handle(sessionServicePath, sessionServiceHandler)

	gateway.NewWebSocketHandler(services.Connections).RegisterRoutes(mux)
}

func setupHealthCheck(mux *http.ServeMux, dbs *Databases) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := dbs.Postgres.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
