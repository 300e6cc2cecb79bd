// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/pathwise/pathwise/internal/config"
	"github.com/pathwise/pathwise/internal/logging"
	"github.com/pathwise/pathwise/internal/metrics"
)

// Middleware builds the shared middleware stack from server configuration.
type Middleware struct {
	cfg  *config.ServerConfig
	cors func(http.Handler) http.Handler
}

// NewMiddleware creates the middleware factory.
func NewMiddleware(cfg *config.ServerConfig) *Middleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	})
	return &Middleware{cfg: cfg, cors: corsHandler}
}

// CORS returns the CORS middleware built from the configured origins.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the default per-IP rate limiter.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	return m.rateLimit(m.cfg.RateLimitReqs, m.cfg.RateLimitWindow)
}

// RateLimitWrite returns a tighter limiter for write endpoints. Event
// ingestion is excluded; graded submissions arrive in bursts.
func (m *Middleware) RateLimitWrite() func(http.Handler) http.Handler {
	return m.rateLimit(30, time.Minute)
}

// RateLimitHealth returns a permissive limiter for health endpoints so
// monitoring probes are never starved.
func (m *Middleware) RateLimitHealth() func(http.Handler) http.Handler {
	return m.rateLimit(1000, time.Minute)
}

func (m *Middleware) rateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if m.cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window, httprate.WithKeyFuncs(httprate.KeyByIP))
}

// RequestLogging logs one line per request with method, route pattern,
// status and duration, and records the Prometheus request metrics. The chi
// route pattern is used as the endpoint label so path parameters do not
// explode metric cardinality.
func RequestLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			endpoint := chi.RouteContext(r.Context()).RoutePattern()
			if endpoint == "" {
				endpoint = r.URL.Path
			}
			duration := time.Since(start)

			metrics.APIRequestsTotal.WithLabelValues(
				r.Method, endpoint, strconv.Itoa(ww.Status())).Inc()
			metrics.APIRequestDuration.WithLabelValues(
				r.Method, endpoint).Observe(duration.Seconds())

			logging.Debug().
				Str("method", r.Method).
				Str("endpoint", endpoint).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Int("status", ww.Status()).
				Dur("duration", duration).
				Msg("Request handled")
		})
	}
}

// SecurityHeaders adds the standard API response security headers.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	}
}
