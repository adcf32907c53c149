// middleware.go - Request id, access log and rate limit middleware.

package api

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs the method, uri, duration and response code of each request.
func loggingMiddleware(logger zerolog.Logger) mux.MiddlewareFunc {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			respWriter := newResponseWriter(w)
			handler.ServeHTTP(respWriter, req)

			event := logger.Info()
			if respWriter.statusCode >= http.StatusBadRequest {
				event = logger.Warn()
			}
			event.Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("client_ip", req.RemoteAddr).
				Str("request_id", req.Header.Get(RequestIDHeader)).
				Dur("duration", time.Since(start)).
				Int("response_code", respWriter.statusCode).
				Msg("api")
		})
	}
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(s.rateKey(r)) {
			writeError(w, codeRateLimited, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateKey buckets authenticated requests by principal and the rest by remote
// host, so that made-up credentials cannot open fresh buckets.
func (s *Server) rateKey(r *http.Request) string {
	if p, ok := s.authenticate(r); ok {
		if p.admin {
			return "admin"
		}
		return "account:" + p.account.Hex()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// responseWriter captures the response code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
