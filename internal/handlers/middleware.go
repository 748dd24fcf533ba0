package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"kidpoints/internal/security"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	logger  *zap.Logger
	limiter *security.RateLimiter
}

// NewMiddleware creates a new middleware instance; a nil limiter disables rate limiting
func NewMiddleware(logger *zap.Logger, limiter *security.RateLimiter) *Middleware {
	return &Middleware{logger: logger, limiter: limiter}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging middleware logs HTTP requests
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// RateLimit rejects clients that exceed the configured request rate
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	if m.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := security.GetClientIP(r)
		if !m.limiter.Allow(ip) {
			m.logger.Warn("Rate limit exceeded", zap.String("ip", ip), zap.String("path", r.URL.Path))
			w.Header().Set("Retry-After", "60")
			respondJSON(w, http.StatusTooManyRequests, errorResponse{Error: ErrTooManyRequests})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Pin moves the X-Pin header into the request context for gated operations
func (m *Middleware) Pin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pin := r.Header.Get(PinHeader); pin != "" {
			r = r.WithContext(security.WithPin(r.Context(), pin))
		}
		next.ServeHTTP(w, r)
	})
}
