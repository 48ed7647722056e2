package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/viralis/accountd/pkg/client"
)

// EndpointLimit defines the cap for a specific "METHOD /path" endpoint.
type EndpointLimit struct {
	Capacity   int
	RefillRate float64
}

// Config holds rate limiting configuration
type Config struct {
	// Per-IP limit applied to every request
	PerIPEnabled    bool
	PerIPCapacity   int
	PerIPRefillRate float64

	// Endpoint-specific limits keyed by "METHOD /path". For authenticated
	// requests the bucket key is the subject id, so one user cannot
	// mail-bomb an address from many machines; otherwise the client IP.
	EndpointLimits map[string]EndpointLimit

	BucketTTL time.Duration
}

// DefaultConfig allows 100 requests per minute per IP and leaves endpoint
// limits to the caller.
func DefaultConfig() *Config {
	return &Config{
		PerIPEnabled:    true,
		PerIPCapacity:   100,
		PerIPRefillRate: 100.0 / 60.0,
		EndpointLimits:  make(map[string]EndpointLimit),
		BucketTTL:       1 * time.Hour,
	}
}

// Middleware holds the rate limiting state
type Middleware struct {
	config           *Config
	ipLimiter        *RateLimiter
	endpointLimiters map[string]*RateLimiter
}

// NewMiddleware creates a new rate limiting middleware
func NewMiddleware(config *Config) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Middleware{
		config:           config,
		endpointLimiters: make(map[string]*RateLimiter),
	}

	if config.PerIPEnabled {
		m.ipLimiter = NewRateLimiter(config.PerIPCapacity, config.PerIPRefillRate, config.BucketTTL)
	}

	for endpoint, limit := range config.EndpointLimits {
		m.endpointLimiters[endpoint] = NewRateLimiter(limit.Capacity, limit.RefillRate, config.BucketTTL)
	}

	return m
}

// PerIPHandler enforces the global per-IP limit. Mount it on the root
// router so it covers every endpoint, public ones included.
func (m *Middleware) PerIPHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		if m.ipLimiter != nil && ip != "" && !m.ipLimiter.Allow(ip) {
			m.rateLimitExceeded(w, r, "ip")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// EndpointHandler enforces the per-endpoint limits. Mount it after the
// auth middleware: the bucket key is the authenticated subject id when
// one is present, so the lookup only sees an AuthUser if auth ran first.
func (m *Middleware) EndpointHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpointKey := r.Method + " " + r.URL.Path
		if limiter, exists := m.endpointLimiters[endpointKey]; exists {
			key := clientIP(r)
			if authUser, ok := client.FromContext(r.Context()); ok {
				key = authUser.UserId
			}
			if !limiter.Allow(key + ":" + endpointKey) {
				m.rateLimitExceeded(w, r, "endpoint")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType string) {
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", clientIP(r),
		"path", r.URL.Path,
		"method", r.Method,
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "60")
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"error":"rate_limit_exceeded","message":"Too many requests. Please try again later.","type":"%s"}`, limitType)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
