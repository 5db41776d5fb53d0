package gateway

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/openscribe/scribe-backend/internal/apikey"
	"github.com/openscribe/scribe-backend/internal/shared"
	"golang.org/x/time/rate"
)

// APIKeyAuth rejects requests without a valid key. When the authenticator has
// no key store configured the middleware passes everything through.
func APIKeyAuth(auth *Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !auth.Enabled() {
				return next(c)
			}

			secret := extractAPIKey(c.Request())
			if secret == "" {
				return shared.Unauthorized(shared.CodeValidation, "missing api key")
			}

			key, err := auth.ValidateAPIKey(c.Request().Context(), secret)
			if err != nil {
				return shared.Unauthorized(shared.CodeValidation, "invalid api key")
			}

			c.Set("api_key", key)
			return next(c)
		}
	}
}

func GetAPIKey(c echo.Context) *apikey.APIKey {
	if key, ok := c.Get("api_key").(*apikey.APIKey); ok {
		return key
	}
	return nil
}

func extractAPIKey(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	return r.URL.Query().Get("api_key")
}

type RateLimiterConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		CleanupInterval:   5 * time.Minute,
	}
}

type rateLimiterStore struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	config   RateLimiterConfig
}

func newRateLimiterStore(cfg RateLimiterConfig) *rateLimiterStore {
	store := &rateLimiterStore{
		limiters: make(map[string]*rate.Limiter),
		config:   cfg,
	}
	go store.cleanupLoop()
	return store
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.RLock()
	limiter, exists := s.limiters[key]
	s.mu.RUnlock()

	if exists {
		return limiter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if limiter, exists = s.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.Burst)
	s.limiters[key] = limiter
	return limiter
}

func (s *rateLimiterStore) cleanupLoop() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		for key := range s.limiters {
			delete(s.limiters, key)
		}
		s.mu.Unlock()
	}
}

// RateLimiter throttles by API key when one is attached, falling back to the
// caller's IP for open deployments.
func RateLimiter(cfg RateLimiterConfig) echo.MiddlewareFunc {
	store := newRateLimiterStore(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if apiKey := GetAPIKey(c); apiKey != nil {
				key = apiKey.ID
			}

			limiter := store.getLimiter(key)
			if !limiter.Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests,
					&shared.StructuredError{Code: shared.CodeAPI, Message: "too many requests", Recoverable: true})
			}

			return next(c)
		}
	}
}
