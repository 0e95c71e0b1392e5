// middleware/rate_limiter.go
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/rmhse/rmhse_backend/models"
)

type endpointLimit struct {
	limit rate.Limit
	burst int
}

// RateLimiter keeps one token bucket per client IP and route. A client that
// exhausts its bucket is blocked for blockDuration.
type RateLimiter struct {
	limiters       map[string]*rate.Limiter
	blockedIPs     map[string]time.Time
	mu             sync.Mutex
	defaultLimit   endpointLimit
	blockDuration  time.Duration
	endpointLimits map[string]endpointLimit
	now            func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters:      make(map[string]*rate.Limiter),
		blockedIPs:    make(map[string]time.Time),
		defaultLimit:  endpointLimit{limit: rate.Every(100 * time.Millisecond), burst: 20}, // 10 requests per second
		blockDuration: 5 * time.Minute,
		endpointLimits: map[string]endpointLimit{
			// brute force targets
			"/api/auth/login":  {limit: rate.Every(2 * time.Second), burst: 5},
			"/api/auth/signup": {limit: rate.Every(500 * time.Millisecond), burst: 5},
			// each activation triggers a full distribution
			"/api/admin/users/:id/activate": {limit: rate.Every(200 * time.Millisecond), burst: 10},
			"/api/users/me/upgrade":         {limit: rate.Every(time.Second), burst: 3},
		},
		now: time.Now,
	}
}

// SetEndpointLimit overrides the bucket used for one route path.
func (r *RateLimiter) SetEndpointLimit(path string, limit rate.Limit, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpointLimits[path] = endpointLimit{limit: limit, burst: burst}
}

// Cleanup drops expired blocks until done is closed.
func (r *RateLimiter) Cleanup(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.mu.Lock()
			now := r.now()
			for ip, blockUntil := range r.blockedIPs {
				if now.After(blockUntil) {
					delete(r.blockedIPs, ip)
				}
			}
			r.mu.Unlock()
		}
	}
}

func (r *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			path := c.Path()

			r.mu.Lock()
			if blockUntil, blocked := r.blockedIPs[ip]; blocked {
				if r.now().Before(blockUntil) {
					r.mu.Unlock()
					return tooManyRequests(c, blockUntil)
				}
				delete(r.blockedIPs, ip)
			}
			limiter := r.limiterFor(ip, path)
			r.mu.Unlock()

			if !limiter.Allow() {
				blockUntil := r.now().Add(r.blockDuration)
				r.mu.Lock()
				r.blockedIPs[ip] = blockUntil
				delete(r.limiters, ip+"|"+path)
				r.mu.Unlock()
				return tooManyRequests(c, blockUntil)
			}
			return next(c)
		}
	}
}

// limiterFor must be called with r.mu held.
func (r *RateLimiter) limiterFor(ip, path string) *rate.Limiter {
	key := ip + "|" + path
	limiter, exists := r.limiters[key]
	if !exists {
		cfg, ok := r.endpointLimits[path]
		if !ok {
			cfg = r.defaultLimit
		}
		limiter = rate.NewLimiter(cfg.limit, cfg.burst)
		r.limiters[key] = limiter
	}
	return limiter
}

func tooManyRequests(c echo.Context, retryAfter time.Time) error {
	c.Response().Header().Set("Retry-After", retryAfter.UTC().Format(http.TimeFormat))
	return c.JSON(http.StatusTooManyRequests, models.Response{
		Status:  http.StatusTooManyRequests,
		Message: "Too many requests",
	})
}
