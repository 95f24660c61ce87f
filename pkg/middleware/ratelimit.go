package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/Suhaibinator/SResolve/pkg/resolver"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Unique identifier for this rate limit bucket
	// If multiple chains share the same BucketName, they share the same rate limit
	BucketName string

	// Maximum number of resolutions allowed in the time window
	Limit int

	// Time window for the rate limit (e.g., 1 minute, 1 hour). Defaults to 1 second.
	Window time.Duration

	// KeyFunc picks the rate limit key from the resolver context.
	// If nil, the client IP is used, falling back to a single shared key.
	KeyFunc func(resolver.Valuer) string

	// Smooth paces resolutions evenly across the window instead of rejecting
	// those over the limit.
	Smooth bool

	// Limiter overrides the limiter implementation. Defaults to a new UberRateLimiter.
	Limiter RateLimiter

	Logger *zap.Logger
}

// RateLimiter defines the interface for rate limiting algorithms
type RateLimiter interface {
	// Allow checks if a resolution is allowed for key.
	// It also returns the number of remaining resolutions and the time until reset.
	Allow(key string, limit int, window time.Duration) (bool, int, time.Duration)

	// Take blocks until the next resolution for key may proceed and returns that time.
	Take(key string, limit int, window time.Duration) time.Time
}

// fixedWindow is the counter state for one key.
type fixedWindow struct {
	start time.Time
	count int
}

// UberRateLimiter implements RateLimiter. Allow uses a fixed-window counter and Take
// uses Uber's leaky-bucket ratelimit library.
type UberRateLimiter struct {
	limiters sync.Map // map[string]ratelimit.Limiter
	mu       sync.Mutex
	windows  map[string]*fixedWindow
	now      func() time.Time
}

// NewUberRateLimiter creates a new rate limiter
func NewUberRateLimiter() *UberRateLimiter {
	return &UberRateLimiter{
		windows: make(map[string]*fixedWindow),
		now:     time.Now,
	}
}

func normalize(limit int, window time.Duration) (int, time.Duration) {
	// Special case for zero limit (treat as 1)
	if limit <= 0 {
		limit = 1
	}
	// Handle zero window (default to 1 second)
	if window <= 0 {
		window = time.Second
	}
	return limit, window
}

// getLimiter gets or creates a leaky-bucket limiter for the given key and rate
func (u *UberRateLimiter) getLimiter(key string, limit int, window time.Duration) ratelimit.Limiter {
	bucket := key + ":" + strconv.Itoa(limit) + "/" + window.String()
	if limiter, ok := u.limiters.Load(bucket); ok {
		return limiter.(ratelimit.Limiter)
	}

	limiter, _ := u.limiters.LoadOrStore(bucket, ratelimit.New(limit, ratelimit.Per(window)))
	return limiter.(ratelimit.Limiter)
}

// Allow checks if a resolution is allowed based on the key and limit
func (u *UberRateLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Duration) {
	limit, window = normalize(limit, window)

	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	w, ok := u.windows[key]
	if !ok || now.Sub(w.start) >= window {
		// Start a new window with this resolution
		u.windows[key] = &fixedWindow{start: now, count: 1}
		return true, limit - 1, window
	}

	reset := window - now.Sub(w.start)
	if w.count >= limit {
		return false, 0, reset
	}

	w.count++
	return true, limit - w.count, reset
}

// Take blocks until the leaky bucket for key admits another resolution
func (u *UberRateLimiter) Take(key string, limit int, window time.Duration) time.Time {
	limit, window = normalize(limit, window)
	return u.getLimiter(key, limit, window).Take()
}

// defaultRateLimitKey uses the client IP, or a shared key when none is known.
func defaultRateLimitKey(v resolver.Valuer) string {
	if ip := ClientIP(v); ip != "" {
		return ip
	}
	return "global"
}

// RateLimit is a middleware that limits resolutions per key.
// Over the limit the chain is cut short with ErrRateLimited, unless Smooth is set.
func RateLimit[T, P any](config RateLimitConfig) resolver.Middleware[T, P] {
	limiter := config.Limiter
	if limiter == nil {
		limiter = NewUberRateLimiter()
	}
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = defaultRateLimitKey
	}
	logger := loggerOrNop(config.Logger)

	return func(_ P, ctx resolver.Context[T]) (T, error) {
		key := config.BucketName + ":" + keyFunc(ctx)

		if config.Smooth {
			limiter.Take(key, config.Limit, config.Window)
			return ctx.Next()
		}

		allowed, remaining, reset := limiter.Allow(key, config.Limit, config.Window)
		if !allowed {
			logger.Warn("Rate limit exceeded",
				zap.String("bucket", config.BucketName),
				zap.String("key", key),
				zap.Int("remaining", remaining),
				zap.Duration("reset", reset),
				zap.String("trace_id", TraceID(ctx)),
			)
			var zero T
			return zero, ErrRateLimited
		}

		return ctx.Next()
	}
}
