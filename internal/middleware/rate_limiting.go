package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/2beens/fitsync/internal/telemetry/metrics"
	"github.com/2beens/fitsync/pkg"

	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

// RateWindow is the admission state of one caller identity within the
// current fixed window.
type RateWindow struct {
	Count     int       `json:"count"`
	ResetTime time.Time `json:"resetTime"`
}

// FixedWindowLimiter admits up to maxRequests per window per caller
// identity. Windows are fixed, not rolling: the counter resets fully
// when a window expires, so bursts around window boundaries can pass.
// State lives in a go-cache store whose janitor sweeps expired windows
// so the identity map stays bounded.
type FixedWindowLimiter struct {
	window      time.Duration
	maxRequests int
	windows     *gocache.Cache

	mux sync.Mutex
	// ability to inject the clock for unit testing
	NowFunc func() time.Time
}

func NewFixedWindowLimiter(window time.Duration, maxRequests int) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		window:      window,
		maxRequests: maxRequests,
		windows:     gocache.New(window, 2*window),
		NowFunc:     time.Now,
	}
}

// Allow reports whether the identity may pass, together with the
// window state after the decision.
func (l *FixedWindowLimiter) Allow(identity string) (bool, RateWindow) {
	l.mux.Lock()
	defer l.mux.Unlock()

	now := l.NowFunc()

	windowVal, found := l.windows.Get(identity)
	if !found {
		window := RateWindow{Count: 1, ResetTime: now.Add(l.window)}
		l.windows.Set(identity, window, l.window)
		return true, window
	}

	window := windowVal.(RateWindow)
	if now.After(window.ResetTime) {
		window = RateWindow{Count: 1, ResetTime: now.Add(l.window)}
		l.windows.Set(identity, window, l.window)
		return true, window
	}

	if window.Count >= l.maxRequests {
		return false, window
	}

	window.Count++
	l.windows.Set(identity, window, window.ResetTime.Sub(now))
	return true, window
}

// RateLimit guards every entry point, keyed by caller identity (IP or
// forwarded-for).
func RateLimit(limiter *FixedWindowLimiter, metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := pkg.ReadUserIP(r)
			if err != nil {
				log.Errorf("rate limit, read caller identity: %s", err)
				identity = r.RemoteAddr
			}

			allowed, window := limiter.Allow(identity)
			if !allowed {
				if metricsManager != nil {
					metricsManager.CounterRateLimitedRequests.Inc()
				}
				w.Header().Set("Retry-After", window.ResetTime.UTC().Format(http.TimeFormat))
				http.Error(w, "too many requests, try later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
