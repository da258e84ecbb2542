package middleware

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/goFleet/internal/rate"
	"go.uber.org/zap"
)

// MessageRateLimited is the 429 body message.
const MessageRateLimited = "Too many requests, please try again later"

// RateLimitConfig sizes the fixed window. Scope names the route group in keys,
// logs and audit events.
type RateLimitConfig struct {
	Scope  string
	Limit  int
	Window time.Duration
}

// RateLimitRecorder is notified of every rejected request.
// *goFleet.Engine implements it.
type RateLimitRecorder interface {
	RecordRateLimit(ctx context.Context, scope string)
}

// RateLimit allows cfg.Limit requests per client IP per cfg.Window. When the
// limiter store fails the request passes and a warning is logged.
func RateLimit(limiter *rate.Limiter, cfg RateLimitConfig, recorder RateLimitRecorder, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "ratelimit"), zap.String("scope", cfg.Scope))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			d, err := limiter.Allow(r.Context(), cfg.Scope+":"+ip, cfg.Limit, cfg.Window)
			switch {
			case err == nil:
			case errors.Is(err, rate.ErrRateLimited):
				if recorder != nil {
					recorder.RecordRateLimit(r.Context(), cfg.Scope)
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryIn.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, MessageRateLimited)
				return
			default:
				logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
			}

			if cfg.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			next.ServeHTTP(w, r)
		})
	}
}
