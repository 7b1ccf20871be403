package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ieraasyl/DispenserClient/pkg/utils"
	"github.com/rs/zerolog/log"
)

// RateCounter counts requests in a fixed window. database.RedisDB
// implements it.
type RateCounter interface {
	IncrementRateLimit(ctx context.Context, ip, endpoint string, window time.Duration) (int64, error)
}

// RateLimiter caps requests per client address and endpoint.
type RateLimiter struct {
	counter RateCounter
	limit   int
	window  time.Duration
}

// NewRateLimiter allows limit requests per window.
//
//	limiter := middleware.NewRateLimiter(redisDB, 30, time.Minute)
//	r.With(limiter.Limit("accounts")).Post("/api/accounts/login", accounts.Login)
func NewRateLimiter(counter RateCounter, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{counter: counter, limit: limit, window: window}
}

// Limit guards a route group sharing the endpoint name. Over the limit it
// answers 429 with Retry-After set to the window length. When the counter
// is unavailable requests are let through.
func (rl *RateLimiter) Limit(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ExtractClientIP(r)

			count, err := rl.counter.IncrementRateLimit(r.Context(), ip, endpoint, rl.window)
			if err != nil {
				log.Error().Err(err).Str("endpoint", endpoint).Msg("Rate limit counter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			remaining := int64(rl.limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(rl.limit) {
				log.Warn().Str("ip", ip).Str("endpoint", endpoint).Int64("count", count).Msg("Rate limit exceeded")
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
				utils.RespondWithError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
