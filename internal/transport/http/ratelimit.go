package http

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter caps inbound frames of one connection per minute.
type rateLimiter struct {
	lim *rate.Limiter
}

func newRateLimiter(perMinute int) *rateLimiter {
	if perMinute <= 0 {
		return &rateLimiter{}
	}
	return &rateLimiter{
		lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.lim == nil {
		return true
	}
	return r.lim.Allow()
}
