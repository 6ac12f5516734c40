package middleware

import (
	"github.com/labstack/echo/v4"

	xhttp "MarketBrief/pkg/http"
)

// Allower is satisfied by *ratelimit.Limiter.
type Allower interface {
	Allow(key string) bool
}

// RateLimit answers 429 once the caller's bucket, keyed by client IP, is empty. A nil limiter disables it.
func RateLimit(limiter Allower) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil {
			return next
		}
		return func(c echo.Context) error {
			if !limiter.Allow(c.RealIP()) {
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many trigger requests, slow down"))
			}
			return next(c)
		}
	}
}
