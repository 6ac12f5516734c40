package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"

	"MarketBrief/internal/domain/models"
	xhttp "MarketBrief/pkg/http"
	applogger "MarketBrief/pkg/logger"
)

// SecretHeader carries the shared trigger secret.
const SecretHeader = "X-Secret-Key"

// TriggerAuth rejects requests whose X-Secret-Key does not match secret with 403.
// An empty secret disables the check.
func TriggerAuth(secret string, l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if secret == "" {
			return next
		}
		return func(c echo.Context) error {
			got := c.Request().Header.Get(SecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				l.Warn("trigger rejected",
					applogger.String("path", c.Path()),
					applogger.String("remote_ip", c.RealIP()),
					applogger.Error(models.ErrUnauthorized),
				)
				return xhttp.AppErrorResponse(c, xhttp.ForbiddenError("invalid or missing "+SecretHeader).WithError(models.ErrUnauthorized))
			}
			return next(c)
		}
	}
}
