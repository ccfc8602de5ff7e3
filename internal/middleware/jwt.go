package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/receipt-printer/internal/utils"
)

// ContextAuthKey holds how the admin authenticated: "api_key" or "session".
const ContextAuthKey = "auth"

// AdminAuth accepts the API key (x-api-key header or ?key=) or a valid
// session cookie signed with secret. now is injected for tests.
func AdminAuth(apiKey, secret, cookieName string, now func() time.Time) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get("x-api-key")
			if key == "" {
				key = c.QueryParam("key")
			}
			if key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
				c.Set(ContextAuthKey, "api_key")
				return next(c)
			}
			if ck, err := c.Cookie(cookieName); err == nil && ck.Value != "" {
				if utils.ParseSessionToken(secret, ck.Value, now()) == nil {
					c.Set(ContextAuthKey, "session")
					return next(c)
				}
			}
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid api key"})
		}
	}
}
