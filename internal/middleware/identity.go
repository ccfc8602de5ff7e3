package middleware

// identity.go derives the stable identifiers used in limiter keys and
// request logs. Guest tokens are bearer secrets, so only a digest of them
// ever leaves the process.

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/labstack/echo/v4"
)

// GuestKey returns a short digest of a guest token, or "none".
func GuestKey(token string) string {
	if token == "" {
		return "none"
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func guestKey(c echo.Context) string { return GuestKey(c.Param("token")) }

func clientIP(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}
