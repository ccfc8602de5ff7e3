package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe used by load balancers.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// LegacyHealth answers the older /_health probe with a JSON string.
func LegacyHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, "OK")
}

// Info returns a small unauthenticated diagnostic of where jobs go.
func Info(sinkKind, topic string, qos byte) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"ok":    true,
			"sink":  sinkKind,
			"topic": topic,
			"qos":   qos,
		})
	}
}
