package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/receipt-printer/internal/config"
	"github.com/iliyamo/receipt-printer/internal/service"
)

// SettingsHandler reads and replaces the receipt style overlay.
type SettingsHandler struct {
	Styles  *config.StyleSource
	Printer *service.Printer
	Log     *logrus.Logger
}

func NewSettingsHandler(s *config.StyleSource, p *service.Printer, log *logrus.Logger) *SettingsHandler {
	return &SettingsHandler{Styles: s, Printer: p, Log: log}
}

// Get returns the effective style and the raw key/value sources.
func (h *SettingsHandler) Get(c echo.Context) error {
	st, err := h.Styles.Snapshot()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"style":     st,
		"effective": h.Styles.Effective(),
	})
}

// Put replaces the overlay. Values may be JSON strings, numbers or bools.
func (h *SettingsHandler) Put(c echo.Context) error {
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	overlay := make(map[string]string, len(body))
	for k, v := range body {
		switch v.(type) {
		case string, bool, float64:
			overlay[k] = fmt.Sprint(v)
		case nil:
			overlay[k] = ""
		default:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": k + " must be a scalar"})
		}
	}
	st, err := h.Styles.Save(overlay)
	if err != nil {
		h.Log.WithError(err).Warn("settings rejected")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "style": st})
}

// Test prints the sample receipt with the current style.
func (h *SettingsHandler) Test(c echo.Context) error {
	id, err := h.Printer.PrintTest(c.Request().Context())
	return printResult(c, h.Log, "SettingsTest", id, err)
}
