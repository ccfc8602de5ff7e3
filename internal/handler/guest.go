package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/receipt-printer/internal/config"
	"github.com/iliyamo/receipt-printer/internal/guest"
	"github.com/iliyamo/receipt-printer/internal/middleware"
	"github.com/iliyamo/receipt-printer/internal/service"
)

// guestRefusal is the single answer for every guest-side refusal, so a
// link holder cannot tell a revoked link from a used-up one.
var guestRefusal = echo.Map{"error": "limit reached or link invalid"}

// GuestHandler serves the public guest link routes.
type GuestHandler struct {
	Ledger  *guest.Ledger
	Printer *service.Printer
	Log     *logrus.Logger
}

func NewGuestHandler(l *guest.Ledger, p *service.Printer, log *logrus.Logger) *GuestHandler {
	return &GuestHandler{Ledger: l, Printer: p, Log: log}
}

// ----- DTOs -----

type guestTemplateReq struct {
	Title string `json:"title" form:"title" validate:"max=200"`
	Lines string `json:"lines" form:"lines" validate:"max=20000"`
	AddDt bool   `json:"add_dt" form:"add_dt"`
}

type guestRawReq struct {
	Text  string `json:"text" form:"text" validate:"max=20000"`
	AddDt bool   `json:"add_dt" form:"add_dt"`
}

// splitFormLines turns a textarea value into lines, trailing blanks trimmed.
func splitFormLines(s string) []string {
	lines := service.RawLines(s, false, time.Time{})
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " \t\r")
	}
	return lines
}

// Show reports the guest's display name and today's remaining prints.
func (h *GuestHandler) Show(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	tok := c.Param("token")
	rec, ok, err := h.Ledger.Validate(ctx, tok)
	if err != nil {
		return h.storeError(c, "Show", err)
	}
	if !ok {
		return c.JSON(http.StatusForbidden, guestRefusal)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"name":            rec.Name,
		"remaining_today": rec.Remaining(h.Ledger.Today()),
	})
}

// consume takes one print from the token's quota. ok is false when a
// response has already been written.
func (h *GuestHandler) consume(c echo.Context, funcName string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	rec, err := h.Ledger.Consume(ctx, c.Param("token"))
	if errors.Is(err, guest.ErrNotPermitted) {
		h.Log.WithFields(logrus.Fields{
			"guest":  middleware.GuestKey(c.Param("token")),
			"reason": err.Error(),
		}).Info("guest print refused")
		return "", false, c.JSON(http.StatusForbidden, guestRefusal)
	}
	if err != nil {
		return "", false, h.storeError(c, funcName, err)
	}
	return rec.Name, true, nil
}

func (h *GuestHandler) storeError(c echo.Context, funcName string, err error) error {
	config.LogError(h.Log, "handler", "Guest"+funcName, "guest ledger", middleware.GuestKey(c.Param("token")), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// guestResult hides ticket ids and quota detail from guests.
func (h *GuestHandler) guestResult(c echo.Context, funcName, ticketID string, err error) error {
	if err == nil {
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	}
	if errors.Is(err, service.ErrNotDelivered) {
		h.Log.WithError(err).WithField("ticket_id", ticketID).Warn("guest print not delivered")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "printer unavailable"})
	}
	return printResult(c, h.Log, "Guest"+funcName, ticketID, err)
}

// Template prints a task list signed with the guest's name.
func (h *GuestHandler) Template(c echo.Context) error {
	// the binder leaves absent fields alone, so the default survives a
	// form without title while an explicit empty title clears it
	req := guestTemplateReq{Title: DefaultTitle}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	name, ok, err := h.consume(c, "Template")
	if !ok {
		return err
	}
	id, err := h.Printer.PrintTemplate(c.Request().Context(), service.TemplateJob{
		Title:        strings.TrimSpace(req.Title),
		Lines:        splitFormLines(req.Lines),
		AddTimestamp: req.AddDt,
		Cut:          true,
		Sender:       name,
	})
	return h.guestResult(c, "Template", id, err)
}

// Raw prints free text signed with the guest's name.
func (h *GuestHandler) Raw(c echo.Context) error {
	var req guestRawReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	name, ok, err := h.consume(c, "Raw")
	if !ok {
		return err
	}
	id, err := h.Printer.PrintRaw(c.Request().Context(), req.Text, req.AddDt, name)
	return h.guestResult(c, "Raw", id, err)
}

// Image prints an uploaded photo. The upload is decoded before the quota
// is touched so a broken file costs nothing.
func (h *GuestHandler) Image(c echo.Context) error {
	photo, err := readPhoto(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	name, ok, err := h.consume(c, "Image")
	if !ok {
		return err
	}
	id, err := h.Printer.PrintPhoto(c.Request().Context(), photo, c.FormValue("img_title"), c.FormValue("img_subtitle"), name)
	return h.guestResult(c, "Image", id, err)
}
