package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/receipt-printer/internal/config"
	"github.com/iliyamo/receipt-printer/internal/guest"
)

// DefaultQuota is used when a create request leaves quota_per_day out or zero.
const DefaultQuota = 5

// AdminGuestHandler manages guest links.
type AdminGuestHandler struct {
	Ledger *guest.Ledger
	Log    *logrus.Logger
}

func NewAdminGuestHandler(l *guest.Ledger, log *logrus.Logger) *AdminGuestHandler {
	return &AdminGuestHandler{Ledger: l, Log: log}
}

type createGuestReq struct {
	Name        string `json:"name" form:"name" validate:"max=80"`
	QuotaPerDay int    `json:"quota_per_day" form:"quota_per_day" validate:"omitempty,min=1,max=50"`
}

type guestResp struct {
	Token          string    `json:"token"`
	Link           string    `json:"link"`
	Name           string    `json:"name"`
	Created        time.Time `json:"created"`
	Active         bool      `json:"active"`
	QuotaPerDay    int       `json:"quota_per_day"`
	RemainingToday int       `json:"remaining_today"`
}

func guestLink(token string) string { return "/guest/" + token }

// List returns every guest link, newest first, with today's remaining quota.
func (h *AdminGuestHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	entries, err := h.Ledger.List(ctx)
	if err != nil {
		config.LogError(h.Log, "handler", "ListGuests", "list guests", nil, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	out := make([]guestResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, guestResp{
			Token:          e.Token,
			Link:           guestLink(e.Token),
			Name:           e.Record.Name,
			Created:        e.Record.CreatedAt().UTC(),
			Active:         e.Record.Active,
			QuotaPerDay:    e.Record.QuotaPerDay,
			RemainingToday: e.RemainingToday,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// Create issues a new guest link.
func (h *AdminGuestHandler) Create(c echo.Context) error {
	var req createGuestReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	quota := req.QuotaPerDay
	if quota == 0 {
		quota = DefaultQuota
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	tok, err := h.Ledger.Create(ctx, req.Name, quota)
	if errors.Is(err, guest.ErrInvalidQuota) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err != nil {
		config.LogError(h.Log, "handler", "CreateGuest", "create guest", req.Name, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	h.Log.WithFields(logrus.Fields{"name": req.Name, "quota_per_day": quota}).Info("guest link created")
	return c.JSON(http.StatusCreated, echo.Map{"token": tok, "link": guestLink(tok)})
}

// Revoke disables a guest link for good.
func (h *AdminGuestHandler) Revoke(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	ok, err := h.Ledger.Revoke(ctx, c.Param("token"))
	if err != nil {
		config.LogError(h.Log, "handler", "RevokeGuest", "revoke guest", nil, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown token"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
