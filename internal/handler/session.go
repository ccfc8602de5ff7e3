package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/receipt-printer/internal/clock"
	"github.com/iliyamo/receipt-printer/internal/utils"
)

// browserSessionTTL caps a login that did not ask to be remembered.
const browserSessionTTL = 12 * time.Hour

// SessionHandler issues and clears the admin UI cookie.
type SessionHandler struct {
	PassHash    string
	Secret      string
	CookieName  string
	RememberTTL time.Duration
	Secure      bool
	Clock       clock.Clock
	Log         *logrus.Logger
}

type loginReq struct {
	Password string `json:"password" form:"password" validate:"required"`
	Remember bool   `json:"remember" form:"remember"`
}

// Login checks the UI password and sets a signed session cookie.
func (h *SessionHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if !utils.VerifyPassword(h.PassHash, req.Password) {
		h.Log.WithField("remote_ip", c.RealIP()).Warn("ui login failed")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	ttl := browserSessionTTL
	if req.Remember {
		ttl = h.RememberTTL
	}
	tok, err := utils.NewSessionToken(h.Secret, h.Clock.Now(), ttl)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	ck := &http.Cookie{
		Name:     h.CookieName,
		Value:    tok.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if req.Remember {
		ck.MaxAge = int(ttl / time.Second)
		ck.Expires = tok.Exp
	}
	c.SetCookie(ck)
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "expires": tok.Exp})
}

// Logout clears the cookie and sends the browser home.
func (h *SessionHandler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusSeeOther, "/")
}
