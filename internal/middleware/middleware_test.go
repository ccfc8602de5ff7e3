package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/receipt-printer/internal/config"
	"github.com/iliyamo/receipt-printer/internal/utils"
)

var fixedNow = time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC)

func adminServer() *echo.Echo {
	e := echo.New()
	g := e.Group("", AdminAuth("k3y", "secret", "sess", func() time.Time { return fixedNow }))
	g.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, c.Get(ContextAuthKey).(string)) })
	return e
}

func TestAdminAuth(t *testing.T) {
	e := adminServer()
	good, _ := utils.NewSessionToken("secret", fixedNow.Add(-time.Hour), 24*time.Hour)
	expired, _ := utils.NewSessionToken("secret", fixedNow.Add(-48*time.Hour), 24*time.Hour)

	cases := []struct {
		name   string
		mutate func(*http.Request)
		status int
		body   string
	}{
		{"none", func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"header", func(r *http.Request) { r.Header.Set("x-api-key", "k3y") }, http.StatusOK, "api_key"},
		{"wrong header", func(r *http.Request) { r.Header.Set("x-api-key", "nope") }, http.StatusUnauthorized, ""},
		{"query", func(r *http.Request) { r.URL.RawQuery = "key=k3y" }, http.StatusOK, "api_key"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "sess", Value: good.Token}) }, http.StatusOK, "session"},
		{"expired cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "sess", Value: expired.Token}) }, http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		tc.mutate(req)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.name, rec.Code, tc.status)
		}
		if tc.body != "" && rec.Body.String() != tc.body {
			t.Fatalf("%s: body = %q", tc.name, rec.Body.String())
		}
	}
}

func TestBuildRateKeyHidesToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/guest/SECRET/print/raw", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("token")
	c.SetParamValues("SECRET")

	cfg := config.RateLimitConfig{Prefix: "rl:guest", KeyStrategy: "token_ip"}
	key := buildRateKey(cfg, c)
	if strings.Contains(key, "SECRET") {
		t.Fatalf("raw token leaked into key %q", key)
	}
	if want := "rl:guest:tok:" + GuestKey("SECRET") + ":ip:10.0.0.7"; key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}
	cfg.KeyStrategy = "ip"
	if key := buildRateKey(cfg, c); key != "rl:guest:ip:10.0.0.7" {
		t.Fatalf("ip key = %q", key)
	}
	if GuestKey("") != "none" || len(GuestKey("abc")) != 16 {
		t.Fatalf("GuestKey shape")
	}
}

func TestTokenBucketDisabledPassesThrough(t *testing.T) {
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil)
	called := false
	h := mw(func(echo.Context) error { called = true; return nil })
	e := echo.New()
	_ = h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
	if !called {
		t.Fatalf("handler not called")
	}
}

func TestValidator(t *testing.T) {
	type dto struct {
		Name  string `validate:"required"`
		Quota int    `validate:"min=1,max=50"`
	}
	v := NewValidator()
	if err := v.Validate(&dto{Name: "a", Quota: 3}); err != nil {
		t.Fatalf("valid dto: %v", err)
	}
	err := v.Validate(&dto{Name: "a", Quota: 0})
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("err = %v", err)
	}
}
