package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lluckydog/Verilog-OJ/internal/service"
	"github.com/lluckydog/Verilog-OJ/pkg/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ── SessionAuth ──

type mockAuthenticator struct {
	caller    service.Caller
	err       error
	lastToken string
}

func (m *mockAuthenticator) Authenticate(_ context.Context, token string) (service.Caller, error) {
	m.lastToken = token
	return m.caller, m.err
}

func callerEcho(c *gin.Context) {
	v, _ := c.Get(service.CallerContextKey)
	caller := v.(service.Caller)
	c.String(http.StatusOK, caller.UserID)
}

func TestSessionAuth(t *testing.T) {
	cases := []struct {
		name   string
		cookie string
		auth   *mockAuthenticator
		want   string
	}{
		{"no cookie", "", &mockAuthenticator{caller: service.Caller{UserID: "u1"}}, ""},
		{"valid session", "tok", &mockAuthenticator{caller: service.Caller{UserID: "u1"}}, "u1"},
		{"expired session", "tok", &mockAuthenticator{err: session.ErrNoSession}, ""},
		{"store failure", "tok", &mockAuthenticator{err: errors.New("redis down")}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(SessionAuth(tc.auth, "sessionid", zap.NewNop()))
			r.GET("/", callerEcho)

			req := httptest.NewRequest("GET", "/", nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "sessionid", Value: tc.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("anonymous requests must pass through, got %d", w.Code)
			}
			if w.Body.String() != tc.want {
				t.Errorf("expected caller %q, got %q", tc.want, w.Body.String())
			}
			if tc.cookie == "" && tc.auth.lastToken != "" {
				t.Error("authenticator should not be called without a cookie")
			}
		})
	}
}

// ── RateLimit ──

type mockLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (m *mockLimiter) CheckRateLimit(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	m.keys = append(m.keys, key)
	return m.allowed, m.err
}

func TestRateLimit(t *testing.T) {
	cases := []struct {
		name    string
		limiter Limiter
		status  int
	}{
		{"no limiter", nil, http.StatusOK},
		{"allowed", &mockLimiter{allowed: true}, http.StatusOK},
		{"limited", &mockLimiter{allowed: false}, http.StatusTooManyRequests},
		{"limiter error", &mockLimiter{err: errors.New("redis down")}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/auth/login", RateLimit(tc.limiter, 10, time.Minute), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("POST", "/auth/login", nil))

			if w.Code != tc.status {
				t.Errorf("expected %d, got %d", tc.status, w.Code)
			}
		})
	}

	lim := &mockLimiter{allowed: true}
	r := gin.New()
	r.POST("/auth/login", RateLimit(lim, 10, time.Minute), func(c *gin.Context) {})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/auth/login", nil))
	if len(lim.keys) != 1 || !strings.HasSuffix(lim.keys[0], ":/auth/login") {
		t.Errorf("unexpected limiter key %v", lim.keys)
	}
}

// ── RequestID / Logger ──

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc-123" || w.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("upstream request id should be kept, got %q", w.Body.String())
	}

	for _, bad := range []string{"", "has space", "line\nbreak", strings.Repeat("x", 65)} {
		w = httptest.NewRecorder()
		req = httptest.NewRequest("GET", "/", nil)
		if bad != "" {
			req.Header["X-Request-Id"] = []string{bad}
		}
		r.ServeHTTP(w, req)
		if got := w.Body.String(); got == bad || len(got) != 36 {
			t.Errorf("%q: expected a generated uuid, got %q", bad, got)
		}
	}
}

func TestLogger_Levels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, p := range []string{"/ok", "/bad", "/fail"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", p, nil))
	}

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(entries))
	}
	want := []string{"info", "warn", "error"}
	for i, e := range entries {
		if e.Level.String() != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], e.Level)
		}
		if rid, _ := e.ContextMap()["request_id"].(string); rid == "" {
			t.Errorf("entry %d: missing request_id", i)
		}
	}
}

func TestLogger_RedactsTicket(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/cas", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/cas?ticket=ST-secret&x=1", nil))

	q, _ := logs.All()[0].ContextMap()["query"].(string)
	if strings.Contains(q, "ST-secret") || !strings.Contains(q, "x=1") {
		t.Errorf("unexpected logged query %q", q)
	}
}

// ── CORS / Security / BodyLimit ──

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:8080/"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	preflight := func(origin string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("OPTIONS", "/", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", "POST")
		r.ServeHTTP(w, req)
		return w
	}

	w := preflight("http://localhost:8080")
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Errorf("preflight from allowed origin failed: %d %v", w.Code, w.Header())
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("preflight should list allowed methods")
	}

	if w := preflight("http://evil.example.com"); w.Code != http.StatusForbidden {
		t.Errorf("preflight from unknown origin: expected 403, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin must not be allowed")
	}
	if w.Header().Get("Vary") != "Origin" {
		t.Errorf("expected Vary: Origin, got %q", w.Header().Get("Vary"))
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Expose-Headers") != "X-Request-ID" {
		t.Error("allowed origin should see X-Request-ID")
	}
}

func TestSecurityHeaders(t *testing.T) {
	for _, hsts := range []bool{false, true} {
		r := gin.New()
		r.Use(SecurityHeaders(hsts))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

		if w.Header().Get("X-Frame-Options") != "DENY" {
			t.Error("missing X-Frame-Options")
		}
		if got := w.Header().Get("Strict-Transport-Security") != ""; got != hsts {
			t.Errorf("hsts=%v: unexpected HSTS header presence %v", hsts, got)
		}
	}
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/", strings.NewReader(`{"a":1}`)))
	if w.Code != http.StatusOK {
		t.Errorf("small body: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 64))))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("large body: expected 413, got %d", w.Code)
	}
}
