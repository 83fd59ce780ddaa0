package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newAuthTestRouter(t *testing.T, secret string, limit int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &Server{limiter: newRateLimiter(limit, time.Minute)}
	engine := gin.New()
	engine.POST("/trigger", s.SecretRequired(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return engine
}

func triggerWith(t *testing.T, engine *gin.Engine, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/trigger", nil)
	if header != "" {
		req.Header.Set(secretHeader, header)
	}
	req.RemoteAddr = "10.0.0.1:4321"
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestSecretRequiredAcceptsMatchingSecret(t *testing.T) {
	engine := newAuthTestRouter(t, "s3cret", 0)

	rec := triggerWith(t, engine, "s3cret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestSecretRequiredRejectsWrongSecret(t *testing.T) {
	engine := newAuthTestRouter(t, "s3cret", 0)

	for _, header := range []string{"", "wrong", "s3cret "} {
		rec := triggerWith(t, engine, header)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Error.Code != "unauthorized" {
			t.Fatalf("error code = %q, want unauthorized", body.Error.Code)
		}
	}
}

func TestSecretRequiredDisablesEndpointWithoutSecret(t *testing.T) {
	engine := newAuthTestRouter(t, "", 0)

	rec := triggerWith(t, engine, "anything")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestSecretRequiredRateLimitsPerClient(t *testing.T) {
	engine := newAuthTestRouter(t, "s3cret", 2)

	for i := 0; i < 2; i++ {
		if rec := triggerWith(t, engine, "s3cret"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
	rec := triggerWith(t, engine, "s3cret")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestRateLimiterDisabledWhenLimitZero(t *testing.T) {
	limiter := newRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("client") {
			t.Fatal("disabled limiter rejected a request")
		}
	}
}

func TestRateLimiterRejectsEmptyKey(t *testing.T) {
	limiter := newRateLimiter(5, time.Minute)
	if limiter.Allow("") {
		t.Fatal("expected empty key to be rejected")
	}
}

func TestRateLimiterIsolatesKeys(t *testing.T) {
	limiter := newRateLimiter(1, time.Minute)
	if !limiter.Allow("a") {
		t.Fatal("first request for a rejected")
	}
	if limiter.Allow("a") {
		t.Fatal("second request for a allowed")
	}
	if !limiter.Allow("b") {
		t.Fatal("first request for b rejected")
	}
}
