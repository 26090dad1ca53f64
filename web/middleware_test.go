package web

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deemkeen/glyptodon/activitypub"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func digestTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/inbox", DigestMiddleware(), func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(body))
	})
	return r
}

func TestDigestMiddlewareAcceptsMatchingBody(t *testing.T) {
	router := digestTestRouter()
	body := []byte(`{"type":"Follow"}`)

	req := httptest.NewRequest(http.MethodPost, "/inbox", bytes.NewReader(body))
	req.Header.Set("Digest", activitypub.Digest(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	// The middleware must re-buffer the body for the handler
	if w.Body.String() != string(body) {
		t.Errorf("Expected handler to see the full body, got '%s'", w.Body.String())
	}
}

func TestDigestMiddlewareRejectsMismatch(t *testing.T) {
	router := digestTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/inbox", bytes.NewReader([]byte(`{"type":"Follow"}`)))
	req.Header.Set("Digest", activitypub.Digest([]byte("something else")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 on digest mismatch, got %d", w.Code)
	}
}

func TestDigestMiddlewareRejectsMissingHeader(t *testing.T) {
	router := digestTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/inbox", bytes.NewReader([]byte("{}")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without Digest header, got %d", w.Code)
	}
}

func TestMaxBytesMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/inbox", MaxBytesMiddleware(16), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	small := httptest.NewRequest(http.MethodPost, "/inbox", bytes.NewReader([]byte("tiny")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, small)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for a small body, got %d", w.Code)
	}

	big := httptest.NewRequest(http.MethodPost, "/inbox", bytes.NewReader(bytes.Repeat([]byte("x"), 64)))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, big)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413 for an oversized body, got %d", w.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/feed", RateLimitMiddleware(NewRateLimiter(rate.Limit(1), 2)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/feed", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("Expected the burst to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected the third request to be limited, got %v", codes)
	}
}
