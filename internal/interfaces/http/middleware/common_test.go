package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// serve runs one request through mw in front of a handler echoing the
// request id.
func serve(method string, headers map[string]string, mw ...gin.HandlerFunc) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(mw...)
	r.Handle(method, "/jobs", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})
	req := httptest.NewRequest(method, "/jobs", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORS_DefaultAllowsNoOrigin(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodOptions} {
		w := serve(method, map[string]string{"Origin": "https://curricula.example"}, CORS())
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), method)
		if method == http.MethodOptions {
			assert.Equal(t, http.StatusNoContent, w.Code)
		}
	}
}

func TestCORSWithConfig(t *testing.T) {
	const ui = "https://ui.curricula.example"
	mw := CORSWithConfig(CORSConfig{
		AllowOrigins:     []string{ui},
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{"Content-Type", TenantHeaderKey},
		AllowCredentials: true,
		MaxAge:           time.Hour,
	})

	tests := []struct {
		name, method, origin string
		wantOrigin           string
		wantCode             int
	}{
		{"allowed origin", http.MethodGet, ui, ui, http.StatusOK},
		{"foreign origin", http.MethodGet, "https://elsewhere.example", "", http.StatusOK},
		{"preflight", http.MethodOptions, ui, ui, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(tt.method, map[string]string{"Origin": tt.origin}, mw)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantOrigin == "" {
				return
			}
			assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
			assert.Equal(t, "Content-Type, X-Tenant-ID", w.Header().Get("Access-Control-Allow-Headers"))
		})
	}
}

func TestCORSWithConfig_WildcardDropsCredentials(t *testing.T) {
	w := serve(http.MethodGet, map[string]string{"Origin": "https://any.example"},
		CORSWithConfig(CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true}))

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRequestID(t *testing.T) {
	oversized := strings.Repeat("r", MaxRequestIDLength+1)

	t.Run("minted", func(t *testing.T) {
		w := serve(http.MethodGet, nil, RequestID())
		assert.Len(t, w.Body.String(), 36)
		assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
	})
	t.Run("propagated", func(t *testing.T) {
		w := serve(http.MethodGet, map[string]string{RequestIDHeader: "req-42"}, RequestID())
		assert.Equal(t, "req-42", w.Body.String())
		assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	})
	t.Run("oversized replaced", func(t *testing.T) {
		w := serve(http.MethodGet, map[string]string{RequestIDHeader: oversized}, RequestID())
		assert.Len(t, w.Body.String(), 36)
	})
}

func TestSecureWithConfig(t *testing.T) {
	w := serve(http.MethodGet, nil, Secure())
	h := w.Header()
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
	assert.Equal(t, DefaultSecurityConfig().CSPDirective, h.Get("Content-Security-Policy"))
	assert.Empty(t, h.Get("Strict-Transport-Security"))

	w = serve(http.MethodGet, nil, SecureWithConfig(SecurityConfig{HSTSEnabled: true, HSTSMaxAge: 600}))
	assert.Equal(t, "max-age=600; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
	assert.Empty(t, w.Header().Get("Content-Security-Policy"))
}
