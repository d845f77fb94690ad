package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(true)(http.HandlerFunc(okHandler)).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	h := rr.Header()
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Contains(t, h.Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.NotEmpty(t, h.Get("Strict-Transport-Security"))

	rr = httptest.NewRecorder()
	SecurityHeaders(false)(http.HandlerFunc(okHandler)).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))
}

func TestCSRF(t *testing.T) {
	key := []byte(strings.Repeat("k", 32))
	h := CSRF(key, false, []string{"localhost:8080"})(http.HandlerFunc(okHandler))

	form := httptest.NewRequest("POST", "/login", strings.NewReader("email=a%40b.c"))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, form)
	assert.Equal(t, http.StatusForbidden, rr.Code, "form post without token is rejected")

	api := httptest.NewRequest("POST", "/api/requests", strings.NewReader(`{}`))
	api.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, api)
	assert.Equal(t, http.StatusOK, rr.Code, "JSON requests are exempt")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/login", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "safe methods pass")
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(okHandler), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, order)
}
