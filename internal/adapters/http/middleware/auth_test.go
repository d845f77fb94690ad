package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestAuth_LoadsSessionFromCookie(t *testing.T) {
	store := NewMemorySessionStore()
	token, err := store.Create(context.Background(), Session{AccountID: "a1", Role: "staff"})
	require.NoError(t, err)

	var got Session
	var found bool
	h := Auth(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = GetSessionFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, found)
	assert.Equal(t, "a1", got.AccountID)

	found = false
	req = httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, found, "unknown token must not produce a session")
}

func TestRequireRole(t *testing.T) {
	h := RequireRole("admin", "staff")(http.HandlerFunc(okHandler))

	tests := []struct {
		name       string
		session    *Session
		method     string
		accept     string
		wantStatus int
		wantLoc    string
	}{
		{"anonymous api", nil, "GET", "application/json", http.StatusUnauthorized, ""},
		{"anonymous page", nil, "GET", "text/html,application/xhtml+xml", http.StatusSeeOther, "/login?next=%2Fadmin%2Frequests%3Fstatus%3Dnew"},
		{"anonymous form post", nil, "POST", "text/html", http.StatusUnauthorized, ""},
		{"customer", &Session{AccountID: "c1", Role: "customer"}, "GET", "text/html", http.StatusForbidden, ""},
		{"staff", &Session{AccountID: "s1", Role: "staff"}, "GET", "text/html", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/admin/requests?status=new", nil)
			req.Header.Set("Accept", tt.accept)
			if tt.session != nil {
				req = req.WithContext(ContextWithSession(req.Context(), *tt.session))
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rr.Header().Get("Location"))
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	h := RequireAuth(http.HandlerFunc(okHandler))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rr.Body.String())

	req := httptest.NewRequest("GET", "/api/me", nil)
	req = req.WithContext(ContextWithSession(req.Context(), Session{AccountID: "c1", Role: "customer"}))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRoleHelpers(t *testing.T) {
	ctx := ContextWithSession(context.Background(), Session{Role: "staff"})
	assert.True(t, IsStaff(ctx))
	assert.False(t, IsAdmin(ctx))
	assert.False(t, IsStaff(context.Background()))
}

func TestSessionCookie(t *testing.T) {
	rr := httptest.NewRecorder()
	SetSessionCookie(rr, "tok", true)
	c := rr.Result().Cookies()[0]
	assert.Equal(t, SessionCookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	rr = httptest.NewRecorder()
	ClearSessionCookie(rr, false)
	assert.Equal(t, -1, rr.Result().Cookies()[0].MaxAge)
}
