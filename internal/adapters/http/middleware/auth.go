package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	domainAccount "carimport/internal/domain/account"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const sessionContextKey contextKey = "session"

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "carimport_session"

// Auth returns middleware that loads the session named by the cookie into the context.
// It does NOT block unauthenticated requests; use RequireAuth or RequireRole for that.
func Auth(sessions SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				if s, ok := sessions.Get(r.Context(), cookie.Value); ok {
					r = r.WithContext(ContextWithSession(r.Context(), s))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// wantsHTML reports whether the client is a browser navigating to a page.
func wantsHTML(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "application/xhtml+xml")
}

func deny(w http.ResponseWriter, r *http.Request, status int) {
	if status == http.StatusUnauthorized && wantsHTML(r) {
		http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": strings.ToLower(http.StatusText(status))})
}

// RequireAuth blocks anonymous requests: pages redirect to /login, API calls get 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetSessionFromContext(r.Context()); !ok {
			deny(w, r, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole blocks requests from sessions without one of the roles.
// Anonymous requests are treated as in RequireAuth; wrong roles get 403.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := GetSessionFromContext(r.Context())
			if !ok {
				deny(w, r, http.StatusUnauthorized)
				return
			}
			if !roleSet[s.Role] {
				deny(w, r, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetSessionFromContext extracts the session from the request context.
func GetSessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(Session)
	return s, ok
}

// ContextWithSession returns a context carrying sess.
func ContextWithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SetSessionCookie sets the session cookie. secure is true behind HTTPS.
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

// IsRole checks if the current session has one of the given roles.
func IsRole(ctx context.Context, roles ...string) bool {
	s, ok := GetSessionFromContext(ctx)
	if !ok {
		return false
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// IsAdmin checks if the current session is an admin.
func IsAdmin(ctx context.Context) bool {
	return IsRole(ctx, domainAccount.RoleAdmin)
}

// IsStaff checks if the current session is staff or admin.
func IsStaff(ctx context.Context) bool {
	return IsRole(ctx, domainAccount.RoleAdmin, domainAccount.RoleStaff)
}
