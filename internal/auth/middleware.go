package auth

import (
	"context"
	"net/http"
)

// Context keys for auth data
type contextKey string

const (
	userIDKey contextKey = "userID"
)

// Middleware provides authentication middleware for HTTP handlers.
type Middleware struct {
	sessionService *SessionService
	loginPath      string
}

// NewMiddleware creates a new auth middleware. loginPath is where
// unauthenticated requests are redirected.
func NewMiddleware(sessionService *SessionService, loginPath string) *Middleware {
	return &Middleware{
		sessionService: sessionService,
		loginPath:      loginPath,
	}
}

// RequireAuthWithRedirect is middleware that requires a valid session.
// Unauthenticated requests are redirected to the login page with the original
// path appended as the next parameter, so the caller lands back on the page
// they asked for after signing in. It never answers with an error page.
func (m *Middleware) RequireAuthWithRedirect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := m.resolveUserID(r)
		if userID == "" {
			http.Redirect(w, r, m.loginPath+"?next="+r.URL.Path, http.StatusFound)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth is middleware that adds user info to context if present.
// Does not require authentication - continues with or without a session.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := m.resolveUserID(r)
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveUserID resolves the calling identity from the session cookie.
// Returns empty string when no valid session is present.
func (m *Middleware) resolveUserID(r *http.Request) string {
	sessionID, err := GetFromRequest(r)
	if err != nil {
		return ""
	}
	userID, err := m.sessionService.Validate(r.Context(), sessionID)
	if err != nil {
		return ""
	}
	return userID
}

// GetUserID retrieves the user ID from the request context.
// Returns empty string if no user is authenticated.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}
