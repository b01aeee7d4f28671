package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sakif/courier/internal/apperror"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "userID", id), ANY package that knows the string "userID"
// can read or shadow your value. Using a package-private type prevents collisions:
// only THIS package can create a key of type contextKey, so only this package
// can read or write userID values in the context.
type contextKey string

const userIDKey contextKey = "userID"

// ClaimedIDFunc pulls the identity a request claims to act as, usually from
// a query parameter.
type ClaimedIDFunc func(r *http.Request) string

// QueryParam returns a ClaimedIDFunc reading the named query parameter.
func QueryParam(name string) ClaimedIDFunc {
	return func(r *http.Request) string {
		return r.URL.Query().Get(name)
	}
}

// RequireSession is a middleware that enforces the double-token check on
// protected routes.
//
// It reads the cookie token from the "jwt" HttpOnly cookie and the header
// token from "Authorization: Bearer <token>", then asks the SessionVerifier
// whether both attest to the id returned by claimedID. On success the id is
// stored in the request context; otherwise the chain stops with 403.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware is a function that takes an http.Handler and returns a new
// http.Handler. The new handler "wraps" the original:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... do stuff before the handler ...
//	        next.ServeHTTP(w, r)
//	        // ... do stuff after the handler ...
//	    })
//	}
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireSession(verifier *SessionVerifier, claimedID ClaimedIDFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := claimedID(r)
			if err := verifier.Authorize(id, CookieToken(r), BearerToken(r.Header.Get("Authorization"))); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(apperror.NewResponse(apperror.NotAuthenticated()))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CookieToken returns the value of the "jwt" cookie, or "" when absent.
func CookieToken(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		// http.ErrNoCookie means the cookie isn't present
		return ""
	}
	return cookie.Value
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns ("", false) if no session was granted for this request.
// Returns (id, true) on routes behind RequireSession.
//
// Usage in handlers:
//
//	userID, ok := auth.UserIDFromContext(r.Context())
//	if !ok {
//	    // not authenticated
//	}
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// ContextWithUserID returns a copy of ctx carrying userID. Tests use it to
// call handlers without running the middleware.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
