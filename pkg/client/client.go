package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

// AuthUser is the authenticated subject resolved once at the HTTP boundary.
// Handlers pass AuthUser.UserUuid down explicitly; services never reach back
// into the request context for identity.
type AuthUser struct {
	UserId      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Locale      string `json:"locale,omitempty"`
	UserUuid    uuid.UUID
}

func (u AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", u.UserId),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation. This technique
// for defining context keys was copied from Go 1.7's new use of context in net/http.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "accountd context value " + k.name
}

const ACCESS_TOKEN_NAME = "access_token"

var AuthUserKey = &contextKey{"AuthUser"}

// FromContext returns the AuthUser stored by AuthUserMiddleware.
func FromContext(ctx context.Context) (*AuthUser, bool) {
	authUser, ok := ctx.Value(AuthUserKey).(*AuthUser)
	return authUser, ok
}

func loadFromMap[T any](m map[string]interface{}, c *T) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}

// AuthUserMiddleware resolves the verified JWT claims into an AuthUser and
// stores it in the request context. Runs after jwtauth's Verifier and
// Authenticator.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("missing or invalid JWT: %v", err), http.StatusUnauthorized)
			return
		}
		if claims == nil {
			http.Error(w, "missing JWT claims", http.StatusUnauthorized)
			return
		}

		authUser := new(AuthUser)
		if err := loadFromMap(claims, authUser); err != nil {
			slog.Error("failed to parse token claims", "error", err)
			http.Error(w, "invalid token claims", http.StatusUnauthorized)
			return
		}

		if authUser.UserId == "" {
			// Fall back to the standard subject claim.
			if sub, ok := claims["sub"].(string); ok {
				authUser.UserId = sub
			}
		}
		if authUser.UserId == "" {
			http.Error(w, "missing user ID in token", http.StatusUnauthorized)
			return
		}

		userUUID, err := uuid.Parse(authUser.UserId)
		if err != nil {
			slog.Warn("failed to parse user ID as UUID", "userId", authUser.UserId, "error", err)
			http.Error(w, "invalid user ID in token", http.StatusUnauthorized)
			return
		}
		authUser.UserUuid = userUUID

		slog.Debug("authenticated user", "userId", authUser.UserId)

		ctx := context.WithValue(r.Context(), AuthUserKey, authUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Verifier checks the JWT from the Authorization header or the access token
// cookie.
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie)(next)
	}
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}
