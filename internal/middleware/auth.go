package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/faunatrack/server/internal/auth"
)

var (
	ErrMissingAuthorization = errors.New("missing authorization header")
	ErrInvalidAuthorization = errors.New("invalid authorization header")
)

type AccessTokenParser interface {
	ParseAccessToken(token string) (auth.AccessClaims, error)
}

type AuthUser struct {
	ID       string
	Username string
	Role     string
}

// AuthenticateRequest reads a bearer token from the Authorization header.
// Browsers cannot set headers on websocket upgrades, so an access_token
// query parameter is accepted for those requests only.
func AuthenticateRequest(r *http.Request, parser AccessTokenParser) (AuthUser, error) {
	token, err := bearerToken(r)
	if err != nil {
		return AuthUser{}, err
	}

	claims, err := parser.ParseAccessToken(token)
	if err != nil {
		return AuthUser{}, err
	}

	return AuthUser{ID: claims.Sub, Username: claims.Username, Role: claims.Role}, nil
}

func bearerToken(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		if isWebsocketUpgrade(r) {
			if token := strings.TrimSpace(r.URL.Query().Get("access_token")); token != "" {
				return token, nil
			}
		}
		return "", ErrMissingAuthorization
	}

	scheme, token, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidAuthorization
	}
	return strings.TrimSpace(token), nil
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

type contextKey struct{}

// WithUser stores the authenticated user on the request context.
func WithUser(ctx context.Context, user AuthUser) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

func UserFromContext(ctx context.Context) (AuthUser, bool) {
	user, ok := ctx.Value(contextKey{}).(AuthUser)
	return user, ok
}

// RequireAuth rejects requests without a valid bearer token and passes the
// user to next through the request context.
func RequireAuth(parser AccessTokenParser, onFail func(w http.ResponseWriter, r *http.Request, err error), next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := AuthenticateRequest(r, parser)
		if err != nil {
			onFail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
