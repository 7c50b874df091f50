package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faunatrack/server/internal/auth"
)

func TestAuthenticateRequest(t *testing.T) {
	t.Parallel()

	tokens := auth.NewTokenManager("0123456789abcdef0123456789abcdef", "species-tracker", time.Hour)
	token, _, err := tokens.IssueAccessToken(auth.User{ID: "u-1", Username: "alice", Role: auth.RoleRanger})
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		query   string
		upgrade bool
		wantErr error
	}{
		{name: "bearer", header: "Bearer " + token},
		{name: "lower case scheme", header: "bearer " + token},
		{name: "missing", wantErr: ErrMissingAuthorization},
		{name: "basic scheme", header: "Basic abc", wantErr: ErrInvalidAuthorization},
		{name: "empty bearer", header: "Bearer ", wantErr: ErrInvalidAuthorization},
		{name: "bad token", header: "Bearer nope", wantErr: auth.ErrInvalidToken},
		{name: "query token on upgrade", query: token, upgrade: true},
		{name: "query token without upgrade", query: token, wantErr: ErrMissingAuthorization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target := "/api/conservation"
			if tt.query != "" {
				target += "?access_token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}

			user, err := AuthenticateRequest(req, tokens)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, AuthUser{ID: "u-1", Username: "alice", Role: auth.RoleRanger}, user)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	tokens := auth.NewTokenManager("0123456789abcdef0123456789abcdef", "species-tracker", time.Hour)
	token, _, err := tokens.IssueAccessToken(auth.User{ID: "u-9", Role: auth.RoleAdmin})
	require.NoError(t, err)

	var seen AuthUser
	handler := RequireAuth(tokens,
		func(w http.ResponseWriter, r *http.Request, err error) { w.WriteHeader(http.StatusUnauthorized) },
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = UserFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "u-9", seen.ID)
}
