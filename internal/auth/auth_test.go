package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "footprint"}

func TestIssueThenParse(t *testing.T) {
	token, err := Issue(testConfig, "user-1", DefaultScopes, time.Hour)
	require.NoError(t, err)

	claims, err := Parse(token, testConfig)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.True(t, claims.HasScope(ScopeActivitiesRead))
	require.True(t, claims.HasScope(ScopeActivitiesWrite))
	require.False(t, claims.ExpiresAt.IsZero())
}

func TestParseRejectsWrongSecretAndIssuer(t *testing.T) {
	token, err := Issue(testConfig, "user-1", nil, time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, Config{Secret: "other", Issuer: "footprint"})
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = Parse(token, Config{Secret: "test-secret", Issuer: "someone-else"})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	claims := jwt.MapClaims{"sub": "user-1", "iss": "footprint", "exp": time.Now().Add(-time.Minute).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)

	_, err = Parse(token, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRequiresSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": "footprint"}).SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)

	_, err = Parse(token, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = Parse("  ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestNormalizeScopesAcceptsSpaceSeparatedString(t *testing.T) {
	scopes := normalizeScopes("activities:read  activities:write")
	require.Len(t, scopes, 2)
	require.Empty(t, normalizeScopes(42))
}

func TestMiddleware(t *testing.T) {
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewMiddleware(testConfig, nil).Wrap(next)

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/activities", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "missing bearer token")
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
		req.Header.Set("Authorization", "Basic abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := Issue(testConfig, "user-9", DefaultScopes, time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
		req.Header.Set("Authorization", "bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		require.Equal(t, "user-9", seen.Subject)
	})

	t.Run("health probe skips auth", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestValidateScopes(t *testing.T) {
	require.NoError(t, ValidateScopes(DefaultScopes))
	require.NoError(t, ValidateScopes([]string{ScopeActivitiesRead}))
	require.ErrorContains(t, ValidateScopes(nil), "at least one scope")
	require.ErrorContains(t, ValidateScopes([]string{ScopeActivitiesRead, "admin"}), `unknown scope "admin"`)
}
