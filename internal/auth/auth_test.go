package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "test-signing-key"

func TestIssueAndParse(t *testing.T) {
	tok, err := Issue(Claims{
		Email:            "ani@tk.sch.id",
		AppMetadata:      AppMetadata{Role: RoleAdmin},
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}, "presensi", key, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	claims, err := Parse(tok.AccessToken, key, "presensi")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())
	assert.Equal(t, "ani@tk.sch.id", claims.Email)
	assert.Equal(t, "authenticated", claims.Role)
	assert.True(t, claims.IsAdmin())
	assert.NotEmpty(t, claims.ID)

	_, err = Parse(tok.AccessToken, "other-key", "")
	assert.Error(t, err)
	_, err = Parse(tok.AccessToken, key, "someone-else")
	assert.Error(t, err)

	_, err = Issue(Claims{}, "", key, time.Hour)
	assert.Error(t, err)
}

func TestParseExpired(t *testing.T) {
	tok, err := Issue(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}, "", key, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(tok.AccessToken, key, "")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString([]byte(key))
	require.NoError(t, err)
	_, err = Parse(signed, key, "")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
	tok, ok = BearerToken("bearer  xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)
	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
}

func tokenFor(t *testing.T, subject string, admin bool) string {
	t.Helper()
	c := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: subject}}
	if admin {
		c.AppMetadata.Role = RoleAdmin
	}
	tok, err := Issue(c, "", key, time.Hour)
	require.NoError(t, err)
	return tok.AccessToken
}

// confirmedTokens answers from a fixed set and counts lookups.
type confirmedTokens struct {
	tokens map[string]bool
	err    error
	calls  int
}

func (f *confirmedTokens) EmailConfirmed(_ context.Context, token string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.tokens[token], nil
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	plain := tokenFor(t, "u1", false)
	verified := tokenFor(t, "u2", false)
	admin := tokenFor(t, "u3", true)

	// Signed by the backend but with a user-editable verification flag.
	selfVerified, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":           "u4",
		"exp":           time.Now().Add(time.Hour).Unix(),
		"user_metadata": map[string]any{"email_verified": true},
	}).SignedString([]byte(key))
	require.NoError(t, err)

	conf := &confirmedTokens{tokens: map[string]bool{verified: true, admin: true}}
	broken := &confirmedTokens{err: errors.New("auth service down")}

	r := gin.New()
	ok := func(c *gin.Context) {
		claims, _ := FromContext(c)
		c.JSON(http.StatusOK, gin.H{"user": claims.UserID(), "token": AccessToken(c) != ""})
	}
	r.GET("/session", SessionAuth(key, ""), ok)
	r.GET("/stream", StreamAuth(key, ""), ok)
	r.GET("/verified", SessionAuth(key, ""), RequireVerified(conf), ok)
	r.GET("/verified-down", SessionAuth(key, ""), RequireVerified(broken), ok)
	r.GET("/admin", SessionAuth(key, ""), RequireAdmin(), ok)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing token", "/session", "", http.StatusUnauthorized},
		{"garbage token", "/session", "Bearer nope", http.StatusUnauthorized},
		{"session ok", "/session", "Bearer " + plain, http.StatusOK},
		{"query token refused outside streams", "/session?access_token=" + plain, "", http.StatusUnauthorized},
		{"query token on stream", "/stream?access_token=" + plain, "", http.StatusOK},
		{"header on stream", "/stream", "Bearer " + plain, http.StatusOK},
		{"unverified", "/verified", "Bearer " + plain, http.StatusForbidden},
		{"verified", "/verified", "Bearer " + verified, http.StatusOK},
		{"user metadata is not verification", "/verified", "Bearer " + selfVerified, http.StatusForbidden},
		{"auth service down", "/verified-down", "Bearer " + verified, http.StatusBadGateway},
		{"not admin", "/admin", "Bearer " + verified, http.StatusForbidden},
		{"admin", "/admin", "Bearer " + admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestConfirmationCache(t *testing.T) {
	ctx := context.Background()
	next := &confirmedTokens{tokens: map[string]bool{"yes": true}}
	cache := NewConfirmationCache(next, 16, time.Minute)

	for i := 0; i < 3; i++ {
		ok, err := cache.EmailConfirmed(ctx, "yes")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, next.calls, "confirmed tokens are cached")

	for i := 0; i < 2; i++ {
		ok, err := cache.EmailConfirmed(ctx, "no")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 3, next.calls, "unconfirmed tokens are asked again")

	next.tokens["no"] = true
	ok, err := cache.EmailConfirmed(ctx, "no")
	require.NoError(t, err)
	assert.True(t, ok, "confirmation shows up without waiting for expiry")

	next.err = errors.New("timeout")
	_, err = cache.EmailConfirmed(ctx, "other")
	assert.Error(t, err)
	ok, err = cache.EmailConfirmed(ctx, "yes")
	require.NoError(t, err)
	assert.True(t, ok)
}
