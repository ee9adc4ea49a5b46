package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "anon-key")
}

func TestSignInWithPassword(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ani@tk.sch.id", body["email"])
		assert.Equal(t, "rahasia", body["password"])

		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600,"refresh_token":"ref",
			"user":{"id":"u1","email":"ani@tk.sch.id","email_confirmed_at":"2024-03-01T00:00:00Z"}}`))
	})

	s, err := c.SignInWithPassword(context.Background(), "ani@tk.sch.id", "rahasia")
	require.NoError(t, err)
	assert.Equal(t, "tok", s.AccessToken)
	assert.Equal(t, 3600, s.ExpiresIn)
	assert.Equal(t, "u1", s.User.ID)
	assert.True(t, s.User.EmailVerified())
}

func TestSignInRefusalIsSurfacedVerbatim(t *testing.T) {
	calls := 0
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`))
	})

	_, err := c.SignInWithPassword(context.Background(), "ani@tk.sch.id", "salah")
	require.Error(t, err)
	ae, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "invalid_credentials", ae.Code)
	assert.Equal(t, "Invalid login credentials", ae.Message)
	assert.Equal(t, 1, calls, "refusals are not retried")
}

func TestLegacyErrorBody(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Email not confirmed"}`))
	})
	_, err := c.SignInWithPassword(context.Background(), "a@b.c", "x")
	ae, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "invalid_grant", ae.Code)
	assert.Equal(t, "Email not confirmed", ae.Message)

	c = newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	err = c.ResendVerification(context.Background(), "a@b.c")
	ae, ok = AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, ae.Status)
	assert.Equal(t, "429 Too Many Requests", ae.Message)
}

func TestSignUp(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/signup", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"name": "Ani"}, body["data"])
		_, _ = w.Write([]byte(`{"id":"u1","email":"ani@tk.sch.id"}`))
	})
	u, err := c.SignUp(context.Background(), "ani@tk.sch.id", "rahasia", map[string]any{"name": "Ani"})
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.False(t, u.EmailVerified())

	c = newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok","user":{"id":"u2","email":"b@c.d"}}`))
	})
	u, err = c.SignUp(context.Background(), "b@c.d", "rahasia", nil)
	require.NoError(t, err)
	assert.Equal(t, "u2", u.ID)
}

func TestResendSignOutGetUser(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/resend":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "signup", body["type"])
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		case "/logout":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusNoContent)
		case "/user":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"id":"u1","email":"ani@tk.sch.id","app_metadata":{"role":"admin"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	require.NoError(t, c.ResendVerification(ctx, "ani@tk.sch.id"))
	require.NoError(t, c.SignOut(ctx, "tok"))
	u, err := c.GetUser(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.AppMetadata["role"])
	assert.Error(t, c.Health(ctx))
}

func TestEmailConfirmed(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer confirmed":
			_, _ = w.Write([]byte(`{"id":"u1","email_confirmed_at":"2024-03-01T07:00:00Z"}`))
		case "Bearer pending":
			_, _ = w.Write([]byte(`{"id":"u2","user_metadata":{"email_verified":true}}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":401,"msg":"invalid JWT"}`))
		}
	})
	ctx := context.Background()

	ok, err := c.EmailConfirmed(ctx, "confirmed")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.EmailConfirmed(ctx, "pending")
	require.NoError(t, err)
	assert.False(t, ok, "user metadata does not confirm an email")

	_, err = c.EmailConfirmed(ctx, "expired")
	ae, isAuth := AsError(err)
	require.True(t, isAuth)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
}

func TestHealth(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		_, _ = w.Write([]byte(`{"name":"GoTrue"}`))
	})
	assert.NoError(t, c.Health(context.Background()))
}
