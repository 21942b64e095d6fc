package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, uid, email string, exp time.Time) string {
	t.Helper()
	claims := IDTokenClaims{
		Email:  email,
		UserID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestProviderSignInWithPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts:signInWithPassword", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("X-Goog-Api-Key"))
		assert.Empty(t, r.URL.RawQuery)

		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "ann@example.com", in["email"])
		assert.Equal(t, true, in["returnSecureToken"])

		_, _ = io.WriteString(w, `{"localId":"uid-1","email":"ann@example.com","idToken":"opaque","refreshToken":"r1","expiresIn":"3600"}`)
	}))
	defer srv.Close()

	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	p := NewProvider("key-1", srv.URL, srv.URL, srv.Client())
	p.now = func() time.Time { return now }

	id, err := p.SignInWithPassword(context.Background(), "ann@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", id.UID)
	assert.Equal(t, "r1", id.RefreshToken)
	assert.Equal(t, now.Add(time.Hour), id.ExpiresAt)
}

func TestProviderErrorIsVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"EMAIL_EXISTS"}}`)
	}))
	defer srv.Close()

	_, err := NewProvider("k", srv.URL, srv.URL, nil).SignUp(context.Background(), "a@b", "pw")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "EMAIL_EXISTS", perr.Error())
	assert.Equal(t, http.StatusBadRequest, perr.Code)
}

func TestProviderMissingKey(t *testing.T) {
	_, err := NewProvider("", "http://unused", "http://unused", nil).SignInWithPassword(context.Background(), "a", "b")
	assert.Error(t, err)
}

func TestProviderSignInWithIdPUsesTokenClaims(t *testing.T) {
	exp := time.Date(2026, 10, 18, 13, 0, 0, 0, time.UTC)
	token := signedToken(t, "g-uid", "g@example.com", exp)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts:signInWithIdp", r.URL.Path)
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		post, err := url.ParseQuery(in["postBody"].(string))
		require.NoError(t, err)
		assert.Equal(t, "google.com", post.Get("providerId"))
		assert.Equal(t, "google-id-token", post.Get("id_token"))

		_ = json.NewEncoder(w).Encode(map[string]string{"idToken": token, "refreshToken": "r"})
	}))
	defer srv.Close()

	id, err := NewProvider("k", srv.URL, srv.URL, nil).SignInWithIdP(context.Background(), "google.com", "google-id-token")
	require.NoError(t, err)
	assert.Equal(t, "g-uid", id.UID)
	assert.Equal(t, "g@example.com", id.Email)
	assert.True(t, id.ExpiresAt.Equal(exp))
}

func TestProviderRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-Goog-Api-Key"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "r1", r.PostForm.Get("refresh_token"))
		_, _ = io.WriteString(w, `{"user_id":"uid-1","id_token":"new","refresh_token":"r2","expires_in":"3600"}`)
	}))
	defer srv.Close()

	id, err := NewProvider("k", srv.URL, srv.URL, nil).Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "new", id.IDToken)
	assert.Equal(t, "r2", id.RefreshToken)
	assert.Equal(t, "uid-1", id.UID)
}

func TestParseIDToken(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	claims, err := ParseIDToken(signedToken(t, "u", "e@x", exp))
	require.NoError(t, err)
	assert.Equal(t, "u", claims.UID())
	assert.Equal(t, "e@x", claims.Email)

	_, err = ParseIDToken("not-a-jwt")
	assert.Error(t, err)
	_, err = ParseIDToken("")
	assert.Error(t, err)
}

func TestProviderTransportErrorDoesNotLeakKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	p := NewProvider("very-secret-key", base, base, nil)
	_, err := p.SignInWithPassword(context.Background(), "a@b", "pw")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "very-secret-key")

	_, err = p.Refresh(context.Background(), "r1")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "very-secret-key")
}
