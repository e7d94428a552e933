package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(url string) *Client {
	return NewClient(config.GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     url,
		Timeout:      5 * time.Second,
	})
}

func TestRefreshAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-123", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"ya29.new","expires_in":3599,"token_type":"Bearer"}`))
	}))
	defer server.Close()

	token, err := newTestClient(server.URL).RefreshAccessToken(context.Background(), "refresh-123")
	require.NoError(t, err)
	assert.Equal(t, "ya29.new", token)
}

func TestRefreshAccessToken_InvalidGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).RefreshAccessToken(context.Background(), "revoked")
	require.Error(t, err)

	var tokenErr *TokenError
	require.True(t, errors.As(err, &tokenErr))
	assert.Equal(t, http.StatusBadRequest, tokenErr.StatusCode)
	assert.Equal(t, "invalid_grant", tokenErr.Code)
	assert.Equal(t, "Token has been expired or revoked.", tokenErr.Description)
}

func TestRefreshAccessToken_MissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).RefreshAccessToken(context.Background(), "refresh-123")
	require.Error(t, err)

	var tokenErr *TokenError
	assert.False(t, errors.As(err, &tokenErr), "a 200 without a token is not an endpoint rejection")
}

func TestRefreshAccessToken_EmptyRefreshToken(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).RefreshAccessToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingRefreshToken)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestRefreshAccessToken_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(config.GoogleConfig{TokenURL: server.URL, Timeout: 20 * time.Millisecond})
	_, err := client.RefreshAccessToken(context.Background(), "refresh-123")
	assert.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(config.GoogleConfig{})
	assert.Equal(t, "https://oauth2.googleapis.com/token", client.config.Endpoint.TokenURL)
	assert.Equal(t, oauth2.AuthStyleInParams, client.config.Endpoint.AuthStyle)
	assert.Equal(t, 60*time.Second, client.http.Timeout)
}
