// Package oauth exchanges Google refresh tokens for new access tokens.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultTimeout = 60 * time.Second

var (
	ErrMissingRefreshToken = errors.New("refresh token is empty")
	ErrNoAccessToken       = errors.New("token response has no access_token")
)

// TokenError is a non-2xx answer from the token endpoint
type TokenError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *TokenError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("token endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("token endpoint returned status %d: %s %s", e.StatusCode, e.Code, e.Description)
}

// Client runs the refresh_token grant against the Google token endpoint
type Client struct {
	config *oauth2.Config
	http   *http.Client
}

// NewClient creates a token endpoint client
func NewClient(cfg config.GoogleConfig) *Client {
	endpoint := endpoints.Google
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	// Google accepts the client credentials in the form body.
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
		},
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// RefreshAccessToken exchanges a refresh token for a new access token
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrMissingRefreshToken
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	token, err := c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			tokenErr := &TokenError{
				Code:        retrieveErr.ErrorCode,
				Description: retrieveErr.ErrorDescription,
			}
			if retrieveErr.Response != nil {
				tokenErr.StatusCode = retrieveErr.Response.StatusCode
			}
			return "", tokenErr
		}
		return "", fmt.Errorf("token request failed: %w", err)
	}
	if token.AccessToken == "" {
		return "", ErrNoAccessToken
	}

	return token.AccessToken, nil
}
