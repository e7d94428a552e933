package youtube

import (
	"context"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/metrics"
	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
)

const (
	MessageRefreshUnavailable = "Refresh token tidak tersedia. Silakan login ulang."
	MessageTokenInvalid       = "Token tidak valid atau telah dicabut. Silakan login ulang."
	MessageFailedAfterRefresh = "Permintaan ke YouTube tetap gagal setelah token diperbarui."
)

// TokenExchanger trades a refresh token for a new access token
type TokenExchanger interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
}

// CredentialStore persists a refreshed access token
type CredentialStore interface {
	UpdateAccessToken(ctx context.Context, userID, accessToken string) error
}

// RetryFunc repeats the failed call with a new access token
type RetryFunc func(ctx context.Context, accessToken string) (*Response, error)

// RefreshResult is the terminal state of one coordinated call
type RefreshResult struct {
	Success bool
	// Refreshed is set once a new access token was obtained.
	Refreshed bool
	// Response is the initial response, or the retried one after a refresh.
	Response *Response
	Message  string
	Err      error
}

// Coordinator refreshes an expired access token at most once and retries
// the failed call at most once.
type Coordinator struct {
	exchanger TokenExchanger
	store     CredentialStore
	logger    *logging.Logger
}

// NewCoordinator creates a token refresh coordinator
func NewCoordinator(exchanger TokenExchanger, store CredentialStore, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{
		exchanger: exchanger,
		store:     store,
		logger:    logger.WithComponent("token_refresh"),
	}
}

// Handle inspects only the status of initial. Anything but 401 is forwarded
// unchanged.
func (c *Coordinator) Handle(ctx context.Context, user *models.User, initial *Response, retry RetryFunc) RefreshResult {
	if !initial.Unauthorized() {
		return RefreshResult{
			Success:  initial.Successful(),
			Response: initial,
		}
	}

	log := c.logger.WithUserID(user.ID)

	if !user.HasRefreshToken() {
		metrics.RecordTokenRefresh("unavailable")
		log.Warn("Access token expired and no refresh token is stored")
		return RefreshResult{
			Response: initial,
			Message:  MessageRefreshUnavailable,
		}
	}

	accessToken, err := c.exchanger.RefreshAccessToken(ctx, user.RefreshToken)
	if err != nil {
		metrics.RecordTokenRefresh("failed")
		log.ErrorWithErr("Failed to refresh access token", err)
		return RefreshResult{
			Response: initial,
			Message:  MessageTokenInvalid,
			Err:      err,
		}
	}
	metrics.RecordTokenRefresh("success")

	user.AccessToken = accessToken
	if c.store != nil {
		if err := c.store.UpdateAccessToken(ctx, user.ID, accessToken); err != nil {
			// The in-memory token is still usable for this operation.
			log.ErrorWithErr("Failed to persist refreshed access token", err)
		}
	}
	log.Info("Access token refreshed")

	retried, err := retry(ctx, accessToken)
	if err != nil {
		log.ErrorWithErr("Retry after token refresh failed", err)
		return RefreshResult{
			Refreshed: true,
			Message:   MessageFailedAfterRefresh,
			Err:       err,
		}
	}
	if !retried.Successful() {
		log.WithField("status", retried.StatusCode).Warn("Request still failing after token refresh")
		return RefreshResult{
			Refreshed: true,
			Response:  retried,
			Message:   MessageFailedAfterRefresh,
		}
	}

	return RefreshResult{
		Success:   true,
		Refreshed: true,
		Response:  retried,
	}
}

// Failure describes an unsuccessful result. kind classifies a retried
// response that failed for a reason other than authorization.
func (r RefreshResult) Failure(kind ErrorKind) *Failure {
	f := &Failure{Message: r.Message, Err: r.Err, Outcome: OutcomeUnauthorized}
	if !r.Refreshed {
		return f
	}

	switch {
	case r.Response == nil:
		f.Outcome = OutcomeUnknown
	case !r.Response.Unauthorized():
		cls := Classify(kind, r.Response)
		f.Outcome = cls.Outcome
		f.Reason = cls.Reason
	}
	return f
}
