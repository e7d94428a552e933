// Package moderation applies YouTube moderation statuses to comments within
// the user's daily comment moderation quota.
package moderation

import (
	"context"
	"fmt"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/metrics"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/quota"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/tracing"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/youtube"
	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
)

const (
	MessageInvalidStatus = "Status moderasi tidak valid."
	MessageNoComments    = "Tidak ada komentar yang dipilih."
	MessageLimitReached  = "Batas harian moderasi komentar telah tercapai. Silakan coba lagi besok."
	MessageQuotaCheck    = "Gagal memeriksa kuota moderasi. Silakan coba lagi nanti."
)

// Ledger is the part of the quota ledger used by moderation
type Ledger interface {
	CheckCommentAllowance(ctx context.Context, userID string) (quota.Allowance, error)
	Consume(ctx context.Context, userID string, kind quota.Kind, count int) bool
	TrackExternalUsage(ctx context.Context, userID string, units int) bool
}

// Request asks for one status to be applied to several comments
type Request struct {
	CommentIDs []string                `json:"comment_ids" binding:"required"`
	Status     models.ModerationStatus `json:"status" binding:"required"`
	BanAuthor  bool                    `json:"ban_author"`
}

// ItemResult is the outcome for one comment
type ItemResult struct {
	CommentID string          `json:"comment_id"`
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	Outcome   youtube.Outcome `json:"outcome,omitempty"`
}

// Result is the outcome of a moderation batch
type Result struct {
	Success       bool         `json:"success"`
	Message       string       `json:"message,omitempty"`
	QuotaExceeded bool         `json:"quota_exceeded,omitempty"`
	LimitReached  bool         `json:"limit_reached,omitempty"`
	Moderated     int          `json:"moderated"`
	Failed        int          `json:"failed"`
	Skipped       []string     `json:"skipped,omitempty"`
	Items         []ItemResult `json:"items,omitempty"`
	Remaining     int          `json:"remaining"`
	UnitsUsed     int          `json:"-"`
	// Outcome classifies an aborted batch, or a batch in which every
	// comment failed for the same reason.
	Outcome youtube.Outcome `json:"outcome,omitempty"`
}

// Service moderates comments on behalf of channel owners
type Service struct {
	client      *youtube.Client
	coordinator *youtube.Coordinator
	ledger      Ledger
	logger      *logging.Logger
}

// NewService creates a moderation service
func NewService(client *youtube.Client, coordinator *youtube.Coordinator, ledger Ledger, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		client:      client,
		coordinator: coordinator,
		ledger:      ledger,
		logger:      logger.WithComponent("moderation"),
	}
}

// Moderate applies req.Status to as many comments as today's allowance
// permits. Quota is consumed only for comments YouTube accepted.
func (s *Service) Moderate(ctx context.Context, user *models.User, req Request) Result {
	span, ctx := tracing.StartSpan(ctx, "moderation.Moderate")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "user_id", user.ID)

	log := s.logger.WithUserID(user.ID).WithField("status", string(req.Status))

	if !req.Status.Valid() {
		return Result{Message: MessageInvalidStatus, Outcome: youtube.OutcomeInvalid}
	}
	ids := dedupe(req.CommentIDs)
	if len(ids) == 0 {
		return Result{Message: MessageNoComments, Outcome: youtube.OutcomeInvalid}
	}

	allowance, err := s.ledger.CheckCommentAllowance(ctx, user.ID)
	if err != nil {
		log.ErrorWithErr("Failed to check comment allowance", err)
		return Result{Message: MessageQuotaCheck}
	}
	if !allowance.Allowed {
		return Result{Message: MessageLimitReached, LimitReached: true}
	}

	var result Result
	if len(ids) > allowance.Remaining {
		result.Skipped = ids[allowance.Remaining:]
		ids = ids[:allowance.Remaining]
	}

	var budget youtube.RefreshBudget
	for i, commentID := range ids {
		item, abort := s.moderateOne(ctx, user, commentID, req, &budget, &result.UnitsUsed, log)
		result.Items = append(result.Items, item)
		if item.Success {
			result.Moderated++
		} else {
			result.Failed++
		}

		if abort != nil {
			result.Message = abort.Message
			result.QuotaExceeded = abort.QuotaExceeded
			result.Outcome = abort.Outcome
			result.Skipped = append(append([]string{}, ids[i+1:]...), result.Skipped...)
			break
		}
	}

	if result.Moderated > 0 {
		if !s.ledger.Consume(ctx, user.ID, quota.KindCommentModeration, result.Moderated) {
			log.Errorf("Moderated %d comments but failed to record quota usage", result.Moderated)
		}
	}
	if result.UnitsUsed > 0 {
		s.ledger.TrackExternalUsage(ctx, user.ID, result.UnitsUsed)
	}

	result.Remaining = allowance.Remaining - result.Moderated
	if result.Moderated == 0 && result.Outcome == "" {
		result.Outcome = commonOutcome(result.Items)
	}
	if result.Message == "" {
		result.Success = result.Moderated > 0
		result.Message = fmt.Sprintf("%d komentar berhasil dimoderasi.", result.Moderated)
		if len(result.Skipped) > 0 {
			result.LimitReached = true
			result.Message += fmt.Sprintf(" %d komentar dilewati karena batas harian.", len(result.Skipped))
		}
	}

	log.WithField("moderated", result.Moderated).
		WithField("failed", result.Failed).
		WithField("skipped", len(result.Skipped)).
		Info("Moderation batch finished")
	return result
}

// moderateOne returns a non-nil abort failure when the rest of the batch
// must not be attempted.
func (s *Service) moderateOne(
	ctx context.Context,
	user *models.User,
	commentID string,
	req Request,
	budget *youtube.RefreshBudget,
	units *int,
	log *logging.Logger,
) (ItemResult, *youtube.Failure) {
	item := ItemResult{CommentID: commentID}
	status := string(req.Status)

	resp, err := s.client.SetModerationStatus(ctx, user.AccessToken, commentID, req.Status, req.BanAuthor)
	if err != nil {
		metrics.RecordModeration(status, "error")
		log.ErrorWithErr("Moderation request failed", err)
		item.Message = youtube.GenericErrorMessage
		item.Outcome = youtube.OutcomeUnknown
		return item, nil
	}
	*units += youtube.ModerationCost

	if resp.Unauthorized() && budget.Spend() {
		outcome := s.coordinator.Handle(ctx, user, resp, func(ctx context.Context, accessToken string) (*youtube.Response, error) {
			retried, err := s.client.SetModerationStatus(ctx, accessToken, commentID, req.Status, req.BanAuthor)
			if err == nil {
				*units += youtube.ModerationCost
			}
			return retried, err
		})
		if !outcome.Success && !outcome.Refreshed {
			metrics.RecordModeration(status, "unauthorized")
			failure := outcome.Failure(youtube.KindModeration)
			item.Message = failure.Message
			item.Outcome = failure.Outcome
			return item, failure
		}
		if outcome.Response != nil {
			resp = outcome.Response
		}
	}

	if resp.Successful() {
		metrics.RecordModeration(status, "success")
		item.Success = true
		return item, nil
	}

	cls := youtube.Classify(youtube.KindModeration, resp)
	if cls.QuotaExceeded {
		metrics.RecordModeration(status, "quota_exceeded")
		metrics.RecordQuotaExceeded("moderation")
		log.Critical("YouTube API quota exceeded during moderation")
		item.Message = cls.Message
		item.Outcome = youtube.OutcomeQuotaExceeded
		return item, &youtube.Failure{Message: cls.Message, QuotaExceeded: true, Outcome: youtube.OutcomeQuotaExceeded}
	}

	metrics.RecordModeration(status, string(cls.Outcome))
	if !cls.Known {
		log.WithField("comment_id", commentID).
			WithField("status_code", resp.StatusCode).
			WithField("response_body", string(resp.Body)).
			Error("Unexpected moderation error")
	}
	item.Message = cls.Message
	item.Outcome = cls.Outcome
	if resp.Unauthorized() {
		item.Outcome = youtube.OutcomeUnauthorized
	}
	return item, nil
}

// commonOutcome returns the outcome shared by every failed item, or unknown
// when they differ.
func commonOutcome(items []ItemResult) youtube.Outcome {
	var outcome youtube.Outcome
	for _, item := range items {
		if item.Success {
			continue
		}
		if outcome != "" && item.Outcome != outcome {
			return youtube.OutcomeUnknown
		}
		outcome = item.Outcome
	}
	return outcome
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
