// Package quota tracks and enforces the daily per-user limits for video
// analysis and comment moderation, and meters YouTube API cost units.
//
// Allowance checks and consumption are separate calls: a caller checks, runs
// the external operation, and consumes only after it succeeded.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/config"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/metrics"
	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
)

// Kind is a countable, limited operation
type Kind string

const (
	KindVideoAnalysis     Kind = "video_analysis"
	KindCommentModeration Kind = "comment_moderation"
)

// counter maps a kind to its usage column
func (k Kind) counter() (models.UsageCounter, error) {
	switch k {
	case KindVideoAnalysis:
		return models.CounterVideosAnalyzed, nil
	case KindCommentModeration:
		return models.CounterCommentsModerated, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
}

var (
	ErrUnknownKind  = errors.New("unknown quota kind")
	ErrInvalidLimit = errors.New("quota limits must not be negative")
)

// Store persists quota configuration and daily usage.
//
// IncrementUsage must create the (user, day) row when missing and add n to
// the counter atomically with respect to concurrent increments.
type Store interface {
	GetOrCreateLimits(ctx context.Context, defaults models.UserQuota) (*models.UserQuota, error)
	UpdateLimits(ctx context.Context, quota *models.UserQuota) error
	GetUsage(ctx context.Context, userID, day string) (*models.QuotaUsage, error)
	IncrementUsage(ctx context.Context, userID, day string, counter models.UsageCounter, n int) error
	DeleteUsage(ctx context.Context, userID, day string) error
	DeleteUsageBefore(ctx context.Context, day string) (int64, error)
}

// Limits are the daily limits of one user
type Limits struct {
	VideoLimit   int `json:"video_limit"`
	CommentLimit int `json:"comment_limit"`
}

// Allowance is the result of an allowance check
type Allowance struct {
	Allowed   bool `json:"allowed"`
	Limit     int  `json:"limit"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
}

// Usage is one limited counter in a snapshot
type Usage struct {
	Limit     int `json:"limit"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// Meter is an unlimited counter in a snapshot
type Meter struct {
	Used int `json:"used"`
}

// Snapshot is the full quota state of a user for today
type Snapshot struct {
	VideoAnalysis     Usage     `json:"video_analysis"`
	CommentModeration Usage     `json:"comment_moderation"`
	YouTubeAPI        Meter     `json:"youtube_api"`
	Date              string    `json:"date"`
	ResetsAt          time.Time `json:"resets_at"`
}

// Ledger gates and meters per-user daily operations
type Ledger struct {
	store    Store
	defaults Limits
	loc      *time.Location
	now      func() time.Time
	logger   *logging.Logger
}

// NewLedger creates a ledger with limits and calendar taken from cfg
func NewLedger(store Store, cfg config.QuotaConfig, logger *logging.Logger) (*Ledger, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	defaults := Limits{
		VideoLimit:   cfg.DailyVideoAnalysisLimit,
		CommentLimit: cfg.DailyCommentModerationLimit,
	}
	// Negative limits are unset. Zero is a valid limit that blocks the kind.
	if defaults.VideoLimit < 0 {
		defaults.VideoLimit = models.DefaultDailyVideoAnalysisLimit
	}
	if defaults.CommentLimit < 0 {
		defaults.CommentLimit = models.DefaultDailyCommentModerationLimit
	}

	if logger == nil {
		logger = logging.Nop()
	}

	return &Ledger{
		store:    store,
		defaults: defaults,
		loc:      loc,
		now:      time.Now,
		logger:   logger.WithComponent("quota"),
	}, nil
}

// WithClock replaces the ledger's time source
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// today returns midnight of the current calendar day in the ledger location
func (l *Ledger) today() time.Time {
	t := l.now().In(l.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, l.loc)
}

func (l *Ledger) todayKey() string {
	return l.today().Format(models.DateLayout)
}

// GetLimit returns the user's limits, creating the default row on first access
func (l *Ledger) GetLimit(ctx context.Context, userID string) (Limits, error) {
	q, err := l.store.GetOrCreateLimits(ctx, models.UserQuota{
		UserID:                      userID,
		DailyVideoAnalysisLimit:     l.defaults.VideoLimit,
		DailyCommentModerationLimit: l.defaults.CommentLimit,
	})
	if err != nil {
		metrics.RecordQuotaStoreError("get_limit")
		return Limits{}, fmt.Errorf("failed to get quota limits: %w", err)
	}

	return Limits{
		VideoLimit:   q.DailyVideoAnalysisLimit,
		CommentLimit: q.DailyCommentModerationLimit,
	}, nil
}

// UpdateLimits changes the user's daily limits
func (l *Ledger) UpdateLimits(ctx context.Context, userID string, limits Limits) error {
	if limits.VideoLimit < 0 || limits.CommentLimit < 0 {
		return ErrInvalidLimit
	}

	// Make sure the row exists before updating it.
	if _, err := l.GetLimit(ctx, userID); err != nil {
		return err
	}

	err := l.store.UpdateLimits(ctx, &models.UserQuota{
		UserID:                      userID,
		DailyVideoAnalysisLimit:     limits.VideoLimit,
		DailyCommentModerationLimit: limits.CommentLimit,
	})
	if err != nil {
		metrics.RecordQuotaStoreError("update_limits")
		return fmt.Errorf("failed to update quota limits: %w", err)
	}

	l.logger.LogQuotaEvent(userID, "limits", "updated", map[string]interface{}{
		"video_limit":   limits.VideoLimit,
		"comment_limit": limits.CommentLimit,
	})
	return nil
}

// todayUsage returns today's usage, a zero value when no row exists yet.
// It never creates the row.
func (l *Ledger) todayUsage(ctx context.Context, userID string) (*models.QuotaUsage, error) {
	day := l.todayKey()
	usage, err := l.store.GetUsage(ctx, userID, day)
	if err != nil {
		metrics.RecordQuotaStoreError("get_usage")
		return nil, fmt.Errorf("failed to get quota usage: %w", err)
	}
	if usage == nil {
		usage = &models.QuotaUsage{UserID: userID, Date: day}
	}
	return usage, nil
}

// CheckVideoAllowance reports whether the user may analyze another video today
func (l *Ledger) CheckVideoAllowance(ctx context.Context, userID string) (Allowance, error) {
	return l.checkAllowance(ctx, userID, KindVideoAnalysis)
}

// CheckCommentAllowance reports whether the user may moderate more comments today
func (l *Ledger) CheckCommentAllowance(ctx context.Context, userID string) (Allowance, error) {
	return l.checkAllowance(ctx, userID, KindCommentModeration)
}

func (l *Ledger) checkAllowance(ctx context.Context, userID string, kind Kind) (Allowance, error) {
	limits, err := l.GetLimit(ctx, userID)
	if err != nil {
		return Allowance{}, err
	}

	usage, err := l.todayUsage(ctx, userID)
	if err != nil {
		return Allowance{}, err
	}

	var allowance Allowance
	switch kind {
	case KindVideoAnalysis:
		allowance = newAllowance(limits.VideoLimit, usage.VideosAnalyzedCount)
	case KindCommentModeration:
		allowance = newAllowance(limits.CommentLimit, usage.CommentsModeratedCount)
	}

	if !allowance.Allowed {
		metrics.RecordQuotaRejection(string(kind))
	}
	return allowance, nil
}

func newAllowance(limit, used int) Allowance {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Allowance{
		Allowed:   remaining > 0,
		Limit:     limit,
		Used:      used,
		Remaining: remaining,
	}
}

// Consume adds count to today's counter for kind. It reports false when
// nothing was recorded; storage errors are logged, never returned.
func (l *Ledger) Consume(ctx context.Context, userID string, kind Kind, count int) bool {
	counter, err := kind.counter()
	if err != nil {
		l.logger.WithUserID(userID).ErrorWithErr("Refusing to consume quota", err)
		return false
	}
	if count < 1 {
		l.logger.WithUserID(userID).Warnf("Refusing to consume non-positive quota count %d", count)
		return false
	}

	if !l.increment(ctx, userID, counter, count) {
		return false
	}

	metrics.RecordQuotaConsumed(string(kind), count)
	l.logger.LogQuotaEvent(userID, string(kind), "consumed", map[string]interface{}{
		"count": count,
	})
	return true
}

// TrackExternalUsage meters YouTube API cost units. It never gates anything.
func (l *Ledger) TrackExternalUsage(ctx context.Context, userID string, units int) bool {
	if units < 1 {
		return false
	}
	return l.increment(ctx, userID, models.CounterYouTubeQuotaUsed, units)
}

func (l *Ledger) increment(ctx context.Context, userID string, counter models.UsageCounter, n int) bool {
	start := time.Now()
	err := l.store.IncrementUsage(ctx, userID, l.todayKey(), counter, n)
	if err != nil {
		metrics.RecordQuotaStoreError("increment")
		l.logger.WithUserID(userID).
			WithField("counter", string(counter)).
			WithField("count", n).
			ErrorWithErr("Failed to increment quota usage", err)
		return false
	}
	l.logger.LogDatabaseOperation("increment_usage", time.Since(start), nil)
	return true
}

// Snapshot returns today's limits, usage and the next reset time
func (l *Ledger) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	limits, err := l.GetLimit(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	usage, err := l.todayUsage(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	video := newAllowance(limits.VideoLimit, usage.VideosAnalyzedCount)
	comment := newAllowance(limits.CommentLimit, usage.CommentsModeratedCount)
	today := l.today()

	return Snapshot{
		VideoAnalysis: Usage{
			Limit:     video.Limit,
			Used:      video.Used,
			Remaining: video.Remaining,
		},
		CommentModeration: Usage{
			Limit:     comment.Limit,
			Used:      comment.Used,
			Remaining: comment.Remaining,
		},
		YouTubeAPI: Meter{Used: usage.YouTubeQuotaUsed},
		Date:       today.Format(models.DateLayout),
		ResetsAt:   today.AddDate(0, 0, 1),
	}, nil
}

// ResetToday deletes today's usage row. Resetting twice is harmless.
func (l *Ledger) ResetToday(ctx context.Context, userID string) error {
	if err := l.store.DeleteUsage(ctx, userID, l.todayKey()); err != nil {
		metrics.RecordQuotaStoreError("reset")
		return fmt.Errorf("failed to reset quota usage: %w", err)
	}
	l.logger.LogQuotaEvent(userID, "usage", "reset", nil)
	return nil
}

// PurgeOlderThan deletes usage rows dated before today minus days
func (l *Ledger) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days < 0 {
		days = 0
	}
	cutoff := l.today().AddDate(0, 0, -days).Format(models.DateLayout)

	deleted, err := l.store.DeleteUsageBefore(ctx, cutoff)
	if err != nil {
		metrics.RecordQuotaStoreError("purge")
		return 0, fmt.Errorf("failed to purge quota usage: %w", err)
	}

	l.logger.Infof("Purged %d quota usage rows older than %s", deleted, cutoff)
	return deleted, nil
}
