package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
	"github.com/jackc/pgx/v5"
)

// ErrInvalidCounter is returned for a usage column outside the known set
var ErrInvalidCounter = errors.New("invalid usage counter")

// GetOrCreateLimits returns the user's quota row, inserting defaults first if needed
func (r *Repository) GetOrCreateLimits(ctx context.Context, defaults models.UserQuota) (*models.UserQuota, error) {
	insert := `
		INSERT INTO user_quotas (user_id, daily_video_analysis_limit, daily_comment_moderation_limit)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.db.Pool.Exec(ctx, insert,
		defaults.UserID, defaults.DailyVideoAnalysisLimit, defaults.DailyCommentModerationLimit,
	); err != nil {
		return nil, fmt.Errorf("failed to create user quota: %w", err)
	}

	var quota models.UserQuota
	query := `
		SELECT user_id, daily_video_analysis_limit, daily_comment_moderation_limit, created_at, updated_at
		FROM user_quotas
		WHERE user_id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, defaults.UserID).Scan(
		&quota.UserID, &quota.DailyVideoAnalysisLimit, &quota.DailyCommentModerationLimit,
		&quota.CreatedAt, &quota.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user quota: %w", err)
	}

	return &quota, nil
}

// UpdateLimits overwrites the user's daily limits
func (r *Repository) UpdateLimits(ctx context.Context, quota *models.UserQuota) error {
	query := `
		UPDATE user_quotas
		SET daily_video_analysis_limit = $2, daily_comment_moderation_limit = $3, updated_at = NOW()
		WHERE user_id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		quota.UserID, quota.DailyVideoAnalysisLimit, quota.DailyCommentModerationLimit,
	)
	if err != nil {
		return fmt.Errorf("failed to update user quota: %w", err)
	}

	return nil
}

// GetUsage returns the usage row for a day, or nil when none exists
func (r *Repository) GetUsage(ctx context.Context, userID, day string) (*models.QuotaUsage, error) {
	var usage models.QuotaUsage

	query := `
		SELECT user_id, to_char(date, 'YYYY-MM-DD'), videos_analyzed_count,
		       comments_moderated_count, youtube_quota_used, created_at, updated_at
		FROM quota_usages
		WHERE user_id = $1 AND date = $2::date
	`

	err := r.db.Pool.QueryRow(ctx, query, userID, day).Scan(
		&usage.UserID, &usage.Date, &usage.VideosAnalyzedCount,
		&usage.CommentsModeratedCount, &usage.YouTubeQuotaUsed,
		&usage.CreatedAt, &usage.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quota usage: %w", err)
	}

	return &usage, nil
}

// IncrementUsage adds n to one counter of the (user, day) row, creating it if needed.
// The upsert is a single statement so concurrent increments never lose updates.
func (r *Repository) IncrementUsage(ctx context.Context, userID, day string, counter models.UsageCounter, n int) error {
	if !counter.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCounter, string(counter))
	}

	query := fmt.Sprintf(`
		INSERT INTO quota_usages (user_id, date, %[1]s)
		VALUES ($1, $2::date, $3)
		ON CONFLICT (user_id, date) DO UPDATE
		SET %[1]s = quota_usages.%[1]s + EXCLUDED.%[1]s, updated_at = NOW()
	`, string(counter))

	if _, err := r.db.Pool.Exec(ctx, query, userID, day, n); err != nil {
		return fmt.Errorf("failed to increment %s: %w", counter, err)
	}

	return nil
}

// DeleteUsage removes the usage row for one day
func (r *Repository) DeleteUsage(ctx context.Context, userID, day string) error {
	query := `DELETE FROM quota_usages WHERE user_id = $1 AND date = $2::date`

	if _, err := r.db.Pool.Exec(ctx, query, userID, day); err != nil {
		return fmt.Errorf("failed to delete quota usage: %w", err)
	}

	return nil
}

// DeleteUsageBefore removes all usage rows dated strictly before day
func (r *Repository) DeleteUsageBefore(ctx context.Context, day string) (int64, error) {
	query := `DELETE FROM quota_usages WHERE date < $1::date`

	tag, err := r.db.Pool.Exec(ctx, query, day)
	if err != nil {
		return 0, fmt.Errorf("failed to purge quota usage: %w", err)
	}

	return tag.RowsAffected(), nil
}
