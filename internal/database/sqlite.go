package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
	_ "modernc.org/sqlite"
)

// SQLiteQuotaStore keeps the quota ledger in a local SQLite file.
// Dates and timestamps are stored as TEXT.
type SQLiteQuotaStore struct {
	db *sql.DB
}

// NewSQLiteQuotaStore opens (or creates) the database at path
func NewSQLiteQuotaStore(path string) (*SQLiteQuotaStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("quota store: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("quota store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if err := initSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("quota store: init schema: %w", err)
	}

	return &SQLiteQuotaStore{db: db}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_quotas (
			user_id                        TEXT PRIMARY KEY,
			daily_video_analysis_limit     INTEGER NOT NULL,
			daily_comment_moderation_limit INTEGER NOT NULL,
			created_at                     TEXT NOT NULL,
			updated_at                     TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS quota_usages (
			user_id                  TEXT NOT NULL,
			date                     TEXT NOT NULL,
			videos_analyzed_count    INTEGER NOT NULL DEFAULT 0,
			comments_moderated_count INTEGER NOT NULL DEFAULT 0,
			youtube_quota_used       INTEGER NOT NULL DEFAULT 0,
			created_at               TEXT NOT NULL,
			updated_at               TEXT NOT NULL,
			UNIQUE (user_id, date)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database
func (s *SQLiteQuotaStore) Close() error {
	return s.db.Close()
}

func sqliteNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseSQLiteTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339, v)
	return t
}

// GetOrCreateLimits returns the user's quota row, inserting defaults first if needed
func (s *SQLiteQuotaStore) GetOrCreateLimits(ctx context.Context, defaults models.UserQuota) (*models.UserQuota, error) {
	now := sqliteNow()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_quotas (user_id, daily_video_analysis_limit, daily_comment_moderation_limit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		defaults.UserID, defaults.DailyVideoAnalysisLimit, defaults.DailyCommentModerationLimit, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("quota store: create limits: %w", err)
	}

	var (
		quota              models.UserQuota
		createdAt, updated string
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT user_id, daily_video_analysis_limit, daily_comment_moderation_limit, created_at, updated_at
		FROM user_quotas WHERE user_id = ?`, defaults.UserID,
	).Scan(&quota.UserID, &quota.DailyVideoAnalysisLimit, &quota.DailyCommentModerationLimit, &createdAt, &updated)
	if err != nil {
		return nil, fmt.Errorf("quota store: get limits: %w", err)
	}
	quota.CreatedAt = parseSQLiteTime(createdAt)
	quota.UpdatedAt = parseSQLiteTime(updated)

	return &quota, nil
}

// UpdateLimits overwrites the user's daily limits
func (s *SQLiteQuotaStore) UpdateLimits(ctx context.Context, quota *models.UserQuota) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE user_quotas
		SET daily_video_analysis_limit = ?, daily_comment_moderation_limit = ?, updated_at = ?
		WHERE user_id = ?`,
		quota.DailyVideoAnalysisLimit, quota.DailyCommentModerationLimit, sqliteNow(), quota.UserID,
	)
	if err != nil {
		return fmt.Errorf("quota store: update limits: %w", err)
	}
	return nil
}

// GetUsage returns the usage row for a day, or nil when none exists
func (s *SQLiteQuotaStore) GetUsage(ctx context.Context, userID, day string) (*models.QuotaUsage, error) {
	var (
		usage              models.QuotaUsage
		createdAt, updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, date, videos_analyzed_count, comments_moderated_count, youtube_quota_used, created_at, updated_at
		FROM quota_usages WHERE user_id = ? AND date = ?`, userID, day,
	).Scan(&usage.UserID, &usage.Date, &usage.VideosAnalyzedCount, &usage.CommentsModeratedCount,
		&usage.YouTubeQuotaUsed, &createdAt, &updated)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("quota store: get usage: %w", err)
	}
	usage.CreatedAt = parseSQLiteTime(createdAt)
	usage.UpdatedAt = parseSQLiteTime(updated)

	return &usage, nil
}

// IncrementUsage adds n to one counter of the (user, day) row inside a transaction
func (s *SQLiteQuotaStore) IncrementUsage(ctx context.Context, userID, day string, counter models.UsageCounter, n int) error {
	if !counter.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCounter, string(counter))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("quota store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := sqliteNow()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO quota_usages (user_id, date, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO NOTHING`, userID, day, now, now,
	); err != nil {
		return fmt.Errorf("quota store: create usage: %w", err)
	}

	query := fmt.Sprintf(
		`UPDATE quota_usages SET %[1]s = %[1]s + ?, updated_at = ? WHERE user_id = ? AND date = ?`,
		string(counter),
	)
	if _, err := tx.ExecContext(ctx, query, n, now, userID, day); err != nil {
		return fmt.Errorf("quota store: increment %s: %w", counter, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("quota store: commit: %w", err)
	}
	return nil
}

// DeleteUsage removes the usage row for one day
func (s *SQLiteQuotaStore) DeleteUsage(ctx context.Context, userID, day string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM quota_usages WHERE user_id = ? AND date = ?`, userID, day); err != nil {
		return fmt.Errorf("quota store: delete usage: %w", err)
	}
	return nil
}

// DeleteUsageBefore removes all usage rows dated strictly before day
func (s *SQLiteQuotaStore) DeleteUsageBefore(ctx context.Context, day string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quota_usages WHERE date < ?`, day)
	if err != nil {
		return 0, fmt.Errorf("quota store: purge usage: %w", err)
	}
	return res.RowsAffected()
}
