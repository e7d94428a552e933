package models

import (
	"time"
)

const (
	DefaultDailyVideoAnalysisLimit     = 5
	DefaultDailyCommentModerationLimit = 40
)

// UserQuota holds the per-user daily limits
type UserQuota struct {
	UserID                      string    `json:"user_id" db:"user_id"`
	DailyVideoAnalysisLimit     int       `json:"daily_video_analysis_limit" db:"daily_video_analysis_limit"`
	DailyCommentModerationLimit int       `json:"daily_comment_moderation_limit" db:"daily_comment_moderation_limit"`
	CreatedAt                   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt                   time.Time `json:"updated_at" db:"updated_at"`
}

// QuotaUsage holds the counters of a single user for a single calendar day
type QuotaUsage struct {
	UserID                 string    `json:"user_id" db:"user_id"`
	Date                   string    `json:"date" db:"date"` // YYYY-MM-DD
	VideosAnalyzedCount    int       `json:"videos_analyzed_count" db:"videos_analyzed_count"`
	CommentsModeratedCount int       `json:"comments_moderated_count" db:"comments_moderated_count"`
	YouTubeQuotaUsed       int       `json:"youtube_quota_used" db:"youtube_quota_used"`
	CreatedAt              time.Time `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time `json:"updated_at" db:"updated_at"`
}

// UsageCounter names one of the incrementable QuotaUsage columns
type UsageCounter string

const (
	CounterVideosAnalyzed    UsageCounter = "videos_analyzed_count"
	CounterCommentsModerated UsageCounter = "comments_moderated_count"
	CounterYouTubeQuotaUsed  UsageCounter = "youtube_quota_used"
)

// Valid reports whether the counter is a known usage column
func (c UsageCounter) Valid() bool {
	switch c {
	case CounterVideosAnalyzed, CounterCommentsModerated, CounterYouTubeQuotaUsed:
		return true
	}
	return false
}

// DateLayout is the layout of QuotaUsage.Date
const DateLayout = "2006-01-02"
