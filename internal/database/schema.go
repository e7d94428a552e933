package database

// Statements are executed one at a time; pgx does not run multi-statement
// strings through the extended protocol.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            VARCHAR(64) PRIMARY KEY,
		name          VARCHAR(255) NOT NULL,
		email         VARCHAR(255) NOT NULL UNIQUE,
		google_id     VARCHAR(255),
		avatar        TEXT,
		role          VARCHAR(16) NOT NULL DEFAULT 'user',
		access_token  TEXT,
		refresh_token TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS user_quotas (
		user_id                        VARCHAR(64) PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		daily_video_analysis_limit     INTEGER NOT NULL DEFAULT 5,
		daily_comment_moderation_limit INTEGER NOT NULL DEFAULT 40,
		created_at                     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at                     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS quota_usages (
		id                       BIGSERIAL PRIMARY KEY,
		user_id                  VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		date                     DATE NOT NULL,
		videos_analyzed_count    INTEGER NOT NULL DEFAULT 0,
		comments_moderated_count INTEGER NOT NULL DEFAULT 0,
		youtube_quota_used       INTEGER NOT NULL DEFAULT 0,
		created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quota_usages_date ON quota_usages(date)`,
	`CREATE TABLE IF NOT EXISTS analyses (
		id               VARCHAR(64) PRIMARY KEY,
		user_id          VARCHAR(64) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		video_id         VARCHAR(64) NOT NULL,
		status           VARCHAR(16) NOT NULL DEFAULT 'queued',
		comments_object  TEXT,
		judol_object     TEXT,
		non_judol_object TEXT,
		total_comments   INTEGER NOT NULL DEFAULT 0,
		message          TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at     TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_user_id ON analyses(user_id)`,
}
