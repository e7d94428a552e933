package models

// CommentStatus is the moderation state of an ingested comment
type CommentStatus string

const (
	CommentStatusDraft CommentStatus = "draft"
)

// CommentRecord is the normalized shape of a top-level comment
type CommentRecord struct {
	CommentID    string        `json:"comment_id"`
	Text         string        `json:"text"`
	Label        int           `json:"label"`
	Source       string        `json:"source"`
	Timestamp    string        `json:"timestamp"`
	UserMetadata CommentAuthor `json:"user_metadata"`
	Status       CommentStatus `json:"status"`
}

// CommentAuthor describes who wrote a comment
type CommentAuthor struct {
	Username   string `json:"username"`
	UserID     string `json:"user_id"`
	ProfileURL string `json:"profile_url"`
}

// ModerationStatus values accepted by the YouTube moderation endpoint
type ModerationStatus string

const (
	ModerationHeldForReview ModerationStatus = "heldForReview"
	ModerationRejected      ModerationStatus = "rejected"
	ModerationPublished     ModerationStatus = "published"
)

// Valid reports whether the moderation status is supported
func (s ModerationStatus) Valid() bool {
	switch s {
	case ModerationHeldForReview, ModerationRejected, ModerationPublished:
		return true
	}
	return false
}
