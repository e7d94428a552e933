package models

import (
	"time"
)

// VideoRecord is the normalized shape of a channel video
type VideoRecord struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Thumbnail    string `json:"thumbnail"`
	PublishedAt  string `json:"published_at"`
	ChannelTitle string `json:"channel_title"`
	YouTubeURL   string `json:"youtube_url"`
}

// ChannelInfo identifies the authenticated user's channel
type ChannelInfo struct {
	ChannelID         string `json:"channel_id"`
	UploadsPlaylistID string `json:"uploads_playlist_id"`
}

// CachedVideoSet is the aggregated "all videos for user" result
type CachedVideoSet struct {
	Videos       []VideoRecord `json:"videos"`
	Total        int           `json:"total"`
	ChannelInfo  ChannelInfo   `json:"channel_info"`
	CachedAt     time.Time     `json:"cached_at"`
	RequestsMade int           `json:"requests_made"`
	// Truncated marks a list cut short by the request ceiling.
	Truncated bool `json:"truncated,omitempty"`
	FromCache bool `json:"from_cache"`
}
