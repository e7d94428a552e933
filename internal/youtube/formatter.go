package youtube

import (
	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

// thumbnailPreference lists renditions from most to least preferred
var thumbnailPreference = []string{"high", "medium", "default"}

// FormatVideo normalizes a direct video lookup
func FormatVideo(v Video) models.VideoRecord {
	return newVideoRecord(v.ID, v.Snippet)
}

// FormatPlaylistItem normalizes an uploads playlist entry. It yields the same
// fields as FormatVideo.
func FormatPlaylistItem(item PlaylistItem) models.VideoRecord {
	videoID := item.Snippet.ResourceID.VideoID
	if videoID == "" {
		videoID = item.ContentDetails.VideoID
	}
	return newVideoRecord(videoID, item.Snippet.VideoSnippet)
}

func newVideoRecord(videoID string, s VideoSnippet) models.VideoRecord {
	return models.VideoRecord{
		VideoID:      videoID,
		Title:        s.Title,
		Description:  s.Description,
		Thumbnail:    bestThumbnail(s.Thumbnails),
		PublishedAt:  s.PublishedAt,
		ChannelTitle: s.ChannelTitle,
		YouTubeURL:   watchURLPrefix + videoID,
	}
}

func bestThumbnail(thumbs Thumbnails) string {
	for _, name := range thumbnailPreference {
		if t, ok := thumbs[name]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

// FormatCommentThread normalizes the top-level comment of a thread
func FormatCommentThread(thread CommentThread, videoID string) models.CommentRecord {
	top := thread.Snippet.TopLevelComment

	commentID := top.ID
	if commentID == "" {
		commentID = thread.ID
	}
	text := top.Snippet.TextOriginal
	if text == "" {
		text = top.Snippet.TextDisplay
	}

	return models.CommentRecord{
		CommentID: commentID,
		Text:      text,
		Label:     0,
		Source:    "Video: " + videoID,
		Timestamp: top.Snippet.PublishedAt,
		UserMetadata: models.CommentAuthor{
			Username:   top.Snippet.AuthorDisplayName,
			UserID:     top.Snippet.AuthorChannelID.Value,
			ProfileURL: top.Snippet.AuthorChannelURL,
		},
		Status: models.CommentStatusDraft,
	}
}
