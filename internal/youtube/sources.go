package youtube

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
)

// MessageNoComments is returned when a video has no top-level comments
const MessageNoComments = "Tidak ada komentar yang tersedia untuk video ini."

// ParseChannel extracts the channel and uploads playlist from GET /channels.
// ok is false when the user has no channel.
func ParseChannel(body []byte) (info models.ChannelInfo, ok bool, err error) {
	var list ChannelListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return models.ChannelInfo{}, false, fmt.Errorf("failed to decode channels response: %w", err)
	}
	if len(list.Items) == 0 {
		return models.ChannelInfo{}, false, nil
	}

	channel := list.Items[0]
	info = models.ChannelInfo{
		ChannelID:         channel.ID,
		UploadsPlaylistID: channel.ContentDetails.RelatedPlaylists.Uploads,
	}
	return info, info.UploadsPlaylistID != "", nil
}

// ParsePlaylistItems decodes one playlistItems page into video records
func ParsePlaylistItems(body []byte) ([]models.VideoRecord, string, error) {
	var page PlaylistItemListResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", fmt.Errorf("failed to decode playlistItems response: %w", err)
	}

	videos := make([]models.VideoRecord, 0, len(page.Items))
	for _, item := range page.Items {
		videos = append(videos, FormatPlaylistItem(item))
	}
	return videos, page.NextPageToken, nil
}

// CommentThreadParser decodes commentThreads pages of videoID
func CommentThreadParser(videoID string) ParsePageFunc[models.CommentRecord] {
	return func(body []byte) ([]models.CommentRecord, string, error) {
		var page CommentThreadListResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, "", fmt.Errorf("failed to decode commentThreads response: %w", err)
		}

		comments := make([]models.CommentRecord, 0, len(page.Items))
		for _, thread := range page.Items {
			comments = append(comments, FormatCommentThread(thread, videoID))
		}
		return comments, page.NextPageToken, nil
	}
}

// VideoSource pages through an uploads playlist
func (c *Client) VideoSource(playlistID string, maxResults int) PageSource[models.VideoRecord] {
	return PageSource[models.VideoRecord]{
		Name: "videos",
		Kind: KindVideo,
		Fetch: func(ctx context.Context, accessToken, cursor string) (*Response, error) {
			return c.ListPlaylistItems(ctx, accessToken, playlistID, maxResults, cursor)
		},
		Parse: ParsePlaylistItems,
	}
}

// CommentSource pages through the top-level comments of a video
func (c *Client) CommentSource(videoID string, maxResults int) PageSource[models.CommentRecord] {
	return PageSource[models.CommentRecord]{
		Name: "comments",
		Kind: KindComments,
		Fetch: func(ctx context.Context, accessToken, cursor string) (*Response, error) {
			return c.ListCommentThreads(ctx, accessToken, videoID, maxResults, cursor)
		},
		Parse:        CommentThreadParser(videoID),
		EmptyMessage: MessageNoComments,
	}
}
