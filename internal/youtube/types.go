package youtube

// Wire shapes of the YouTube Data API v3 responses consumed by this package

// ErrorBody is the error envelope returned on non-2xx responses
type ErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
			Domain  string `json:"domain"`
		} `json:"errors"`
	} `json:"error"`
}

// PageInfo is the paging summary of a list response
type PageInfo struct {
	TotalResults   int `json:"totalResults"`
	ResultsPerPage int `json:"resultsPerPage"`
}

// Thumbnail is one rendition of a video thumbnail
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Thumbnails are keyed by rendition name ("default", "medium", "high", ...)
type Thumbnails map[string]Thumbnail

// ChannelListResponse is the body of GET /channels
type ChannelListResponse struct {
	Items []Channel `json:"items"`
}

// Channel is a single channel resource
type Channel struct {
	ID             string `json:"id"`
	ContentDetails struct {
		RelatedPlaylists struct {
			Uploads string `json:"uploads"`
		} `json:"relatedPlaylists"`
	} `json:"contentDetails"`
}

// VideoSnippet is shared by video and playlist item snippets
type VideoSnippet struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	PublishedAt  string     `json:"publishedAt"`
	ChannelTitle string     `json:"channelTitle"`
	Thumbnails   Thumbnails `json:"thumbnails"`
}

// Video is a video resource as returned by GET /videos
type Video struct {
	ID      string       `json:"id"`
	Snippet VideoSnippet `json:"snippet"`
}

// PlaylistItemListResponse is the body of GET /playlistItems
type PlaylistItemListResponse struct {
	NextPageToken string         `json:"nextPageToken,omitempty"`
	PageInfo      PageInfo       `json:"pageInfo"`
	Items         []PlaylistItem `json:"items"`
}

// PlaylistItem is one entry of a playlist
type PlaylistItem struct {
	ID      string `json:"id"`
	Snippet struct {
		VideoSnippet
		ResourceID struct {
			Kind    string `json:"kind"`
			VideoID string `json:"videoId"`
		} `json:"resourceId"`
	} `json:"snippet"`
	ContentDetails struct {
		VideoID          string `json:"videoId"`
		VideoPublishedAt string `json:"videoPublishedAt"`
	} `json:"contentDetails"`
}

// CommentThreadListResponse is the body of GET /commentThreads
type CommentThreadListResponse struct {
	NextPageToken string          `json:"nextPageToken,omitempty"`
	PageInfo      PageInfo        `json:"pageInfo"`
	Items         []CommentThread `json:"items"`
}

// CommentThread is a top-level comment and its reply summary
type CommentThread struct {
	ID      string `json:"id"`
	Snippet struct {
		VideoID         string `json:"videoId"`
		TotalReplyCount int    `json:"totalReplyCount"`
		TopLevelComment struct {
			ID      string         `json:"id"`
			Snippet CommentSnippet `json:"snippet"`
		} `json:"topLevelComment"`
	} `json:"snippet"`
}

// CommentSnippet holds the content and author of a comment
type CommentSnippet struct {
	AuthorDisplayName string `json:"authorDisplayName"`
	AuthorChannelURL  string `json:"authorChannelUrl"`
	AuthorChannelID   struct {
		Value string `json:"value"`
	} `json:"authorChannelId"`
	TextDisplay  string `json:"textDisplay"`
	TextOriginal string `json:"textOriginal"`
	PublishedAt  string `json:"publishedAt"`
}
