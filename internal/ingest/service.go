// Package ingest exposes the two YouTube ingestion operations used by the
// rest of the application: the channel's full video list and the top-level
// comments of one video. Both return tagged results and never an error.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/config"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/metrics"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/tracing"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/youtube"
	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
)

const (
	MessageChannelNotFound = "Channel YouTube tidak ditemukan untuk akun ini."
	MessageInvalidVideoID  = "ID video tidak valid."
)

// VideoCache stores the aggregated video list per user
type VideoCache interface {
	GetVideoSet(ctx context.Context, userID string) (*models.CachedVideoSet, error)
	SetVideoSet(ctx context.Context, userID string, set *models.CachedVideoSet, ttl time.Duration) error
	InvalidateVideoSet(ctx context.Context, userID string) error
}

// UsageMeter records YouTube quota units spent on behalf of a user
type UsageMeter interface {
	TrackExternalUsage(ctx context.Context, userID string, units int) bool
}

// VideosResult is the outcome of GetAllVideos
type VideosResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	QuotaExceeded bool   `json:"quota_exceeded,omitempty"`
	Truncated     bool   `json:"truncated,omitempty"`
	// Outcome classifies a failure, empty on success.
	Outcome youtube.Outcome `json:"outcome,omitempty"`
	*models.CachedVideoSet
	UnitsUsed int `json:"-"`
}

// CommentsResult is the outcome of GetCommentsForVideo
type CommentsResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	QuotaExceeded bool   `json:"quota_exceeded,omitempty"`
	NoComments    bool   `json:"no_comments,omitempty"`
	Truncated     bool   `json:"truncated,omitempty"`
	// Outcome classifies a failure, empty on success.
	Outcome youtube.Outcome `json:"outcome,omitempty"`
	// Comments is the path of the JSON artifact holding the records.
	Comments     string                 `json:"comments,omitempty"`
	Total        int                    `json:"total"`
	RequestsMade int                    `json:"requests_made"`
	Records      []models.CommentRecord `json:"-"`
	UnitsUsed    int                    `json:"-"`
}

// Service is the ingestion facade
type Service struct {
	client      *youtube.Client
	coordinator *youtube.Coordinator
	pager       *youtube.Pager
	cache       VideoCache
	meter       UsageMeter
	cfg         config.YouTubeConfig
	logger      *logging.Logger
	now         func() time.Time
}

// NewService creates the ingestion facade. cache and meter may be nil.
func NewService(
	client *youtube.Client,
	coordinator *youtube.Coordinator,
	pager *youtube.Pager,
	cache VideoCache,
	meter UsageMeter,
	cfg config.YouTubeConfig,
	logger *logging.Logger,
) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		client:      client,
		coordinator: coordinator,
		pager:       pager,
		cache:       cache,
		meter:       meter,
		cfg:         cfg,
		logger:      logger.WithComponent("ingest"),
		now:         time.Now,
	}
}

// GetAllVideos returns every video of the user's channel, from the cache
// unless forceRefresh is set.
func (s *Service) GetAllVideos(ctx context.Context, user *models.User, forceRefresh bool) VideosResult {
	span, ctx := tracing.StartSpan(ctx, "ingest.GetAllVideos")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "user_id", user.ID)
	tracing.SetTag(span, "force_refresh", forceRefresh)

	log := s.logger.WithUserID(user.ID)

	if !forceRefresh && s.cache != nil {
		cached, err := s.cache.GetVideoSet(ctx, user.ID)
		if err != nil {
			log.WithError(err).Warn("Failed to read cached videos, fetching live")
		}
		if cached != nil {
			metrics.RecordCacheAccess("videos", true)
			return VideosResult{Success: true, Truncated: cached.Truncated, CachedVideoSet: cached}
		}
		metrics.RecordCacheAccess("videos", false)
	}

	result := s.fetchAllVideos(ctx, user, log)
	s.track(ctx, user.ID, result.UnitsUsed)
	if !result.Success {
		tracing.SetTag(span, "error", true)
		return result
	}

	if s.cache != nil {
		if err := s.cache.SetVideoSet(ctx, user.ID, result.CachedVideoSet, s.cfg.CacheTTL()); err != nil {
			log.ErrorWithErr("Failed to cache videos", err)
		}
	}

	log.WithField("total", result.Total).
		WithField("requests", result.RequestsMade).
		Info("Fetched channel videos")
	return result
}

// fetchAllVideos resolves the channel and pages its uploads. Both steps
// share one refresh budget.
func (s *Service) fetchAllVideos(ctx context.Context, user *models.User, log *logging.Logger) VideosResult {
	var (
		units  int
		budget youtube.RefreshBudget
	)

	channel, failure := s.resolveChannel(ctx, user, &budget, &units, log)
	if failure != nil {
		return VideosResult{
			Message:       failure.Message,
			QuotaExceeded: failure.QuotaExceeded,
			Outcome:       failure.Outcome,
			UnitsUsed:     units,
		}
	}

	source := s.client.VideoSource(channel.UploadsPlaylistID, s.cfg.VideosMaxResults)
	page := youtube.PaginateWithBudget(ctx, s.pager, user, source, &budget)
	units += page.UnitsUsed
	if !page.OK() {
		return VideosResult{
			Message:       page.Failure.Message,
			QuotaExceeded: page.Failure.QuotaExceeded,
			Outcome:       page.Failure.Outcome,
			UnitsUsed:     units,
		}
	}

	videos := page.Items
	if videos == nil {
		videos = []models.VideoRecord{}
	}

	return VideosResult{
		Success:   true,
		Truncated: page.Truncated,
		CachedVideoSet: &models.CachedVideoSet{
			Videos:       videos,
			Total:        len(videos),
			ChannelInfo:  channel,
			CachedAt:     s.now().UTC(),
			RequestsMade: page.RequestsMade,
			Truncated:    page.Truncated,
		},
		UnitsUsed: units,
	}
}

// resolveChannel runs the single channels lookup through the coordinator
func (s *Service) resolveChannel(
	ctx context.Context,
	user *models.User,
	budget *youtube.RefreshBudget,
	units *int,
	log *logging.Logger,
) (models.ChannelInfo, *youtube.Failure) {
	resp, err := s.client.ListMyChannel(ctx, user.AccessToken)
	if err != nil {
		log.WithError(err).Error("Channel lookup failed")
		return models.ChannelInfo{}, &youtube.Failure{Message: youtube.GenericErrorMessage, Outcome: youtube.OutcomeUnknown, Err: err}
	}
	*units += youtube.ListCost

	if resp.Unauthorized() {
		budget.Spend()
	}

	outcome := s.coordinator.Handle(ctx, user, resp, func(ctx context.Context, accessToken string) (*youtube.Response, error) {
		retried, err := s.client.ListMyChannel(ctx, accessToken)
		if err == nil {
			*units += youtube.ListCost
		}
		return retried, err
	})

	if !outcome.Success {
		if outcome.Response != nil && youtube.IsQuotaExceeded(outcome.Response) {
			metrics.RecordQuotaExceeded("channel")
			log.Critical("YouTube API quota exceeded while resolving channel")
			return models.ChannelInfo{}, &youtube.Failure{
				Message:       youtube.MessageQuotaExceeded,
				QuotaExceeded: true,
				Outcome:       youtube.OutcomeQuotaExceeded,
			}
		}
		if outcome.Message != "" {
			return models.ChannelInfo{}, outcome.Failure(youtube.KindChannel)
		}

		cls := youtube.Classify(youtube.KindChannel, outcome.Response)
		if !cls.Known {
			var body []byte
			status := 0
			if outcome.Response != nil {
				body, status = outcome.Response.Body, outcome.Response.StatusCode
			}
			log.WithField("status", status).
				WithField("response_body", string(body)).
				Error("Unexpected error resolving channel")
		}
		return models.ChannelInfo{}, &youtube.Failure{Message: cls.Message, Reason: cls.Reason, Outcome: cls.Outcome}
	}

	info, ok, err := youtube.ParseChannel(outcome.Response.Body)
	if err != nil {
		log.WithError(err).Error("Failed to decode channel")
		return models.ChannelInfo{}, &youtube.Failure{Message: youtube.GenericErrorMessage, Outcome: youtube.OutcomeUnknown, Err: err}
	}
	if !ok {
		log.Warn("Authenticated user has no channel with an uploads playlist")
		return models.ChannelInfo{}, &youtube.Failure{Message: MessageChannelNotFound, Outcome: youtube.OutcomeNotFound}
	}
	return info, nil
}

// InvalidateVideos drops the user's cached video list
func (s *Service) InvalidateVideos(ctx context.Context, userID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateVideoSet(ctx, userID)
}

// GetCommentsForVideo fetches all top-level comments of a video and writes
// them to a JSON artifact. The artifact is best effort.
func (s *Service) GetCommentsForVideo(ctx context.Context, user *models.User, videoID string) CommentsResult {
	span, ctx := tracing.StartSpan(ctx, "ingest.GetCommentsForVideo")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "user_id", user.ID)
	tracing.SetTag(span, "video_id", videoID)

	log := s.logger.WithUserID(user.ID).WithVideoID(videoID)

	if videoID == "" {
		return CommentsResult{Message: MessageInvalidVideoID, Outcome: youtube.OutcomeInvalid}
	}

	page := youtube.Paginate(ctx, s.pager, user, s.client.CommentSource(videoID, s.cfg.CommentsMaxResults))
	s.track(ctx, user.ID, page.UnitsUsed)

	if !page.OK() {
		tracing.SetTag(span, "error", true)
		return CommentsResult{
			Message:       page.Failure.Message,
			QuotaExceeded: page.Failure.QuotaExceeded,
			NoComments:    page.Failure.Empty,
			Outcome:       page.Failure.Outcome,
			RequestsMade:  page.RequestsMade,
			UnitsUsed:     page.UnitsUsed,
		}
	}

	result := CommentsResult{
		Success:      true,
		Truncated:    page.Truncated,
		Total:        len(page.Items),
		RequestsMade: page.RequestsMade,
		Records:      page.Items,
		UnitsUsed:    page.UnitsUsed,
	}

	path, err := s.writeArtifact(user.ID, videoID, page.Items)
	if err != nil {
		log.WithError(err).Error("Failed to write comments artifact")
	} else {
		result.Comments = path
	}

	log.WithField("total", result.Total).
		WithField("requests", result.RequestsMade).
		Info("Fetched video comments")
	return result
}

func (s *Service) writeArtifact(userID, videoID string, comments []models.CommentRecord) (string, error) {
	dir := s.cfg.ArtifactDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}

	data, err := json.MarshalIndent(comments, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal comments: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s_%d.json", userID, videoID, s.now().Unix()))
	if err := os.WriteFile(path, data, 0640); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func (s *Service) track(ctx context.Context, userID string, units int) {
	if s.meter == nil || units < 1 {
		return
	}
	if !s.meter.TrackExternalUsage(ctx, userID, units) {
		s.logger.WithUserID(userID).Warnf("Failed to record %d YouTube quota units", units)
	}
}
