package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/analysis"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/database"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/ingest"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/middleware"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/moderation"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/quota"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/youtube"
	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
	"github.com/gin-gonic/gin"
)

const (
	MessageUnauthenticated  = "Sesi tidak valid. Silakan login ulang."
	MessageInvalidRequest   = "Permintaan tidak valid."
	MessageRefreshThrottled = "Terlalu sering memperbarui daftar video. Silakan coba lagi nanti."
	MessageAnalysisNotFound = "Analisis tidak ditemukan."
	MessageInternalError    = "Terjadi kesalahan. Silakan coba lagi nanti."
)

// UserStore loads the authenticated user with their YouTube credentials
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// VideoService is the ingestion facade
type VideoService interface {
	GetAllVideos(ctx context.Context, user *models.User, forceRefresh bool) ingest.VideosResult
	InvalidateVideos(ctx context.Context, userID string) error
	GetCommentsForVideo(ctx context.Context, user *models.User, videoID string) ingest.CommentsResult
}

// AnalysisService submits and reads analysis jobs
type AnalysisService interface {
	Submit(ctx context.Context, user *models.User, videoID string) analysis.SubmitResult
	Get(ctx context.Context, userID, id string) (*analysis.View, error)
}

// ModerationService moderates comments
type ModerationService interface {
	Moderate(ctx context.Context, user *models.User, req moderation.Request) moderation.Result
}

// QuotaService is the quota ledger
type QuotaService interface {
	Snapshot(ctx context.Context, userID string) (quota.Snapshot, error)
	UpdateLimits(ctx context.Context, userID string, limits quota.Limits) error
	ResetToday(ctx context.Context, userID string) error
}

// RefreshLimiter throttles forced video refreshes
type RefreshLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

// HealthChecker is one dependency checked by /health
type HealthChecker func(ctx context.Context) error

// API holds the HTTP handlers
type API struct {
	users        UserStore
	videos       VideoService
	analyses     AnalysisService
	moderation   ModerationService
	quota        QuotaService
	limiter      RefreshLimiter
	refreshLimit int
	health       map[string]HealthChecker
	logger       *logging.Logger
}

func failure(message string) gin.H {
	return gin.H{"success": false, "message": message}
}

// currentUser loads the user of the session or writes a 401
func (api *API) currentUser(c *gin.Context) (*models.User, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, failure(MessageUnauthenticated))
		return nil, false
	}

	user, err := api.users.GetUser(c.Request.Context(), userID)
	if errors.Is(err, database.ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, failure(MessageUnauthenticated))
		return nil, false
	}
	if err != nil {
		api.logger.WithUserID(userID).ErrorWithErr("Failed to load user", err)
		c.JSON(http.StatusInternalServerError, failure(MessageInternalError))
		return nil, false
	}
	return user, true
}

// upstreamStatus maps the outcome of a failed upstream operation to an HTTP
// status. Unclassified failures are reported as a bad gateway.
func upstreamStatus(outcome youtube.Outcome) int {
	switch outcome {
	case youtube.OutcomeQuotaExceeded:
		return http.StatusTooManyRequests
	case youtube.OutcomeUnauthorized:
		return http.StatusUnauthorized
	case youtube.OutcomeNotFound:
		return http.StatusNotFound
	case youtube.OutcomeForbidden:
		return http.StatusForbidden
	case youtube.OutcomeDisabled:
		return http.StatusUnprocessableEntity
	case youtube.OutcomeInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	for name, check := range api.health {
		if err := check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"component": name,
				"error":     err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// List channel videos, ?refresh=true bypasses the cache
func (api *API) listVideos(c *gin.Context) {
	user, ok := api.currentUser(c)
	if !ok {
		return
	}

	force, _ := strconv.ParseBool(c.Query("refresh"))
	if force && api.limiter != nil && api.refreshLimit > 0 {
		allowed, err := api.limiter.CheckRateLimit(c.Request.Context(), "refresh:"+user.ID, int64(api.refreshLimit), time.Hour)
		if err != nil {
			api.logger.WithUserID(user.ID).ErrorWithErr("Failed to check refresh rate limit", err)
		} else if !allowed {
			c.JSON(http.StatusTooManyRequests, failure(MessageRefreshThrottled))
			return
		}
	}

	result := api.videos.GetAllVideos(c.Request.Context(), user, force)
	if !result.Success {
		c.JSON(upstreamStatus(result.Outcome), result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Drop the cached video list
func (api *API) invalidateVideos(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, failure(MessageUnauthenticated))
		return
	}

	if err := api.videos.InvalidateVideos(c.Request.Context(), userID); err != nil {
		api.logger.WithUserID(userID).ErrorWithErr("Failed to invalidate video cache", err)
		c.JSON(http.StatusInternalServerError, failure(MessageInternalError))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Fetch every comment of a video
func (api *API) getVideoComments(c *gin.Context) {
	user, ok := api.currentUser(c)
	if !ok {
		return
	}

	result := api.videos.GetCommentsForVideo(c.Request.Context(), user, c.Param("id"))
	if result.Success {
		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"truncated":     result.Truncated,
			"total":         result.Total,
			"requests_made": result.RequestsMade,
			"comments":      result.Records,
		})
		return
	}

	c.JSON(upstreamStatus(result.Outcome), result)
}

// Queue a judol analysis of a video's comments
func (api *API) createAnalysis(c *gin.Context) {
	user, ok := api.currentUser(c)
	if !ok {
		return
	}

	result := api.analyses.Submit(c.Request.Context(), user, c.Param("id"))
	switch {
	case result.Success:
		c.JSON(http.StatusAccepted, result)
	case result.LimitReached:
		c.JSON(http.StatusTooManyRequests, result)
	case result.Message == analysis.MessageInvalidVideo:
		c.JSON(http.StatusBadRequest, result)
	default:
		c.JSON(http.StatusInternalServerError, result)
	}
}

// Read one analysis
func (api *API) getAnalysis(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, failure(MessageUnauthenticated))
		return
	}

	view, err := api.analyses.Get(c.Request.Context(), userID, c.Param("id"))
	switch {
	case errors.Is(err, database.ErrAnalysisNotFound),
		errors.Is(err, analysis.ErrNotFound),
		errors.Is(err, analysis.ErrForbidden):
		c.JSON(http.StatusNotFound, failure(MessageAnalysisNotFound))
	case err != nil:
		api.logger.WithUserID(userID).ErrorWithErr("Failed to get analysis", err)
		c.JSON(http.StatusInternalServerError, failure(MessageInternalError))
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "analysis": view})
	}
}

// Apply a moderation status to comments
func (api *API) moderateComments(c *gin.Context) {
	var req moderation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, failure(MessageInvalidRequest))
		return
	}

	user, ok := api.currentUser(c)
	if !ok {
		return
	}

	result := api.moderation.Moderate(c.Request.Context(), user, req)
	switch {
	case result.Success:
		c.JSON(http.StatusOK, result)
	case result.LimitReached:
		c.JSON(http.StatusTooManyRequests, result)
	case result.Message == moderation.MessageQuotaCheck:
		c.JSON(http.StatusInternalServerError, result)
	default:
		c.JSON(upstreamStatus(result.Outcome), result)
	}
}

// Today's quota of the current user
func (api *API) getQuota(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, failure(MessageUnauthenticated))
		return
	}
	api.writeSnapshot(c, userID)
}

func (api *API) writeSnapshot(c *gin.Context, userID string) {
	snapshot, err := api.quota.Snapshot(c.Request.Context(), userID)
	if err != nil {
		api.logger.WithUserID(userID).ErrorWithErr("Failed to read quota", err)
		c.JSON(http.StatusInternalServerError, failure(MessageInternalError))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "quota": snapshot})
}

// Admin: read a user's quota
func (api *API) adminGetQuota(c *gin.Context) {
	api.writeSnapshot(c, c.Param("id"))
}

// Admin: change a user's daily limits
func (api *API) adminUpdateLimits(c *gin.Context) {
	var limits quota.Limits
	if err := c.ShouldBindJSON(&limits); err != nil {
		c.JSON(http.StatusBadRequest, failure(MessageInvalidRequest))
		return
	}

	userID := c.Param("id")
	err := api.quota.UpdateLimits(c.Request.Context(), userID, limits)
	if errors.Is(err, quota.ErrInvalidLimit) {
		c.JSON(http.StatusBadRequest, failure(MessageInvalidRequest))
		return
	}
	if err != nil {
		api.logger.WithUserID(userID).ErrorWithErr("Failed to update limits", err)
		c.JSON(http.StatusInternalServerError, failure(MessageInternalError))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "limits": limits})
}

// Admin: clear a user's usage for today
func (api *API) adminResetToday(c *gin.Context) {
	userID := c.Param("id")
	if err := api.quota.ResetToday(c.Request.Context(), userID); err != nil {
		api.logger.WithUserID(userID).ErrorWithErr("Failed to reset quota", err)
		c.JSON(http.StatusInternalServerError, failure(MessageInternalError))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
