// Package analysis runs judol classification jobs for the comments of one
// video: submission from the API and processing in the worker.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/inference"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/ingest"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/metrics"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/queue"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/quota"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/storage"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/tracing"
	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
	"github.com/google/uuid"
)

const (
	MessageQueued        = "Analisis sedang diproses."
	MessageCompleted     = "Analisis komentar selesai."
	MessageLimitReached  = "Batas harian analisis video telah tercapai. Silakan coba lagi besok."
	MessageQuotaCheck    = "Gagal memeriksa kuota analisis. Silakan coba lagi nanti."
	MessageSubmitFailed  = "Gagal memulai analisis. Silakan coba lagi nanti."
	MessageProcessFailed = "Gagal menganalisis komentar. Silakan coba lagi nanti."
	MessageInvalidVideo  = "ID video tidak valid."

	lockTTL = 15 * time.Minute
)

var (
	ErrNotFound  = errors.New("analysis not found")
	ErrForbidden = errors.New("analysis belongs to another user")
)

// Repository persists users and analysis jobs
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateAnalysis(ctx context.Context, job *models.AnalysisJob) error
	GetAnalysis(ctx context.Context, id string) (*models.AnalysisJob, error)
	UpdateAnalysis(ctx context.Context, job *models.AnalysisJob) error
}

// Ledger is the part of the quota ledger used by analyses
type Ledger interface {
	CheckVideoAllowance(ctx context.Context, userID string) (quota.Allowance, error)
	Consume(ctx context.Context, userID string, kind quota.Kind, count int) bool
}

// Publisher enqueues analysis jobs
type Publisher interface {
	PublishAnalysis(ctx context.Context, msg *queue.AnalysisMessage) error
}

// CommentFetcher returns every top-level comment of a video
type CommentFetcher interface {
	GetCommentsForVideo(ctx context.Context, user *models.User, videoID string) ingest.CommentsResult
}

// Classifier is the judol classification service
type Classifier interface {
	Predict(ctx context.Context, filename string, data []byte) (*inference.Prediction, error)
	Download(ctx context.Context, id string) ([]byte, error)
}

// ObjectStore keeps artifacts and results
type ObjectStore interface {
	Put(ctx context.Context, objectName string, data []byte) error
	GetURL(ctx context.Context, objectName string) (string, error)
}

// Locker prevents two workers from processing the same job
type Locker interface {
	AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, resource string) error
}

// SubmitResult is the outcome of a submission
type SubmitResult struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	LimitReached bool                `json:"limit_reached,omitempty"`
	Remaining    int                 `json:"remaining"`
	Analysis     *models.AnalysisJob `json:"analysis,omitempty"`
}

// View is an analysis job with links to its result files
type View struct {
	*models.AnalysisJob
	JudolURL    string `json:"judol_url,omitempty"`
	NonJudolURL string `json:"non_judol_url,omitempty"`
}

// Service submits and processes analysis jobs
type Service struct {
	repo       Repository
	ledger     Ledger
	publisher  Publisher
	comments   CommentFetcher
	classifier Classifier
	store      ObjectStore
	locker     Locker
	logger     *logging.Logger
	now        func() time.Time
}

// Deps groups the collaborators of a Service. Worker-only fields may be nil
// in the API process.
type Deps struct {
	Repository Repository
	Ledger     Ledger
	Publisher  Publisher
	Comments   CommentFetcher
	Classifier Classifier
	Store      ObjectStore
	Locker     Locker
}

// NewService creates an analysis service
func NewService(deps Deps, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		repo:       deps.Repository,
		ledger:     deps.Ledger,
		publisher:  deps.Publisher,
		comments:   deps.Comments,
		classifier: deps.Classifier,
		store:      deps.Store,
		locker:     deps.Locker,
		logger:     logger.WithComponent("analysis"),
		now:        time.Now,
	}
}

// Submit checks the video allowance and enqueues a new analysis. Quota is
// consumed by the worker once the analysis succeeds.
func (s *Service) Submit(ctx context.Context, user *models.User, videoID string) SubmitResult {
	span, ctx := tracing.StartSpan(ctx, "analysis.Submit")
	defer tracing.FinishSpan(span)

	log := s.logger.WithUserID(user.ID).WithVideoID(videoID)

	if videoID == "" {
		return SubmitResult{Message: MessageInvalidVideo}
	}

	allowance, err := s.ledger.CheckVideoAllowance(ctx, user.ID)
	if err != nil {
		log.ErrorWithErr("Failed to check video allowance", err)
		return SubmitResult{Message: MessageQuotaCheck}
	}
	if !allowance.Allowed {
		return SubmitResult{Message: MessageLimitReached, LimitReached: true}
	}

	job := &models.AnalysisJob{
		ID:      uuid.New().String(),
		UserID:  user.ID,
		VideoID: videoID,
		Status:  models.AnalysisStatusQueued,
		Message: MessageQueued,
	}
	if err := s.repo.CreateAnalysis(ctx, job); err != nil {
		log.ErrorWithErr("Failed to create analysis", err)
		return SubmitResult{Message: MessageSubmitFailed}
	}

	err = s.publisher.PublishAnalysis(ctx, &queue.AnalysisMessage{
		AnalysisID: job.ID,
		UserID:     user.ID,
		VideoID:    videoID,
		QueuedAt:   s.now(),
	})
	if err != nil {
		log.ErrorWithErr("Failed to publish analysis", err)
		s.finish(ctx, job, models.AnalysisStatusFailed, MessageSubmitFailed, s.now())
		return SubmitResult{Message: MessageSubmitFailed}
	}

	log.LogJobEvent(job.ID, "queued", string(job.Status), nil)
	return SubmitResult{
		Success:   true,
		Message:   MessageQueued,
		Remaining: allowance.Remaining,
		Analysis:  job,
	}
}

// Get returns an analysis owned by userID
func (s *Service) Get(ctx context.Context, userID, id string) (*View, error) {
	job, err := s.repo.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	if job.UserID != userID {
		return nil, ErrForbidden
	}

	view := &View{AnalysisJob: job}
	if s.store == nil || job.Status != models.AnalysisStatusSuccess {
		return view, nil
	}

	if view.JudolURL, err = s.store.GetURL(ctx, job.JudolObject); err != nil {
		s.logger.WithJobID(id).ErrorWithErr("Failed to sign judol result URL", err)
	}
	if view.NonJudolURL, err = s.store.GetURL(ctx, job.NonJudolObject); err != nil {
		s.logger.WithJobID(id).ErrorWithErr("Failed to sign non-judol result URL", err)
	}
	return view, nil
}

// Process runs one queued analysis. Every job that reaches processing ends
// in success or failed. The returned error is only about bookkeeping.
func (s *Service) Process(ctx context.Context, msg *queue.AnalysisMessage) error {
	span, ctx := tracing.StartSpan(ctx, "analysis.Process")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "analysis_id", msg.AnalysisID)

	log := s.logger.WithJobID(msg.AnalysisID).WithUserID(msg.UserID).WithVideoID(msg.VideoID)

	if s.locker != nil {
		lock := "analysis:" + msg.AnalysisID
		acquired, err := s.locker.AcquireLock(ctx, lock, lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire analysis lock: %w", err)
		}
		if !acquired {
			log.Warn("Analysis is already being processed")
			return nil
		}
		defer s.locker.ReleaseLock(context.Background(), lock)
	}

	job, err := s.repo.GetAnalysis(ctx, msg.AnalysisID)
	if err != nil {
		return fmt.Errorf("failed to load analysis: %w", err)
	}
	if job.Status.IsTerminal() {
		log.Warnf("Skipping analysis in terminal status %s", job.Status)
		return nil
	}

	start := s.now()
	job.Status = models.AnalysisStatusProcessing
	if err := s.repo.UpdateAnalysis(ctx, job); err != nil {
		return fmt.Errorf("failed to update analysis status: %w", err)
	}
	log.LogJobEvent(job.ID, "started", string(job.Status), nil)

	status, message := models.AnalysisStatusSuccess, MessageCompleted
	user, err := s.repo.GetUser(ctx, job.UserID)
	if err != nil {
		log.ErrorWithErr("Failed to load analysis owner", err)
		status, message = models.AnalysisStatusFailed, MessageProcessFailed
	} else if message, err = s.run(ctx, user, job, log); err != nil {
		log.ErrorWithErr("Analysis failed", err)
		status = models.AnalysisStatusFailed
	}

	return s.finish(ctx, job, status, message, start)
}

// run executes the pipeline and returns the user-facing message for the
// terminal status.
func (s *Service) run(ctx context.Context, user *models.User, job *models.AnalysisJob, log *logging.Logger) (string, error) {
	allowance, err := s.ledger.CheckVideoAllowance(ctx, user.ID)
	if err != nil {
		return MessageQuotaCheck, err
	}
	if !allowance.Allowed {
		return MessageLimitReached, errors.New("daily video analysis limit reached")
	}

	fetched := s.comments.GetCommentsForVideo(ctx, user, job.VideoID)
	if !fetched.Success {
		return fetched.Message, fmt.Errorf("failed to fetch comments: %s", fetched.Message)
	}
	job.TotalComments = fetched.Total

	data, err := json.Marshal(fetched.Records)
	if err != nil {
		return MessageProcessFailed, fmt.Errorf("failed to encode comments: %w", err)
	}

	filename := filepath.Base(fetched.Comments)
	if fetched.Comments == "" {
		filename = fmt.Sprintf("%s_%s_%d.json", user.ID, job.VideoID, s.now().Unix())
	}
	job.CommentsObject = storage.CommentsObject(filename)
	if err := s.store.Put(ctx, job.CommentsObject, data); err != nil {
		return MessageProcessFailed, err
	}

	prediction, err := s.classifier.Predict(ctx, filename, data)
	if err != nil {
		return MessageProcessFailed, err
	}

	if job.JudolObject, err = s.saveResult(ctx, job.ID, prediction.JudolResult); err != nil {
		return MessageProcessFailed, err
	}
	if job.NonJudolObject, err = s.saveResult(ctx, job.ID, prediction.NonJudolResult); err != nil {
		return MessageProcessFailed, err
	}

	if !s.ledger.Consume(ctx, user.ID, quota.KindVideoAnalysis, 1) {
		log.Error("Analysis succeeded but video quota could not be recorded")
	}
	return MessageCompleted, nil
}

func (s *Service) saveResult(ctx context.Context, analysisID, name string) (string, error) {
	data, err := s.classifier.Download(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", name, err)
	}
	object := storage.ResultObject(analysisID, name)
	if err := s.store.Put(ctx, object, data); err != nil {
		return "", err
	}
	return object, nil
}

func (s *Service) finish(ctx context.Context, job *models.AnalysisJob, status models.AnalysisStatus, message string, start time.Time) error {
	completed := s.now()
	job.Status = status
	job.Message = message
	job.CompletedAt = &completed

	metrics.RecordAnalysisCompleted(string(status), completed.Sub(start).Seconds())
	s.logger.LogJobEvent(job.ID, "completed", string(status), map[string]interface{}{
		"total_comments": job.TotalComments,
	})

	// The caller's context may already be cancelled; the terminal status
	// must still be written.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if err := s.repo.UpdateAnalysis(ctx, job); err != nil {
		return fmt.Errorf("failed to record analysis status: %w", err)
	}
	return nil
}
