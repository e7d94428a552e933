package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/inference"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/ingest"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/queue"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/quota"
	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mu       sync.Mutex
	users    map[string]*models.User
	jobs     map[string]*models.AnalysisJob
	statuses []models.AnalysisStatus
	failNext error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users: map[string]*models.User{"user-1": {ID: "user-1", AccessToken: "t", RefreshToken: "r"}},
		jobs:  make(map[string]*models.AnalysisJob),
	}
}

func (m *mockRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	copied := *user
	return &copied, nil
}

func (m *mockRepository) CreateAnalysis(ctx context.Context, job *models.AnalysisJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *mockRepository) GetAnalysis(ctx context.Context, id string) (*models.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *mockRepository) UpdateAnalysis(ctx context.Context, job *models.AnalysisJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
	m.statuses = append(m.statuses, job.Status)
	return nil
}

type mockLedger struct {
	allowance quota.Allowance
	checkErr  error
	consumed  int
}

func (m *mockLedger) CheckVideoAllowance(ctx context.Context, userID string) (quota.Allowance, error) {
	return m.allowance, m.checkErr
}

func (m *mockLedger) Consume(ctx context.Context, userID string, kind quota.Kind, count int) bool {
	if kind != quota.KindVideoAnalysis {
		return false
	}
	m.consumed += count
	return true
}

type mockPublisher struct {
	published []*queue.AnalysisMessage
	err       error
}

func (m *mockPublisher) PublishAnalysis(ctx context.Context, msg *queue.AnalysisMessage) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, msg)
	return nil
}

type mockComments struct {
	result ingest.CommentsResult
	calls  int
}

func (m *mockComments) GetCommentsForVideo(ctx context.Context, user *models.User, videoID string) ingest.CommentsResult {
	m.calls++
	return m.result
}

type mockClassifier struct {
	prediction *inference.Prediction
	predictErr error
	files      map[string][]byte
	uploaded   string
}

func (m *mockClassifier) Predict(ctx context.Context, filename string, data []byte) (*inference.Prediction, error) {
	m.uploaded = filename
	return m.prediction, m.predictErr
}

func (m *mockClassifier) Download(ctx context.Context, id string) ([]byte, error) {
	data, ok := m.files[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

type mockStore struct {
	objects map[string][]byte
}

func (m *mockStore) Put(ctx context.Context, objectName string, data []byte) error {
	m.objects[objectName] = data
	return nil
}

func (m *mockStore) GetURL(ctx context.Context, objectName string) (string, error) {
	return "https://minio.local/" + objectName, nil
}

type mockLocker struct {
	held map[string]bool
}

func (m *mockLocker) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	if m.held[resource] {
		return false, nil
	}
	m.held[resource] = true
	return true, nil
}

func (m *mockLocker) ReleaseLock(ctx context.Context, resource string) error {
	delete(m.held, resource)
	return nil
}

type fixture struct {
	svc        *Service
	repo       *mockRepository
	ledger     *mockLedger
	publisher  *mockPublisher
	comments   *mockComments
	classifier *mockClassifier
	store      *mockStore
	locker     *mockLocker
}

func newFixture() *fixture {
	f := &fixture{
		repo:      newMockRepository(),
		ledger:    &mockLedger{allowance: quota.Allowance{Allowed: true, Limit: 5, Remaining: 5}},
		publisher: &mockPublisher{},
		comments: &mockComments{result: ingest.CommentsResult{
			Success:  true,
			Total:    2,
			Comments: "storage/comments/user-1_vid-1_100.json",
			Records: []models.CommentRecord{
				{CommentID: "c1", Text: "slot gacor"},
				{CommentID: "c2", Text: "bagus"},
			},
		}},
		classifier: &mockClassifier{
			prediction: &inference.Prediction{JudolResult: "judol_1.json", NonJudolResult: "non_judol_1.json"},
			files: map[string][]byte{
				"judol_1.json":     []byte(`[{"comment_id":"c1","label":1}]`),
				"non_judol_1.json": []byte(`[{"comment_id":"c2","label":0}]`),
			},
		},
		store:  &mockStore{objects: make(map[string][]byte)},
		locker: &mockLocker{held: make(map[string]bool)},
	}
	f.svc = NewService(Deps{
		Repository: f.repo,
		Ledger:     f.ledger,
		Publisher:  f.publisher,
		Comments:   f.comments,
		Classifier: f.classifier,
		Store:      f.store,
		Locker:     f.locker,
	}, nil)
	return f
}

func (f *fixture) submit(t *testing.T) *models.AnalysisJob {
	t.Helper()
	result := f.svc.Submit(context.Background(), &models.User{ID: "user-1"}, "vid-1")
	require.True(t, result.Success, result.Message)
	return result.Analysis
}

func TestSubmit(t *testing.T) {
	f := newFixture()

	result := f.svc.Submit(context.Background(), &models.User{ID: "user-1"}, "vid-1")

	require.True(t, result.Success)
	assert.Equal(t, 5, result.Remaining)
	assert.Equal(t, models.AnalysisStatusQueued, result.Analysis.Status)
	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, result.Analysis.ID, f.publisher.published[0].AnalysisID)
	assert.Equal(t, "vid-1", f.publisher.published[0].VideoID)
	assert.Equal(t, 0, f.ledger.consumed)
}

func TestSubmit_LimitReached(t *testing.T) {
	f := newFixture()
	f.ledger.allowance = quota.Allowance{Allowed: false, Limit: 5, Used: 5}

	result := f.svc.Submit(context.Background(), &models.User{ID: "user-1"}, "vid-1")

	assert.False(t, result.Success)
	assert.True(t, result.LimitReached)
	assert.Equal(t, MessageLimitReached, result.Message)
	assert.Empty(t, f.publisher.published)
	assert.Empty(t, f.repo.jobs)
}

func TestSubmit_PublishFailureMarksFailed(t *testing.T) {
	f := newFixture()
	f.publisher.err = errors.New("channel closed")

	result := f.svc.Submit(context.Background(), &models.User{ID: "user-1"}, "vid-1")

	assert.False(t, result.Success)
	assert.Equal(t, MessageSubmitFailed, result.Message)
	require.Len(t, f.repo.jobs, 1)
	for _, job := range f.repo.jobs {
		assert.Equal(t, models.AnalysisStatusFailed, job.Status)
		assert.NotNil(t, job.CompletedAt)
	}
}

func TestSubmit_InvalidInput(t *testing.T) {
	f := newFixture()

	result := f.svc.Submit(context.Background(), &models.User{ID: "user-1"}, "")
	assert.Equal(t, MessageInvalidVideo, result.Message)

	f.ledger.checkErr = errors.New("db down")
	result = f.svc.Submit(context.Background(), &models.User{ID: "user-1"}, "vid-1")
	assert.Equal(t, MessageQuotaCheck, result.Message)
}

func TestProcess_Success(t *testing.T) {
	f := newFixture()
	job := f.submit(t)

	err := f.svc.Process(context.Background(), f.publisher.published[0])
	require.NoError(t, err)

	stored := f.repo.jobs[job.ID]
	assert.Equal(t, models.AnalysisStatusSuccess, stored.Status)
	assert.Equal(t, MessageCompleted, stored.Message)
	assert.Equal(t, 2, stored.TotalComments)
	assert.Equal(t, "comments/user-1_vid-1_100.json", stored.CommentsObject)
	assert.Equal(t, "results/"+job.ID+"/judol_1.json", stored.JudolObject)
	assert.Equal(t, "results/"+job.ID+"/non_judol_1.json", stored.NonJudolObject)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, []models.AnalysisStatus{models.AnalysisStatusProcessing, models.AnalysisStatusSuccess}, f.repo.statuses)

	assert.Equal(t, "user-1_vid-1_100.json", f.classifier.uploaded)
	assert.JSONEq(t, `[{"comment_id":"c1","label":1}]`, string(f.store.objects[stored.JudolObject]))
	assert.Contains(t, string(f.store.objects[stored.CommentsObject]), "slot gacor")
	assert.Equal(t, 1, f.ledger.consumed)
	assert.Empty(t, f.locker.held)
}

func TestProcess_CommentFailureRecordsFailed(t *testing.T) {
	f := newFixture()
	job := f.submit(t)
	f.comments.result = ingest.CommentsResult{Message: "Komentar dinonaktifkan untuk video ini."}

	require.NoError(t, f.svc.Process(context.Background(), f.publisher.published[0]))

	stored := f.repo.jobs[job.ID]
	assert.Equal(t, models.AnalysisStatusFailed, stored.Status)
	assert.Equal(t, "Komentar dinonaktifkan untuk video ini.", stored.Message)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, 0, f.ledger.consumed)
}

func TestProcess_InferenceFailureRecordsFailed(t *testing.T) {
	f := newFixture()
	job := f.submit(t)
	f.classifier.predictErr = errors.New("timeout")

	require.NoError(t, f.svc.Process(context.Background(), f.publisher.published[0]))

	stored := f.repo.jobs[job.ID]
	assert.Equal(t, models.AnalysisStatusFailed, stored.Status)
	assert.Equal(t, MessageProcessFailed, stored.Message)
	assert.Equal(t, 0, f.ledger.consumed)
}

func TestProcess_LimitReachedBeforeFetching(t *testing.T) {
	f := newFixture()
	job := f.submit(t)
	f.ledger.allowance = quota.Allowance{Allowed: false, Limit: 5, Used: 5}

	require.NoError(t, f.svc.Process(context.Background(), f.publisher.published[0]))

	stored := f.repo.jobs[job.ID]
	assert.Equal(t, models.AnalysisStatusFailed, stored.Status)
	assert.Equal(t, MessageLimitReached, stored.Message)
	assert.Equal(t, 0, f.comments.calls)
}

func TestProcess_SkipsLockedAndTerminalJobs(t *testing.T) {
	f := newFixture()
	f.submit(t)
	msg := f.publisher.published[0]

	f.locker.held["analysis:"+msg.AnalysisID] = true
	require.NoError(t, f.svc.Process(context.Background(), msg))
	assert.Empty(t, f.repo.statuses)

	delete(f.locker.held, "analysis:"+msg.AnalysisID)
	require.NoError(t, f.svc.Process(context.Background(), msg))
	require.NoError(t, f.svc.Process(context.Background(), msg))

	assert.Equal(t, 1, f.comments.calls)
	assert.Equal(t, 1, f.ledger.consumed)
}

func TestProcess_UnknownAnalysis(t *testing.T) {
	f := newFixture()

	err := f.svc.Process(context.Background(), &queue.AnalysisMessage{AnalysisID: "missing", UserID: "user-1", VideoID: "vid-1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet(t *testing.T) {
	f := newFixture()
	job := f.submit(t)

	view, err := f.svc.Get(context.Background(), "user-1", job.ID)
	require.NoError(t, err)
	assert.Empty(t, view.JudolURL)

	require.NoError(t, f.svc.Process(context.Background(), f.publisher.published[0]))

	view, err = f.svc.Get(context.Background(), "user-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://minio.local/results/"+job.ID+"/judol_1.json", view.JudolURL)
	assert.Equal(t, "https://minio.local/results/"+job.ID+"/non_judol_1.json", view.NonJudolURL)

	_, err = f.svc.Get(context.Background(), "user-2", job.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}
