package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/config"
	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type usageKey struct {
	userID string
	day    string
}

// memoryStore is a mutex-guarded Store used to exercise the ledger
type memoryStore struct {
	mu          sync.Mutex
	limits      map[string]*models.UserQuota
	usage       map[usageKey]*models.QuotaUsage
	limitWrites int
	failWrites  bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		limits: make(map[string]*models.UserQuota),
		usage:  make(map[usageKey]*models.QuotaUsage),
	}
}

func (m *memoryStore) GetOrCreateLimits(ctx context.Context, defaults models.UserQuota) (*models.UserQuota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if q, ok := m.limits[defaults.UserID]; ok {
		copied := *q
		return &copied, nil
	}
	q := defaults
	m.limits[defaults.UserID] = &q
	m.limitWrites++
	return &defaults, nil
}

func (m *memoryStore) UpdateLimits(ctx context.Context, quota *models.UserQuota) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := *quota
	m.limits[quota.UserID] = &q
	return nil
}

func (m *memoryStore) GetUsage(ctx context.Context, userID, day string) (*models.QuotaUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.usage[usageKey{userID, day}]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (m *memoryStore) IncrementUsage(ctx context.Context, userID, day string, counter models.UsageCounter, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites {
		return errors.New("connection reset")
	}

	key := usageKey{userID, day}
	u, ok := m.usage[key]
	if !ok {
		u = &models.QuotaUsage{UserID: userID, Date: day}
		m.usage[key] = u
	}
	switch counter {
	case models.CounterVideosAnalyzed:
		u.VideosAnalyzedCount += n
	case models.CounterCommentsModerated:
		u.CommentsModeratedCount += n
	case models.CounterYouTubeQuotaUsed:
		u.YouTubeQuotaUsed += n
	}
	return nil
}

func (m *memoryStore) DeleteUsage(ctx context.Context, userID, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.usage, usageKey{userID, day})
	return nil
}

func (m *memoryStore) DeleteUsageBefore(ctx context.Context, day string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for key := range m.usage {
		if key.day < day {
			delete(m.usage, key)
			deleted++
		}
	}
	return deleted, nil
}

var fixedNow = time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)

func newTestLedger(t *testing.T, store Store) *Ledger {
	t.Helper()

	ledger, err := NewLedger(store, config.QuotaConfig{
		DailyVideoAnalysisLimit:     5,
		DailyCommentModerationLimit: 40,
		Timezone:                    "UTC",
	}, nil)
	require.NoError(t, err)

	return ledger.WithClock(func() time.Time { return fixedNow })
}

func TestGetLimit_CreatesDefaultsOnce(t *testing.T) {
	store := newMemoryStore()
	ledger := newTestLedger(t, store)
	ctx := context.Background()

	limits, err := ledger.GetLimit(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, Limits{VideoLimit: 5, CommentLimit: 40}, limits)

	again, err := ledger.GetLimit(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, limits, again)
	assert.Equal(t, 1, store.limitWrites)
	assert.Len(t, store.limits, 1)
}

func TestNewLedger_FallsBackToBuiltinDefaults(t *testing.T) {
	ledger, err := NewLedger(newMemoryStore(), config.QuotaConfig{
		DailyVideoAnalysisLimit:     -1,
		DailyCommentModerationLimit: -1,
		Timezone:                    "UTC",
	}, nil)
	require.NoError(t, err)

	limits, err := ledger.GetLimit(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDailyVideoAnalysisLimit, limits.VideoLimit)
	assert.Equal(t, models.DefaultDailyCommentModerationLimit, limits.CommentLimit)
}

func TestNewLedger_ZeroDefaultBlocks(t *testing.T) {
	ledger, err := NewLedger(newMemoryStore(), config.QuotaConfig{
		DailyVideoAnalysisLimit:     0,
		DailyCommentModerationLimit: 40,
		Timezone:                    "UTC",
	}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	limits, err := ledger.GetLimit(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, limits.VideoLimit)

	allowance, err := ledger.CheckVideoAllowance(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, allowance.Allowed)
	assert.Equal(t, 0, allowance.Remaining)
}

func TestNewLedger_InvalidTimezone(t *testing.T) {
	_, err := NewLedger(newMemoryStore(), config.QuotaConfig{Timezone: "Nowhere/Atlantis"}, nil)
	assert.Error(t, err)
}

func TestNewAllowance(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		used      int
		allowed   bool
		remaining int
	}{
		{"unused", 5, 0, true, 5},
		{"partially used", 5, 3, true, 2},
		{"one left", 5, 4, true, 1},
		{"exactly at limit", 5, 5, false, 0},
		{"over limit", 5, 9, false, 0},
		{"zero limit", 0, 0, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAllowance(tt.limit, tt.used)
			assert.Equal(t, tt.allowed, a.Allowed)
			assert.Equal(t, tt.remaining, a.Remaining)
			assert.Equal(t, tt.limit, a.Limit)
			assert.Equal(t, tt.used, a.Used)
		})
	}
}

func TestCheckAllowance_IsReadOnly(t *testing.T) {
	store := newMemoryStore()
	ledger := newTestLedger(t, store)

	allowance, err := ledger.CheckCommentAllowance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, allowance.Allowed)
	assert.Equal(t, 40, allowance.Remaining)
	assert.Empty(t, store.usage, "checking must not create a usage row")
}

func TestConsume_ReflectedInAllowance(t *testing.T) {
	ledger := newTestLedger(t, newMemoryStore())
	ctx := context.Background()

	assert.True(t, ledger.Consume(ctx, "user-1", KindVideoAnalysis, 2))

	allowance, err := ledger.CheckVideoAllowance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, allowance.Used)
	assert.Equal(t, 3, allowance.Remaining)

	comments, err := ledger.CheckCommentAllowance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, comments.Used)
}

func TestConsume_Concurrent(t *testing.T) {
	ledger := newTestLedger(t, newMemoryStore())
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ledger.Consume(ctx, "user-1", KindCommentModeration, 1)
		}()
	}
	wg.Wait()

	allowance, err := ledger.CheckCommentAllowance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, n, allowance.Used)
}

func TestConsume_StorageFailure(t *testing.T) {
	store := newMemoryStore()
	store.failWrites = true
	ledger := newTestLedger(t, store)
	ctx := context.Background()

	assert.False(t, ledger.Consume(ctx, "user-1", KindVideoAnalysis, 1))

	allowance, err := ledger.CheckVideoAllowance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, allowance.Used)
}

func TestConsume_RejectsInvalidInput(t *testing.T) {
	ledger := newTestLedger(t, newMemoryStore())
	ctx := context.Background()

	assert.False(t, ledger.Consume(ctx, "user-1", Kind("uploads"), 1))
	assert.False(t, ledger.Consume(ctx, "user-1", KindVideoAnalysis, 0))
	assert.False(t, ledger.Consume(ctx, "user-1", KindVideoAnalysis, -3))
}

func TestLimitOfOne_EndToEnd(t *testing.T) {
	ledger := newTestLedger(t, newMemoryStore())
	ctx := context.Background()

	require.NoError(t, ledger.UpdateLimits(ctx, "user-1", Limits{VideoLimit: 1, CommentLimit: 40}))

	before, err := ledger.CheckVideoAllowance(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, before.Allowed)
	assert.Equal(t, 1, before.Remaining)

	require.True(t, ledger.Consume(ctx, "user-1", KindVideoAnalysis, 1))

	after, err := ledger.CheckVideoAllowance(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, after.Allowed)
	assert.Equal(t, 0, after.Remaining)
}

func TestUpdateLimits_RejectsNegative(t *testing.T) {
	ledger := newTestLedger(t, newMemoryStore())

	err := ledger.UpdateLimits(context.Background(), "user-1", Limits{VideoLimit: -1, CommentLimit: 10})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestTrackExternalUsage_DoesNotGate(t *testing.T) {
	ledger := newTestLedger(t, newMemoryStore())
	ctx := context.Background()

	assert.True(t, ledger.TrackExternalUsage(ctx, "user-1", 10000))
	assert.False(t, ledger.TrackExternalUsage(ctx, "user-1", 0))

	allowance, err := ledger.CheckVideoAllowance(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, allowance.Allowed)

	snapshot, err := ledger.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 10000, snapshot.YouTubeAPI.Used)
}

func TestSnapshot(t *testing.T) {
	ledger := newTestLedger(t, newMemoryStore())
	ctx := context.Background()

	ledger.Consume(ctx, "user-1", KindVideoAnalysis, 2)
	ledger.Consume(ctx, "user-1", KindCommentModeration, 45)
	ledger.TrackExternalUsage(ctx, "user-1", 153)

	snapshot, err := ledger.Snapshot(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, Usage{Limit: 5, Used: 2, Remaining: 3}, snapshot.VideoAnalysis)
	assert.Equal(t, Usage{Limit: 40, Used: 45, Remaining: 0}, snapshot.CommentModeration)
	assert.Equal(t, 153, snapshot.YouTubeAPI.Used)
	assert.Equal(t, "2026-10-14", snapshot.Date)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), snapshot.ResetsAt)
}

func TestCalendarDayFollowsLocation(t *testing.T) {
	store := newMemoryStore()
	ledger := newTestLedger(t, store)
	ctx := context.Background()

	// 23:30 UTC on the 14th is already the 15th seven hours east.
	ledger.loc = time.FixedZone("WIB", 7*60*60)
	ledger.now = func() time.Time { return time.Date(2026, 10, 14, 23, 30, 0, 0, time.UTC) }

	ledger.Consume(ctx, "user-1", KindVideoAnalysis, 1)

	_, ok := store.usage[usageKey{"user-1", "2026-10-15"}]
	assert.True(t, ok)

	snapshot, err := ledger.Snapshot(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15", snapshot.Date)
	assert.True(t, snapshot.ResetsAt.Equal(time.Date(2026, 10, 15, 17, 0, 0, 0, time.UTC)))
}

func TestUsageIsPerDay(t *testing.T) {
	store := newMemoryStore()
	ledger := newTestLedger(t, store)
	ctx := context.Background()

	ledger.Consume(ctx, "user-1", KindVideoAnalysis, 5)

	ledger.now = func() time.Time { return fixedNow.AddDate(0, 0, 1) }

	allowance, err := ledger.CheckVideoAllowance(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, allowance.Allowed)
	assert.Equal(t, 0, allowance.Used)
}

func TestResetToday(t *testing.T) {
	ledger := newTestLedger(t, newMemoryStore())
	ctx := context.Background()

	ledger.Consume(ctx, "user-1", KindVideoAnalysis, 5)

	require.NoError(t, ledger.ResetToday(ctx, "user-1"))
	require.NoError(t, ledger.ResetToday(ctx, "user-1"))

	allowance, err := ledger.CheckVideoAllowance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, allowance.Used)
	assert.True(t, allowance.Allowed)
}

func TestPurgeOlderThan(t *testing.T) {
	store := newMemoryStore()
	ledger := newTestLedger(t, store)
	ctx := context.Background()

	for _, daysAgo := range []int{0, 10, 30, 31, 45} {
		ledger.now = func() time.Time { return fixedNow.AddDate(0, 0, -daysAgo) }
		ledger.Consume(ctx, "user-1", KindVideoAnalysis, 1)
	}
	ledger.now = func() time.Time { return fixedNow }

	deleted, err := ledger.PurgeOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Len(t, store.usage, 3)

	// The row exactly at the horizon survives.
	_, ok := store.usage[usageKey{"user-1", "2026-09-14"}]
	assert.True(t, ok)
}
