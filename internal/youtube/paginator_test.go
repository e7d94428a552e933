package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/config"
	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func playlistPage(next string, ids ...string) string {
	items := ""
	for i, id := range ids {
		if i > 0 {
			items += ","
		}
		items += fmt.Sprintf(`{"snippet":{"title":"Video %s","resourceId":{"videoId":"%s"}}}`, id, id)
	}
	if next == "" {
		return fmt.Sprintf(`{"items":[%s]}`, items)
	}
	return fmt.Sprintf(`{"nextPageToken":"%s","items":[%s]}`, next, items)
}

const quotaBody = `{"error":{"code":403,"errors":[{"reason":"quotaExceeded","domain":"youtube.quota"}]}}`

type pagerFixture struct {
	pager    *Pager
	client   *Client
	sleeps   []time.Duration
	requests int32
}

func newPagerFixture(t *testing.T, handler func(w http.ResponseWriter, r *http.Request), exchanger TokenExchanger, maxRequests int) *pagerFixture {
	t.Helper()

	f := &pagerFixture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.requests, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := config.YouTubeConfig{
		BaseURL:            server.URL,
		RequestDelayMicros: 100000,
		MaxRequests:        maxRequests,
		Timeout:            5 * time.Second,
	}
	f.client = NewClient(cfg, nil)
	f.pager = NewPager(NewCoordinator(exchanger, nil, nil), cfg, nil).
		WithSleep(func(ctx context.Context, d time.Duration) error {
			f.sleeps = append(f.sleeps, d)
			return nil
		})
	return f
}

func TestPaginate_ThreePagesInOrder(t *testing.T) {
	f := newPagerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("pageToken") {
		case "":
			w.Write([]byte(playlistPage("p2", "a", "b")))
		case "p2":
			w.Write([]byte(playlistPage("p3", "c")))
		case "p3":
			w.Write([]byte(playlistPage("", "d", "e")))
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	}, &fakeExchanger{}, 20)

	result := Paginate(context.Background(), f.pager, testUser(), f.client.VideoSource("UU1", 50))

	require.True(t, result.OK())
	assert.Equal(t, 3, result.RequestsMade)
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.requests))
	assert.Equal(t, 3, result.UnitsUsed)
	assert.False(t, result.Truncated)

	var ids []string
	for _, v := range result.Items {
		ids = append(ids, v.VideoID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)

	// Delay only between pages, never after the last one
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, f.sleeps)
}

func TestPaginate_QuotaExceededStopsImmediately(t *testing.T) {
	f := newPagerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(playlistPage("p2", "a")))
			return
		}
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(quotaBody))
	}, &fakeExchanger{}, 20)

	result := Paginate(context.Background(), f.pager, testUser(), f.client.VideoSource("UU1", 50))

	require.False(t, result.OK())
	assert.True(t, result.Failure.QuotaExceeded)
	assert.Equal(t, MessageQuotaExceeded, result.Failure.Message)
	assert.Nil(t, result.Items)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.requests), "no request after the quota error")
}

func TestPaginate_KnownErrorIsTerminal(t *testing.T) {
	f := newPagerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"errors":[{"reason":"commentsDisabled"}]}}`))
	}, &fakeExchanger{}, 20)

	result := Paginate(context.Background(), f.pager, testUser(), f.client.CommentSource("vid-1", 100))

	require.False(t, result.OK())
	assert.False(t, result.Failure.QuotaExceeded)
	assert.Equal(t, "commentsDisabled", result.Failure.Reason)
	assert.Equal(t, "Komentar dinonaktifkan untuk video ini.", result.Failure.Message)
}

func TestPaginate_UnknownErrorDiscardsPartialResults(t *testing.T) {
	f := newPagerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(playlistPage("p2", "a")))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"errors":[{"reason":"backendError"}]}}`))
	}, &fakeExchanger{}, 20)

	result := Paginate(context.Background(), f.pager, testUser(), f.client.VideoSource("UU1", 50))

	require.False(t, result.OK())
	assert.Equal(t, GenericErrorMessage, result.Failure.Message)
	assert.Nil(t, result.Items)
	assert.Equal(t, 1, result.RequestsMade)
}

func TestPaginate_EmptyFirstPageOfComments(t *testing.T) {
	f := newPagerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	}, &fakeExchanger{}, 20)

	result := Paginate(context.Background(), f.pager, testUser(), f.client.CommentSource("vid-1", 100))

	require.False(t, result.OK())
	assert.True(t, result.Failure.Empty)
	assert.Equal(t, MessageNoComments, result.Failure.Message)
}

func TestPaginate_EmptyPlaylistIsSuccess(t *testing.T) {
	f := newPagerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	}, &fakeExchanger{}, 20)

	result := Paginate(context.Background(), f.pager, testUser(), f.client.VideoSource("UU1", 50))

	require.True(t, result.OK())
	assert.Empty(t, result.Items)
	assert.Equal(t, 1, result.RequestsMade)
}

func TestPaginate_RequestCeiling(t *testing.T) {
	var page int32
	f := newPagerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&page, 1)
		w.Write([]byte(playlistPage(fmt.Sprintf("p%d", n+1), fmt.Sprintf("v%d", n))))
	}, &fakeExchanger{}, 3)

	result := Paginate(context.Background(), f.pager, testUser(), f.client.VideoSource("UU1", 50))

	require.True(t, result.OK())
	assert.True(t, result.Truncated)
	assert.Equal(t, 3, result.RequestsMade)
	assert.Len(t, result.Items, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.requests))
}

func TestPaginate_RefreshOnceThenRetrySamePage(t *testing.T) {
	exchanger := &fakeExchanger{token: "fresh"}
	f := newPagerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		cursor := r.URL.Query().Get("pageToken")
		if token != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if cursor == "" {
			w.Write([]byte(playlistPage("p2", "a")))
			return
		}
		w.Write([]byte(playlistPage("", "b")))
	}, exchanger, 20)
	user := testUser()

	result := Paginate(context.Background(), f.pager, user, f.client.VideoSource("UU1", 50))

	require.True(t, result.OK())
	assert.Equal(t, 1, exchanger.calls)
	assert.Equal(t, "fresh", user.AccessToken)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, 2, result.RequestsMade)
	// initial 401, retried first page, second page
	assert.Equal(t, 3, result.UnitsUsed)
}

func TestPaginate_SecondUnauthorizedIsNotRefreshedAgain(t *testing.T) {
	exchanger := &fakeExchanger{token: "fresh"}
	f := newPagerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer expired" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(playlistPage("p2", "a")))
			return
		}
		// Token revoked mid-pagination
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"errors":[{"reason":"authError"}]}}`))
	}, exchanger, 20)

	result := Paginate(context.Background(), f.pager, testUser(), f.client.VideoSource("UU1", 50))

	require.False(t, result.OK())
	assert.Equal(t, 1, exchanger.calls)
	assert.Equal(t, MessageFailedAfterRefresh, result.Failure.Message)
	assert.Equal(t, OutcomeUnauthorized, result.Failure.Outcome)
}

func TestPaginateWithBudget_SpentBudgetDoesNotRefresh(t *testing.T) {
	exchanger := &fakeExchanger{token: "fresh"}
	f := newPagerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, exchanger, 20)

	budget := &RefreshBudget{}
	require.True(t, budget.Spend())

	result := PaginateWithBudget(context.Background(), f.pager, testUser(), f.client.VideoSource("UU1", 50), budget)

	require.False(t, result.OK())
	assert.Equal(t, 0, exchanger.calls)
	assert.Equal(t, MessageFailedAfterRefresh, result.Failure.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.requests))
}

func TestRefreshBudget(t *testing.T) {
	var budget RefreshBudget
	assert.False(t, budget.Spent())
	assert.True(t, budget.Spend())
	assert.True(t, budget.Spent())
	assert.False(t, budget.Spend())
}

func TestPaginate_FailureOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		outcome Outcome
	}{
		{"comments disabled", 403, `{"error":{"errors":[{"reason":"commentsDisabled"}]}}`, OutcomeDisabled},
		{"video not found", 404, `{"error":{"errors":[{"reason":"videoNotFound"}]}}`, OutcomeNotFound},
		{"forbidden", 403, `{"error":{"errors":[{"reason":"forbidden"}]}}`, OutcomeForbidden},
		{"quota", 403, quotaBody, OutcomeQuotaExceeded},
		{"unknown", 500, `{}`, OutcomeUnknown},
		{"empty first page", 200, `{"items":[]}`, OutcomeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPagerFixture(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, &fakeExchanger{}, 20)

			result := Paginate(context.Background(), f.pager, testUser(), f.client.CommentSource("vid-1", 100))

			require.False(t, result.OK())
			assert.Equal(t, tt.outcome, result.Failure.Outcome)
		})
	}
}

func TestPaginate_RefreshFailureAborts(t *testing.T) {
	f := newPagerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, &fakeExchanger{err: fmt.Errorf("invalid_grant")}, 20)

	result := Paginate(context.Background(), f.pager, testUser(), f.client.CommentSource("vid-1", 100))

	require.False(t, result.OK())
	assert.Equal(t, MessageTokenInvalid, result.Failure.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.requests))
}

func TestPaginate_MissingRefreshToken(t *testing.T) {
	exchanger := &fakeExchanger{token: "fresh"}
	f := newPagerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, exchanger, 20)
	user := &models.User{ID: "user-1", AccessToken: "expired"}

	result := Paginate(context.Background(), f.pager, user, f.client.VideoSource("UU1", 50))

	require.False(t, result.OK())
	assert.Equal(t, MessageRefreshUnavailable, result.Failure.Message)
	assert.Equal(t, 0, exchanger.calls)
}

func TestPaginate_CancelledDuringDelay(t *testing.T) {
	f := newPagerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(playlistPage("next", "a")))
	}, &fakeExchanger{}, 20)
	f.pager.WithSleep(sleepContext)
	f.pager.delay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := Paginate(ctx, f.pager, testUser(), f.client.VideoSource("UU1", 50))

	require.False(t, result.OK())
	assert.ErrorIs(t, result.Failure.Err, context.DeadlineExceeded)
}

func TestParseChannel(t *testing.T) {
	info, ok, err := ParseChannel([]byte(`{"items":[{"id":"UC1","contentDetails":{"relatedPlaylists":{"uploads":"UU1"}}}]}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.ChannelInfo{ChannelID: "UC1", UploadsPlaylistID: "UU1"}, info)

	_, ok, err = ParseChannel([]byte(`{"items":[]}`))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseChannel([]byte(`not json`))
	assert.Error(t, err)
}
