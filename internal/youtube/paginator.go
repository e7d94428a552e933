package youtube

import (
	"context"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/config"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/metrics"
	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
)

// DefaultMaxRequests bounds the number of pages of one paginated fetch
const DefaultMaxRequests = 20

// FetchPageFunc requests one page. cursor is empty for the first page.
type FetchPageFunc func(ctx context.Context, accessToken, cursor string) (*Response, error)

// ParsePageFunc decodes one successful page into items and the next cursor
type ParsePageFunc[T any] func(body []byte) (items []T, next string, err error)

// PageSource describes one paginated endpoint
type PageSource[T any] struct {
	// Name labels metrics and logs ("videos", "comments").
	Name  string
	Kind  ErrorKind
	Fetch FetchPageFunc
	Parse ParsePageFunc[T]
	// EmptyMessage, when set, turns an empty first page into a failure
	// carrying this message instead of an empty success.
	EmptyMessage string
}

// Failure explains why a paginated fetch stopped without a result
type Failure struct {
	Message       string
	QuotaExceeded bool
	// Empty marks the "first page had no items" outcome.
	Empty   bool
	Reason  string
	Outcome Outcome
	Err     error
}

// PageResult is the outcome of one paginated fetch
type PageResult[T any] struct {
	Items        []T
	RequestsMade int
	// UnitsUsed counts every call that reached YouTube, retries included.
	UnitsUsed int
	Truncated bool
	Failure   *Failure
}

// OK reports whether the fetch produced a result
func (r PageResult[T]) OK() bool {
	return r.Failure == nil
}

// Pager runs paginated fetches sequentially with a courtesy delay
type Pager struct {
	coordinator *Coordinator
	delay       time.Duration
	maxRequests int
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *logging.Logger
}

// NewPager creates a pager using the delay and request ceiling from cfg
func NewPager(coordinator *Coordinator, cfg config.YouTubeConfig, logger *logging.Logger) *Pager {
	maxRequests := cfg.MaxRequests
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pager{
		coordinator: coordinator,
		delay:       cfg.RequestDelay(),
		maxRequests: maxRequests,
		sleep:       sleepContext,
		logger:      logger.WithComponent("pagination"),
	}
}

// WithSleep replaces the delay implementation
func (p *Pager) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Pager {
	p.sleep = sleep
	return p
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RefreshBudget allows a single token refresh across all the upstream calls
// of one operation. The zero value has the refresh still available.
type RefreshBudget struct {
	spent bool
}

// Spend reports whether the refresh was still available and marks it used
func (b *RefreshBudget) Spend() bool {
	if b.spent {
		return false
	}
	b.spent = true
	return true
}

// Spent reports whether the refresh was already used
func (b *RefreshBudget) Spent() bool {
	return b.spent
}

// Paginate follows page cursors until the last page, a failure or the
// request ceiling. The access token is refreshed at most once per call and
// every page uses the user's current token.
func Paginate[T any](ctx context.Context, p *Pager, user *models.User, src PageSource[T]) PageResult[T] {
	return PaginateWithBudget(ctx, p, user, src, &RefreshBudget{})
}

// PaginateWithBudget is Paginate drawing its refresh from budget, so an
// operation that already refreshed the token does not refresh it again.
func PaginateWithBudget[T any](ctx context.Context, p *Pager, user *models.User, src PageSource[T], budget *RefreshBudget) PageResult[T] {
	log := p.logger.WithUserID(user.ID).WithField("source", src.Name)

	var (
		result PageResult[T]
		cursor string
	)

	defer func() {
		metrics.RecordPagination(src.Name, result.RequestsMade)
	}()

	fail := func(f *Failure) PageResult[T] {
		result.Items = nil
		result.Failure = f
		return result
	}

	for {
		if result.RequestsMade >= p.maxRequests {
			result.Truncated = true
			log.WithField("max_requests", p.maxRequests).
				Warn("Request ceiling reached, returning partial results")
			break
		}

		resp, err := src.Fetch(ctx, user.AccessToken, cursor)
		if err != nil {
			log.ErrorWithErr("Page request failed", err)
			return fail(&Failure{Message: GenericErrorMessage, Outcome: OutcomeUnknown, Err: err})
		}
		result.UnitsUsed += ListCost

		if resp.Unauthorized() && budget.Spent() {
			log.Warn("Access token rejected again after refresh")
			return fail(&Failure{Message: MessageFailedAfterRefresh, Outcome: OutcomeUnauthorized})
		}

		if resp.Unauthorized() && p.coordinator != nil && budget.Spend() {
			pageCursor := cursor
			outcome := p.coordinator.Handle(ctx, user, resp, func(ctx context.Context, accessToken string) (*Response, error) {
				retried, err := src.Fetch(ctx, accessToken, pageCursor)
				if err == nil {
					result.UnitsUsed += ListCost
				}
				return retried, err
			})
			if !outcome.Success {
				if outcome.Refreshed && outcome.Response != nil && IsQuotaExceeded(outcome.Response) {
					return fail(p.quotaFailure(log, src.Name))
				}
				return fail(outcome.Failure(src.Kind))
			}
			resp = outcome.Response
		}

		if !resp.Successful() {
			cls := Classify(src.Kind, resp)
			if cls.QuotaExceeded {
				return fail(p.quotaFailure(log, src.Name))
			}
			if cls.Known {
				log.WithField("reason", cls.Reason).Warn("Pagination stopped by upstream error")
				return fail(&Failure{Message: cls.Message, Reason: cls.Reason, Outcome: cls.Outcome})
			}
			log.WithField("status", resp.StatusCode).
				WithField("reason", cls.Reason).
				WithField("response_body", string(truncate(resp.Body, maxLoggedResponseBytes))).
				Error("Unexpected upstream error during pagination")
			return fail(&Failure{Message: GenericErrorMessage, Reason: cls.Reason, Outcome: OutcomeUnknown})
		}

		items, next, err := src.Parse(resp.Body)
		if err != nil {
			log.ErrorWithErr("Failed to decode page", err)
			return fail(&Failure{Message: GenericErrorMessage, Outcome: OutcomeUnknown, Err: err})
		}

		if result.RequestsMade == 0 && len(items) == 0 && src.EmptyMessage != "" {
			result.RequestsMade++
			return fail(&Failure{Message: src.EmptyMessage, Empty: true, Outcome: OutcomeNotFound})
		}

		result.Items = append(result.Items, items...)
		result.RequestsMade++
		cursor = next

		if cursor == "" {
			break
		}

		if err := p.sleep(ctx, p.delay); err != nil {
			log.ErrorWithErr("Pagination interrupted", err)
			return fail(&Failure{Message: GenericErrorMessage, Outcome: OutcomeUnknown, Err: err})
		}
	}

	log.WithField("requests", result.RequestsMade).
		WithField("items", len(result.Items)).
		Debug("Pagination finished")

	return result
}

func (p *Pager) quotaFailure(log *logging.Logger, source string) *Failure {
	metrics.RecordQuotaExceeded(source)
	log.Critical("YouTube API quota exceeded, aborting pagination")
	return &Failure{
		Message:       MessageQuotaExceeded,
		QuotaExceeded: true,
		Reason:        ReasonQuotaExceeded,
		Outcome:       OutcomeQuotaExceeded,
	}
}
