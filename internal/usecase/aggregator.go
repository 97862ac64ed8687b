// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/naka-gawa/github-scorecard/internal/domain"
	"github.com/naka-gawa/github-scorecard/internal/gateway"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of pull requests scored at once.
const DefaultConcurrency = 10

// ErrAggregatorUsed is returned when Aggregate is called a second time.
var ErrAggregatorUsed = errors.New("aggregator already ran; create a new one per run")

// State is the lifecycle position of an Aggregator.
type State int

const (
	StateIdle State = iota
	StateFetchingList
	StateRunning
	StateDraining
	StateCompleted
	StateCompletedWithWarning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingList:
		return "fetching_list"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	case StateCompletedWithWarning:
		return "completed_with_warning"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Progress receives completion updates. Calls are serialized by the Aggregator.
type Progress interface {
	SetTotal(n int)
	Increment(label string)
	Finish()
}

type noopProgress struct{}

func (noopProgress) SetTotal(int)     {}
func (noopProgress) Increment(string) {}
func (noopProgress) Finish()          {}

// AggregationWarning marks a result that stopped early.
type AggregationWarning struct {
	Processed int
	Total     int
	Reason    string
}

func (w *AggregationWarning) String() string {
	return fmt.Sprintf("results are partial: %d of %d pull requests processed (%s)", w.Processed, w.Total, w.Reason)
}

// Result is the outcome of one run.
type Result struct {
	Tally     domain.ScoreTally
	Warning   *AggregationWarning
	Processed int
	Total     int
}

// Partial reports whether the run stopped before every pull request was scored.
func (r *Result) Partial() bool {
	return r.Warning != nil
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency caps the number of pull requests scored at once.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithProgress attaches a progress collaborator.
func WithProgress(p Progress) Option {
	return func(a *Aggregator) {
		if p != nil {
			a.progress = p
		}
	}
}

// Aggregator is the use case for scoring a repository.
// It fans pull requests out over a bounded pool and merges each unit's tally
// into one total. An Aggregator runs once.
type Aggregator struct {
	fetcher     gateway.Fetcher
	logger      *zap.Logger
	concurrency int
	progress    Progress

	mu        sync.Mutex
	state     State
	total     domain.ScoreTally
	processed int

	stop       atomic.Bool
	stopReason atomic.Value
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.Fetcher, logger *zap.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		fetcher:     fetcher,
		logger:      logger,
		concurrency: DefaultConcurrency,
		progress:    noopProgress{},
		total:       domain.ScoreTally{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the current lifecycle state.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Aggregator) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Aggregate performs the main business logic.
// A failure to list the pull requests and a cancelled ctx are returned as
// errors. A rate limit hit while scoring stops further scheduling and yields a
// partial result with a warning.
func (a *Aggregator) Aggregate(ctx context.Context, repo domain.RepositoryRef, cutoff time.Time, policy domain.ScoringPolicy) (*Result, error) {
	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return nil, ErrAggregatorUsed
	}
	a.state = StateFetchingList
	a.mu.Unlock()

	a.logger.Info("starting aggregation", zap.Stringer("repo", repo), zap.Time("cutoff", cutoff))
	pullRequests, err := a.fetcher.ListPullRequests(ctx, repo)
	if err != nil {
		a.setState(StateFailed)
		return nil, fmt.Errorf("list pull requests: %w", err)
	}

	a.setState(StateRunning)
	a.progress.SetTotal(len(pullRequests))

	eg := new(errgroup.Group)
	eg.SetLimit(a.concurrency)
	for _, pr := range pullRequests {
		if a.stop.Load() || ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if a.stop.Load() || ctx.Err() != nil {
				return nil
			}
			local, err := ScorePullRequest(ctx, a.fetcher, repo, pr, cutoff, policy, a.logger)
			if err != nil {
				a.handleUnitError(pr, err)
			}
			if err == nil || gateway.IsRateLimited(err) {
				a.merge(pr, local)
			} else {
				a.merge(pr, nil)
			}
			return nil
		})
	}

	a.setState(StateDraining)
	_ = eg.Wait()
	a.progress.Finish()

	if err := ctx.Err(); err != nil {
		a.setState(StateFailed)
		a.logger.Warn("aggregation interrupted", zap.Int("processed", a.processed), zap.Int("total", len(pullRequests)))
		return nil, fmt.Errorf("aggregation interrupted: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	result := &Result{
		Tally:     a.total,
		Processed: a.processed,
		Total:     len(pullRequests),
	}
	if a.stop.Load() {
		reason, _ := a.stopReason.Load().(string)
		result.Warning = &AggregationWarning{Processed: a.processed, Total: len(pullRequests), Reason: reason}
		a.state = StateCompletedWithWarning
		a.logger.Warn("aggregation stopped early", zap.Int("processed", a.processed), zap.Int("total", len(pullRequests)), zap.String("reason", reason))
	} else {
		a.state = StateCompleted
		a.logger.Info("aggregation complete", zap.Int("processed", a.processed), zap.Int("authors", len(a.total)))
	}
	return result, nil
}

func (a *Aggregator) handleUnitError(pr domain.PullRequest, err error) {
	if gateway.IsRateLimited(err) {
		if a.stop.CompareAndSwap(false, true) {
			a.stopReason.Store(err.Error())
		}
		a.logger.Warn("rate limit reached, no further pull requests will be scheduled", zap.Int("pull_request", pr.Number), zap.Error(err))
		return
	}
	a.logger.Error("pull request skipped", zap.Int("pull_request", pr.Number), zap.Error(err))
}

// merge folds one unit's tally into the shared total and advances progress.
func (a *Aggregator) merge(pr domain.PullRequest, local domain.ScoreTally) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total.Merge(local)
	a.processed++
	a.progress.Increment("Processing PR: " + progressTitle(pr.Title))
}

func progressTitle(title string) string {
	const width = 50
	runes := []rune(title)
	if len(runes) > width {
		runes = runes[:width]
	}
	return fmt.Sprintf("%-*s", width, string(runes))
}
