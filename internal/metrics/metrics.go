// Package metrics records scoring-run metrics in a Prometheus registry and
// writes them out for the node_exporter textfile collector.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/naka-gawa/github-scorecard/internal/domain"
	"github.com/naka-gawa/github-scorecard/internal/gateway"
)

// Recorder owns a private registry so one-shot runs never touch the global one.
type Recorder struct {
	registry *prometheus.Registry

	apiRequests  *prometheus.CounterVec
	runDuration  prometheus.Gauge
	pullRequests *prometheus.GaugeVec
	partial      prometheus.Gauge
	points       *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with every collector registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scorecard_api_requests_total",
			Help: "GitHub list operations by resource and outcome.",
		}, []string{"resource", "outcome"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scorecard_run_duration_seconds",
			Help: "Wall time of the last scoring run.",
		}),
		pullRequests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scorecard_pull_requests",
			Help: "Pull requests listed and processed in the last run.",
		}, []string{"state"}),
		partial: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scorecard_run_partial",
			Help: "1 when the last run stopped early on a rate limit.",
		}),
		points: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scorecard_author_points",
			Help: "Points per author in the last run.",
		}, []string{"repository", "author"}),
	}
	r.registry.MustRegister(r.apiRequests, r.runDuration, r.pullRequests, r.partial, r.points)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRun records the outcome of one run.
func (r *Recorder) ObserveRun(repo domain.RepositoryRef, tally domain.ScoreTally, processed, total int, partial bool, took time.Duration) {
	r.runDuration.Set(took.Seconds())
	r.pullRequests.WithLabelValues("listed").Set(float64(total))
	r.pullRequests.WithLabelValues("processed").Set(float64(processed))
	if partial {
		r.partial.Set(1)
	} else {
		r.partial.Set(0)
	}
	for author, pts := range tally {
		r.points.WithLabelValues(repo.String(), author).Set(float64(pts))
	}
}

// WriteTextfile writes the registry to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// InstrumentFetcher counts every call made through f.
func (r *Recorder) InstrumentFetcher(f gateway.Fetcher) gateway.Fetcher {
	return &instrumentedFetcher{next: f, requests: r.apiRequests}
}

type instrumentedFetcher struct {
	next     gateway.Fetcher
	requests *prometheus.CounterVec
}

func (f *instrumentedFetcher) ListPullRequests(ctx context.Context, repo domain.RepositoryRef) ([]domain.PullRequest, error) {
	prs, err := f.next.ListPullRequests(ctx, repo)
	f.observe("pull_requests", err)
	return prs, err
}

func (f *instrumentedFetcher) ListComments(ctx context.Context, repo domain.RepositoryRef, number int) ([]domain.Activity, error) {
	comments, err := f.next.ListComments(ctx, repo, number)
	f.observe("comments", err)
	return comments, err
}

func (f *instrumentedFetcher) ListReviews(ctx context.Context, repo domain.RepositoryRef, number int) ([]domain.Activity, error) {
	reviews, err := f.next.ListReviews(ctx, repo, number)
	f.observe("reviews", err)
	return reviews, err
}

func (f *instrumentedFetcher) observe(resource string, err error) {
	f.requests.WithLabelValues(resource, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gateway.ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}
