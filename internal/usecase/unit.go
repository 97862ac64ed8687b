package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/naka-gawa/github-scorecard/internal/domain"
	"github.com/naka-gawa/github-scorecard/internal/gateway"
	"go.uber.org/zap"
)

// WorkUnitError means a pull request could not be scored at all.
type WorkUnitError struct {
	Number int
	Reason string
}

func (e *WorkUnitError) Error() string {
	return fmt.Sprintf("pull request #%d: %s", e.Number, e.Reason)
}

// ScorePullRequest scores one pull request and the comments and reviews on it.
//
// A pull request created before the cutoff scores nothing, even when its
// comments or reviews are newer. Comment and review fetch failures are logged
// and score nothing. A rate-limit error stops the unit: the tally built so far
// is returned together with the error.
func ScorePullRequest(ctx context.Context, fetcher gateway.Fetcher, repo domain.RepositoryRef, pr domain.PullRequest, cutoff time.Time, policy domain.ScoringPolicy, logger *zap.Logger) (domain.ScoreTally, error) {
	tally := domain.ScoreTally{}
	if pr.Author == "" {
		return tally, &WorkUnitError{Number: pr.Number, Reason: "author login is missing"}
	}
	if !domain.Included(pr.CreatedAt, cutoff) {
		return tally, nil
	}

	tally.Add(pr.Author, policy.PointsFor(domain.PullRequestCreated))

	nested := []struct {
		kind  domain.EventKind
		fetch func(context.Context, domain.RepositoryRef, int) ([]domain.Activity, error)
	}{
		{kind: domain.CommentPosted, fetch: fetcher.ListComments},
		{kind: domain.ReviewSubmitted, fetch: fetcher.ListReviews},
	}
	for _, n := range nested {
		activities, err := n.fetch(ctx, repo, pr.Number)
		if err != nil {
			if gateway.IsRateLimited(err) {
				return tally, err
			}
			logger.Warn("skipping activity after fetch error",
				zap.Int("pull_request", pr.Number),
				zap.String("kind", string(n.kind)),
				zap.Error(err))
			continue
		}
		for _, ev := range classify(activities, n.kind) {
			if ev.Author == "" || !domain.Included(ev.At, cutoff) {
				continue
			}
			tally.Add(ev.Author, policy.PointsFor(ev.Kind))
		}
	}
	return tally, nil
}

func classify(activities []domain.Activity, kind domain.EventKind) []domain.Event {
	events := make([]domain.Event, 0, len(activities))
	for _, a := range activities {
		events = append(events, domain.Event{Author: a.Author, At: a.At, Kind: kind})
	}
	return events
}
