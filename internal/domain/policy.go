package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventKind is a scored kind of pull-request activity.
type EventKind string

const (
	PullRequestCreated EventKind = "pull_request"
	CommentPosted      EventKind = "pull_request_comment"
	ReviewSubmitted    EventKind = "pull_request_review"
)

// EventKinds lists every scored kind in display order.
var EventKinds = []EventKind{PullRequestCreated, CommentPosted, ReviewSubmitted}

// ErrNegativePoints is returned when a policy assigns a negative value.
var ErrNegativePoints = errors.New("points must not be negative")

// ScoringPolicy maps event kinds to point values. It is immutable once built;
// the zero value scores everything as 0.
type ScoringPolicy struct {
	points map[EventKind]int
}

// NewScoringPolicy copies points into a new policy. Kinds left out score 0.
func NewScoringPolicy(points map[EventKind]int) (ScoringPolicy, error) {
	copied := make(map[EventKind]int, len(points))
	for kind, value := range points {
		if !kind.valid() {
			return ScoringPolicy{}, fmt.Errorf("unknown event kind %q", kind)
		}
		if value < 0 {
			return ScoringPolicy{}, fmt.Errorf("%s: %w", kind, ErrNegativePoints)
		}
		copied[kind] = value
	}
	return ScoringPolicy{points: copied}, nil
}

// DefaultScoringPolicy returns 12 points per pull request, 1 per comment and 3 per review.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{points: map[EventKind]int{
		PullRequestCreated: 12,
		CommentPosted:      1,
		ReviewSubmitted:    3,
	}}
}

// PointsFor returns the value of one event of the given kind.
func (p ScoringPolicy) PointsFor(kind EventKind) int {
	return p.points[kind]
}

// Points returns a copy of the configured values.
func (p ScoringPolicy) Points() map[EventKind]int {
	out := make(map[EventKind]int, len(p.points))
	for kind, value := range p.points {
		out[kind] = value
	}
	return out
}

func (p ScoringPolicy) MarshalJSON() ([]byte, error) {
	out := make(map[string]int, len(EventKinds))
	for _, kind := range EventKinds {
		out[string(kind)] = p.PointsFor(kind)
	}
	return json.Marshal(out)
}

func (p *ScoringPolicy) UnmarshalJSON(data []byte) error {
	var raw map[EventKind]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewScoringPolicy(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (k EventKind) valid() bool {
	switch k {
	case PullRequestCreated, CommentPosted, ReviewSubmitted:
		return true
	}
	return false
}
