// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScoreTally maps an author login to the points accumulated in one scoring run.
// Logins are case-sensitive.
type ScoreTally map[string]int

// Add awards points to an author.
func (t ScoreTally) Add(author string, points int) {
	t[author] += points
}

// Merge sums other into t. Authors present only in other are added.
func (t ScoreTally) Merge(other ScoreTally) {
	for author, points := range other {
		t[author] += points
	}
}

// Total returns the sum of all points in the tally.
func (t ScoreTally) Total() int {
	total := 0
	for _, points := range t {
		total += points
	}
	return total
}

// Clone returns an independent copy of the tally.
func (t ScoreTally) Clone() ScoreTally {
	out := make(ScoreTally, len(t))
	out.Merge(t)
	return out
}

// Merged combines any number of tallies into a new one without touching the inputs.
func Merged(tallies ...ScoreTally) ScoreTally {
	out := ScoreTally{}
	for _, t := range tallies {
		out.Merge(t)
	}
	return out
}

// Scoreboard is the result of one run as handed to persistence and reporting.
type Scoreboard struct {
	RunID      uuid.UUID
	Repository RepositoryRef
	Tally      ScoreTally
	Policy     ScoringPolicy
	RangeLabel string
	Partial    bool
	CreatedAt  time.Time
}
