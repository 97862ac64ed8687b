// Package report renders scoreboards for people and for other programs.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/montanaflynn/stats"
	"github.com/naka-gawa/github-scorecard/internal/domain"
)

// Entry is one ranked row of a scoreboard.
type Entry struct {
	Login  string `json:"login"`
	Points int    `json:"points"`
}

// Summary describes the distribution of points across contributors.
type Summary struct {
	Contributors int     `json:"contributors"`
	Total        int     `json:"total"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
}

// Rank orders a tally by points, highest first. Ties are broken by login so
// the output is stable.
func Rank(tally domain.ScoreTally) []Entry {
	entries := make([]Entry, 0, len(tally))
	for login, points := range tally {
		entries = append(entries, Entry{Login: login, Points: points})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].Login < entries[j].Login
	})
	return entries
}

// Summarize computes contributor count, total, mean and median points.
func Summarize(tally domain.ScoreTally) (Summary, error) {
	summary := Summary{Contributors: len(tally), Total: tally.Total()}
	if len(tally) == 0 {
		return summary, nil
	}
	data := make(stats.Float64Data, 0, len(tally))
	for _, points := range tally {
		data = append(data, float64(points))
	}
	mean, err := data.Mean()
	if err != nil {
		return Summary{}, fmt.Errorf("mean: %w", err)
	}
	median, err := data.Median()
	if err != nil {
		return Summary{}, fmt.Errorf("median: %w", err)
	}
	summary.Mean = mean
	summary.Median = median
	return summary, nil
}

// WriteTable prints the score board followed by the run configuration.
func WriteTable(w io.Writer, board domain.Scoreboard) error {
	summary, err := Summarize(board.Tally)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "Score Board")
	fmt.Fprintln(tw, "Nickname\tPoints\t")
	for i, entry := range Rank(board.Tally) {
		star := ""
		if i == 0 {
			star = "★"
		}
		fmt.Fprintf(tw, "%s\t%d %s\t\n", entry.Login, entry.Points, star)
	}
	fmt.Fprintln(tw, "\t\t")
	fmt.Fprintln(tw, "Configuration")
	fmt.Fprintf(tw, "Pull Request(PR) Points:\t%d\t\n", board.Policy.PointsFor(domain.PullRequestCreated))
	fmt.Fprintf(tw, "PR Comment Points:\t%d\t\n", board.Policy.PointsFor(domain.CommentPosted))
	fmt.Fprintf(tw, "PR Review Points:\t%d\t\n", board.Policy.PointsFor(domain.ReviewSubmitted))
	fmt.Fprintf(tw, "Repository Name:\t%s\t\n", board.Repository)
	fmt.Fprintf(tw, "Range:\t%s\t\n", board.RangeLabel)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nContributors: %d  Total: %d  Mean: %.2f  Median: %.2f\n",
		summary.Contributors, summary.Total, summary.Mean, summary.Median)
	if board.Partial {
		fmt.Fprintln(w, "WARNING: rate limit reached, results are partial.")
	}
	return nil
}

type jsonScoreboard struct {
	RunID      string               `json:"run_id"`
	Repository string               `json:"repository"`
	Range      string               `json:"range"`
	Partial    bool                 `json:"partial"`
	Policy     domain.ScoringPolicy `json:"points"`
	Scores     []Entry              `json:"scores"`
	Summary    Summary              `json:"summary"`
}

// WriteJSON prints the scoreboard as pretty-printed JSON.
func WriteJSON(w io.Writer, board domain.Scoreboard) error {
	summary, err := Summarize(board.Tally)
	if err != nil {
		return err
	}
	// Marshal the results into a pretty-printed JSON string.
	jsonData, err := json.MarshalIndent(jsonScoreboard{
		RunID:      board.RunID.String(),
		Repository: board.Repository.String(),
		Range:      board.RangeLabel,
		Partial:    board.Partial,
		Policy:     board.Policy,
		Scores:     Rank(board.Tally),
		Summary:    summary,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results to JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

// ErrUnknownFormat is returned by Write for formats other than table and json.
var ErrUnknownFormat = errors.New("unknown output format")

// Write dispatches on format ("table" or "json").
func Write(w io.Writer, format string, board domain.Scoreboard) error {
	switch format {
	case "", "table":
		return WriteTable(w, board)
	case "json":
		return WriteJSON(w, board)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
