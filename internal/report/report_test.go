package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/github-scorecard/internal/domain"
	"github.com/naka-gawa/github-scorecard/internal/store"
)

func testBoard() domain.Scoreboard {
	return domain.Scoreboard{
		RunID:      uuid.MustParse("6f1c3c1e-4a5b-4c7d-8e9f-0a1b2c3d4e5f"),
		Repository: domain.RepositoryRef{Owner: "any-org", Name: "any-repo"},
		Tally:      domain.ScoreTally{"bob": 2, "alice": 15, "carol": 2},
		Policy:     domain.DefaultScoringPolicy(),
		RangeLabel: "Last Week",
	}
}

func TestRank(t *testing.T) {
	entries := Rank(domain.ScoreTally{"bob": 2, "alice": 15, "carol": 2})

	assert.Equal(t, []Entry{
		{Login: "alice", Points: 15},
		{Login: "bob", Points: 2},
		{Login: "carol", Points: 2},
	}, entries)
}

func TestSummarize(t *testing.T) {
	testCases := []struct {
		name     string
		tally    domain.ScoreTally
		expected Summary
	}{
		{name: "empty", tally: domain.ScoreTally{}, expected: Summary{}},
		{name: "odd count", tally: domain.ScoreTally{"a": 15, "b": 2, "c": 1}, expected: Summary{Contributors: 3, Total: 18, Mean: 6, Median: 2}},
		{name: "even count", tally: domain.ScoreTally{"a": 10, "b": 2}, expected: Summary{Contributors: 2, Total: 12, Mean: 6, Median: 6}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			summary, err := Summarize(tc.tally)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, summary)
		})
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	board := testBoard()
	board.Partial = true

	require.NoError(t, WriteTable(&buf, board))

	out := buf.String()
	lines := strings.Split(out, "\n")
	assert.Equal(t, "Score Board", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[2], "alice")
	assert.Contains(t, lines[2], "15 ★")
	assert.NotContains(t, lines[3], "★")
	assert.Contains(t, out, "Repository Name:")
	assert.Contains(t, out, "any-org/any-repo")
	assert.Contains(t, out, "Range:")
	assert.Contains(t, out, "Contributors: 3  Total: 19")
	assert.Contains(t, out, "results are partial")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", testBoard()))

	var decoded struct {
		Repository string         `json:"repository"`
		Points     map[string]int `json:"points"`
		Scores     []Entry        `json:"scores"`
		Partial    bool           `json:"partial"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "any-org/any-repo", decoded.Repository)
	assert.Equal(t, 12, decoded.Points["pull_request"])
	assert.Equal(t, "alice", decoded.Scores[0].Login)
	assert.False(t, decoded.Partial)
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "xml", testBoard())
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteTallyCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTallyCSV(&buf, Rank(testBoard().Tally)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"nickname", "points"},
		{"alice", "15"},
		{"bob", "2"},
		{"carol", "2"},
	}, rows)
}

func TestWriteRecordsCSV(t *testing.T) {
	board := testBoard()
	board.CreatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	records := []store.Record{{ID: 7, Scoreboard: board, UpdatedAt: board.CreatedAt}}

	var buf bytes.Buffer
	require.NoError(t, WriteRecordsCSV(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "repository_name", rows[0][2])
	assert.Equal(t, "7", rows[1][0])
	assert.Equal(t, "any-org/any-repo", rows[1][2])
	assert.JSONEq(t, `{"alice":15,"bob":2,"carol":2}`, rows[1][3])
	assert.JSONEq(t, `{"pull_request":12,"pull_request_comment":1,"pull_request_review":3}`, rows[1][4])
	assert.Equal(t, "2024-05-01T12:00:00Z", rows[1][7])
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "scoreboard_data_20240501120304.csv", ExportFilename(time.Date(2024, 5, 1, 12, 3, 4, 0, time.UTC)))
}
