package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/naka-gawa/github-scorecard/internal/store"
)

// WriteTallyCSV writes one ranked row per contributor.
func WriteTallyCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"nickname", "points"}); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.Login, strconv.Itoa(e.Points)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRecordsCSV dumps stored scoreboards with the column names of the
// scoreboards table as the header row.
func WriteRecordsCSV(w io.Writer, records []store.Record) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "run_id", "repository_name", "score_data", "config_data", "score_range", "partial", "created_at", "updated_at"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		scoreData, err := json.Marshal(r.Tally)
		if err != nil {
			return fmt.Errorf("encode score data for record %d: %w", r.ID, err)
		}
		configData, err := json.Marshal(r.Policy)
		if err != nil {
			return fmt.Errorf("encode config data for record %d: %w", r.ID, err)
		}
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.RunID.String(),
			r.Repository.String(),
			string(scoreData),
			string(configData),
			r.RangeLabel,
			strconv.FormatBool(r.Partial),
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename returns the default export name, scoreboard_data_<timestamp>.csv.
func ExportFilename(now time.Time) string {
	return "scoreboard_data_" + now.Format("20060102150405") + ".csv"
}
