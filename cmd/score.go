package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naka-gawa/github-scorecard/internal/config"
	"github.com/naka-gawa/github-scorecard/internal/domain"
	"github.com/naka-gawa/github-scorecard/internal/gateway"
	"github.com/naka-gawa/github-scorecard/internal/metrics"
	"github.com/naka-gawa/github-scorecard/internal/progress"
	"github.com/naka-gawa/github-scorecard/internal/report"
	"github.com/naka-gawa/github-scorecard/internal/store"
	"github.com/naka-gawa/github-scorecard/internal/usecase"
)

const inputDateLayout = "2006/01/02"

var errNoDatabase = errors.New("database.url is not set (use --database-url or SCORECARD_DATABASE__URL)")

func newScoreCmd() *cobra.Command {
	scoreCmd := &cobra.Command{
		Use:   "score [repository-url]",
		Short: "Scores pull-request activity on a repository and prints a ranked scoreboard",
		Long: `Scores pull requests opened, comments posted and reviews submitted on a single
GitHub repository within a time window. The repository may be given as a URL
(https://github.com/owner/name) or as owner/name, either positionally or via --repo.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScore,
	}
	scoreCmd.Flags().StringP("repo", "r", "", "Target repository URL or owner/name")
	scoreCmd.Flags().String("range", "week", "Time window: week, month or year (1, 2, 3 also accepted)")
	scoreCmd.Flags().String("since", "", "Start date for the window (YYYY/MM/DD); overrides --range")
	scoreCmd.Flags().Int("pr-points", 0, "Points per pull request opened (overrides scoring.pull_request)")
	scoreCmd.Flags().Int("comment-points", 0, "Points per comment posted (overrides scoring.pull_request_comment)")
	scoreCmd.Flags().Int("review-points", 0, "Points per review submitted (overrides scoring.pull_request_review)")
	scoreCmd.Flags().Int("concurrency", 0, "Pull requests scored at once (overrides concurrency)")
	scoreCmd.Flags().String("api-base-url", "", "GitHub Enterprise base URL (overrides github.api_base_url)")
	scoreCmd.Flags().StringP("format", "f", "table", "Output format: table or json")
	scoreCmd.Flags().String("csv", "", "Also write the ranked tally to this CSV file")
	scoreCmd.Flags().Bool("save", false, "Persist the scoreboard to PostgreSQL")
	scoreCmd.Flags().Bool("no-progress", false, "Disable the progress bar")
	return scoreCmd
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	applyScoreFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	rawRepo, _ := cmd.Flags().GetString("repo")
	if len(args) == 1 {
		rawRepo = args[0]
	}
	repo, err := domain.ParseRepositoryURL(rawRepo)
	if err != nil {
		return err
	}

	window, err := resolveWindow(cmd, time.Now())
	if err != nil {
		return err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}

	runID := uuid.New()
	logger = logger.With(zap.String("run_id", runID.String()), zap.String("repository", repo.String()))
	logger.Info("starting scoring run",
		zap.String("range", window.Label),
		zap.Time("cutoff", window.Cutoff),
		zap.Int("concurrency", cfg.Concurrency))

	githubGateway, err := gateway.NewGitHubGateway(gateway.Options{
		Token:              cfg.GitHub.Token,
		BaseURL:            cfg.GitHub.APIBaseURL,
		PageSize:           cfg.GitHub.PageSize,
		PullRequestSource:  cfg.GitHub.PullRequestSource,
		SecondaryLimitWait: cfg.GitHub.SecondaryLimitWait,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create GitHub gateway: %w", err)
	}

	recorder := metrics.NewRecorder()
	format, _ := cmd.Flags().GetString("format")
	opts := []usecase.Option{usecase.WithConcurrency(cfg.Concurrency)}
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); !noProgress && format != "json" {
		opts = append(opts, usecase.WithProgress(progress.NewBar(cmd.ErrOrStderr(), "Starting download...")))
	}
	aggregator := usecase.NewAggregator(recorder.InstrumentFetcher(githubGateway), logger, opts...)

	started := time.Now()
	result, err := aggregator.Aggregate(ctx, repo, window.Cutoff, policy)
	if err != nil {
		return fmt.Errorf("failed to aggregate scores: %w", err)
	}
	recorder.ObserveRun(repo, result.Tally, result.Processed, result.Total, result.Partial(), time.Since(started))

	board := domain.Scoreboard{
		RunID:      runID,
		Repository: repo,
		Tally:      result.Tally,
		Policy:     policy,
		RangeLabel: window.Label,
		Partial:    result.Partial(),
		CreatedAt:  time.Now(),
	}
	if result.Warning != nil {
		logger.Warn("scoring stopped early",
			zap.Int("processed", result.Warning.Processed),
			zap.Int("total", result.Warning.Total),
			zap.String("reason", result.Warning.Reason))
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", result.Warning.String())
	}

	if err := report.Write(cmd.OutOrStdout(), format, board); err != nil {
		return err
	}

	if csvPath, _ := cmd.Flags().GetString("csv"); csvPath != "" {
		if err := writeFile(csvPath, func(w io.Writer) error {
			return report.WriteTallyCSV(w, report.Rank(board.Tally))
		}); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Scoreboard written to %s\n", csvPath)
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		id, err := saveScoreboard(ctx, cfg, board, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Data saved successfully (id %d).\n", id)
	}

	if cfg.Metrics.Textfile != "" {
		if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// applyScoreFlags copies explicitly set flags over the loaded configuration.
func applyScoreFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	overrideInt := func(name string, dst *int) {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	overrideInt("pr-points", &cfg.Scoring.PullRequest)
	overrideInt("comment-points", &cfg.Scoring.PullRequestComment)
	overrideInt("review-points", &cfg.Scoring.PullRequestReview)
	overrideInt("concurrency", &cfg.Concurrency)
	if flags.Changed("api-base-url") {
		cfg.GitHub.APIBaseURL, _ = flags.GetString("api-base-url")
	}
}

func resolveWindow(cmd *cobra.Command, now time.Time) (domain.Window, error) {
	since, _ := cmd.Flags().GetString("since")
	if since != "" {
		t, err := time.ParseInLocation(inputDateLayout, since, time.Local)
		if err != nil {
			return domain.Window{}, fmt.Errorf("invalid --since date format, please use YYYY/MM/DD: %w", err)
		}
		return domain.SinceWindow(t), nil
	}
	choice, _ := cmd.Flags().GetString("range")
	return domain.ResolveWindow(choice, now), nil
}

func saveScoreboard(ctx context.Context, cfg *config.Config, board domain.Scoreboard, logger *zap.Logger) (int64, error) {
	if cfg.Database.URL == "" {
		return 0, errNoDatabase
	}
	st, err := store.Open(ctx, cfg.Database.URL, logger)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return 0, err
	}
	id, err := st.Save(ctx, board)
	if err != nil {
		return 0, fmt.Errorf("failed to save scoreboard: %w", err)
	}
	return id, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
