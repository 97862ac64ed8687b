// Package config loads scorecard settings from defaults, a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/naka-gawa/github-scorecard/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. SCORECARD_CONCURRENCY.
// A double underscore separates nested keys: SCORECARD_SCORING__PULL_REQUEST.
const EnvPrefix = "SCORECARD_"

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Config is the root application configuration.
type Config struct {
	GitHub      GitHubConfig   `koanf:"github"`
	Scoring     ScoringConfig  `koanf:"scoring"`
	Concurrency int            `koanf:"concurrency"`
	Database    DatabaseConfig `koanf:"database"`
	Metrics     MetricsConfig  `koanf:"metrics"`
	Log         LogConfig      `koanf:"log"`
}

// GitHubConfig configures GitHub API access.
type GitHubConfig struct {
	Token              string        `koanf:"token"`
	APIBaseURL         string        `koanf:"api_base_url"`
	PageSize           int           `koanf:"page_size"`
	PullRequestSource  string        `koanf:"pull_request_source"`
	SecondaryLimitWait time.Duration `koanf:"secondary_limit_wait"`
}

// ScoringConfig holds the points per event kind.
type ScoringConfig struct {
	PullRequest        int `koanf:"pull_request"`
	PullRequestComment int `koanf:"pull_request_comment"`
	PullRequestReview  int `koanf:"pull_request_review"`
}

// DatabaseConfig configures scoreboard persistence.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// MetricsConfig configures the Prometheus textfile output.
type MetricsConfig struct {
	Textfile string `koanf:"textfile"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `koanf:"level"`
}

// New returns the defaults.
func New() *Config {
	return &Config{
		GitHub: GitHubConfig{
			PageSize:          100,
			PullRequestSource: "rest",
		},
		Scoring: ScoringConfig{
			PullRequest:        12,
			PullRequestComment: 1,
			PullRequestReview:  3,
		},
		Concurrency: 10,
		Log:         LogConfig{Level: "warn"},
	}
}

// Load builds a Config by layering defaults, an optional YAML file and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) at path, or SCORECARD_CONFIG when path is empty
//  3. env (prefix SCORECARD_)
//
// The GitHub token falls back to GITHUB_TOKEN, then GITHUB_ACCESS_TOKEN.
func Load(path string) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	// Unmarshal into a copy of the defaults.
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_ACCESS_TOKEN")
	}
	return &cfg, nil
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Concurrency <= 0 {
		errs = append(errs, ErrInvalidConcurrency)
	}
	if c.GitHub.PageSize < 1 || c.GitHub.PageSize > 100 {
		errs = append(errs, ErrInvalidPageSize)
	}
	if c.GitHub.PullRequestSource != "rest" && c.GitHub.PullRequestSource != "graphql" {
		errs = append(errs, ErrInvalidPullRequestSource)
	}
	if c.GitHub.SecondaryLimitWait < 0 {
		errs = append(errs, ErrInvalidSecondaryWait)
	}
	if c.Scoring.PullRequest < 0 || c.Scoring.PullRequestComment < 0 || c.Scoring.PullRequestReview < 0 {
		errs = append(errs, fmt.Errorf("scoring values must be >= 0: %w", domain.ErrNegativePoints))
	}
	if !slices.Contains(validLogLevels, c.Log.Level) {
		errs = append(errs, ErrInvalidLogLevel)
	}
	return errors.Join(errs...)
}

// Policy converts the scoring section into a ScoringPolicy.
func (c *Config) Policy() (domain.ScoringPolicy, error) {
	return domain.NewScoringPolicy(map[domain.EventKind]int{
		domain.PullRequestCreated: c.Scoring.PullRequest,
		domain.CommentPosted:      c.Scoring.PullRequestComment,
		domain.ReviewSubmitted:    c.Scoring.PullRequestReview,
	})
}
