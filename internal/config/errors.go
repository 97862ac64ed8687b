package config

import "errors"

// Sentinel errors reported by Validate. They are joined, so callers can test
// for each one with errors.Is.
var (
	ErrInvalidConcurrency       = errors.New("concurrency must be > 0")
	ErrInvalidPageSize          = errors.New("github.page_size must be between 1 and 100")
	ErrInvalidPullRequestSource = errors.New("github.pull_request_source must be rest or graphql")
	ErrInvalidSecondaryWait     = errors.New("github.secondary_limit_wait must be >= 0")
	ErrInvalidLogLevel          = errors.New("log.level must be one of debug|info|warn|error")
)
