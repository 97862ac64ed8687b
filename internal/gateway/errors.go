package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v62/github"
)

var (
	// ErrRateLimited means the API quota is exhausted. Nothing in the gateway retries it.
	ErrRateLimited = errors.New("rate limited")
	// ErrFetchFailed covers every other transport or API failure.
	ErrFetchFailed = errors.New("fetch failed")
)

// FetchError describes one failed resource fetch. errors.Is matches both the
// Kind sentinel and the underlying error.
type FetchError struct {
	Op   string
	Kind error
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsRateLimited reports whether err signals quota exhaustion.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func classifyREST(op string, err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return &FetchError{Op: op, Kind: ErrRateLimited, Err: err}
	}
	return &FetchError{Op: op, Kind: ErrFetchFailed, Err: err}
}

// GraphQL errors carry no typed rate-limit signal; GitHub reports it as a
// RATE_LIMITED error or a 403 body mentioning the limit.
func classifyGraphQL(op string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limited") {
		return &FetchError{Op: op, Kind: ErrRateLimited, Err: err}
	}
	return &FetchError{Op: op, Kind: ErrFetchFailed, Err: err}
}
