package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidRepositoryURL is returned when a repository reference cannot be parsed.
var ErrInvalidRepositoryURL = errors.New("invalid repository url")

// RepositoryRef identifies a remote repository by owner and name.
type RepositoryRef struct {
	Owner string
	Name  string
}

func (r RepositoryRef) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepositoryURL accepts "https://github.com/owner/name[/...]" or the bare
// "owner/name" form. The first two path segments are used.
func ParseRepositoryURL(raw string) (RepositoryRef, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RepositoryRef{}, fmt.Errorf("%w: empty", ErrInvalidRepositoryURL)
	}

	path := trimmed
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return RepositoryRef{}, fmt.Errorf("%w: %v", ErrInvalidRepositoryURL, err)
		}
		path = parsed.Path
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 {
		return RepositoryRef{}, fmt.Errorf("%w: %q has no owner/name path", ErrInvalidRepositoryURL, raw)
	}
	owner := segments[0]
	name := strings.TrimSuffix(segments[1], ".git")
	if owner == "" || name == "" {
		return RepositoryRef{}, fmt.Errorf("%w: %q has no owner/name path", ErrInvalidRepositoryURL, raw)
	}
	return RepositoryRef{Owner: owner, Name: name}, nil
}

// PullRequest is the identity of one pull request as listed by the API.
type PullRequest struct {
	Number    int
	Author    string
	Title     string
	CreatedAt time.Time
}

// Activity is a raw comment or review item: who did it and when.
type Activity struct {
	Author string
	At     time.Time
}

// Event is an activity classified by kind, ready to be scored.
type Event struct {
	Author string
	At     time.Time
	Kind   EventKind
}

// Included reports whether an event at the given time falls in the window
// starting at cutoff. The boundary itself is included.
func Included(at, cutoff time.Time) bool {
	return !at.Before(cutoff)
}
