package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/github-scorecard/internal/domain"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testRepo = domain.RepositoryRef{Owner: "any-org", Name: "any-repo"}

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler, source string) *GitHubGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// Setup REST client to point to the mock server.
	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	// Use NewEnterpriseClient to point the GraphQL client to our mock server's URL.
	graphqlClient := githubv4.NewEnterpriseClient(server.URL, server.Client())

	gw, err := newGateway(restClient, graphqlClient, Options{PageSize: 2, PullRequestSource: source}, zap.NewNop())
	require.NoError(t, err)
	return gw
}

func writeRateLimited(w http.ResponseWriter) {
	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	w.WriteHeader(http.StatusForbidden)
	fmt.Fprint(w, `{"message": "API rate limit exceeded for user ID 1."}`)
}

func TestGitHubGateway_ListPullRequests(t *testing.T) {
	testCases := []struct {
		name        string
		handlerFunc func(w http.ResponseWriter, r *http.Request)
		expected    []domain.PullRequest
		expectedErr error
	}{
		{
			name: "happy path - follows pagination across pages",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/repos/any-org/any-repo/pulls", r.URL.Path)
				assert.Equal(t, "all", r.URL.Query().Get("state"))
				assert.Equal(t, "2", r.URL.Query().Get("per_page"))
				if r.URL.Query().Get("page") == "2" {
					fmt.Fprint(w, `[{"number": 1, "title": "first", "created_at": "2024-05-01T10:00:00Z", "user": {"login": "bob"}}]`)
					return
				}
				w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/any-org/any-repo/pulls?page=2>; rel="next"`, r.Host))
				fmt.Fprint(w, `[{"number": 3, "title": "third", "created_at": "2024-05-03T10:00:00Z", "user": {"login": "alice"}},
					{"number": 2, "title": "second", "created_at": "2024-05-02T10:00:00Z", "user": null}]`)
			},
			expected: []domain.PullRequest{
				{Number: 3, Author: "alice", Title: "third", CreatedAt: time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)},
				{Number: 2, Author: "", Title: "second", CreatedAt: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)},
				{Number: 1, Author: "bob", Title: "first", CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
			},
		},
		{
			name: "error case - GitHub API returns an error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"message": "Internal Server Error"}`)
			},
			expectedErr: ErrFetchFailed,
		},
		{
			name: "error case - quota exhausted",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				writeRateLimited(w)
			},
			expectedErr: ErrRateLimited,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gw := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc), SourceREST)

			result, err := gw.ListPullRequests(context.Background(), testRepo)

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.Contains(t, err.Error(), "failed to list pull requests for any-org/any-repo")
				assert.Nil(t, result)
				return
			}
			require.NoError(t, err)
			require.Len(t, result, len(tc.expected))
			for i := range tc.expected {
				assert.Equal(t, tc.expected[i].Number, result[i].Number)
				assert.Equal(t, tc.expected[i].Author, result[i].Author)
				assert.Equal(t, tc.expected[i].Title, result[i].Title)
				assert.True(t, tc.expected[i].CreatedAt.Equal(result[i].CreatedAt))
			}
		})
	}
}

func TestGitHubGateway_ListComments(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		gw := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/any-org/any-repo/issues/7/comments", r.URL.Path)
			fmt.Fprint(w, `[{"id": 1, "created_at": "2024-05-01T10:00:00Z", "user": {"login": "bob"}},
				{"id": 2, "created_at": "2024-05-02T10:00:00Z", "user": {"login": "carol"}}]`)
		}), SourceREST)

		comments, err := gw.ListComments(context.Background(), testRepo, 7)

		require.NoError(t, err)
		require.Len(t, comments, 2)
		assert.Equal(t, "bob", comments[0].Author)
		assert.True(t, time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC).Equal(comments[1].At))
	})

	t.Run("rate limited", func(t *testing.T) {
		gw := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeRateLimited(w)
		}), SourceREST)

		comments, err := gw.ListComments(context.Background(), testRepo, 7)

		assert.Nil(t, comments)
		assert.True(t, IsRateLimited(err))
		assert.NotErrorIs(t, err, ErrFetchFailed)

		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, "failed to list comments for any-org/any-repo#7", fetchErr.Op)
	})
}

func TestGitHubGateway_ListReviews(t *testing.T) {
	t.Run("pending review has no timestamp", func(t *testing.T) {
		gw := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/any-org/any-repo/pulls/7/reviews", r.URL.Path)
			fmt.Fprint(w, `[{"id": 1, "state": "APPROVED", "submitted_at": "2024-05-01T10:00:00Z", "user": {"login": "alice"}},
				{"id": 2, "state": "PENDING", "user": {"login": "dave"}}]`)
		}), SourceREST)

		reviews, err := gw.ListReviews(context.Background(), testRepo, 7)

		require.NoError(t, err)
		require.Len(t, reviews, 2)
		assert.Equal(t, "alice", reviews[0].Author)
		assert.True(t, reviews[1].At.IsZero())
	})

	t.Run("server error", func(t *testing.T) {
		gw := setupTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}), SourceREST)

		_, err := gw.ListReviews(context.Background(), testRepo, 7)

		assert.ErrorIs(t, err, ErrFetchFailed)
	})
}

func TestGitHubGateway_ListPullRequestsGraphQL(t *testing.T) {
	testCases := []struct {
		name          string
		responses     []string
		expected      []domain.PullRequest
		expectedErr   error
		expectedCalls int
	}{
		{
			name: "happy path - follows cursor",
			responses: []string{
				`{"data":{"repository":{"pullRequests":{"pageInfo":{"hasNextPage":true,"endCursor":"c1"},"nodes":[{"number":9,"title":"nine","createdAt":"2024-05-09T00:00:00Z","author":{"login":"alice"}}]}}}}`,
				`{"data":{"repository":{"pullRequests":{"pageInfo":{"hasNextPage":false,"endCursor":"c2"},"nodes":[{"number":8,"title":"eight","createdAt":"2024-05-08T00:00:00Z","author":null}]}}}}`,
			},
			expected: []domain.PullRequest{
				{Number: 9, Author: "alice", Title: "nine", CreatedAt: time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)},
				{Number: 8, Author: "", Title: "eight", CreatedAt: time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)},
			},
			expectedCalls: 2,
		},
		{
			name:          "rate limited",
			responses:     []string{`{"errors":[{"type":"RATE_LIMITED","message":"API rate limit exceeded for user ID 1."}]}`},
			expectedErr:   ErrRateLimited,
			expectedCalls: 1,
		},
		{
			name:          "other error",
			responses:     []string{`{"errors":[{"message":"Could not resolve to a Repository"}]}`},
			expectedErr:   ErrFetchFailed,
			expectedCalls: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			handler := func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), "pullRequests")
				assert.Contains(t, string(body), "any-repo")
				n := calls.Add(1)
				if n > 1 {
					assert.Contains(t, string(body), "c1")
				}
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, tc.responses[n-1])
			}
			gw := setupTestGateway(t, http.HandlerFunc(handler), SourceGraphQL)

			result, err := gw.ListPullRequests(context.Background(), testRepo)

			assert.Equal(t, tc.expectedCalls, int(calls.Load()))
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, result, len(tc.expected))
			for i := range tc.expected {
				assert.Equal(t, tc.expected[i].Number, result[i].Number)
				assert.Equal(t, tc.expected[i].Author, result[i].Author)
				assert.True(t, tc.expected[i].CreatedAt.Equal(result[i].CreatedAt))
			}
		})
	}
}

func TestNewGateway_RejectsUnknownSource(t *testing.T) {
	_, err := newGateway(github.NewClient(nil), githubv4.NewClient(nil), Options{PullRequestSource: "soap"}, nil)
	assert.Error(t, err)
}

func TestEnterpriseGraphQLURL(t *testing.T) {
	assert.Equal(t, "https://ghe.example.com/api/graphql", enterpriseGraphQLURL("https://ghe.example.com/"))
	assert.Equal(t, "https://ghe.example.com/api/graphql", enterpriseGraphQLURL("https://ghe.example.com/api/v3/"))
}
