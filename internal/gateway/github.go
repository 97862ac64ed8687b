// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/github-scorecard/internal/domain"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Pull request listing backends.
const (
	SourceREST    = "rest"
	SourceGraphQL = "graphql"
)

const defaultPageSize = 100

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
// Every method walks all result pages before returning.
type Fetcher interface {
	ListPullRequests(ctx context.Context, repo domain.RepositoryRef) ([]domain.PullRequest, error)
	ListComments(ctx context.Context, repo domain.RepositoryRef, number int) ([]domain.Activity, error)
	ListReviews(ctx context.Context, repo domain.RepositoryRef, number int) ([]domain.Activity, error)
}

// Options configures the GitHub gateway.
type Options struct {
	Token string
	// BaseURL points at a GitHub Enterprise host; empty means github.com.
	BaseURL           string
	PageSize          int
	PullRequestSource string
	// SecondaryLimitWait enables sleeping through secondary rate limits up to
	// this long per request. Zero leaves secondary limits to surface as errors.
	SecondaryLimitWait time.Duration
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *zap.Logger
	pageSize      int
	prSource      string
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(opts Options, logger *zap.Logger) (*GitHubGateway, error) {
	var transport http.RoundTripper = http.DefaultTransport
	if opts.SecondaryLimitWait > 0 {
		rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(opts.SecondaryLimitWait, nil))
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
		}
		transport = rateLimitWaiter
	}
	if opts.Token != "" {
		transport = &oauth2.Transport{
			Base:   transport,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
		}
	}
	httpClient := &http.Client{Transport: transport}

	restClient := github.NewClient(httpClient)
	graphqlClient := githubv4.NewClient(httpClient)
	if opts.BaseURL != "" {
		var err error
		restClient, err = restClient.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure enterprise url: %w", err)
		}
		graphqlClient = githubv4.NewEnterpriseClient(enterpriseGraphQLURL(opts.BaseURL), httpClient)
	}

	return newGateway(restClient, graphqlClient, opts, logger)
}

func newGateway(restClient *github.Client, graphqlClient *githubv4.Client, opts Options, logger *zap.Logger) (*GitHubGateway, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	source := strings.ToLower(strings.TrimSpace(opts.PullRequestSource))
	switch source {
	case "":
		source = SourceREST
	case SourceREST, SourceGraphQL:
	default:
		return nil, fmt.Errorf("unknown pull request source %q", opts.PullRequestSource)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger,
		pageSize:      pageSize,
		prSource:      source,
	}, nil
}

// ListPullRequests lists pull requests in every state.
func (g *GitHubGateway) ListPullRequests(ctx context.Context, repo domain.RepositoryRef) ([]domain.PullRequest, error) {
	g.logger.Debug("fetching pull requests", zap.Stringer("repo", repo), zap.String("source", g.prSource))
	if g.prSource == SourceGraphQL {
		return g.listPullRequestsGraphQL(ctx, repo)
	}

	op := fmt.Sprintf("failed to list pull requests for %s", repo)
	opts := &github.PullRequestListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: g.pageSize},
	}
	var pullRequests []domain.PullRequest
	for {
		page, resp, err := g.restClient.PullRequests.List(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, classifyREST(op, err)
		}
		for _, pr := range page {
			pullRequests = append(pullRequests, domain.PullRequest{
				Number:    pr.GetNumber(),
				Author:    pr.GetUser().GetLogin(),
				Title:     pr.GetTitle(),
				CreatedAt: pr.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Debug("fetching next page of pull requests", zap.Int("page", resp.NextPage))
	}
	g.logger.Debug("completed fetching pull requests", zap.Int("count", len(pullRequests)))
	return pullRequests, nil
}

// ListComments lists the conversation comments of one pull request.
func (g *GitHubGateway) ListComments(ctx context.Context, repo domain.RepositoryRef, number int) ([]domain.Activity, error) {
	op := fmt.Sprintf("failed to list comments for %s#%d", repo, number)
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: g.pageSize}}
	var comments []domain.Activity
	for {
		page, resp, err := g.restClient.Issues.ListComments(ctx, repo.Owner, repo.Name, number, opts)
		if err != nil {
			return nil, classifyREST(op, err)
		}
		for _, c := range page {
			comments = append(comments, domain.Activity{
				Author: c.GetUser().GetLogin(),
				At:     c.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return comments, nil
}

// ListReviews lists the reviews of one pull request. Pending reviews have no
// submission time and come back with a zero At.
func (g *GitHubGateway) ListReviews(ctx context.Context, repo domain.RepositoryRef, number int) ([]domain.Activity, error) {
	op := fmt.Sprintf("failed to list reviews for %s#%d", repo, number)
	opts := &github.ListOptions{PerPage: g.pageSize}
	var reviews []domain.Activity
	for {
		page, resp, err := g.restClient.PullRequests.ListReviews(ctx, repo.Owner, repo.Name, number, opts)
		if err != nil {
			return nil, classifyREST(op, err)
		}
		for _, r := range page {
			reviews = append(reviews, domain.Activity{
				Author: r.GetUser().GetLogin(),
				At:     r.GetSubmittedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return reviews, nil
}

func enterpriseGraphQLURL(baseURL string) string {
	trimmed := strings.TrimSuffix(baseURL, "/")
	trimmed = strings.TrimSuffix(trimmed, "/api/v3")
	return trimmed + "/api/graphql"
}
