package gateway

import (
	"context"
	"fmt"

	"github.com/naka-gawa/github-scorecard/internal/domain"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
)

// pullRequestsQuery lists a repository's pull requests in every state.
type pullRequestsQuery struct {
	Repository struct {
		PullRequests struct {
			PageInfo struct {
				HasNextPage bool
				EndCursor   githubv4.String
			}
			Nodes []struct {
				Number    githubv4.Int
				Title     githubv4.String
				CreatedAt githubv4.DateTime
				Author    struct {
					Login githubv4.String
				}
			}
		} `graphql:"pullRequests(first: $pageSize, after: $cursor, states: [OPEN, CLOSED, MERGED])"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

func (g *GitHubGateway) listPullRequestsGraphQL(ctx context.Context, repo domain.RepositoryRef) ([]domain.PullRequest, error) {
	op := fmt.Sprintf("failed to execute GraphQL query for pull requests of %s", repo)
	variables := map[string]interface{}{
		"owner":    githubv4.String(repo.Owner),
		"name":     githubv4.String(repo.Name),
		"pageSize": githubv4.Int(g.pageSize),
		"cursor":   (*githubv4.String)(nil),
	}

	var pullRequests []domain.PullRequest
	for {
		var q pullRequestsQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return nil, classifyGraphQL(op, err)
		}
		for _, node := range q.Repository.PullRequests.Nodes {
			pullRequests = append(pullRequests, domain.PullRequest{
				Number:    int(node.Number),
				Author:    string(node.Author.Login),
				Title:     string(node.Title),
				CreatedAt: node.CreatedAt.Time,
			})
		}
		if !q.Repository.PullRequests.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Repository.PullRequests.PageInfo.EndCursor)
		g.logger.Debug("fetching next page of pull requests via GraphQL")
	}
	g.logger.Debug("completed fetching pull requests", zap.Int("count", len(pullRequests)))
	return pullRequests, nil
}
