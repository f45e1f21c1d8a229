// Package github publishes synthesized issues to the destination tracker.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/cli/go-gh/v2/pkg/api"

	"github.com/Fumiaki0604/reqflow/pkg/models"
)

// Client wraps GitHub REST API operations
type Client struct {
	rest *api.RESTClient
}

// NewClient creates a GitHub client. With an empty token it falls back to
// the ambient gh authentication (GH_TOKEN / gh auth login).
func NewClient(token string) (*Client, error) {
	var rest *api.RESTClient
	var err error

	if token != "" {
		rest, err = api.NewRESTClient(api.ClientOptions{AuthToken: token})
	} else {
		rest, err = api.DefaultRESTClient()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create REST client: %w", err)
	}

	return &Client{rest: rest}, nil
}

// Close releases resources
func (c *Client) Close() error {
	return nil
}

type createIssueResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// CreateIssue creates one issue and returns its reference.
func (c *Client) CreateIssue(ctx context.Context, owner, repo, title, body string) (*models.CreatedIssue, error) {
	endpoint := fmt.Sprintf("repos/%s/%s/issues", owner, repo)

	payload := map[string]string{"title": title, "body": body}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var created createIssueResponse
	if err := c.rest.Post(endpoint, bytes.NewReader(jsonBody), &created); err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}

	return &models.CreatedIssue{
		Number: created.Number,
		URL:    created.HTMLURL,
	}, nil
}

// Publish creates every issue in the request, one API call per issue.
// Unlike the earlier stages this is the terminal stage: an API failure
// propagates as an error, with the issues created so far in the result.
func (c *Client) Publish(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error) {
	result := &models.PublishResult{}

	for _, issue := range req.Issues {
		if !issue.WellFormed() {
			continue
		}
		created, err := c.CreateIssue(ctx, req.Owner, req.Repo, issue.Title, issue.Body)
		if err != nil {
			result.Error = err.Error()
			return result, err
		}
		result.CreatedIssues = append(result.CreatedIssues, *created)
	}

	return result, nil
}
