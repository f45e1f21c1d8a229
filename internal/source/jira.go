package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/Fumiaki0604/reqflow/internal/config"
	"github.com/Fumiaki0604/reqflow/internal/llm"
	"github.com/Fumiaki0604/reqflow/pkg/models"
)

const jiraSearchLimit = 10

// JiraConnector searches and fetches Jira issues as requirements documents.
// Search queries are free text rewritten into JQL by the LLM; fetched
// documents pass the rendered markup body through unmodified.
type JiraConnector struct {
	cfg    config.JiraConfig
	llm    llm.Provider
	client *http.Client
}

// NewJiraConnector creates a Jira connector.
func NewJiraConnector(cfg config.JiraConfig, provider llm.Provider) *JiraConnector {
	return &JiraConnector{
		cfg:    cfg,
		llm:    provider,
		client: newHTTPClient(),
	}
}

func (c *JiraConnector) Kind() models.SourceKind {
	return models.SourceJira
}

// translateQuery rewrites free text into a single-clause JQL filter. The
// generated query is used verbatim: a malformed one just yields zero hits
// downstream, which is not treated as an error.
func (c *JiraConnector) translateQuery(ctx context.Context, query string) string {
	fallback := fmt.Sprintf("text ~ %q", query)

	if c.llm == nil {
		return fallback
	}

	prompt := fmt.Sprintf(`次の検索キーワードを Jira の JQL に変換してください。
形式は text ~ "キーワード" の単一条件のみとし、JQL 以外の文章やコードブロックは出力しないでください。

検索キーワード: %s`, query)

	out, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		log.Printf("Warning: JQL translation failed, using fallback: %v", err)
		return fallback
	}

	jql := stripCodeFences(out)
	if jql == "" {
		return fallback
	}
	return jql
}

type jiraSearchResponse struct {
	Issues []jiraIssue `json:"issues"`
}

type jiraIssue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description any    `json:"description"`
	} `json:"fields"`
	RenderedFields struct {
		Description string `json:"description"`
	} `json:"renderedFields"`
}

// Search runs a JQL search and returns normalized result summaries.
func (c *JiraConnector) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if !c.cfg.Configured() {
		return nil, fmt.Errorf("jira credentials not configured")
	}

	jql := c.translateQuery(ctx, query)

	params := url.Values{}
	params.Set("jql", jql)
	params.Set("maxResults", fmt.Sprintf("%d", jiraSearchLimit))
	params.Set("fields", "summary")

	endpoint := fmt.Sprintf("%s/rest/api/3/search?%s", strings.TrimSuffix(c.cfg.BaseURL, "/"), params.Encode())

	var resp jiraSearchResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("jira search failed: %w", err)
	}

	results := make([]models.SearchResult, 0, len(resp.Issues))
	for _, is := range resp.Issues {
		results = append(results, models.SearchResult{
			Source:     models.SourceJira,
			ExternalID: is.Key,
			Title:      is.Fields.Summary,
			URL:        fmt.Sprintf("%s/browse/%s", strings.TrimSuffix(c.cfg.BaseURL, "/"), is.Key),
		})
	}

	return results, nil
}

// Fetch retrieves one issue with rendered markup expansion. The stored
// markup body is passed through unmodified.
func (c *JiraConnector) Fetch(ctx context.Context, ref models.SearchResult) *models.FetchedDocument {
	doc := docFromRef(ref)

	if !c.cfg.Configured() {
		doc.Error = "jira credentials not configured"
		return doc
	}

	endpoint := fmt.Sprintf("%s/rest/api/3/issue/%s?expand=renderedFields&fields=summary,description",
		strings.TrimSuffix(c.cfg.BaseURL, "/"), url.PathEscape(ref.ExternalID))

	var is jiraIssue
	if err := c.get(ctx, endpoint, &is); err != nil {
		doc.Error = fmt.Sprintf("jira fetch failed: %v", err)
		return doc
	}

	if is.Fields.Summary != "" {
		doc.Title = is.Fields.Summary
	}
	doc.Content = is.RenderedFields.Description
	return doc
}

func (c *JiraConnector) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.UserEmail, c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// stripCodeFences removes markdown code fence wrappers the model sometimes
// adds despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```jql")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
