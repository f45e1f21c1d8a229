package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Fumiaki0604/reqflow/internal/config"
	"github.com/Fumiaki0604/reqflow/pkg/models"
)

const backlogSearchLimit = 10

// notSet is the rendered value for absent issue fields.
const notSet = "未設定"

// BacklogConnector searches and fetches Backlog wikis and issues across an
// ordered list of tenants. Every search result carries its origin tenant in
// the external id so fetch and URL construction stay tenant-correct.
type BacklogConnector struct {
	tenants  []config.BacklogTenant
	baseURLs []string
	client   *http.Client
	now      func() time.Time
}

// NewBacklogConnector creates a Backlog connector over the configured
// tenants. Incomplete tenant pairs are skipped.
func NewBacklogConnector(cfg config.BacklogConfig) *BacklogConnector {
	c := &BacklogConnector{
		client: newHTTPClient(),
		now:    time.Now,
	}
	for _, t := range cfg.Tenants {
		if !t.Complete() {
			continue
		}
		c.tenants = append(c.tenants, t)
		c.baseURLs = append(c.baseURLs, t.BaseURL())
	}
	return c
}

func (c *BacklogConnector) Kind() models.SourceKind {
	return models.SourceBacklog
}

// externalID encodes tenant index and document type into the opaque id
// carried by search results: "{tenant}:{wiki|issue}:{id}".
func externalID(tenant int, docType, id string) string {
	return fmt.Sprintf("%d:%s:%s", tenant, docType, id)
}

// parseExternalID splits an encoded Backlog external id.
func parseExternalID(s string) (tenant int, docType, id string, err error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return 0, "", "", fmt.Errorf("malformed backlog id: %q", s)
	}
	if _, err := fmt.Sscanf(parts[0], "%d", &tenant); err != nil {
		return 0, "", "", fmt.Errorf("malformed backlog tenant in %q", s)
	}
	docType, id = parts[1], parts[2]
	if docType != "wiki" && docType != "issue" {
		return 0, "", "", fmt.Errorf("unknown backlog document type %q", docType)
	}
	return tenant, docType, id, nil
}

type backlogProject struct {
	ID         int    `json:"id"`
	ProjectKey string `json:"projectKey"`
	Name       string `json:"name"`
}

type backlogWiki struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type backlogIssue struct {
	ID          int    `json:"id"`
	IssueKey    string `json:"issueKey"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Priority    *struct {
		Name string `json:"name"`
	} `json:"priority"`
	Status *struct {
		Name string `json:"name"`
	} `json:"status"`
	Assignee *struct {
		Name string `json:"name"`
	} `json:"assignee"`
}

// Search queries wikis and issues on every tenant. A failure in one tenant
// or project is logged and skipped; siblings keep contributing.
func (c *BacklogConnector) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if len(c.tenants) == 0 {
		return nil, fmt.Errorf("backlog credentials not configured")
	}

	var results []models.SearchResult
	for i := range c.tenants {
		tenantResults, err := c.searchTenant(ctx, i, query)
		if err != nil {
			log.Printf("Warning: backlog tenant %d search failed: %v", i, err)
			continue
		}
		results = append(results, tenantResults...)
	}

	return results, nil
}

func (c *BacklogConnector) searchTenant(ctx context.Context, tenant int, query string) ([]models.SearchResult, error) {
	base := c.baseURLs[tenant]
	apiKey := c.tenants[tenant].APIKey

	var results []models.SearchResult

	// Wikis first: the wiki store is the primary home for requirements
	// documents. Listing requires per-project iteration.
	projects, err := c.listProjects(ctx, tenant)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		params := url.Values{}
		params.Set("apiKey", apiKey)
		params.Set("projectIdOrKey", p.ProjectKey)
		params.Set("keyword", query)

		var wikis []backlogWiki
		if err := c.get(ctx, fmt.Sprintf("%s/api/v2/wikis?%s", base, params.Encode()), &wikis); err != nil {
			log.Printf("Warning: backlog wiki search failed for project %s: %v", p.ProjectKey, err)
			continue
		}
		for _, w := range wikis {
			results = append(results, models.SearchResult{
				Source:     models.SourceBacklog,
				ExternalID: externalID(tenant, "wiki", fmt.Sprintf("%d", w.ID)),
				Title:      w.Name,
				URL:        fmt.Sprintf("%s/alias/wiki/%d", base, w.ID),
			})
		}
	}

	params := url.Values{}
	params.Set("apiKey", apiKey)
	params.Set("keyword", query)
	params.Set("count", fmt.Sprintf("%d", backlogSearchLimit))

	var issues []backlogIssue
	if err := c.get(ctx, fmt.Sprintf("%s/api/v2/issues?%s", base, params.Encode()), &issues); err != nil {
		log.Printf("Warning: backlog issue search failed for tenant %d: %v", tenant, err)
	} else {
		for _, is := range issues {
			results = append(results, models.SearchResult{
				Source:     models.SourceBacklog,
				ExternalID: externalID(tenant, "issue", is.IssueKey),
				Title:      is.Summary,
				URL:        fmt.Sprintf("%s/view/%s", base, is.IssueKey),
			})
		}
	}

	return results, nil
}

// Fetch retrieves one wiki or issue. Wiki content is passed through as-is;
// issues are rendered into a fixed markdown template.
func (c *BacklogConnector) Fetch(ctx context.Context, ref models.SearchResult) *models.FetchedDocument {
	doc := docFromRef(ref)

	tenant, docType, id, err := parseExternalID(ref.ExternalID)
	if err != nil {
		doc.Error = err.Error()
		return doc
	}
	if tenant < 0 || tenant >= len(c.tenants) {
		doc.Error = fmt.Sprintf("backlog tenant %d not configured", tenant)
		return doc
	}

	base := c.baseURLs[tenant]
	apiKey := c.tenants[tenant].APIKey

	switch docType {
	case "wiki":
		var w backlogWiki
		endpoint := fmt.Sprintf("%s/api/v2/wikis/%s?apiKey=%s", base, url.PathEscape(id), url.QueryEscape(apiKey))
		if err := c.get(ctx, endpoint, &w); err != nil {
			doc.Error = fmt.Sprintf("backlog wiki fetch failed: %v", err)
			return doc
		}
		if w.Name != "" {
			doc.Title = w.Name
		}
		doc.Content = w.Content

	case "issue":
		var is backlogIssue
		endpoint := fmt.Sprintf("%s/api/v2/issues/%s?apiKey=%s", base, url.PathEscape(id), url.QueryEscape(apiKey))
		if err := c.get(ctx, endpoint, &is); err != nil {
			doc.Error = fmt.Sprintf("backlog issue fetch failed: %v", err)
			return doc
		}
		if is.Summary != "" {
			doc.Title = is.Summary
		}
		doc.Content = renderBacklogIssue(&is)
	}

	return doc
}

// renderBacklogIssue produces the fixed markdown template for an issue.
// This is a synthesis, not a passthrough of the stored markup.
func renderBacklogIssue(is *backlogIssue) string {
	orNotSet := func(s string) string {
		if s == "" {
			return notSet
		}
		return s
	}

	projectKey := ""
	if i := strings.LastIndex(is.IssueKey, "-"); i > 0 {
		projectKey = is.IssueKey[:i]
	}

	var priority, status, assignee string
	if is.Priority != nil {
		priority = is.Priority.Name
	}
	if is.Status != nil {
		status = is.Status.Name
	}
	if is.Assignee != nil {
		assignee = is.Assignee.Name
	}

	dueDate := ""
	if is.DueDate != "" {
		dueDate = formatBacklogDate(is.DueDate)
	}

	return fmt.Sprintf(`# %s

- プロジェクト: %s
- 期限日: %s
- 優先度: %s
- 状態: %s
- 担当者: %s

## 詳細

%s`,
		is.Summary,
		orNotSet(projectKey),
		orNotSet(dueDate),
		orNotSet(priority),
		orNotSet(status),
		orNotSet(assignee),
		is.Description,
	)
}

// ListDueIssues enumerates all accessible projects on every tenant, lists
// their open issues, and returns the ones inside the due-date threshold,
// sorted ascending by days-until-due.
//
// The upcoming variant (includeOverdue=false) keeps 0 <= days <= threshold;
// the overdue variant keeps days <= threshold with no lower bound, so
// negative values represent already-overdue work.
func (c *BacklogConnector) ListDueIssues(ctx context.Context, threshold int, includeOverdue bool) ([]models.UrgentIssue, error) {
	if len(c.tenants) == 0 {
		return nil, fmt.Errorf("backlog credentials not configured")
	}

	now := c.now()
	var urgent []models.UrgentIssue

	for tenant := range c.tenants {
		projects, err := c.listProjects(ctx, tenant)
		if err != nil {
			log.Printf("Warning: backlog tenant %d project listing failed: %v", tenant, err)
			continue
		}

		for _, p := range projects {
			issues, err := c.listOpenIssues(ctx, tenant, p.ID)
			if err != nil {
				log.Printf("Warning: backlog issue listing failed for project %s: %v", p.ProjectKey, err)
				continue
			}

			for _, is := range issues {
				if is.DueDate == "" {
					continue
				}
				due, err := parseBacklogDate(is.DueDate)
				if err != nil {
					continue
				}

				ui := models.UrgentIssue{
					Tenant:       tenant,
					ProjectName:  p.Name,
					IssueKey:     is.IssueKey,
					Summary:      is.Summary,
					DueDate:      due.Format("2006-01-02"),
					DaysUntilDue: daysUntil(due, now),
					URL:          fmt.Sprintf("%s/view/%s", c.baseURLs[tenant], is.IssueKey),
				}
				if is.Assignee != nil {
					ui.Assignee = is.Assignee.Name
				}
				if is.Priority != nil {
					ui.Priority = is.Priority.Name
				}
				urgent = append(urgent, ui)
			}
		}
	}

	return FilterByDueDate(urgent, threshold, includeOverdue), nil
}

// FilterByDueDate applies the inclusive threshold bounds and sorts the
// survivors ascending by days-until-due.
func FilterByDueDate(issues []models.UrgentIssue, threshold int, includeOverdue bool) []models.UrgentIssue {
	selected := make([]models.UrgentIssue, 0, len(issues))
	for _, is := range issues {
		if is.DaysUntilDue > threshold {
			continue
		}
		if !includeOverdue && is.DaysUntilDue < 0 {
			continue
		}
		selected = append(selected, is)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].DaysUntilDue < selected[j].DaysUntilDue
	})

	return selected
}

// daysUntil computes ceiling((due - now) in days).
func daysUntil(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}

func parseBacklogDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func formatBacklogDate(s string) string {
	t, err := parseBacklogDate(s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02")
}

func (c *BacklogConnector) listProjects(ctx context.Context, tenant int) ([]backlogProject, error) {
	endpoint := fmt.Sprintf("%s/api/v2/projects?apiKey=%s", c.baseURLs[tenant], url.QueryEscape(c.tenants[tenant].APIKey))

	var projects []backlogProject
	if err := c.get(ctx, endpoint, &projects); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// listOpenIssues lists non-completed issues for one project. Backlog status
// ids 1..3 are open, in progress, and resolved; 4 is closed.
func (c *BacklogConnector) listOpenIssues(ctx context.Context, tenant, projectID int) ([]backlogIssue, error) {
	params := url.Values{}
	params.Set("apiKey", c.tenants[tenant].APIKey)
	params.Add("projectId[]", fmt.Sprintf("%d", projectID))
	params.Add("statusId[]", "1")
	params.Add("statusId[]", "2")
	params.Add("statusId[]", "3")
	params.Set("count", "100")

	endpoint := fmt.Sprintf("%s/api/v2/issues?%s", c.baseURLs[tenant], params.Encode())

	var issues []backlogIssue
	if err := c.get(ctx, endpoint, &issues); err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	return issues, nil
}

func (c *BacklogConnector) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
