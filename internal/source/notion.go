package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Fumiaki0604/reqflow/internal/config"
	"github.com/Fumiaki0604/reqflow/pkg/models"
)

const (
	notionBaseURL       = "https://api.notion.com"
	notionVersion       = "2022-06-28"
	notionPageSize      = 10
	notionBlockLimit    = 100
	notionMaxBlockPages = 50
)

// NotionConnector searches Notion pages and normalizes their block content
// into a markdown approximation.
type NotionConnector struct {
	cfg     config.NotionConfig
	client  *http.Client
	baseURL string
}

// NewNotionConnector creates a Notion connector.
func NewNotionConnector(cfg config.NotionConfig) *NotionConnector {
	return &NotionConnector{
		cfg:     cfg,
		client:  newHTTPClient(),
		baseURL: notionBaseURL,
	}
}

func (c *NotionConnector) Kind() models.SourceKind {
	return models.SourceNotion
}

type notionSearchResponse struct {
	Results []notionPage `json:"results"`
}

type notionPage struct {
	ID         string                    `json:"id"`
	Object     string                    `json:"object"`
	URL        string                    `json:"url"`
	Properties map[string]notionProperty `json:"properties"`
}

type notionProperty struct {
	Type  string           `json:"type"`
	Title []notionRichText `json:"title"`
}

type notionRichText struct {
	PlainText string `json:"plain_text"`
}

// Search posts a free-text query; Notion's server-side search semantics are
// used as-is, no query translation.
func (c *NotionConnector) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if !c.cfg.Configured() {
		return nil, fmt.Errorf("notion token not configured")
	}

	payload := map[string]any{
		"query":     query,
		"page_size": notionPageSize,
		"filter":    map[string]string{"property": "object", "value": "page"},
	}

	var resp notionSearchResponse
	if err := c.do(ctx, http.MethodPost, "/v1/search", payload, &resp); err != nil {
		return nil, fmt.Errorf("notion search failed: %w", err)
	}

	results := make([]models.SearchResult, 0, len(resp.Results))
	for _, page := range resp.Results {
		if page.Object != "page" {
			continue
		}
		results = append(results, models.SearchResult{
			Source:     models.SourceNotion,
			ExternalID: page.ID,
			Title:      page.title(),
			URL:        page.URL,
		})
	}

	return results, nil
}

// title extracts the page title from whichever property carries it.
func (p notionPage) title() string {
	for _, prop := range p.Properties {
		if prop.Type != "title" {
			continue
		}
		var sb strings.Builder
		for _, rt := range prop.Title {
			sb.WriteString(rt.PlainText)
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return "(無題)"
}

type notionBlockList struct {
	Results    []notionBlock `json:"results"`
	HasMore    bool          `json:"has_more"`
	NextCursor string        `json:"next_cursor"`
}

type notionBlock struct {
	Type             string            `json:"type"`
	Paragraph        *notionBlockValue `json:"paragraph,omitempty"`
	Heading1         *notionBlockValue `json:"heading_1,omitempty"`
	Heading2         *notionBlockValue `json:"heading_2,omitempty"`
	BulletedListItem *notionBlockValue `json:"bulleted_list_item,omitempty"`
}

type notionBlockValue struct {
	RichText []notionRichText `json:"rich_text"`
}

// Fetch retrieves the page and its child blocks, then flattens the blocks
// into markdown text.
func (c *NotionConnector) Fetch(ctx context.Context, ref models.SearchResult) *models.FetchedDocument {
	doc := docFromRef(ref)

	if !c.cfg.Configured() {
		doc.Error = "notion token not configured"
		return doc
	}

	// Page fetch confirms access and fills in the title when the search
	// summary did not carry one.
	var page notionPage
	if err := c.do(ctx, http.MethodGet, "/v1/pages/"+ref.ExternalID, nil, &page); err != nil {
		doc.Error = fmt.Sprintf("notion page fetch failed: %v", err)
		return doc
	}
	if doc.Title == "" {
		doc.Title = page.title()
	}
	if doc.URL == "" {
		doc.URL = page.URL
	}

	blocks, err := c.listBlocks(ctx, ref.ExternalID)
	if err != nil {
		doc.Error = fmt.Sprintf("notion block fetch failed: %v", err)
		return doc
	}

	doc.Content = normalizeNotionBlocks(blocks)
	return doc
}

// listBlocks pages through the child block list, following has_more and
// next_cursor until exhausted. notionMaxBlockPages caps the walk so a
// cursor loop from a misbehaving response cannot hang the fetch.
func (c *NotionConnector) listBlocks(ctx context.Context, pageID string) ([]notionBlock, error) {
	var blocks []notionBlock
	cursor := ""

	for i := 0; i < notionMaxBlockPages; i++ {
		path := fmt.Sprintf("/v1/blocks/%s/children?page_size=%d", pageID, notionBlockLimit)
		if cursor != "" {
			path += "&start_cursor=" + url.QueryEscape(cursor)
		}

		var page notionBlockList
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		blocks = append(blocks, page.Results...)

		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return blocks, nil
}

// normalizeNotionBlocks walks the ordered block list and emits a lossy but
// readable markdown approximation. Only paragraph, heading_1, heading_2 and
// bulleted_list_item blocks survive; everything else is dropped. Order is
// preserved.
func normalizeNotionBlocks(blocks []notionBlock) string {
	var lines []string

	for _, b := range blocks {
		var marker string
		var value *notionBlockValue

		switch b.Type {
		case "paragraph":
			value = b.Paragraph
		case "heading_1":
			marker, value = "# ", b.Heading1
		case "heading_2":
			marker, value = "## ", b.Heading2
		case "bulleted_list_item":
			marker, value = "- ", b.BulletedListItem
		default:
			continue
		}

		if value == nil {
			continue
		}

		var sb strings.Builder
		for _, rt := range value.RichText {
			sb.WriteString(rt.PlainText)
		}
		lines = append(lines, marker+sb.String())
	}

	return strings.Join(lines, "\n")
}

func (c *NotionConnector) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Notion-Version", notionVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

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
