package workflow

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Fumiaki0604/reqflow/internal/llm"
	"github.com/Fumiaki0604/reqflow/internal/source"
	"github.com/Fumiaki0604/reqflow/internal/synth"
	"github.com/Fumiaki0604/reqflow/pkg/models"
)

// fakeConnector is a scripted source for pipeline tests.
type fakeConnector struct {
	kind      models.SourceKind
	results   []models.SearchResult
	searchErr error
	doc       *models.FetchedDocument
	delay     time.Duration

	fetched []models.SearchResult
}

func (f *fakeConnector) Kind() models.SourceKind { return f.kind }

func (f *fakeConnector) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.results, f.searchErr
}

func (f *fakeConnector) Fetch(ctx context.Context, ref models.SearchResult) *models.FetchedDocument {
	f.fetched = append(f.fetched, ref)
	if f.doc != nil {
		return f.doc
	}
	return &models.FetchedDocument{
		Source:     ref.Source,
		ExternalID: ref.ExternalID,
		Title:      ref.Title,
		URL:        ref.URL,
		Content:    "本文",
	}
}

// fakePublisher records publish requests and can fail on demand.
type fakePublisher struct {
	err      error
	requests []*models.PublishRequest
}

func (f *fakePublisher) Publish(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return &models.PublishResult{Error: f.err.Error()}, f.err
	}
	result := &models.PublishResult{}
	for i := range req.Issues {
		result.CreatedIssues = append(result.CreatedIssues, models.CreatedIssue{
			Number: i + 1,
			URL:    fmt.Sprintf("https://github.com/%s/%s/issues/%d", req.Owner, req.Repo, i+1),
		})
	}
	return result, nil
}

type scriptedProvider struct {
	response string
	err      error
}

func (p *scriptedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return p.response, p.err
}

func (p *scriptedProvider) CompleteJSON(ctx context.Context, prompt string, schema *llm.Schema) (string, error) {
	return p.response, p.err
}

func (p *scriptedProvider) Close() error { return nil }

func ref(kind models.SourceKind, id string) models.SearchResult {
	return models.SearchResult{Source: kind, ExternalID: id, Title: "t-" + id, URL: "https://example.com/" + id}
}

func twoIssueResponse() string {
	return `[{"title": "ログイン画面の刷新", "body": "## 背景\n既存の画面を置き換える。"},
	         {"title": "SSO 連携", "body": "## 背景\nSSO を導入する。"}]`
}

func TestExecuteEndToEnd(t *testing.T) {
	jira := &fakeConnector{kind: models.SourceJira, results: []models.SearchResult{ref(models.SourceJira, "REQ-1")}}
	notion := &fakeConnector{kind: models.SourceNotion, results: []models.SearchResult{ref(models.SourceNotion, "n1")}}
	pub := &fakePublisher{}

	p := New([]source.Connector{jira, notion}, synth.New(&scriptedProvider{response: twoIssueResponse()}), pub)

	result, err := p.Execute(context.Background(), Request{Query: "auth redesign", Owner: "acme", Repo: "backend"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if result.RunID == "" {
		t.Error("result must carry a run id")
	}
	if len(pub.requests) != 1 {
		t.Fatalf("published %d requests, want 1", len(pub.requests))
	}
	if got := len(pub.requests[0].Issues); got != 2 {
		t.Fatalf("published %d issues, want 2", got)
	}
	for _, is := range pub.requests[0].Issues {
		if !strings.Contains(is.Body, "参照元") {
			t.Errorf("published issue missing provenance footer:\n%s", is.Body)
		}
	}
	if result.Publish == nil || len(result.Publish.CreatedIssues) != 2 {
		t.Errorf("unexpected publish result %+v", result.Publish)
	}

	// First result wins: the Jira hit was fetched, not the Notion one.
	if len(jira.fetched) != 1 || len(notion.fetched) != 0 {
		t.Errorf("fetch went to the wrong connector (jira=%d notion=%d)", len(jira.fetched), len(notion.fetched))
	}
}

func TestExecuteSelectionIgnoresLatency(t *testing.T) {
	// The slow first-ordered source must still win the selection.
	jira := &fakeConnector{
		kind:    models.SourceJira,
		results: []models.SearchResult{ref(models.SourceJira, "REQ-9")},
		delay:   30 * time.Millisecond,
	}
	notion := &fakeConnector{kind: models.SourceNotion, results: []models.SearchResult{ref(models.SourceNotion, "fast")}}
	pub := &fakePublisher{}

	p := New([]source.Connector{jira, notion}, synth.New(&scriptedProvider{response: twoIssueResponse()}), pub)

	if _, err := p.Execute(context.Background(), Request{Query: "q", Owner: "o", Repo: "r"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(jira.fetched) != 1 {
		t.Error("the first source in enablement order must win regardless of response latency")
	}
}

func TestExecuteSourceIsolation(t *testing.T) {
	// Two sources fail outright; the run still completes off the third.
	jira := &fakeConnector{kind: models.SourceJira, searchErr: fmt.Errorf("connection refused")}
	notion := &fakeConnector{kind: models.SourceNotion, searchErr: fmt.Errorf("401 unauthorized")}
	backlog := &fakeConnector{kind: models.SourceBacklog, results: []models.SearchResult{ref(models.SourceBacklog, "0:wiki:1")}}
	pub := &fakePublisher{}

	p := New([]source.Connector{jira, notion, backlog}, synth.New(&scriptedProvider{response: twoIssueResponse()}), pub)

	result, err := p.Execute(context.Background(), Request{Query: "q", Owner: "o", Repo: "r"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(backlog.fetched) != 1 {
		t.Error("healthy source's result should have been fetched")
	}

	var degradedSearches int
	for _, s := range result.Steps {
		if strings.HasPrefix(s.Name, "search.") && s.Status == models.StepDegraded {
			degradedSearches++
		}
	}
	if degradedSearches != 2 {
		t.Errorf("expected 2 degraded per-source search records, got %d", degradedSearches)
	}
}

func TestExecuteNoResultsDegradesToAdvisoryIssue(t *testing.T) {
	jira := &fakeConnector{kind: models.SourceJira}
	pub := &fakePublisher{}

	p := New([]source.Connector{jira}, synth.New(&scriptedProvider{}), pub)

	result, err := p.Execute(context.Background(), Request{Query: "存在しない要件", Owner: "o", Repo: "r"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(pub.requests) != 1 || len(pub.requests[0].Issues) != 1 {
		t.Fatalf("expected one degraded advisory issue, got %+v", pub.requests)
	}
	if !strings.Contains(pub.requests[0].Issues[0].Title, "要確認") {
		t.Errorf("advisory title = %q", pub.requests[0].Issues[0].Title)
	}
	if result.Publish == nil || len(result.Publish.CreatedIssues) != 1 {
		t.Error("publishing the advisory issue should still succeed")
	}
}

func TestExecuteEmptyContentRecordsDegradedFetch(t *testing.T) {
	jira := &fakeConnector{
		kind:    models.SourceJira,
		results: []models.SearchResult{ref(models.SourceJira, "REQ-1")},
		doc:     &models.FetchedDocument{Source: models.SourceJira, ExternalID: "REQ-1", Title: "t", URL: "https://j/1"},
	}
	pub := &fakePublisher{}

	p := New([]source.Connector{jira}, synth.New(&scriptedProvider{}), pub)

	result, err := p.Execute(context.Background(), Request{Query: "q", Owner: "o", Repo: "r"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var fetchRecord *models.StepRecord
	for i := range result.Steps {
		if result.Steps[i].Name == "fetch" {
			fetchRecord = &result.Steps[i]
		}
	}
	if fetchRecord == nil {
		t.Fatal("no fetch step record")
	}
	if fetchRecord.Status != models.StepDegraded || fetchRecord.Detail != "content empty" {
		t.Errorf("fetch record = %+v, want degraded content empty", fetchRecord)
	}

	// Downstream still publishes the single advisory issue.
	if len(pub.requests) != 1 || len(pub.requests[0].Issues) != 1 {
		t.Errorf("expected one advisory issue, got %+v", pub.requests)
	}
}

func TestExecutePublishFailureIsTerminal(t *testing.T) {
	jira := &fakeConnector{kind: models.SourceJira, results: []models.SearchResult{ref(models.SourceJira, "REQ-1")}}
	pub := &fakePublisher{err: fmt.Errorf("403 forbidden")}

	p := New([]source.Connector{jira}, synth.New(&scriptedProvider{response: twoIssueResponse()}), pub)

	result, err := p.Execute(context.Background(), Request{Query: "q", Owner: "o", Repo: "r"})
	if err == nil {
		t.Fatal("publish failure must propagate as an error")
	}
	if !strings.Contains(err.Error(), "publish") {
		t.Errorf("error %q should name the failed step", err)
	}
	if result == nil {
		t.Fatal("step records must survive the failure")
	}

	last := result.Steps[len(result.Steps)-1]
	if last.Name != "publish" || last.Status != models.StepFailed {
		t.Errorf("last step = %+v, want failed publish", last)
	}
}

func TestExecuteSourceFilter(t *testing.T) {
	jira := &fakeConnector{kind: models.SourceJira, results: []models.SearchResult{ref(models.SourceJira, "REQ-1")}}
	notion := &fakeConnector{kind: models.SourceNotion, results: []models.SearchResult{ref(models.SourceNotion, "n1")}}
	pub := &fakePublisher{}

	p := New([]source.Connector{jira, notion}, synth.New(&scriptedProvider{response: twoIssueResponse()}), pub)

	_, err := p.Execute(context.Background(), Request{
		Query: "q", Owner: "o", Repo: "r",
		Sources: []models.SourceKind{models.SourceNotion},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(notion.fetched) != 1 || len(jira.fetched) != 0 {
		t.Errorf("source filter not honored (jira=%d notion=%d)", len(jira.fetched), len(notion.fetched))
	}
}
