// Package workflow runs the search-and-synthesize pipeline: translate and
// fan out the query across enabled sources, aggregate and pick the first
// hit, fetch and normalize it, decompose it into issues, and publish them.
package workflow

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/Fumiaki0604/reqflow/internal/source"
	"github.com/Fumiaki0604/reqflow/internal/synth"
	"github.com/Fumiaki0604/reqflow/pkg/models"
)

// Publisher is the terminal stage capability.
type Publisher interface {
	Publish(ctx context.Context, req *models.PublishRequest) (*models.PublishResult, error)
}

// Request is one pipeline invocation.
type Request struct {
	Query   string
	Owner   string
	Repo    string
	Sources []models.SourceKind // empty means all available sources
}

// Context carries state through the pipeline steps.
type Context struct {
	Ctx     context.Context
	Request Request

	// Enabled holds the connectors participating in this run, in the fixed
	// enablement order.
	Enabled []source.Connector

	Aggregated models.AggregatedSearch
	Document   *models.FetchedDocument
	PublishReq *models.PublishRequest

	Result *models.WorkflowResult
}

// record appends a structured step observation to the run result.
func (c *Context) record(name string, status models.StepStatus, detail string) {
	c.Result.Steps = append(c.Result.Steps, models.StepRecord{
		Name:   name,
		Status: status,
		Detail: detail,
	})
}

// Step defines a single unit of work in the pipeline. Steps before the
// terminal publish stage degrade instead of erroring; only publish may
// return a failure.
type Step interface {
	Name() string
	Run(ctx *Context) error
}

// Pipeline owns the connectors and stage implementations for one process.
type Pipeline struct {
	connectors []source.Connector
	steps      []Step
}

// New creates a pipeline over the given connectors (already in enablement
// order), synthesizer, and publisher.
func New(connectors []source.Connector, syn *synth.Synthesizer, pub Publisher) *Pipeline {
	p := &Pipeline{connectors: connectors}
	p.steps = []Step{
		&searchStep{},
		&fetchStep{},
		&synthesizeStep{syn: syn},
		&publishStep{pub: pub},
	}
	return p
}

// Execute runs one pipeline invocation. The returned result always carries
// the step records; the error is non-nil only when the terminal publish
// stage failed.
func (p *Pipeline) Execute(ctx context.Context, req Request) (*models.WorkflowResult, error) {
	pCtx := &Context{
		Ctx:     ctx,
		Request: req,
		Enabled: p.enabledConnectors(req.Sources),
		Result:  &models.WorkflowResult{RunID: uuid.NewString()},
	}

	for _, step := range p.steps {
		if err := step.Run(pCtx); err != nil {
			return pCtx.Result, fmt.Errorf("step %s failed: %w", step.Name(), err)
		}
	}

	return pCtx.Result, nil
}

// enabledConnectors filters the configured connectors down to the requested
// kinds, preserving the fixed enablement order.
func (p *Pipeline) enabledConnectors(kinds []models.SourceKind) []source.Connector {
	if len(kinds) == 0 {
		return p.connectors
	}

	requested := make(map[models.SourceKind]bool, len(kinds))
	for _, k := range kinds {
		requested[k] = true
	}

	var enabled []source.Connector
	for _, c := range p.connectors {
		if requested[c.Kind()] {
			enabled = append(enabled, c)
		}
	}
	return enabled
}

// searchStep fans the query out to every enabled source concurrently and
// joins the per-source lists back in enablement order before aggregating.
// One source failing never blocks the others.
type searchStep struct{}

func (s *searchStep) Name() string { return "search" }

func (s *searchStep) Run(ctx *Context) error {
	perSource := make([][]models.SearchResult, len(ctx.Enabled))
	kinds := make([]models.SourceKind, len(ctx.Enabled))

	var wg sync.WaitGroup
	for i, conn := range ctx.Enabled {
		kinds[i] = conn.Kind()

		wg.Add(1)
		go func(i int, conn source.Connector) {
			defer wg.Done()
			results, err := conn.Search(ctx.Ctx, ctx.Request.Query)
			if err != nil {
				log.Printf("Warning: %s search failed: %v", conn.Kind(), err)
				return
			}
			perSource[i] = results
		}(i, conn)
	}
	wg.Wait()

	ctx.Aggregated = source.Aggregate(perSource, kinds)

	for i, rs := range perSource {
		if len(rs) == 0 {
			ctx.record("search."+string(kinds[i]), models.StepDegraded, "no results")
		}
	}

	if ctx.Aggregated.Error != "" {
		ctx.record(s.Name(), models.StepDegraded, ctx.Aggregated.Error)
	} else {
		ctx.record(s.Name(), models.StepOK, fmt.Sprintf("%d results", len(ctx.Aggregated.Results)))
	}

	return nil
}

// fetchStep retrieves and normalizes the selected document. An empty
// aggregation short-circuits into a degraded document carrying the
// aggregation error.
type fetchStep struct{}

func (s *fetchStep) Name() string { return "fetch" }

func (s *fetchStep) Run(ctx *Context) error {
	ref, ok := source.Select(ctx.Aggregated)
	if !ok {
		ctx.Document = &models.FetchedDocument{Error: ctx.Aggregated.Error}
		ctx.record(s.Name(), models.StepDegraded, "nothing to fetch")
		return nil
	}

	conn := connectorFor(ctx.Enabled, ref.Source)
	if conn == nil {
		ctx.Document = &models.FetchedDocument{
			Source: ref.Source, ExternalID: ref.ExternalID, Title: ref.Title, URL: ref.URL,
			Error: fmt.Sprintf("no connector for source %s", ref.Source),
		}
		ctx.record(s.Name(), models.StepDegraded, ctx.Document.Error)
		return nil
	}

	ctx.Document = conn.Fetch(ctx.Ctx, ref)

	switch {
	case ctx.Document.Error != "":
		ctx.record(s.Name(), models.StepDegraded, ctx.Document.Error)
	case !ctx.Document.HasContent():
		ctx.record(s.Name(), models.StepDegraded, "content empty")
	default:
		ctx.record(s.Name(), models.StepOK, string(ref.Source)+" "+ref.ExternalID)
	}

	return nil
}

func connectorFor(connectors []source.Connector, kind models.SourceKind) source.Connector {
	for _, c := range connectors {
		if c.Kind() == kind {
			return c
		}
	}
	return nil
}

// synthesizeStep decomposes the document into issues. It never fails: the
// synthesizer converts every failure mode into a degraded request.
type synthesizeStep struct {
	syn *synth.Synthesizer
}

func (s *synthesizeStep) Name() string { return "synthesize" }

func (s *synthesizeStep) Run(ctx *Context) error {
	intent := synth.Intent{
		Query: ctx.Request.Query,
		Owner: ctx.Request.Owner,
		Repo:  ctx.Request.Repo,
	}

	req, note := s.syn.Synthesize(ctx.Ctx, ctx.Document, intent)
	ctx.PublishReq = req

	if note != "" {
		ctx.record(s.Name(), models.StepDegraded, note)
	} else {
		ctx.record(s.Name(), models.StepOK, fmt.Sprintf("%d issues", len(req.Issues)))
	}

	return nil
}

// publishStep creates the issues in the destination tracker. This is the
// one stage without a further degradation fallback.
type publishStep struct {
	pub Publisher
}

func (s *publishStep) Name() string { return "publish" }

func (s *publishStep) Run(ctx *Context) error {
	result, err := s.pub.Publish(ctx.Ctx, ctx.PublishReq)
	ctx.Result.Publish = result
	if err != nil {
		ctx.record(s.Name(), models.StepFailed, err.Error())
		return err
	}

	ctx.record(s.Name(), models.StepOK, fmt.Sprintf("%d issues created", len(result.CreatedIssues)))
	return nil
}
