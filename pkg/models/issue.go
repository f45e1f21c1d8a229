package models

// SynthesizedIssue is one work item produced by the LLM decomposition.
// Body is markdown and always ends with the provenance footer linking back
// to the originating document.
type SynthesizedIssue struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// WellFormed reports whether the issue has both a title and a body.
func (i SynthesizedIssue) WellFormed() bool {
	return i.Title != "" && i.Body != ""
}

// PublishRequest carries synthesized issues to the publisher. Owner and
// Repo come from the pipeline invocation and are never rewritten.
type PublishRequest struct {
	Owner  string             `json:"owner"`
	Repo   string             `json:"repo"`
	Issues []SynthesizedIssue `json:"issues"`
}

// CreatedIssue is one issue reference returned by the tracker.
type CreatedIssue struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// PublishResult is the terminal artifact of a workflow run.
type PublishResult struct {
	CreatedIssues []CreatedIssue `json:"createdIssues"`
	Error         string         `json:"error,omitempty"`
}

// StepStatus describes how a pipeline step ended.
type StepStatus string

const (
	StepOK       StepStatus = "ok"
	StepDegraded StepStatus = "degraded"
	StepFailed   StepStatus = "failed"
	StepSkipped  StepStatus = "skipped"
)

// StepRecord is a structured observation emitted by a pipeline step. Fail-soft
// stages record degradation here instead of only printing a warning, so callers
// and tests can inspect what happened.
type StepRecord struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// WorkflowResult is returned by one end-to-end synthesis run.
type WorkflowResult struct {
	RunID   string         `json:"runId"`
	Publish *PublishResult `json:"publish,omitempty"`
	Steps   []StepRecord   `json:"steps"`
}

// UrgentIssue is a tracked work item close to, or past, its due date.
type UrgentIssue struct {
	Tenant       int    `json:"tenant"`
	ProjectName  string `json:"projectName"`
	IssueKey     string `json:"issueKey"`
	Summary      string `json:"summary"`
	DueDate      string `json:"dueDate"`
	DaysUntilDue int    `json:"daysUntilDue"`
	Assignee     string `json:"assignee,omitempty"`
	Priority     string `json:"priority,omitempty"`
	URL          string `json:"url"`
}

// NotifyResult is returned by one urgent-item notification run. Skipped is a
// distinct outcome from success and failure: the weekday/holiday gate tripped
// before any outbound call.
type NotifyResult struct {
	RunID      string       `json:"runId"`
	Success    bool         `json:"success"`
	Skipped    bool         `json:"skipped,omitempty"`
	Message    string       `json:"message,omitempty"`
	MessageURL string       `json:"messageUrl,omitempty"`
	IssueCount int          `json:"issueCount"`
	Steps      []StepRecord `json:"steps"`
	Error      string       `json:"error,omitempty"`
}
