package models

// SourceKind identifies one of the supported document sources.
type SourceKind string

const (
	SourceJira    SourceKind = "jira"
	SourceNotion  SourceKind = "notion"
	SourceBacklog SourceKind = "backlog"
)

// AllSources lists the supported kinds in the fixed enablement order used
// for aggregation. The order is part of the pipeline contract: aggregated
// results are concatenated in this order regardless of which source
// responds first.
var AllSources = []SourceKind{SourceJira, SourceNotion, SourceBacklog}

// ParseSourceKind converts a string to a SourceKind, returning false for
// unknown values.
func ParseSourceKind(s string) (SourceKind, bool) {
	switch SourceKind(s) {
	case SourceJira, SourceNotion, SourceBacklog:
		return SourceKind(s), true
	}
	return "", false
}

// DisplayName returns the human-readable service name for provenance text.
func (k SourceKind) DisplayName() string {
	switch k {
	case SourceJira:
		return "Jira"
	case SourceNotion:
		return "Notion"
	case SourceBacklog:
		return "Backlog"
	}
	return string(k)
}

// SearchResult is one hit from a single source's search.
type SearchResult struct {
	Source     SourceKind `json:"source"`
	ExternalID string     `json:"externalId"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
}

// AggregatedSearch merges per-source result lists into one ordered
// collection. Error is set if and only if Results is empty after every
// enabled source has been queried.
type AggregatedSearch struct {
	Results []SearchResult `json:"results"`
	Error   string         `json:"error,omitempty"`
}

// FetchedDocument is the normalized content of the selected search result.
// Content and Error are mutually exclusive, except that Content may be
// present but empty, which downstream treats the same as absent.
type FetchedDocument struct {
	Source     SourceKind `json:"source"`
	ExternalID string     `json:"externalId"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	Content    string     `json:"content,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// HasContent reports whether the document carries usable content.
func (d *FetchedDocument) HasContent() bool {
	return d != nil && d.Error == "" && d.Content != ""
}
