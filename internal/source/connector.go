package source

import (
	"context"
	"net/http"
	"time"

	"github.com/Fumiaki0604/reqflow/pkg/models"
)

// requestTimeout bounds every outbound call to a document source. A timeout
// is treated identically to an HTTP error: the source contributes zero
// results and siblings keep running.
const requestTimeout = 30 * time.Second

// Connector is the per-source search/fetch capability.
type Connector interface {
	Kind() models.SourceKind

	// Search runs the source-specific query and returns normalized result
	// summaries. An error here never aborts the aggregation; the caller
	// logs it and the source contributes nothing.
	Search(ctx context.Context, query string) ([]models.SearchResult, error)

	// Fetch retrieves and normalizes the document behind a search result.
	// It never fails hard: transport or extraction problems populate the
	// returned document's Error field instead.
	Fetch(ctx context.Context, ref models.SearchResult) *models.FetchedDocument
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// docFromRef seeds a FetchedDocument with the identity fields of the search
// result it was selected from, so degraded fetches keep their provenance.
func docFromRef(ref models.SearchResult) *models.FetchedDocument {
	return &models.FetchedDocument{
		Source:     ref.Source,
		ExternalID: ref.ExternalID,
		Title:      ref.Title,
		URL:        ref.URL,
	}
}
