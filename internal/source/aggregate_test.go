package source

import (
	"strings"
	"testing"

	"github.com/Fumiaki0604/reqflow/pkg/models"
)

func result(kind models.SourceKind, id string) models.SearchResult {
	return models.SearchResult{Source: kind, ExternalID: id, Title: "t-" + id, URL: "https://example.com/" + id}
}

func TestAggregateOrdering(t *testing.T) {
	perSource := [][]models.SearchResult{
		{result(models.SourceJira, "J-1"), result(models.SourceJira, "J-2")},
		{result(models.SourceNotion, "n1")},
		{result(models.SourceBacklog, "0:issue:B-1")},
	}

	agg := Aggregate(perSource, models.AllSources)

	if agg.Error != "" {
		t.Fatalf("unexpected error: %s", agg.Error)
	}

	wantIDs := []string{"J-1", "J-2", "n1", "0:issue:B-1"}
	if len(agg.Results) != len(wantIDs) {
		t.Fatalf("got %d results, want %d", len(agg.Results), len(wantIDs))
	}
	for i, id := range wantIDs {
		if agg.Results[i].ExternalID != id {
			t.Errorf("results[%d] = %s, want %s", i, agg.Results[i].ExternalID, id)
		}
	}
}

func TestAggregateSingleReachableSource(t *testing.T) {
	// Two sources contributed nothing (errored upstream); the reachable
	// one's results must come through with no error.
	perSource := [][]models.SearchResult{
		nil,
		{result(models.SourceNotion, "n1"), result(models.SourceNotion, "n2")},
		nil,
	}

	agg := Aggregate(perSource, models.AllSources)

	if agg.Error != "" {
		t.Fatalf("unexpected error: %s", agg.Error)
	}
	if len(agg.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(agg.Results))
	}
	for _, r := range agg.Results {
		if r.Source != models.SourceNotion {
			t.Errorf("unexpected source %s", r.Source)
		}
	}
}

func TestAggregateEmptyInvariant(t *testing.T) {
	agg := Aggregate([][]models.SearchResult{nil, nil, nil}, models.AllSources)

	if agg.Error == "" {
		t.Error("empty aggregation must set an error")
	}
	if len(agg.Results) != 0 {
		t.Error("error and results must never both be populated")
	}
	for _, k := range models.AllSources {
		if !strings.Contains(agg.Error, string(k)) {
			t.Errorf("error %q should list source %s", agg.Error, k)
		}
	}
}

func TestSelectFirstResultWins(t *testing.T) {
	agg := Aggregate([][]models.SearchResult{
		{result(models.SourceJira, "J-9"), result(models.SourceJira, "J-1")},
		{result(models.SourceNotion, "n1")},
	}, []models.SourceKind{models.SourceJira, models.SourceNotion})

	picked, ok := Select(agg)
	if !ok {
		t.Fatal("expected a selection")
	}
	if picked.ExternalID != "J-9" {
		t.Errorf("Select picked %s, want J-9 (index 0)", picked.ExternalID)
	}
}

func TestSelectEmpty(t *testing.T) {
	if _, ok := Select(models.AggregatedSearch{}); ok {
		t.Error("Select on empty aggregation must report not-ok")
	}
}
