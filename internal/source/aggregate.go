package source

import (
	"fmt"
	"strings"

	"github.com/Fumiaki0604/reqflow/pkg/models"
)

// Aggregate concatenates per-source result lists into one ordered
// collection. The lists must already be in source-enablement order; no
// cross-source ranking is applied. The error is set exactly when the
// concatenation is empty.
func Aggregate(perSource [][]models.SearchResult, enabled []models.SourceKind) models.AggregatedSearch {
	var all []models.SearchResult
	for _, rs := range perSource {
		all = append(all, rs...)
	}

	if len(all) == 0 {
		names := make([]string, len(enabled))
		for i, k := range enabled {
			names[i] = string(k)
		}
		return models.AggregatedSearch{
			Error: fmt.Sprintf("検索結果が見つかりませんでした（検索対象: %s）", strings.Join(names, ", ")),
		}
	}

	return models.AggregatedSearch{Results: all}
}

// Select picks the document to fetch from an aggregation. The policy is
// first-result-wins: index 0 of the concatenation, not the best by any
// score. Kept deliberately for reproducibility.
func Select(agg models.AggregatedSearch) (models.SearchResult, bool) {
	if len(agg.Results) == 0 {
		return models.SearchResult{}, false
	}
	return agg.Results[0], true
}
