package aggregate

import (
	"github.com/tripgrid/faresearch/pkg/metrics"
)

// DefaultSourceCap is the default maximum number of results one source may
// contribute to a merged list.
const DefaultSourceCap = 15

// Diversify caps the count contributed by any single source, keeping the
// input order among retained items. One pass, per-source counters, no
// re-sort.
func Diversify(results []Result, limit int) []Result {
	if limit <= 0 {
		limit = DefaultSourceCap
	}

	perSource := make(map[string]int)
	kept := make([]Result, 0, len(results))

	for _, result := range results {
		if perSource[result.Source] >= limit {
			metrics.RecordDiversificationDrop(result.Source)
			continue
		}
		perSource[result.Source]++
		kept = append(kept, result)
	}

	return kept
}
