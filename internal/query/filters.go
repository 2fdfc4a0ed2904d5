// Package query implements the read path: /api/query's row-fetch,
// grouping, and aggregation pipeline (C9, §4.9), plus the closely
// related /api/query/last, /api/search/lookup, and /api/suggest*
// endpoints that share its tagset-cache and filter machinery.
package query

import (
	"fmt"
	"sort"

	"github.com/opentsdb-pg/tsdbadapter/internal/model"
	"github.com/opentsdb-pg/tsdbadapter/internal/tagfilter"
)

// BuildFilters converts a QueryPartDto's inline tags and explicit
// filters into one ordered filter list, per §4.9 step 1: every inline
// tag becomes a filter with its kind inferred from its syntax and
// GroupBy forced to true.
func BuildFilters(part model.QueryPartDto) ([]*tagfilter.Filter, error) {
	var filters []*tagfilter.Filter

	keys := make([]string, 0, len(part.Tags))
	for k := range part.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f, err := tagfilter.ParseLongForm(k, part.Tags[k], true)
		if err != nil {
			return nil, fmt.Errorf("inline tag %q: %w", k, err)
		}
		filters = append(filters, f)
	}

	for _, fd := range part.Filters {
		f, err := tagfilter.Parse(fd.Tagk, fd.Type, fd.Filter, fd.GroupBy)
		if err != nil {
			return nil, fmt.Errorf("filter on %q: %w", fd.Tagk, err)
		}
		filters = append(filters, f)
	}

	return filters, nil
}

// groupByKeys returns the sorted, deduplicated set of filter keys
// flagged GroupBy=true.
func groupByKeys(filters []*tagfilter.Filter) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, f := range filters {
		if !f.GroupBy {
			continue
		}
		if _, ok := seen[f.Key]; ok {
			continue
		}
		seen[f.Key] = struct{}{}
		keys = append(keys, f.Key)
	}
	sort.Strings(keys)
	return keys
}
