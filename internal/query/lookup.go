package query

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/opentsdb-pg/tsdbadapter/internal/model"
	"github.com/opentsdb-pg/tsdbadapter/internal/tagfilter"
)

// Lookup implements POST /api/search/lookup (SPEC_FULL supplemented
// feature): a metric name or wildcard, ANDed with literal-or-wildcard
// tag filters, against every tagset currently known to the cache.
func (p *Pipeline) Lookup(req model.LookupRequestDto) (model.LookupResponseDto, error) {
	metrics, err := matchingMetrics(p.tagsets.Metrics(), req.Metric)
	if err != nil {
		return model.LookupResponseDto{}, err
	}

	filters := make([]*tagfilter.Filter, 0, len(req.Tags))
	for _, tp := range req.Tags {
		f, err := tagfilter.Parse(tp.Key, "", tp.Value, false)
		if err != nil {
			return model.LookupResponseDto{}, err
		}
		filters = append(filters, f)
	}

	// Resolve one metric at a time rather than unioning candidates across
	// every matched metric up front, so each result can still carry the
	// metric name it actually belongs to.
	var results []model.LookupResultEntryDto
	for _, metric := range metrics {
		for _, tags := range p.tagsets.GetTagsets([]string{metric}, filters, false) {
			results = append(results, model.LookupResultEntryDto{Metric: metric, Tags: tags})
		}
	}

	total := len(results)
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}

	return model.LookupResponseDto{
		Metric:       req.Metric,
		Tags:         req.Tags,
		Results:      results,
		TotalResults: total,
	}, nil
}

func matchingMetrics(all []string, pattern string) ([]string, error) {
	if pattern == "" || pattern == "*" {
		return all, nil
	}
	if !strings.Contains(pattern, "*") {
		for _, m := range all {
			if m == pattern {
				return []string{m}, nil
			}
		}
		return nil, nil
	}
	g, err := glob.Compile(pattern, '.')
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range all {
		if g.Match(m) {
			out = append(out, m)
		}
	}
	return out, nil
}
