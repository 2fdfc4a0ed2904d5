package query

import (
	"sort"
	"strings"
)

// Suggest implements GET /api/suggest?type=metrics|tagk|tagv&q=&max=:
// prefix-match candidates, sorted, capped at max (SPEC_FULL supplemented
// feature — OpenTSDB's suggest is prefix matching, not substring).
func (p *Pipeline) Suggest(typ, q string, max int) []string {
	var candidates []string
	switch typ {
	case "metrics":
		candidates = p.tagsets.Metrics()
	case "tagk":
		candidates = p.tagsets.TagKeys()
	case "tagv":
		candidates = p.tagsets.AllTagValues()
	default:
		return nil
	}
	return filterByPrefix(candidates, q, max)
}

// SuggestTagKeys implements GET /api/suggest/tagKeys/{metric}: every
// tag key seen on any tagset currently associated with metric.
func (p *Pipeline) SuggestTagKeys(metric string) []string {
	tagsets := p.tagsets.GetTagsets([]string{metric}, nil, false)
	seen := make(map[string]struct{})
	for _, tags := range tagsets {
		for k := range tags {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SuggestTagValues implements GET /api/suggest/tagValues/{tagKey}.
func (p *Pipeline) SuggestTagValues(tagKey string) []string {
	return p.tagsets.TagValues(tagKey)
}

func filterByPrefix(candidates []string, prefix string, max int) []string {
	out := []string{}
	for _, c := range candidates {
		if prefix == "" || strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}
