package query

import (
	"strings"

	"github.com/opentsdb-pg/tsdbadapter/internal/aggregate"
	"github.com/opentsdb-pg/tsdbadapter/internal/model"
)

// group accumulates cross-series aggregation state for one combination
// of group-by tag values, per §4.9 step 6.
type group struct {
	tags       model.Tags // intersection of every member tagset's tags, computed once all members are known
	members    []model.TagsetID
	aggsByBucket map[int64]aggregate.Aggregator
}

// groupLookup maps every candidate tagset id to the group it belongs
// to, keyed by the tuple of its values at the group-by filter keys —
// "TagsetGroupLookup" in §4.9 step 6.
type groupLookup struct {
	byTagset map[model.TagsetID]*group
	groups   map[string]*group
	fn       aggregate.Kind
}

// buildGroupLookup partitions tagsets into groups by the group-by key
// tuple. A tagset missing one of the group-by keys falls into its own
// group keyed on the partial tuple, matching OpenTSDB's tolerant
// grouping (a missing tag value is just another group identity, not an
// error).
func buildGroupLookup(tagsets map[model.TagsetID]model.Tags, byKeys []string, fn aggregate.Kind) *groupLookup {
	gl := &groupLookup{
		byTagset: make(map[model.TagsetID]*group, len(tagsets)),
		groups:   make(map[string]*group),
		fn:       fn,
	}

	for id, tags := range tagsets {
		key := groupKey(tags, byKeys)
		g, ok := gl.groups[key]
		if !ok {
			g = &group{aggsByBucket: make(map[int64]aggregate.Aggregator)}
			gl.groups[key] = g
		}
		g.members = append(g.members, id)
		gl.byTagset[id] = g
	}

	for _, g := range gl.groups {
		g.tags = intersectTags(tagsets, g.members)
	}
	return gl
}

func groupKey(tags model.Tags, byKeys []string) string {
	var b strings.Builder
	for i, k := range byKeys {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	return b.String()
}

// intersectTags computes the tags present in every member tagset with
// an identical value, per §4.9 step 6 ("each group's Tags is the
// intersection of its members' tagsets").
func intersectTags(tagsets map[model.TagsetID]model.Tags, members []model.TagsetID) model.Tags {
	if len(members) == 0 {
		return model.Tags{}
	}
	out := make(model.Tags)
	for k, v := range tagsets[members[0]] {
		out[k] = v
	}
	for _, id := range members[1:] {
		tags := tagsets[id]
		for k, v := range out {
			if tags[k] != v {
				delete(out, k)
			}
		}
	}
	return out
}

// aggregatorFor returns the (group, bucket) aggregator, creating it on
// first use.
func (gl *groupLookup) aggregatorFor(id model.TagsetID, bucketUnixSec int64) aggregate.Aggregator {
	g, ok := gl.byTagset[id]
	if !ok {
		return nil
	}
	agg, ok := g.aggsByBucket[bucketUnixSec]
	if !ok {
		agg = aggregate.New(gl.fn)
		g.aggsByBucket[bucketUnixSec] = agg
	}
	return agg
}
