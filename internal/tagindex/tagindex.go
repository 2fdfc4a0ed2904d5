// Package tagindex implements the two maps from §4.3 (C3): a nested
// tag-key → tag-value → tagset-id index, and the flat union of all tag
// values used for the no-key-argument /api/suggest?type=tagv form.
//
// The index itself allows reads to proceed concurrently with a writer.
// Rather than one global lock, the key index is split into shards chosen
// by rendezvous hashing on the tag key, so unrelated keys never contend.
// Any single (key,value,id) triple is applied atomically; a reader of the
// index alone may observe a batch of writes as partially applied across
// different keys, never a torn entry. Its one caller, C4 (tagsetcache),
// additionally holds its own RWMutex around every call: GetTagsets takes
// the read side and Refresh/Prune the write side, so queries through C4
// wait for a running refresh or prune to finish.
package tagindex

import (
	"sort"
	"strconv"
	"sync"

	"github.com/dgryski/go-rendezvous"

	"github.com/opentsdb-pg/tsdbadapter/internal/model"
)

const shardCount = 32

type shard struct {
	mu   sync.RWMutex
	data map[string]map[string]map[model.TagsetID]struct{} // tagKey -> tagValue -> ids
}

// TagIndex is the concurrent container described above.
type TagIndex struct {
	shards [shardCount]*shard
	rv     *rendezvous.Rendezvous

	valuesMu sync.RWMutex
	values   map[string]int // tag value -> reference count across all keys
}

// New creates an empty TagIndex.
func New() *TagIndex {
	nodes := make([]string, shardCount)
	for i := range nodes {
		nodes[i] = strconv.Itoa(i)
	}
	ti := &TagIndex{
		rv:     rendezvous.New(nodes, hashString),
		values: make(map[string]int),
	}
	for i := range ti.shards {
		ti.shards[i] = &shard{data: make(map[string]map[string]map[model.TagsetID]struct{})}
	}
	return ti
}

func hashString(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func (ti *TagIndex) shardFor(key string) *shard {
	node := ti.rv.Lookup(key)
	idx, err := strconv.Atoi(node)
	if err != nil {
		idx = 0
	}
	return ti.shards[idx]
}

// AddTag records that tagset id carries tag (k,v).
func (ti *TagIndex) AddTag(k, v string, id model.TagsetID) {
	s := ti.shardFor(k)
	s.mu.Lock()
	valueMap, ok := s.data[k]
	if !ok {
		valueMap = make(map[string]map[model.TagsetID]struct{})
		s.data[k] = valueMap
	}
	idSet, ok := valueMap[v]
	if !ok {
		idSet = make(map[model.TagsetID]struct{})
		valueMap[v] = idSet
	}
	_, already := idSet[id]
	idSet[id] = struct{}{}
	s.mu.Unlock()

	if !already {
		ti.valuesMu.Lock()
		ti.values[v]++
		ti.valuesMu.Unlock()
	}
}

// RemoveTagset removes tagset id's membership from every (k,v) pair in
// tags. When pruneValues is true, the flat tag-value union is kept
// consistent incrementally (suited to removing a single tagset); when
// false, as C4.Prune passes, the caller is expected to call
// RebuildTagValues once after a batch of removals, since decrementing a
// shared reference count one tagset at a time is the same cost either
// way but a single rebuild pass amortizes better for bulk pruning.
func (ti *TagIndex) RemoveTagset(id model.TagsetID, tags model.Tags, pruneValues bool) {
	for k, v := range tags {
		s := ti.shardFor(k)
		s.mu.Lock()
		if valueMap, ok := s.data[k]; ok {
			if idSet, ok := valueMap[v]; ok {
				delete(idSet, id)
				if len(idSet) == 0 {
					delete(valueMap, v)
				}
			}
			if len(valueMap) == 0 {
				delete(s.data, k)
			}
		}
		s.mu.Unlock()

		if pruneValues {
			ti.valuesMu.Lock()
			if n := ti.values[v]; n <= 1 {
				delete(ti.values, v)
			} else {
				ti.values[v] = n - 1
			}
			ti.valuesMu.Unlock()
		}
	}
}

// RebuildTagValues recomputes the flat tag-value union from scratch by
// scanning every shard. It is O(total pairs) and intended to be called
// once after a batch of RemoveTagset(pruneValues=false) calls (C4.Prune),
// not per-removal.
func (ti *TagIndex) RebuildTagValues() {
	counts := make(map[string]int)
	for _, s := range ti.shards {
		s.mu.RLock()
		for _, valueMap := range s.data {
			for v, idSet := range valueMap {
				counts[v] += len(idSet)
			}
		}
		s.mu.RUnlock()
	}

	ti.valuesMu.Lock()
	ti.values = counts
	ti.valuesMu.Unlock()
}

// TryGetTagValueIndex returns a snapshot of the value→idset map for key,
// or false if the key is unknown. The snapshot is copied out under the
// shard's read lock so callers can iterate it without holding any lock.
func (ti *TagIndex) TryGetTagValueIndex(key string) (map[string]map[model.TagsetID]struct{}, bool) {
	s := ti.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()

	valueMap, ok := s.data[key]
	if !ok {
		return nil, false
	}
	out := make(map[string]map[model.TagsetID]struct{}, len(valueMap))
	for v, idSet := range valueMap {
		cp := make(map[model.TagsetID]struct{}, len(idSet))
		for id := range idSet {
			cp[id] = struct{}{}
		}
		out[v] = cp
	}
	return out, true
}

// PossibleTagValueCount returns the number of distinct values seen for
// key; 0 if the key is unknown. Used by C4.GetTagsets as a selectivity
// heuristic to order filter evaluation.
func (ti *TagIndex) PossibleTagValueCount(key string) int {
	s := ti.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[key])
}

// TagKeys returns every tag key currently indexed, sorted.
func (ti *TagIndex) TagKeys() []string {
	var keys []string
	for _, s := range ti.shards {
		s.mu.RLock()
		for k := range s.data {
			keys = append(keys, k)
		}
		s.mu.RUnlock()
	}
	sort.Strings(keys)
	return keys
}

// TagValuesFor returns every value seen for key, sorted.
func (ti *TagIndex) TagValuesFor(key string) []string {
	s := ti.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	valueMap := s.data[key]
	out := make([]string, 0, len(valueMap))
	for v := range valueMap {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// AllTagValues returns the flat union of every tag value across every
// key, sorted, for /api/suggest?type=tagv with no key argument.
func (ti *TagIndex) AllTagValues() []string {
	ti.valuesMu.RLock()
	defer ti.valuesMu.RUnlock()
	out := make([]string, 0, len(ti.values))
	for v := range ti.values {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
