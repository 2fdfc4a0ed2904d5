package model

import (
	"hash/fnv"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var tagsetJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// TagsetKey is the canonical, hashable form of a Tags map: its pairs
// sorted by key and joined into one string, plus a precomputed FNV-1a
// hash of that string (see Hash). It is comparable, so it serves directly
// as the key of the C1 ttlcache. Two Tags with identical (key,value) content always
// produce an equal TagsetKey, matching the "two tagsets are equal iff
// their (key,value) multisets are equal" invariant in §3.
type TagsetKey struct {
	canonical string
	hash      uint64
}

// NewTagsetKey builds the canonical key for a Tags map. It does not
// mutate tags.
func NewTagsetKey(tags Tags) TagsetKey {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	canonical := b.String()

	h := fnv.New64a()
	_, _ = h.Write([]byte(canonical))

	return TagsetKey{canonical: canonical, hash: h.Sum64()}
}

// CanonicalJSON renders the tagset key's pairs as the sorted-pair JSON
// document used both as the tagset.tags column value and as the ingest
// path's resolution key (§4.5 step 3). Marshaling a map[string]string
// already sorts keys lexically, matching the canonical form's ordering.
func (k TagsetKey) CanonicalJSON() string {
	if k.canonical == "" {
		return "{}"
	}
	m := make(map[string]string, strings.Count(k.canonical, "\x1f")+1)
	for _, p := range strings.Split(k.canonical, "\x1f") {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) == 2 {
			m[kv[0]] = kv[1]
		} else {
			m[kv[0]] = ""
		}
	}
	out, err := tagsetJSON.Marshal(m)
	if err != nil {
		// m is a map[string]string; marshaling it cannot fail.
		panic(err)
	}
	return string(out)
}

// Hash returns the precomputed FNV-1a hash of the canonical form. Go map
// keys already hash TagsetKey by its fields, so this is exposed only for
// callers (e.g. sharded containers) that want to pick a shard without
// re-deriving the canonical string.
func (k TagsetKey) Hash() uint64 { return k.hash }

func (k TagsetKey) String() string { return k.canonical }
