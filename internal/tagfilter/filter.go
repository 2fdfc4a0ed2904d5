// Package tagfilter implements the seven tag-value filter kinds from §4.2
// (C2). A Filter is a tagged variant — one struct whose Kind field selects
// the behaviour of its single Matches operation, no inheritance — per the
// design note in §9.
package tagfilter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Kind names one of the seven filter varieties.
type Kind string

const (
	KindLiteralOr         Kind = "literal_or"
	KindILiteralOr        Kind = "iliteral_or"
	KindNotLiteralOr       Kind = "not_literal_or"
	KindNotILiteralOr      Kind = "not_iliteral_or"
	KindWildcard          Kind = "wildcard"
	KindIWildcard          Kind = "iwildcard"
	KindRegexp             Kind = "regexp"
)

// Filter evaluates whether a tag value matches some predicate, and
// optionally declares itself a grouping axis for the aggregation path.
type Filter struct {
	Kind    Kind
	Key     string
	GroupBy bool

	raw     string
	set     map[string]struct{} // literal-or / not-literal-or variants (already cased per Kind)
	glob    glob.Glob            // wildcard variants
	re      *regexp.Regexp        // regexp variant
}

// Matches reports whether value satisfies the filter.
func (f *Filter) Matches(value string) bool {
	switch f.Kind {
	case KindLiteralOr:
		_, ok := f.set[value]
		return ok
	case KindILiteralOr:
		_, ok := f.set[strings.ToLower(value)]
		return ok
	case KindNotLiteralOr:
		_, ok := f.set[value]
		return !ok
	case KindNotILiteralOr:
		_, ok := f.set[strings.ToLower(value)]
		return !ok
	case KindWildcard:
		return f.glob.Match(value)
	case KindIWildcard:
		return f.glob.Match(strings.ToLower(value))
	case KindRegexp:
		return f.re.MatchString(value)
	default:
		return false
	}
}

// String returns the long wire form, e.g. "literal_or(a|b)".
func (f *Filter) String() string {
	return fmt.Sprintf("%s(%s)", f.Kind, f.raw)
}

// Parse builds a Filter of kind kindHint over expr. With an empty
// kindHint it applies OpenTSDB's inference rule to expr as a bare value:
// a value containing "*" is an iwildcard, otherwise it is literal_or.
// Parse does not recognise the long wire form ("kind(expr)"); use
// ParseLongForm for that.
func Parse(key, kindHint, expr string, groupBy bool) (*Filter, error) {
	kind := Kind(kindHint)
	if kind == "" {
		if strings.Contains(expr, "*") {
			kind = KindIWildcard
		} else {
			kind = KindLiteralOr
		}
	}
	return build(key, kind, expr, groupBy)
}

// ParseLongForm parses a fully-qualified wire expression such as
// "iliteral_or(a|b)" or "regexp(^prod-.*$)".
func ParseLongForm(key, wire string, groupBy bool) (*Filter, error) {
	open := strings.IndexByte(wire, '(')
	if open < 0 || !strings.HasSuffix(wire, ")") {
		// Not a long-form expression; treat the whole thing as a bare value.
		return Parse(key, "", wire, groupBy)
	}
	kind := Kind(wire[:open])
	expr := wire[open+1 : len(wire)-1]
	return build(key, kind, expr, groupBy)
}

func build(key string, kind Kind, expr string, groupBy bool) (*Filter, error) {
	f := &Filter{Kind: kind, Key: key, GroupBy: groupBy, raw: expr}

	switch kind {
	case KindLiteralOr, KindNotLiteralOr:
		f.set = splitSet(expr, false)
	case KindILiteralOr, KindNotILiteralOr:
		f.set = splitSet(expr, true)
	case KindWildcard:
		g, err := glob.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid wildcard filter %q: %w", expr, err)
		}
		f.glob = g
	case KindIWildcard:
		g, err := glob.Compile(strings.ToLower(expr))
		if err != nil {
			return nil, fmt.Errorf("invalid wildcard filter %q: %w", expr, err)
		}
		f.glob = g
	case KindRegexp:
		re, err := regexp.Compile(anchor(expr))
		if err != nil {
			return nil, fmt.Errorf("invalid regexp filter %q: %w", expr, err)
		}
		f.re = re
	default:
		return nil, fmt.Errorf("unknown filter kind %q", kind)
	}
	return f, nil
}

func splitSet(expr string, lower bool) map[string]struct{} {
	parts := strings.Split(expr, "|")
	set := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		if lower {
			p = strings.ToLower(p)
		}
		set[p] = struct{}{}
	}
	return set
}

// anchor ensures a user regex is anchored, matching OpenTSDB's
// "anchored user regex" semantics for the regexp filter kind.
func anchor(expr string) string {
	if !strings.HasPrefix(expr, "^") {
		expr = "^" + expr
	}
	if !strings.HasSuffix(expr, "$") {
		expr = expr + "$"
	}
	return expr
}
