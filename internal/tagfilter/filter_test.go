package tagfilter

import "testing"

func TestLiteralOr(t *testing.T) {
	f, err := ParseLongForm("host", "literal_or(a|b)", false)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []string{"a", "b"} {
		if !f.Matches(v) {
			t.Errorf("expected %q to match", v)
		}
	}
	if f.Matches("c") {
		t.Errorf("expected %q not to match", "c")
	}
}

func TestNotLiteralOrIsNegation(t *testing.T) {
	f, err := ParseLongForm("host", "not_literal_or(a|b)", false)
	if err != nil {
		t.Fatal(err)
	}
	if f.Matches("a") || f.Matches("b") {
		t.Errorf("not_literal_or should exclude listed values")
	}
	if !f.Matches("c") {
		t.Errorf("not_literal_or should include unlisted values")
	}
}

func TestCaseInsensitiveVariantsCompareLowercased(t *testing.T) {
	f, err := ParseLongForm("host", "iliteral_or(A|B)", false)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Matches("a") || !f.Matches("B") {
		t.Errorf("iliteral_or should match case-insensitively")
	}

	nf, err := ParseLongForm("host", "not_iliteral_or(A|B)", false)
	if err != nil {
		t.Fatal(err)
	}
	if nf.Matches("a") || nf.Matches("b") {
		t.Errorf("not_iliteral_or should exclude regardless of case")
	}
}

func TestBareValueInference(t *testing.T) {
	plain, err := Parse("host", "", "a|b", false)
	if err != nil {
		t.Fatal(err)
	}
	if plain.Kind != KindLiteralOr {
		t.Errorf("bare non-wildcard value should infer literal_or, got %s", plain.Kind)
	}

	wild, err := Parse("host", "", "prod-*", false)
	if err != nil {
		t.Fatal(err)
	}
	if wild.Kind != KindIWildcard {
		t.Errorf("bare wildcard value should infer iwildcard, got %s", wild.Kind)
	}
	if !wild.Matches("PROD-1") {
		t.Errorf("iwildcard inference should match case-insensitively")
	}
}

func TestWildcardGlob(t *testing.T) {
	f, err := ParseLongForm("host", "wildcard(web*)", false)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Matches("web01") || f.Matches("db01") {
		t.Errorf("wildcard(web*) should match web01 only")
	}
	if f.Matches("WEB01") {
		t.Errorf("wildcard should be case-sensitive")
	}
}

func TestRegexpIsAnchored(t *testing.T) {
	f, err := ParseLongForm("host", "regexp(web[0-9]+)", false)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Matches("web01") {
		t.Errorf("expected web01 to match")
	}
	if f.Matches("xweb01") || f.Matches("web01x") {
		t.Errorf("regexp filter should be anchored")
	}
}

func TestGroupByFlagPreserved(t *testing.T) {
	f, err := ParseLongForm("host", "literal_or(a)", true)
	if err != nil {
		t.Fatal(err)
	}
	if !f.GroupBy {
		t.Errorf("expected GroupBy to be true")
	}
}
