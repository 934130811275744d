package semver

import "testing"

func TestParseConstraint_RoundTrip(t *testing.T) {
	cases := []string{"^1.2.3", "~1.2.3", ">=1.0.0 <2.0.0", "*", "1.2.3 || 2.0.0"}
	for _, raw := range cases {
		c, err := ParseConstraint(raw)
		if err != nil {
			t.Fatalf("ParseConstraint(%q) error: %v", raw, err)
		}
		if got := c.String(); got != raw {
			t.Errorf("round trip: ParseConstraint(%q).String() = %q", raw, got)
		}
	}
}

func TestSatisfies_Caret(t *testing.T) {
	c := MustParseConstraint("^1.2.0")

	if !c.Satisfies(MustParseVersion("1.2.0")) {
		t.Error("^1.2.0 should match 1.2.0")
	}
	if !c.Satisfies(MustParseVersion("1.9.9")) {
		t.Error("^1.2.0 should match 1.9.9 (same major, >= base)")
	}
	if c.Satisfies(MustParseVersion("2.0.0")) {
		t.Error("^1.2.0 should not match 2.0.0 (different major)")
	}
	if c.Satisfies(MustParseVersion("1.1.9")) {
		t.Error("^1.2.0 should not match 1.1.9 (< base)")
	}
}

func TestSatisfies_Tilde(t *testing.T) {
	c := MustParseConstraint("~1.2.3")

	if !c.Satisfies(MustParseVersion("1.2.9")) {
		t.Error("~1.2.3 should match 1.2.9 (same major+minor, patch >=)")
	}
	if c.Satisfies(MustParseVersion("1.3.0")) {
		t.Error("~1.2.3 should not match 1.3.0 (different minor)")
	}
}

func TestSatisfies_OrJoinedRanges(t *testing.T) {
	c := MustParseConstraint("1.0.0 || ^2.0.0")

	if !c.Satisfies(MustParseVersion("1.0.0")) {
		t.Error("should satisfy exact subrange")
	}
	if !c.Satisfies(MustParseVersion("2.5.0")) {
		t.Error("should satisfy the caret subrange")
	}
	if c.Satisfies(MustParseVersion("1.5.0")) {
		t.Error("should not satisfy either subrange")
	}
}

func TestSatisfies_Wildcard(t *testing.T) {
	c := MustParseConstraint("*")
	if !c.Satisfies(MustParseVersion("0.0.1")) {
		t.Error("* should match anything")
	}
}

func TestParseConstraint_Invalid(t *testing.T) {
	if _, err := ParseConstraint("not a range!!"); err == nil {
		t.Fatal("expected error for malformed constraint")
	}
}
