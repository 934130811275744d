package semver

import (
	"testing"

	"github.com/zern/kernel/kernelerr"
)

func TestParseVersion_RoundTrip(t *testing.T) {
	cases := []string{"1.0.0", "2.3.4-beta.1", "0.0.1+build.5", "10.20.30"}
	for _, raw := range cases {
		v, err := ParseVersion(raw)
		if err != nil {
			t.Fatalf("ParseVersion(%q) error: %v", raw, err)
		}
		if got := v.String(); got != raw {
			t.Errorf("round trip: ParseVersion(%q).String() = %q", raw, got)
		}
	}
}

func TestParseVersion_Invalid(t *testing.T) {
	_, err := ParseVersion("not-a-version")
	if err == nil {
		t.Fatal("expected error")
	}
	code, ok := kernelerr.CodeOf(err)
	if !ok || code != kernelerr.CodeInvalidVersion {
		t.Fatalf("code = %v, ok=%v, want CodeInvalidVersion", code, ok)
	}
}

func TestCompareVersions_AntisymmetricAndTransitive(t *testing.T) {
	a := MustParseVersion("1.0.0")
	b := MustParseVersion("1.0.1")
	c := MustParseVersion("2.0.0")

	if a.Compare(b) >= 0 {
		t.Fatal("1.0.0 should be < 1.0.1")
	}
	if b.Compare(a) <= 0 {
		t.Fatal("antisymmetry violated")
	}
	if a.Compare(c) >= 0 || b.Compare(c) >= 0 {
		t.Fatal("transitivity violated: 1.0.0 < 1.0.1 < 2.0.0")
	}
	if a.Compare(a) != 0 {
		t.Fatal("equal versions must compare 0")
	}
}

func TestCompareVersions_PrereleaseOrdersLower(t *testing.T) {
	pre := MustParseVersion("1.0.0-alpha")
	release := MustParseVersion("1.0.0")

	if pre.Compare(release) >= 0 {
		t.Fatal("prerelease must sort below the same version without one")
	}
}

func TestCompareVersions_PrereleaseNumericVsLexicographic(t *testing.T) {
	p1 := MustParseVersion("1.0.0-alpha.2")
	p2 := MustParseVersion("1.0.0-alpha.10")

	if p1.Compare(p2) >= 0 {
		t.Fatal("numeric prerelease identifiers must compare numerically (2 < 10)")
	}
}

func TestCompareVersions_BuildMetadataIgnored(t *testing.T) {
	a := MustParseVersion("1.0.0+build.1")
	b := MustParseVersion("1.0.0+build.2")

	if a.Compare(b) != 0 {
		t.Fatal("build metadata must not affect comparison")
	}
}
