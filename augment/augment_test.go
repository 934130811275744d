package augment

import (
	"testing"

	"github.com/zern/kernel/plugin"
)

func TestMerge_AppliesSingleContribution(t *testing.T) {
	m := New(nil, nil)
	own := plugin.API{"greet": "hi"}
	merged := m.Merge("target", own, []Contribution{
		{Source: "extra", Methods: map[string]plugin.AugmentFunc{
			"wave": func(_ plugin.API) any { return "wave!" },
		}},
	})

	if merged["greet"] != "hi" {
		t.Fatal("own API must survive the merge")
	}
	if merged["wave"] != "wave!" {
		t.Fatal("contributed method must appear in the merged API")
	}
}

func TestMerge_LastWriterWinsOnCollision(t *testing.T) {
	m := New(nil, nil)
	merged := m.Merge("target", plugin.API{}, []Contribution{
		{Source: "first", Methods: map[string]plugin.AugmentFunc{
			"wave": func(_ plugin.API) any { return "first" },
		}},
		{Source: "second", Methods: map[string]plugin.AugmentFunc{
			"wave": func(_ plugin.API) any { return "second" },
		}},
	})
	if merged["wave"] != "second" {
		t.Fatalf("wave = %v, want \"second\" (last writer in resolved order wins)", merged["wave"])
	}
}

func TestMerge_OwnAPIDoesNotLeakAcrossContributions(t *testing.T) {
	m := New(nil, nil)
	firstOwn := plugin.API{"secret": 1}
	var seen plugin.API
	merged := m.Merge("target", plugin.API{}, []Contribution{
		{Source: "first", OwnAPI: firstOwn, Methods: map[string]plugin.AugmentFunc{
			"peek": func(own plugin.API) any {
				seen = own
				return own["secret"]
			},
		}},
	})
	if merged["peek"] != 1 {
		t.Fatal("contribution must see its own declaring plugin's API")
	}
	if seen["secret"] != 1 {
		t.Fatal("OwnAPI must be threaded through to the AugmentFunc closure")
	}
}
