package scraper

import (
	"strings"
	"testing"
)

func TestQueryVariations(t *testing.T) {
	got := QueryVariations("  coffee shop ")
	if len(got) < 2 {
		t.Fatalf("expected variations, got %v", got)
	}
	if got[0] != "coffee shop" {
		t.Errorf("first variation should be the trimmed query, got %q", got[0])
	}

	seen := map[string]bool{}
	for _, v := range got {
		key := strings.ToLower(v)
		if seen[key] {
			t.Errorf("duplicate variation %q", v)
		}
		seen[key] = true
	}
	for _, want := range []string{"coffee shop business", "coffee shops", "coffees shop"} {
		if !seen[want] {
			t.Errorf("missing variation %q in %v", want, got)
		}
	}
}

func TestQueryVariationsEmpty(t *testing.T) {
	if got := QueryVariations("   "); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestQueryVariationsPluralsKeepRunes(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"Ⱥrt cafes", []string{"Ⱥrts cafes", "Ⱥrt cafe"}},
		{"İstanbul cafes", []string{"İstanbuls cafes", "İstanbul cafe"}},
		{"Straße Bars", []string{"Straßes Bars", "Straße Bar"}},
		{"DENTISTS", []string{"DENTIST"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := QueryVariations(tt.query)
			if got[0] != tt.query {
				t.Errorf("first = %q, want %q", got[0], tt.query)
			}
			seen := map[string]bool{}
			for _, v := range got {
				seen[v] = true
			}
			for _, w := range tt.want {
				if !seen[w] {
					t.Errorf("missing %q in %v", w, got)
				}
			}
		})
	}
}
