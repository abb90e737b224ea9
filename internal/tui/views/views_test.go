package views

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/rendis/placetap/internal/engine/session"
	"github.com/rendis/placetap/internal/model"
)

func TestFilterBusinesses(t *testing.T) {
	bs := []model.Business{
		{PlaceID: "1", Name: "Café Olé", Category: "Cafe"},
		{PlaceID: "2", Name: "Pizza Roma", Category: "Restaurant", Address: "Calle Mayor"},
		{PlaceID: "3", Name: "Roma Bakery", Category: "Bakery"},
	}
	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"1", "2", "3"}},
		{"cafe ole", []string{"1"}},
		{"ROMA", []string{"2", "3"}},
		{"roma mayor", []string{"2"}},
		{"sushi", nil},
	}
	for _, tt := range tests {
		got := filterBusinesses(bs, tt.query)
		var ids []string
		for _, b := range got {
			ids = append(ids, b.PlaceID)
		}
		if len(ids) != len(tt.want) {
			t.Errorf("filter %q = %v, want %v", tt.query, ids, tt.want)
			continue
		}
		for i := range ids {
			if ids[i] != tt.want[i] {
				t.Errorf("filter %q = %v, want %v", tt.query, ids, tt.want)
				break
			}
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo world", 5); got != "héll…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("x", 0); got != "" {
		t.Errorf("truncate = %q", got)
	}
}

func TestDescribeArea(t *testing.T) {
	tests := []struct {
		req  session.Request
		want string
	}{
		{session.Request{City: "Madrid"}, "Madrid"},
		{session.Request{Region: "Tuscany"}, "Tuscany"},
		{session.Request{Center: true, Lat: 1.5, Lng: 2.25, RadiusKm: 3}, "1.5000, 2.2500 (r=3.0km)"},
		{session.Request{Polygon: orb.MultiPolygon{{}, {}}}, "polygon (2 parts)"},
	}
	for _, tt := range tests {
		if got := describeArea(tt.req); got != tt.want {
			t.Errorf("describeArea(%+v) = %q, want %q", tt.req, got, tt.want)
		}
	}
}

func TestCityLabel(t *testing.T) {
	if got := cityLabel("san_francisco"); got != "San Francisco" {
		t.Errorf("cityLabel = %q", got)
	}
}
