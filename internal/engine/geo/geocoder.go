package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const nominatimURL = "https://nominatim.openstreetmap.org/search"

type nominatimResult struct {
	BoundingBox []string `json:"boundingbox"` // [minLat, maxLat, minLng, maxLng]
	DisplayName string   `json:"display_name"`
}

// Geocoder resolves free-text place names to bounding boxes using OSM Nominatim.
type Geocoder struct {
	BaseURL string
	Client  *http.Client
}

func NewGeocoder() *Geocoder {
	return &Geocoder{
		BaseURL: nominatimURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Bounds returns the bounding box of the best match for place.
func (g *Geocoder) Bounds(ctx context.Context, place string) (minLat, maxLat, minLng, maxLng float64, err error) {
	u := g.BaseURL + "?" + url.Values{
		"q":      {place},
		"format": {"json"},
		"limit":  {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "placetap/0.1 (business area search)")

	resp, err := g.Client.Do(req)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, 0, 0, fmt.Errorf("geocoding returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, 0, 0, fmt.Errorf("place %q not found", place)
	}

	bb := results[0].BoundingBox
	if len(bb) < 4 {
		return 0, 0, 0, 0, fmt.Errorf("invalid bounding box from geocoder")
	}

	var vals [4]float64
	for i := range vals {
		vals[i], err = strconv.ParseFloat(bb[i], 64)
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("parsing bounding box %q: %w", bb[i], err)
		}
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}
