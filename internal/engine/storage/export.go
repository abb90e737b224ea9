package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rendis/placetap/internal/model"
)

// Format is an export file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat accepts csv, json and geojson, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON, FormatGeoJSON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format: %s (csv, json, geojson)", s)
}

// Ext is the file extension for f, without the dot.
func (f Format) Ext() string {
	return string(f)
}

// Export writes businesses to w in format f.
func Export(w io.Writer, f Format, businesses []model.Business) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, businesses)
	case FormatJSON:
		return WriteJSON(w, businesses)
	case FormatGeoJSON:
		return WriteGeoJSON(w, businesses)
	}
	return fmt.Errorf("unsupported format: %s", f)
}

var csvHeader = []string{
	"place_id", "name", "address", "phone", "website", "email", "emails",
	"rating", "review_count", "category", "latitude", "longitude", "query", "scraped_at",
}

func WriteCSV(w io.Writer, businesses []model.Business) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, b := range businesses {
		if err := cw.Write(csvRow(b)); err != nil {
			return fmt.Errorf("writing csv row %s: %w", b.PlaceID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(b model.Business) []string {
	scraped := ""
	if !b.ScrapedAt.IsZero() {
		scraped = b.ScrapedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		b.PlaceID,
		b.Name,
		b.Address,
		b.Phone,
		b.Website,
		b.Email,
		strings.Join(b.Emails, ";"),
		fmt.Sprintf("%.1f", b.Rating),
		strconv.Itoa(b.ReviewCount),
		b.Category,
		fmt.Sprintf("%.6f", b.Lat),
		fmt.Sprintf("%.6f", b.Lng),
		b.Query,
		scraped,
	}
}

func WriteJSON(w io.Writer, businesses []model.Business) error {
	if businesses == nil {
		businesses = []model.Business{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(businesses); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

// WriteGeoJSON writes a FeatureCollection of points with the business
// fields as properties.
func WriteGeoJSON(w io.Writer, businesses []model.Business) error {
	fc := geojson.NewFeatureCollection()
	for _, b := range businesses {
		f := geojson.NewFeature(orb.Point{b.Lng, b.Lat})
		f.ID = b.PlaceID
		f.Properties["name"] = b.Name
		f.Properties["address"] = b.Address
		f.Properties["category"] = b.Category
		f.Properties["rating"] = b.Rating
		f.Properties["review_count"] = b.ReviewCount
		if b.Phone != "" {
			f.Properties["phone"] = b.Phone
		}
		if b.Website != "" {
			f.Properties["website"] = b.Website
		}
		if b.Email != "" {
			f.Properties["email"] = b.Email
		}
		f.Properties["query"] = b.Query
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding geojson: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing geojson: %w", err)
	}
	return nil
}
