package places

import (
	"encoding/json"
	"errors"
	"fmt"
)

// API status values.
const (
	StatusOK             = "OK"
	StatusZeroResults    = "ZERO_RESULTS"
	StatusInvalidRequest = "INVALID_REQUEST"
	StatusOverQueryLimit = "OVER_QUERY_LIMIT"
	StatusRequestDenied  = "REQUEST_DENIED"
)

var (
	ErrMissingLocation = errors.New("place has no geometry.location")
	ErrNotObject       = errors.New("place is not a JSON object")
)

// TextSearchResponse is a textsearch page. Results are kept raw so one
// malformed record cannot fail the decode of its siblings.
type TextSearchResponse struct {
	Status        string            `json:"status"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	Results       []json.RawMessage `json:"results"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

// OK reports whether the API accepted the request.
func (r *TextSearchResponse) OK() bool {
	return r.Status == StatusOK
}

// Place is one textsearch result. Optional fields are pointers.
type Place struct {
	PlaceID          string    `json:"place_id"`
	Name             string    `json:"name"`
	FormattedAddress string    `json:"formatted_address"`
	Geometry         *Geometry `json:"geometry"`
	Rating           *float64  `json:"rating,omitempty"`
	UserRatingsTotal *int      `json:"user_ratings_total,omitempty"`
	Types            []string  `json:"types"`
}

type Geometry struct {
	Location *LatLng `json:"location"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DetailsResponse is a Place Details reply restricted to contact fields.
type DetailsResponse struct {
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Result       ContactDetails `json:"result"`
}

type ContactDetails struct {
	FormattedPhoneNumber string `json:"formatted_phone_number"`
	Website              string `json:"website"`
}

// DecodeTextSearch parses a textsearch page body.
func DecodeTextSearch(body []byte) (*TextSearchResponse, error) {
	var resp TextSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding textsearch response: %w", err)
	}
	if resp.Status == "" {
		return nil, fmt.Errorf("decoding textsearch response: missing status")
	}
	return &resp, nil
}

// DecodeDetails parses a details body.
func DecodeDetails(body []byte) (*DetailsResponse, error) {
	var resp DetailsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding details response: %w", err)
	}
	return &resp, nil
}

// DecodePlace parses and validates one raw result. Location is the only
// required field; the rest are defaulted by the caller.
func DecodePlace(raw json.RawMessage) (Place, error) {
	var p Place
	if len(raw) == 0 || raw[0] != '{' {
		return p, ErrNotObject
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decoding place: %w", err)
	}
	if p.Geometry == nil || p.Geometry.Location == nil {
		return p, ErrMissingLocation
	}
	return p, nil
}
