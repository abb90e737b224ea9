package scraper

import (
	"context"
	"fmt"

	"github.com/rendis/placetap/internal/engine/cache"
	"github.com/rendis/placetap/internal/engine/places"
	"github.com/rendis/placetap/internal/model"
)

// FetchDetails fills Phone and Website from Place Details. Only the contact
// fields are requested; responses are cached like first textsearch pages.
func (s *Searcher) FetchDetails(ctx context.Context, b *model.Business) error {
	endpoint := s.client.DetailsURL()
	params := cache.Params{
		"place_id": b.PlaceID,
		"fields":   places.DetailsFields,
		"key":      s.client.APIKey(),
	}

	var body []byte
	if s.cache != nil {
		if cached, ok := s.cache.Get(endpoint, params); ok {
			body = cached
			s.usage.RecordCacheHit(PlaceDetails)
		}
	}

	fromNetwork := body == nil
	if fromNetwork {
		var err error
		body, err = s.client.Fetch(ctx, endpoint, params)
		if err != nil {
			return fmt.Errorf("fetching details for %s: %w", b.PlaceID, err)
		}
		s.usage.RecordCall(PlaceDetails)
	}

	resp, err := places.DecodeDetails(body)
	if err != nil {
		return err
	}
	if resp.Status != places.StatusOK {
		return &places.StatusError{Status: resp.Status, Message: resp.ErrorMessage}
	}
	if fromNetwork && s.cache != nil {
		s.cache.Put(endpoint, params, body)
	}

	if resp.Result.FormattedPhoneNumber != "" {
		b.Phone = resp.Result.FormattedPhoneNumber
	}
	if resp.Result.Website != "" {
		b.Website = resp.Result.Website
	}
	return nil
}
