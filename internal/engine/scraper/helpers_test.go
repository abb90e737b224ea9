package scraper

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/rendis/placetap/internal/engine/cache"
	"github.com/rendis/placetap/internal/engine/places"
)

// fakeAPI serves textsearch and details requests from a per-test responder
// and records every query it receives.
type fakeAPI struct {
	mu       sync.Mutex
	requests []url.Values
}

func (f *fakeAPI) record(q url.Values) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, q)
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeAPI) request(i int) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func newFakeAPI(t *testing.T, respond func(path string, q url.Values) string) (*fakeAPI, *places.Client) {
	t.Helper()
	f := &fakeAPI{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f.record(q)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, respond(r.URL.Path, q))
	}))
	t.Cleanup(srv.Close)
	return f, places.NewClient("test-key", "", 0).WithBaseURL(srv.URL)
}

func testSearcher(t *testing.T, client Fetcher, c *cache.Cache) *Searcher {
	t.Helper()
	s := NewSearcher(client, c, nil)
	s.SetPageTokenDelay(0)
	return s
}

func placeJSON(id, name string, lat, lng float64, types ...string) string {
	quoted := make([]string, len(types))
	for i, ty := range types {
		quoted[i] = fmt.Sprintf("%q", ty)
	}
	return fmt.Sprintf(`{"place_id":%q,"name":%q,"formatted_address":"1 Main St","geometry":{"location":{"lat":%v,"lng":%v}},"rating":4.5,"user_ratings_total":12,"types":[%s]}`,
		id, name, lat, lng, strings.Join(quoted, ","))
}

func page(status, token string, results ...string) string {
	tok := ""
	if token != "" {
		tok = fmt.Sprintf(`,"next_page_token":%q`, token)
	}
	return fmt.Sprintf(`{"status":%q,"results":[%s]%s}`, status, strings.Join(results, ","), tok)
}
