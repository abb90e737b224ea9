package places

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rendis/placetap/internal/engine/cache"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"

	textSearchPath = "/textsearch/json"
	detailsPath    = "/details/json"

	// DetailsFields are the cheapest fields that carry contact data.
	DetailsFields = "formatted_phone_number,website"
)

// Client issues rate-limited GET requests against the Places web service.
type Client struct {
	http    *http.Client
	apiKey  string
	baseURL string
	limiter *Limiter
}

// NewClient builds a client. proxyURL may be empty.
func NewClient(apiKey, proxyURL string, minDelay time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if proxyURL != "" {
		if proxyParsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyParsed)
		}
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		},
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		limiter: NewLimiter(minDelay),
	}
}

// WithBaseURL points the client at another host. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

func (c *Client) APIKey() string {
	return c.apiKey
}

// TextSearchURL is the textsearch endpoint.
func (c *Client) TextSearchURL() string {
	return c.baseURL + textSearchPath
}

// DetailsURL is the place details endpoint.
func (c *Client) DetailsURL() string {
	return c.baseURL + detailsPath
}

// Fetch waits for a rate-limit permit, then GETs endpoint with params and
// returns the raw body.
func (c *Client) Fetch(ctx context.Context, endpoint string, params cache.Params) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}
