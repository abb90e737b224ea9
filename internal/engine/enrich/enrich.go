// Package enrich discovers contact email addresses for businesses that
// publish a website.
package enrich

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rendis/placetap/internal/model"
)

// Result sources.
const (
	SourceWebsite = "website"
	SourceContact = "website-contact"
	SourceGuess   = "guess"
)

const (
	confidenceWebsite = 0.9
	confidenceGeneric = 0.6
	confidenceContact = 0.85
	confidenceGuess   = 0.3

	maxBodyBytes = 2 << 20
)

// genericPrefixes mark role mailboxes rather than a person.
var genericPrefixes = []string{
	"info@", "contact@", "hello@", "support@",
	"admin@", "sales@", "marketing@", "office@",
	"general@", "enquiries@", "inquiries@",
}

// Enricher finds candidate emails for a business.
type Enricher interface {
	Enrich(ctx context.Context, b model.Business) ([]model.EnrichmentResult, error)
}

// WebsiteEnricher scrapes a business homepage and its contact pages, falling
// back to common mailbox guesses when nothing is published.
type WebsiteEnricher struct {
	client       *http.Client
	logger       *log.Logger
	contactPaths []string

	mu    sync.Mutex
	cache map[string][]model.EnrichmentResult
}

func NewWebsiteEnricher(logger *log.Logger) *WebsiteEnricher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &WebsiteEnricher{
		client:       &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
		contactPaths: []string{"/contact", "/contact-us", "/about"},
		cache:        make(map[string][]model.EnrichmentResult),
	}
}

// WithHTTPClient replaces the HTTP client. Used by tests.
func (e *WebsiteEnricher) WithHTTPClient(c *http.Client) *WebsiteEnricher {
	e.client = c
	return e
}

// Enrich returns unique candidates for b. Businesses without a website yield
// nothing. Fetch failures are logged and do not fail the call.
func (e *WebsiteEnricher) Enrich(ctx context.Context, b model.Business) ([]model.EnrichmentResult, error) {
	if b.Website == "" {
		return nil, nil
	}
	key := b.Name + "_" + b.Website

	e.mu.Lock()
	cached, ok := e.cache[key]
	e.mu.Unlock()
	if ok {
		return cached, nil
	}

	results, err := e.scrape(ctx, b.Website)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		results = GuessEmails(b)
	}
	results = dedupe(results)

	e.mu.Lock()
	e.cache[key] = results
	e.mu.Unlock()
	return results, nil
}

func (e *WebsiteEnricher) scrape(ctx context.Context, site string) ([]model.EnrichmentResult, error) {
	base := strings.TrimRight(site, "/")
	if !strings.HasPrefix(base, "http") {
		base = "https://" + base
	}

	var results []model.EnrichmentResult
	body, err := e.get(ctx, base)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Printf("ENRICH_ERROR url=%s err=%v", base, err)
	}
	for _, email := range ExtractEmails(body) {
		conf := confidenceWebsite
		if IsGeneric(email) {
			conf = confidenceGeneric
		}
		results = append(results, model.EnrichmentResult{Email: email, Source: SourceWebsite, Confidence: conf})
	}

	for _, p := range e.contactPaths {
		body, err := e.get(ctx, base+p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		for _, email := range ExtractEmails(body) {
			results = append(results, model.EnrichmentResult{Email: email, Source: SourceContact, Confidence: confidenceContact})
		}
	}
	return results, nil
}

func (e *WebsiteEnricher) get(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	return string(data), nil
}

// IsGeneric reports whether email is a role mailbox such as info@.
func IsGeneric(email string) bool {
	lower := strings.ToLower(email)
	for _, p := range genericPrefixes {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// GuessEmails proposes common mailboxes on the website's domain.
func GuessEmails(b model.Business) []model.EnrichmentResult {
	domain := Domain(b.Website)
	if domain == "" {
		return nil
	}

	candidates := []string{"info@" + domain, "contact@" + domain, "hello@" + domain}
	if parts := strings.Fields(strings.ToLower(b.Name)); len(parts) > 0 {
		candidates = append(candidates, parts[0]+"@"+domain)
	}

	out := make([]model.EnrichmentResult, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, model.EnrichmentResult{Email: c, Source: SourceGuess, Confidence: confidenceGuess})
	}
	return out
}

// Domain extracts the bare host from a website value, dropping www.
func Domain(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	host := website
	if u, err := url.Parse(website); err == nil && u.Host != "" {
		host = u.Host
	} else if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}

// BestEmail picks the highest scoring candidate. Verified addresses gain
// 0.2; generic mailboxes lose 0.3.
func BestEmail(results []model.EnrichmentResult) (string, bool) {
	if len(results) == 0 {
		return "", false
	}
	sorted := append([]model.EnrichmentResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return score(sorted[i]) > score(sorted[j])
	})
	return sorted[0].Email, true
}

func score(r model.EnrichmentResult) float64 {
	s := r.Confidence
	if r.Verified {
		s += 0.2
	}
	if IsGeneric(r.Email) {
		s -= 0.3
	}
	return s
}

// Emails lists the candidate addresses in order.
func Emails(results []model.EnrichmentResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Email)
	}
	return out
}

func dedupe(results []model.EnrichmentResult) []model.EnrichmentResult {
	seen := make(map[string]bool, len(results))
	out := results[:0:0]
	for _, r := range results {
		key := strings.ToLower(r.Email)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
