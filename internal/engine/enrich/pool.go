package enrich

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/rendis/placetap/internal/model"
)

// Outcome is the enrichment of one business.
type Outcome struct {
	Business model.Business
	Results  []model.EnrichmentResult
	Best     string
	Err      error
}

// Progress counts enrichment work; safe for concurrent reads.
type Progress struct {
	Total    int
	Done     atomic.Int64
	WithMail atomic.Int64
	Errors   atomic.Int64
}

// EnrichAll runs e over businesses with at most concurrency requests in
// flight and calls onResult from the worker goroutines as each finishes.
func EnrichAll(ctx context.Context, e Enricher, businesses []model.Business, concurrency int, logger *log.Logger, onResult func(Outcome)) *Progress {
	if concurrency <= 0 {
		concurrency = 1
	}
	progress := &Progress{Total: len(businesses)}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for _, b := range businesses {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(b model.Business) {
			defer wg.Done()
			defer func() { <-sem }()
			defer progress.Done.Add(1)

			out := Outcome{Business: b}
			out.Results, out.Err = e.Enrich(ctx, b)
			if out.Err != nil {
				progress.Errors.Add(1)
				if logger != nil {
					logger.Printf("ENRICH_ERROR place=%s err=%v", b.PlaceID, out.Err)
				}
			} else if best, ok := BestEmail(out.Results); ok {
				out.Best = best
				progress.WithMail.Add(1)
			}
			if onResult != nil {
				onResult(out)
			}
		}(b)
	}

	wg.Wait()
	return progress
}
