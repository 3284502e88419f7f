package extract

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"medbill/internal/aggregate"
	"medbill/internal/domain"
	"medbill/internal/parse"
	"medbill/internal/port"
	"medbill/internal/validate"
)

// Config holds orchestration settings for one extractor instance.
type Config struct {
	Budget          time.Duration
	SafetyMargin    time.Duration
	PageTimeout     time.Duration
	Workers         int
	Stagger         time.Duration
	SequentialBelow int
	MaxAttempts     int
	MaxOutputTokens int
	EstimateInput   int
	EstimateOutput  int
}

// DefaultConfig returns the stock orchestration parameters.
func DefaultConfig() Config {
	return Config{
		Budget:          120 * time.Second,
		SafetyMargin:    15 * time.Second,
		PageTimeout:     28 * time.Second,
		Workers:         3,
		Stagger:         250 * time.Millisecond,
		SequentialBelow: 4,
		MaxAttempts:     3,
		MaxOutputTokens: 4096,
		EstimateInput:   1000,
		EstimateOutput:  500,
	}
}

// Extractor drives page extraction against the vision model under a global
// wall-clock budget with bounded parallelism.
type Extractor struct {
	model     port.VisionModel
	validator *validate.Validator
	agg       *aggregate.Aggregator
	cfg       Config
	clock     Clock
}

// New creates an Extractor with the real clock.
func New(model port.VisionModel, validator *validate.Validator, agg *aggregate.Aggregator, cfg Config) *Extractor {
	return NewWithClock(model, validator, agg, cfg, realClock{})
}

// NewWithClock creates an Extractor with an injected clock (for tests).
func NewWithClock(model port.VisionModel, validator *validate.Validator, agg *aggregate.Aggregator, cfg Config, clock Clock) *Extractor {
	if cfg.Workers <= 0 {
		cfg = DefaultConfig()
	}
	return &Extractor{model: model, validator: validator, agg: agg, cfg: cfg, clock: clock}
}

// Extract runs every page through the model and returns the aggregated
// result. It never fails: pages that time out, error, or parse to nothing
// contribute zero items. Token counters are owned by this call and start
// at zero.
func (e *Extractor) Extract(ctx context.Context, pages []domain.PageDescriptor) (*domain.ExtractionData, domain.TokenUsage) {
	counter := &tokenCounter{}
	start := e.clock.Now()

	var results []domain.PageLineItems
	if len(pages) < e.cfg.SequentialBelow {
		results = e.runSequential(ctx, pages, start, counter)
	} else {
		results = e.runPool(ctx, pages, start, counter)
	}

	data := e.agg.Build(results)
	return data, counter.snapshot()
}

// budgetExceeded reports whether new work may no longer be submitted.
// In-flight pages are allowed to finish or time out on their own.
func (e *Extractor) budgetExceeded(start time.Time) bool {
	return e.clock.Now().Sub(start) > e.cfg.Budget-e.cfg.SafetyMargin
}

// runSequential avoids pool overhead for small documents.
func (e *Extractor) runSequential(ctx context.Context, pages []domain.PageDescriptor, start time.Time, counter *tokenCounter) []domain.PageLineItems {
	results := make([]domain.PageLineItems, 0, len(pages))
	for i := range pages {
		if e.budgetExceeded(start) {
			log.Printf("extractor: budget exhausted, skipping pages %d..%d", pages[i].PageNumber, pages[len(pages)-1].PageNumber)
			break
		}
		results = append(results, e.extractPage(ctx, pages[i], start, counter))
	}
	return results
}

// runPool submits pages to a bounded worker pool, staggering submissions
// to avoid request-rate bursts against the external service.
func (e *Extractor) runPool(ctx context.Context, pages []domain.PageDescriptor, start time.Time, counter *tokenCounter) []domain.PageLineItems {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make([]domain.PageLineItems, 0, len(pages))
	)
	sem := make(chan struct{}, e.cfg.Workers)

	for i := range pages {
		if i > 0 {
			e.clock.Sleep(ctx, e.cfg.Stagger)
		}
		sem <- struct{}{} // acquire

		// Re-check after a possibly long wait for a worker slot.
		if e.budgetExceeded(start) {
			<-sem
			log.Printf("extractor: budget exhausted, skipping pages %d..%d", pages[i].PageNumber, pages[len(pages)-1].PageNumber)
			break
		}

		wg.Add(1)
		go func(pg domain.PageDescriptor) {
			defer wg.Done()
			defer func() { <-sem }() // release

			res := e.extractPage(ctx, pg, start, counter)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(pages[i])
	}

	wg.Wait()
	return results
}

// extractPage runs the per-page attempt state machine: up to MaxAttempts
// calls with prompt escalation and backoff. The last attempt's result is
// accepted even when empty — an empty page is a legitimate terminal
// outcome, never an error to propagate.
func (e *Extractor) extractPage(ctx context.Context, page domain.PageDescriptor, start time.Time, counter *tokenCounter) domain.PageLineItems {
	last := domain.PageLineItems{
		PageNo:   strconv.Itoa(page.PageNumber),
		PageType: domain.PageTypeBillDetail,
	}

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		outcome, result := e.attempt(ctx, page, attempt, counter)
		if result != nil {
			last = *result
		}
		if outcome == outcomeSuccess {
			return last
		}
		if attempt == e.cfg.MaxAttempts || ctx.Err() != nil {
			break
		}
		if e.budgetExceeded(start) {
			log.Printf("extractor: [page %d] budget exhausted, giving up after attempt %d", page.PageNumber, attempt)
			break
		}
		e.clock.Sleep(ctx, backoffFor(outcome, attempt))
	}
	return last
}

// attempt issues one model call under the per-page timeout and classifies
// the outcome. Blocked and candidate-less responses count as empty, never
// as hard failures.
func (e *Extractor) attempt(ctx context.Context, page domain.PageDescriptor, attempt int, counter *tokenCounter) (attemptOutcome, *domain.PageLineItems) {
	pageCtx, cancel := context.WithTimeout(ctx, e.cfg.PageTimeout)
	defer cancel()

	res, err := e.model.Generate(pageCtx, port.VisionRequest{
		Prompt:   selectPrompt(page, attempt),
		Image:    page.Image,
		Decoding: decodingFor(attempt, e.cfg.MaxOutputTokens),
	})

	if err == nil && res.Usage != nil {
		counter.add(*res.Usage)
	} else {
		counter.addEstimate(e.cfg.EstimateInput, e.cfg.EstimateOutput)
	}

	if err != nil {
		log.Printf("extractor: [page %d] attempt %d error: %v", page.PageNumber, attempt, err)
		return outcomeError, nil
	}

	switch res.Status {
	case port.VisionBlocked:
		log.Printf("extractor: [page %d] attempt %d blocked: %s", page.PageNumber, attempt, res.Reason)
		return outcomeEmpty, nil
	case port.VisionEmpty:
		log.Printf("extractor: [page %d] attempt %d empty: %s", page.PageNumber, attempt, res.Reason)
		return outcomeEmpty, nil
	case port.VisionError:
		log.Printf("extractor: [page %d] attempt %d model error: %s", page.PageNumber, attempt, res.Reason)
		return outcomeError, nil
	}

	raw := parse.Parse(res.Text, page.PageNumber)
	if raw == nil {
		return outcomeEmpty, nil
	}

	result := e.validatePage(raw, page.PageNumber)
	if len(result.BillItems) == 0 {
		// Structurally valid but nothing retained; keep it as the
		// best-so-far result and retry.
		return outcomeEmpty, &result
	}
	return outcomeSuccess, &result
}

// validatePage cleans every recovered item, dropping invalid ones with a
// logged warning.
func (e *Extractor) validatePage(raw *parse.RawPage, pageNum int) domain.PageLineItems {
	out := domain.PageLineItems{
		PageNo:   strconv.Itoa(pageNum),
		PageType: validate.NormalizePageType(raw.PageType),
	}
	for _, ri := range raw.BillItems {
		item, warnings := e.validator.Item(ri)
		for _, w := range warnings {
			log.Printf("extractor: [page %d] %s", pageNum, w)
		}
		if item != nil {
			out.BillItems = append(out.BillItems, *item)
		}
	}
	return out
}
