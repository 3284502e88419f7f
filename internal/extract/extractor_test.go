package extract_test

import (
	"context"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbill/internal/aggregate"
	"medbill/internal/domain"
	"medbill/internal/extract"
	"medbill/internal/port"
	"medbill/internal/validate"
)

// fakeClock advances only when something sleeps on it, or when the fake
// model charges time for a call.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.advance(d)
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeModel answers each Generate call through the respond function, which
// receives the 1-based call number.
type fakeModel struct {
	mu       sync.Mutex
	calls    []port.VisionRequest
	respond  func(call int, req port.VisionRequest) (*port.VisionResult, error)
	callCost time.Duration
	clock    *fakeClock
}

func (m *fakeModel) Generate(_ context.Context, req port.VisionRequest) (*port.VisionResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	n := len(m.calls)
	m.mu.Unlock()
	if m.callCost > 0 {
		m.clock.advance(m.callCost)
	}
	return m.respond(n, req)
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func testConfig() extract.Config {
	cfg := extract.DefaultConfig()
	cfg.Stagger = 0
	return cfg
}

func newTestExtractor(model port.VisionModel, clock extract.Clock, cfg extract.Config) *extract.Extractor {
	return extract.NewWithClock(model, validate.NewValidator(), aggregate.New(aggregate.DefaultConfig()), cfg, clock)
}

func testPages(n int) []domain.PageDescriptor {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	pages := make([]domain.PageDescriptor, n)
	for i := range pages {
		pages[i] = domain.PageDescriptor{PageNumber: i + 1, Image: img}
	}
	return pages
}

func successResult(text string, usage *domain.TokenUsage) *port.VisionResult {
	return &port.VisionResult{Status: port.VisionSuccess, Text: text, Usage: usage}
}

const pageJSON = `{"page_type": "Pharmacy", "bill_items": [{"item_name": "Paracetamol 500mg", "item_amount": 45.5}]}`

func TestExtract_SinglePageSuccess(t *testing.T) {
	clock := newFakeClock()
	model := &fakeModel{clock: clock, respond: func(int, port.VisionRequest) (*port.VisionResult, error) {
		return successResult(pageJSON, &domain.TokenUsage{TotalTokens: 150, InputTokens: 100, OutputTokens: 50}), nil
	}}
	ex := newTestExtractor(model, clock, testConfig())

	data, usage := ex.Extract(context.Background(), testPages(1))

	require.Len(t, data.PagewiseLineItems, 1)
	page := data.PagewiseLineItems[0]
	assert.Equal(t, "1", page.PageNo)
	assert.Equal(t, domain.PageTypePharmacy, page.PageType)
	require.Len(t, page.BillItems, 1)
	assert.Equal(t, "Paracetamol 500mg", page.BillItems[0].ItemName)
	assert.Equal(t, 1, data.TotalItemCount)

	assert.Equal(t, 150, usage.TotalTokens)
	assert.Equal(t, 100, usage.InputTokens)
	assert.Equal(t, 50, usage.OutputTokens)
	assert.Equal(t, 1, model.callCount())
}

func TestExtract_TokenEstimateWhenUsageMissing(t *testing.T) {
	clock := newFakeClock()
	model := &fakeModel{clock: clock, respond: func(int, port.VisionRequest) (*port.VisionResult, error) {
		return successResult(pageJSON, nil), nil
	}}
	cfg := testConfig()
	cfg.EstimateInput = 1000
	cfg.EstimateOutput = 500
	ex := newTestExtractor(model, clock, cfg)

	_, usage := ex.Extract(context.Background(), testPages(1))

	assert.Equal(t, 1000, usage.InputTokens)
	assert.Equal(t, 500, usage.OutputTokens)
	assert.Equal(t, 1500, usage.TotalTokens)
}

func TestExtract_RetriesEmptyThenSucceeds(t *testing.T) {
	clock := newFakeClock()
	model := &fakeModel{clock: clock, respond: func(call int, req port.VisionRequest) (*port.VisionResult, error) {
		if call == 1 {
			return &port.VisionResult{Status: port.VisionEmpty, Reason: "no candidates"}, nil
		}
		return successResult(pageJSON, &domain.TokenUsage{TotalTokens: 100, InputTokens: 60, OutputTokens: 40}), nil
	}}
	ex := newTestExtractor(model, clock, testConfig())

	data, usage := ex.Extract(context.Background(), testPages(1))

	assert.Equal(t, 1, data.TotalItemCount)
	assert.Equal(t, 2, model.callCount())

	// Both attempts count toward usage: one estimated, one reported.
	assert.Equal(t, 1600, usage.TotalTokens)

	// Retry escalates to the simplified prompt with relaxed sampling.
	assert.NotEqual(t, model.calls[0].Prompt, model.calls[1].Prompt)
	assert.Contains(t, model.calls[1].Prompt, "re-examine")
	assert.Equal(t, 0.0, model.calls[0].Decoding.Temperature)
	assert.Equal(t, 0.1, model.calls[1].Decoding.Temperature)
}

func TestExtract_AllAttemptsEmptyYieldsEmptyResult(t *testing.T) {
	clock := newFakeClock()
	model := &fakeModel{clock: clock, respond: func(int, port.VisionRequest) (*port.VisionResult, error) {
		return &port.VisionResult{Status: port.VisionBlocked, Reason: "SAFETY"}, nil
	}}
	ex := newTestExtractor(model, clock, testConfig())

	data, _ := ex.Extract(context.Background(), testPages(1))

	assert.Equal(t, 3, model.callCount())
	assert.Empty(t, data.PagewiseLineItems)
	assert.Zero(t, data.TotalItemCount)
}

func TestExtract_TransportErrorRetried(t *testing.T) {
	clock := newFakeClock()
	model := &fakeModel{clock: clock, respond: func(call int, req port.VisionRequest) (*port.VisionResult, error) {
		if call < 3 {
			return nil, context.DeadlineExceeded
		}
		return successResult(pageJSON, nil), nil
	}}
	ex := newTestExtractor(model, clock, testConfig())

	data, _ := ex.Extract(context.Background(), testPages(1))

	assert.Equal(t, 3, model.callCount())
	assert.Equal(t, 1, data.TotalItemCount)
}

func TestExtract_TextLayerEnablesEnhancedPrompt(t *testing.T) {
	clock := newFakeClock()
	model := &fakeModel{clock: clock, respond: func(int, port.VisionRequest) (*port.VisionResult, error) {
		return successResult(pageJSON, nil), nil
	}}
	ex := newTestExtractor(model, clock, testConfig())

	pages := testPages(1)
	pages[0].ExtractedText = strings.Repeat("PARACETAMOL 500MG TAB 10 4.55 45.50\n", 10)
	pages[0].IsDigital = true

	ex.Extract(context.Background(), pages)

	require.Equal(t, 1, model.callCount())
	assert.Contains(t, model.calls[0].Prompt, "PARACETAMOL 500MG TAB")
}

func TestExtract_ScannedPageIgnoresTextLayer(t *testing.T) {
	clock := newFakeClock()
	model := &fakeModel{clock: clock, respond: func(int, port.VisionRequest) (*port.VisionResult, error) {
		return successResult(pageJSON, nil), nil
	}}
	ex := newTestExtractor(model, clock, testConfig())

	// Long text layer but not flagged digital: OCR noise from a scan must
	// not leak into the prompt.
	pages := testPages(1)
	pages[0].ExtractedText = strings.Repeat("PARACETAMOL 500MG TAB 10 4.55 45.50\n", 10)

	ex.Extract(context.Background(), pages)

	require.Equal(t, 1, model.callCount())
	assert.NotContains(t, model.calls[0].Prompt, "PARACETAMOL 500MG TAB")
}

func TestExtract_BudgetStopsSubmission(t *testing.T) {
	clock := newFakeClock()
	// Every call burns 55s of fake time against a 120s budget with a 15s
	// margin: pages 1 and 2 run, page 3 must never be submitted.
	model := &fakeModel{clock: clock, callCost: 55 * time.Second, respond: func(int, port.VisionRequest) (*port.VisionResult, error) {
		return successResult(pageJSON, nil), nil
	}}
	ex := newTestExtractor(model, clock, testConfig())

	data, _ := ex.Extract(context.Background(), testPages(3))

	assert.Equal(t, 2, model.callCount())
	assert.Len(t, data.PagewiseLineItems, 2)
	assert.Equal(t, 2, data.TotalItemCount)
}

func TestExtract_PoolBudgetStopsSubmission(t *testing.T) {
	clock := newFakeClock()
	// 5 pages takes the worker-pool path. A single worker serializes the
	// pool, so each submission waits for the previous page's 55s call; the
	// re-check after acquiring a worker slot must stop page 3 at 110s of
	// elapsed fake time (margin crossed at 105s).
	model := &fakeModel{clock: clock, callCost: 55 * time.Second, respond: func(int, port.VisionRequest) (*port.VisionResult, error) {
		return successResult(pageJSON, nil), nil
	}}
	cfg := testConfig()
	cfg.Workers = 1
	ex := newTestExtractor(model, clock, cfg)

	data, _ := ex.Extract(context.Background(), testPages(5))

	assert.Equal(t, 2, model.callCount())
	assert.Len(t, data.PagewiseLineItems, 2)
	assert.Equal(t, 2, data.TotalItemCount)
}

func TestExtract_BudgetStopsRetries(t *testing.T) {
	clock := newFakeClock()
	model := &fakeModel{clock: clock, callCost: 110 * time.Second, respond: func(int, port.VisionRequest) (*port.VisionResult, error) {
		return &port.VisionResult{Status: port.VisionEmpty}, nil
	}}
	ex := newTestExtractor(model, clock, testConfig())

	data, _ := ex.Extract(context.Background(), testPages(1))

	// The first attempt exhausts the budget, so no retry happens.
	assert.Equal(t, 1, model.callCount())
	assert.Zero(t, data.TotalItemCount)
}

func TestExtract_PoolResultsOrderedByPage(t *testing.T) {
	clock := newFakeClock()
	model := &fakeModel{clock: clock, respond: func(int, port.VisionRequest) (*port.VisionResult, error) {
		return successResult(pageJSON, nil), nil
	}}
	cfg := testConfig()
	cfg.Workers = 3
	cfg.SequentialBelow = 4
	ex := newTestExtractor(model, clock, cfg)

	// 6 pages takes the worker-pool path.
	data, _ := ex.Extract(context.Background(), testPages(6))

	require.Len(t, data.PagewiseLineItems, 6)
	for i, page := range data.PagewiseLineItems {
		assert.Equal(t, i+1, mustAtoi(t, page.PageNo))
	}
	assert.Equal(t, 6, data.TotalItemCount)
}

func TestExtract_InvalidItemsDropped(t *testing.T) {
	clock := newFakeClock()
	text := `{"page_type": "Final Bill", "bill_items": [
		{"item_name": "Grand Total", "item_amount": 5000},
		{"item_name": "Nursing Charges", "item_amount": 1200}
	]}`
	model := &fakeModel{clock: clock, respond: func(int, port.VisionRequest) (*port.VisionResult, error) {
		return successResult(text, nil), nil
	}}
	ex := newTestExtractor(model, clock, testConfig())

	data, _ := ex.Extract(context.Background(), testPages(1))

	require.Equal(t, 1, data.TotalItemCount)
	assert.Equal(t, "Nursing Charges", data.PagewiseLineItems[0].BillItems[0].ItemName)
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, r := range s {
		require.True(t, r >= '0' && r <= '9', "non-numeric page no %q", s)
		n = n*10 + int(r-'0')
	}
	return n
}
