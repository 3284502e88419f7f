package domain

import (
	"encoding/json"
	"image"
	"time"

	"github.com/google/uuid"
)

// PageDescriptor is one document page prepared for the vision model.
// Immutable after conversion; consumed exactly once by the extractor.
type PageDescriptor struct {
	PageNumber    int         // 1-indexed
	Image         image.Image // longest side capped during conversion
	ExtractedText string      // text layer for digital PDFs, empty for scans
	IsDigital     bool
}

// BillItem is one billable entry recovered from a page.
type BillItem struct {
	ItemName     string   `json:"item_name"`
	ItemAmount   float64  `json:"item_amount"`
	ItemRate     *float64 `json:"item_rate,omitempty"`
	ItemQuantity *float64 `json:"item_quantity,omitempty"`
}

// PageLineItems holds the retained items for one page.
type PageLineItems struct {
	PageNo    string     `json:"page_no"`
	PageType  PageType   `json:"page_type"`
	BillItems []BillItem `json:"bill_items"`
}

// TokenUsage accumulates model token counters across one extraction.
type TokenUsage struct {
	TotalTokens  int `json:"total_tokens"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add returns the element-wise sum of two usages.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		TotalTokens:  u.TotalTokens + o.TotalTokens,
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
	}
}

// ExtractionData is the whole-document result.
type ExtractionData struct {
	PagewiseLineItems []PageLineItems `json:"pagewise_line_items"`
	TotalItemCount    int             `json:"total_item_count"`
}

// ItemCount recomputes the total across pages. The stored TotalItemCount
// is never taken from upstream data.
func (d *ExtractionData) ItemCount() int {
	n := 0
	for i := range d.PagewiseLineItems {
		n += len(d.PagewiseLineItems[i].BillItems)
	}
	return n
}

// ExtractionRecord is one persisted extraction run.
type ExtractionRecord struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	SourceURL   string          `db:"source_url" json:"source_url"`
	IsSuccess   bool            `db:"is_success" json:"is_success"`
	PageCount   int             `db:"page_count" json:"page_count"`
	ItemCount   int             `db:"item_count" json:"item_count"`
	InputTokens int             `db:"input_tokens" json:"input_tokens"`
	OutputTok   int             `db:"output_tokens" json:"output_tokens"`
	TotalTokens int             `db:"total_tokens" json:"total_tokens"`
	Result      json.RawMessage `db:"result" json:"result,omitempty"`
	Error       string          `db:"error" json:"error,omitempty"`
	DurationMS  int64           `db:"duration_ms" json:"duration_ms"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
