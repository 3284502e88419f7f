package pageconv

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/gen2brain/go-fitz"

	"medbill/internal/domain"
)

// Config holds page conversion settings.
type Config struct {
	MaxPages         int
	MaxDim           int
	MinDim           int
	Zoom             float64
	DigitalTextChars int
	SamplePages      int
}

// DefaultConfig returns the stock conversion parameters.
func DefaultConfig() Config {
	return Config{
		MaxPages:         20,
		MaxDim:           1600,
		MinDim:           800,
		Zoom:             2.0,
		DigitalTextChars: 100,
		SamplePages:      3,
	}
}

// Converter turns a raw document into model-ready page descriptors.
type Converter struct {
	cfg Config
}

// New creates a Converter. A zero Config falls back to DefaultConfig.
func New(cfg Config) *Converter {
	if cfg.MaxPages == 0 {
		cfg = DefaultConfig()
	}
	if cfg.SamplePages == 0 {
		cfg.SamplePages = 3
	}
	return &Converter{cfg: cfg}
}

// Convert produces one PageDescriptor per page, each normalized to the
// bounded resolution. A failure to open the document is fatal for the whole
// call; there is no partial-PDF path.
func (c *Converter) Convert(ctx context.Context, data []byte, contentType, sourceName string) ([]domain.PageDescriptor, error) {
	if DetectFormat(data, contentType, sourceName) == domain.FormatPDF {
		return c.convertPDF(ctx, data)
	}
	return c.convertImage(data)
}

// DetectFormat sniffs the document format from the declared content type,
// the source name extension, and the PDF magic header.
func DetectFormat(data []byte, contentType, sourceName string) domain.DocumentFormat {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return domain.FormatPDF
	}
	name := strings.ToLower(sourceName)
	// Strip query fragments from presigned URLs before the extension check.
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	if strings.HasSuffix(name, ".pdf") {
		return domain.FormatPDF
	}
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return domain.FormatPDF
	}
	return domain.FormatImage
}

func (c *Converter) convertPDF(ctx context.Context, data []byte) ([]domain.PageDescriptor, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDocumentUnreadable, err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if total == 0 {
		return nil, domain.ErrEmptyDocument
	}

	count := total
	if count > c.cfg.MaxPages {
		log.Printf("pageconv: page count %d exceeds cap %d, extra pages dropped", total, c.cfg.MaxPages)
		count = c.cfg.MaxPages
	}

	digital := c.isDigital(doc, count)

	pages := make([]domain.PageDescriptor, 0, count)
	for n := 0; n < count; n++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(n, 72*c.cfg.Zoom)
		if err != nil {
			return nil, fmt.Errorf("%w: rendering page %d: %v", domain.ErrDocumentUnreadable, n+1, err)
		}

		text := ""
		if digital {
			if t, err := doc.Text(n); err == nil {
				text = strings.TrimSpace(t)
			}
		}

		pages = append(pages, domain.PageDescriptor{
			PageNumber:    n + 1,
			Image:         c.resize(img),
			ExtractedText: text,
			IsDigital:     digital && len(text) > c.cfg.DigitalTextChars,
		})
	}
	return pages, nil
}

func (c *Converter) convertImage(data []byte) ([]domain.PageDescriptor, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedFormat, err)
	}
	return []domain.PageDescriptor{{
		PageNumber: 1,
		Image:      c.resize(img),
	}}, nil
}

// isDigital samples the text layer of the first few pages; the whole
// document is flagged digital when the mean extracted length per sampled
// page clears the threshold.
func (c *Converter) isDigital(doc *fitz.Document, pageCount int) bool {
	sample := c.cfg.SamplePages
	if sample > pageCount {
		sample = pageCount
	}
	if sample == 0 {
		return false
	}
	totalLen := 0
	for n := 0; n < sample; n++ {
		t, err := doc.Text(n)
		if err != nil {
			continue
		}
		totalLen += len(strings.TrimSpace(t))
	}
	return totalLen/sample > c.cfg.DigitalTextChars
}
