package aggregate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"medbill/internal/domain"
)

// Config tunes the summary-page heuristic. The keyword list and thresholds
// are content heuristics observed on Indian hospital bills, not a contract;
// adjust per deployment.
type Config struct {
	GenericNameMaxLen int
	SummaryRatio      float64
	GenericKeywords   []string
}

// DefaultConfig returns the stock heuristic parameters.
func DefaultConfig() Config {
	return Config{
		GenericNameMaxLen: 15,
		SummaryRatio:      0.5,
		GenericKeywords: []string{
			"consultation", "drugs", "medicines", "pharmacy",
			"room rent", "room", "nursing", "investigation",
			"lab", "procedure", "surgery", "services", "misc",
		},
	}
}

// Aggregator merges per-page results into the whole-document response.
type Aggregator struct {
	cfg Config
}

// New creates an Aggregator. A zero Config falls back to DefaultConfig.
func New(cfg Config) *Aggregator {
	if cfg.GenericNameMaxLen == 0 {
		cfg = DefaultConfig()
	}
	return &Aggregator{cfg: cfg}
}

// Build merges page results, in ascending page order, into the final
// ExtractionData. Pages with zero retained items are dropped; the
// total item count is always recomputed.
func (a *Aggregator) Build(pages []domain.PageLineItems) *domain.ExtractionData {
	sort.SliceStable(pages, func(i, j int) bool {
		return pageNo(pages[i]) < pageNo(pages[j])
	})

	kept := make([]domain.PageLineItems, 0, len(pages))
	for _, p := range pages {
		if len(p.BillItems) > 0 {
			kept = append(kept, p)
		}
	}

	if len(kept) > 1 {
		kept = a.dedupeSummaryPages(kept)
	}

	data := &domain.ExtractionData{PagewiseLineItems: kept}
	data.TotalItemCount = data.ItemCount()
	return data
}

// dedupeSummaryPages handles documents where a summary page repeats, as
// coarse category totals, charges already itemized on detail pages. When
// both kinds are present, detail pages win: summary pages lose any item
// that duplicates a detail-page charge and are relabeled Final Bill.
func (a *Aggregator) dedupeSummaryPages(pages []domain.PageLineItems) []domain.PageLineItems {
	summary := make([]bool, len(pages))
	haveSummary, haveDetail := false, false
	for i, p := range pages {
		summary[i] = a.isSummaryLike(p)
		if summary[i] {
			haveSummary = true
		} else {
			haveDetail = true
		}
	}
	if !haveSummary || !haveDetail {
		return pages
	}

	detailKeys := make(map[string]bool)
	for i, p := range pages {
		if summary[i] {
			continue
		}
		for _, item := range p.BillItems {
			detailKeys[itemKey(item)] = true
		}
	}

	out := make([]domain.PageLineItems, 0, len(pages))
	for i, p := range pages {
		if !summary[i] {
			out = append(out, p)
			continue
		}
		retained := make([]domain.BillItem, 0, len(p.BillItems))
		for _, item := range p.BillItems {
			if !detailKeys[itemKey(item)] {
				retained = append(retained, item)
			}
		}
		if len(retained) == 0 {
			continue
		}
		p.BillItems = retained
		p.PageType = domain.PageTypeFinalBill
		out = append(out, p)
	}
	return out
}

// isSummaryLike reports whether more than the configured ratio of a page's
// items have short generic category names.
func (a *Aggregator) isSummaryLike(p domain.PageLineItems) bool {
	if len(p.BillItems) == 0 {
		return false
	}
	generic := 0
	for _, item := range p.BillItems {
		name := strings.ToLower(item.ItemName)
		if len(name) >= a.cfg.GenericNameMaxLen {
			continue
		}
		for _, kw := range a.cfg.GenericKeywords {
			if strings.Contains(name, kw) {
				generic++
				break
			}
		}
	}
	return float64(generic) > float64(len(p.BillItems))*a.cfg.SummaryRatio
}

func itemKey(item domain.BillItem) string {
	return fmt.Sprintf("%s|%.2f", strings.ToLower(strings.TrimSpace(item.ItemName)), item.ItemAmount)
}

func pageNo(p domain.PageLineItems) int {
	n, err := strconv.Atoi(p.PageNo)
	if err != nil {
		return 0
	}
	return n
}
