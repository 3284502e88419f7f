package validate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"medbill/internal/domain"
)

// skipKeywords marks names that are structural rows (totals, taxes, page
// furniture) rather than billable items. Matching is substring, lowercase.
var skipKeywords = []string{
	"total", "subtotal", "sub-total", "grand total",
	"net amount", "net payable", "amount payable",
	"discount", "tax", "gst", "cgst", "sgst", "igst",
	"advance", "deposit", "adjustment", "balance",
	"page", "continued", "header", "footer",
}

var (
	leadingNumberingRe = regexp.MustCompile(`^[\d.\-)\]\s]+`)
	firstNumericRe     = regexp.MustCompile(`[\d.]+`)
	quantityNoiseRe    = regexp.MustCompile(`(?i)\s*(No|Nos|Units?|Pcs?|Qty)\.?\s*`)
	currencyReplacer   = strings.NewReplacer(",", "", "₹", "", "Rs.", "", "Rs", "")
)

const minNameLength = 3

// Validator cleans and type-coerces raw extracted items. The rate×quantity
// cross-check tolerance is tunable; violations are warnings, never
// rejections, because medical bills routinely carry undocumented discounts.
type Validator struct {
	ToleranceAbs float64
	TolerancePct float64
}

// NewValidator returns a Validator with the default tolerance
// (max of 1.0 absolute or 5% of the amount).
func NewValidator() *Validator {
	return &Validator{ToleranceAbs: 1.0, TolerancePct: 0.05}
}

// Item validates and cleans a single raw item. A nil result means the item
// was rejected; the warnings explain every rejection and every soft
// inconsistency on retained items.
func (v *Validator) Item(raw map[string]any) (*domain.BillItem, []string) {
	name := strings.TrimSpace(stringField(raw, "item_name", "name", "description"))
	if len(name) < minNameLength {
		return nil, []string{fmt.Sprintf("skipped item with short name: %q", name)}
	}

	lower := strings.ToLower(name)
	for _, kw := range skipKeywords {
		if strings.Contains(lower, kw) {
			return nil, []string{fmt.Sprintf("skipped total/header row: %q", name)}
		}
	}

	amount := ParseAmount(anyField(raw, "item_amount", "amount"))
	if amount <= 0 {
		return nil, []string{fmt.Sprintf("skipped item with invalid amount: %q = %v", name, amount)}
	}

	cleaned := CleanName(name)
	if len(cleaned) < minNameLength {
		return nil, []string{fmt.Sprintf("skipped item with short name after cleaning: %q", cleaned)}
	}

	item := &domain.BillItem{
		ItemName:   cleaned,
		ItemAmount: round2(amount),
	}

	var warnings []string
	rate := ParseAmount(anyField(raw, "item_rate", "rate"))
	if rate > 0 {
		r := round2(rate)
		item.ItemRate = &r
	}
	qty := ParseQuantity(anyField(raw, "item_quantity", "quantity"))
	if qty > 0 {
		q := qty
		item.ItemQuantity = &q
	}

	if rate > 0 && qty > 0 {
		expected := rate * qty
		tolerance := math.Max(v.ToleranceAbs, amount*v.TolerancePct)
		if math.Abs(expected-amount) > tolerance {
			warnings = append(warnings, fmt.Sprintf(
				"amount mismatch for %q: %.2f × %.2f = %.2f ≠ %.2f", cleaned, rate, qty, expected, amount))
		}
	}

	return item, warnings
}

// CleanName strips leading numbering and bullets, trailing punctuation, and
// collapses internal whitespace. Applying it twice equals applying it once.
func CleanName(name string) string {
	name = leadingNumberingRe.ReplaceAllString(name, "")
	name = strings.Trim(name, ".,;:-() ")
	return strings.Join(strings.Fields(name), " ")
}

// ParseAmount coerces a monetary value of any incoming type to a float.
// Currency symbols, thousands separators and "Rs" prefixes are stripped;
// anything unparsable coerces to 0 (which then fails the positivity check).
func ParseAmount(value any) float64 {
	switch t := value.(type) {
	case nil:
		return 0
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		s := strings.TrimSpace(currencyReplacer.Replace(t))
		return firstNumber(s)
	default:
		return 0
	}
}

// ParseQuantity coerces a unit count, stripping unit-noise suffixes like
// "No", "Nos", "Units", "Pcs" before numeric extraction.
func ParseQuantity(value any) float64 {
	switch t := value.(type) {
	case nil:
		return 0
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		s := quantityNoiseRe.ReplaceAllString(t, "")
		return firstNumber(s)
	default:
		return 0
	}
}

func firstNumber(s string) float64 {
	m := firstNumericRe.FindString(s)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return f
}

func stringField(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			if s, ok := v.(string); ok {
				return s
			}
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

func anyField(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
