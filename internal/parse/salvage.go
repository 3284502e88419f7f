package parse

import (
	"fmt"
	"regexp"
	"strings"
)

// Last-resort recovery for text that never forms valid JSON: pull
// (name, amount) pairs straight out of the text with two complementary
// key orderings, then scan a bounded window around each hit for rate
// and quantity.
var (
	nameThenAmountRe = regexp.MustCompile(`(?is)"item_name"\s*:\s*"([^"]+)"[^}]*?"item_amount"\s*:\s*([\d,]+\.?\d*)`)
	amountThenNameRe = regexp.MustCompile(`(?is)"item_amount"\s*:\s*([\d,]+\.?\d*)[^}]*?"item_name"\s*:\s*"([^"]+)"`)
	rateRe           = regexp.MustCompile(`(?i)"item_rate"\s*:\s*([\d,]+\.?\d*)`)
	quantityRe       = regexp.MustCompile(`(?i)"item_quantity"\s*:\s*([\d,]+\.?\d*)`)
)

const (
	salvageWindowBefore = 50
	salvageWindowAfter  = 200
)

func trySalvage(text string) *RawPage {
	var items []map[string]any

	for _, m := range nameThenAmountRe.FindAllStringSubmatchIndex(text, -1) {
		name := strings.TrimSpace(text[m[2]:m[3]])
		amount := parseNumber(text[m[4]:m[5]])
		if name != "" && amount > 0 {
			items = append(items, salvageItem(text, m[0], m[1], name, amount))
		}
	}

	if len(items) == 0 {
		for _, m := range amountThenNameRe.FindAllStringSubmatchIndex(text, -1) {
			amount := parseNumber(text[m[2]:m[3]])
			name := strings.TrimSpace(text[m[4]:m[5]])
			if name != "" && amount > 0 {
				items = append(items, salvageItem(text, m[0], m[1], name, amount))
			}
		}
	}

	if len(items) == 0 {
		return nil
	}

	return &RawPage{
		PageType:  detectPageType(text),
		BillItems: dedupeItems(items),
		Salvaged:  true,
	}
}

// salvageItem builds an item from one match, pulling rate and quantity out
// of the surrounding context window when present.
func salvageItem(text string, start, end int, name string, amount float64) map[string]any {
	ctxStart := max(0, start-salvageWindowBefore)
	ctxEnd := min(len(text), end+salvageWindowAfter)
	window := text[ctxStart:ctxEnd]

	item := map[string]any{
		"item_name":   name,
		"item_amount": amount,
	}
	if m := rateRe.FindStringSubmatch(window); m != nil {
		if rate := parseNumber(m[1]); rate > 0 {
			item["item_rate"] = rate
		}
	}
	if m := quantityRe.FindStringSubmatch(window); m != nil {
		if qty := parseNumber(m[1]); qty > 0 {
			item["item_quantity"] = qty
		}
	}
	return item
}

// dedupeItems removes repeats keyed on (lowercased name, amount rounded to
// two decimals), preserving first-seen order.
func dedupeItems(items []map[string]any) []map[string]any {
	seen := make(map[string]bool, len(items))
	unique := make([]map[string]any, 0, len(items))
	for _, item := range items {
		name, _ := item["item_name"].(string)
		amount, _ := item["item_amount"].(float64)
		key := fmt.Sprintf("%s|%.2f", strings.ToLower(strings.TrimSpace(name)), amount)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, item)
	}
	return unique
}

var pageTypeKeywords = []struct {
	pageType string
	words    []string
}{
	{"Pharmacy", []string{"pharmacy", "medicine", "tablet", "capsule", "syrup", "injection"}},
	{"Final Bill", []string{"final bill", "grand total", "total payable", "net amount"}},
	{"Investigation", []string{"investigation", "pathology", "radiology", "lab test"}},
	{"Consultation", []string{"consultation", "doctor visit"}},
	{"Room Charges", []string{"room rent", "bed charges", "accommodation"}},
}

// detectPageType prefers an explicit page_type field surviving in the text,
// falling back to keyword sniffing over the whole response.
func detectPageType(text string) string {
	if m := pageTypeRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	lower := strings.ToLower(text)
	for _, k := range pageTypeKeywords {
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				return k.pageType
			}
		}
	}
	return "Bill Detail"
}
