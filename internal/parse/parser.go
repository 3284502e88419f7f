package parse

import (
	"encoding/json"
	"log"
	"regexp"
	"strconv"
	"strings"
)

// RawPage is the structural shape recovered from model output, before
// item-level validation. BillItems stay loosely typed because the model
// mixes numbers, numeric strings and alternate key names freely.
type RawPage struct {
	PageType  string
	BillItems []map[string]any
	Salvaged  bool // true when recovered by regex salvage rather than JSON
}

var (
	codeBlockRe  = regexp.MustCompile("(?is)```(?:json)?\\s*([\\s\\S]*?)```")
	pageTypeRe   = regexp.MustCompile(`(?i)"page_type"\s*:\s*"([^"]+)"`)
	looseDecimal = regexp.MustCompile(`[\d.]+`)
)

// strategy attempts one recovery approach. A nil result means the strategy
// could not produce a structurally valid page.
type strategy struct {
	name string
	fn   func(text string) *RawPage
}

var strategies = []strategy{
	{"direct", tryDirect},
	{"code-block", tryCodeBlock},
	{"json-object", tryJSONObject},
	{"repair", tryRepaired},
	{"salvage", trySalvage},
}

// Parse recovers a structured page from raw model output. It tries each
// strategy in order and returns nil only when all of them fail. It never
// panics and never returns an error: unusable text is a nil page.
func Parse(text string, pageNum int) *RawPage {
	text = strings.TrimSpace(text)
	if text == "" {
		log.Printf("parse: [page %d] empty response", pageNum)
		return nil
	}

	for _, s := range strategies {
		if page := s.fn(text); page != nil {
			if s.name != "direct" {
				log.Printf("parse: [page %d] recovered via %s (%d items)", pageNum, s.name, len(page.BillItems))
			}
			return page
		}
	}

	log.Printf("parse: [page %d] all parsing strategies failed", pageNum)
	return nil
}

func tryDirect(text string) *RawPage {
	return decode(text)
}

func tryCodeBlock(text string) *RawPage {
	m := codeBlockRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return decode(strings.TrimSpace(m[1]))
}

func tryJSONObject(text string) *RawPage {
	span := firstObjectSpan(text)
	if span == "" {
		return nil
	}
	return decode(span)
}

func tryRepaired(text string) *RawPage {
	span := firstObjectSpan(text)
	if span == "" {
		return nil
	}
	return decode(repair(span))
}

// firstObjectSpan returns the substring from the first '{' to the last '}',
// or to the end of the text when no closing brace exists (truncated output).
func firstObjectSpan(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return text[start:]
	}
	return text[start : end+1]
}

// decode unmarshals text and checks the structural contract: a JSON object
// containing a list-typed bill_items field.
func decode(text string) *RawPage {
	var root map[string]any
	if err := json.Unmarshal([]byte(text), &root); err != nil {
		return nil
	}
	rawItems, ok := root["bill_items"].([]any)
	if !ok {
		return nil
	}

	page := &RawPage{}
	if pt, ok := root["page_type"].(string); ok {
		page.PageType = pt
	}
	for _, ri := range rawItems {
		if m, ok := ri.(map[string]any); ok {
			page.BillItems = append(page.BillItems, m)
		}
	}
	return page
}

// parseNumber parses a numeric token, tolerating thousands separators and
// currency prefixes. Unparsable input yields 0.
func parseNumber(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "₹", "")
	s = strings.ReplaceAll(s, "Rs", "")
	s = strings.TrimSpace(s)
	m := looseDecimal.FindString(s)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return f
}
