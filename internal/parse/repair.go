package parse

import (
	"regexp"
	"strings"
)

var (
	trailingCommaObjRe = regexp.MustCompile(`,\s*}`)
	trailingCommaArrRe = regexp.MustCompile(`,\s*]`)
	missingCommaRe     = regexp.MustCompile(`}\s*{`)
)

// repair applies the fix sequence for common LLM JSON defects: literal
// newlines inside strings, trailing commas, missing commas between adjacent
// objects, and truncation.
func repair(text string) string {
	text = fixStringNewlines(text)
	text = trailingCommaObjRe.ReplaceAllString(text, "}")
	text = trailingCommaArrRe.ReplaceAllString(text, "]")
	text = missingCommaRe.ReplaceAllString(text, "},{")
	text = fixTruncation(text)
	return text
}

// fixStringNewlines replaces literal line breaks found inside quoted strings
// with spaces. Raw newlines are invalid JSON inside a string and indicate
// the model wrapped text mid-field.
func fixStringNewlines(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inString := false
	escaped := false
	for _, r := range text {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			b.WriteRune(r)
			escaped = true
			continue
		case '"':
			inString = !inString
		case '\n', '\r':
			if inString {
				b.WriteRune(' ')
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// fixTruncation balances unclosed braces/brackets. When the output was cut
// mid-item, the incomplete trailing item is dropped first so the recovered
// document keeps only complete entries.
func fixTruncation(text string) string {
	if braceDebt(text) == 0 && bracketDebt(text) == 0 {
		return text
	}

	if end := lastCompleteItemEnd(text); end > 0 {
		text = text[:end+1]
	}

	text = strings.TrimRight(text, " \t\n\r")
	text = strings.TrimSuffix(text, ",")
	text += strings.Repeat("]", max(0, bracketDebt(text)))
	text += strings.Repeat("}", max(0, braceDebt(text)))
	return text
}

func braceDebt(text string) int {
	return strings.Count(text, "{") - strings.Count(text, "}")
}

func bracketDebt(text string) int {
	return strings.Count(text, "[") - strings.Count(text, "]")
}

// lastCompleteItemEnd returns the index of the closing brace of the last
// brace-matched object that looks like a bill item, or -1. Items sit nested
// inside the root object, so matching uses a stack of open-brace positions
// rather than top-level depth.
func lastCompleteItemEnd(text string) int {
	last := -1
	var stack []int
	inString := false
	escaped := false
	for i, r := range text {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				stack = append(stack, i)
			}
		case '}':
			if !inString && len(stack) > 0 {
				start := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				snippet := text[start : i+1]
				if strings.Contains(snippet, `"item_name"`) || strings.Contains(snippet, `"item_amount"`) {
					last = i
				}
			}
		}
	}
	return last
}
