package extract

import (
	"fmt"

	"medbill/internal/domain"
	"medbill/internal/port"
)

const mainPrompt = `You are a precise medical bill data extractor. Your task is to extract ALL line items from this hospital/medical bill image.

## OUTPUT FORMAT
Return ONLY a JSON object in this exact format:
{
  "page_type": "Bill Detail",
  "bill_items": [
    {
      "item_name": "Full item description",
      "item_amount": 123.45,
      "item_rate": 123.45,
      "item_quantity": 1
    }
  ]
}

## FIELD DEFINITIONS
- page_type: One of "Bill Detail", "Pharmacy", "Final Bill", "Investigation", "Consultation", "Room Charges", "Services"
- item_name: Complete description of the item/service (preserve full text)
- item_amount: The NET/TOTAL amount for this line item (usually rightmost column)
- item_rate: Unit price/rate per item (if shown)
- item_quantity: Numeric quantity only (1, 2, 3...), ignore "No", "Nos", "Units"

## EXTRACTION RULES
1. Extract EVERY line item that has a price/amount
2. For item_amount, use the RIGHTMOST amount column (net amount, not gross)
3. If multiple amount columns exist (Gross, Discount, Net), use the NET amount
4. Preserve FULL item descriptions - do not truncate
5. Include medicines, procedures, consultations, room charges, tests, etc.

## WHAT TO SKIP
- Page headers/footers and column headers (Sr No, Description, Rate, Qty, Amount)
- Section totals (Sub Total, Grand Total, Total Amount)
- Tax lines (GST, CGST, SGST), discount summary lines, empty rows

## CRITICAL INSTRUCTIONS
- Return ONLY valid JSON - no markdown, no explanations
- If no items found, return: {"page_type": "Bill Detail", "bill_items": []}
- Numbers must be numeric (123.45), not strings ("123.45")
- Ensure all JSON brackets are properly closed

Extract all line items from this bill image now:`

const retryPrompt = `Previous extraction may have missed items. Please carefully re-examine this medical bill image.

Focus on:
1. Items in table rows with amounts
2. Small or faded text
3. Multi-line item descriptions

OUTPUT FORMAT (JSON only):
{
  "page_type": "Bill Detail",
  "bill_items": [
    {"item_name": "description", "item_amount": 0.00, "item_rate": 0.00, "item_quantity": 1}
  ]
}

IMPORTANT:
- Extract ALL items with prices
- Use NET amount (rightmost column)
- No markdown, only JSON
- Empty result if no items: {"page_type": "Bill Detail", "bill_items": []}

Extract all line items:`

const (
	// textHintMinChars gates the text-enhanced prompt: shorter text layers
	// carry too little signal to be worth the extra prompt tokens.
	textHintMinChars = 200
	textHintMaxChars = 3000
)

func textEnhancedPrompt(extractedText string) string {
	if len(extractedText) > textHintMaxChars {
		extractedText = extractedText[:textHintMaxChars] + "..."
	}
	return fmt.Sprintf(`You are extracting line items from a medical bill. The page contains the following text:

---TEXT START---
%s
---TEXT END---

Using BOTH the image AND the text above, extract ALL line items.

OUTPUT FORMAT (JSON only):
{
  "page_type": "Bill Detail",
  "bill_items": [
    {"item_name": "Full description", "item_amount": 123.45, "item_rate": 123.45, "item_quantity": 1}
  ]
}

RULES:
1. item_amount = Net/Total amount for the line (rightmost amount column)
2. item_rate = Unit price/rate (if available)
3. item_quantity = Numeric quantity only
4. SKIP: Headers, totals, subtotals, tax lines
5. Include ALL items with prices

page_type options: Pharmacy, Investigation, Consultation, Room Charges, Bill Detail, Final Bill

Return ONLY valid JSON. No explanations.`, extractedText)
}

// selectPrompt escalates from the full instructional prompt on the first
// attempt to the simplified retry prompt on subsequent attempts. The
// text-enhanced variant is used only for digital pages: scanned PDFs can
// carry sparse OCR noise in their text layer that would mislead the model.
func selectPrompt(page domain.PageDescriptor, attempt int) string {
	if attempt > 1 {
		return retryPrompt
	}
	if page.IsDigital && len(page.ExtractedText) > textHintMinChars {
		return textEnhancedPrompt(page.ExtractedText)
	}
	return mainPrompt
}

// decodingFor returns deterministic settings on the first attempt and
// slightly relaxed sampling on retries.
func decodingFor(attempt, maxOutputTokens int) port.DecodingConfig {
	temp := 0.0
	if attempt > 1 {
		temp = 0.1
	}
	return port.DecodingConfig{
		Temperature:     temp,
		MaxOutputTokens: maxOutputTokens,
	}
}
