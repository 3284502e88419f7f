package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"medbill/internal/config"
	"medbill/internal/domain"
	"medbill/internal/port"
)

const (
	apiBaseURL  = "https://generativelanguage.googleapis.com/v1beta/models"
	jpegQuality = 90
)

// Client implements port.VisionModel against Google's Gemini API.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewClient creates a Gemini-backed vision model client.
func NewClient(cfg *config.GeminiConfig) *Client {
	return newClient(cfg, "")
}

// NewClientWithEndpoint creates a client pointing at a custom API endpoint (for testing).
func NewClientWithEndpoint(cfg *config.GeminiConfig, endpoint string) *Client {
	return newClient(cfg, endpoint)
}

func newClient(cfg *config.GeminiConfig, endpoint string) *Client {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent", apiBaseURL, model)
	}
	return &Client{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		// Per-call deadlines come from the caller's context; this timeout
		// is only a backstop against a hung connection.
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// Generate runs one vision call. Transport failures return an error;
// model-level failure modes are folded into the tagged VisionResult so
// callers never probe optional response fields.
func (c *Client) Generate(ctx context.Context, req port.VisionRequest) (*port.VisionResult, error) {
	var imgBuf bytes.Buffer
	if err := jpeg.Encode(&imgBuf, req.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding page image: %w", err)
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role": "user",
				"parts": []map[string]interface{}{
					{
						"inline_data": map[string]interface{}{
							"mime_type": "image/jpeg",
							"data":      base64.StdEncoding.EncodeToString(imgBuf.Bytes()),
						},
					},
					{
						"text": req.Prompt,
					},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     req.Decoding.Temperature,
			"maxOutputTokens": req.Decoding.MaxOutputTokens,
			"topP":            1,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling gemini API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 300))
	}

	return toResult(respBody)
}

// geminiResponse models the Gemini API response shape.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// toResult constructs the tagged variant at the call boundary.
func toResult(body []byte) (*port.VisionResult, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	result := &port.VisionResult{}
	if resp.UsageMetadata != nil {
		result.Usage = &domain.TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}

	if resp.PromptFeedback.BlockReason != "" {
		result.Status = port.VisionBlocked
		result.Reason = resp.PromptFeedback.BlockReason
		return result, nil
	}
	if len(resp.Candidates) == 0 {
		result.Status = port.VisionEmpty
		result.Reason = "no candidates"
		return result, nil
	}

	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		result.Status = port.VisionBlocked
		result.Reason = cand.FinishReason
		return result, nil
	}

	text := ""
	for _, p := range cand.Content.Parts {
		text += p.Text
	}
	if text == "" {
		result.Status = port.VisionEmpty
		result.Reason = "no text parts"
		return result, nil
	}

	// MAX_TOKENS still carries usable (truncated) text; the parser's
	// repair strategies deal with the cut.
	result.Status = port.VisionSuccess
	result.Text = text
	return result, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
