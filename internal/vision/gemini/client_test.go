package gemini_test

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbill/internal/config"
	"medbill/internal/port"
	"medbill/internal/vision/gemini"
)

func newTestClient(serverURL string) *gemini.Client {
	cfg := &config.GeminiConfig{
		APIKey:          "test-gemini-key",
		Model:           "gemini-2.5-flash",
		MaxOutputTokens: 4096,
	}
	return gemini.NewClientWithEndpoint(cfg, serverURL)
}

func testRequest() port.VisionRequest {
	return port.VisionRequest{
		Prompt:   "extract the line items",
		Image:    image.NewRGBA(image.Rect(0, 0, 8, 8)),
		Decoding: port.DecodingConfig{Temperature: 0, MaxOutputTokens: 4096},
	}
}

func successResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"role": "model",
					"parts": []map[string]interface{}{
						{"text": text},
					},
				},
				"finishReason": "STOP",
			},
		},
		"usageMetadata": map[string]interface{}{
			"promptTokenCount":     1200,
			"candidatesTokenCount": 250,
			"totalTokenCount":      1450,
		},
	}
}

func TestGenerate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-gemini-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		contents := reqBody["contents"].([]interface{})
		require.Len(t, contents, 1)
		msg := contents[0].(map[string]interface{})
		assert.Equal(t, "user", msg["role"])

		parts := msg["parts"].([]interface{})
		require.Len(t, parts, 2)

		dataPart := parts[0].(map[string]interface{})
		inlineData := dataPart["inline_data"].(map[string]interface{})
		assert.Equal(t, "image/jpeg", inlineData["mime_type"])
		assert.NotEmpty(t, inlineData["data"])

		textPart := parts[1].(map[string]interface{})
		assert.Equal(t, "extract the line items", textPart["text"])

		genConfig := reqBody["generationConfig"].(map[string]interface{})
		assert.Equal(t, float64(0), genConfig["temperature"])
		assert.Equal(t, float64(4096), genConfig["maxOutputTokens"])

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(successResponse(`{"bill_items": []}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	res, err := c.Generate(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, port.VisionSuccess, res.Status)
	assert.Equal(t, `{"bill_items": []}`, res.Text)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 1200, res.Usage.InputTokens)
	assert.Equal(t, 250, res.Usage.OutputTokens)
	assert.Equal(t, 1450, res.Usage.TotalTokens)
}

func TestGenerate_MultiPartTextConcatenated(t *testing.T) {
	body := map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"parts": []map[string]interface{}{
						{"text": `{"bill_items": [`},
						{"text": `]}`},
					},
				},
				"finishReason": "STOP",
			},
		},
	}
	server := jsonServer(t, http.StatusOK, body)
	defer server.Close()

	res, err := newTestClient(server.URL).Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, port.VisionSuccess, res.Status)
	assert.Equal(t, `{"bill_items": []}`, res.Text)
	assert.Nil(t, res.Usage)
}

func TestGenerate_PromptBlocked(t *testing.T) {
	body := map[string]interface{}{
		"promptFeedback": map[string]interface{}{"blockReason": "SAFETY"},
	}
	server := jsonServer(t, http.StatusOK, body)
	defer server.Close()

	res, err := newTestClient(server.URL).Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, port.VisionBlocked, res.Status)
	assert.Equal(t, "SAFETY", res.Reason)
}

func TestGenerate_CandidateBlocked(t *testing.T) {
	body := map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"finishReason": "RECITATION"},
		},
	}
	server := jsonServer(t, http.StatusOK, body)
	defer server.Close()

	res, err := newTestClient(server.URL).Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, port.VisionBlocked, res.Status)
	assert.Equal(t, "RECITATION", res.Reason)
}

func TestGenerate_NoCandidates(t *testing.T) {
	server := jsonServer(t, http.StatusOK, map[string]interface{}{"candidates": []interface{}{}})
	defer server.Close()

	res, err := newTestClient(server.URL).Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, port.VisionEmpty, res.Status)
}

func TestGenerate_MaxTokensStillSuccess(t *testing.T) {
	body := map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"parts": []map[string]interface{}{
						{"text": `{"bill_items": [{"item_name": "Trunc`},
					},
				},
				"finishReason": "MAX_TOKENS",
			},
		},
	}
	server := jsonServer(t, http.StatusOK, body)
	defer server.Close()

	res, err := newTestClient(server.URL).Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, port.VisionSuccess, res.Status)
	assert.Contains(t, res.Text, "Trunc")
}

func TestGenerate_HTTPError(t *testing.T) {
	server := jsonServer(t, http.StatusTooManyRequests, map[string]interface{}{
		"error": map[string]interface{}{"message": "quota exceeded"},
	})
	defer server.Close()

	_, err := newTestClient(server.URL).Generate(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestGenerate_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).Generate(ctx, testRequest())
	require.Error(t, err)
}

func jsonServer(t *testing.T, status int, body map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}
