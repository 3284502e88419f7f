package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"medbill/internal/domain"
	"medbill/internal/service"
)

// ExtractionRequest is the body of POST /extract-bill-data.
type ExtractionRequest struct {
	Document string `json:"document" binding:"required,url"`
}

// ExtractionResponse is the wire contract of the extraction endpoint.
// Failed extractions still answer 200 with is_success false so callers
// always get token accounting.
type ExtractionResponse struct {
	IsSuccess  bool                   `json:"is_success"`
	TokenUsage domain.TokenUsage      `json:"token_usage"`
	Data       *domain.ExtractionData `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// ExtractHandler handles bill extraction and extraction history endpoints.
type ExtractHandler struct {
	svc service.ExtractionService

	mu   sync.Mutex
	last *ExtractionResponse
}

// NewExtractHandler creates a new ExtractHandler.
func NewExtractHandler(svc service.ExtractionService) *ExtractHandler {
	return &ExtractHandler{svc: svc}
}

// ExtractBillData handles POST /extract-bill-data.
func (h *ExtractHandler) ExtractBillData(c *gin.Context) {
	var req ExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "document must be a valid URL")
		return
	}

	rec, err := h.svc.ExtractFromURL(c.Request.Context(), req.Document)
	if err != nil {
		HandleError(c, err)
		return
	}

	resp := toExtractionResponse(rec)
	h.mu.Lock()
	h.last = resp
	h.mu.Unlock()

	c.JSON(http.StatusOK, resp)
}

// LastResponse handles GET /last-response.
func (h *ExtractHandler) LastResponse(c *gin.Context) {
	h.mu.Lock()
	last := h.last
	h.mu.Unlock()

	if last == nil {
		c.JSON(http.StatusOK, gin.H{"message": "No extractions yet"})
		return
	}
	c.JSON(http.StatusOK, last)
}

// GetByID handles GET /extractions/:id.
func (h *ExtractHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "id must be a UUID")
		return
	}

	rec, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, rec)
}

// List handles GET /extractions.
func (h *ExtractHandler) List(c *gin.Context) {
	offset, limit := pagination(c)
	recs, total, err := h.svc.List(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondPaginated(c, recs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// ExportXLSX handles GET /extractions/:id/export.
func (h *ExtractHandler) ExportXLSX(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "id must be a UUID")
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="extraction-%s.xlsx"`, id))

	if err := h.svc.ExportXLSX(c.Request.Context(), id, c.Writer); err != nil {
		HandleError(c, err)
		return
	}
}

func toExtractionResponse(rec *domain.ExtractionRecord) *ExtractionResponse {
	resp := &ExtractionResponse{
		IsSuccess: rec.IsSuccess,
		TokenUsage: domain.TokenUsage{
			TotalTokens:  rec.TotalTokens,
			InputTokens:  rec.InputTokens,
			OutputTokens: rec.OutputTok,
		},
		Error: rec.Error,
	}
	if rec.IsSuccess && len(rec.Result) > 0 {
		var data domain.ExtractionData
		if err := json.Unmarshal(rec.Result, &data); err == nil {
			resp.Data = &data
		}
	}
	return resp
}

func pagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if offset < 0 {
		offset = 0
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return offset, limit
}
