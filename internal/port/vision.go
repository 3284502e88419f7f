package port

import (
	"context"
	"image"

	"medbill/internal/domain"
)

// VisionStatus tags the outcome of one vision model call. The variant is
// constructed at the call boundary so downstream code matches over a closed
// set instead of probing optional response fields.
type VisionStatus int

const (
	VisionSuccess VisionStatus = iota
	VisionBlocked
	VisionEmpty
	VisionError
)

// VisionResult is the outcome of one model invocation.
type VisionResult struct {
	Status VisionStatus
	Text   string
	Usage  *domain.TokenUsage // nil when the service omitted usage metadata
	Reason string             // block reason or error detail
}

// DecodingConfig holds generation parameters for a model call.
type DecodingConfig struct {
	Temperature     float64
	MaxOutputTokens int
}

// VisionRequest carries one page to the vision model.
type VisionRequest struct {
	Prompt   string
	Image    image.Image
	Decoding DecodingConfig
}

// VisionModel abstracts the external vision-language model. Implementations
// return an error only for transport-level failures; model-level failure
// modes (blocked, no candidates, truncation) are reported via VisionResult.
type VisionModel interface {
	Generate(ctx context.Context, req VisionRequest) (*VisionResult, error)
}
