// Package llm provides a provider-agnostic interface for asking a vision LLM
// to describe a tongue photo. The model answers in the sectioned free-text
// format understood by the parser package.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyReply is returned when a provider answers without any text.
var ErrEmptyReply = errors.New("llm returned an empty reply")

// VisionClient is the interface for LLM providers that can read a photo.
// Both Anthropic (Claude) and OpenAI implement it, allowing the service to
// fall back from one to the other.
//
// Keep it small: one call plus two identifiers for logging and bookkeeping.
type VisionClient interface {
	// DescribeTongue sends the photo with the analysis prompt and returns the
	// model's raw text reply.
	DescribeTongue(ctx context.Context, image []byte, mimeType string) (string, error)
	ProviderName() string
	ModelName() string
}

// DefaultMaxTokens bounds the length of a report.
const DefaultMaxTokens = 1024
