// Package provider turns a tongue photo into a free-text report by asking
// the configured LLM providers in order.
package provider

import "context"

// Report is the raw reply of the provider that answered.
type Report struct {
	Text       string
	Provider   string // e.g. "anthropic"
	Model      string
	StatusCode int // upstream status of the last failed attempt, 0 if none
}

// ReportSource is the interface the analysis service depends on.
type ReportSource interface {
	// Describe returns the first successful report for the photo.
	// photoHash identifies the photo in call records.
	Describe(ctx context.Context, photo []byte, mimeType, photoHash string) (*Report, error)

	// Name returns a human-readable name for the source.
	Name() string
}
