// Package analyzer is the client side of a tongue analysis: it prepares the
// photo, hands it to a Transport and resolves with either a structured
// record or exactly one Error kind.
package analyzer

import (
	"context"

	"github.com/fleveque/tongue-service/internal/model"
)

// Request is one prepared analysis request.
type Request struct {
	ID          string // uuid, sent as X-Request-ID
	Image       []byte // compressed JPEG
	ImageBase64 string // Image, base64 (std encoding)
	MimeType    string
}

// Transport delivers a prepared photo to an analysis backend.
//
// Implementations return analyzer.Error values only, so the client can pass
// their result straight through.
type Transport interface {
	// Validate checks the configuration needed for a call without sending anything.
	Validate() error
	// RoundTrip performs the remote call and builds the record.
	RoundTrip(ctx context.Context, req *Request) (*model.AnalysisRecord, error)
	// Name identifies the transport in logs.
	Name() string
}
