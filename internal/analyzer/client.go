package analyzer

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleveque/tongue-service/internal/imaging"
	"github.com/fleveque/tongue-service/internal/model"
)

// Client runs one analysis per Analyze call. It holds no per-request state
// and is safe for concurrent use; callers that share a presenter.Store still
// go through a presenter.Session to keep updates ordered.
type Client struct {
	transport Transport
	image     imaging.Options
	logger    *zap.Logger
}

// NewClient creates a client that sends prepared photos through transport.
func NewClient(transport Transport, image imaging.Options, logger *zap.Logger) *Client {
	return &Client{
		transport: transport,
		image:     image,
		logger:    logger,
	}
}

// Transport returns the transport the client was built with.
func (c *Client) Transport() Transport { return c.transport }

// Analyze prepares the photo and sends it. On failure the returned error is
// always exactly one Error kind; the underlying cause is only logged.
// Nothing is sent when the transport is misconfigured or the photo cannot
// be processed.
func (c *Client) Analyze(ctx context.Context, photo []byte) (*model.AnalysisRecord, error) {
	return c.AnalyzeWithID(ctx, uuid.NewString(), photo)
}

// AnalyzeWithID is Analyze with a caller-chosen request id.
func (c *Client) AnalyzeWithID(ctx context.Context, requestID string, photo []byte) (*model.AnalysisRecord, error) {
	log := c.logger.With(
		zap.String("request_id", requestID),
		zap.String("transport", c.transport.Name()),
	)

	if err := c.transport.Validate(); err != nil {
		log.Warn("transport not configured", zap.Error(err))
		return nil, AsError(err)
	}

	compressed, err := imaging.Compress(photo, c.image)
	if err != nil {
		log.Warn("preparing photo", zap.Int("bytes", len(photo)), zap.Error(err))
		return nil, ErrImageProcessingFailure
	}

	req := &Request{
		ID:          requestID,
		Image:       compressed,
		ImageBase64: base64.StdEncoding.EncodeToString(compressed),
		MimeType:    "image/jpeg",
	}

	log.Debug("sending photo",
		zap.Int("original_bytes", len(photo)),
		zap.Int("compressed_bytes", len(compressed)),
	)

	rec, err := c.transport.RoundTrip(ctx, req)
	if err != nil {
		kind := AsError(err)
		var typed Error
		if !errors.As(err, &typed) {
			log.Warn("transport returned an unclassified error", zap.Error(err))
		}
		log.Info("analysis failed", zap.String("kind", kind.Kind()))
		return nil, kind
	}
	if rec == nil {
		log.Warn("transport returned no record")
		return nil, ErrInvalidResponse
	}

	log.Info("analysis completed",
		zap.Int("zones", len(rec.Zones)),
		zap.Float64("confidence", rec.Confidence),
	)
	return rec, nil
}
