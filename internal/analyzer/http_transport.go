package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/tongue-service/internal/model"
)

const (
	// AnalyzePath is appended to the configured base URL.
	AnalyzePath = "/analyze-tongue"

	DefaultTimeout = 60 * time.Second

	maxResponseBytes = 1 << 20
)

// HTTPTransport posts the photo to the tongue-service backend.
type HTTPTransport struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPTransport creates a transport for the backend at baseURL
// (e.g. "https://api.example.com/api/v1"). apiKey may be empty when the
// backend does not require one. timeout <= 0 uses DefaultTimeout.
func NewHTTPTransport(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (t *HTTPTransport) Name() string { return "http" }

// Validate fails when no backend URL is configured.
func (t *HTTPTransport) Validate() error {
	if strings.TrimSpace(t.baseURL) == "" {
		return ErrInvalidCredential
	}
	return nil
}

// Endpoint returns the full analyze URL.
func (t *HTTPTransport) Endpoint() string {
	return t.baseURL + AnalyzePath
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (*model.AnalysisRecord, error) {
	payload, err := json.Marshal(analyzeRequestBody{ImageData: req.ImageBase64})
	if err != nil {
		t.logger.Error("encoding analyze request", zap.Error(err))
		return nil, ErrImageProcessingFailure
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint(), bytes.NewReader(payload))
	if err != nil {
		// A malformed base URL is a configuration problem.
		t.logger.Error("creating analyze request", zap.String("endpoint", t.Endpoint()), zap.Error(err))
		return nil, ErrInvalidCredential
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "tongue-service-client/1.0")
	if req.ID != "" {
		httpReq.Header.Set("X-Request-ID", req.ID)
	}
	if t.apiKey != "" {
		httpReq.Header.Set("X-API-Key", t.apiKey)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		t.logger.Warn("analyze request failed",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
		return nil, ErrNetworkFailure
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		t.logger.Warn("reading analyze response",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
		return nil, ErrNetworkFailure
	}

	if resp.StatusCode != http.StatusOK {
		kind := StatusError(resp.StatusCode)
		t.logger.Warn("analyze request rejected",
			zap.String("request_id", req.ID),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", kind.Kind()),
			zap.String("body", truncate(string(body), 256)),
		)
		return nil, kind
	}

	rec, err := DecodeResponse(body)
	if err != nil {
		t.logger.Warn("malformed analyze response",
			zap.String("request_id", req.ID),
			zap.String("body", truncate(string(body), 256)),
		)
		return nil, err
	}
	return rec, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:n], len(s))
}
