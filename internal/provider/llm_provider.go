package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/tongue-service/internal/llm"
	"github.com/fleveque/tongue-service/internal/metrics"
	"github.com/fleveque/tongue-service/internal/model"
	"github.com/fleveque/tongue-service/internal/storage"
)

// ErrNoProviders is returned when no LLM client is configured.
var ErrNoProviders = errors.New("no LLM providers configured")

// ReportProvider asks vision LLMs (Claude or OpenAI) to describe a photo.
// Rate limited to keep API costs bounded. Tries providers in configured
// order: first success wins, failures fall through.
type ReportProvider struct {
	clients     []llm.VisionClient // ordered: first is primary, rest are fallbacks
	limiter     *rate.Limiter
	llmCallRepo storage.LLMCallRepository
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewReportProvider creates a provider with an ordered list of LLM clients.
// The order comes from config (llm.provider_order), so swapping priority is
// a config change. ratePerMinute <= 0 disables throttling.
func NewReportProvider(
	clients []llm.VisionClient,
	ratePerMinute int,
	llmCallRepo storage.LLMCallRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ReportProvider {
	limit := rate.Inf
	if ratePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(ratePerMinute))
	}

	return &ReportProvider{
		clients:     clients,
		limiter:     rate.NewLimiter(limit, 1),
		llmCallRepo: llmCallRepo,
		metrics:     m,
		logger:      logger,
	}
}

func (p *ReportProvider) Name() string { return "llm" }

// Describe asks each provider in turn. When every provider was throttled
// upstream the error wraps llm.ErrQuotaExceeded.
func (p *ReportProvider) Describe(ctx context.Context, photo []byte, mimeType, photoHash string) (*Report, error) {
	if len(p.clients) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	throttled := 0

	for i, client := range p.clients {
		// Blocks until a token is available or the context is cancelled.
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		text, err := p.tryProvider(ctx, client, photo, mimeType, photoHash)
		if err == nil {
			return &Report{
				Text:     text,
				Provider: client.ProviderName(),
				Model:    client.ModelName(),
			}, nil
		}

		lastErr = err
		if llm.IsQuotaExceeded(err) {
			throttled++
		}

		if i < len(p.clients)-1 {
			p.logger.Warn("LLM provider failed, trying next",
				zap.String("photo_sha256", photoHash),
				zap.String("provider", client.ProviderName()),
				zap.Error(err),
			)
		}
	}

	if throttled == len(p.clients) {
		return nil, fmt.Errorf("all LLM providers rate limited: %w", llm.ErrQuotaExceeded)
	}
	return nil, fmt.Errorf("all LLM providers failed: %w", lastErr)
}

func (p *ReportProvider) tryProvider(ctx context.Context, client llm.VisionClient, photo []byte, mimeType, photoHash string) (string, error) {
	start := time.Now()
	text, err := client.DescribeTongue(ctx, photo, mimeType)
	duration := time.Since(start).Milliseconds()

	p.recordCall(ctx, client, photoHash, err, duration)

	result := "success"
	if err != nil {
		result = "failure"
	}
	p.metrics.ProviderCall(client.ProviderName(), result)

	return text, err
}

// recordCall stores the call for cost tracking. Failures here are logged only.
func (p *ReportProvider) recordCall(ctx context.Context, client llm.VisionClient, photoHash string, callErr error, durationMs int64) {
	if p.llmCallRepo == nil {
		return
	}

	call := &model.LLMCall{
		PhotoSHA256: photoHash,
		Provider:    client.ProviderName(),
		Model:       client.ModelName(),
		Success:     callErr == nil,
		DurationMs:  &durationMs,
	}
	if status := llm.StatusCode(callErr); status != 0 {
		call.StatusCode = &status
	}

	if err := p.llmCallRepo.Create(ctx, call); err != nil {
		p.logger.Error("recording LLM call", zap.Error(err))
	}
}
