package analyzer

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fleveque/tongue-service/internal/llm"
	"github.com/fleveque/tongue-service/internal/model"
	"github.com/fleveque/tongue-service/internal/parser"
)

// ProviderTransport skips the backend and asks an LLM provider directly.
// The reply is free text and goes through the enhanced parser.
type ProviderTransport struct {
	client llm.VisionClient
	apiKey string
	logger *zap.Logger
}

// NewProviderTransport wraps client. apiKey is only checked for presence;
// the client was already constructed with it.
func NewProviderTransport(client llm.VisionClient, apiKey string, logger *zap.Logger) *ProviderTransport {
	return &ProviderTransport{client: client, apiKey: apiKey, logger: logger}
}

// NewDirectTransport builds a ProviderTransport for the named provider
// ("anthropic" or "openai").
func NewDirectTransport(provider, apiKey, modelName string, maxTokens int, logger *zap.Logger) *ProviderTransport {
	var client llm.VisionClient
	if apiKey != "" {
		switch provider {
		case "anthropic":
			client = llm.NewAnthropicClient(apiKey, modelName, maxTokens)
		case "openai":
			client = llm.NewOpenAIClient(apiKey, modelName, maxTokens, "")
		}
	}
	return NewProviderTransport(client, apiKey, logger)
}

func (p *ProviderTransport) Name() string {
	if p.client == nil {
		return "direct"
	}
	return "direct:" + p.client.ProviderName()
}

func (p *ProviderTransport) Validate() error {
	if p.client == nil || p.apiKey == "" {
		return ErrInvalidCredential
	}
	return nil
}

func (p *ProviderTransport) RoundTrip(ctx context.Context, req *Request) (*model.AnalysisRecord, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	reply, err := p.client.DescribeTongue(ctx, req.Image, req.MimeType)
	if err != nil {
		kind := providerError(err)
		p.logger.Warn("provider call failed",
			zap.String("request_id", req.ID),
			zap.String("provider", p.client.ProviderName()),
			zap.String("kind", kind.Kind()),
			zap.Error(err),
		)
		return nil, kind
	}

	rec := parser.ParseEnhanced(reply)
	return &rec, nil
}

// providerError maps an SDK failure onto an error kind. Forbidden is treated
// like unauthorized since both mean the key cannot be used.
func providerError(err error) Error {
	if errors.Is(err, llm.ErrEmptyReply) {
		return ErrInvalidResponse
	}
	switch status := llm.StatusCode(err); {
	case status == 0:
		return ErrNetworkFailure
	case status == http.StatusForbidden:
		return ErrInvalidCredential
	default:
		return StatusError(status)
	}
}
