package llm

import (
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

// ErrQuotaExceeded is returned by callers when every provider answered 429.
var ErrQuotaExceeded = errors.New("llm provider quota exceeded")

// StatusCode extracts the HTTP status from a provider SDK error. It returns
// 0 when err did not come from an HTTP response (timeouts, DNS, cancelled
// contexts), which callers treat as a network failure.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}

	if errors.Is(err, ErrQuotaExceeded) {
		return http.StatusTooManyRequests
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}

	return 0
}

// IsQuotaExceeded reports whether err means the provider throttled us.
func IsQuotaExceeded(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}

// StatusError is an HTTP failure not produced by a provider SDK. Test
// doubles use it to simulate provider responses.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return http.StatusText(e.Code)
}
