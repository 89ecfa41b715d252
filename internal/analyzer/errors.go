package analyzer

import (
	"errors"
	"net/http"
)

// Error is the single failure kind an analysis call resolves with. It carries
// no payload: Error() is the fixed message shown to the user and Kind() is a
// stable identifier for logs and metrics. Compare with errors.Is.
type Error int

const (
	ErrInvalidCredential Error = iota + 1
	ErrNetworkFailure
	ErrInvalidResponse
	ErrImageProcessingFailure
	ErrRateLimited
	ErrServerFailure
)

var errorMessages = map[Error]string{
	ErrInvalidCredential:      "The analysis service credentials are missing or invalid. Please check your configuration.",
	ErrNetworkFailure:         "Unable to reach the analysis service. Please check your internet connection and try again.",
	ErrInvalidResponse:        "The analysis service returned an unexpected response. Please try again.",
	ErrImageProcessingFailure: "The photo could not be processed. Please retake the picture and try again.",
	ErrRateLimited:            "Too many analysis requests. Please wait a moment before trying again.",
	ErrServerFailure:          "The analysis service is having problems. Please try again later.",
}

var errorKinds = map[Error]string{
	ErrInvalidCredential:      "invalid_credential",
	ErrNetworkFailure:         "network_failure",
	ErrInvalidResponse:        "invalid_response",
	ErrImageProcessingFailure: "image_processing_failure",
	ErrRateLimited:            "rate_limited",
	ErrServerFailure:          "server_failure",
}

// AllErrors lists every error kind.
var AllErrors = []Error{
	ErrInvalidCredential,
	ErrNetworkFailure,
	ErrInvalidResponse,
	ErrImageProcessingFailure,
	ErrRateLimited,
	ErrServerFailure,
}

func (e Error) Error() string {
	if msg, ok := errorMessages[e]; ok {
		return msg
	}
	return "unknown analysis error"
}

// Kind returns the snake_case name of the error kind.
func (e Error) Kind() string {
	if k, ok := errorKinds[e]; ok {
		return k
	}
	return "unknown"
}

// AsError extracts the analysis error kind from err. Any other error is
// reported as a network failure since it can only come from a transport that
// failed before classifying its outcome.
func AsError(err error) Error {
	var e Error
	if errors.As(err, &e) {
		return e
	}
	return ErrNetworkFailure
}

// StatusError maps a non-200 HTTP status to its error kind. The mapping is
// exclusive: every status yields exactly one kind.
func StatusError(status int) Error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrInvalidCredential
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500 && status <= 599:
		return ErrServerFailure
	default:
		return ErrInvalidResponse
	}
}
