package analyzer

import (
	"encoding/json"
	"strings"

	"github.com/fleveque/tongue-service/internal/model"
)

// analyzeRequestBody is the JSON payload sent to the backend.
type analyzeRequestBody struct {
	ImageData string `json:"imageData"`
}

// analyzeResponseBody is the backend envelope. Pointers tell "missing" from "zero".
type analyzeResponseBody struct {
	Success *bool           `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error,omitempty"`
}

// resultBody mirrors the record with every field optional.
type resultBody struct {
	Zones           map[string]string `json:"zones"`
	Diagnosis       *string           `json:"diagnosis"`
	Recommendations []string          `json:"recommendations"`
	Confidence      *float64          `json:"confidence"`
	ImageQuality    *string           `json:"imageQuality"`
	AdditionalNotes *string           `json:"additionalNotes"`
}

// DecodeResponse validates the success envelope and decodes its result.
// Anything other than {"success": true, "result": {...}} is ErrInvalidResponse.
func DecodeResponse(body []byte) (*model.AnalysisRecord, error) {
	if len(body) == 0 {
		return nil, ErrInvalidResponse
	}

	var env analyzeResponseBody
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrInvalidResponse
	}
	if env.Success == nil || !*env.Success {
		return nil, ErrInvalidResponse
	}

	rec, ok := DecodeResult(env.Result)
	if !ok {
		return nil, ErrInvalidResponse
	}
	return &rec, nil
}

// DecodeResult builds a record from a structured result object, applying the
// same defaults as the free-text parser: unknown zones dropped, empty
// recommendations removed, confidence outside [0,1] replaced by the default,
// missing image quality set to "Good". It reports false when raw is not a JSON object.
func DecodeResult(raw json.RawMessage) (model.AnalysisRecord, bool) {
	rec := model.NewAnalysisRecord()

	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return rec, false
	}

	var body resultBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return rec, false
	}

	for k, v := range body.Zones {
		if model.ValidZone(k) {
			rec.Zones[model.Zone(k)] = v
		}
	}
	if body.Diagnosis != nil {
		rec.Diagnosis = *body.Diagnosis
	}
	for _, r := range body.Recommendations {
		if r = strings.TrimSpace(r); r != "" {
			rec.Recommendations = append(rec.Recommendations, r)
		}
	}
	if body.Confidence != nil && model.ValidConfidence(*body.Confidence) {
		rec.Confidence = *body.Confidence
	}
	if body.ImageQuality != nil && strings.TrimSpace(*body.ImageQuality) != "" {
		rec.ImageQuality = *body.ImageQuality
	}
	if body.AdditionalNotes != nil && *body.AdditionalNotes != "" {
		notes := *body.AdditionalNotes
		rec.AdditionalNotes = &notes
	}

	return rec, true
}
