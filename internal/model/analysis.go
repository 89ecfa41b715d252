package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Analysis is the persisted form of a completed backend analysis. Each field
// has two tags:
//   - `db:"column_name"`: used by sqlx to scan database rows
//   - `json:"field_name"`: used for admin API responses
//
// Zones and recommendations are stored as JSON text columns.
type Analysis struct {
	ID              string    `db:"id" json:"id"`
	RequestID       string    `db:"request_id" json:"request_id"`
	PhotoSHA256     string    `db:"photo_sha256" json:"photo_sha256"`
	Provider        string    `db:"provider" json:"provider"`
	Model           string    `db:"model" json:"model"`
	RawReport       string    `db:"raw_report" json:"raw_report"`
	ZonesJSON       string    `db:"zones" json:"-"`
	Diagnosis       string    `db:"diagnosis" json:"diagnosis"`
	RecsJSON        string    `db:"recommendations" json:"-"`
	Confidence      float64   `db:"confidence" json:"confidence"`
	ImageQuality    string    `db:"image_quality" json:"image_quality"`
	AdditionalNotes *string   `db:"additional_notes" json:"additional_notes,omitempty"`
	HasThumbnail    bool      `db:"has_thumbnail" json:"has_thumbnail"`
	ArchiveURL      *string   `db:"archive_url" json:"archive_url,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// NewAnalysis flattens a record into a row ready for insertion.
func NewAnalysis(id, requestID, photoHash string, rec AnalysisRecord) (*Analysis, error) {
	zones, err := json.Marshal(rec.Zones)
	if err != nil {
		return nil, fmt.Errorf("encoding zones: %w", err)
	}
	recs := rec.Recommendations
	if recs == nil {
		recs = []string{}
	}
	recsJSON, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("encoding recommendations: %w", err)
	}

	return &Analysis{
		ID:              id,
		RequestID:       requestID,
		PhotoSHA256:     photoHash,
		ZonesJSON:       string(zones),
		Diagnosis:       rec.Diagnosis,
		RecsJSON:        string(recsJSON),
		Confidence:      rec.Confidence,
		ImageQuality:    rec.ImageQuality,
		AdditionalNotes: rec.AdditionalNotes,
	}, nil
}

// Record rebuilds the AnalysisRecord from the stored columns.
// Unknown zone keys in the stored JSON are dropped.
func (a *Analysis) Record() (AnalysisRecord, error) {
	rec := NewAnalysisRecord()

	if a.ZonesJSON != "" {
		var raw map[string]string
		if err := json.Unmarshal([]byte(a.ZonesJSON), &raw); err != nil {
			return rec, fmt.Errorf("decoding zones for %s: %w", a.ID, err)
		}
		for k, v := range raw {
			if ValidZone(k) {
				rec.Zones[Zone(k)] = v
			}
		}
	}
	if a.RecsJSON != "" {
		if err := json.Unmarshal([]byte(a.RecsJSON), &rec.Recommendations); err != nil {
			return rec, fmt.Errorf("decoding recommendations for %s: %w", a.ID, err)
		}
	}

	rec.Diagnosis = a.Diagnosis
	if ValidConfidence(a.Confidence) {
		rec.Confidence = a.Confidence
	}
	if a.ImageQuality != "" {
		rec.ImageQuality = a.ImageQuality
	}
	rec.AdditionalNotes = a.AdditionalNotes
	return rec, nil
}

// LLMCall tracks each call to an LLM provider for cost monitoring.
type LLMCall struct {
	ID          int64     `db:"id" json:"id"`
	PhotoSHA256 string    `db:"photo_sha256" json:"photo_sha256"`
	Provider    string    `db:"provider" json:"provider"`
	Model       string    `db:"model" json:"model"`
	Success     bool      `db:"success" json:"success"`
	StatusCode  *int      `db:"status_code" json:"status_code,omitempty"`
	DurationMs  *int64    `db:"duration_ms" json:"duration_ms,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// PhotoVariant names a stored photo file.
type PhotoVariant string

const (
	PhotoOriginal  PhotoVariant = "original"
	PhotoThumbnail PhotoVariant = "thumb"
)

// ValidPhotoVariant checks if a string is a known PhotoVariant.
func ValidPhotoVariant(s string) bool {
	switch PhotoVariant(s) {
	case PhotoOriginal, PhotoThumbnail:
		return true
	default:
		return false
	}
}
