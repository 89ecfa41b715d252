// Package model defines the core data types for the tongue analysis service.
// Struct tags (`json:"..."`, `yaml:"..."` and `db:"..."`) tell the serialization libraries
// how to map fields.
package model

// Zone is one of the four tongue regions a report can describe.
type Zone string

const (
	ZoneTip    Zone = "Tip"
	ZoneSides  Zone = "Sides"
	ZoneCenter Zone = "Center"
	ZoneBack   Zone = "Back"
)

// AllZones lists the zones in keyword precedence order.
var AllZones = []Zone{ZoneTip, ZoneSides, ZoneCenter, ZoneBack}

// ValidZone checks if a string names one of the canonical zones.
func ValidZone(s string) bool {
	for _, z := range AllZones {
		if string(z) == s {
			return true
		}
	}
	return false
}

const (
	DefaultConfidence   = 0.8
	DefaultImageQuality = "Good"
)

// AnalysisRecord is the structured result of one completed analysis.
// A record is built once and never mutated; a new analysis produces a new record.
type AnalysisRecord struct {
	Zones           map[Zone]string `json:"zones" yaml:"zones"`
	Diagnosis       string          `json:"diagnosis" yaml:"diagnosis"`
	Recommendations []string        `json:"recommendations" yaml:"recommendations"`
	Confidence      float64         `json:"confidence" yaml:"confidence"`
	ImageQuality    string          `json:"imageQuality" yaml:"imageQuality"`
	AdditionalNotes *string         `json:"additionalNotes" yaml:"additionalNotes"`
}

// NewAnalysisRecord returns a record with every field at its default.
func NewAnalysisRecord() AnalysisRecord {
	return AnalysisRecord{
		Zones:           map[Zone]string{},
		Recommendations: []string{},
		Confidence:      DefaultConfidence,
		ImageQuality:    DefaultImageQuality,
	}
}

// Clone returns a deep copy so callers can hold a record without sharing maps or slices.
func (r AnalysisRecord) Clone() AnalysisRecord {
	out := r
	out.Zones = make(map[Zone]string, len(r.Zones))
	for k, v := range r.Zones {
		out.Zones[k] = v
	}
	out.Recommendations = append([]string{}, r.Recommendations...)
	if r.AdditionalNotes != nil {
		notes := *r.AdditionalNotes
		out.AdditionalNotes = &notes
	}
	return out
}

// ValidConfidence reports whether c may be stored as a record confidence.
func ValidConfidence(c float64) bool {
	// NaN fails both comparisons.
	return c >= 0 && c <= 1
}

// LegacyReport is the three-field shape produced by the keyword-scan parser.
type LegacyReport struct {
	Zones           map[Zone]string `json:"zones" yaml:"zones"`
	Diagnosis       string          `json:"diagnosis" yaml:"diagnosis"`
	Recommendations []string        `json:"recommendations" yaml:"recommendations"`
}
