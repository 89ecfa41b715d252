// Package parser turns the free-text tongue report returned by a vision model
// into structured records.
//
// Two parsers live here and they are deliberately kept apart:
//
//	ParseEnhanced: section-marker driven, fills every AnalysisRecord field
//	ParseLegacy: per-line keyword scan, fills zones/diagnosis/recommendations
//
// They can disagree on the same input. Both are total: any string, including
// the empty string, produces a record.
package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/fleveque/tongue-service/internal/model"
)

// section is the enhanced parser's "current section" state.
type section int

const (
	sectionNone section = iota
	sectionZones
	sectionDiagnosis
	sectionRecommendations
	sectionConfidence
	sectionImageQuality
	sectionNotes
)

// sectionMarker pairs the lowercase marker text with the section it opens.
type sectionMarker struct {
	text    string
	section section
}

// Checked in order; the first marker found on a line wins.
var sectionMarkers = []sectionMarker{
	{"tongue zones:", sectionZones},
	{"zones:", sectionZones},
	{"diagnosis:", sectionDiagnosis},
	{"recommendations:", sectionRecommendations},
	{"confidence:", sectionConfidence},
	{"image quality:", sectionImageQuality},
	{"notes:", sectionNotes},
}

// markerText returns the marker that opens s, used to skip header lines.
func markerText(s section) string {
	for _, m := range sectionMarkers {
		if m.section == s {
			return m.text
		}
	}
	return ""
}

// ParseEnhanced makes a single forward pass over the lines of text. A line
// that opens a new section is handed to that section in the same pass.
func ParseEnhanced(text string) model.AnalysisRecord {
	rec := model.NewAnalysisRecord()
	current := sectionNone
	diagnosisSet := false

	for _, line := range splitLines(text) {
		lower := strings.ToLower(line)

		for _, m := range sectionMarkers {
			if strings.Contains(lower, m.text) {
				current = m.section
				break
			}
		}

		switch current {
		case sectionZones:
			if zone, ok := matchZone(lower); ok {
				rec.Zones[zone] = line
			}

		case sectionDiagnosis:
			// First qualifying line wins; the rest of the section is elaboration.
			if !diagnosisSet && isContentLine(line, lower, current) {
				rec.Diagnosis = line
				diagnosisSet = true
			}

		case sectionRecommendations:
			if item, ok := bulletItem(line); ok {
				rec.Recommendations = append(rec.Recommendations, item)
			}

		case sectionConfidence:
			if c, ok := parseConfidence(line); ok {
				rec.Confidence = c
			}

		case sectionImageQuality:
			if isContentLine(line, lower, current) {
				rec.ImageQuality = line
			}

		case sectionNotes:
			if isContentLine(line, lower, current) {
				notes := line
				rec.AdditionalNotes = &notes
			}
		}
	}

	return rec
}

// isContentLine reports whether line is non-empty and is not the header of s.
func isContentLine(line, lower string, s section) bool {
	return line != "" && !strings.Contains(lower, markerText(s))
}

// parseConfidence strips the "confidence:" marker and parses what is left.
// Values outside [0,1], NaN and infinities are rejected, and a rejected line
// leaves the record's current confidence unchanged (it is not reset to
// DefaultConfidence), so a valid earlier value survives a bad later one.
func parseConfidence(line string) (float64, bool) {
	value := strings.TrimSpace(removeFold(line, "confidence:"))
	if value == "" {
		return 0, false
	}
	c, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(c) || math.IsInf(c, 0) || !model.ValidConfidence(c) {
		return 0, false
	}
	return c, true
}

// removeFold deletes every case-insensitive occurrence of marker from s.
// marker must be lowercase ASCII.
func removeFold(s, marker string) string {
	lower := strings.ToLower(s)
	if len(lower) != len(s) {
		// Case folding changed byte offsets; fall back to an exact match.
		return strings.ReplaceAll(s, marker, "")
	}

	var b strings.Builder
	for {
		i := strings.Index(lower, marker)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i+len(marker):]
		lower = lower[i+len(marker):]
	}
}
