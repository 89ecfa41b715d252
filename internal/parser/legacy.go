package parser

import (
	"strings"

	"github.com/fleveque/tongue-service/internal/model"
)

// ParseLegacy scans every line on its own, without section state. A single
// line can feed several fields: a zone, the diagnosis and a recommendation.
// No confidence, image quality or notes are produced in this mode.
func ParseLegacy(text string) model.LegacyReport {
	report := model.LegacyReport{
		Zones:           map[model.Zone]string{},
		Recommendations: []string{},
	}

	for _, line := range splitLines(text) {
		lower := strings.ToLower(line)

		if zone, ok := matchZone(lower); ok {
			report.Zones[zone] = line
		}

		// Later matches overwrite earlier ones.
		if strings.Contains(lower, "diagnosis") {
			report.Diagnosis = strings.TrimSpace(strings.TrimPrefix(line, "Diagnosis:"))
		}

		if item, ok := bulletItem(line); ok {
			report.Recommendations = append(report.Recommendations, item)
		}
	}

	return report
}
