package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fleveque/tongue-service/internal/model"
)

func strPtr(s string) *string { return &s }

const sampleReport = `Tongue Zones:
Tip: red with raised papillae
Sides: pale and scalloped
Center: thin white coating
Back: thick yellow greasy coating

Diagnosis:
Spleen qi deficiency with damp heat
Heat is concentrated in the heart.

Recommendations:
- Eat warm, cooked meals
• Avoid cold drinks
-   Sleep before 11pm

Confidence: 0.85

Image Quality:
Fair

Notes:
Lighting was slightly warm.`

func TestParseEnhanced_FullReport(t *testing.T) {
	got := ParseEnhanced(sampleReport)

	want := model.AnalysisRecord{
		Zones: map[model.Zone]string{
			model.ZoneTip:    "Tip: red with raised papillae",
			model.ZoneSides:  "Sides: pale and scalloped",
			model.ZoneCenter: "Center: thin white coating",
			model.ZoneBack:   "Back: thick yellow greasy coating",
		},
		Diagnosis:       "Spleen qi deficiency with damp heat",
		Recommendations: []string{"Eat warm, cooked meals", "Avoid cold drinks", "Sleep before 11pm"},
		Confidence:      0.85,
		ImageQuality:    "Fair",
		AdditionalNotes: strPtr("Lighting was slightly warm."),
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseEnhanced mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEnhanced_EmptyInput(t *testing.T) {
	got := ParseEnhanced("")

	want := model.AnalysisRecord{
		Zones:           map[model.Zone]string{},
		Diagnosis:       "",
		Recommendations: []string{},
		Confidence:      0.8,
		ImageQuality:    "Good",
		AdditionalNotes: nil,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("empty input mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEnhanced_ZonesFromSection(t *testing.T) {
	got := ParseEnhanced("Zones:\nTip: red\nSides: pale")

	want := map[model.Zone]string{
		model.ZoneTip:   "Tip: red",
		model.ZoneSides: "Sides: pale",
	}
	if diff := cmp.Diff(want, got.Zones); diff != "" {
		t.Errorf("zones mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEnhanced_ZoneLinesOutsideSectionIgnored(t *testing.T) {
	got := ParseEnhanced("Tip: red\nSides: pale")
	if len(got.Zones) != 0 {
		t.Errorf("expected no zones before a zones marker, got %v", got.Zones)
	}
}

func TestParseEnhanced_ZonePrecedence(t *testing.T) {
	tests := []struct {
		name string
		line string
		want model.Zone
	}{
		{"tip beats sides", "sides and tip both red", model.ZoneTip},
		{"sides beats center", "center and sides swollen", model.ZoneSides},
		{"center beats back", "back coating reaches center", model.ZoneCenter},
		{"back alone", "BACK: greasy", model.ZoneBack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseEnhanced("zones:\n" + tt.line)
			if len(got.Zones) != 1 {
				t.Fatalf("expected exactly one zone, got %v", got.Zones)
			}
			if got.Zones[tt.want] != tt.line {
				t.Errorf("expected zone %s = %q, got %v", tt.want, tt.line, got.Zones)
			}
		})
	}
}

func TestParseEnhanced_LastZoneLineWins(t *testing.T) {
	got := ParseEnhanced("Tongue zones:\nTip: red\nTip: very red")
	if got.Zones[model.ZoneTip] != "Tip: very red" {
		t.Errorf("expected last tip line to win, got %q", got.Zones[model.ZoneTip])
	}
}

func TestParseEnhanced_Confidence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"inline value", "confidence: 0.95", 0.95},
		{"mixed case marker", "CONFIDENCE: 0.4", 0.4},
		{"value on next line", "Confidence:\n0.6", 0.6},
		{"malformed keeps default", "confidence: high", 0.8},
		{"malformed keeps prior", "confidence: 0.3\nconfidence: high", 0.3},
		{"later valid overwrites", "confidence: 0.3\nconfidence: 0.7", 0.7},
		{"above range rejected", "confidence: 1.5", 0.8},
		// Rejected values keep the running value rather than resetting to 0.8.
		{"above range keeps prior", "confidence: 0.3\nconfidence: 1.5", 0.3},
		{"negative rejected", "confidence: -0.2", 0.8},
		{"nan rejected", "confidence: NaN", 0.8},
		{"infinity rejected", "confidence: +Inf", 0.8},
		{"percent rejected", "confidence: 85%", 0.8},
		{"bounds accepted", "confidence: 1", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseEnhanced(tt.input)
			if got.Confidence != tt.want {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.want)
			}
		})
	}
}

func TestParseEnhanced_Recommendations(t *testing.T) {
	input := strings.Join([]string{
		"Recommendations:",
		"- first",
		"• second",
		"- - nested hyphen",
		// A lone marker is dropped on purpose even though "-" is non-empty
		// after trimming; it is an empty bullet, not advice.
		"-",
		"• ",
		"plain line without marker",
		"drink ginger-tea daily",
	}, "\n")

	got := ParseEnhanced(input)

	want := []string{"first", "second", "- nested hyphen", "drink ginger-tea daily"}
	if diff := cmp.Diff(want, got.Recommendations); diff != "" {
		t.Errorf("recommendations mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEnhanced_DiagnosisFirstLineWins(t *testing.T) {
	got := ParseEnhanced("diagnosis:\n\nLiver qi stagnation\nWith some blood stasis")
	if got.Diagnosis != "Liver qi stagnation" {
		t.Errorf("diagnosis = %q, want first content line", got.Diagnosis)
	}
}

// A marker line is never taken as the diagnosis itself, so content that shares
// the header line is not captured in enhanced mode.
func TestParseEnhanced_DiagnosisInlineWithMarkerSkipped(t *testing.T) {
	got := ParseEnhanced("Diagnosis: Yin deficiency")
	if got.Diagnosis != "" {
		t.Errorf("diagnosis = %q, want empty", got.Diagnosis)
	}
}

func TestParseEnhanced_ImageQualityAndNotesLastWins(t *testing.T) {
	input := "Image quality:\nGood\nBlurry at the edges\nNotes:\nfirst note\nsecond note"
	got := ParseEnhanced(input)

	if got.ImageQuality != "Blurry at the edges" {
		t.Errorf("image quality = %q", got.ImageQuality)
	}
	if got.AdditionalNotes == nil || *got.AdditionalNotes != "second note" {
		t.Errorf("notes = %v", got.AdditionalNotes)
	}
}

func TestParseEnhanced_CRLFInput(t *testing.T) {
	got := ParseEnhanced("Zones:\r\nTip: red\r\nConfidence: 0.5\r\n")
	if got.Zones[model.ZoneTip] != "Tip: red" {
		t.Errorf("expected CR to be trimmed, got %q", got.Zones[model.ZoneTip])
	}
	if got.Confidence != 0.5 {
		t.Errorf("confidence = %v", got.Confidence)
	}
}

func TestParseEnhanced_Total(t *testing.T) {
	inputs := []string{
		"",
		"\n\n\n",
		"\xff\xfe\xfd",
		"zones:",
		"confidence:",
		"notes:\n",
		"İİİ confidence: 0.2",
		strings.Repeat("- ", 1000),
		"Recommendations:\n•",
	}

	for _, in := range inputs {
		rec := ParseEnhanced(in)
		if rec.Zones == nil || rec.Recommendations == nil {
			t.Errorf("ParseEnhanced(%q) returned nil collections", in)
		}
		if !model.ValidConfidence(rec.Confidence) {
			t.Errorf("ParseEnhanced(%q) confidence out of range: %v", in, rec.Confidence)
		}
		for _, r := range rec.Recommendations {
			if r == "" {
				t.Errorf("ParseEnhanced(%q) produced an empty recommendation", in)
			}
		}
		for z := range rec.Zones {
			if !model.ValidZone(string(z)) {
				t.Errorf("ParseEnhanced(%q) produced zone %q", in, z)
			}
		}

		legacy := ParseLegacy(in)
		if legacy.Zones == nil || legacy.Recommendations == nil {
			t.Errorf("ParseLegacy(%q) returned nil collections", in)
		}
	}
}

func TestParseLegacy(t *testing.T) {
	input := strings.Join([]string{
		"The tip looks red",
		"Sides are pale",
		"Diagnosis: Heart fire",
		"center is cracked",
		"Final diagnosis: heat pattern",
		"- Drink chrysanthemum tea",
		"• Rest more",
	}, "\n")

	got := ParseLegacy(input)

	want := model.LegacyReport{
		Zones: map[model.Zone]string{
			model.ZoneTip:    "The tip looks red",
			model.ZoneSides:  "Sides are pale",
			model.ZoneCenter: "center is cracked",
		},
		Diagnosis:       "Final diagnosis: heat pattern",
		Recommendations: []string{"Drink chrysanthemum tea", "Rest more"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseLegacy mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLegacy_DiagnosisPrefixStripped(t *testing.T) {
	got := ParseLegacy("Diagnosis:   Qi stagnation  ")
	if got.Diagnosis != "Qi stagnation" {
		t.Errorf("diagnosis = %q", got.Diagnosis)
	}
}

func TestParseLegacy_Empty(t *testing.T) {
	got := ParseLegacy("")
	want := model.LegacyReport{
		Zones:           map[model.Zone]string{},
		Recommendations: []string{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("empty legacy mismatch (-want +got):\n%s", diff)
	}
}

// The two modes read the same report differently. These differences are
// expected behavior and are pinned here so they do not drift.
func TestParseModes_DocumentedDifferences(t *testing.T) {
	input := "Diagnosis: Yin deficiency\nTip - red"

	enhanced := ParseEnhanced(input)
	legacy := ParseLegacy(input)

	// Legacy reads the diagnosis off the marker line; enhanced skips marker lines.
	if legacy.Diagnosis != "Yin deficiency" {
		t.Errorf("legacy diagnosis = %q", legacy.Diagnosis)
	}
	if enhanced.Diagnosis != "Tip - red" {
		t.Errorf("enhanced diagnosis = %q", enhanced.Diagnosis)
	}

	// Legacy treats the hyphenated zone line as both a zone and a recommendation.
	if legacy.Zones[model.ZoneTip] != "Tip - red" {
		t.Errorf("legacy tip zone = %q", legacy.Zones[model.ZoneTip])
	}
	if len(legacy.Recommendations) != 1 || legacy.Recommendations[0] != "Tip - red" {
		t.Errorf("legacy recommendations = %v", legacy.Recommendations)
	}
	if len(enhanced.Zones) != 0 || len(enhanced.Recommendations) != 0 {
		t.Errorf("enhanced should not read zones or recommendations outside their sections: %+v", enhanced)
	}
}
