package parser

import (
	"strings"

	"github.com/fleveque/tongue-service/internal/model"
)

// zoneKeywords maps lowercase keywords to zones, in precedence order.
var zoneKeywords = []struct {
	keyword string
	zone    model.Zone
}{
	{"tip", model.ZoneTip},
	{"sides", model.ZoneSides},
	{"center", model.ZoneCenter},
	{"back", model.ZoneBack},
}

// splitLines splits on newlines and trims surrounding whitespace (including a
// trailing \r) from each line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}

// matchZone returns the first zone whose keyword appears in the lowercased line.
func matchZone(lower string) (model.Zone, bool) {
	for _, k := range zoneKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.zone, true
		}
	}
	return "", false
}

// bulletItem extracts a recommendation from a line carrying a bullet or hyphen.
// Exactly one leading "• " or "- " is removed.
func bulletItem(line string) (string, bool) {
	if !strings.ContainsAny(line, "•-") {
		return "", false
	}

	item := line
	switch {
	case strings.HasPrefix(item, "• "):
		item = strings.TrimPrefix(item, "• ")
	case strings.HasPrefix(item, "- "):
		item = strings.TrimPrefix(item, "- ")
	}

	item = strings.TrimSpace(item)
	if item == "-" || item == "•" {
		// A bare marker whose trailing space was trimmed with the line.
		return "", false
	}
	return item, item != ""
}
