package agent

import (
	"strings"

	"github.com/triageops/controlplane/internal/model"
)

// ParseFinalAnalysis extracts the ROOT CAUSE / FINDINGS / RECOMMENDATIONS
// / AUTO-FIX sections from an LLM's final investigation message, per
// original_source's parse_final_analysis/extract_section. Bullet lines
// (leading "-" or "*") under FINDINGS/RECOMMENDATIONS become list items;
// everything else in a section is ignored.
func ParseFinalAnalysis(raw string) model.AgentResult {
	result := model.AgentResult{RawResponse: raw}

	result.RootCause = extractSection(raw, "ROOT CAUSE")
	result.Findings = extractBullets(raw, "FINDINGS")
	result.Recommendations = extractBullets(raw, "RECOMMENDATIONS")

	autoFix := strings.ToLower(extractSection(raw, "AUTO-FIX"))
	result.AutoFixProposed = autoFix != "" && autoFix != "no" && autoFix != "none"
	if result.AutoFixProposed {
		result.AutoFixCommand = extractSection(raw, "AUTO-FIX")
	}

	return result
}

// extractSection returns the single-line value following "<marker>:" up
// to the next recognized section marker or end of text.
func extractSection(raw, marker string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, marker+":") {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(trimmed, marker+":"))
		if value != "" {
			return value
		}
		// Value on the following non-bullet line.
		if i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if next != "" && !isBullet(next) && !isSectionMarker(next) {
				return next
			}
		}
		return ""
	}
	return ""
}

// extractBullets collects every "- " / "* " prefixed line following
// "<marker>:" until the next section marker.
func extractBullets(raw, marker string) []string {
	lines := strings.Split(raw, "\n")
	var out []string
	inSection := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, marker+":") {
			inSection = true
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, marker+":"))
			if isBullet(rest) {
				out = append(out, strings.TrimSpace(rest[1:]))
			}
			continue
		}
		if !inSection {
			continue
		}
		if isSectionMarker(trimmed) {
			break
		}
		if isBullet(trimmed) {
			out = append(out, strings.TrimSpace(trimmed[1:]))
		}
	}
	return out
}

var sectionMarkers = []string{"ROOT CAUSE", "FINDINGS", "RECOMMENDATIONS", "AUTO-FIX"}

func isSectionMarker(line string) bool {
	for _, m := range sectionMarkers {
		if strings.HasPrefix(line, m+":") {
			return true
		}
	}
	return false
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*")
}
