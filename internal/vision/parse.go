package vision

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var jsonBlockRe = regexp.MustCompile(`\{[\s\S]*\}`)

// ParseDishDescription extracts the first {...} block from model output and
// normalizes it into a DishDescription. Models disagree on key spellings
// and on whether confidence is a fraction, a percent, or a string; all of
// that ambiguity is resolved here, once, so the pipeline sees one schema.
func ParseDishDescription(text string) DishDescription {
	fallback := DishDescription{DishName: "food", PortionLabel: "1 serving", Confidence: 0.5}

	raw := jsonBlockRe.FindString(text)
	if raw == "" {
		return fallback
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fallback
	}

	return DishDescription{
		DishName:     firstString(payload, "food", "dish_name", "dish"),
		PortionLabel: firstString(payload, "1 serving", "portion_label", "portion"),
		Confidence:   coerceConfidence(payload["confidence"]),
		Description:  strings.TrimSpace(stringValue(payload["description"])),
		HealthNote:   strings.TrimSpace(stringValue(payload["health_note"])),
	}
}

func firstString(payload map[string]any, fallback string, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(stringValue(payload[k])); s != "" {
			return s
		}
	}
	return fallback
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// coerceConfidence normalizes a confidence field to [0,1]. Accepted inputs:
// fractions, percents (2..100), and strings like "60%" or "0.6". Anything
// unreadable becomes 0.5.
func coerceConfidence(v any) float64 {
	if v == nil {
		return 0.5
	}

	var n float64
	switch val := v.(type) {
	case float64:
		n = val
	case string:
		s := strings.TrimSpace(val)
		if strings.HasSuffix(s, "%") {
			p, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
			if err != nil {
				return 0.5
			}
			return clamp01(p / 100.0)
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0.5
		}
		n = p
	default:
		return 0.5
	}

	// Values above 1 up to 100 are taken as percents.
	if n > 1.0 && n <= 100.0 {
		n /= 100.0
	}
	return clamp01(n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
