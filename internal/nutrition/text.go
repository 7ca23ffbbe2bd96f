package nutrition

import (
	"fmt"
	"strings"
)

// DefaultPortionLabel picks a dish-aware serving label when the model did
// not provide a meaningful one.
func DefaultPortionLabel(entry Entry) string {
	name := strings.ToLower(entry.Name)
	switch {
	case strings.Contains(name, "ramen"), strings.Contains(name, "soup"), strings.Contains(name, "salad"):
		return "1 bowl"
	case strings.Contains(name, "pizza"):
		return "1 slice"
	case strings.Contains(name, "fried chicken"):
		return "3 pieces"
	default:
		return "1 serving"
	}
}

// GenerateDescription synthesizes a one-line dish description from the
// catalog entry so output is never blank.
func GenerateDescription(entry Entry) string {
	if len(entry.Ingredients) > 0 {
		items := entry.Ingredients
		if len(items) > 4 {
			items = items[:4]
		}
		return fmt.Sprintf("A %s featuring %s.", strings.ToLower(entry.Name), strings.Join(items, ", "))
	}
	return fmt.Sprintf("A serving of %s.", strings.ToLower(entry.Name))
}

// GenerateHealthNote derives a lightweight note from computed nutrients.
// No medical claims, just calorie/fiber/sodium thresholds.
func GenerateHealthNote(n map[string]float64) string {
	var notes []string
	if cal := n["calories_kcal"]; cal > 0 && cal <= 250 {
		notes = append(notes, "lower in calories")
	}
	if fiber := n["fiber_g"]; fiber >= 5 {
		notes = append(notes, "higher in fiber")
	}
	if sodium := n["sodium_mg"]; sodium >= 800 {
		notes = append(notes, "higher in sodium")
	}
	if len(notes) == 0 {
		return "Nutrition values may vary by ingredients and portion size."
	}
	return "This looks " + strings.Join(notes, " and ") + "."
}
