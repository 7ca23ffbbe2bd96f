// Package nutrition resolves a free-text dish name against the local
// catalog and derives a portion-scaled nutrient estimate. Everything here is
// pure and deterministic given the catalog; the worker owns all I/O.
package nutrition

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// A match below this score is too weak to report as a specific dish.
const matchFloor = 50

var (
	nonAlnumRe    = regexp.MustCompile(`[^a-z0-9\s\-\(\)]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	explicitGrams = regexp.MustCompile(`(\d{2,4})\s*g`)
	countedUnits  = regexp.MustCompile(`(\d+)\s*(pieces|piece|slices|slice|wings|wing)`)
)

// Normalize lowercases s and strips everything outside [a-z0-9 \-()].
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnumRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// BestMatch scores dishName against every entry's name and aliases with
// token-set similarity and returns the best entry with its 0..100 score.
// Weak matches fall back to the generic entry (when present) so a barely
// related dish is never reported as something specific; the raw score is
// still returned.
func BestMatch(dishName string, entries []Entry) (Entry, int, error) {
	if len(entries) == 0 {
		return Entry{}, 0, fmt.Errorf("nutrition catalog is empty")
	}

	dishNorm := Normalize(dishName)
	bestScore := -1
	var bestEntry Entry

	for _, e := range entries {
		score := fuzzy.TokenSetRatio(dishNorm, Normalize(e.Name))
		for _, alias := range e.Aliases {
			if s := fuzzy.TokenSetRatio(dishNorm, Normalize(alias)); s > score {
				score = s
			}
		}
		if score > bestScore {
			bestScore = score
			bestEntry = e
		}
	}

	if bestScore < matchFloor {
		for _, e := range entries {
			if e.ID == GenericEntryID {
				return e, bestScore, nil
			}
		}
	}
	return bestEntry, bestScore, nil
}

// EstimatePortionGrams turns a free-text portion label into grams. It is a
// best-effort heuristic: explicit grams win, then counted units, then bare
// unit keywords; anything unrecognized yields defaultGrams.
func EstimatePortionGrams(label string, defaultGrams int) int {
	if strings.TrimSpace(label) == "" {
		return defaultGrams
	}
	s := strings.ToLower(label)

	if m := explicitGrams.FindStringSubmatch(s); m != nil {
		g, _ := strconv.Atoi(m[1])
		return g
	}

	count := 1
	if m := countedUnits.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 1 {
			count = n
		}
	}

	unitGrams := defaultGrams
	switch {
	case strings.Contains(s, "bowl"):
		unitGrams = 520
	case strings.Contains(s, "plate"):
		unitGrams = 350
	case strings.Contains(s, "slice"):
		unitGrams = 110
	case strings.Contains(s, "piece"), strings.Contains(s, "wing"):
		unitGrams = 80
	case strings.Contains(s, "cup"):
		unitGrams = 240
	case strings.Contains(s, "small"):
		unitGrams = 250
	case strings.Contains(s, "medium"):
		unitGrams = 350
	case strings.Contains(s, "large"):
		unitGrams = 500
	}

	return unitGrams * count
}

// ScaleNutrients multiplies every per-100g value by grams/100.
func ScaleNutrients(entry Entry, grams int) map[string]float64 {
	factor := float64(grams) / 100.0
	out := make(map[string]float64, len(entry.Per100g))
	for k, v := range entry.Per100g {
		out[k] = v * factor
	}
	return out
}

// CalibratedConfidence blends the model's dish confidence with the catalog
// match score. The match dominates because raw model confidence is the less
// reliable of the two signals.
func CalibratedConfidence(dishConfidence float64, matchScore int) float64 {
	matchConf := clamp01(float64(matchScore) / 100.0)
	return clamp01(0.25*dishConfidence + 0.75*matchConf)
}

// MacroPercentOfCalories computes the carb/protein/fat share of total
// energy at 4/4/9 kcal per gram. A zero energy total yields all-zero shares.
func MacroPercentOfCalories(n map[string]float64) map[string]float64 {
	carbsG := n["carbs_g"]
	proteinG := n["protein_g"]
	fatG := n["fat_g"]

	totalKcal := n["calories_kcal"]
	if totalKcal == 0 {
		totalKcal = carbsG*4 + proteinG*4 + fatG*9
	}
	if totalKcal <= 0 {
		return map[string]float64{"carbs_pct": 0, "protein_pct": 0, "fat_pct": 0}
	}

	pct := func(kcal float64) float64 {
		if kcal > totalKcal {
			kcal = totalKcal
		}
		return kcal / totalKcal
	}
	return map[string]float64{
		"carbs_pct":   pct(carbsG * 4),
		"protein_pct": pct(proteinG * 4),
		"fat_pct":     pct(fatG * 9),
	}
}

// dailyValues is the fixed reference intake table. Sugar uses the added
// sugars DV as a rough reference.
var dailyValues = map[string]float64{
	"carbs_g":        275.0,
	"protein_g":      50.0,
	"fat_g":          78.0,
	"fiber_g":        28.0,
	"sodium_mg":      2300.0,
	"cholesterol_mg": 300.0,
	"sat_fat_g":      20.0,
	"sugar_g":        50.0,
	"vitamin_c_mg":   90.0,
	"iron_mg":        18.0,
}

// DailyValuePercent expresses each tracked nutrient as a fraction of its
// reference daily value, capped at 1.0.
func DailyValuePercent(n map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(dailyValues))
	for k, dv := range dailyValues {
		pct := 0.0
		if dv > 0 {
			pct = n[k] / dv
			if pct > 1.0 {
				pct = 1.0
			}
		}
		out[strings.ReplaceAll(k, "_", "")+"Pct"] = pct
	}
	return out
}

// RoundNutrients rounds mass-in-milligram and energy values to whole units
// and everything else to one decimal, so reports are stable across runs.
func RoundNutrients(n map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(n))
	for k, v := range n {
		if strings.HasSuffix(k, "_mg") || strings.HasSuffix(k, "_kcal") {
			out[k] = round(v, 0)
		} else {
			out[k] = round(v, 1)
		}
	}
	return out
}

// Round3 rounds to three decimals; used for confidences and percentages.
func Round3(v float64) float64 {
	return round(v, 3)
}

func round(v float64, decimals int) float64 {
	shift := math.Pow(10, float64(decimals))
	return math.Round(v*shift) / shift
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
