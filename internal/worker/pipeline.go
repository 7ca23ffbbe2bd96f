package worker

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/infinity-samurai/food-ai/internal/models"
	"github.com/infinity-samurai/food-ai/internal/nutrition"
	"github.com/infinity-samurai/food-ai/internal/vision"
)

const nutritionWarning = "Nutrition is an estimate from a local database; actual values may vary."

// analyze runs the per-job pipeline and returns the terminal report. Any
// returned error fails the job; describer problems are recovered internally
// and never propagate.
func (w *Worker) analyze(ctx context.Context, job *models.Job) (*models.NutritionReport, error) {
	image, err := w.prepareImage(ctx, job.ImageKey)
	if err != nil {
		return nil, err
	}

	check, err := w.gate.Classify(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("food gate: %w", err)
	}
	isFood := check.IsFood && check.Confidence >= w.cfg.FoodThreshold
	w.log.Info("food gate", "job", job.ID, "gate_confidence", check.Confidence, "is_food", isFood)

	if !isFood {
		return &models.NutritionReport{
			Status:     models.JobStatusDone,
			IsFood:     false,
			Message:    "Image is not food",
			Confidence: nutrition.Round3(1.0 - check.Confidence),
		}, nil
	}

	dish, note := w.describeDish(ctx, job.ID, image)

	// When the describer produced nothing usable, pick the catalog dish the
	// gate ranks highest against the image.
	if isGenericDish(dish.DishName) {
		idx, prob, err := w.gate.TopTextMatch(ctx, image, w.dishLabels)
		if err != nil {
			return nil, fmt.Errorf("dish selection: %w", err)
		}
		dish.DishName = w.catalog[idx].Name
		if prob > dish.Confidence {
			dish.Confidence = prob
		}
		w.log.Info("gate dish selection", "job", job.ID, "dish", dish.DishName, "probability", prob)
	}

	return w.resolveReport(job.ID, dish, note)
}

// prepareImage fetches the upload and produces the bounded working copy
// used for every model call, so inference latency does not depend on the
// original upload size.
func (w *Worker) prepareImage(ctx context.Context, key string) ([]byte, error) {
	data, err := w.blobs.ReadBytes(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	maxSide := w.cfg.ImageMaxSide
	if b := img.Bounds(); b.Dx() > maxSide || b.Dy() > maxSide {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode working image: %w", err)
	}
	return buf.Bytes(), nil
}

// describeDish invokes the describer under its deadline when the operating
// mode allows it. All three outcomes (success, failure/timeout, disabled)
// are non-fatal; the advisory note records which path was taken.
func (w *Worker) describeDish(ctx context.Context, jobID string, image []byte) (vision.DishDescription, string) {
	dish := vision.DishDescription{DishName: "food", PortionLabel: "1 serving", Confidence: 0.35}

	switch {
	case w.cfg.FastMode:
		note := "FAST_MODE=1: skipping describer for speed; using gate dish selection."
		w.log.Info("describer skipped", "job", jobID, "reason", "fast_mode")
		return dish, note

	case !w.cfg.UseDescriber:
		note := "Describer disabled (USE_VLM=0). Using generic estimate (no dish recognition)."
		w.log.Info("describer skipped", "job", jobID, "reason", "disabled")
		return dish, note
	}

	if warmer, ok := w.describer.(interface{ Warmup(context.Context) error }); ok {
		_, err := callWithDeadline(ctx, w.cfg.DescriberLoadTimeout, "describer load",
			func(cctx context.Context) (struct{}, error) {
				return struct{}{}, warmer.Warmup(cctx)
			})
		if err != nil {
			note := fmt.Sprintf("Describer unavailable (%v). Using gate fallback.", err)
			w.log.Warn("describer load failed", "job", jobID, "error", err)
			return dish, note
		}
	}

	described, err := callWithDeadline(ctx, w.cfg.DescriberTimeout, "describer inference",
		func(cctx context.Context) (vision.DishDescription, error) {
			return w.describer.Describe(cctx, image)
		})
	if err != nil {
		note := fmt.Sprintf("Describer unavailable (%v). Using gate fallback.", err)
		w.log.Warn("describer failed", "job", jobID, "error", err)
		return dish, note
	}

	w.log.Info("describer result", "job", jobID,
		"dish", described.DishName, "portion", described.PortionLabel, "confidence", described.Confidence)
	return described, ""
}

// resolveReport maps the dish description onto the catalog and assembles
// the final report. It cannot fail: weak matches land on the generic entry.
func (w *Worker) resolveReport(jobID string, dish vision.DishDescription, note string) (*models.NutritionReport, error) {
	entry, matchScore, err := nutrition.BestMatch(dish.DishName, w.catalog)
	if err != nil {
		return nil, fmt.Errorf("nutrition resolution: %w", err)
	}

	portionLabel := dish.PortionLabel
	if isGenericPortion(portionLabel) {
		portionLabel = nutrition.DefaultPortionLabel(entry)
	}

	grams := nutrition.EstimatePortionGrams(portionLabel, w.cfg.DefaultGrams)
	nutrients := nutrition.RoundNutrients(nutrition.ScaleNutrients(entry, grams))
	confidence := nutrition.CalibratedConfidence(dish.Confidence, matchScore)

	description := dish.Description
	if description == "" {
		description = nutrition.GenerateDescription(entry)
	}
	healthNote := dish.HealthNote
	if healthNote == "" {
		healthNote = nutrition.GenerateHealthNote(nutrients)
	}

	var notes []string
	if note != "" {
		notes = append(notes, note)
	}

	w.log.Info("resolved", "job", jobID,
		"dish", entry.Name, "match_score", matchScore, "grams", grams, "confidence", confidence)

	return &models.NutritionReport{
		Status:         models.JobStatusDone,
		IsFood:         true,
		Dish:           entry.Name,
		ModelDishGuess: dish.DishName,
		Confidence:     nutrition.Round3(confidence),
		Notes:          notes,
		Description:    description,
		HealthNote:     healthNote,
		Portion: &models.Portion{
			Label:         portionLabel,
			GramsEstimate: grams,
		},
		Nutrition:              nutrients,
		MacroPercentOfCalories: round3Map(nutrition.MacroPercentOfCalories(nutrients)),
		DailyValuePercent:      round3Map(nutrition.DailyValuePercent(nutrients)),
		Ingredients:            entry.Ingredients,
		PotentialAllergens:     entry.Allergens,
		Assumptions: []string{
			fmt.Sprintf("Portion assumed from '%s' (~%dg)", portionLabel, grams),
			"Dish mapped from model output to local nutrition DB",
		},
		Warning: nutritionWarning,
	}, nil
}

func isGenericDish(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "food", "unknown":
		return true
	}
	return false
}

func isGenericPortion(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "1 serving", "serving":
		return true
	}
	return false
}

func round3Map(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = nutrition.Round3(v)
	}
	return out
}
