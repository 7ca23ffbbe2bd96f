package models

// Portion is the estimated serving behind a nutrition report.
type Portion struct {
	Label         string `json:"label"`
	GramsEstimate int    `json:"grams_estimate"`
}

// NutritionReport is the terminal result of a successful analysis job.
// Field names mirror the wire format consumed by clients; every done job
// carries a complete report, including the not-food case.
type NutritionReport struct {
	Status     string  `json:"status"`
	IsFood     bool    `json:"is_food"`
	Message    string  `json:"message,omitempty"`
	Confidence float64 `json:"confidence"`

	Dish           string   `json:"dish,omitempty"`
	ModelDishGuess string   `json:"model_dish_guess,omitempty"`
	Notes          []string `json:"notes,omitempty"`
	Description    string   `json:"description,omitempty"`
	HealthNote     string   `json:"health_note,omitempty"`

	Portion                *Portion           `json:"portion,omitempty"`
	Nutrition              map[string]float64 `json:"nutrition,omitempty"`
	MacroPercentOfCalories map[string]float64 `json:"macro_percent_of_calories,omitempty"`
	DailyValuePercent      map[string]float64 `json:"daily_value_percent,omitempty"`

	Ingredients        []string `json:"ingredients,omitempty"`
	PotentialAllergens []string `json:"potential_allergens,omitempty"`
	Assumptions        []string `json:"assumptions,omitempty"`
	Warning            string   `json:"warning,omitempty"`
}
