package vision

import "testing"

func TestParseDishDescription(t *testing.T) {
	tests := []struct {
		name string
		text string
		want DishDescription
	}{
		{
			name: "clean json",
			text: `{"dish_name": "fried chicken", "portion_label": "3 pieces", "confidence": 0.8}`,
			want: DishDescription{DishName: "fried chicken", PortionLabel: "3 pieces", Confidence: 0.8},
		},
		{
			name: "json inside prose",
			text: "Sure! Here is the answer:\n```json\n{\"dish_name\": \"ramen\", \"portion_label\": \"1 bowl\", \"confidence\": 0.7}\n```\nHope that helps.",
			want: DishDescription{DishName: "ramen", PortionLabel: "1 bowl", Confidence: 0.7},
		},
		{
			name: "alternate key spellings",
			text: `{"dish": "sushi", "portion": "8 pieces", "confidence": 0.6}`,
			want: DishDescription{DishName: "sushi", PortionLabel: "8 pieces", Confidence: 0.6},
		},
		{
			name: "percent number confidence",
			text: `{"dish_name": "pizza", "portion_label": "2 slices", "confidence": 60}`,
			want: DishDescription{DishName: "pizza", PortionLabel: "2 slices", Confidence: 0.6},
		},
		{
			name: "percent string confidence",
			text: `{"dish_name": "pizza", "portion_label": "2 slices", "confidence": "60%"}`,
			want: DishDescription{DishName: "pizza", PortionLabel: "2 slices", Confidence: 0.6},
		},
		{
			name: "fraction string confidence",
			text: `{"dish_name": "pizza", "portion_label": "2 slices", "confidence": "0.6"}`,
			want: DishDescription{DishName: "pizza", PortionLabel: "2 slices", Confidence: 0.6},
		},
		{
			name: "unreadable confidence",
			text: `{"dish_name": "pizza", "portion_label": "2 slices", "confidence": "very sure"}`,
			want: DishDescription{DishName: "pizza", PortionLabel: "2 slices", Confidence: 0.5},
		},
		{
			name: "missing fields",
			text: `{"confidence": 0.9}`,
			want: DishDescription{DishName: "food", PortionLabel: "1 serving", Confidence: 0.9},
		},
		{
			name: "no json at all",
			text: "I cannot identify this image.",
			want: DishDescription{DishName: "food", PortionLabel: "1 serving", Confidence: 0.5},
		},
		{
			name: "broken json",
			text: `{"dish_name": "pizza",`,
			want: DishDescription{DishName: "food", PortionLabel: "1 serving", Confidence: 0.5},
		},
		{
			name: "free text fields",
			text: `{"dish_name": "ramen", "portion_label": "1 bowl", "confidence": 0.7, "description": " Rich pork broth. ", "health_note": "High in sodium."}`,
			want: DishDescription{DishName: "ramen", PortionLabel: "1 bowl", Confidence: 0.7, Description: "Rich pork broth.", HealthNote: "High in sodium."},
		},
		{
			name: "confidence above one hundred clamps",
			text: `{"dish_name": "pizza", "confidence": 250}`,
			want: DishDescription{DishName: "pizza", PortionLabel: "1 serving", Confidence: 1.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDishDescription(tt.text)
			if got != tt.want {
				t.Errorf("ParseDishDescription(%q)\n got %+v\nwant %+v", tt.text, got, tt.want)
			}
		})
	}
}
