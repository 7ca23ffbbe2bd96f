// Package vision wraps the two model-backed capabilities the pipeline
// consumes: the food/non-food gate and the dish describer. Both run in an
// inference sidecar reached over HTTP; this package normalizes their loose
// payloads into fixed types at the boundary.
package vision

import (
	"context"
	"errors"
)

// ErrModel wraps any failure of the underlying classify/describe call.
var ErrModel = errors.New("model error")

// ErrTimeout marks a model call abandoned at its deadline.
var ErrTimeout = errors.New("model call timed out")

// FoodCheck is the gate's verdict on one image. Confidence is the model's
// confidence in that verdict, whichever way it went.
type FoodCheck struct {
	IsFood     bool
	Confidence float64
}

// DishDescription is the describer's normalized output. Description and
// HealthNote are optional free text; blanks are filled deterministically
// downstream.
type DishDescription struct {
	DishName     string
	PortionLabel string
	Confidence   float64
	Description  string
	HealthNote   string
}

// Gate classifies whether an image depicts food and can rank candidate
// text labels against an image.
type Gate interface {
	Classify(ctx context.Context, image []byte) (FoodCheck, error)
	TopTextMatch(ctx context.Context, image []byte, labels []string) (index int, probability float64, err error)
}

// Describer produces a dish name, portion label and confidence for a food
// image. Calls may be slow; callers guard them with a deadline.
type Describer interface {
	Describe(ctx context.Context, image []byte) (DishDescription, error)
}
