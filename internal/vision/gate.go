package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Zero-shot labels for the binary food gate.
var gateLabels = []string{"a photo of food", "a photo of a non-food object"}

// HTTPGate is a Gate backed by a CLIP-style zero-shot classification
// endpoint: POST {base}/v1/classify with an image and candidate labels,
// returning one probability per label.
type HTTPGate struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGate creates a gate client for the inference server at baseURL.
func NewHTTPGate(baseURL string) *HTTPGate {
	return &HTTPGate{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type classifyRequest struct {
	ImageB64 string   `json:"image_b64"`
	Labels   []string `json:"labels"`
}

type classifyResponse struct {
	Probs []float64 `json:"probs"`
}

// Classify runs the two-label food/non-food classification.
func (g *HTTPGate) Classify(ctx context.Context, image []byte) (FoodCheck, error) {
	probs, err := g.classify(ctx, image, gateLabels)
	if err != nil {
		return FoodCheck{}, err
	}
	pFood := probs[0]
	if pFood >= 0.5 {
		return FoodCheck{IsFood: true, Confidence: pFood}, nil
	}
	return FoodCheck{IsFood: false, Confidence: 1.0 - pFood}, nil
}

// TopTextMatch returns the index and probability of the best-matching label.
func (g *HTTPGate) TopTextMatch(ctx context.Context, image []byte, labels []string) (int, float64, error) {
	if len(labels) == 0 {
		return 0, 0, fmt.Errorf("%w: no candidate labels", ErrModel)
	}
	probs, err := g.classify(ctx, image, labels)
	if err != nil {
		return 0, 0, err
	}

	bestIdx := 0
	for i, p := range probs {
		if p > probs[bestIdx] {
			bestIdx = i
		}
	}
	return bestIdx, probs[bestIdx], nil
}

func (g *HTTPGate) classify(ctx context.Context, image []byte, labels []string) ([]float64, error) {
	body, err := json.Marshal(classifyRequest{
		ImageB64: base64.StdEncoding.EncodeToString(image),
		Labels:   labels,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: classify request: %v", ErrModel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: classify returned %s: %s", ErrModel, resp.Status, msg)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: bad classify response: %v", ErrModel, err)
	}
	if len(out.Probs) != len(labels) {
		return nil, fmt.Errorf("%w: classify returned %d probs for %d labels", ErrModel, len(out.Probs), len(labels))
	}
	return out.Probs, nil
}
