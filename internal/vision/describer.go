package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

const describePrompt = `You are a nutrition assistant. Identify the food in the image.
Return ONLY valid JSON with these keys:
{ "dish_name": string, "portion_label": string, "confidence": number }
Rules:
- dish_name should be short (e.g. 'mixed green salad', 'fried chicken').
- portion_label examples: '1 bowl', '2 slices', '6 pieces', '1 plate', 'medium serving'.
`

// HTTPDescriber is a Describer backed by a vision-language model endpoint:
// POST {base}/v1/describe with an image and prompt, returning generated
// text that should contain a JSON block.
//
// The http.Client carries no timeout of its own; the per-call deadline is
// enforced by the caller's context so the pipeline stays in charge of
// wall-clock budgets.
type HTTPDescriber struct {
	baseURL string
	client  *http.Client

	mu     sync.Mutex
	loaded bool
}

// NewHTTPDescriber creates a describer client for the inference server at
// baseURL.
func NewHTTPDescriber(baseURL string) *HTTPDescriber {
	return &HTTPDescriber{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

type describeRequest struct {
	ImageB64 string `json:"image_b64"`
	Prompt   string `json:"prompt"`
}

type describeResponse struct {
	Text string `json:"text"`
}

// Warmup asks the sidecar to load model weights. Loading is expensive, so
// at most one load is in flight and a success is remembered for the process
// lifetime. A failed load is not latched: the next call retries, so a
// transient sidecar outage does not disable the describer forever.
func (d *HTTPDescriber) Warmup(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return nil
	}
	if err := d.load(ctx); err != nil {
		return err
	}
	d.loaded = true
	return nil
}

func (d *HTTPDescriber) load(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/load", nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: model load: %v", ErrModel, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: model load returned %s: %s", ErrModel, resp.Status, msg)
	}
	return nil
}

// Describe runs the model and normalizes its output. A response with no
// parsable JSON yields the generic default rather than an error.
func (d *HTTPDescriber) Describe(ctx context.Context, image []byte) (DishDescription, error) {
	body, err := json.Marshal(describeRequest{
		ImageB64: base64.StdEncoding.EncodeToString(image),
		Prompt:   describePrompt,
	})
	if err != nil {
		return DishDescription{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/describe", bytes.NewReader(body))
	if err != nil {
		return DishDescription{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return DishDescription{}, fmt.Errorf("%w: describe request: %v", ErrModel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return DishDescription{}, fmt.Errorf("%w: describe returned %s: %s", ErrModel, resp.Status, msg)
	}

	var out describeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return DishDescription{}, fmt.Errorf("%w: bad describe response: %v", ErrModel, err)
	}

	return ParseDishDescription(out.Text), nil
}
