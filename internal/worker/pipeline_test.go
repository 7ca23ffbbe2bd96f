package worker

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/infinity-samurai/food-ai/internal/blob"
	"github.com/infinity-samurai/food-ai/internal/config"
	"github.com/infinity-samurai/food-ai/internal/models"
	"github.com/infinity-samurai/food-ai/internal/nutrition"
	"github.com/infinity-samurai/food-ai/internal/storage"
	"github.com/infinity-samurai/food-ai/internal/vision"
)

type fakeGate struct {
	check    vision.FoodCheck
	checkErr error
	topIdx   int
	topProb  float64
	topErr   error
	topCalls int
}

func (g *fakeGate) Classify(ctx context.Context, image []byte) (vision.FoodCheck, error) {
	return g.check, g.checkErr
}

func (g *fakeGate) TopTextMatch(ctx context.Context, image []byte, labels []string) (int, float64, error) {
	g.topCalls++
	return g.topIdx, g.topProb, g.topErr
}

type fakeDescriber struct {
	desc  vision.DishDescription
	err   error
	delay time.Duration
}

func (d *fakeDescriber) Describe(ctx context.Context, image []byte) (vision.DishDescription, error) {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return vision.DishDescription{}, ctx.Err()
		}
	}
	return d.desc, d.err
}

// stubbornDescriber blocks forever and ignores cancellation, like a native
// model call that cannot be interrupted.
type stubbornDescriber struct {
	release chan struct{}
}

func (d *stubbornDescriber) Describe(ctx context.Context, image []byte) (vision.DishDescription, error) {
	<-d.release
	return vision.DishDescription{}, nil
}

type testEnv struct {
	worker *Worker
	repo   *storage.JobRepository
	gate   *fakeGate // nil when the test injects a different Gate
	key    string
}

func newTestEnv(t *testing.T, cfg config.Config, gate vision.Gate, describer vision.Describer) *testEnv {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := storage.NewJobRepository(db)

	store, err := blob.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}

	img := imaging.New(800, 600, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatalf("encode fixture image: %v", err)
	}
	key, err := store.SaveBytes(context.Background(), "fixture.jpg", buf.Bytes())
	if err != nil {
		t.Fatalf("SaveBytes: %v", err)
	}

	catalog, err := nutrition.LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		worker: New(cfg, repo, store, gate, describer, catalog, logger),
		repo:   repo,
		key:    key,
	}
	env.gate, _ = gate.(*fakeGate)
	return env
}

func defaultConfig() config.Config {
	return config.Config{
		FoodThreshold:        0.6,
		ImageMaxSide:         384,
		DefaultGrams:         350,
		PollInterval:         10 * time.Millisecond,
		WorkerConcurrency:    1,
		UseDescriber:         true,
		DescriberLoadTimeout: time.Second,
		DescriberTimeout:     time.Second,
	}
}

// runJob enqueues one job for the fixture image and processes it to a
// terminal state.
func runJob(t *testing.T, env *testEnv) *models.Job {
	t.Helper()
	ctx := context.Background()

	job, err := env.repo.Create(ctx, env.key, models.ImageSourceLocal)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err := env.repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("claim returned %+v, want job %s", claimed, job.ID)
	}

	env.worker.process(ctx, claimed)

	got, err := env.repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.Terminal() {
		t.Fatalf("job did not reach a terminal state: %s", got.Status)
	}
	return got
}

func TestPipeline_NotFood(t *testing.T) {
	gate := &fakeGate{check: vision.FoodCheck{IsFood: false, Confidence: 0.9}}
	env := newTestEnv(t, defaultConfig(), gate, &fakeDescriber{})

	job := runJob(t, env)

	if job.Status != models.JobStatusDone {
		t.Fatalf("status = %s, want done", job.Status)
	}
	r := job.Result
	if r == nil {
		t.Fatal("done job must carry a result")
	}
	if r.IsFood {
		t.Error("expected is_food=false")
	}
	if math.Abs(r.Confidence-0.1) > 1e-9 {
		t.Errorf("confidence = %v, want 0.1", r.Confidence)
	}
	if r.Portion != nil || len(r.Nutrition) != 0 || r.Dish != "" {
		t.Errorf("not-food report must not carry nutrition fields: %+v", r)
	}
}

func TestPipeline_DescriberSuccess(t *testing.T) {
	gate := &fakeGate{check: vision.FoodCheck{IsFood: true, Confidence: 0.95}}
	describer := &fakeDescriber{desc: vision.DishDescription{
		DishName:     "fried chicken",
		PortionLabel: "3 pieces",
		Confidence:   0.8,
	}}
	env := newTestEnv(t, defaultConfig(), gate, describer)

	job := runJob(t, env)

	r := job.Result
	if r == nil || job.Status != models.JobStatusDone {
		t.Fatalf("expected done with result, got %+v", job)
	}
	if r.Dish != "Fried Chicken" || r.ModelDishGuess != "fried chicken" {
		t.Errorf("dish = %q / guess = %q", r.Dish, r.ModelDishGuess)
	}
	if r.Portion == nil || r.Portion.GramsEstimate != 240 {
		t.Errorf("grams = %+v, want 240 (3 x 80)", r.Portion)
	}
	// Exact name match scores 100: 0.25*0.8 + 0.75*1.0.
	if math.Abs(r.Confidence-0.95) > 1e-9 {
		t.Errorf("confidence = %v, want 0.95", r.Confidence)
	}
	if len(r.Notes) != 0 {
		t.Errorf("successful describe should leave no advisory notes, got %v", r.Notes)
	}
	if env.gate.topCalls != 0 {
		t.Error("specific dish name should not trigger gate dish selection")
	}
	if r.Description == "" || r.HealthNote == "" || r.Warning == "" {
		t.Error("report text fields must never be blank")
	}
	if want := 290.0 * 2.4; r.Nutrition["calories_kcal"] != math.Round(want) {
		t.Errorf("calories_kcal = %v, want %v", r.Nutrition["calories_kcal"], math.Round(want))
	}
}

func TestPipeline_DescriberTimeoutFallsBack(t *testing.T) {
	cfg := defaultConfig()
	cfg.DescriberTimeout = 50 * time.Millisecond

	gate := &fakeGate{
		check:   vision.FoodCheck{IsFood: true, Confidence: 0.9},
		topIdx:  4, // Hamburger
		topProb: 0.7,
	}
	stubborn := &stubbornDescriber{release: make(chan struct{})}
	defer close(stubborn.release)

	env := newTestEnv(t, cfg, gate, stubborn)

	start := time.Now()
	job := runJob(t, env)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("pipeline took %s; deadline guard should bound a stuck call", elapsed)
	}

	if job.Status != models.JobStatusDone {
		t.Fatalf("describer timeout must not fail the job: status=%s error=%s", job.Status, job.Error)
	}
	r := job.Result
	if r.Dish != "Hamburger" {
		t.Errorf("fallback dish = %q, want Hamburger", r.Dish)
	}
	if len(r.Notes) != 1 || !strings.Contains(r.Notes[0], "fallback") {
		t.Errorf("expected advisory note mentioning the fallback, got %v", r.Notes)
	}
	if env.gate.topCalls != 1 {
		t.Errorf("gate dish selection calls = %d, want 1", env.gate.topCalls)
	}
}

func TestPipeline_DescriberDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.UseDescriber = false

	gate := &fakeGate{
		check:   vision.FoodCheck{IsFood: true, Confidence: 0.9},
		topIdx:  2, // Ramen
		topProb: 0.65,
	}
	env := newTestEnv(t, cfg, gate, &fakeDescriber{})

	job := runJob(t, env)

	r := job.Result
	if job.Status != models.JobStatusDone || r == nil {
		t.Fatalf("expected done, got %+v", job)
	}
	if r.Dish != "Ramen" {
		t.Errorf("dish = %q, want Ramen", r.Dish)
	}
	if len(r.Notes) != 1 || !strings.Contains(r.Notes[0], "disabled") {
		t.Errorf("expected note about disabled describer, got %v", r.Notes)
	}
	// Ramen gets the dish-aware default portion: 1 bowl = 520g.
	if r.Portion == nil || r.Portion.GramsEstimate != 520 {
		t.Errorf("portion = %+v, want 520g bowl", r.Portion)
	}
}

func TestPipeline_FastMode(t *testing.T) {
	cfg := defaultConfig()
	cfg.FastMode = true

	gate := &fakeGate{
		check:   vision.FoodCheck{IsFood: true, Confidence: 0.9},
		topIdx:  1, // Pizza Margherita
		topProb: 0.8,
	}
	env := newTestEnv(t, cfg, gate, &fakeDescriber{})

	job := runJob(t, env)

	r := job.Result
	if r == nil || r.Dish != "Pizza Margherita" {
		t.Fatalf("expected pizza via fast mode, got %+v", r)
	}
	if len(r.Notes) != 1 || !strings.Contains(r.Notes[0], "FAST_MODE") {
		t.Errorf("expected fast-mode note, got %v", r.Notes)
	}
}

func TestPipeline_GenericDishTriggersGateSelection(t *testing.T) {
	gate := &fakeGate{
		check:   vision.FoodCheck{IsFood: true, Confidence: 0.9},
		topIdx:  5, // Sushi
		topProb: 0.75,
	}
	// Describer answered but produced nothing usable.
	describer := &fakeDescriber{desc: vision.DishDescription{
		DishName:     "food",
		PortionLabel: "1 serving",
		Confidence:   0.4,
	}}
	env := newTestEnv(t, defaultConfig(), gate, describer)

	job := runJob(t, env)

	r := job.Result
	if r == nil || r.Dish != "Sushi" {
		t.Fatalf("expected gate-selected sushi, got %+v", r)
	}
	// Gate probability outranks the describer's weak confidence.
	want := nutrition.Round3(nutrition.CalibratedConfidence(0.75, 100))
	if r.Confidence != want {
		t.Errorf("confidence = %v, want %v", r.Confidence, want)
	}
}

func TestPipeline_MissingImageFails(t *testing.T) {
	gate := &fakeGate{check: vision.FoodCheck{IsFood: true, Confidence: 0.9}}
	env := newTestEnv(t, defaultConfig(), gate, &fakeDescriber{})

	ctx := context.Background()
	job, err := env.repo.Create(ctx, "no-such-key.jpg", models.ImageSourceLocal)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err := env.repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	env.worker.process(ctx, claimed)

	got, err := env.repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.JobStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.Error, "fetch image") {
		t.Errorf("error should name the failing step, got %q", got.Error)
	}
	if got.Result != nil {
		t.Error("failed job must not carry a result")
	}
}

func TestProcess_PanicIsContained(t *testing.T) {
	gate := &panickyGate{}
	env := newTestEnv(t, defaultConfig(), gate, &fakeDescriber{})

	ctx := context.Background()
	job, _ := env.repo.Create(ctx, env.key, models.ImageSourceLocal)
	claimed, _ := env.repo.ClaimNext(ctx)

	env.worker.process(ctx, claimed) // must not propagate the panic

	got, err := env.repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.JobStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.Error, "panic") {
		t.Errorf("error should record the panic, got %q", got.Error)
	}
}

type panickyGate struct{ fakeGate }

func (g *panickyGate) Classify(ctx context.Context, image []byte) (vision.FoodCheck, error) {
	panic("model exploded")
}

func TestWorker_RunEndToEnd(t *testing.T) {
	gate := &fakeGate{check: vision.FoodCheck{IsFood: false, Confidence: 0.9}}
	env := newTestEnv(t, defaultConfig(), gate, &fakeDescriber{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := env.repo.Create(ctx, env.key, models.ImageSourceLocal)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	done := make(chan struct{})
	go func() {
		env.worker.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		got, err := env.repo.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Terminal() {
			if got.Status != models.JobStatusDone {
				t.Fatalf("status = %s, want done", got.Status)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker did not finish the job in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on context cancellation")
	}
}
