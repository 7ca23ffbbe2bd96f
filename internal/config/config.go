package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every tunable the server and worker need. It is built once
// in main and passed to components at construction; nothing reads the
// environment after Load returns.
type Config struct {
	Port       string
	SQLitePath string

	// Storage
	StorageDriver  string // "local" | "s3"
	LocalUploadDir string
	S3Bucket       string
	S3Prefix       string
	AWSRegion      string

	// Nutrition catalog (empty path uses the embedded catalog)
	NutritionDBPath string

	// Inference backends
	GateURL      string
	DescriberURL string

	FoodThreshold float64
	ImageMaxSide  int
	DefaultGrams  int

	// Worker
	PollInterval      time.Duration
	WorkerConcurrency int

	// Describer operating mode
	UseDescriber         bool
	FastMode             bool
	DescriberLoadTimeout time.Duration
	DescriberTimeout     time.Duration
}

// Load reads configuration from the environment, applying defaults that
// match a local single-machine setup.
func Load() Config {
	return Config{
		Port:       getenv("PORT", "8080"),
		SQLitePath: getenv("SQLITE_PATH", "data/app.db"),

		StorageDriver:  getenv("STORAGE_DRIVER", "local"),
		LocalUploadDir: getenv("LOCAL_UPLOAD_DIR", "data/uploads"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Prefix:       getenv("S3_PREFIX", "uploads"),
		AWSRegion:      os.Getenv("AWS_REGION"),

		NutritionDBPath: os.Getenv("NUTRITION_DB_PATH"),

		GateURL:      getenv("GATE_URL", "http://localhost:9090"),
		DescriberURL: getenv("DESCRIBER_URL", "http://localhost:9091"),

		FoodThreshold: getenvFloat("FOOD_THRESHOLD", 0.6),
		ImageMaxSide:  getenvInt("IMAGE_MAX_SIDE", 384),
		DefaultGrams:  getenvInt("DEFAULT_PORTION_GRAMS", 350),

		PollInterval:      getenvDuration("POLL_INTERVAL", 500*time.Millisecond),
		WorkerConcurrency: getenvInt("WORKER_CONCURRENCY", 1),

		UseDescriber:         getenvBool("USE_VLM", true),
		FastMode:             getenvBool("FAST_MODE", false),
		DescriberLoadTimeout: getenvDuration("VLM_LOAD_TIMEOUT", 300*time.Second),
		// On CPU a long inference deadline feels like a hang; rely on the
		// gate fallback instead.
		DescriberTimeout: getenvDuration("VLM_INFER_TIMEOUT", 60*time.Second),
	}
}

// ValidateStorage returns an error when the selected storage driver is
// missing its required settings.
func (c Config) ValidateStorage() error {
	switch c.StorageDriver {
	case "local":
		return nil
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("STORAGE_DRIVER=s3 requires S3_BUCKET")
		}
		return nil
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare numbers are read as seconds for compatibility with older
		// deployments.
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return fallback
}
