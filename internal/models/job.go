package models

// Job is one request to analyze an uploaded image end-to-end.
// The store owns persistence; only the worker mutates status/result/error
// after creation.
type Job struct {
	ID          string           `json:"id"`
	Status      string           `json:"status"`
	CreatedAt   int64            `json:"created_at"`
	UpdatedAt   int64            `json:"updated_at"`
	ImageKey    string           `json:"image_key"`
	ImageSource string           `json:"image_source"`
	Error       string           `json:"error,omitempty"`
	Result      *NutritionReport `json:"result,omitempty"`
}

// Job statuses
const (
	JobStatusQueued     = "queued"
	JobStatusInProgress = "in_progress"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
)

// Image sources
const (
	ImageSourceS3    = "s3"
	ImageSourceLocal = "local"
	ImageSourceURL   = "url"
)

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusFailed
}

// ValidImageSource reports whether s is one of the accepted source kinds.
func ValidImageSource(s string) bool {
	return s == ImageSourceS3 || s == ImageSourceLocal || s == ImageSourceURL
}
