package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/infinity-samurai/food-ai/internal/models"
	"github.com/infinity-samurai/food-ai/internal/notifier"
	"github.com/infinity-samurai/food-ai/internal/storage"
)

// JobHandler serves job enqueue, status, listing, and the SSE status
// stream.
type JobHandler struct {
	repo     *storage.JobRepository
	notifier *notifier.Notifier
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(repo *storage.JobRepository, n *notifier.Notifier) *JobHandler {
	return &JobHandler{repo: repo, notifier: n}
}

type analyzeRequest struct {
	Key    string `json:"key" validate:"required"`
	Source string `json:"source" validate:"required,oneof=s3 local url"`
}

type analyzeResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// Analyze enqueues an analysis job for an already-uploaded image. The
// worker picks it up from the queue.
func (h *JobHandler) Analyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	job, err := h.repo.Create(c.Request().Context(), req.Key, req.Source)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, analyzeResponse{JobID: job.ID, Status: job.Status})
}

type jobStatusResponse struct {
	JobID  string                  `json:"jobId"`
	Status string                  `json:"status"`
	Error  string                  `json:"error,omitempty"`
	Result *models.NutritionReport `json:"result,omitempty"`
}

// Get returns the current status view of one job.
func (h *JobHandler) Get(c echo.Context) error {
	job, err := h.repo.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, statusView(job))
}

// List returns recent jobs.
func (h *JobHandler) List(c echo.Context) error {
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	jobs, err := h.repo.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, jobs)
}

// Stats returns job counts per status.
func (h *JobHandler) Stats(c echo.Context) error {
	counts, err := h.repo.CountByStatus(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, counts)
}

// Events streams job status snapshots as Server-Sent Events until the job
// reaches a terminal state or the client disconnects. One long-lived
// connection instead of a client polling loop.
func (h *JobHandler) Events(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	// Tell EventSource how long to wait before reconnecting.
	fmt.Fprint(res, "retry: 1000\n\n")
	res.Flush()

	ctx := c.Request().Context()
	for snap := range h.notifier.Watch(ctx, c.Param("id")) {
		if snap.Err != nil {
			if errors.Is(snap.Err, storage.ErrNotFound) {
				fmt.Fprint(res, "event: error\ndata: {\"error\":\"Job not found\"}\n\n")
				res.Flush()
				return nil
			}
			return snap.Err
		}

		payload, err := json.Marshal(statusView(snap.Job))
		if err != nil {
			return err
		}
		fmt.Fprintf(res, "data: %s\n\n", payload)
		res.Flush()
	}
	return nil
}

func statusView(job *models.Job) jobStatusResponse {
	return jobStatusResponse{
		JobID:  job.ID,
		Status: job.Status,
		Error:  job.Error,
		Result: job.Result,
	}
}
