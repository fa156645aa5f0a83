package handlers

import (
	"net/http"

	"github.com/wonny/stratbook/internal/scheduler"
)

// JobStatser reports scheduler job statistics
type JobStatser interface {
	GetJobStats() map[string]scheduler.JobStats
	Pending() []string
}

// JobsHandler serves scheduler status
type JobsHandler struct {
	scheduler JobStatser
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(s JobStatser) *JobsHandler {
	return &JobsHandler{scheduler: s}
}

// GetJobs returns per-job statistics and pending one-shot jobs
// GET /api/jobs
func (h *JobsHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":    h.scheduler.GetJobStats(),
		"pending": h.scheduler.Pending(),
	})
}
