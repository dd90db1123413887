package handlers

import (
	"net/http"
	"strings"

	"bracket-pool-services/internal/jobs"
	"bracket-pool-services/pkg/response"

	"go.uber.org/zap"
)

func (h *Handler) AdminCronRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		response.Error(w, http.StatusServiceUnavailable, response.CodeInternal, "Run history is not available")
		return
	}

	limit, err := readQueryLimit(r, 50, 500)
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}
	job := strings.TrimSpace(r.URL.Query().Get("job"))

	runs, err := h.Runs.List(r.Context(), jobs.ListFilter{Job: job, Limit: limit})
	if err != nil {
		h.Logger.Error("list cron runs failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, response.CodeInternal, "Failed to load run history")
		return
	}
	response.Success(w, runs)
}
