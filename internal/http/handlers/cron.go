package handlers

import (
	"errors"
	"net/http"

	"bracket-pool-services/internal/jobs"
	"bracket-pool-services/pkg/response"

	"go.uber.org/zap"
)

// CronJobsList describes every registered job and when it is next due.
func (h *Handler) CronJobsList(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.Jobs.Registry().List(h.now()))
}

// CronJobRun runs one job synchronously. Schedulers call it with GET;
// operators triggering a job by hand use POST.
func (h *Handler) CronJobRun(w http.ResponseWriter, r *http.Request) {
	name := readPathString(r, "job")
	trigger := jobs.TriggerScheduler
	if r.Method == http.MethodPost {
		trigger = jobs.TriggerManual
	}

	run, err := h.Jobs.Run(r.Context(), name, trigger)
	switch {
	case errors.Is(err, jobs.ErrUnknownJob):
		response.Error(w, http.StatusNotFound, response.CodeJobNotFound, "Unknown cron job: "+name)
		return
	case errors.Is(err, jobs.ErrJobRunning):
		response.Error(w, http.StatusConflict, response.CodeJobRunning, "Cron job is already running: "+name)
		return
	case err != nil:
		h.Logger.Error("cron job run failed", zap.String("job", name), zap.Error(err))
		response.JSON(w, http.StatusInternalServerError, runPayload(run, response.CodeJobFailed))
		return
	}

	response.JSON(w, http.StatusOK, runPayload(run, ""))
}

func runPayload(run jobs.Run, errorCode string) map[string]any {
	payload := map[string]any{
		"success":   errorCode == "",
		"disabled":  run.Status == jobs.StatusDisabled,
		"job":       run.Job,
		"runId":     run.ID,
		"status":    run.Status,
		"trigger":   run.Trigger,
		"processed": run.Report.Processed,
		"report":    run.Report,
		"startedAt": run.StartedAt,
		"endedAt":   run.EndedAt,
	}
	if errorCode != "" {
		payload["error"] = errorCode
		payload["message"] = run.Error
	}
	return payload
}
