package handlers

import (
	"net/http"
	"regexp"
	"strings"

	"bracket-pool-services/pkg/response"

	"go.uber.org/zap"
)

// archivePeriod matches "", "2026", "2026/03" or "2026/03/19".
var archivePeriod = regexp.MustCompile(`^(\d{4}(/\d{2}(/\d{2})?)?)?$`)

func (h *Handler) AdminCronArchives(w http.ResponseWriter, r *http.Request) {
	if h.Archives == nil {
		response.Error(w, http.StatusServiceUnavailable, response.CodeInternal, "Run archives are not configured")
		return
	}

	limit, err := readQueryLimit(r, 30, 365)
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}
	period := strings.TrimSpace(r.URL.Query().Get("period"))
	if !archivePeriod.MatchString(period) {
		response.Error(w, http.StatusBadRequest, response.CodeBadRequest, "period must look like YYYY, YYYY/MM or YYYY/MM/DD")
		return
	}

	archives, err := h.Archives.ListArchives(r.Context(), period, limit)
	if err != nil {
		h.Logger.Error("list cron archives failed", zap.String("period", period), zap.Error(err))
		response.Error(w, http.StatusBadGateway, response.CodeInternal, "Failed to list run archives")
		return
	}
	response.Success(w, archives)
}
