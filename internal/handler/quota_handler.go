package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

type StorageQuotaHandler struct {
	quotaService *service.StorageQuotaService
	usageService *service.UsageService
	activity     *service.ActivitySink
}

func NewStorageQuotaHandler(
	quotaService *service.StorageQuotaService,
	usageService *service.UsageService,
	activity *service.ActivitySink,
) *StorageQuotaHandler {
	return &StorageQuotaHandler{
		quotaService: quotaService,
		usageService: usageService,
		activity:     activity,
	}
}

func (h *StorageQuotaHandler) GetQuotaInfo(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	info, err := h.quotaService.GetQuotaInfo(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

type updateQuotaLimitRequest struct {
	NewLimit int64 `json:"new_limit"`
}

func (h *StorageQuotaHandler) UpdateQuotaLimit(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateQuotaLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.quotaService.UpdateLimit(r.Context(), userID, req.NewLimit); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetUsage отдаёт снимок использования; параметром refresh=true можно
// форсировать полный пересчёт перед чтением.
func (h *StorageQuotaHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if r.URL.Query().Get("refresh") == "true" {
		if err := h.usageService.Refresh(r.Context(), userID); err != nil {
			writeError(w, err)
			return
		}
	}

	snapshot, err := h.usageService.CurrentUsage(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (h *StorageQuotaHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
	}

	events, err := h.activity.Recent(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []domain.ActivityEvent{}
	}

	writeJSON(w, http.StatusOK, events)
}
