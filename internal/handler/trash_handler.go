package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

type TrashHandler struct {
	trashService *service.TrashService
}

func NewTrashHandler(trashService *service.TrashService) *TrashHandler {
	return &TrashHandler{trashService: trashService}
}

func (h *TrashHandler) GetTrashItems(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	items, err := h.trashService.ListTrash(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []domain.TrashItem{}
	}

	writeJSON(w, http.StatusOK, items)
}

type trashItemRequest struct {
	NodeID string `json:"node_id"`
}

func (r *trashItemRequest) parse() (uuid.UUID, error) {
	return uuid.Parse(r.NodeID)
}

func (h *TrashHandler) RestoreItem(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req trashItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	nodeID, err := req.parse()
	if err != nil {
		http.Error(w, "Invalid node ID", http.StatusBadRequest)
		return
	}

	if err := h.trashService.Restore(r.Context(), userID, nodeID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *TrashHandler) DeletePermanently(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req trashItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	nodeID, err := req.parse()
	if err != nil {
		http.Error(w, "Invalid node ID", http.StatusBadRequest)
		return
	}

	if err := h.trashService.DeletePermanently(r.Context(), userID, nodeID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *TrashHandler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.trashService.EmptyTrash(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *TrashHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	settings, err := h.trashService.GetSettings(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

type updateSettingsRequest struct {
	RetentionPeriod string `json:"retention_period"`
}

func (h *TrashHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.trashService.UpdateRetentionPeriod(r.Context(), userID, req.RetentionPeriod); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
