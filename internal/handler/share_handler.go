package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

type ShareHandler struct {
	shareService *service.ShareService
}

func NewShareHandler(shareService *service.ShareService) *ShareHandler {
	return &ShareHandler{shareService: shareService}
}

type createShareRequest struct {
	NodeID     string            `json:"node_id"`
	GranteeID  string            `json:"grantee_id"`
	AccessType domain.AccessType `json:"access_type"`
}

func (h *ShareHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	nodeID, err := uuid.Parse(req.NodeID)
	if err != nil {
		http.Error(w, "Invalid node ID", http.StatusBadRequest)
		return
	}

	share, err := h.shareService.Grant(r.Context(), userID, nodeID, req.GranteeID, req.AccessType)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, share)
}

type revokeShareRequest struct {
	NodeID    string `json:"node_id"`
	GranteeID string `json:"grantee_id"`
}

func (h *ShareHandler) RevokeShare(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req revokeShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	nodeID, err := uuid.Parse(req.NodeID)
	if err != nil {
		http.Error(w, "Invalid node ID", http.StatusBadRequest)
		return
	}

	if err := h.shareService.Revoke(r.Context(), userID, nodeID, req.GranteeID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *ShareHandler) GetSharedWithMe(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	nodes, err := h.shareService.AccessibleTo(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if nodes == nil {
		nodes = []domain.SharedNode{}
	}

	writeJSON(w, http.StatusOK, nodes)
}

func (h *ShareHandler) GetEffectivePermission(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	nodeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid node ID", http.StatusBadRequest)
		return
	}

	permission, err := h.shareService.EffectivePermission(r.Context(), nodeID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		NodeID     uuid.UUID              `json:"node_id"`
		Permission domain.PermissionLevel `json:"permission"`
	}{nodeID, permission})
}

func (h *ShareHandler) ListGrants(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	nodeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid node ID", http.StatusBadRequest)
		return
	}

	grants, err := h.shareService.ListGrants(r.Context(), userID, nodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	if grants == nil {
		grants = []domain.Share{}
	}

	writeJSON(w, http.StatusOK, grants)
}
