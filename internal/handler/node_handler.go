package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

const maxUploadMemory = 32 << 20 // 32MB

type NodeHandler struct {
	treeService  *service.TreeService
	trashService *service.TrashService
	shareService *service.ShareService
}

func NewNodeHandler(
	treeService *service.TreeService,
	trashService *service.TrashService,
	shareService *service.ShareService,
) *NodeHandler {
	return &NodeHandler{
		treeService:  treeService,
		trashService: trashService,
		shareService: shareService,
	}
}

type createFolderRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

func (h *NodeHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	parentID, err := parseOptionalID(req.ParentID)
	if err != nil {
		http.Error(w, "Invalid parent ID", http.StatusBadRequest)
		return
	}

	folder, err := h.treeService.CreateFolder(r.Context(), userID, req.Name, parentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, folder)
}

func (h *NodeHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	parentID, err := parseOptionalID(r.FormValue("parent_id"))
	if err != nil {
		http.Error(w, "Invalid parent ID", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		log.Printf("[NodeHandler] failed to read upload: %v", err)
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	node, err := h.treeService.UploadFile(r.Context(), userID, header.Filename, parentID,
		header.Header.Get("Content-Type"), data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, node)
}

func (h *NodeHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var parentID *uuid.UUID
	if idStr := chi.URLParam(r, "id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "Invalid folder ID", http.StatusBadRequest)
			return
		}
		parentID = &id
	}

	filter := domain.ChildFilter{
		MIMEType:     r.URL.Query().Get("type"),
		NameContains: r.URL.Query().Get("name"),
		SortBy:       domain.ChildSortField(r.URL.Query().Get("sort")),
		SortDesc:     r.URL.Query().Get("order") == "desc",
	}

	children, err := h.treeService.ListChildren(r.Context(), userID, parentID, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	response := struct {
		ParentID *uuid.UUID    `json:"parent_id,omitempty"`
		Nodes    []domain.Node `json:"nodes"`
	}{
		ParentID: parentID,
		Nodes:    children,
	}
	if response.Nodes == nil {
		response.Nodes = []domain.Node{}
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
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
	if permission == domain.PermissionNone {
		writeError(w, domain.ErrAccessDenied)
		return
	}

	node, err := h.treeService.GetNode(r.Context(), nodeID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, node)
}

func (h *NodeHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
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
	if permission == domain.PermissionNone {
		writeError(w, domain.ErrAccessDenied)
		return
	}

	node, err := h.treeService.GetNode(r.Context(), nodeID)
	if err != nil {
		writeError(w, err)
		return
	}

	content, err := h.treeService.OpenContent(r.Context(), node)
	if err != nil {
		writeError(w, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", node.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", node.Name))
	if _, err := io.Copy(w, content); err != nil {
		log.Printf("[NodeHandler] error streaming node %s: %v", nodeID, err)
	}
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *NodeHandler) Rename(w http.ResponseWriter, r *http.Request) {
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

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	node, err := h.treeService.Rename(r.Context(), userID, nodeID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, node)
}

type moveRequest struct {
	TargetParentID string `json:"target_parent_id,omitempty"`
}

func (h *NodeHandler) Move(w http.ResponseWriter, r *http.Request) {
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

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	targetParentID, err := parseOptionalID(req.TargetParentID)
	if err != nil {
		http.Error(w, "Invalid target parent ID", http.StatusBadRequest)
		return
	}

	node, err := h.treeService.Move(r.Context(), userID, nodeID, targetParentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, node)
}

func (h *NodeHandler) Copy(w http.ResponseWriter, r *http.Request) {
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

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	targetParentID, err := parseOptionalID(req.TargetParentID)
	if err != nil {
		http.Error(w, "Invalid target parent ID", http.StatusBadRequest)
		return
	}

	node, err := h.treeService.Copy(r.Context(), userID, nodeID, targetParentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, node)
}

// Delete перемещает узел в корзину; физическое удаление делается через
// trash-эндпоинты.
func (h *NodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.trashService.MoveToTrash(r.Context(), userID, nodeID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func parseOptionalID(value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
