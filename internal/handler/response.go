package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"nimbusdrive/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeError переводит типизированный исход ядра в HTTP-статус. Ядро
// никогда не бросает через эту границу нетипизированных ошибок; всё, что
// не распознано — 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidParent),
		errors.Is(err, domain.ErrInvalidMove),
		errors.Is(err, domain.ErrSelfShareForbidden):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateName),
		errors.Is(err, domain.ErrCyclicMove),
		errors.Is(err, domain.ErrAlreadyShared),
		errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrQuotaExceeded):
		status = http.StatusInsufficientStorage
	case errors.Is(err, domain.ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		log.Printf("[Handler] internal error: %v", err)
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Printf("[Handler] error encoding response: %v", err)
		}
	}
}
