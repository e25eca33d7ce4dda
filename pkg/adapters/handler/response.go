package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeResult(w http.ResponseWriter, status int, result any) {
	writeJSON(w, status, map[string]any{"result": result})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// statusFor maps domain errors onto HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrDatabaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrSlugExists),
		errors.Is(err, domain.ErrCycleDetected),
		errors.Is(err, domain.ErrItemAlreadyExists),
		errors.Is(err, domain.ErrItemLimitExceeded),
		errors.Is(err, domain.ErrDatabaseUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAI):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError logs err and replies with a message safe to show the caller.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		writeMessage(w, status, "internal server error")
		return
	}
	logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	writeMessage(w, status, err.Error())
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, domain.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// queryInt returns def when the parameter is absent and a validation error when it is malformed.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer")
	}
	return v, nil
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.NewValidationError("", "invalid request body: "+err.Error())
	}
	return nil
}
