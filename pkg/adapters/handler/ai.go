package handler

import (
	"net/http"

	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
	"go.uber.org/zap"
)

type AIHandler struct {
	service ports.AIService
	logger  *zap.Logger
}

func NewAIHandler(service ports.AIService, logger *zap.Logger) *AIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIHandler{service: service, logger: logger}
}

// GenerateSQL answers POST /api/v1/ai/sql.
func (h *AIHandler) GenerateSQL(w http.ResponseWriter, r *http.Request) {
	var req domain.SQLRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	sql, err := h.service.GenerateSQL(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeResult(w, http.StatusOK, map[string]string{"sql": sql})
}
