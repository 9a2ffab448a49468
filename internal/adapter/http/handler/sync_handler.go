package handler

import (
	"accounting-sync/internal/adapter/http/dto"
	"accounting-sync/internal/adapter/http/middleware"
	"accounting-sync/internal/core/ports"
	"accounting-sync/pkg/apperror"
	"accounting-sync/pkg/response"

	"github.com/gin-gonic/gin"
)

// SyncHandler serves the offline-first sync endpoint.
type SyncHandler struct {
	syncSvc ports.SyncService
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(syncSvc ports.SyncService) *SyncHandler {
	return &SyncHandler{syncSvc: syncSvc}
}

// Sync handles POST /api/v1/sync.
func (h *SyncHandler) Sync(c *gin.Context) {
	scope, ok := middleware.Scope(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SyncRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.syncSvc.ProcessSyncOperations(c.Request.Context(), ports.SyncRequest{
		Operations:        req.Operations,
		LastSyncTimestamp: req.LastSyncTimestamp,
		BatchID:           req.BatchID,
	}, scope.CompanyID, scope.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}
