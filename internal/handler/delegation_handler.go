package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"hearth/internal/domain"
	"hearth/internal/middleware"
	"hearth/internal/service"
	"hearth/pkg/errors"
	"hearth/pkg/logger"
)

// DelegationHandler serves the vote delegation endpoints
type DelegationHandler struct {
	delegations service.DelegationService
	logger      *logger.Logger
}

func NewDelegationHandler(delegations service.DelegationService, logger *logger.Logger) *DelegationHandler {
	return &DelegationHandler{
		delegations: delegations,
		logger:      logger,
	}
}

// CreateDelegation handles POST /api/v1/delegations
func (h *DelegationHandler) CreateDelegation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondAppError(w, errors.NewAuthenticationError("Authentication required"), h.logger)
		return
	}

	var req domain.CreateDelegationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAppError(w, errors.NewValidationError(errors.CodeInvalidOptions, "Invalid request body"), h.logger)
		return
	}
	if req.GroupID <= 0 || req.DelegateID <= 0 {
		respondAppError(w, errors.NewValidationError(errors.CodeInvalidOptions, "group_id and delegate_id are required"), h.logger)
		return
	}

	delegation, err := h.delegations.Create(r.Context(), req.GroupID, userID, &req)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusCreated, delegation)
}

// ListDelegations handles GET /api/v1/delegations
func (h *DelegationHandler) ListDelegations(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondAppError(w, errors.NewAuthenticationError("Authentication required"), h.logger)
		return
	}

	groupID, err := strconv.ParseInt(r.URL.Query().Get("group_id"), 10, 64)
	if err != nil || groupID <= 0 {
		respondAppError(w, errors.NewValidationError(errors.CodeInvalidOptions, "group_id query parameter is required"), h.logger)
		return
	}

	delegations, err := h.delegations.List(r.Context(), groupID, userID)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"delegations": delegations,
		"count":       len(delegations),
	})
}
