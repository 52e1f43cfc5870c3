package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hearth/internal/domain"
	"hearth/internal/middleware"
	"hearth/internal/service"
	"hearth/pkg/errors"
	"hearth/pkg/logger"
)

// ProposalHandler serves the proposal lifecycle and vote endpoints
type ProposalHandler struct {
	proposals service.ProposalService
	votes     service.VoteService
	logger    *logger.Logger
}

func NewProposalHandler(proposals service.ProposalService, votes service.VoteService, logger *logger.Logger) *ProposalHandler {
	return &ProposalHandler{
		proposals: proposals,
		votes:     votes,
		logger:    logger,
	}
}

// CreateProposal handles POST /api/v1/proposals
func (h *ProposalHandler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondAppError(w, errors.NewAuthenticationError("Authentication required"), h.logger)
		return
	}

	var req domain.CreateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAppError(w, errors.NewValidationError(errors.CodeInvalidOptions, "Invalid request body"), h.logger)
		return
	}
	if req.GroupID <= 0 {
		respondAppError(w, errors.NewValidationError(errors.CodeInvalidOptions, "group_id is required"), h.logger)
		return
	}

	proposal, err := h.proposals.Create(r.Context(), req.GroupID, userID, &req)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusCreated, proposal)
}

// ListProposals handles GET /api/v1/proposals
func (h *ProposalHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
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

	filter := domain.ProposalFilter{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.ProposalStatus(raw)
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset > 0 {
			filter.Offset = offset
		}
	}

	proposals, err := h.proposals.List(r.Context(), groupID, userID, filter)
	if err != nil {
		respondError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"proposals": proposals,
		"count":     len(proposals),
	})
}

// GetProposal handles GET /api/v1/proposals/{proposalID}
func (h *ProposalHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	h.withProposal(w, r, func(proposalID, userID int64) (interface{}, error) {
		return h.proposals.Get(r.Context(), proposalID, userID)
	}, http.StatusOK)
}

// GetProposalOptions handles GET /api/v1/proposals/{proposalID}/options
func (h *ProposalHandler) GetProposalOptions(w http.ResponseWriter, r *http.Request) {
	h.withProposal(w, r, func(proposalID, userID int64) (interface{}, error) {
		proposal, err := h.proposals.Get(r.Context(), proposalID, userID)
		if err != nil {
			return nil, err
		}
		options := proposal.BallotOptions
		if options == nil {
			options = []domain.BallotOption{}
		}
		return map[string]interface{}{"options": options, "count": len(options)}, nil
	}, http.StatusOK)
}

// GetProposalResults handles GET /api/v1/proposals/{proposalID}/results
func (h *ProposalHandler) GetProposalResults(w http.ResponseWriter, r *http.Request) {
	h.withProposal(w, r, func(proposalID, userID int64) (interface{}, error) {
		return h.proposals.GetResults(r.Context(), proposalID, userID)
	}, http.StatusOK)
}

// UpdateProposal handles PATCH /api/v1/proposals/{proposalID}
func (h *ProposalHandler) UpdateProposal(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAppError(w, errors.NewValidationError(errors.CodeInvalidOptions, "Invalid request body"), h.logger)
		return
	}

	h.withProposal(w, r, func(proposalID, userID int64) (interface{}, error) {
		return h.proposals.Update(r.Context(), proposalID, userID, &req)
	}, http.StatusOK)
}

// OpenProposal handles POST /api/v1/proposals/{proposalID}/open
func (h *ProposalHandler) OpenProposal(w http.ResponseWriter, r *http.Request) {
	h.withProposal(w, r, func(proposalID, userID int64) (interface{}, error) {
		return h.proposals.Open(r.Context(), proposalID, userID)
	}, http.StatusOK)
}

// CancelProposal handles DELETE /api/v1/proposals/{proposalID}
func (h *ProposalHandler) CancelProposal(w http.ResponseWriter, r *http.Request) {
	h.withProposal(w, r, func(proposalID, userID int64) (interface{}, error) {
		return h.proposals.Cancel(r.Context(), proposalID, userID)
	}, http.StatusOK)
}

// CloseProposal handles POST /api/v1/proposals/{proposalID}/close
func (h *ProposalHandler) CloseProposal(w http.ResponseWriter, r *http.Request) {
	h.withProposal(w, r, func(proposalID, userID int64) (interface{}, error) {
		return h.proposals.Close(r.Context(), proposalID, userID)
	}, http.StatusOK)
}

// ExecuteProposal handles POST /api/v1/proposals/{proposalID}/execute
func (h *ProposalHandler) ExecuteProposal(w http.ResponseWriter, r *http.Request) {
	h.withProposal(w, r, func(proposalID, userID int64) (interface{}, error) {
		return h.proposals.Execute(r.Context(), proposalID, userID)
	}, http.StatusOK)
}

// CastVote handles POST /api/v1/proposals/{proposalID}/votes
func (h *ProposalHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req domain.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAppError(w, errors.NewValidationError(errors.CodeInvalidOptions, "Invalid request body"), h.logger)
		return
	}
	if req.BallotOptionID <= 0 {
		respondAppError(w, errors.NewValidationError(errors.CodeInvalidOptions, "ballot_option_id is required"), h.logger)
		return
	}

	h.withProposal(w, r, func(proposalID, userID int64) (interface{}, error) {
		return h.votes.CastVote(r.Context(), proposalID, userID, &req)
	}, http.StatusCreated)
}

// CastRankedVotes handles POST /api/v1/proposals/{proposalID}/ranked-votes
func (h *ProposalHandler) CastRankedVotes(w http.ResponseWriter, r *http.Request) {
	var req domain.CastRankedVotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondAppError(w, errors.NewValidationError(errors.CodeInvalidRanking, "Invalid request body"), h.logger)
		return
	}

	h.withProposal(w, r, func(proposalID, userID int64) (interface{}, error) {
		votes, err := h.votes.CastRankedVotes(r.Context(), proposalID, userID, &req)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"votes": votes, "count": len(votes)}, nil
	}, http.StatusCreated)
}

// GetMyVote handles GET /api/v1/proposals/{proposalID}/votes/me
func (h *ProposalHandler) GetMyVote(w http.ResponseWriter, r *http.Request) {
	h.withProposal(w, r, func(proposalID, userID int64) (interface{}, error) {
		vote, err := h.votes.GetUserVote(r.Context(), proposalID, userID)
		if err != nil {
			return nil, err
		}
		if vote == nil {
			return map[string]interface{}{"has_voted": false}, nil
		}
		return map[string]interface{}{"has_voted": true, "vote": vote}, nil
	}, http.StatusOK)
}

// withProposal runs op with the authenticated user and parsed proposal ID
func (h *ProposalHandler) withProposal(w http.ResponseWriter, r *http.Request, op func(proposalID, userID int64) (interface{}, error), status int) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondAppError(w, errors.NewAuthenticationError("Authentication required"), h.logger)
		return
	}

	proposalID, err := strconv.ParseInt(chi.URLParam(r, "proposalID"), 10, 64)
	if err != nil || proposalID <= 0 {
		respondAppError(w, errors.NewValidationError(errors.CodeProposalNotFound, "Invalid proposal ID"), h.logger)
		return
	}

	result, opErr := op(proposalID, userID)
	if opErr != nil {
		respondError(w, opErr, h.logger)
		return
	}

	respondJSON(w, status, result)
}
