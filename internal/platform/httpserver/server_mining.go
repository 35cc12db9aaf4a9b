package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	sessionerrors "solmine/contexts/mining-core/session-service/domain/errors"
	sessionhttp "solmine/contexts/mining-core/session-service/transport/http"
)

// handleSessionState godoc
// @Summary Current mining session
// @Description Returns the active session, its countdown, and the masked leaderboard.
// @Tags mining
// @Produce json
// @Success 200 {object} http.SessionStateResponse
// @Router /api/session [get]
func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	resp, err := s.mining.Handler.SessionStateHandler(r.Context())
	if err != nil {
		writeMiningDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleJoinSession godoc
// @Summary Join the active session
// @Tags mining
// @Accept json
// @Produce json
// @Param request body http.JoinSessionRequest true "wallet to enroll"
// @Success 200 {object} http.JoinSessionResponse
// @Failure 400 {object} http.ErrorResponse
// @Router /api/session [post]
func (s *Server) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	var req sessionhttp.JoinSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.mining.Handler.JoinSessionHandler(r.Context(), req)
	if err != nil {
		writeMiningDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSubmitPoints godoc
// @Summary Submit mined points
// @Tags mining
// @Accept json
// @Produce json
// @Param request body http.SubmitPointsRequest true "wallet and point delta"
// @Success 200 {object} http.SubmitPointsResponse
// @Failure 400 {object} http.ErrorResponse
// @Failure 429 {object} http.ErrorResponse
// @Router /api/mine [post]
func (s *Server) handleSubmitPoints(w http.ResponseWriter, r *http.Request) {
	var req sessionhttp.SubmitPointsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !s.allowWalletClicks(w, req.Wallet) {
		return
	}
	resp, err := s.mining.Handler.SubmitPointsHandler(r.Context(), req)
	if err != nil {
		writeMiningDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHistory godoc
// @Summary Distribution history
// @Description Most recent payout records, newest first, wallets masked.
// @Tags mining
// @Produce json
// @Param limit query int false "maximum records to return"
// @Success 200 {object} http.HistoryResponse
// @Router /api/history [get]
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitRaw := r.URL.Query().Get("limit"); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed < 0 {
			writeMiningError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	resp, err := s.mining.Handler.HistoryHandler(r.Context(), limit)
	if err != nil {
		writeMiningDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeMiningDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessionerrors.ErrInvalidWallet):
		writeMiningError(w, http.StatusBadRequest, "invalid_wallet", err.Error())
	case errors.Is(err, sessionerrors.ErrInvalidPoints):
		writeMiningError(w, http.StatusBadRequest, "invalid_points", err.Error())
	case errors.Is(err, sessionerrors.ErrSessionUnknown):
		writeMiningError(w, http.StatusNotFound, "session_unknown", err.Error())
	default:
		writeMiningError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeMiningError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, sessionhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
