package httpserver

import (
	"errors"
	"net/http"

	payouterrors "solmine/contexts/mining-core/payout-service/domain/errors"
	payouthttp "solmine/contexts/mining-core/payout-service/transport/http"
	engineerrors "solmine/contexts/mining-core/reward-engine/domain/errors"
)

// handleDistribute godoc
// @Summary Trigger a payout for the most recent closed session
// @Description Idempotent per session; guard outcomes are reported in the status field.
// @Tags payouts
// @Produce json
// @Success 200 {object} http.DistributeResponse
// @Failure 503 {object} http.ErrorResponse
// @Router /api/distribute [post]
func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	resp, err := s.payouts.Handler.DistributeHandler(r.Context())
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePool godoc
// @Summary Reward pool snapshot
// @Tags payouts
// @Produce json
// @Success 200 {object} http.PoolResponse
// @Router /api/pool [get]
func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	resp, err := s.payouts.Handler.PoolHandler(r.Context())
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writePayoutDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payouterrors.ErrTreasuryNotConfigured):
		writePayoutError(w, http.StatusServiceUnavailable, "treasury_not_configured", err.Error())
	case errors.Is(err, payouterrors.ErrBalanceUnavailable):
		writePayoutError(w, http.StatusBadGateway, "balance_unavailable", err.Error())
	case errors.Is(err, engineerrors.ErrOverCommitted):
		writePayoutError(w, http.StatusInternalServerError, "over_committed", "internal server error")
	default:
		writePayoutError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePayoutError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, payouthttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
