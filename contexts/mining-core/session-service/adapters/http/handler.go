package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"solmine/contexts/mining-core/session-service/application"
	"solmine/contexts/mining-core/session-service/ports"
	httptransport "solmine/contexts/mining-core/session-service/transport/http"
)

// Display conversion only: the UI shows an estimated pool of one SOL per
// 10000 points. Actual payouts come from the real pool balance.
const displayPointsPerSOL = 10_000

const lamportsPerSOL = 1_000_000_000

type Handler struct {
	Service application.Service
	Clock   ports.Clock
	Logger  *slog.Logger
}

func (h Handler) SessionStateHandler(ctx context.Context) (httptransport.SessionStateResponse, error) {
	view, err := h.Service.CurrentSession(ctx)
	if err != nil {
		return httptransport.SessionStateResponse{}, err
	}
	leaderboard, err := h.Service.Leaderboard(ctx)
	if err != nil {
		return httptransport.SessionStateResponse{}, err
	}

	var totalPoints int64
	for _, miner := range view.Miners {
		totalPoints += miner.Points
	}

	entries := make([]httptransport.LeaderboardEntryDTO, 0, len(leaderboard))
	for _, entry := range leaderboard {
		entries = append(entries, httptransport.LeaderboardEntryDTO{
			Wallet:     entry.Wallet,
			FullWallet: entry.FullWallet,
			Points:     entry.Points,
		})
	}

	return httptransport.SessionStateResponse{
		SessionID:        view.Session.ID,
		TimeRemaining:    h.timeRemaining(view.Session.EndTime),
		TotalPoints:      totalPoints,
		MinerCount:       len(view.Miners),
		Leaderboard:      entries,
		EstimatedPoolSOL: float64(totalPoints) / displayPointsPerSOL,
	}, nil
}

func (h Handler) JoinSessionHandler(ctx context.Context, req httptransport.JoinSessionRequest) (httptransport.JoinSessionResponse, error) {
	view, err := h.Service.Join(ctx, req.Wallet)
	if err != nil {
		return httptransport.JoinSessionResponse{}, err
	}
	return httptransport.JoinSessionResponse{
		Success:       true,
		SessionID:     view.Session.ID,
		TimeRemaining: h.timeRemaining(view.Session.EndTime),
	}, nil
}

func (h Handler) SubmitPointsHandler(ctx context.Context, req httptransport.SubmitPointsRequest) (httptransport.SubmitPointsResponse, error) {
	total, session, err := h.Service.SubmitPoints(ctx, req.Wallet, req.Points)
	if err != nil {
		return httptransport.SubmitPointsResponse{}, err
	}
	return httptransport.SubmitPointsResponse{
		Success:    true,
		UserPoints: total,
		SessionID:  session.ID,
	}, nil
}

func (h Handler) HistoryHandler(ctx context.Context, limit int) (httptransport.HistoryResponse, error) {
	records, err := h.Service.Distributions(ctx, limit)
	if err != nil {
		return httptransport.HistoryResponse{}, err
	}
	resp := httptransport.HistoryResponse{
		Status: "success",
		Data:   make([]httptransport.DistributionRecordDTO, 0, len(records)),
	}
	for _, record := range records {
		resp.Data = append(resp.Data, httptransport.DistributionRecordDTO{
			SessionID: record.SessionID,
			Wallet:    application.MaskWallet(record.Wallet),
			Lamports:  record.Lamports,
			SOL:       float64(record.Lamports) / lamportsPerSOL,
			Signature: record.Signature,
			Error:     record.Error,
			Success:   record.Success,
			Timestamp: record.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return resp, nil
}

func (h Handler) timeRemaining(endTime time.Time) int64 {
	now := time.Now().UTC()
	if h.Clock != nil {
		now = h.Clock.Now().UTC()
	}
	remaining := int64(endTime.Sub(now) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
