package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type LeaderboardEntryDTO struct {
	Wallet     string `json:"wallet"`
	FullWallet string `json:"fullWallet"`
	Points     int64  `json:"points"`
}

type SessionStateResponse struct {
	SessionID        string                `json:"sessionId"`
	TimeRemaining    int64                 `json:"timeRemaining"`
	TotalPoints      int64                 `json:"totalPoints"`
	MinerCount       int                   `json:"minerCount"`
	Leaderboard      []LeaderboardEntryDTO `json:"leaderboard"`
	EstimatedPoolSOL float64               `json:"estimatedPoolSOL"`
}

type JoinSessionRequest struct {
	Wallet string `json:"wallet"`
}

type JoinSessionResponse struct {
	Success       bool   `json:"success"`
	SessionID     string `json:"sessionId"`
	TimeRemaining int64  `json:"timeRemaining"`
}

type SubmitPointsRequest struct {
	Wallet string `json:"wallet"`
	Points int64  `json:"points"`
}

type SubmitPointsResponse struct {
	Success    bool   `json:"success"`
	UserPoints int64  `json:"userPoints"`
	SessionID  string `json:"sessionId"`
}

type DistributionRecordDTO struct {
	SessionID string  `json:"sessionId"`
	Wallet    string  `json:"wallet"`
	Lamports  uint64  `json:"lamports"`
	SOL       float64 `json:"sol"`
	Signature string  `json:"signature,omitempty"`
	Error     string  `json:"error,omitempty"`
	Success   bool    `json:"success"`
	Timestamp string  `json:"timestamp"`
}

type HistoryResponse struct {
	Status string                  `json:"status"`
	Data   []DistributionRecordDTO `json:"data"`
}
