package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type TransferResultDTO struct {
	Wallet    string  `json:"wallet"`
	Lamports  uint64  `json:"lamports"`
	SOL       float64 `json:"sol"`
	Signature string  `json:"signature,omitempty"`
	Error     string  `json:"error,omitempty"`
	Success   bool    `json:"success"`
}

type DistributeResponse struct {
	Status              string              `json:"status"`
	SessionID           string              `json:"sessionId"`
	Message             string              `json:"message,omitempty"`
	TotalDistributed    uint64              `json:"totalDistributedLamports"`
	TotalDistributedSOL float64             `json:"totalDistributedSOL"`
	TransferCount       int                 `json:"transferCount"`
	SuccessCount        int                 `json:"successCount"`
	Results             []TransferResultDTO `json:"results,omitempty"`
}

type PoolResponse struct {
	Balance       uint64  `json:"balance"`
	BalanceSOL    float64 `json:"balanceSOL"`
	AvailableSOL  float64 `json:"available"`
	WalletAddress string  `json:"walletAddress,omitempty"`
	Error         string  `json:"error,omitempty"`
}
