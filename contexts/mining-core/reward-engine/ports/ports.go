package ports

// MinerPoints is one wallet's point total inside a closed session snapshot.
type MinerPoints struct {
	Wallet string
	Points int64
}

// Reward is one computed payout. Lamports is the authoritative integer
// amount; SOL and SharePercent exist for display only.
type Reward struct {
	Wallet       string
	Points       int64
	Lamports     uint64
	SOL          float64
	SharePercent float64
}
