package entities

import "time"

// Session is one fixed-duration mining window. Exactly one session accepts
// points at a time; at most one closed session waits in the previous slot for
// payout.
type Session struct {
	ID          string
	StartTime   time.Time
	EndTime     time.Time
	Distributed bool
}

// Closed reports whether the session stopped accepting points at the given
// instant. EndTime itself counts as closed.
func (s Session) Closed(now time.Time) bool {
	return !now.Before(s.EndTime)
}

type MinerEntry struct {
	Wallet   string
	Points   int64
	JoinedAt time.Time
}

// DistributionRecord is one attempted payout transfer. Success carries the
// transaction signature, failure carries the transfer error text.
type DistributionRecord struct {
	ID        string
	SessionID string
	Wallet    string
	Lamports  uint64
	Signature string
	Error     string
	Success   bool
	Timestamp time.Time
}
