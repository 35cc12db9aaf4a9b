package errors

import "errors"

var (
	// ErrTreasuryNotConfigured means the process has no RPC endpoint or
	// treasury key. Fatal for the distribution path; there is nothing to
	// retry until configuration changes.
	ErrTreasuryNotConfigured = errors.New("treasury is not configured")

	ErrBalanceUnavailable = errors.New("treasury balance could not be read")
)
