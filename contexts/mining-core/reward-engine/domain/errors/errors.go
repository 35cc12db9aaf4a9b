package errors

import "errors"

// ErrOverCommitted means the computed payouts still exceeded the available
// balance after scaling. The engine fails closed: no transfer list is
// returned. The wrapping error carries the conflicting amounts.
var ErrOverCommitted = errors.New("computed rewards exceed available balance")
