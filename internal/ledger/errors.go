// Package ledger owns the order state machine and the portfolio math: it
// validates requested orders, routes them through the active gateway, and
// translates fills atomically into cash, position and trade mutations.
package ledger

import "errors"

var (
	ErrAccountNotFound      = errors.New("ledger: account not found")
	ErrOrderNotFound        = errors.New("ledger: order not found")
	ErrInsufficientFunds    = errors.New("ledger: insufficient funds")
	ErrInsufficientPosition = errors.New("ledger: insufficient position")
	ErrInvalidOrderState    = errors.New("ledger: invalid order state")
	ErrPriceUnavailable     = errors.New("ledger: price unavailable")
)
