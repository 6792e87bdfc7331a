// Package loyalty holds the point ledger rules: how earn, redeem and manual
// adjustment events mutate a customer's balance and what history entry each
// one appends. Entries are append-only; corrections are made with
// compensating adjustments, never by editing history. Persistence and
// atomicity with the transaction write belong to the store.
package loyalty

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"laundripos/backend/internal/domain"
	"laundripos/backend/internal/xid"
)

var (
	ErrInsufficientBalance = errors.New("insufficient point balance")
	ErrNonPositivePoints   = errors.New("points must be positive")
	ErrNoteRequired        = errors.New("adjustment note is required")
)

// Context carries the provenance recorded on a ledger entry.
type Context struct {
	TransactionID     string
	TransactionAmount *decimal.Decimal
	Actor             string
	Now               time.Time
}

// Earn credits points to the customer and returns the updated customer plus
// the Earn entry to append. Realized on payment, not at checkout.
func Earn(customer domain.Customer, points int64, ctx Context) (domain.Customer, domain.PointHistoryEntry, error) {
	if points <= 0 {
		return customer, domain.PointHistoryEntry{}, ErrNonPositivePoints
	}
	customer.PointBalance += points
	return customer, newEntry(customer.ID, domain.PointEarn, points, "", ctx), nil
}

// Redeem debits points, failing before any mutation when the balance is
// short. The entry stores the delta as a negative value.
func Redeem(customer domain.Customer, points int64, ctx Context) (domain.Customer, domain.PointHistoryEntry, error) {
	if points <= 0 {
		return customer, domain.PointHistoryEntry{}, ErrNonPositivePoints
	}
	if points > customer.PointBalance {
		return customer, domain.PointHistoryEntry{}, ErrInsufficientBalance
	}
	customer.PointBalance -= points
	return customer, newEntry(customer.ID, domain.PointRedeem, -points, "", ctx), nil
}

// Adjust applies a manual correction. The balance clamps at zero, but the
// entry records the requested delta so the audit trail shows what was asked
// for. The note is mandatory: manual corrections must be explainable.
func Adjust(customer domain.Customer, delta int64, note string, ctx Context) (domain.Customer, domain.PointHistoryEntry, error) {
	if note == "" {
		return customer, domain.PointHistoryEntry{}, ErrNoteRequired
	}
	balance := customer.PointBalance + delta
	if balance < 0 {
		balance = 0
	}
	customer.PointBalance = balance
	return customer, newEntry(customer.ID, domain.PointAdjustment, delta, note, ctx), nil
}

// Replay sums the signed deltas of a history. For customers with no clamped
// adjustments this equals the stored balance.
func Replay(entries []domain.PointHistoryEntry) int64 {
	var sum int64
	for _, e := range entries {
		sum += e.Points
	}
	return sum
}

func newEntry(customerID string, kind domain.PointEntryType, points int64, note string, ctx Context) domain.PointHistoryEntry {
	return domain.PointHistoryEntry{
		ID:                xid.New("pts"),
		CustomerID:        customerID,
		Type:              kind,
		Points:            points,
		TransactionID:     ctx.TransactionID,
		TransactionAmount: ctx.TransactionAmount,
		Note:              note,
		CreatedBy:         ctx.Actor,
		CreatedAt:         ctx.Now,
	}
}
