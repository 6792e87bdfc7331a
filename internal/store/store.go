package store

import (
	"context"
	"errors"
	"time"

	"laundripos/backend/internal/domain"
)

var (
	// ErrNotFound indicates a referenced entity does not exist; usually the
	// client is working from stale catalog state.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or missing required input.
	ErrValidation = errors.New("invalid input")
	// ErrBusinessRule indicates the input was well-formed but the operation
	// is not allowed in the current state (insufficient points, deleting a
	// processed transaction, double payment).
	ErrBusinessRule = errors.New("business rule violation")
)

// Repository is the persistence boundary. Composite methods
// (CreateTransaction, MarkTransactionPaid, DeleteTransaction,
// AppendPointAdjustment) must apply the transaction write, the ledger
// append and the balance update as one atomic unit, and must serialize
// balance changes per customer so concurrent redemptions cannot both pass
// a stale balance check.
type Repository interface {
	ListOutlets(ctx context.Context) ([]domain.Outlet, error)
	CreateOutlet(ctx context.Context, outlet domain.Outlet) (*domain.Outlet, error)
	GetOutletByID(ctx context.Context, id string) (*domain.Outlet, error)

	ListOfferings(ctx context.Context) ([]domain.ServiceOffering, error)
	CreateOffering(ctx context.Context, offering domain.ServiceOffering) (*domain.ServiceOffering, error)
	UpdateOffering(ctx context.Context, offering domain.ServiceOffering) (*domain.ServiceOffering, error)
	GetOfferingsByIDs(ctx context.Context, ids []string) (map[string]domain.ServiceOffering, error)

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)

	ListSurcharges(ctx context.Context) ([]domain.Surcharge, error)
	CreateSurcharge(ctx context.Context, surcharge domain.Surcharge) (*domain.Surcharge, error)
	SetSurchargeActive(ctx context.Context, id string, active bool) (*domain.Surcharge, error)
	GetSurchargesByIDs(ctx context.Context, ids []string) (map[string]domain.Surcharge, error)

	ListPromotions(ctx context.Context) ([]domain.Promotion, error)
	CreatePromotion(ctx context.Context, promo domain.Promotion) (*domain.Promotion, error)
	SetPromotionActive(ctx context.Context, id string, active bool) (*domain.Promotion, error)
	GetPromotionsByIDs(ctx context.Context, ids []string) (map[string]domain.Promotion, error)

	GetSettings(ctx context.Context) (domain.Settings, error)
	UpdateSettings(ctx context.Context, settings domain.Settings) error

	// CreateTransaction persists the transaction and, when entries are
	// present, appends them and debits the customer's balance atomically.
	// Returns ErrBusinessRule if the balance no longer covers the redemption.
	CreateTransaction(ctx context.Context, tx domain.Transaction, entries []domain.PointHistoryEntry) (*domain.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, outletID string, from, to time.Time, limit int) ([]domain.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id string, status domain.TransactionStatus, at time.Time) (*domain.Transaction, error)
	// MarkTransactionPaid flips the payment flag and, when an earn entry is
	// supplied, credits the customer atomically. Fails on already-paid.
	MarkTransactionPaid(ctx context.Context, id string, at time.Time, earn *domain.PointHistoryEntry) (*domain.Transaction, error)
	// DeleteTransaction removes a New+Unpaid transaction; a reversal entry,
	// when supplied, restores redeemed points in the same unit.
	DeleteTransaction(ctx context.Context, id string, reversal *domain.PointHistoryEntry) error

	// AppendPointAdjustment appends a manual adjustment entry and applies its
	// signed delta to the customer's balance, clamping at zero, in one unit.
	// The clamp happens inside the store so concurrent adjustments cannot
	// lose updates. Returns the customer after the write.
	AppendPointAdjustment(ctx context.Context, entry domain.PointHistoryEntry) (*domain.Customer, error)
	ListPointHistory(ctx context.Context, customerID string, limit int) ([]domain.PointHistoryEntry, error)

	// LastInvoiceSequence returns the highest invoice suffix already issued
	// for the outlet on the given day, or 0 when none exist.
	LastInvoiceSequence(ctx context.Context, outletID string, day time.Time) (int, error)

	GetDailyReport(ctx context.Context, outletID string, from, to time.Time) (domain.DailyReport, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, outletID string, from, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
