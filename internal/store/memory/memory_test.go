package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"laundripos/backend/internal/domain"
	"laundripos/backend/internal/invoice"
	"laundripos/backend/internal/money"
	"laundripos/backend/internal/store"
)

func seedTransaction(id string, createdAt time.Time) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		InvoiceCode: invoice.Format(createdAt, 1),
		OutletID:    "outlet-pusat",
		Status:      domain.StatusNew,
		Payment:     domain.PaymentUnpaid,
		Items: []domain.LineItem{
			{OfferingID: "svc-cuci-setrika", Name: "Cuci Setrika", Quantity: money.MustParse("6"), UnitPrice: money.MustParse("10000")},
		},
		Subtotal:  money.MustParse("60000"),
		Total:     money.MustParse("66600"),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestCreateTransactionRejectsStaleBalance(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	now := time.Now().UTC()

	tx := seedTransaction("trx-1", now)
	tx.CustomerID = "cust-budi"
	tx.RedeemedPoints = 80

	// cust-budi holds only 50 points; the write must fail without mutating.
	if _, err := s.CreateTransaction(ctx, tx, nil); !errors.Is(err, store.ErrBusinessRule) {
		t.Fatalf("expected ErrBusinessRule, got %v", err)
	}
	customer, err := s.GetCustomerByID(ctx, "cust-budi")
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if customer.PointBalance != 50 {
		t.Fatalf("expected balance untouched at 50, got %d", customer.PointBalance)
	}
	if _, err := s.GetTransactionByID(ctx, "trx-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no transaction written, got %v", err)
	}
}

func TestCreateTransactionDebitsAndAppends(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	now := time.Now().UTC()

	tx := seedTransaction("trx-1", now)
	tx.CustomerID = "cust-budi"
	tx.RedeemedPoints = 10
	entry := domain.PointHistoryEntry{
		ID: "pts-1", CustomerID: "cust-budi", Type: domain.PointRedeem,
		Points: -10, TransactionID: "trx-1", CreatedAt: now,
	}

	created, err := s.CreateTransaction(ctx, tx, []domain.PointHistoryEntry{entry})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID != "trx-1" {
		t.Fatalf("unexpected transaction: %+v", created)
	}

	customer, err := s.GetCustomerByID(ctx, "cust-budi")
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if customer.PointBalance != 40 {
		t.Fatalf("expected balance 40, got %d", customer.PointBalance)
	}
	history, err := s.ListPointHistory(ctx, "cust-budi", 10)
	if err != nil {
		t.Fatalf("list history failed: %v", err)
	}
	if len(history) != 1 || history[0].ID != "pts-1" {
		t.Fatalf("expected the redeem entry, got %+v", history)
	}

	if _, err := s.CreateTransaction(ctx, tx, nil); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected duplicate id to fail, got %v", err)
	}
}

func TestMarkTransactionPaidOnce(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.CreateTransaction(ctx, seedTransaction("trx-1", now), nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	earn := &domain.PointHistoryEntry{
		ID: "pts-earn", CustomerID: "cust-budi", Type: domain.PointEarn, Points: 6, CreatedAt: now,
	}
	paid, err := s.MarkTransactionPaid(ctx, "trx-1", now, earn)
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if paid.Payment != domain.PaymentPaid || paid.PaidAt == nil {
		t.Fatalf("expected paid transaction, got %+v", paid)
	}
	customer, err := s.GetCustomerByID(ctx, "cust-budi")
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if customer.PointBalance != 56 {
		t.Fatalf("expected balance 56, got %d", customer.PointBalance)
	}

	if _, err := s.MarkTransactionPaid(ctx, "trx-1", now, nil); !errors.Is(err, store.ErrBusinessRule) {
		t.Fatalf("expected second payment to fail, got %v", err)
	}
}

func TestDeleteTransactionGuardsState(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.CreateTransaction(ctx, seedTransaction("trx-1", now), nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := s.UpdateTransactionStatus(ctx, "trx-1", domain.StatusProcessing, now); err != nil {
		t.Fatalf("status update failed: %v", err)
	}

	if err := s.DeleteTransaction(ctx, "trx-1", nil); !errors.Is(err, store.ErrBusinessRule) {
		t.Fatalf("expected processing transaction to be undeletable, got %v", err)
	}
	if err := s.DeleteTransaction(ctx, "trx-hilang", nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLastInvoiceSequence(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	now := time.Now().UTC()

	seq, err := s.LastInvoiceSequence(ctx, "outlet-pusat", now)
	if err != nil {
		t.Fatalf("sequence lookup failed: %v", err)
	}
	if seq != 0 {
		t.Fatalf("expected 0 on empty day, got %d", seq)
	}

	for i, id := range []string{"trx-1", "trx-2", "trx-3"} {
		tx := seedTransaction(id, now)
		tx.InvoiceCode = invoice.Format(now, i+1)
		if _, err := s.CreateTransaction(ctx, tx, nil); err != nil {
			t.Fatalf("create %s failed: %v", id, err)
		}
	}
	// Another outlet's sequence must not bleed in.
	other := seedTransaction("trx-4", now)
	other.OutletID = "outlet-timur"
	other.InvoiceCode = invoice.Format(now, 9)
	if _, err := s.CreateTransaction(ctx, other, nil); err != nil {
		t.Fatalf("create other outlet failed: %v", err)
	}

	seq, err = s.LastInvoiceSequence(ctx, "outlet-pusat", now)
	if err != nil {
		t.Fatalf("sequence lookup failed: %v", err)
	}
	if seq != 3 {
		t.Fatalf("expected highest sequence 3, got %d", seq)
	}

	// Past 9999 the codes grow a digit; the comparison must stay numeric,
	// not lexicographic.
	for i, n := range []int{9999, 10000} {
		tx := seedTransaction(fmt.Sprintf("trx-big-%d", i), now)
		tx.InvoiceCode = invoice.Format(now, n)
		if _, err := s.CreateTransaction(ctx, tx, nil); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	seq, err = s.LastInvoiceSequence(ctx, "outlet-pusat", now)
	if err != nil {
		t.Fatalf("sequence lookup failed: %v", err)
	}
	if seq != 10000 {
		t.Fatalf("expected sequence 10000 past the 4-digit range, got %d", seq)
	}

	yesterday := now.Add(-24 * time.Hour)
	seq, err = s.LastInvoiceSequence(ctx, "outlet-pusat", yesterday)
	if err != nil {
		t.Fatalf("sequence lookup failed: %v", err)
	}
	if seq != 0 {
		t.Fatalf("expected 0 for another day, got %d", seq)
	}
}

func TestListTransactionsWindow(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	now := time.Now().UTC()

	inWindow := seedTransaction("trx-now", now)
	if _, err := s.CreateTransaction(ctx, inWindow, nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	old := seedTransaction("trx-old", now.Add(-48*time.Hour))
	if _, err := s.CreateTransaction(ctx, old, nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	list, err := s.ListTransactions(ctx, "outlet-pusat", now.Add(-time.Hour), now.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != "trx-now" {
		t.Fatalf("expected only the in-window transaction, got %+v", list)
	}
}

func TestAppendPointAdjustmentClampsInStore(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	entry := domain.PointHistoryEntry{
		ID: "pts-1", CustomerID: "cust-sari", Type: domain.PointAdjustment,
		Points: -10, Note: "koreksi", CreatedAt: time.Now().UTC(),
	}
	customer, err := s.AppendPointAdjustment(ctx, entry)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if customer.PointBalance != 0 {
		t.Fatalf("expected over-debit clamped to 0, got %d", customer.PointBalance)
	}

	entry.ID = "pts-2"
	entry.Points = 7
	customer, err = s.AppendPointAdjustment(ctx, entry)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if customer.PointBalance != 7 {
		t.Fatalf("expected balance 7, got %d", customer.PointBalance)
	}

	entry.ID = "pts-3"
	entry.CustomerID = "cust-hilang"
	if _, err := s.AppendPointAdjustment(ctx, entry); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendPointAdjustmentConcurrent(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			entry := domain.PointHistoryEntry{
				ID: fmt.Sprintf("pts-%d", n), CustomerID: "cust-sari",
				Type: domain.PointAdjustment, Points: 1, Note: "migrasi",
				CreatedAt: time.Now().UTC(),
			}
			if _, err := s.AppendPointAdjustment(ctx, entry); err != nil {
				t.Errorf("append failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	customer, err := s.GetCustomerByID(ctx, "cust-sari")
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if customer.PointBalance != workers {
		t.Fatalf("expected balance %d, got %d", workers, customer.PointBalance)
	}
}
