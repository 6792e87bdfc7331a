package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"laundripos/backend/internal/domain"
	"laundripos/backend/internal/invoice"
	"laundripos/backend/internal/store"
	"laundripos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListOutlets(ctx context.Context) ([]domain.Outlet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, phone, created_at
		FROM outlets
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	outlets := make([]domain.Outlet, 0, 8)
	for rows.Next() {
		var o domain.Outlet
		if err := rows.Scan(&o.ID, &o.Name, &o.Address, &o.Phone, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.CreatedAt = o.CreatedAt.UTC()
		outlets = append(outlets, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return outlets, nil
}

func (s *Store) CreateOutlet(ctx context.Context, outlet domain.Outlet) (*domain.Outlet, error) {
	if outlet.ID == "" || outlet.Name == "" {
		return nil, store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outlets (id, name, address, phone, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, outlet.ID, outlet.Name, outlet.Address, outlet.Phone, outlet.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}
	created := outlet
	return &created, nil
}

func (s *Store) GetOutletByID(ctx context.Context, id string) (*domain.Outlet, error) {
	var o domain.Outlet
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, phone, created_at
		FROM outlets
		WHERE id = $1
	`, id).Scan(&o.ID, &o.Name, &o.Address, &o.Phone, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}

func (s *Store) ListOfferings(ctx context.Context) ([]domain.ServiceOffering, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit, unit_price, active, created_at
		FROM service_offerings
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	offerings := make([]domain.ServiceOffering, 0, 32)
	for rows.Next() {
		var o domain.ServiceOffering
		if err := rows.Scan(&o.ID, &o.Name, &o.Unit, &o.UnitPrice, &o.Active, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.CreatedAt = o.CreatedAt.UTC()
		offerings = append(offerings, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return offerings, nil
}

func (s *Store) CreateOffering(ctx context.Context, offering domain.ServiceOffering) (*domain.ServiceOffering, error) {
	if offering.ID == "" || offering.Name == "" || !offering.UnitPrice.IsPositive() {
		return nil, store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_offerings (id, name, unit, unit_price, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, offering.ID, offering.Name, offering.Unit, offering.UnitPrice, offering.Active, offering.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}
	created := offering
	return &created, nil
}

func (s *Store) UpdateOffering(ctx context.Context, offering domain.ServiceOffering) (*domain.ServiceOffering, error) {
	if offering.Name == "" || !offering.UnitPrice.IsPositive() {
		return nil, store.ErrValidation
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE service_offerings
		SET name = $2, unit = $3, unit_price = $4, active = $5, updated_at = now()
		WHERE id = $1
	`, offering.ID, offering.Name, offering.Unit, offering.UnitPrice, offering.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := offering
	return &updated, nil
}

func (s *Store) GetOfferingsByIDs(ctx context.Context, ids []string) (map[string]domain.ServiceOffering, error) {
	result := make(map[string]domain.ServiceOffering, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit, unit_price, active, created_at
		FROM service_offerings
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var o domain.ServiceOffering
		if err := rows.Scan(&o.ID, &o.Name, &o.Unit, &o.UnitPrice, &o.Active, &o.CreatedAt); err != nil {
			return nil, err
		}
		result[o.ID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, is_member, point_balance, created_at
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.IsMember, &c.PointBalance, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.Name == "" || customer.PointBalance < 0 {
		return nil, store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, is_member, point_balance, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, customer.ID, customer.Name, customer.Phone, customer.IsMember, customer.PointBalance, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" || customer.PointBalance < 0 {
		return nil, store.ErrValidation
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, is_member = $4, updated_at = now()
		WHERE id = $1
	`, customer.ID, customer.Name, customer.Phone, customer.IsMember)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetCustomerByID(ctx, customer.ID)
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, is_member, point_balance, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.IsMember, &c.PointBalance, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) ListSurcharges(ctx context.Context) ([]domain.Surcharge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, amount, free_threshold, category, active, created_at
		FROM surcharges
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	surcharges := make([]domain.Surcharge, 0, 16)
	for rows.Next() {
		sc, err := scanSurcharge(rows)
		if err != nil {
			return nil, err
		}
		surcharges = append(surcharges, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return surcharges, nil
}

func (s *Store) CreateSurcharge(ctx context.Context, surcharge domain.Surcharge) (*domain.Surcharge, error) {
	if surcharge.ID == "" || surcharge.Name == "" || surcharge.Amount.IsNegative() {
		return nil, store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO surcharges (id, name, kind, amount, free_threshold, category, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
	`, surcharge.ID, surcharge.Name, surcharge.Kind, surcharge.Amount, nullDecimal(surcharge.FreeThreshold), surcharge.Category, surcharge.Active, surcharge.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}
	created := surcharge
	return &created, nil
}

func (s *Store) SetSurchargeActive(ctx context.Context, id string, active bool) (*domain.Surcharge, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE surcharges
		SET active = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, name, kind, amount, free_threshold, category, active, created_at
	`, id, active)
	sc, err := scanSurcharge(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sc, nil
}

func (s *Store) GetSurchargesByIDs(ctx context.Context, ids []string) (map[string]domain.Surcharge, error) {
	result := make(map[string]domain.Surcharge, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, amount, free_threshold, category, active, created_at
		FROM surcharges
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		sc, err := scanSurcharge(rows)
		if err != nil {
			return nil, err
		}
		result[sc.ID] = sc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, value, member_only, minimum_subtotal, start_date, end_date,
			active, stackable, priority, created_at
		FROM promotions
		ORDER BY priority, created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	promos := make([]domain.Promotion, 0, 16)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return promos, nil
}

func (s *Store) CreatePromotion(ctx context.Context, promo domain.Promotion) (*domain.Promotion, error) {
	if promo.ID == "" || promo.Name == "" || !promo.Value.IsPositive() {
		return nil, store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promotions (
			id, name, kind, value, member_only, minimum_subtotal, start_date, end_date,
			active, stackable, priority, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
	`, promo.ID, promo.Name, promo.Kind, promo.Value, promo.MemberOnly, nullDecimal(promo.MinimumSubtotal),
		nullTime(promo.StartDate), nullTime(promo.EndDate), promo.Active, promo.Stackable, promo.Priority, promo.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}
	created := promo
	return &created, nil
}

func (s *Store) SetPromotionActive(ctx context.Context, id string, active bool) (*domain.Promotion, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE promotions
		SET active = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, name, kind, value, member_only, minimum_subtotal, start_date, end_date,
			active, stackable, priority, created_at
	`, id, active)
	p, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetPromotionsByIDs(ctx context.Context, ids []string) (map[string]domain.Promotion, error) {
	result := make(map[string]domain.Promotion, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, value, member_only, minimum_subtotal, start_date, end_date,
			active, stackable, priority, created_at
		FROM promotions
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetSettings reads the single settings row; defaults apply when the row has
// never been written.
func (s *Store) GetSettings(ctx context.Context) (domain.Settings, error) {
	settings := domain.DefaultSettings()
	err := s.db.QueryRowContext(ctx, `
		SELECT tax_rate, auto_apply_tax, points_enabled, points_earn_ratio, points_redeem_value
		FROM settings
		WHERE id = 1
	`).Scan(&settings.TaxRate, &settings.AutoApplyTax, &settings.PointsEnabled, &settings.PointsEarnRatio, &settings.PointsRedeemValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DefaultSettings(), nil
		}
		return settings, err
	}
	return settings, nil
}

func (s *Store) UpdateSettings(ctx context.Context, settings domain.Settings) error {
	if settings.TaxRate.IsNegative() || settings.PointsEarnRatio.IsNegative() || settings.PointsRedeemValue.IsNegative() {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, tax_rate, auto_apply_tax, points_enabled, points_earn_ratio, points_redeem_value, updated_at)
		VALUES (1,$1,$2,$3,$4,$5,now())
		ON CONFLICT (id)
		DO UPDATE SET tax_rate = EXCLUDED.tax_rate, auto_apply_tax = EXCLUDED.auto_apply_tax,
			points_enabled = EXCLUDED.points_enabled, points_earn_ratio = EXCLUDED.points_earn_ratio,
			points_redeem_value = EXCLUDED.points_redeem_value, updated_at = now()
	`, settings.TaxRate, settings.AutoApplyTax, settings.PointsEnabled, settings.PointsEarnRatio, settings.PointsRedeemValue)
	return err
}

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction, entries []domain.PointHistoryEntry) (*domain.Transaction, error) {
	if tx.ID == "" || tx.OutletID == "" || len(tx.Items) == 0 {
		return nil, store.ErrValidation
	}

	itemsJSON, err := json.Marshal(tx.Items)
	if err != nil {
		return nil, err
	}
	surchargesJSON, err := json.Marshal(tx.Surcharges)
	if err != nil {
		return nil, err
	}
	promosJSON, err := json.Marshal(tx.Promotions)
	if err != nil {
		return nil, err
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if tx.RedeemedPoints > 0 {
		// Debit only when the customer still has the points. Zero rows
		// means a concurrent redemption won the race.
		res, err := pgTx.ExecContext(ctx, `
			UPDATE customers
			SET point_balance = point_balance - $2, updated_at = now()
			WHERE id = $1 AND point_balance >= $2
		`, tx.CustomerID, tx.RedeemedPoints)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			if _, lookupErr := s.GetCustomerByID(ctx, tx.CustomerID); errors.Is(lookupErr, store.ErrNotFound) {
				return nil, store.ErrNotFound
			}
			return nil, store.ErrBusinessRule
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, invoice_code, outlet_id, customer_id, status, payment,
			items, surcharges, promotions, redeemed_points,
			subtotal, surcharge_total, promo_discount, points_discount, total_discount,
			tax_amount, total, earned_points, paid_at, created_by, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	`, tx.ID, tx.InvoiceCode, tx.OutletID, nullIfEmpty(tx.CustomerID), tx.Status, tx.Payment,
		itemsJSON, surchargesJSON, promosJSON, tx.RedeemedPoints,
		tx.Subtotal, tx.SurchargeTotal, tx.PromoDiscount, tx.PointsDiscount, tx.TotalDiscount,
		tx.TaxAmount, tx.Total, tx.EarnedPoints, nullTime(tx.PaidAt), tx.CreatedBy, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}

	for _, entry := range entries {
		if err := insertPointEntry(ctx, pgTx, entry); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	saved := tx
	return &saved, nil
}

func (s *Store) GetTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, invoice_code, outlet_id, customer_id, status, payment,
			items, surcharges, promotions, redeemed_points,
			subtotal, surcharge_total, promo_discount, points_discount, total_discount,
			tax_amount, total, earned_points, paid_at, created_by, created_at, updated_at
		FROM transactions
		WHERE id = $1
	`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, outletID string, from, to time.Time, limit int) ([]domain.Transaction, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_code, outlet_id, customer_id, status, payment,
			items, surcharges, promotions, redeemed_points,
			subtotal, surcharge_total, promo_discount, points_discount, total_discount,
			tax_amount, total, earned_points, paid_at, created_by, created_at, updated_at
		FROM transactions
		WHERE ($1 = '' OR outlet_id = $1)
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, outletID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (s *Store) UpdateTransactionStatus(ctx context.Context, id string, status domain.TransactionStatus, at time.Time) (*domain.Transaction, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, id, status, at)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetTransactionByID(ctx, id)
}

func (s *Store) MarkTransactionPaid(ctx context.Context, id string, at time.Time, earn *domain.PointHistoryEntry) (*domain.Transaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var payment domain.PaymentState
	err = pgTx.QueryRowContext(ctx, `
		SELECT payment
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&payment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if payment == domain.PaymentPaid {
		return nil, store.ErrBusinessRule
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE transactions
		SET payment = $2, paid_at = $3, updated_at = $3
		WHERE id = $1
	`, id, domain.PaymentPaid, at)
	if err != nil {
		return nil, err
	}

	if earn != nil {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE customers
			SET point_balance = point_balance + $2, updated_at = now()
			WHERE id = $1
		`, earn.CustomerID, earn.Points)
		if err != nil {
			return nil, err
		}
		if err := insertPointEntry(ctx, pgTx, *earn); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.GetTransactionByID(ctx, id)
}

func (s *Store) DeleteTransaction(ctx context.Context, id string, reversal *domain.PointHistoryEntry) error {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status domain.TransactionStatus
	var payment domain.PaymentState
	err = pgTx.QueryRowContext(ctx, `
		SELECT status, payment
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&status, &payment)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if status != domain.StatusNew || payment != domain.PaymentUnpaid {
		return store.ErrBusinessRule
	}

	if reversal != nil {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE customers
			SET point_balance = point_balance + $2, updated_at = now()
			WHERE id = $1
		`, reversal.CustomerID, reversal.Points)
		if err != nil {
			return err
		}
		if err := insertPointEntry(ctx, pgTx, *reversal); err != nil {
			return err
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}

	return pgTx.Commit()
}

func (s *Store) AppendPointAdjustment(ctx context.Context, entry domain.PointHistoryEntry) (*domain.Customer, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	// The clamp runs inside the UPDATE so concurrent adjustments serialize
	// on the row instead of racing on a balance read earlier.
	var c domain.Customer
	err = pgTx.QueryRowContext(ctx, `
		UPDATE customers
		SET point_balance = GREATEST(0, point_balance + $2), updated_at = now()
		WHERE id = $1
		RETURNING id, name, phone, is_member, point_balance, created_at
	`, entry.CustomerID, entry.Points).Scan(&c.ID, &c.Name, &c.Phone, &c.IsMember, &c.PointBalance, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()

	if err := insertPointEntry(ctx, pgTx, entry); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListPointHistory(ctx context.Context, customerID string, limit int) ([]domain.PointHistoryEntry, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, type, points, transaction_id, transaction_amount, note, created_by, created_at
		FROM point_history
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.PointHistoryEntry, 0, limit)
	for rows.Next() {
		var entry domain.PointHistoryEntry
		var txID sql.NullString
		var amount decimal.NullDecimal
		if err := rows.Scan(&entry.ID, &entry.CustomerID, &entry.Type, &entry.Points, &txID, &amount, &entry.Note, &entry.CreatedBy, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if txID.Valid {
			entry.TransactionID = txID.String
		}
		if amount.Valid {
			a := amount.Decimal
			entry.TransactionAmount = &a
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Store) LastInvoiceSequence(ctx context.Context, outletID string, day time.Time) (int, error) {
	prefix := invoice.DayPrefix(day)
	// Order by length before value: a plain MAX would compare the codes as
	// strings and rank INV-...-9999 above INV-...-10000.
	var last string
	err := s.db.QueryRowContext(ctx, `
		SELECT invoice_code
		FROM transactions
		WHERE outlet_id = $1 AND invoice_code LIKE $2
		ORDER BY length(invoice_code) DESC, invoice_code DESC
		LIMIT 1
	`, outletID, prefix+"%").Scan(&last)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return invoice.ParseSequence(last), nil
}

func (s *Store) GetDailyReport(ctx context.Context, outletID string, from, to time.Time) (domain.DailyReport, error) {
	report := domain.DailyReport{OutletID: outletID}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*)::bigint,
			COALESCE(SUM(subtotal),0),
			COALESCE(SUM(surcharge_total),0),
			COALESCE(SUM(total_discount),0),
			COALESCE(SUM(tax_amount),0),
			COALESCE(SUM(total),0),
			COALESCE(SUM(CASE WHEN payment = $4 THEN earned_points ELSE 0 END),0)::bigint,
			COALESCE(SUM(redeemed_points),0)::bigint
		FROM transactions
		WHERE outlet_id = $1
			AND created_at >= $2
			AND created_at < $3
			AND status <> $5
	`, outletID, from, to, domain.PaymentPaid, domain.StatusCancelled).Scan(
		&report.Transactions,
		&report.GrossSales,
		&report.SurchargeTotal,
		&report.DiscountTotal,
		&report.TaxTotal,
		&report.NetSales,
		&report.PointsEarned,
		&report.PointsRedeemed,
	)
	if err != nil {
		return report, err
	}
	return report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, outlet_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.OutletID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, outletID string, from, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, outlet_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR outlet_id = $1)
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, outletID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.OutletID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrValidation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrValidation
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSurcharge(row rowScanner) (domain.Surcharge, error) {
	var sc domain.Surcharge
	var threshold decimal.NullDecimal
	if err := row.Scan(&sc.ID, &sc.Name, &sc.Kind, &sc.Amount, &threshold, &sc.Category, &sc.Active, &sc.CreatedAt); err != nil {
		return sc, err
	}
	if threshold.Valid {
		t := threshold.Decimal
		sc.FreeThreshold = &t
	}
	sc.CreatedAt = sc.CreatedAt.UTC()
	return sc, nil
}

func scanPromotion(row rowScanner) (domain.Promotion, error) {
	var p domain.Promotion
	var minimum decimal.NullDecimal
	var start sql.NullTime
	var end sql.NullTime
	if err := row.Scan(&p.ID, &p.Name, &p.Kind, &p.Value, &p.MemberOnly, &minimum, &start, &end,
		&p.Active, &p.Stackable, &p.Priority, &p.CreatedAt); err != nil {
		return p, err
	}
	if minimum.Valid {
		m := minimum.Decimal
		p.MinimumSubtotal = &m
	}
	if start.Valid {
		at := start.Time.UTC()
		p.StartDate = &at
	}
	if end.Valid {
		at := end.Time.UTC()
		p.EndDate = &at
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var customerID sql.NullString
	var itemsRaw []byte
	var surchargesRaw []byte
	var promosRaw []byte
	var paidAt sql.NullTime
	if err := row.Scan(
		&tx.ID,
		&tx.InvoiceCode,
		&tx.OutletID,
		&customerID,
		&tx.Status,
		&tx.Payment,
		&itemsRaw,
		&surchargesRaw,
		&promosRaw,
		&tx.RedeemedPoints,
		&tx.Subtotal,
		&tx.SurchargeTotal,
		&tx.PromoDiscount,
		&tx.PointsDiscount,
		&tx.TotalDiscount,
		&tx.TaxAmount,
		&tx.Total,
		&tx.EarnedPoints,
		&paidAt,
		&tx.CreatedBy,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if customerID.Valid {
		tx.CustomerID = customerID.String
	}
	if paidAt.Valid {
		at := paidAt.Time.UTC()
		tx.PaidAt = &at
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &tx.Items); err != nil {
			return nil, err
		}
	}
	if len(surchargesRaw) > 0 {
		if err := json.Unmarshal(surchargesRaw, &tx.Surcharges); err != nil {
			return nil, err
		}
	}
	if len(promosRaw) > 0 {
		if err := json.Unmarshal(promosRaw, &tx.Promotions); err != nil {
			return nil, err
		}
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return &tx, nil
}

func insertPointEntry(ctx context.Context, pgTx *sql.Tx, entry domain.PointHistoryEntry) error {
	_, err := pgTx.ExecContext(ctx, `
		INSERT INTO point_history (id, customer_id, type, points, transaction_id, transaction_amount, note, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.CustomerID, entry.Type, entry.Points, nullIfEmpty(entry.TransactionID),
		nullDecimal(entry.TransactionAmount), entry.Note, entry.CreatedBy, entry.CreatedAt)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullDecimal(val *decimal.Decimal) any {
	if val == nil {
		return nil
	}
	return *val
}
