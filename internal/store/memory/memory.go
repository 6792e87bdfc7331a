package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"laundripos/backend/internal/domain"
	"laundripos/backend/internal/invoice"
	"laundripos/backend/internal/money"
	"laundripos/backend/internal/store"
	"laundripos/backend/internal/xid"
)

// Store is the in-memory repository used for development and tests. A single
// mutex serializes every mutation, which also gives the per-customer balance
// serialization the Repository contract requires.
type Store struct {
	mu              sync.RWMutex
	outlets         map[string]domain.Outlet
	offerings       map[string]domain.ServiceOffering
	customers       map[string]domain.Customer
	surcharges      map[string]domain.Surcharge
	promotions      map[string]domain.Promotion
	settings        domain.Settings
	transactions    map[string]*domain.Transaction
	pointHistory    map[string][]domain.PointHistoryEntry
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial accounts for dev/demo mode. Credentials come
// from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; hardcoded dev defaults
// are used with a warning when unset.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "kasir123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"kasir", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	thresholdParfum := money.MustParse("100000")
	minMember := money.MustParse("50000")
	minHemat := money.MustParse("30000")

	outlets := []domain.Outlet{
		{ID: "outlet-pusat", Name: "Laundri Pusat", Address: "Jl. Melati No. 12", Phone: "0812000001", CreatedAt: now},
		{ID: "outlet-timur", Name: "Laundri Cabang Timur", Address: "Jl. Kenanga No. 4", Phone: "0812000002", CreatedAt: now},
	}
	offerings := []domain.ServiceOffering{
		{ID: "svc-cuci-kering", Name: "Cuci Kering", Unit: "kg", UnitPrice: money.MustParse("7000"), Active: true, CreatedAt: now},
		{ID: "svc-cuci-setrika", Name: "Cuci Setrika", Unit: "kg", UnitPrice: money.MustParse("10000"), Active: true, CreatedAt: now},
		{ID: "svc-setrika", Name: "Setrika Saja", Unit: "kg", UnitPrice: money.MustParse("5000"), Active: true, CreatedAt: now},
		{ID: "svc-bedcover", Name: "Bed Cover", Unit: "pcs", UnitPrice: money.MustParse("25000"), Active: true, CreatedAt: now},
		{ID: "svc-sepatu", Name: "Cuci Sepatu", Unit: "pasang", UnitPrice: money.MustParse("35000"), Active: false, CreatedAt: now},
	}
	customers := []domain.Customer{
		{ID: "cust-budi", Name: "Budi Santoso", Phone: "0813111222", IsMember: true, PointBalance: 50, CreatedAt: now},
		{ID: "cust-sari", Name: "Sari Lestari", Phone: "0813333444", IsMember: false, PointBalance: 0, CreatedAt: now},
	}
	surcharges := []domain.Surcharge{
		{ID: "sur-express", Name: "Layanan Express", Kind: domain.SurchargeFixed, Amount: money.MustParse("5000"), Category: domain.CategoryGeneral, Active: true, CreatedAt: now},
		{ID: "sur-parfum", Name: "Parfum Premium", Kind: domain.SurchargeFixed, Amount: money.MustParse("3000"), FreeThreshold: &thresholdParfum, Category: domain.CategoryGeneral, Active: true, CreatedAt: now},
		{ID: "sur-antar", Name: "Antar Jemput", Kind: domain.SurchargeDistance, Amount: money.MustParse("2500"), Category: domain.CategoryShipping, Active: true, CreatedAt: now},
	}
	promotions := []domain.Promotion{
		{ID: "promo-member10", Name: "Diskon Member 10%", Kind: domain.DiscountPercent, Value: money.MustParse("10"), MemberOnly: true, MinimumSubtotal: &minMember, Active: true, Stackable: true, Priority: 1, CreatedAt: now},
		{ID: "promo-hemat", Name: "Potongan Hemat", Kind: domain.DiscountFixed, Value: money.MustParse("5000"), MinimumSubtotal: &minHemat, Active: true, Stackable: false, Priority: 2, CreatedAt: now},
	}

	s := &Store{
		outlets:         make(map[string]domain.Outlet, len(outlets)),
		offerings:       make(map[string]domain.ServiceOffering, len(offerings)),
		customers:       make(map[string]domain.Customer, len(customers)),
		surcharges:      make(map[string]domain.Surcharge, len(surcharges)),
		promotions:      make(map[string]domain.Promotion, len(promotions)),
		settings:        domain.DefaultSettings(),
		transactions:    make(map[string]*domain.Transaction),
		pointHistory:    make(map[string][]domain.PointHistoryEntry),
		usersByUsername: seedUsers(),
	}
	for _, o := range outlets {
		s.outlets[o.ID] = o
	}
	for _, o := range offerings {
		s.offerings[o.ID] = o
	}
	for _, c := range customers {
		s.customers[c.ID] = c
	}
	for _, sc := range surcharges {
		s.surcharges[sc.ID] = sc
	}
	for _, p := range promotions {
		s.promotions[p.ID] = p
	}
	return s
}

func (s *Store) ListOutlets(_ context.Context) ([]domain.Outlet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Outlet, 0, len(s.outlets))
	for _, o := range s.outlets {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateOutlet(_ context.Context, outlet domain.Outlet) (*domain.Outlet, error) {
	if outlet.ID == "" || outlet.Name == "" {
		return nil, store.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.outlets[outlet.ID]; exists {
		return nil, store.ErrValidation
	}
	s.outlets[outlet.ID] = outlet
	created := outlet
	return &created, nil
}

func (s *Store) GetOutletByID(_ context.Context, id string) (*domain.Outlet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	outlet, ok := s.outlets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &outlet, nil
}

func (s *Store) ListOfferings(_ context.Context) ([]domain.ServiceOffering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ServiceOffering, 0, len(s.offerings))
	for _, o := range s.offerings {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateOffering(_ context.Context, offering domain.ServiceOffering) (*domain.ServiceOffering, error) {
	if offering.ID == "" || offering.Name == "" || !offering.UnitPrice.IsPositive() {
		return nil, store.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.offerings[offering.ID]; exists {
		return nil, store.ErrValidation
	}
	s.offerings[offering.ID] = offering
	created := offering
	return &created, nil
}

func (s *Store) UpdateOffering(_ context.Context, offering domain.ServiceOffering) (*domain.ServiceOffering, error) {
	if offering.Name == "" || !offering.UnitPrice.IsPositive() {
		return nil, store.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offerings[offering.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.offerings[offering.ID] = offering
	saved := offering
	return &saved, nil
}

func (s *Store) GetOfferingsByIDs(_ context.Context, ids []string) (map[string]domain.ServiceOffering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.ServiceOffering, len(ids))
	for _, id := range ids {
		if o, ok := s.offerings[id]; ok {
			out[id] = o
		}
	}
	return out, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.Name == "" || customer.PointBalance < 0 {
		return nil, store.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.customers[customer.ID]; exists {
		return nil, store.ErrValidation
	}
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" || customer.PointBalance < 0 {
		return nil, store.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[customer.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.customers[customer.ID] = customer
	saved := customer
	return &saved, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) ListSurcharges(_ context.Context) ([]domain.Surcharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Surcharge, 0, len(s.surcharges))
	for _, sc := range s.surcharges {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateSurcharge(_ context.Context, surcharge domain.Surcharge) (*domain.Surcharge, error) {
	if surcharge.ID == "" || surcharge.Name == "" || surcharge.Amount.IsNegative() {
		return nil, store.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.surcharges[surcharge.ID]; exists {
		return nil, store.ErrValidation
	}
	s.surcharges[surcharge.ID] = surcharge
	created := surcharge
	return &created, nil
}

func (s *Store) SetSurchargeActive(_ context.Context, id string, active bool) (*domain.Surcharge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	surcharge, ok := s.surcharges[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	surcharge.Active = active
	s.surcharges[id] = surcharge
	return &surcharge, nil
}

func (s *Store) GetSurchargesByIDs(_ context.Context, ids []string) (map[string]domain.Surcharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Surcharge, len(ids))
	for _, id := range ids {
		if sc, ok := s.surcharges[id]; ok {
			out[id] = sc
		}
	}
	return out, nil
}

func (s *Store) ListPromotions(_ context.Context) ([]domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Promotion, 0, len(s.promotions))
	for _, p := range s.promotions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority == out[j].Priority {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Priority < out[j].Priority
	})
	return out, nil
}

func (s *Store) CreatePromotion(_ context.Context, promo domain.Promotion) (*domain.Promotion, error) {
	if promo.ID == "" || promo.Name == "" || !promo.Value.IsPositive() {
		return nil, store.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.promotions[promo.ID]; exists {
		return nil, store.ErrValidation
	}
	s.promotions[promo.ID] = promo
	created := promo
	return &created, nil
}

func (s *Store) SetPromotionActive(_ context.Context, id string, active bool) (*domain.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	promo, ok := s.promotions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	promo.Active = active
	s.promotions[id] = promo
	return &promo, nil
}

func (s *Store) GetPromotionsByIDs(_ context.Context, ids []string) (map[string]domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Promotion, len(ids))
	for _, id := range ids {
		if p, ok := s.promotions[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) GetSettings(_ context.Context) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *Store) UpdateSettings(_ context.Context, settings domain.Settings) error {
	if settings.TaxRate.IsNegative() || settings.PointsEarnRatio.IsNegative() || settings.PointsRedeemValue.IsNegative() {
		return store.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, tx domain.Transaction, entries []domain.PointHistoryEntry) (*domain.Transaction, error) {
	if tx.ID == "" || tx.OutletID == "" || len(tx.Items) == 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.ID]; exists {
		return nil, store.ErrValidation
	}

	if tx.RedeemedPoints > 0 {
		customer, ok := s.customers[tx.CustomerID]
		if !ok {
			return nil, store.ErrNotFound
		}
		// Re-check under the lock: the service's balance check may be stale.
		if customer.PointBalance < tx.RedeemedPoints {
			return nil, store.ErrBusinessRule
		}
		customer.PointBalance -= tx.RedeemedPoints
		s.customers[tx.CustomerID] = customer
	}

	for _, entry := range entries {
		s.pointHistory[entry.CustomerID] = append(s.pointHistory[entry.CustomerID], entry)
	}

	saved := tx
	s.transactions[tx.ID] = &saved
	copied := saved
	return &copied, nil
}

func (s *Store) GetTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *tx
	return &copied, nil
}

func (s *Store) ListTransactions(_ context.Context, outletID string, from, to time.Time, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, 0, 32)
	for _, tx := range s.transactions {
		if outletID != "" && tx.OutletID != outletID {
			continue
		}
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		out = append(out, *tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateTransactionStatus(_ context.Context, id string, status domain.TransactionStatus, at time.Time) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	tx.Status = status
	tx.UpdatedAt = at
	copied := *tx
	return &copied, nil
}

func (s *Store) MarkTransactionPaid(_ context.Context, id string, at time.Time, earn *domain.PointHistoryEntry) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if tx.Payment == domain.PaymentPaid {
		return nil, store.ErrBusinessRule
	}
	tx.Payment = domain.PaymentPaid
	tx.PaidAt = &at
	tx.UpdatedAt = at

	if earn != nil {
		customer, ok := s.customers[earn.CustomerID]
		if !ok {
			return nil, store.ErrNotFound
		}
		customer.PointBalance += earn.Points
		s.customers[earn.CustomerID] = customer
		s.pointHistory[earn.CustomerID] = append(s.pointHistory[earn.CustomerID], *earn)
	}

	copied := *tx
	return &copied, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string, reversal *domain.PointHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return store.ErrNotFound
	}
	if tx.Status != domain.StatusNew || tx.Payment != domain.PaymentUnpaid {
		return store.ErrBusinessRule
	}

	if reversal != nil {
		customer, ok := s.customers[reversal.CustomerID]
		if !ok {
			return store.ErrNotFound
		}
		customer.PointBalance += reversal.Points
		s.customers[reversal.CustomerID] = customer
		s.pointHistory[reversal.CustomerID] = append(s.pointHistory[reversal.CustomerID], *reversal)
	}

	delete(s.transactions, id)
	return nil
}

func (s *Store) AppendPointAdjustment(_ context.Context, entry domain.PointHistoryEntry) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[entry.CustomerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	// Apply the delta under the lock; a balance computed outside it could
	// be stale by the time the write lands.
	balance := customer.PointBalance + entry.Points
	if balance < 0 {
		balance = 0
	}
	customer.PointBalance = balance
	s.customers[entry.CustomerID] = customer
	s.pointHistory[entry.CustomerID] = append(s.pointHistory[entry.CustomerID], entry)
	copied := customer
	return &copied, nil
}

func (s *Store) ListPointHistory(_ context.Context, customerID string, limit int) ([]domain.PointHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.pointHistory[customerID]
	out := make([]domain.PointHistoryEntry, len(history))
	copy(out, history)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) LastInvoiceSequence(_ context.Context, outletID string, day time.Time) (int, error) {
	prefix := invoice.DayPrefix(day)
	s.mu.RLock()
	defer s.mu.RUnlock()
	highest := 0
	for _, tx := range s.transactions {
		if tx.OutletID != outletID || !strings.HasPrefix(tx.InvoiceCode, prefix) {
			continue
		}
		if seq := invoice.ParseSequence(tx.InvoiceCode); seq > highest {
			highest = seq
		}
	}
	return highest, nil
}

func (s *Store) GetDailyReport(_ context.Context, outletID string, from, to time.Time) (domain.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.DailyReport{
		OutletID:       outletID,
		GrossSales:     decimal.Zero,
		SurchargeTotal: decimal.Zero,
		DiscountTotal:  decimal.Zero,
		TaxTotal:       decimal.Zero,
		NetSales:       decimal.Zero,
	}
	for _, tx := range s.transactions {
		if tx.OutletID != outletID || tx.Status == domain.StatusCancelled {
			continue
		}
		if tx.CreatedAt.Before(from) || !tx.CreatedAt.Before(to) {
			continue
		}
		report.Transactions++
		report.GrossSales = report.GrossSales.Add(tx.Subtotal)
		report.SurchargeTotal = report.SurchargeTotal.Add(tx.SurchargeTotal)
		report.DiscountTotal = report.DiscountTotal.Add(tx.TotalDiscount)
		report.TaxTotal = report.TaxTotal.Add(tx.TaxAmount)
		report.NetSales = report.NetSales.Add(tx.Total)
		report.PointsRedeemed += tx.RedeemedPoints
		if tx.Payment == domain.PaymentPaid {
			report.PointsEarned += tx.EarnedPoints
		}
	}
	return report, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, outletID string, from, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if outletID != "" && entry.OutletID != outletID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrValidation
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
