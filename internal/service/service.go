package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"laundripos/backend/internal/cache"
	"laundripos/backend/internal/domain"
	"laundripos/backend/internal/invoice"
	"laundripos/backend/internal/loyalty"
	"laundripos/backend/internal/pricing"
	"laundripos/backend/internal/store"
	"laundripos/backend/internal/xid"
)

var hundred = decimal.NewFromInt(100)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo            store.Repository
	settingsCache   cache.SettingsCache
	settingsTTL     time.Duration
	defaultOutletID string
}

func New(repo store.Repository, settingsCache cache.SettingsCache, defaultOutletID string, settingsTTL time.Duration) *Service {
	if defaultOutletID == "" {
		defaultOutletID = "outlet-pusat"
	}
	if settingsCache == nil {
		settingsCache = cache.NoopSettingsCache{}
	}
	if settingsTTL <= 0 {
		settingsTTL = 5 * time.Minute
	}

	return &Service{
		repo:            repo,
		settingsCache:   settingsCache,
		settingsTTL:     settingsTTL,
		defaultOutletID: defaultOutletID,
	}
}

func (s *Service) ListOutlets(ctx context.Context) ([]domain.Outlet, error) {
	return s.repo.ListOutlets(ctx)
}

func (s *Service) CreateOutlet(ctx context.Context, req domain.OutletCreateRequest) (domain.Outlet, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Outlet{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Outlet{}, store.ErrValidation
	}

	outlet := domain.Outlet{
		ID:        xid.New("outlet"),
		Name:      req.Name,
		Address:   strings.TrimSpace(req.Address),
		Phone:     strings.TrimSpace(req.Phone),
		CreatedAt: time.Now().UTC(),
	}
	created, err := s.repo.CreateOutlet(ctx, outlet)
	if err != nil {
		return domain.Outlet{}, err
	}

	s.logAudit(ctx, created.ID, "outlet_create", "outlet", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) ListOfferings(ctx context.Context) ([]domain.ServiceOffering, error) {
	return s.repo.ListOfferings(ctx)
}

func (s *Service) CreateOffering(ctx context.Context, req domain.OfferingCreateRequest) (domain.ServiceOffering, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.ServiceOffering{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Unit = strings.TrimSpace(req.Unit)
	if req.Name == "" || req.Unit == "" || !req.UnitPrice.IsPositive() {
		return domain.ServiceOffering{}, store.ErrValidation
	}

	offering := domain.ServiceOffering{
		ID:        xid.New("svc"),
		Name:      req.Name,
		Unit:      req.Unit,
		UnitPrice: req.UnitPrice,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	created, err := s.repo.CreateOffering(ctx, offering)
	if err != nil {
		return domain.ServiceOffering{}, err
	}

	s.logAudit(ctx, "", "offering_create", "offering", created.ID, fmt.Sprintf("name=%s,price=%s", created.Name, created.UnitPrice))
	return *created, nil
}

func (s *Service) UpdateOffering(ctx context.Context, id string, req domain.OfferingUpdateRequest) (domain.ServiceOffering, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.ServiceOffering{}, fmt.Errorf("admin role required")
	}

	existing, err := s.getOffering(ctx, id)
	if err != nil {
		return domain.ServiceOffering{}, err
	}

	updated := existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.ServiceOffering{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.Unit != nil {
		unit := strings.TrimSpace(*req.Unit)
		if unit == "" {
			return domain.ServiceOffering{}, store.ErrValidation
		}
		updated.Unit = unit
	}
	if req.UnitPrice != nil {
		if !req.UnitPrice.IsPositive() {
			return domain.ServiceOffering{}, store.ErrValidation
		}
		updated.UnitPrice = *req.UnitPrice
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateOffering(ctx, updated)
	if err != nil {
		return domain.ServiceOffering{}, err
	}

	s.logAudit(ctx, "", "offering_update", "offering", saved.ID, fmt.Sprintf("name=%s,price=%s,active=%t", saved.Name, saved.UnitPrice, saved.Active))
	return *saved, nil
}

func (s *Service) getOffering(ctx context.Context, id string) (domain.ServiceOffering, error) {
	offerings, err := s.repo.GetOfferingsByIDs(ctx, []string{id})
	if err != nil {
		return domain.ServiceOffering{}, err
	}
	offering, ok := offerings[id]
	if !ok {
		return domain.ServiceOffering{}, store.ErrNotFound
	}
	return offering, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, store.ErrValidation
	}

	customer := domain.Customer{
		ID:        xid.New("cust"),
		Name:      req.Name,
		Phone:     strings.TrimSpace(req.Phone),
		IsMember:  req.IsMember,
		CreatedAt: time.Now().UTC(),
	}
	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "", "customer_create", "customer", created.ID, fmt.Sprintf("name=%s,member=%t", created.Name, created.IsMember))
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	existing, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.IsMember != nil {
		updated.IsMember = *req.IsMember
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	return *saved, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListSurcharges(ctx context.Context) ([]domain.Surcharge, error) {
	return s.repo.ListSurcharges(ctx)
}

func (s *Service) CreateSurcharge(ctx context.Context, req domain.SurchargeCreateRequest) (domain.Surcharge, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Surcharge{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Amount.IsNegative() {
		return domain.Surcharge{}, store.ErrValidation
	}
	switch req.Kind {
	case domain.SurchargeFixed, domain.SurchargePercent, domain.SurchargeDistance:
	default:
		return domain.Surcharge{}, store.ErrValidation
	}
	if req.Category == "" {
		req.Category = domain.CategoryGeneral
	}
	switch req.Category {
	case domain.CategoryGeneral, domain.CategoryShipping:
	default:
		return domain.Surcharge{}, store.ErrValidation
	}
	if req.FreeThreshold != nil && req.FreeThreshold.IsNegative() {
		return domain.Surcharge{}, store.ErrValidation
	}

	surcharge := domain.Surcharge{
		ID:            xid.New("sur"),
		Name:          req.Name,
		Kind:          req.Kind,
		Amount:        req.Amount,
		FreeThreshold: req.FreeThreshold,
		Category:      req.Category,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
	created, err := s.repo.CreateSurcharge(ctx, surcharge)
	if err != nil {
		return domain.Surcharge{}, err
	}

	s.logAudit(ctx, "", "surcharge_create", "surcharge", created.ID, fmt.Sprintf("name=%s,kind=%s,amount=%s", created.Name, created.Kind, created.Amount))
	return *created, nil
}

func (s *Service) SetSurchargeActive(ctx context.Context, id string, active bool) (domain.Surcharge, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Surcharge{}, fmt.Errorf("admin role required")
	}

	saved, err := s.repo.SetSurchargeActive(ctx, id, active)
	if err != nil {
		return domain.Surcharge{}, err
	}
	s.logAudit(ctx, "", "surcharge_set_active", "surcharge", saved.ID, fmt.Sprintf("active=%t", saved.Active))
	return *saved, nil
}

func (s *Service) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	return s.repo.ListPromotions(ctx)
}

func (s *Service) CreatePromotion(ctx context.Context, req domain.PromotionCreateRequest) (domain.Promotion, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Promotion{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || !req.Value.IsPositive() {
		return domain.Promotion{}, store.ErrValidation
	}
	switch req.Kind {
	case domain.DiscountFixed, domain.DiscountPercent:
	default:
		return domain.Promotion{}, store.ErrValidation
	}
	if req.Kind == domain.DiscountPercent && req.Value.GreaterThan(hundred) {
		return domain.Promotion{}, store.ErrValidation
	}
	if req.MinimumSubtotal != nil && req.MinimumSubtotal.IsNegative() {
		return domain.Promotion{}, store.ErrValidation
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return domain.Promotion{}, store.ErrValidation
	}

	promo := domain.Promotion{
		ID:              xid.New("promo"),
		Name:            req.Name,
		Kind:            req.Kind,
		Value:           req.Value,
		MemberOnly:      req.MemberOnly,
		MinimumSubtotal: req.MinimumSubtotal,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Active:          true,
		Stackable:       req.Stackable,
		Priority:        req.Priority,
		CreatedAt:       time.Now().UTC(),
	}
	created, err := s.repo.CreatePromotion(ctx, promo)
	if err != nil {
		return domain.Promotion{}, err
	}

	s.logAudit(ctx, "", "promotion_create", "promotion", created.ID, fmt.Sprintf("name=%s,kind=%s,value=%s", created.Name, created.Kind, created.Value))
	return *created, nil
}

func (s *Service) SetPromotionActive(ctx context.Context, id string, active bool) (domain.Promotion, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Promotion{}, fmt.Errorf("admin role required")
	}

	saved, err := s.repo.SetPromotionActive(ctx, id, active)
	if err != nil {
		return domain.Promotion{}, err
	}
	s.logAudit(ctx, "", "promotion_set_active", "promotion", saved.ID, fmt.Sprintf("active=%t", saved.Active))
	return *saved, nil
}

// GetSettings serves from the cache when warm and falls back to the store.
// Cache failures degrade to a direct read, never to an error.
func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	cached, found, err := s.settingsCache.Get(ctx)
	if err != nil {
		log.Printf("[service] WARN: settings cache read failed: %v", err)
	}
	if found && cached != nil {
		return *cached, nil
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	if err := s.settingsCache.Set(ctx, &settings, s.settingsTTL); err != nil {
		log.Printf("[service] WARN: settings cache write failed: %v", err)
	}
	return settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Settings{}, fmt.Errorf("admin role required")
	}

	if settings.TaxRate.IsNegative() || settings.TaxRate.GreaterThan(hundred) {
		return domain.Settings{}, store.ErrValidation
	}
	if settings.PointsEarnRatio.IsNegative() || settings.PointsRedeemValue.IsNegative() {
		return domain.Settings{}, store.ErrValidation
	}

	if err := s.repo.UpdateSettings(ctx, settings); err != nil {
		return domain.Settings{}, err
	}
	if err := s.settingsCache.Invalidate(ctx); err != nil {
		log.Printf("[service] WARN: settings cache invalidate failed: %v", err)
	}

	s.logAudit(ctx, "", "settings_update", "settings", "settings", fmt.Sprintf("tax_rate=%s,points_enabled=%t", settings.TaxRate, settings.PointsEnabled))
	return settings, nil
}

// Checkout prices the cart, assigns the next invoice code for the outlet's
// day and persists the transaction. Redeemed points are debited in the same
// store operation as the insert.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if req.OutletID == "" {
		req.OutletID = s.defaultOutletID
	}
	if len(req.Items) == 0 {
		return domain.CheckoutResponse{}, store.ErrValidation
	}
	if req.RedeemPoints < 0 {
		return domain.CheckoutResponse{}, store.ErrValidation
	}

	outlet, err := s.repo.GetOutletByID(ctx, req.OutletID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.CheckoutResponse{}, fmt.Errorf("outlet %s: %w", req.OutletID, store.ErrNotFound)
		}
		return domain.CheckoutResponse{}, err
	}

	var customer *domain.Customer
	if req.CustomerID != "" {
		customer, err = s.repo.GetCustomerByID(ctx, req.CustomerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.CheckoutResponse{}, fmt.Errorf("customer %s: %w", req.CustomerID, store.ErrNotFound)
			}
			return domain.CheckoutResponse{}, err
		}
	}

	items, err := s.resolveItems(ctx, req.Items)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	surcharges, err := s.resolveSurcharges(ctx, req.Surcharges)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	promos, err := s.resolvePromotions(ctx, req.PromotionIDs)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	now := time.Now().UTC()
	result, err := pricing.Compute(pricing.Input{
		Items:        items,
		Surcharges:   surcharges,
		Promotions:   promos,
		RedeemPoints: req.RedeemPoints,
		Customer:     customer,
		Settings:     settings,
		Now:          now,
	})
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	lastSeq, err := s.repo.LastInvoiceSequence(ctx, outlet.ID, now)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	actorName := "system"
	if actor, ok := ActorFromContext(ctx); ok {
		actorName = actor.Username
	}

	tx := domain.Transaction{
		ID:             xid.New("trx"),
		InvoiceCode:    invoice.Format(now, lastSeq+1),
		OutletID:       outlet.ID,
		CustomerID:     req.CustomerID,
		Status:         domain.StatusNew,
		Payment:        domain.PaymentUnpaid,
		Items:          items,
		Surcharges:     result.Surcharges,
		Promotions:     result.Promotions,
		RedeemedPoints: req.RedeemPoints,
		Subtotal:       result.Subtotal,
		SurchargeTotal: result.SurchargeTotal,
		PromoDiscount:  result.PromoDiscount,
		PointsDiscount: result.PointsDiscount,
		TotalDiscount:  result.TotalDiscount,
		TaxAmount:      result.TaxAmount,
		Total:          result.Total,
		EarnedPoints:   result.EarnedPoints,
		CreatedBy:      actorName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var entries []domain.PointHistoryEntry
	if req.RedeemPoints > 0 {
		_, entry, err := loyalty.Redeem(*customer, req.RedeemPoints, loyalty.Context{
			TransactionID:     tx.ID,
			TransactionAmount: &tx.Total,
			Actor:             actorName,
			Now:               now,
		})
		if err != nil {
			return domain.CheckoutResponse{}, err
		}
		entries = append(entries, entry)
	}

	created, err := s.repo.CreateTransaction(ctx, tx, entries)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	s.logAudit(ctx, outlet.ID, "checkout", "transaction", created.ID,
		fmt.Sprintf("invoice=%s,total=%s,redeemed=%d", created.InvoiceCode, created.Total, created.RedeemedPoints))
	return domain.CheckoutResponse{Transaction: *created}, nil
}

func (s *Service) resolveItems(ctx context.Context, reqItems []domain.CheckoutItem) ([]domain.LineItem, error) {
	ids := make([]string, 0, len(reqItems))
	for _, item := range reqItems {
		if item.OfferingID == "" {
			return nil, store.ErrValidation
		}
		ids = append(ids, item.OfferingID)
	}

	offerings, err := s.repo.GetOfferingsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]domain.LineItem, 0, len(reqItems))
	for _, item := range reqItems {
		offering, ok := offerings[item.OfferingID]
		if !ok {
			return nil, fmt.Errorf("offering %s: %w", item.OfferingID, store.ErrNotFound)
		}
		if !offering.Active {
			return nil, fmt.Errorf("offering %s is inactive: %w", item.OfferingID, store.ErrValidation)
		}
		if !item.Quantity.IsPositive() {
			return nil, store.ErrValidation
		}
		items = append(items, domain.LineItem{
			OfferingID: offering.ID,
			Name:       offering.Name,
			Quantity:   item.Quantity,
			UnitPrice:  offering.UnitPrice,
			Note:       strings.TrimSpace(item.Note),
		})
	}
	return items, nil
}

func (s *Service) resolveSurcharges(ctx context.Context, reqSurcharges []domain.CheckoutSurcharge) ([]pricing.SurchargeInput, error) {
	if len(reqSurcharges) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(reqSurcharges))
	for _, sc := range reqSurcharges {
		if sc.SurchargeID == "" {
			return nil, store.ErrValidation
		}
		if sc.DistanceKm.IsNegative() {
			return nil, store.ErrValidation
		}
		ids = append(ids, sc.SurchargeID)
	}

	surcharges, err := s.repo.GetSurchargesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	inputs := make([]pricing.SurchargeInput, 0, len(reqSurcharges))
	for _, sc := range reqSurcharges {
		surcharge, ok := surcharges[sc.SurchargeID]
		if !ok {
			return nil, fmt.Errorf("surcharge %s: %w", sc.SurchargeID, store.ErrNotFound)
		}
		inputs = append(inputs, pricing.SurchargeInput{
			Surcharge:  surcharge,
			DistanceKm: sc.DistanceKm,
		})
	}
	return inputs, nil
}

func (s *Service) resolvePromotions(ctx context.Context, ids []string) ([]domain.Promotion, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	promos, err := s.repo.GetPromotionsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	resolved := make([]domain.Promotion, 0, len(ids))
	for _, id := range ids {
		promo, ok := promos[id]
		if !ok {
			return nil, fmt.Errorf("promotion %s: %w", id, store.ErrNotFound)
		}
		resolved = append(resolved, promo)
	}
	return resolved, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	tx, err := s.repo.GetTransactionByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	return *tx, nil
}

func (s *Service) ListTransactions(ctx context.Context, outletID string, date string, limit int) ([]domain.Transaction, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrValidation
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListTransactions(ctx, outletID, from, to, limit)
}

// UpdateTransactionStatus enforces the lifecycle: completed orders branch on
// whether the transaction is a delivery, cancellation is only reachable
// before completion.
func (s *Service) UpdateTransactionStatus(ctx context.Context, id string, next domain.TransactionStatus) (domain.Transaction, error) {
	if !next.Valid() {
		return domain.Transaction{}, store.ErrValidation
	}

	tx, err := s.repo.GetTransactionByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	if !tx.Status.CanTransition(next, tx.IsDelivery()) {
		return domain.Transaction{}, fmt.Errorf("cannot move %s to %s: %w", tx.Status, next, store.ErrBusinessRule)
	}

	updated, err := s.repo.UpdateTransactionStatus(ctx, id, next, time.Now().UTC())
	if err != nil {
		return domain.Transaction{}, err
	}

	s.logAudit(ctx, tx.OutletID, "transaction_status", "transaction", id, fmt.Sprintf("from=%s,to=%s", tx.Status, next))
	return *updated, nil
}

// MarkPaid flips the one-way payment flag. Earned points are credited here,
// not at checkout, so an unpaid order never moves a balance upward.
func (s *Service) MarkPaid(ctx context.Context, id string) (domain.Transaction, error) {
	tx, err := s.repo.GetTransactionByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	if tx.Payment == domain.PaymentPaid {
		return domain.Transaction{}, fmt.Errorf("transaction already paid: %w", store.ErrBusinessRule)
	}

	now := time.Now().UTC()
	actorName := "system"
	if actor, ok := ActorFromContext(ctx); ok {
		actorName = actor.Username
	}

	var earnEntry *domain.PointHistoryEntry
	if tx.CustomerID != "" && tx.EarnedPoints > 0 {
		customer, err := s.repo.GetCustomerByID(ctx, tx.CustomerID)
		if err != nil {
			return domain.Transaction{}, err
		}
		_, entry, err := loyalty.Earn(*customer, tx.EarnedPoints, loyalty.Context{
			TransactionID:     tx.ID,
			TransactionAmount: &tx.Total,
			Actor:             actorName,
			Now:               now,
		})
		if err != nil {
			return domain.Transaction{}, err
		}
		earnEntry = &entry
	}

	updated, err := s.repo.MarkTransactionPaid(ctx, id, now, earnEntry)
	if err != nil {
		return domain.Transaction{}, err
	}

	s.logAudit(ctx, tx.OutletID, "transaction_paid", "transaction", id,
		fmt.Sprintf("invoice=%s,total=%s,earned=%d", tx.InvoiceCode, tx.Total, tx.EarnedPoints))
	return *updated, nil
}

// DeleteTransaction removes a transaction that never entered the workflow.
// Redeemed points come back through a compensating adjustment entry; the
// original redeem entry stays in the ledger.
func (s *Service) DeleteTransaction(ctx context.Context, id string, reason string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return store.ErrValidation
	}

	tx, err := s.repo.GetTransactionByID(ctx, id)
	if err != nil {
		return err
	}
	if tx.Status != domain.StatusNew || tx.Payment != domain.PaymentUnpaid {
		return fmt.Errorf("only new unpaid transactions can be deleted: %w", store.ErrBusinessRule)
	}

	now := time.Now().UTC()
	var reversal *domain.PointHistoryEntry
	if tx.RedeemedPoints > 0 && tx.CustomerID != "" {
		customer, err := s.repo.GetCustomerByID(ctx, tx.CustomerID)
		if err != nil {
			return err
		}
		_, entry, err := loyalty.Adjust(*customer, tx.RedeemedPoints,
			fmt.Sprintf("reversal of deleted transaction %s: %s", tx.InvoiceCode, reason),
			loyalty.Context{TransactionID: tx.ID, Actor: actor.Username, Now: now})
		if err != nil {
			return err
		}
		reversal = &entry
	}

	if err := s.repo.DeleteTransaction(ctx, id, reversal); err != nil {
		return err
	}

	s.logAudit(ctx, tx.OutletID, "transaction_delete", "transaction", id,
		fmt.Sprintf("invoice=%s,reason=%s,restored=%d", tx.InvoiceCode, reason, tx.RedeemedPoints))
	return nil
}

// AdjustPoints applies a manual signed correction. The ledger entry records
// the requested delta even when the balance clamps at zero.
func (s *Service) AdjustPoints(ctx context.Context, customerID string, req domain.AdjustPointsRequest) (domain.Customer, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Customer{}, fmt.Errorf("admin role required")
	}

	customer, err := s.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}

	now := time.Now().UTC()
	_, entry, err := loyalty.Adjust(*customer, req.Delta, req.Note, loyalty.Context{
		Actor: actor.Username,
		Now:   now,
	})
	if err != nil {
		return domain.Customer{}, err
	}

	// The store re-applies the delta and clamps under its own lock; the
	// balance read above is only used to validate the request shape.
	updated, err := s.repo.AppendPointAdjustment(ctx, entry)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "", "points_adjust", "customer", customerID,
		fmt.Sprintf("delta=%d,balance=%d,note=%s", req.Delta, updated.PointBalance, strings.TrimSpace(req.Note)))
	return *updated, nil
}

func (s *Service) ListPointHistory(ctx context.Context, customerID string, limit int) ([]domain.PointHistoryEntry, error) {
	if _, err := s.repo.GetCustomerByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListPointHistory(ctx, customerID, limit)
}

func (s *Service) DailyReport(ctx context.Context, outletID string, date string) (domain.DailyReport, error) {
	if outletID == "" {
		outletID = s.defaultOutletID
	}

	var day time.Time
	if strings.TrimSpace(date) == "" {
		now := time.Now().UTC()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return domain.DailyReport{}, store.ErrValidation
		}
		day = parsed.UTC()
	}
	from := day
	to := from.Add(24 * time.Hour)

	report, err := s.repo.GetDailyReport(ctx, outletID, from, to)
	if err != nil {
		return domain.DailyReport{}, err
	}
	report.OutletID = outletID
	report.Date = from.Format("2006-01-02")
	return report, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, outletID string, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrValidation
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, outletID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, outletID string, action string, entityType string, entityID string, detail string) {
	if outletID == "" {
		outletID = s.defaultOutletID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		OutletID:      outletID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to record %s on %s %s: %v", action, entityType, entityID, err)
	}
}
