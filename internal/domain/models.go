package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Outlet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type OutletCreateRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// ServiceOffering is a priced laundry service (wash, iron, dry clean) sold
// per unit, where the unit may be fractional (kilograms) or whole pieces.
type ServiceOffering struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

type OfferingCreateRequest struct {
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OfferingUpdateRequest struct {
	Name      *string          `json:"name,omitempty"`
	Unit      *string          `json:"unit,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Active    *bool            `json:"active,omitempty"`
}

type SurchargeKind string

const (
	SurchargeFixed    SurchargeKind = "fixed"
	SurchargePercent  SurchargeKind = "percent"
	SurchargeDistance SurchargeKind = "distance"
)

type SurchargeCategory string

const (
	CategoryGeneral  SurchargeCategory = "general"
	CategoryShipping SurchargeCategory = "shipping"
)

// Surcharge is an additional charge layered on top of the cart subtotal.
// Amount is a currency value for fixed, a percentage for percent, and a
// per-kilometer rate for distance. FreeThreshold, when set, waives the
// charge entirely once the subtotal reaches it. Shipping-category charges
// are excluded from the loyalty-point earning base.
type Surcharge struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Kind          SurchargeKind     `json:"kind"`
	Amount        decimal.Decimal   `json:"amount"`
	FreeThreshold *decimal.Decimal  `json:"free_threshold,omitempty"`
	Category      SurchargeCategory `json:"category"`
	Active        bool              `json:"active"`
	CreatedAt     time.Time         `json:"created_at"`
}

type SurchargeCreateRequest struct {
	Name          string            `json:"name"`
	Kind          SurchargeKind     `json:"kind"`
	Amount        decimal.Decimal   `json:"amount"`
	FreeThreshold *decimal.Decimal  `json:"free_threshold,omitempty"`
	Category      SurchargeCategory `json:"category"`
}

type DiscountKind string

const (
	DiscountFixed   DiscountKind = "fixed"
	DiscountPercent DiscountKind = "percent"
)

// Promotion is a discount rule. Stackable promotions combine in ascending
// Priority against the progressively shrinking remaining amount; a
// non-stackable promotion only ever applies on its own.
type Promotion struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Kind            DiscountKind     `json:"kind"`
	Value           decimal.Decimal  `json:"value"`
	MemberOnly      bool             `json:"member_only"`
	MinimumSubtotal *decimal.Decimal `json:"minimum_subtotal,omitempty"`
	StartDate       *time.Time       `json:"start_date,omitempty"`
	EndDate         *time.Time       `json:"end_date,omitempty"`
	Active          bool             `json:"active"`
	Stackable       bool             `json:"stackable"`
	Priority        int              `json:"priority"`
	CreatedAt       time.Time        `json:"created_at"`
}

type PromotionCreateRequest struct {
	Name            string           `json:"name"`
	Kind            DiscountKind     `json:"kind"`
	Value           decimal.Decimal  `json:"value"`
	MemberOnly      bool             `json:"member_only"`
	MinimumSubtotal *decimal.Decimal `json:"minimum_subtotal,omitempty"`
	StartDate       *time.Time       `json:"start_date,omitempty"`
	EndDate         *time.Time       `json:"end_date,omitempty"`
	Stackable       bool             `json:"stackable"`
	Priority        int              `json:"priority"`
}

type ActiveToggleRequest struct {
	Active bool `json:"active"`
}

type Customer struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	IsMember     bool      `json:"is_member"`
	PointBalance int64     `json:"point_balance"`
	CreatedAt    time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	IsMember bool   `json:"is_member"`
}

type CustomerUpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	IsMember *bool   `json:"is_member,omitempty"`
}

type PointEntryType string

const (
	PointEarn       PointEntryType = "earn"
	PointRedeem     PointEntryType = "redeem"
	PointAdjustment PointEntryType = "adjustment"
)

// PointHistoryEntry is an immutable ledger record. Points carries the signed
// delta as requested; when a manual adjustment is clamped at zero balance the
// entry still records the requested delta while the balance reflects the clamp.
type PointHistoryEntry struct {
	ID                string           `json:"id"`
	CustomerID        string           `json:"customer_id"`
	Type              PointEntryType   `json:"type"`
	Points            int64            `json:"points"`
	TransactionID     string           `json:"transaction_id,omitempty"`
	TransactionAmount *decimal.Decimal `json:"transaction_amount,omitempty"`
	Note              string           `json:"note,omitempty"`
	CreatedBy         string           `json:"created_by"`
	CreatedAt         time.Time        `json:"created_at"`
}

type AdjustPointsRequest struct {
	Delta int64  `json:"delta"`
	Note  string `json:"note"`
}

type PaymentState string

const (
	PaymentUnpaid PaymentState = "unpaid"
	PaymentPaid   PaymentState = "paid"
)

// LineItem snapshots a priced cart line; unit price and name are copied from
// the offering at checkout so later catalog edits do not change the record.
type LineItem struct {
	OfferingID string          `json:"offering_id"`
	Name       string          `json:"name"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Note       string          `json:"note,omitempty"`
}

// SurchargeLine snapshots a selected surcharge with its computed amount.
// Amount is zero and Waived is true when the free threshold applied.
type SurchargeLine struct {
	SurchargeID string            `json:"surcharge_id"`
	Name        string            `json:"name"`
	Category    SurchargeCategory `json:"category"`
	DistanceKm  decimal.Decimal   `json:"distance_km"`
	Amount      decimal.Decimal   `json:"amount"`
	Waived      bool              `json:"waived"`
}

// PromotionLine records one applied promotion and the discount it produced.
type PromotionLine struct {
	PromotionID string          `json:"promotion_id"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
}

type Transaction struct {
	ID             string            `json:"id"`
	InvoiceCode    string            `json:"invoice_code"`
	OutletID       string            `json:"outlet_id"`
	CustomerID     string            `json:"customer_id,omitempty"`
	Status         TransactionStatus `json:"status"`
	Payment        PaymentState      `json:"payment"`
	Items          []LineItem        `json:"items"`
	Surcharges     []SurchargeLine   `json:"surcharges,omitempty"`
	Promotions     []PromotionLine   `json:"promotions,omitempty"`
	RedeemedPoints int64             `json:"redeemed_points"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
	SurchargeTotal decimal.Decimal   `json:"surcharge_total"`
	PromoDiscount  decimal.Decimal   `json:"promo_discount"`
	PointsDiscount decimal.Decimal   `json:"points_discount"`
	TotalDiscount  decimal.Decimal   `json:"total_discount"`
	TaxAmount      decimal.Decimal   `json:"tax_amount"`
	Total          decimal.Decimal   `json:"total"`
	EarnedPoints   int64             `json:"earned_points"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	CreatedBy      string            `json:"created_by"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// IsDelivery reports whether the order leaves the outlet by courier: any
// shipping-category surcharge cost or a positive distance marks it as one.
func (t Transaction) IsDelivery() bool {
	for _, line := range t.Surcharges {
		if line.Category != CategoryShipping {
			continue
		}
		if line.Amount.IsPositive() || line.DistanceKm.IsPositive() {
			return true
		}
	}
	return false
}

type CheckoutItem struct {
	OfferingID string          `json:"offering_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Note       string          `json:"note,omitempty"`
}

type CheckoutSurcharge struct {
	SurchargeID string          `json:"surcharge_id"`
	DistanceKm  decimal.Decimal `json:"distance_km,omitempty"`
}

type CheckoutRequest struct {
	OutletID     string              `json:"outlet_id"`
	CustomerID   string              `json:"customer_id,omitempty"`
	Items        []CheckoutItem      `json:"items"`
	Surcharges   []CheckoutSurcharge `json:"surcharges,omitempty"`
	PromotionIDs []string            `json:"promotion_ids,omitempty"`
	RedeemPoints int64               `json:"redeem_points"`
}

type CheckoutResponse struct {
	Transaction Transaction `json:"transaction"`
}

type StatusUpdateRequest struct {
	Status TransactionStatus `json:"status"`
}

type DeleteTransactionRequest struct {
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin"`
}

// Settings is the per-calculation configuration snapshot. TaxRate is a
// percentage; PointsEarnRatio is the currency amount that earns one point;
// PointsRedeemValue is the currency value of one redeemed point.
type Settings struct {
	TaxRate           decimal.Decimal `json:"tax_rate"`
	AutoApplyTax      bool            `json:"auto_apply_tax"`
	PointsEnabled     bool            `json:"points_enabled"`
	PointsEarnRatio   decimal.Decimal `json:"points_earn_ratio"`
	PointsRedeemValue decimal.Decimal `json:"points_redeem_value"`
}

// DefaultSettings returns the values used when nothing has been configured.
func DefaultSettings() Settings {
	return Settings{
		TaxRate:           decimal.NewFromInt(11),
		AutoApplyTax:      true,
		PointsEnabled:     true,
		PointsEarnRatio:   decimal.NewFromInt(10000),
		PointsRedeemValue: decimal.NewFromInt(500),
	}
}

type DailyReport struct {
	OutletID       string          `json:"outlet_id"`
	Date           string          `json:"date"`
	Transactions   int64           `json:"transactions"`
	GrossSales     decimal.Decimal `json:"gross_sales"`
	SurchargeTotal decimal.Decimal `json:"surcharge_total"`
	DiscountTotal  decimal.Decimal `json:"discount_total"`
	TaxTotal       decimal.Decimal `json:"tax_total"`
	NetSales       decimal.Decimal `json:"net_sales"`
	PointsEarned   int64           `json:"points_earned"`
	PointsRedeemed int64           `json:"points_redeemed"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	OutletID      string    `json:"outlet_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
