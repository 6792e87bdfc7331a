package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"laundripos/backend/internal/domain"
	"laundripos/backend/internal/money"
)

func dec(s string) decimal.Decimal {
	return money.MustParse(s)
}

func kiloItem(price string, qty string) domain.LineItem {
	return domain.LineItem{
		OfferingID: "svc-cuci-setrika",
		Name:       "Cuci Setrika",
		Quantity:   dec(qty),
		UnitPrice:  dec(price),
	}
}

func defaultSettings() domain.Settings {
	return domain.DefaultSettings()
}

func member(balance int64) *domain.Customer {
	return &domain.Customer{ID: "cust-budi", Name: "Budi", IsMember: true, PointBalance: balance}
}

func fixedSurcharge(amount string) SurchargeInput {
	return SurchargeInput{Surcharge: domain.Surcharge{
		ID:       "sur-express",
		Name:     "Layanan Express",
		Kind:     domain.SurchargeFixed,
		Amount:   dec(amount),
		Category: domain.CategoryGeneral,
		Active:   true,
	}}
}

func TestComputeBasicChain(t *testing.T) {
	// Two 3 kg lines at Rp 10,000/kg plus a Rp 5,000 express surcharge and
	// the default 11% tax.
	result, err := Compute(Input{
		Items:      []domain.LineItem{kiloItem("10000", "3"), kiloItem("10000", "3")},
		Surcharges: []SurchargeInput{fixedSurcharge("5000")},
		Settings:   defaultSettings(),
		Now:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	if !result.Subtotal.Equal(dec("60000")) {
		t.Fatalf("expected subtotal 60000, got %s", result.Subtotal)
	}
	if !result.SurchargeTotal.Equal(dec("5000")) {
		t.Fatalf("expected surcharge total 5000, got %s", result.SurchargeTotal)
	}
	if !result.TaxAmount.Equal(dec("7150")) {
		t.Fatalf("expected tax 7150, got %s", result.TaxAmount)
	}
	if !result.Total.Equal(dec("72150")) {
		t.Fatalf("expected total 72150, got %s", result.Total)
	}
}

func TestComputeEmptyCart(t *testing.T) {
	_, err := Compute(Input{Settings: defaultSettings()})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestComputeRejectsNonPositiveQuantity(t *testing.T) {
	_, err := Compute(Input{
		Items:    []domain.LineItem{kiloItem("10000", "0")},
		Settings: defaultSettings(),
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestComputePointsRedemptionBeforeTax(t *testing.T) {
	// 10 points at the default Rp 500/point knock Rp 5,000 off the taxable
	// base: tax applies to 55,000, not 60,000.
	result, err := Compute(Input{
		Items:        []domain.LineItem{kiloItem("10000", "6")},
		RedeemPoints: 10,
		Customer:     member(50),
		Settings:     defaultSettings(),
		Now:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	if !result.PointsDiscount.Equal(dec("5000")) {
		t.Fatalf("expected points discount 5000, got %s", result.PointsDiscount)
	}
	if !result.TaxAmount.Equal(dec("6050")) {
		t.Fatalf("expected tax 6050, got %s", result.TaxAmount)
	}
	if !result.Total.Equal(dec("61050")) {
		t.Fatalf("expected total 61050, got %s", result.Total)
	}
}

func TestComputeInsufficientPoints(t *testing.T) {
	_, err := Compute(Input{
		Items:        []domain.LineItem{kiloItem("10000", "6")},
		RedeemPoints: 100,
		Customer:     member(50),
		Settings:     defaultSettings(),
	})
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
}

func TestComputeAnonymousRedeemRejected(t *testing.T) {
	_, err := Compute(Input{
		Items:        []domain.LineItem{kiloItem("10000", "6")},
		RedeemPoints: 5,
		Settings:     defaultSettings(),
	})
	if !errors.Is(err, ErrAnonymousRedeem) {
		t.Fatalf("expected ErrAnonymousRedeem, got %v", err)
	}
}

func TestComputeIneligiblePromotionSilentlyIgnored(t *testing.T) {
	minimum := dec("50000")
	promo := domain.Promotion{
		ID:              "promo-10",
		Name:            "Diskon 10%",
		Kind:            domain.DiscountPercent,
		Value:           dec("10"),
		MinimumSubtotal: &minimum,
		Active:          true,
		Stackable:       true,
	}

	result, err := Compute(Input{
		Items:      []domain.LineItem{kiloItem("10000", "4")},
		Promotions: []domain.Promotion{promo},
		Settings:   defaultSettings(),
		Now:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !result.PromoDiscount.IsZero() {
		t.Fatalf("expected zero promo discount below minimum, got %s", result.PromoDiscount)
	}
	if len(result.Promotions) != 0 {
		t.Fatalf("expected no applied promotion lines, got %d", len(result.Promotions))
	}
}

func TestComputeFreeThresholdWaiver(t *testing.T) {
	threshold := dec("100000")
	surcharge := SurchargeInput{Surcharge: domain.Surcharge{
		ID:            "sur-parfum",
		Name:          "Parfum Premium",
		Kind:          domain.SurchargeFixed,
		Amount:        dec("3000"),
		FreeThreshold: &threshold,
		Category:      domain.CategoryGeneral,
		Active:        true,
	}}

	below, err := Compute(Input{
		Items:      []domain.LineItem{kiloItem("99999", "1")},
		Surcharges: []SurchargeInput{surcharge},
		Settings:   defaultSettings(),
	})
	if err != nil {
		t.Fatalf("compute below threshold failed: %v", err)
	}
	if !below.SurchargeTotal.Equal(dec("3000")) {
		t.Fatalf("expected surcharge 3000 below threshold, got %s", below.SurchargeTotal)
	}
	if below.Surcharges[0].Waived {
		t.Fatalf("expected surcharge not waived below threshold")
	}

	at, err := Compute(Input{
		Items:      []domain.LineItem{kiloItem("100000", "1")},
		Surcharges: []SurchargeInput{surcharge},
		Settings:   defaultSettings(),
	})
	if err != nil {
		t.Fatalf("compute at threshold failed: %v", err)
	}
	if !at.SurchargeTotal.IsZero() {
		t.Fatalf("expected surcharge waived at threshold, got %s", at.SurchargeTotal)
	}
	if !at.Surcharges[0].Waived {
		t.Fatalf("expected waived flag set at threshold")
	}
}

func TestComputeDistanceSurchargeDefaultsToZeroKm(t *testing.T) {
	surcharge := SurchargeInput{Surcharge: domain.Surcharge{
		ID:       "sur-antar",
		Name:     "Antar Jemput",
		Kind:     domain.SurchargeDistance,
		Amount:   dec("2500"),
		Category: domain.CategoryShipping,
		Active:   true,
	}}

	result, err := Compute(Input{
		Items:      []domain.LineItem{kiloItem("10000", "2")},
		Surcharges: []SurchargeInput{surcharge},
		Settings:   defaultSettings(),
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !result.SurchargeTotal.IsZero() {
		t.Fatalf("expected zero shipping without distance, got %s", result.SurchargeTotal)
	}
}

func TestComputeInactiveSurchargeRejected(t *testing.T) {
	inactive := fixedSurcharge("5000")
	inactive.Surcharge.Active = false

	_, err := Compute(Input{
		Items:      []domain.LineItem{kiloItem("10000", "2")},
		Surcharges: []SurchargeInput{inactive},
		Settings:   defaultSettings(),
	})
	if !errors.Is(err, ErrInactiveSurcharge) {
		t.Fatalf("expected ErrInactiveSurcharge, got %v", err)
	}
}

func TestComputeFixedDiscountNeverExceedsBase(t *testing.T) {
	promo := domain.Promotion{
		ID:        "promo-big",
		Name:      "Potongan Besar",
		Kind:      domain.DiscountFixed,
		Value:     dec("50000"),
		Active:    true,
		Stackable: true,
	}

	result, err := Compute(Input{
		Items:      []domain.LineItem{kiloItem("10000", "2")},
		Promotions: []domain.Promotion{promo},
		Settings:   defaultSettings(),
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !result.PromoDiscount.Equal(dec("20000")) {
		t.Fatalf("expected discount capped at 20000, got %s", result.PromoDiscount)
	}
	if !result.Total.IsZero() {
		t.Fatalf("expected total floored at zero, got %s", result.Total)
	}
}

func TestComputePromotionStackingOrderAndFold(t *testing.T) {
	percent := domain.Promotion{
		ID:        "promo-p10",
		Name:      "Diskon 10%",
		Kind:      domain.DiscountPercent,
		Value:     dec("10"),
		Active:    true,
		Stackable: true,
		Priority:  1,
	}
	fixed := domain.Promotion{
		ID:        "promo-f5000",
		Name:      "Potongan 5000",
		Kind:      domain.DiscountFixed,
		Value:     dec("5000"),
		Active:    true,
		Stackable: true,
		Priority:  2,
	}

	// Caller order is reversed; priority must win. Percent applies to the
	// full 100,000, then the fixed cut comes off the remaining 90,000.
	result, err := Compute(Input{
		Items:      []domain.LineItem{kiloItem("10000", "10")},
		Promotions: []domain.Promotion{fixed, percent},
		Settings:   defaultSettings(),
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !result.PromoDiscount.Equal(dec("15000")) {
		t.Fatalf("expected stacked discount 15000, got %s", result.PromoDiscount)
	}
	if len(result.Promotions) != 2 || result.Promotions[0].PromotionID != "promo-p10" {
		t.Fatalf("expected percent promo applied first, got %+v", result.Promotions)
	}
}

func TestComputeNonStackableAppliesAlone(t *testing.T) {
	percent := domain.Promotion{
		ID:        "promo-p10",
		Name:      "Diskon 10%",
		Kind:      domain.DiscountPercent,
		Value:     dec("10"),
		Active:    true,
		Stackable: true,
		Priority:  1,
	}
	exclusive := domain.Promotion{
		ID:       "promo-solo",
		Name:     "Promo Tunggal",
		Kind:     domain.DiscountFixed,
		Value:    dec("5000"),
		Active:   true,
		Priority: 2,
	}

	// The non-stackable promo is skipped once the percent promo applied.
	result, err := Compute(Input{
		Items:      []domain.LineItem{kiloItem("10000", "10")},
		Promotions: []domain.Promotion{percent, exclusive},
		Settings:   defaultSettings(),
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !result.PromoDiscount.Equal(dec("10000")) {
		t.Fatalf("expected discount 10000 with exclusive promo skipped, got %s", result.PromoDiscount)
	}

	// Alone, the non-stackable promo applies and stops the fold.
	result, err = Compute(Input{
		Items:      []domain.LineItem{kiloItem("10000", "10")},
		Promotions: []domain.Promotion{exclusive},
		Settings:   defaultSettings(),
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !result.PromoDiscount.Equal(dec("5000")) {
		t.Fatalf("expected lone exclusive promo to apply, got %s", result.PromoDiscount)
	}
	if len(result.Promotions) != 1 || result.Promotions[0].PromotionID != "promo-solo" {
		t.Fatalf("expected only promo-solo applied, got %+v", result.Promotions)
	}
}

func TestComputeEligibilityRecheckedAgainstRemaining(t *testing.T) {
	percent := domain.Promotion{
		ID:        "promo-p10",
		Name:      "Diskon 10%",
		Kind:      domain.DiscountPercent,
		Value:     dec("10"),
		Active:    true,
		Stackable: true,
		Priority:  1,
	}
	minimum := dec("95000")
	conditional := domain.Promotion{
		ID:              "promo-min95",
		Name:            "Potongan Syarat",
		Kind:            domain.DiscountFixed,
		Value:           dec("5000"),
		MinimumSubtotal: &minimum,
		Active:          true,
		Stackable:       true,
		Priority:        2,
	}

	// 100,000 qualifies on its own, but after the 10% cut the remaining
	// 90,000 no longer meets the 95,000 minimum.
	result, err := Compute(Input{
		Items:      []domain.LineItem{kiloItem("10000", "10")},
		Promotions: []domain.Promotion{percent, conditional},
		Settings:   defaultSettings(),
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !result.PromoDiscount.Equal(dec("10000")) {
		t.Fatalf("expected conditional promo skipped against remaining, got %s", result.PromoDiscount)
	}
}

func TestComputeMemberOnlyPromotion(t *testing.T) {
	promo := domain.Promotion{
		ID:         "promo-member",
		Name:       "Diskon Member",
		Kind:       domain.DiscountPercent,
		Value:      dec("10"),
		MemberOnly: true,
		Active:     true,
		Stackable:  true,
	}

	nonMember := &domain.Customer{ID: "cust-sari", Name: "Sari"}
	result, err := Compute(Input{
		Items:      []domain.LineItem{kiloItem("10000", "10")},
		Promotions: []domain.Promotion{promo},
		Customer:   nonMember,
		Settings:   defaultSettings(),
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !result.PromoDiscount.IsZero() {
		t.Fatalf("expected member-only promo skipped for non-member, got %s", result.PromoDiscount)
	}

	result, err = Compute(Input{
		Items:      []domain.LineItem{kiloItem("10000", "10")},
		Promotions: []domain.Promotion{promo},
		Customer:   member(0),
		Settings:   defaultSettings(),
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !result.PromoDiscount.Equal(dec("10000")) {
		t.Fatalf("expected member discount 10000, got %s", result.PromoDiscount)
	}
}

func TestComputeDateWindowEligibility(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	start := now.Add(24 * time.Hour)
	expiredEnd := now.Add(-24 * time.Hour)

	future := domain.Promotion{
		ID: "promo-future", Name: "Belum Mulai", Kind: domain.DiscountPercent,
		Value: dec("10"), StartDate: &start, Active: true, Stackable: true,
	}
	expired := domain.Promotion{
		ID: "promo-expired", Name: "Sudah Lewat", Kind: domain.DiscountPercent,
		Value: dec("10"), EndDate: &expiredEnd, Active: true, Stackable: true,
	}

	result, err := Compute(Input{
		Items:      []domain.LineItem{kiloItem("10000", "10")},
		Promotions: []domain.Promotion{future, expired},
		Settings:   defaultSettings(),
		Now:        now,
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !result.PromoDiscount.IsZero() {
		t.Fatalf("expected out-of-window promotions skipped, got %s", result.PromoDiscount)
	}
}

func TestComputeEarnedPointsExcludeShipping(t *testing.T) {
	shipping := SurchargeInput{
		Surcharge: domain.Surcharge{
			ID:       "sur-antar",
			Name:     "Antar Jemput",
			Kind:     domain.SurchargeDistance,
			Amount:   dec("2500"),
			Category: domain.CategoryShipping,
			Active:   true,
		},
		DistanceKm: dec("4"),
	}

	result, err := Compute(Input{
		Items:      []domain.LineItem{kiloItem("10000", "6")},
		Surcharges: []SurchargeInput{shipping},
		Customer:   member(0),
		Settings:   defaultSettings(),
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	// Paid total covers the 10,000 shipping, but earning only sees the
	// 60,000 earnable base: floor(66,600 / 10,000) = 6.
	if !result.Total.Equal(dec("77700")) {
		t.Fatalf("expected total 77700, got %s", result.Total)
	}
	if result.EarnedPoints != 6 {
		t.Fatalf("expected 6 earned points, got %d", result.EarnedPoints)
	}
}

func TestComputeEarnedPointsRequireMembership(t *testing.T) {
	result, err := Compute(Input{
		Items:    []domain.LineItem{kiloItem("10000", "6")},
		Customer: &domain.Customer{ID: "cust-sari", Name: "Sari"},
		Settings: defaultSettings(),
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if result.EarnedPoints != 0 {
		t.Fatalf("expected no points for non-member, got %d", result.EarnedPoints)
	}

	disabled := defaultSettings()
	disabled.PointsEnabled = false
	result, err = Compute(Input{
		Items:    []domain.LineItem{kiloItem("10000", "6")},
		Customer: member(0),
		Settings: disabled,
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if result.EarnedPoints != 0 {
		t.Fatalf("expected no points when disabled, got %d", result.EarnedPoints)
	}
}

func TestComputeNoAutoTax(t *testing.T) {
	settings := defaultSettings()
	settings.AutoApplyTax = false

	result, err := Compute(Input{
		Items:    []domain.LineItem{kiloItem("10000", "6")},
		Settings: settings,
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !result.TaxAmount.IsZero() {
		t.Fatalf("expected zero tax, got %s", result.TaxAmount)
	}
	if !result.Total.Equal(dec("60000")) {
		t.Fatalf("expected total 60000, got %s", result.Total)
	}
}

func TestComputeDeterministic(t *testing.T) {
	in := Input{
		Items:      []domain.LineItem{kiloItem("10000", "3.5"), kiloItem("7000", "2.25")},
		Surcharges: []SurchargeInput{fixedSurcharge("5000")},
		Customer:   member(20),
		Settings:   defaultSettings(),
		Now:        time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC),
	}

	first, err := Compute(in)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	second, err := Compute(in)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !first.Total.Equal(second.Total) || first.EarnedPoints != second.EarnedPoints {
		t.Fatalf("expected identical results, got %s/%d vs %s/%d",
			first.Total, first.EarnedPoints, second.Total, second.EarnedPoints)
	}
}
