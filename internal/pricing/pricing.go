// Package pricing computes transaction totals. Compute is a pure function:
// all catalog, customer and settings state is passed in by the caller, and
// identical inputs always produce identical results.
package pricing

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"laundripos/backend/internal/domain"
	"laundripos/backend/internal/money"
)

var (
	ErrEmptyCart          = errors.New("cart has no line items")
	ErrInvalidQuantity    = errors.New("line item quantity must be positive")
	ErrInactiveSurcharge  = errors.New("surcharge is not active")
	ErrInsufficientPoints = errors.New("insufficient point balance")
	ErrAnonymousRedeem    = errors.New("points redemption requires a customer")
)

// SurchargeInput pairs a selected surcharge with its caller-supplied
// distance. Distance defaults to zero for non-distance kinds.
type SurchargeInput struct {
	Surcharge  domain.Surcharge
	DistanceKm decimal.Decimal
}

// Input carries everything a single calculation needs. Promotions are the
// candidate discounts in caller order; ineligible ones are silently skipped
// and contribute zero discount.
type Input struct {
	Items        []domain.LineItem
	Surcharges   []SurchargeInput
	Promotions   []domain.Promotion
	RedeemPoints int64
	Customer     *domain.Customer
	Settings     domain.Settings
	Now          time.Time
}

// Result is the full breakdown of one calculation. Currency fields are
// rounded to the minor unit; EarnedPoints is informational until payment.
type Result struct {
	Subtotal       decimal.Decimal
	SurchargeTotal decimal.Decimal
	PromoDiscount  decimal.Decimal
	PointsDiscount decimal.Decimal
	TotalDiscount  decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	EarnedPoints   int64
	Surcharges     []domain.SurchargeLine
	Promotions     []domain.PromotionLine
}

// Compute runs the fixed calculation chain: subtotal, surcharges, promotion
// discounts, point redemption, tax, total, earned points. The step order is
// load-bearing; each step feeds the next.
func Compute(in Input) (Result, error) {
	if len(in.Items) == 0 {
		return Result{}, ErrEmptyCart
	}

	subtotal := decimal.Zero
	for _, item := range in.Items {
		if !item.Quantity.IsPositive() {
			return Result{}, ErrInvalidQuantity
		}
		subtotal = subtotal.Add(item.Quantity.Mul(item.UnitPrice))
	}

	surchargeTotal := decimal.Zero
	earnableSurcharge := decimal.Zero
	lines := make([]domain.SurchargeLine, 0, len(in.Surcharges))
	for _, sel := range in.Surcharges {
		sc := sel.Surcharge
		if !sc.Active {
			return Result{}, ErrInactiveSurcharge
		}
		amount, waived := surchargeAmount(sc, subtotal, sel.DistanceKm)
		surchargeTotal = surchargeTotal.Add(amount)
		if sc.Category != domain.CategoryShipping {
			earnableSurcharge = earnableSurcharge.Add(amount)
		}
		lines = append(lines, domain.SurchargeLine{
			SurchargeID: sc.ID,
			Name:        sc.Name,
			Category:    sc.Category,
			DistanceKm:  sel.DistanceKm,
			Amount:      money.Round(amount),
			Waived:      waived,
		})
	}

	base := subtotal.Add(surchargeTotal)

	promoDiscount, applied := applyPromotions(in.Promotions, base, in.Customer, in.Now)

	pointsDiscount := decimal.Zero
	if in.RedeemPoints > 0 {
		if in.Customer == nil {
			return Result{}, ErrAnonymousRedeem
		}
		if in.RedeemPoints > in.Customer.PointBalance {
			return Result{}, ErrInsufficientPoints
		}
		pointsDiscount = decimal.NewFromInt(in.RedeemPoints).Mul(in.Settings.PointsRedeemValue)
	}

	totalDiscount := promoDiscount.Add(pointsDiscount)
	afterDiscount := money.FloorZero(base.Sub(totalDiscount))

	tax := decimal.Zero
	if in.Settings.AutoApplyTax {
		tax = money.Percent(afterDiscount, in.Settings.TaxRate)
	}
	total := afterDiscount.Add(tax)

	return Result{
		Subtotal:       money.Round(subtotal),
		SurchargeTotal: money.Round(surchargeTotal),
		PromoDiscount:  money.Round(promoDiscount),
		PointsDiscount: money.Round(pointsDiscount),
		TotalDiscount:  money.Round(totalDiscount),
		TaxAmount:      money.Round(tax),
		Total:          money.Round(total),
		EarnedPoints:   earnedPoints(in, subtotal.Add(earnableSurcharge), totalDiscount),
		Surcharges:     lines,
		Promotions:     applied,
	}, nil
}

// surchargeAmount evaluates one surcharge against the subtotal. A free
// threshold waives the whole charge once the subtotal reaches it.
func surchargeAmount(sc domain.Surcharge, subtotal, distanceKm decimal.Decimal) (decimal.Decimal, bool) {
	if sc.FreeThreshold != nil && subtotal.GreaterThanOrEqual(*sc.FreeThreshold) {
		return decimal.Zero, true
	}
	switch sc.Kind {
	case domain.SurchargePercent:
		return money.Percent(subtotal, sc.Amount), false
	case domain.SurchargeDistance:
		// Missing distance means zero kilometers, not an error.
		return sc.Amount.Mul(money.FloorZero(distanceKm)), false
	default:
		return sc.Amount, false
	}
}

// applyPromotions folds the candidate promotions over the shrinking
// remaining amount in ascending priority (ties keep caller order).
// Eligibility is re-checked against the remaining amount at every step.
// A non-stackable promotion only applies when nothing has applied yet,
// and nothing stacks after it. Ineligible promotions are skipped without
// error: they simply contribute zero discount.
func applyPromotions(promos []domain.Promotion, base decimal.Decimal, customer *domain.Customer, now time.Time) (decimal.Decimal, []domain.PromotionLine) {
	if len(promos) == 0 {
		return decimal.Zero, nil
	}

	ordered := make([]domain.Promotion, len(promos))
	copy(ordered, promos)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	remaining := base
	var applied []domain.PromotionLine
	for _, promo := range ordered {
		if !remaining.IsPositive() {
			break
		}
		if len(applied) > 0 && !promo.Stackable {
			continue
		}
		if !eligible(promo, remaining, customer, now) {
			continue
		}

		var discount decimal.Decimal
		switch promo.Kind {
		case domain.DiscountPercent:
			discount = money.Percent(remaining, promo.Value)
		default:
			// Fixed discount never exceeds the amount it discounts.
			discount = decimal.Min(promo.Value, remaining)
		}
		if !discount.IsPositive() {
			continue
		}

		remaining = remaining.Sub(discount)
		applied = append(applied, domain.PromotionLine{
			PromotionID: promo.ID,
			Name:        promo.Name,
			Amount:      money.Round(discount),
		})
		if !promo.Stackable {
			break
		}
	}
	return base.Sub(remaining), applied
}

// eligible checks one promotion against the amount it would discount.
// A disabled or expired promotion is never eligible regardless of the
// other fields.
func eligible(promo domain.Promotion, amount decimal.Decimal, customer *domain.Customer, now time.Time) bool {
	if !promo.Active {
		return false
	}
	if promo.StartDate != nil && now.Before(*promo.StartDate) {
		return false
	}
	if promo.EndDate != nil && now.After(*promo.EndDate) {
		return false
	}
	if promo.MemberOnly && (customer == nil || !customer.IsMember) {
		return false
	}
	if promo.MinimumSubtotal != nil && amount.LessThan(*promo.MinimumSubtotal) {
		return false
	}
	return true
}

// earnedPoints runs the discount/tax chain a second time over the earnable
// base, which substitutes zero for shipping-category surcharges. The realized
// discount amounts are reused rather than re-derived against the smaller base.
func earnedPoints(in Input, earnableBase, totalDiscount decimal.Decimal) int64 {
	if in.Customer == nil || !in.Customer.IsMember {
		return 0
	}
	if !in.Settings.PointsEnabled || !in.Settings.PointsEarnRatio.IsPositive() {
		return 0
	}
	after := money.FloorZero(earnableBase.Sub(totalDiscount))
	total := after
	if in.Settings.AutoApplyTax {
		total = after.Add(money.Percent(after, in.Settings.TaxRate))
	}
	return total.Div(in.Settings.PointsEarnRatio).Floor().IntPart()
}
