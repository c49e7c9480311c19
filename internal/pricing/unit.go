package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"haiwei-pos/backend/internal/domain"
)

const (
	// CattyGrams is the standard weight unit every per-unit price refers to.
	CattyGrams    = 600
	TaelsPerCatty = 16
)

var (
	cattyGrams    = decimal.NewFromInt(CattyGrams)
	taelsPerCatty = decimal.NewFromInt(TaelsPerCatty)
)

// WeightForAmount converts a currency amount into grams. The result is not
// rounded; callers pick the precision they commit.
func WeightForAmount(amount, pricePerUnit decimal.Decimal, unitWeightGrams int64) (decimal.Decimal, error) {
	if !pricePerUnit.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: price per unit is %s", domain.ErrInvalidProduct, pricePerUnit)
	}
	return amount.Mul(unitWeight(unitWeightGrams)).Div(pricePerUnit), nil
}

// AmountForWeight converts grams into a committed whole-unit price.
func AmountForWeight(grams, pricePerUnit decimal.Decimal, unitWeightGrams int64) (int64, error) {
	if !pricePerUnit.IsPositive() {
		return 0, fmt.Errorf("%w: price per unit is %s", domain.ErrInvalidProduct, pricePerUnit)
	}
	return grams.Mul(pricePerUnit).Div(unitWeight(unitWeightGrams)).Round(0).IntPart(), nil
}

func ProportionalCost(costPerUnit, grams decimal.Decimal, unitWeightGrams int64) decimal.Decimal {
	return costPerUnit.Mul(grams).Div(unitWeight(unitWeightGrams))
}

// TotalCatty folds a catty/tael reading into fractional catties.
func TotalCatty(catty, tael decimal.Decimal) decimal.Decimal {
	return catty.Add(tael.Div(taelsPerCatty))
}

func CattyToGrams(catty decimal.Decimal) decimal.Decimal {
	return catty.Mul(cattyGrams)
}

func GramsToCatty(grams decimal.Decimal) decimal.Decimal {
	return grams.Div(cattyGrams).Round(2)
}

func RoundGrams(grams decimal.Decimal) int64 {
	return grams.Round(0).IntPart()
}

func unitWeight(grams int64) decimal.Decimal {
	if grams <= 0 {
		return cattyGrams
	}
	return decimal.NewFromInt(grams)
}
