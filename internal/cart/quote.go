package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"haiwei-pos/backend/internal/domain"
	"haiwei-pos/backend/internal/pricing"
)

const (
	ModeStandard = "standard"
	ModePrice    = "price"
	ModeWeight   = "weight"
	ModeCatty    = "catty"
)

type Quote struct {
	Type        string `json:"type"`
	Price       int64  `json:"price"`
	WeightGrams *int64 `json:"weight_grams,omitempty"`
}

// QuoteSale turns a cashier entry into a committed price and weight. Custom
// entries below the category minimum are refused; standard boxes are not.
func QuoteSale(product domain.Product, req domain.AddItemRequest, rule domain.CategoryRule) (Quote, error) {
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = ModeStandard
	}

	var (
		q     Quote
		grams decimal.Decimal
		err   error
	)

	switch mode {
	case ModeStandard:
		return quoteStandard(product, req.FixedIndex, rule)
	case ModePrice:
		// Prices are whole dollars; weight follows the committed price.
		amount := req.Amount.Round(0)
		if !amount.IsPositive() {
			return Quote{}, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidQuote)
		}
		grams, err = pricing.WeightForAmount(amount, product.PricePerUnit, pricing.CattyGrams)
		if err != nil {
			return Quote{}, err
		}
		q.Price = amount.IntPart()
	case ModeWeight, ModeCatty:
		grams = req.Grams
		if mode == ModeCatty {
			grams = pricing.CattyToGrams(pricing.TotalCatty(req.Catty, req.Tael))
		}
		if !grams.IsPositive() {
			return Quote{}, fmt.Errorf("%w: weight must be positive", domain.ErrInvalidQuote)
		}
		q.Price, err = pricing.AmountForWeight(grams, product.PricePerUnit, pricing.CattyGrams)
		if err != nil {
			return Quote{}, err
		}
	default:
		return Quote{}, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidQuote, req.Mode)
	}

	if q.Price < rule.MinCustomPrice {
		return Quote{}, fmt.Errorf("%w: %d < %d", domain.ErrBelowMinimumPrice, q.Price, rule.MinCustomPrice)
	}
	w := pricing.RoundGrams(grams)
	q.WeightGrams = &w
	q.Type = domain.LineCustomWeight
	return q, nil
}

func quoteStandard(product domain.Product, fixedIndex *int, rule domain.CategoryRule) (Quote, error) {
	var price int64
	switch {
	case fixedIndex != nil:
		if *fixedIndex < 0 || *fixedIndex >= len(product.FixedPrices) {
			return Quote{}, fmt.Errorf("%w: no fixed price at index %d", domain.ErrInvalidQuote, *fixedIndex)
		}
		price = product.FixedPrices[*fixedIndex].Price
	case len(product.FixedPrices) > 0:
		price = product.FixedPrices[0].Price
	default:
		price = rule.StandardBoxPrice
	}
	if price <= 0 {
		return Quote{}, fmt.Errorf("%w: %s has no standard price", domain.ErrInvalidQuote, product.ID)
	}

	q := Quote{Type: domain.LineStandardBox, Price: price}
	if product.PricePerUnit.IsPositive() {
		grams, err := pricing.WeightForAmount(decimal.NewFromInt(price), product.PricePerUnit, pricing.CattyGrams)
		if err != nil {
			return Quote{}, err
		}
		w := pricing.RoundGrams(grams)
		q.WeightGrams = &w
	}
	return q, nil
}
