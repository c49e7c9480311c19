package cart

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"haiwei-pos/backend/internal/domain"
	"haiwei-pos/backend/internal/pricing"
	"haiwei-pos/backend/internal/xid"
)

// Every function here treats the input cart as read-only and returns a new
// slice, so a failed call leaves the caller's cart untouched.

// AddOrMerge folds a sale into an existing line with the same product, line
// type and exact per-unit price, or appends a new line.
func AddOrMerge(lines []domain.CartLine, product domain.Product, price int64, weightGrams *int64, lineType string) ([]domain.CartLine, error) {
	if lineType != domain.LineStandardBox && lineType != domain.LineCustomWeight {
		return nil, fmt.Errorf("%w: line type %q", domain.ErrInvalidQuote, lineType)
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: negative price", domain.ErrInvalidQuote)
	}
	if weightGrams != nil && *weightGrams < 0 {
		return nil, fmt.Errorf("%w: negative weight", domain.ErrInvalidQuote)
	}
	if lineType == domain.LineCustomWeight && !product.PricePerUnit.IsPositive() {
		return nil, fmt.Errorf("%w: %s cannot be sold by weight", domain.ErrInvalidProduct, product.ID)
	}

	cost := decimal.Zero
	if weightGrams != nil {
		cost = pricing.ProportionalCost(product.CostPerUnit, decimal.NewFromInt(*weightGrams), pricing.CattyGrams)
	}

	next := CloneLines(lines)
	for i := range next {
		line := &next[i]
		if line.ProductID != product.ID || line.Type != lineType || line.ComboID != "" {
			continue
		}
		if line.Quantity < 1 || line.Price != price*int64(line.Quantity) {
			continue
		}
		line.Quantity++
		line.Price += price
		line.Cost = line.Cost.Add(cost)
		if weightGrams != nil || line.WeightGrams != nil {
			total := valueOr(line.WeightGrams) + valueOr(weightGrams)
			line.WeightGrams = &total
		}
		return next, nil
	}

	return append(next, domain.CartLine{
		ID:          xid.New(),
		ProductID:   product.ID,
		ProductName: product.Name,
		Type:        lineType,
		Quantity:    1,
		WeightGrams: copyWeight(weightGrams),
		Price:       price,
		Cost:        cost,
		Modifiers:   []string{},
	}), nil
}

func ToggleModifier(lines []domain.CartLine, lineID string, tag string) ([]domain.CartLine, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, fmt.Errorf("%w: empty tag", domain.ErrInvalidModifier)
	}
	next := CloneLines(lines)
	for i := range next {
		if next[i].ID != lineID {
			continue
		}
		if slices.Contains(next[i].Modifiers, tag) {
			next[i].Modifiers = slices.DeleteFunc(next[i].Modifiers, func(m string) bool { return m == tag })
		} else {
			next[i].Modifiers = append(next[i].Modifiers, tag)
		}
		return next, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrLineNotFound, lineID)
}

func RemoveLine(lines []domain.CartLine, lineID string) ([]domain.CartLine, error) {
	idx := slices.IndexFunc(lines, func(l domain.CartLine) bool { return l.ID == lineID })
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrLineNotFound, lineID)
	}
	next := CloneLines(lines)
	return slices.Delete(next, idx, idx+1), nil
}

func Totals(lines []domain.CartLine) (int64, decimal.Decimal) {
	var price int64
	cost := decimal.Zero
	for _, line := range lines {
		price += line.Price
		cost = cost.Add(line.Cost)
	}
	return price, cost
}

func CloneLines(lines []domain.CartLine) []domain.CartLine {
	if lines == nil {
		return []domain.CartLine{}
	}
	out := make([]domain.CartLine, len(lines))
	for i, line := range lines {
		line.WeightGrams = copyWeight(line.WeightGrams)
		line.Modifiers = slices.Clone(line.Modifiers)
		if line.Modifiers == nil {
			line.Modifiers = []string{}
		}
		out[i] = line
	}
	return out
}

func copyWeight(w *int64) *int64 {
	if w == nil {
		return nil
	}
	v := *w
	return &v
}

func valueOr(w *int64) int64 {
	if w == nil {
		return 0
	}
	return *w
}
