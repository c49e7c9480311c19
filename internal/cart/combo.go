package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"haiwei-pos/backend/internal/domain"
	"haiwei-pos/backend/internal/pricing"
	"haiwei-pos/backend/internal/xid"
)

const comboSuffix = " (拼盤)"

type ProductLookup interface {
	Product(id string) (domain.Product, bool)
}

// AddCombo appends one combo_part line per selected component. Weight and
// cost are back-derived from each component's own per-unit price.
func AddCombo(lines []domain.CartLine, catalog ProductLookup, total int64, selected []pricing.Component) ([]domain.CartLine, error) {
	if len(selected) < pricing.MinComboComponents {
		return nil, fmt.Errorf("%w: %d selected", domain.ErrInsufficientComboSelection, len(selected))
	}
	if len(selected) > pricing.MaxComboComponents {
		return nil, fmt.Errorf("%w: at most %d components", domain.ErrInvalidComboSelection, pricing.MaxComboComponents)
	}

	allocations, err := pricing.Allocate(total, selected)
	if err != nil {
		return nil, err
	}

	comboID := xid.New()
	parts := make([]domain.CartLine, 0, len(allocations))
	for _, alloc := range allocations {
		product, ok := catalog.Product(alloc.ProductID)
		if !ok {
			return nil, fmt.Errorf("%w: combo component %s maps to missing product %s", domain.ErrInvalidProduct, alloc.Component, alloc.ProductID)
		}
		grams, err := pricing.WeightForAmount(decimal.NewFromInt(alloc.Price), product.PricePerUnit, pricing.CattyGrams)
		if err != nil {
			return nil, err
		}
		w := pricing.RoundGrams(grams)
		parts = append(parts, domain.CartLine{
			ID:          xid.New(),
			ProductID:   product.ID,
			ProductName: product.Name + comboSuffix,
			Type:        domain.LineComboPart,
			Quantity:    1,
			WeightGrams: &w,
			Price:       alloc.Price,
			Cost:        pricing.ProportionalCost(product.CostPerUnit, decimal.NewFromInt(w), pricing.CattyGrams),
			ComboID:     comboID,
			Modifiers:   []string{},
		})
	}

	return append(CloneLines(lines), parts...), nil
}
