package inventory

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"haiwei-pos/backend/internal/domain"
	"haiwei-pos/backend/internal/pricing"
)

type Options struct {
	// ComboProductID names the bundle placeholder, counted as a fixed unit.
	ComboProductID string
	ComboPrice     int64
	Source         string
}

// ParseSource resolves which order set a reconciliation trusts. Blank means
// local-first.
func ParseSource(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", domain.SourceLocal:
		return domain.SourceLocal, nil
	case domain.SourceRemote:
		return domain.SourceRemote, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidSource, raw)
}

// Reconcile compares manual stock counts against recorded sales for every
// catalog product. Products without a record count as all-zero.
func Reconcile(products []domain.Product, records []domain.InventoryRecord, orders []domain.Order, opts Options) (domain.ReconciliationReport, error) {
	byProduct := make(map[string]domain.InventoryRecord, len(records))
	countsEntered := false
	for _, rec := range records {
		if rec.Opening.IsNegative() || rec.Restock.IsNegative() || rec.Closing.IsNegative() || rec.Waste.IsNegative() {
			return domain.ReconciliationReport{}, fmt.Errorf("%w: negative count for %s", domain.ErrInvalidCount, rec.ProductID)
		}
		if _, dup := byProduct[rec.ProductID]; dup {
			return domain.ReconciliationReport{}, fmt.Errorf("%w: duplicate count for %s", domain.ErrInvalidCount, rec.ProductID)
		}
		byProduct[rec.ProductID] = rec
		if !rec.Opening.IsZero() || !rec.Restock.IsZero() || !rec.Closing.IsZero() || !rec.Waste.IsZero() {
			countsEntered = true
		}
	}

	report := domain.ReconciliationReport{
		Source:         opts.Source,
		Rows:           make([]domain.ReconciliationRow, 0, len(products)),
		TotalWasteCost: decimal.Zero,
		CountsEntered:  countsEntered,
	}
	for _, order := range orders {
		if order.PaymentMethod == domain.PaymentWaste {
			report.TotalWasteCost = report.TotalWasteCost.Add(order.TotalCost)
		}
	}

	for _, product := range products {
		rec := byProduct[product.ID]
		row := domain.ReconciliationRow{
			ProductID:   product.ID,
			ProductName: product.Name,
			IsFixedUnit: len(product.FixedPrices) > 0 || product.ID == opts.ComboProductID,
			Opening:     rec.Opening,
			Restock:     rec.Restock,
			Closing:     rec.Closing,
			Waste:       rec.Waste,
		}

		row.SalesQty = decimal.Max(decimal.Zero, rec.Opening.Add(rec.Restock).Sub(rec.Closing).Sub(rec.Waste))
		row.RefPrice = refPrice(product, row.IsFixedUnit, opts.ComboPrice)
		row.EstimatedRevenue = row.SalesQty.Mul(row.RefPrice)

		var soldQty int64
		soldGrams := decimal.Zero
		for _, order := range orders {
			for _, line := range order.Items {
				if line.ProductID != product.ID {
					continue
				}
				if order.PaymentMethod != domain.PaymentWaste {
					row.ActualRevenue += line.Price
				}
				// waste still left the shelf
				soldQty += int64(line.Quantity)
				if line.WeightGrams != nil {
					soldGrams = soldGrams.Add(decimal.NewFromInt(*line.WeightGrams))
				}
			}
		}

		row.Diff = row.ActualRevenue - row.EstimatedRevenue.Round(0).IntPart()
		if row.IsFixedUnit {
			row.SystemSoldUnit = decimal.NewFromInt(soldQty)
		} else {
			row.SystemSoldUnit = pricing.GramsToCatty(soldGrams)
		}

		report.TotalDiff += row.Diff
		report.Rows = append(report.Rows, row)
	}

	return report, nil
}

func refPrice(product domain.Product, fixedUnit bool, comboPrice int64) decimal.Decimal {
	if !fixedUnit {
		return product.PricePerUnit
	}
	if len(product.FixedPrices) > 0 {
		return decimal.NewFromInt(product.FixedPrices[0].Price)
	}
	return decimal.NewFromInt(comboPrice)
}
