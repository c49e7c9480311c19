package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"haiwei-pos/backend/internal/domain"
)

const DateLayout = "2006-01-02"

// BuildClosing summarises a business day. When no manual counts were taken
// the variance falls back to the declared waste loss.
func BuildClosing(date string, report domain.ReconciliationReport, orders []domain.Order, now time.Time) domain.DailyClosingRecord {
	var cash, linePay int64
	cost := decimal.Zero
	for _, order := range orders {
		switch order.PaymentMethod {
		case domain.PaymentCash:
			cash += order.TotalPrice
		case domain.PaymentLinePay:
			linePay += order.TotalPrice
		}
		cost = cost.Add(order.TotalCost)
	}

	revenue := cash + linePay
	variance := decimal.NewFromInt(report.TotalDiff)
	if !report.CountsEntered {
		variance = report.TotalWasteCost.Neg()
	}

	return domain.DailyClosingRecord{
		Date:              date,
		TotalRevenue:      revenue,
		TotalCost:         cost,
		TotalProfit:       decimal.NewFromInt(revenue).Sub(cost),
		OrderCount:        len(orders),
		InventoryVariance: variance,
		Note:              fmt.Sprintf("日結 - 現金:%d, LINE:%d, 系統損耗:%s", cash, linePay, report.TotalWasteCost.Round(0)),
		ClosedAt:          now.UTC(),
	}
}

// DayBounds returns [start, end) of a calendar date in loc.
func DayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: bad date %q", domain.ErrInvalidDate, date)
	}
	return start, start.AddDate(0, 0, 1), nil
}

func OrdersBetween(orders []domain.Order, from, to time.Time) []domain.Order {
	out := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		if !order.CreatedAt.Before(from) && order.CreatedAt.Before(to) {
			out = append(out, order)
		}
	}
	return out
}
