package insight

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"haiwei-pos/backend/internal/domain"
)

type itemSale struct {
	name    string
	lines   int
	revenue int64
}

// BuildSummary renders the plain-text sales digest handed to the summarizer.
// Item counts are per cart line, not per merged unit.
func BuildSummary(orders []domain.Order, products []domain.Product) string {
	var revenue int64
	profit := decimal.Zero
	sales := make(map[string]*itemSale)
	for _, order := range orders {
		revenue += order.TotalPrice
		profit = profit.Add(order.TotalProfit)
		for _, line := range order.Items {
			s, ok := sales[line.ProductName]
			if !ok {
				s = &itemSale{name: line.ProductName}
				sales[line.ProductName] = s
			}
			s.lines++
			s.revenue += line.Price
		}
	}

	margin := decimal.Zero
	if revenue != 0 {
		margin = profit.Div(decimal.NewFromInt(revenue)).Mul(decimal.NewFromInt(100))
	}

	items := make([]*itemSale, 0, len(sales))
	for _, s := range sales {
		items = append(items, s)
	}
	slices.SortFunc(items, func(a, b *itemSale) int {
		if a.revenue != b.revenue {
			if a.revenue > b.revenue {
				return -1
			}
			return 1
		}
		return strings.Compare(a.name, b.name)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Total Revenue: $%d\n", revenue)
	fmt.Fprintf(&b, "Total Profit: $%s\n", profit.StringFixed(1))
	fmt.Fprintf(&b, "Profit Margin: %s%%\n", margin.StringFixed(1))
	b.WriteString("Item Sales Breakdown:\n")
	for _, s := range items {
		fmt.Fprintf(&b, "- %s: qty %d, revenue $%d\n", s.name, s.lines, s.revenue)
	}
	b.WriteString("Product Costs (per 600g):\n")
	for _, p := range products {
		fmt.Fprintf(&b, "- %s: $%s\n", p.Name, p.CostPerUnit.String())
	}
	return b.String()
}

func BuildPrompt(summary string) string {
	return "You are an expert restaurant consultant for a Taiwanese street food stall selling Smoked Shark and Small Dishes.\n" +
		"Analyze the following sales data and cost structure:\n" +
		summary +
		"\nPlease provide a concise, encouraging, and actionable daily report in Traditional Chinese (Taiwan).\n" +
		"Include:\n" +
		"1. A brief performance summary (Good/Average/Needs Improvement).\n" +
		"2. Which items are the \"Stars\" (high profit/vol) vs \"Dogs\" (low profit/vol).\n" +
		"3. One specific recommendation to improve profit margin tomorrow based on the cost data.\n" +
		"Keep it friendly and under 200 words."
}
