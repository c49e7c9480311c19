package checkout

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"haiwei-pos/backend/internal/cart"
	"haiwei-pos/backend/internal/domain"
)

func ValidPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentLinePay, domain.PaymentWaste:
		return true
	}
	return false
}

// Finalize turns a cart into an order. Waste orders book the cost with zero
// revenue. The caller owns clearing its cart once this succeeds.
func Finalize(lines []domain.CartLine, method string, customer *domain.Customer, now time.Time, id string) (domain.Order, error) {
	if len(lines) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}
	method = strings.ToLower(strings.TrimSpace(method))
	if !ValidPaymentMethod(method) {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrInvalidPaymentMethod, method)
	}

	totalPrice, totalCost := cart.Totals(lines)
	if method == domain.PaymentWaste {
		totalPrice = 0
	}

	return domain.Order{
		ID:            id,
		CreatedAt:     now.UTC(),
		Items:         cart.CloneLines(lines),
		TotalPrice:    totalPrice,
		TotalCost:     totalCost,
		TotalProfit:   decimal.NewFromInt(totalPrice).Sub(totalCost),
		PaymentMethod: method,
		Customer:      normalizeCustomer(customer),
	}, nil
}

// Tender records cash handed over for a cash order. Zero means the cashier
// did not enter an amount.
func Tender(order domain.Order, received int64) (domain.Order, error) {
	if order.PaymentMethod != domain.PaymentCash || received == 0 {
		return order, nil
	}
	if received < order.TotalPrice {
		return order, fmt.Errorf("%w: received %d for %d", domain.ErrInsufficientTender, received, order.TotalPrice)
	}
	order.CashReceived = received
	order.Change = received - order.TotalPrice
	return order, nil
}

func UpdateRemark(order domain.Order, text string) domain.Order {
	order.Remark = text
	return order
}

func normalizeCustomer(c *domain.Customer) *domain.Customer {
	if c == nil {
		return nil
	}
	name := strings.TrimSpace(c.Name)
	phone := strings.TrimSpace(c.Phone)
	if name == "" && phone == "" {
		return nil
	}
	return &domain.Customer{Name: name, Phone: phone}
}
