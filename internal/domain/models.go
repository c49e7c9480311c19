package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CategorySmallDish   = "small_dish"
	CategorySmokedShark = "smoked_shark"
)

const (
	LineStandardBox  = "standard_box"
	LineCustomWeight = "custom_weight"
	LineComboPart    = "combo_part"
)

const (
	PaymentCash    = "cash"
	PaymentLinePay = "line_pay"
	PaymentWaste   = "waste"
)

const RoleManager = "manager"

const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

type FixedPrice struct {
	Label string `json:"label"`
	Price int64  `json:"price"`
}

// Product prices are quoted per standard weight unit (one catty, 600 g).
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	CostPerUnit  decimal.Decimal `json:"cost_per_unit"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	FixedPrices  []FixedPrice    `json:"fixed_prices,omitempty"`
}

type CategoryRule struct {
	StandardBoxPrice int64 `json:"standard_box_price"`
	MinCustomPrice   int64 `json:"min_custom_price"`
}

type ComboComponent struct {
	Key         string `json:"key"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
}

type CatalogView struct {
	Products        []Product               `json:"products"`
	Rules           map[string]CategoryRule `json:"rules"`
	Modifiers       []string                `json:"modifiers"`
	ComboPrice      int64                   `json:"combo_price"`
	ComboComponents []ComboComponent        `json:"combo_components"`
	SoldOut         []string                `json:"sold_out"`
}

type CartLine struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Type        string          `json:"type"`
	Quantity    int             `json:"quantity"`
	WeightGrams *int64          `json:"weight_grams,omitempty"`
	Price       int64           `json:"price"`
	Cost        decimal.Decimal `json:"cost"`
	ComboID     string          `json:"combo_id,omitempty"`
	Modifiers   []string        `json:"modifiers"`
}

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type Order struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []CartLine      `json:"items"`
	TotalPrice    int64           `json:"total_price"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	PaymentMethod string          `json:"payment_method"`
	Customer      *Customer       `json:"customer,omitempty"`
	Remark        string          `json:"remark,omitempty"`
	CashReceived  int64           `json:"cash_received,omitempty"`
	Change        int64           `json:"change,omitempty"`
}

type HeldOrder struct {
	ID       string     `json:"id"`
	HeldAt   time.Time  `json:"held_at"`
	Items    []CartLine `json:"items"`
	Customer Customer   `json:"customer"`
	Paid     bool       `json:"paid"`
}

// InventoryRecord counts are in the product's natural unit: catty for
// weighed goods, pieces for fixed-unit goods.
type InventoryRecord struct {
	ProductID string          `json:"product_id"`
	Opening   decimal.Decimal `json:"opening"`
	Restock   decimal.Decimal `json:"restock"`
	Closing   decimal.Decimal `json:"closing"`
	Waste     decimal.Decimal `json:"waste"`
}

type ReconciliationRow struct {
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name"`
	IsFixedUnit      bool            `json:"is_fixed_unit"`
	Opening          decimal.Decimal `json:"opening"`
	Restock          decimal.Decimal `json:"restock"`
	Closing          decimal.Decimal `json:"closing"`
	Waste            decimal.Decimal `json:"waste"`
	SalesQty         decimal.Decimal `json:"sales_qty"`
	RefPrice         decimal.Decimal `json:"ref_price"`
	EstimatedRevenue decimal.Decimal `json:"estimated_revenue"`
	ActualRevenue    int64           `json:"actual_revenue"`
	Diff             int64           `json:"diff"`
	SystemSoldUnit   decimal.Decimal `json:"system_sold_unit"`
}

type ReconciliationReport struct {
	Source         string              `json:"source"`
	Rows           []ReconciliationRow `json:"rows"`
	TotalDiff      int64               `json:"total_diff"`
	TotalWasteCost decimal.Decimal     `json:"total_waste_cost"`
	CountsEntered  bool                `json:"counts_entered"`
}

type DailyClosingRecord struct {
	Date              string          `json:"date"`
	TotalRevenue      int64           `json:"total_revenue"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
	OrderCount        int             `json:"order_count"`
	InventoryVariance decimal.Decimal `json:"inventory_variance"`
	Note              string          `json:"note"`
	ClosedAt          time.Time       `json:"closed_at"`
}

// SessionState is everything the register keeps between restarts.
type SessionState struct {
	Cart       []CartLine  `json:"cart"`
	HeldOrders []HeldOrder `json:"held_orders"`
	SoldOut    []string    `json:"sold_out"`
	Orders     []Order     `json:"orders"`
}

type AddItemRequest struct {
	ProductID  string          `json:"product_id"`
	Mode       string          `json:"mode"`
	FixedIndex *int            `json:"fixed_index,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Grams      decimal.Decimal `json:"grams"`
	Catty      decimal.Decimal `json:"catty"`
	Tael       decimal.Decimal `json:"tael"`
}

type AddComboRequest struct {
	Components []string `json:"components"`
}

type ModifierRequest struct {
	Tag string `json:"tag"`
}

type CartResponse struct {
	Items      []CartLine      `json:"items"`
	TotalPrice int64           `json:"total_price"`
	TotalCost  decimal.Decimal `json:"total_cost"`
}

type CheckoutRequest struct {
	PaymentMethod string    `json:"payment_method"`
	Customer      *Customer `json:"customer,omitempty"`
	CashReceived  int64     `json:"cash_received"`
}

type CheckoutResponse struct {
	Order    Order    `json:"order"`
	Warnings []string `json:"warnings,omitempty"`
}

type OrderResponse struct {
	Order    Order    `json:"order"`
	Warnings []string `json:"warnings,omitempty"`
}

type OrderListResponse struct {
	Source string  `json:"source"`
	Items  []Order `json:"items"`
}

type RemarkRequest struct {
	Remark string `json:"remark"`
}

type HoldRequest struct {
	Customer Customer `json:"customer"`
	Paid     bool     `json:"paid"`
}

type HeldOrderListResponse struct {
	Items []HeldOrder `json:"items"`
}

type ReconcileRequest struct {
	Date    string            `json:"date"`
	Source  string            `json:"source"`
	Records []InventoryRecord `json:"records"`
}

type CloseDayResponse struct {
	Record DailyClosingRecord   `json:"record"`
	Report ReconciliationReport `json:"report"`
}

type ClosingHistoryResponse struct {
	Items []DailyClosingRecord `json:"items"`
}

type InsightResponse struct {
	Text   string `json:"text"`
	Cached bool   `json:"cached"`
}

type ExportResponse struct {
	Location string `json:"location"`
}

type PINRequest struct {
	PIN string `json:"pin"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Subject string `json:"subject"`
	Role    string `json:"role"`
}
