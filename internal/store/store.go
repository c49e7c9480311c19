package store

import (
	"context"
	"errors"
	"time"

	"haiwei-pos/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid record")
)

// OrderStore is the remote copy of finalized orders.
type OrderStore interface {
	InsertOrder(ctx context.Context, order domain.Order) error
	UpdateOrderRemark(ctx context.Context, id string, remark string) error
	DeleteOrder(ctx context.Context, id string) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, from time.Time, to time.Time) ([]domain.Order, error)
}

// LedgerStore keeps one closing record per business date. Dates are
// YYYY-MM-DD and both bounds of ListClosings are inclusive.
type LedgerStore interface {
	UpsertClosing(ctx context.Context, record domain.DailyClosingRecord) error
	ListClosings(ctx context.Context, from string, to string) ([]domain.DailyClosingRecord, error)
}

type Repository interface {
	OrderStore
	LedgerStore
}
