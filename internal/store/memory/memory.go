package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"haiwei-pos/backend/internal/domain"
	"haiwei-pos/backend/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	orders   map[string]domain.Order
	closings map[string]domain.DailyClosingRecord
}

func New() *Store {
	return &Store{
		orders:   make(map[string]domain.Order),
		closings: make(map[string]domain.DailyClosingRecord),
	}
}

func (s *Store) InsertOrder(_ context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return store.ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return store.ErrInvalid
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *Store) UpdateOrderRemark(_ context.Context, id string, remark string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	order.Remark = remark
	s.orders[id] = order
	return nil
}

func (s *Store) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, store.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (s *Store) ListOrders(_ context.Context, from time.Time, to time.Time) ([]domain.Order, error) {
	s.mu.RLock()
	result := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		if order.CreatedAt.Before(from) || !order.CreatedAt.Before(to) {
			continue
		}
		result = append(result, cloneOrder(order))
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmpString(a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) UpsertClosing(_ context.Context, record domain.DailyClosingRecord) error {
	if _, err := time.Parse("2006-01-02", record.Date); err != nil {
		return store.ErrInvalid
	}
	s.mu.Lock()
	s.closings[record.Date] = record
	s.mu.Unlock()
	return nil
}

func (s *Store) ListClosings(_ context.Context, from string, to string) ([]domain.DailyClosingRecord, error) {
	s.mu.RLock()
	result := make([]domain.DailyClosingRecord, 0, len(s.closings))
	for date, record := range s.closings {
		// YYYY-MM-DD compares lexically
		if date < from || date > to {
			continue
		}
		result = append(result, record)
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b domain.DailyClosingRecord) int {
		return cmpString(b.Date, a.Date)
	})
	return result, nil
}

func cloneOrder(order domain.Order) domain.Order {
	items := make([]domain.CartLine, len(order.Items))
	for i, line := range order.Items {
		if line.WeightGrams != nil {
			w := *line.WeightGrams
			line.WeightGrams = &w
		}
		line.Modifiers = slices.Clone(line.Modifiers)
		items[i] = line
	}
	order.Items = items
	if order.Customer != nil {
		c := *order.Customer
		order.Customer = &c
	}
	return order
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
