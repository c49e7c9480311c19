package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"haiwei-pos/backend/internal/cart"
	"haiwei-pos/backend/internal/catalog"
	"haiwei-pos/backend/internal/checkout"
	"haiwei-pos/backend/internal/domain"
	"haiwei-pos/backend/internal/export"
	"haiwei-pos/backend/internal/insight"
	"haiwei-pos/backend/internal/inventory"
	"haiwei-pos/backend/internal/pricing"
	"haiwei-pos/backend/internal/session"
	"haiwei-pos/backend/internal/store"
	"haiwei-pos/backend/internal/xid"
)

const defaultHistoryDays = 30

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Catalog  *catalog.Catalog
	Sessions session.Store
	Repo     store.Repository
	Insight  *insight.Engine
	Exporter export.Exporter
	Location *time.Location
	Now      func() time.Time
}

// Service is the single register: one live cart, its held orders and the
// orders taken since the last closing. Every mutation is written back to the
// session store before the call returns.
type Service struct {
	mu       sync.Mutex
	state    domain.SessionState
	catalog  *catalog.Catalog
	sessions session.Store
	repo     store.Repository
	insight  *insight.Engine
	exporter export.Exporter
	loc      *time.Location
	now      func() time.Time
}

func New(ctx context.Context, opts Options) (*Service, error) {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewMemoryStore()
	}
	if opts.Repo == nil {
		return nil, errors.New("service: order repository is required")
	}
	if opts.Insight == nil {
		opts.Insight = insight.NewEngine(nil, nil, 0)
	}
	if opts.Exporter == nil {
		opts.Exporter = export.NoopExporter{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	state, err := opts.Sessions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	return &Service{
		state:    state,
		catalog:  opts.Catalog,
		sessions: opts.Sessions,
		repo:     opts.Repo,
		insight:  opts.Insight,
		exporter: opts.Exporter,
		loc:      opts.Location,
		now:      opts.Now,
	}, nil
}

func (s *Service) Catalog() domain.CatalogView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalogViewLocked()
}

func (s *Service) ToggleSoldOut(ctx context.Context, productID string) (domain.CatalogView, error) {
	if _, ok := s.catalog.Product(productID); !ok {
		return domain.CatalogView{}, fmt.Errorf("%w: %s", domain.ErrUnknownProduct, productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.state.SoldOut, productID) {
		s.state.SoldOut = slices.DeleteFunc(s.state.SoldOut, func(id string) bool { return id == productID })
	} else {
		s.state.SoldOut = append(s.state.SoldOut, productID)
	}
	s.persistLocked(ctx)
	return s.catalogViewLocked(), nil
}

func (s *Service) Cart() domain.CartResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cartResponse(s.state.Cart)
}

func (s *Service) AddItem(ctx context.Context, req domain.AddItemRequest) (domain.CartResponse, error) {
	product, ok := s.catalog.Product(strings.TrimSpace(req.ProductID))
	if !ok {
		return domain.CartResponse{}, fmt.Errorf("%w: %s", domain.ErrUnknownProduct, req.ProductID)
	}
	if product.ID == catalog.ComboProductID {
		return domain.CartResponse{}, fmt.Errorf("%w: combo is added through its components", domain.ErrInvalidQuote)
	}

	quote, err := cart.QuoteSale(product, req, s.catalog.Rule(product.Category))
	if err != nil {
		return domain.CartResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.state.SoldOut, product.ID) {
		return domain.CartResponse{}, fmt.Errorf("%w: %s", domain.ErrSoldOut, product.Name)
	}
	next, err := cart.AddOrMerge(s.state.Cart, product, quote.Price, quote.WeightGrams, quote.Type)
	if err != nil {
		return domain.CartResponse{}, err
	}
	s.state.Cart = next
	s.persistLocked(ctx)
	return cartResponse(s.state.Cart), nil
}

func (s *Service) AddCombo(ctx context.Context, req domain.AddComboRequest) (domain.CartResponse, error) {
	var selection pricing.ComboSelection
	for _, raw := range req.Components {
		component, err := pricing.ParseComponent(raw)
		if err != nil {
			return domain.CartResponse{}, err
		}
		if err := selection.Add(component); err != nil {
			return domain.CartResponse{}, err
		}
	}
	components, err := selection.Confirm()
	if err != nil {
		return domain.CartResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.state.SoldOut, catalog.ComboProductID) {
		return domain.CartResponse{}, fmt.Errorf("%w: %s", domain.ErrSoldOut, catalog.ComboProductID)
	}
	next, err := cart.AddCombo(s.state.Cart, s.catalog, s.catalog.ComboPrice(), components)
	if err != nil {
		return domain.CartResponse{}, err
	}
	s.state.Cart = next
	s.persistLocked(ctx)
	return cartResponse(s.state.Cart), nil
}

func (s *Service) ToggleModifier(ctx context.Context, lineID string, tag string) (domain.CartResponse, error) {
	tag = strings.TrimSpace(tag)
	if !slices.Contains(s.catalog.Modifiers(), tag) {
		return domain.CartResponse{}, fmt.Errorf("%w: %q", domain.ErrInvalidModifier, tag)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := cart.ToggleModifier(s.state.Cart, lineID, tag)
	if err != nil {
		return domain.CartResponse{}, err
	}
	s.state.Cart = next
	s.persistLocked(ctx)
	return cartResponse(s.state.Cart), nil
}

func (s *Service) RemoveLine(ctx context.Context, lineID string) (domain.CartResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := cart.RemoveLine(s.state.Cart, lineID)
	if err != nil {
		return domain.CartResponse{}, err
	}
	s.state.Cart = next
	s.persistLocked(ctx)
	return cartResponse(s.state.Cart), nil
}

func (s *Service) ClearCart(ctx context.Context) domain.CartResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Cart = []domain.CartLine{}
	s.persistLocked(ctx)
	return cartResponse(s.state.Cart)
}

// Checkout finalizes the live cart. The order is committed locally first; a
// failed remote insert is reported as a warning and never rolls it back.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if req.CashReceived < 0 {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: negative cash received", domain.ErrInsufficientTender)
	}

	s.mu.Lock()
	order, err := checkout.Finalize(s.state.Cart, req.PaymentMethod, req.Customer, s.now(), xid.New())
	if err == nil {
		order, err = checkout.Tender(order, req.CashReceived)
	}
	if err != nil {
		s.mu.Unlock()
		return domain.CheckoutResponse{}, err
	}
	s.state.Orders = append(s.state.Orders, order)
	s.state.Cart = []domain.CartLine{}
	s.persistLocked(ctx)
	s.mu.Unlock()

	resp := domain.CheckoutResponse{Order: order}
	if err := s.repo.InsertOrder(ctx, order); err != nil {
		log.Printf("[service] WARN: remote insert failed order=%s: %v", order.ID, err)
		resp.Warnings = append(resp.Warnings, "order saved locally; remote sync failed")
	}
	return resp, nil
}

// ListOrders returns orders newest first. Local orders are the ones taken
// since the last closing; a blank date lists all of them. Remote orders are
// always scoped to one business date, today by default.
func (s *Service) ListOrders(ctx context.Context, source string, date string) (domain.OrderListResponse, error) {
	source, err := inventory.ParseSource(source)
	if err != nil {
		return domain.OrderListResponse{}, err
	}
	if source == domain.SourceLocal && strings.TrimSpace(date) == "" {
		s.mu.Lock()
		orders := cloneOrders(s.state.Orders)
		s.mu.Unlock()
		sortNewestFirst(orders)
		return domain.OrderListResponse{Source: source, Items: orders}, nil
	}

	orders, err := s.ordersFor(ctx, source, s.dateOrToday(date))
	if err != nil {
		return domain.OrderListResponse{}, err
	}
	sortNewestFirst(orders)
	return domain.OrderListResponse{Source: source, Items: orders}, nil
}

func (s *Service) UpdateRemark(ctx context.Context, orderID string, remark string) (domain.OrderResponse, error) {
	if err := requireManager(ctx); err != nil {
		return domain.OrderResponse{}, err
	}
	remark = strings.TrimSpace(remark)

	s.mu.Lock()
	idx := slices.IndexFunc(s.state.Orders, func(o domain.Order) bool { return o.ID == orderID })
	var (
		updated domain.Order
		local   = idx >= 0
	)
	if local {
		updated = checkout.UpdateRemark(s.state.Orders[idx], remark)
		s.state.Orders[idx] = updated
		s.persistLocked(ctx)
	}
	s.mu.Unlock()

	resp := domain.OrderResponse{Order: updated}
	err := s.repo.UpdateOrderRemark(ctx, orderID, remark)
	switch {
	case err == nil:
		if local {
			break
		}
		stored, getErr := s.repo.GetOrder(ctx, orderID)
		if getErr != nil {
			return domain.OrderResponse{}, fmt.Errorf("%w: reload order %s: %v", domain.ErrRemoteSync, orderID, getErr)
		}
		resp.Order = stored
	case !local && errors.Is(err, store.ErrNotFound):
		return domain.OrderResponse{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	case !local:
		return domain.OrderResponse{}, fmt.Errorf("%w: %v", domain.ErrRemoteSync, err)
	default:
		log.Printf("[service] WARN: remote remark update failed order=%s: %v", orderID, err)
		resp.Warnings = append(resp.Warnings, "remark saved locally; remote sync failed")
	}
	return resp, nil
}

func (s *Service) DeleteOrder(ctx context.Context, orderID string) ([]string, error) {
	if err := requireManager(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	before := len(s.state.Orders)
	s.state.Orders = slices.DeleteFunc(s.state.Orders, func(o domain.Order) bool { return o.ID == orderID })
	local := len(s.state.Orders) != before
	if local {
		s.persistLocked(ctx)
	}
	s.mu.Unlock()

	err := s.repo.DeleteOrder(ctx, orderID)
	switch {
	case err == nil:
		return nil, nil
	case !local && errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	case !local:
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteSync, err)
	case errors.Is(err, store.ErrNotFound):
		// the order was never synced
		return nil, nil
	default:
		log.Printf("[service] WARN: remote delete failed order=%s: %v", orderID, err)
		return []string{"order deleted locally; remote sync failed"}, nil
	}
}

// HoldCart parks the live cart as a pending order and empties the register.
func (s *Service) HoldCart(ctx context.Context, req domain.HoldRequest) (domain.HeldOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.state.Cart) == 0 {
		return domain.HeldOrder{}, domain.ErrEmptyCart
	}

	held := domain.HeldOrder{
		ID:     xid.Prefixed("held"),
		HeldAt: s.now().UTC(),
		Items:  cart.CloneLines(s.state.Cart),
		Customer: domain.Customer{
			Name:  strings.TrimSpace(req.Customer.Name),
			Phone: strings.TrimSpace(req.Customer.Phone),
		},
		Paid: req.Paid,
	}
	s.state.HeldOrders = append(s.state.HeldOrders, held)
	s.state.Cart = []domain.CartLine{}
	s.persistLocked(ctx)
	return held, nil
}

func (s *Service) ListHeldOrders() domain.HeldOrderListResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.HeldOrder, len(s.state.HeldOrders))
	for i, held := range s.state.HeldOrders {
		held.Items = cart.CloneLines(held.Items)
		items[i] = held
	}
	return domain.HeldOrderListResponse{Items: items}
}

// ResumeHeldOrder moves a held order's lines onto the end of the live cart.
func (s *Service) ResumeHeldOrder(ctx context.Context, heldID string) (domain.CartResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.state.HeldOrders, func(h domain.HeldOrder) bool { return h.ID == heldID })
	if idx < 0 {
		return domain.CartResponse{}, fmt.Errorf("%w: %s", domain.ErrHeldOrderNotFound, heldID)
	}

	s.state.Cart = append(cart.CloneLines(s.state.Cart), cart.CloneLines(s.state.HeldOrders[idx].Items)...)
	s.state.HeldOrders = slices.Delete(s.state.HeldOrders, idx, idx+1)
	s.persistLocked(ctx)
	return cartResponse(s.state.Cart), nil
}

func (s *Service) DeleteHeldOrder(ctx context.Context, heldID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.state.HeldOrders, func(h domain.HeldOrder) bool { return h.ID == heldID })
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrHeldOrderNotFound, heldID)
	}
	s.state.HeldOrders = slices.Delete(s.state.HeldOrders, idx, idx+1)
	s.persistLocked(ctx)
	return nil
}

func (s *Service) Reconcile(ctx context.Context, req domain.ReconcileRequest) (domain.ReconciliationReport, error) {
	if err := requireManager(ctx); err != nil {
		return domain.ReconciliationReport{}, err
	}
	report, _, err := s.reconcile(ctx, req)
	return report, err
}

// CloseDay writes the ledger entry for a business date. The day's local
// orders are only dropped once the ledger accepted the record, so a failed
// closing can simply be retried.
func (s *Service) CloseDay(ctx context.Context, req domain.ReconcileRequest) (domain.CloseDayResponse, error) {
	if err := requireManager(ctx); err != nil {
		return domain.CloseDayResponse{}, err
	}
	req.Date = s.dateOrToday(req.Date)

	report, orders, err := s.reconcile(ctx, req)
	if err != nil {
		return domain.CloseDayResponse{}, err
	}
	record := inventory.BuildClosing(req.Date, report, orders, s.now())

	if err := s.repo.UpsertClosing(ctx, record); err != nil {
		log.Printf("[service] WARN: closing upsert failed date=%s: %v", req.Date, err)
		return domain.CloseDayResponse{}, fmt.Errorf("%w: %v", domain.ErrRemoteSync, err)
	}

	from, to, _ := inventory.DayBounds(req.Date, s.loc)
	s.mu.Lock()
	s.state.Orders = slices.DeleteFunc(s.state.Orders, func(o domain.Order) bool {
		return !o.CreatedAt.Before(from) && o.CreatedAt.Before(to)
	})
	s.persistLocked(ctx)
	s.mu.Unlock()

	log.Printf("[service] day closed date=%s orders=%d revenue=%d", record.Date, record.OrderCount, record.TotalRevenue)
	return domain.CloseDayResponse{Record: record, Report: report}, nil
}

// ClosingHistory lists ledger entries between two dates, newest first. With
// no bounds it covers the last thirty days.
func (s *Service) ClosingHistory(ctx context.Context, from string, to string) (domain.ClosingHistoryResponse, error) {
	if err := requireManager(ctx); err != nil {
		return domain.ClosingHistoryResponse{}, err
	}

	to = s.dateOrToday(to)
	end, _, err := inventory.DayBounds(to, s.loc)
	if err != nil {
		return domain.ClosingHistoryResponse{}, err
	}
	if strings.TrimSpace(from) == "" {
		from = end.AddDate(0, 0, -defaultHistoryDays).Format(inventory.DateLayout)
	}
	start, _, err := inventory.DayBounds(from, s.loc)
	if err != nil {
		return domain.ClosingHistoryResponse{}, err
	}
	if start.After(end) {
		return domain.ClosingHistoryResponse{}, fmt.Errorf("%w: %s is after %s", domain.ErrInvalidDate, from, to)
	}

	records, err := s.repo.ListClosings(ctx, from, to)
	if err != nil {
		return domain.ClosingHistoryResponse{}, fmt.Errorf("%w: %v", domain.ErrRemoteSync, err)
	}
	return domain.ClosingHistoryResponse{Items: records}, nil
}

func (s *Service) Insight(ctx context.Context, source string, date string) (domain.InsightResponse, error) {
	if err := requireManager(ctx); err != nil {
		return domain.InsightResponse{}, err
	}
	source, err := inventory.ParseSource(source)
	if err != nil {
		return domain.InsightResponse{}, err
	}
	orders, err := s.ordersFor(ctx, source, s.dateOrToday(date))
	if err != nil {
		return domain.InsightResponse{}, err
	}
	return s.insight.Generate(ctx, orders, s.catalog.Products()), nil
}

func (s *Service) ExportReconciliation(ctx context.Context, req domain.ReconcileRequest) (domain.ExportResponse, error) {
	if err := requireManager(ctx); err != nil {
		return domain.ExportResponse{}, err
	}
	req.Date = s.dateOrToday(req.Date)

	report, _, err := s.reconcile(ctx, req)
	if err != nil {
		return domain.ExportResponse{}, err
	}
	body, err := export.ReconciliationCSV(report)
	if err != nil {
		return domain.ExportResponse{}, err
	}

	key := fmt.Sprintf("reconciliation/%s-%s.csv", req.Date, report.Source)
	location, err := s.exporter.Put(ctx, key, body, "text/csv; charset=utf-8")
	if err != nil {
		return domain.ExportResponse{}, err
	}
	return domain.ExportResponse{Location: location}, nil
}

func (s *Service) reconcile(ctx context.Context, req domain.ReconcileRequest) (domain.ReconciliationReport, []domain.Order, error) {
	source, err := inventory.ParseSource(req.Source)
	if err != nil {
		return domain.ReconciliationReport{}, nil, err
	}
	orders, err := s.ordersFor(ctx, source, s.dateOrToday(req.Date))
	if err != nil {
		return domain.ReconciliationReport{}, nil, err
	}

	report, err := inventory.Reconcile(s.catalog.Products(), req.Records, orders, inventory.Options{
		ComboProductID: catalog.ComboProductID,
		ComboPrice:     s.catalog.ComboPrice(),
		Source:         source,
	})
	if err != nil {
		return domain.ReconciliationReport{}, nil, err
	}
	return report, orders, nil
}

func (s *Service) ordersFor(ctx context.Context, source string, date string) ([]domain.Order, error) {
	from, to, err := inventory.DayBounds(date, s.loc)
	if err != nil {
		return nil, err
	}

	if source == domain.SourceRemote {
		orders, err := s.repo.ListOrders(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRemoteSync, err)
		}
		return orders, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrders(inventory.OrdersBetween(s.state.Orders, from, to)), nil
}

func (s *Service) dateOrToday(date string) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return s.now().In(s.loc).Format(inventory.DateLayout)
	}
	return date
}

func (s *Service) persistLocked(ctx context.Context) {
	if err := s.sessions.Save(ctx, s.state); err != nil {
		log.Printf("[service] WARN: failed to persist session: %v", err)
	}
}

func (s *Service) catalogViewLocked() domain.CatalogView {
	return domain.CatalogView{
		Products:        s.catalog.Products(),
		Rules:           s.catalog.Rules(),
		Modifiers:       s.catalog.Modifiers(),
		ComboPrice:      s.catalog.ComboPrice(),
		ComboComponents: s.comboComponents(),
		SoldOut:         slices.Clone(s.state.SoldOut),
	}
}

// comboComponents lists the bundle parts this menu can actually serve.
func (s *Service) comboComponents() []domain.ComboComponent {
	out := make([]domain.ComboComponent, 0, len(pricing.Components()))
	for _, c := range pricing.Components() {
		productID, _ := pricing.ComponentProductID(c)
		product, ok := s.catalog.Product(productID)
		if !ok {
			continue
		}
		out = append(out, domain.ComboComponent{Key: string(c), ProductID: product.ID, ProductName: product.Name})
	}
	return out
}

func requireManager(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleManager {
		return domain.ErrForbidden
	}
	return nil
}

func cartResponse(lines []domain.CartLine) domain.CartResponse {
	price, cost := cart.Totals(lines)
	return domain.CartResponse{
		Items:      cart.CloneLines(lines),
		TotalPrice: price,
		TotalCost:  cost,
	}
}

func cloneOrders(orders []domain.Order) []domain.Order {
	out := make([]domain.Order, len(orders))
	for i, order := range orders {
		order.Items = cart.CloneLines(order.Items)
		if order.Customer != nil {
			c := *order.Customer
			order.Customer = &c
		}
		out[i] = order
	}
	return out
}

func sortNewestFirst(orders []domain.Order) {
	slices.SortStableFunc(orders, func(a, b domain.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
