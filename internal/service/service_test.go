package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"haiwei-pos/backend/internal/catalog"
	"haiwei-pos/backend/internal/domain"
	"haiwei-pos/backend/internal/session"
	"haiwei-pos/backend/internal/store"
	"haiwei-pos/backend/internal/store/memory"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type flakyRepo struct {
	*memory.Store
	failInsert  bool
	failClosing bool
}

func (f *flakyRepo) InsertOrder(ctx context.Context, order domain.Order) error {
	if f.failInsert {
		return errors.New("connection refused")
	}
	return f.Store.InsertOrder(ctx, order)
}

func (f *flakyRepo) UpsertClosing(ctx context.Context, record domain.DailyClosingRecord) error {
	if f.failClosing {
		return errors.New("connection refused")
	}
	return f.Store.UpsertClosing(ctx, record)
}

type recordingExporter struct {
	key  string
	body string
}

func (r *recordingExporter) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	r.key = key
	r.body = string(body)
	return "mem://" + key, nil
}

func newTestService(t *testing.T, repo store.Repository) (*Service, session.Store) {
	t.Helper()
	if repo == nil {
		repo = memory.New()
	}
	sessions := session.NewMemoryStore()
	svc, err := New(context.Background(), Options{
		Catalog:  catalog.Default(),
		Sessions: sessions,
		Repo:     repo,
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, sessions
}

func managerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Subject: "manager", Role: domain.RoleManager})
}

func TestCustomAmountSaleBooksProportionalCost(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	cartResp, err := svc.AddItem(ctx, domain.AddItemRequest{ProductID: "ss_bellymeat", Mode: "price", Amount: decimal.NewFromInt(120)})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	line := cartResp.Items[0]
	if line.Price != 120 || *line.WeightGrams != 200 || !line.Cost.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected line %+v", line)
	}

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{PaymentMethod: domain.PaymentCash, CashReceived: 500})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !resp.Order.TotalProfit.Equal(decimal.NewFromInt(70)) || resp.Order.Change != 380 {
		t.Fatalf("unexpected order %+v", resp.Order)
	}
	if len(resp.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", resp.Warnings)
	}
	if len(svc.Cart().Items) != 0 {
		t.Fatalf("expected cart to be cleared after checkout")
	}
}

func TestSameStandardBoxMergesIntoOneLine(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	idx := 0

	for i := 0; i < 2; i++ {
		if _, err := svc.AddItem(ctx, domain.AddItemRequest{ProductID: "sd_driedfish", FixedIndex: &idx}); err != nil {
			t.Fatalf("add item: %v", err)
		}
	}
	cartResp := svc.Cart()
	if len(cartResp.Items) != 1 || cartResp.Items[0].Quantity != 2 || cartResp.TotalPrice != 260 {
		t.Fatalf("expected one merged line of 260, got %+v", cartResp)
	}
}

func TestBelowMinimumCustomPriceLeavesCartUnchanged(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.AddItem(context.Background(), domain.AddItemRequest{ProductID: "ss_roe", Mode: "price", Amount: decimal.NewFromInt(90)})
	if !errors.Is(err, domain.ErrBelowMinimumPrice) {
		t.Fatalf("expected ErrBelowMinimumPrice, got %v", err)
	}
	if len(svc.Cart().Items) != 0 {
		t.Fatalf("expected empty cart")
	}
}

func TestSoldOutProductIsRejected(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	view, err := svc.ToggleSoldOut(ctx, "sd_peanuts")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if len(view.SoldOut) != 1 {
		t.Fatalf("expected one sold out product, got %v", view.SoldOut)
	}
	if _, err := svc.AddItem(ctx, domain.AddItemRequest{ProductID: "sd_peanuts"}); !errors.Is(err, domain.ErrSoldOut) {
		t.Fatalf("expected ErrSoldOut, got %v", err)
	}
	if _, err := svc.ToggleSoldOut(ctx, "sd_peanuts"); err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if _, err := svc.AddItem(ctx, domain.AddItemRequest{ProductID: "sd_peanuts"}); err != nil {
		t.Fatalf("expected product back on sale, got %v", err)
	}
	if _, err := svc.ToggleSoldOut(ctx, "nope"); !errors.Is(err, domain.ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct, got %v", err)
	}
}

func TestComboAddsPartsSummingToBundlePrice(t *testing.T) {
	svc, _ := newTestService(t, nil)

	cartResp, err := svc.AddCombo(context.Background(), domain.AddComboRequest{Components: []string{"meat", "skin", "roe"}})
	if err != nil {
		t.Fatalf("add combo: %v", err)
	}
	if len(cartResp.Items) != 3 || cartResp.TotalPrice != 200 {
		t.Fatalf("unexpected combo cart %+v", cartResp)
	}
	comboID := cartResp.Items[0].ComboID
	for _, line := range cartResp.Items {
		if line.Type != domain.LineComboPart || line.ComboID != comboID {
			t.Fatalf("expected shared combo parts, got %+v", line)
		}
	}

	_, err = svc.AddCombo(context.Background(), domain.AddComboRequest{Components: []string{"meat"}})
	if !errors.Is(err, domain.ErrInsufficientComboSelection) {
		t.Fatalf("expected ErrInsufficientComboSelection, got %v", err)
	}
	_, err = svc.AddCombo(context.Background(), domain.AddComboRequest{Components: []string{"meat", "gills"}})
	if !errors.Is(err, domain.ErrInvalidComboSelection) {
		t.Fatalf("expected ErrInvalidComboSelection for unknown component, got %v", err)
	}
	if len(svc.Cart().Items) != 3 {
		t.Fatalf("failed combos must not touch the cart")
	}
}

func TestComboIgnoresRepeatedAndExtraComponents(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	cartResp, err := svc.AddCombo(ctx, domain.AddComboRequest{Components: []string{"meat", "meat", "skin"}})
	if err != nil {
		t.Fatalf("add combo with repeat: %v", err)
	}
	if len(cartResp.Items) != 2 || cartResp.TotalPrice != 200 {
		t.Fatalf("expected repeat to be ignored, got %+v", cartResp)
	}

	svc.ClearCart(ctx)
	cartResp, err = svc.AddCombo(ctx, domain.AddComboRequest{Components: []string{"meat", "skin", "belly", "finhead", "roe"}})
	if err != nil {
		t.Fatalf("add combo with five components: %v", err)
	}
	if len(cartResp.Items) != 4 || cartResp.TotalPrice != 200 {
		t.Fatalf("expected selection capped at four parts, got %+v", cartResp)
	}
	for _, line := range cartResp.Items {
		if line.ProductID == "ss_roe" {
			t.Fatalf("fifth component must be dropped, got %+v", cartResp.Items)
		}
	}
}

func TestModifierMustComeFromCatalog(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	cartResp, _ := svc.AddItem(ctx, domain.AddItemRequest{ProductID: "sd_jellyfish"})
	lineID := cartResp.Items[0].ID

	if _, err := svc.ToggleModifier(ctx, lineID, "加起司"); !errors.Is(err, domain.ErrInvalidModifier) {
		t.Fatalf("expected ErrInvalidModifier, got %v", err)
	}
	cartResp, err := svc.ToggleModifier(ctx, lineID, "加辣")
	if err != nil {
		t.Fatalf("toggle modifier: %v", err)
	}
	if len(cartResp.Items[0].Modifiers) != 1 {
		t.Fatalf("expected modifier applied, got %+v", cartResp.Items[0])
	}
	if _, err := svc.RemoveLine(ctx, "missing"); !errors.Is(err, domain.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
}

func TestRemoteInsertFailureKeepsLocalOrder(t *testing.T) {
	repo := &flakyRepo{Store: memory.New(), failInsert: true}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, domain.AddItemRequest{ProductID: "sd_pigscalp"}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{PaymentMethod: domain.PaymentLinePay})
	if err != nil {
		t.Fatalf("checkout should succeed locally: %v", err)
	}
	if len(resp.Warnings) != 1 {
		t.Fatalf("expected a sync warning, got %v", resp.Warnings)
	}

	local, err := svc.ListOrders(ctx, "local", "")
	if err != nil || len(local.Items) != 1 {
		t.Fatalf("expected order kept locally, got %+v err=%v", local, err)
	}
	remote, err := svc.ListOrders(ctx, "remote", "2026-03-14")
	if err != nil || len(remote.Items) != 0 {
		t.Fatalf("expected no remote orders, got %+v err=%v", remote, err)
	}
}

func TestCheckoutFailuresLeaveCartIntact(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{PaymentMethod: domain.PaymentCash}); !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}

	_, _ = svc.AddItem(ctx, domain.AddItemRequest{ProductID: "sd_pigliver"})
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{PaymentMethod: "card"}); !errors.Is(err, domain.ErrInvalidPaymentMethod) {
		t.Fatalf("expected ErrInvalidPaymentMethod, got %v", err)
	}
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{PaymentMethod: domain.PaymentCash, CashReceived: 50}); !errors.Is(err, domain.ErrInsufficientTender) {
		t.Fatalf("expected ErrInsufficientTender, got %v", err)
	}
	if len(svc.Cart().Items) != 1 {
		t.Fatalf("expected cart to survive failed checkouts")
	}
}

func TestHoldAndResumeAppendsToLiveCart(t *testing.T) {
	svc, sessions := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.HoldCart(ctx, domain.HoldRequest{}); !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}

	_, _ = svc.AddItem(ctx, domain.AddItemRequest{ProductID: "sd_fishskin"})
	held, err := svc.HoldCart(ctx, domain.HoldRequest{Customer: domain.Customer{Name: " 陳先生 "}, Paid: true})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if held.Customer.Name != "陳先生" || !strings.HasPrefix(held.ID, "held-") || len(svc.Cart().Items) != 0 {
		t.Fatalf("unexpected hold result %+v", held)
	}

	_, _ = svc.AddItem(ctx, domain.AddItemRequest{ProductID: "sd_peanuts"})
	cartResp, err := svc.ResumeHeldOrder(ctx, held.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(cartResp.Items) != 2 || cartResp.Items[0].ProductID != "sd_peanuts" || cartResp.Items[1].ProductID != "sd_fishskin" {
		t.Fatalf("expected held lines appended after live lines, got %+v", cartResp.Items)
	}
	if len(svc.ListHeldOrders().Items) != 0 {
		t.Fatalf("expected held order consumed")
	}
	if err := svc.DeleteHeldOrder(ctx, held.ID); !errors.Is(err, domain.ErrHeldOrderNotFound) {
		t.Fatalf("expected ErrHeldOrderNotFound, got %v", err)
	}

	state, err := sessions.Load(ctx)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if len(state.Cart) != 2 || len(state.HeldOrders) != 0 {
		t.Fatalf("expected session to track the latest state, got %+v", state)
	}
}

func TestDashboardOperationsRequireManager(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.CloseDay(ctx, domain.ReconcileRequest{}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for close day, got %v", err)
	}
	if _, err := svc.DeleteOrder(ctx, "x"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for delete, got %v", err)
	}
	if _, err := svc.Insight(ctx, "", ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for insight, got %v", err)
	}
}

func TestRemarkAndDeleteReachBothCopies(t *testing.T) {
	repo := memory.New()
	svc, _ := newTestService(t, repo)
	ctx := managerCtx()

	_, _ = svc.AddItem(ctx, domain.AddItemRequest{ProductID: "sd_jellyfish"})
	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{PaymentMethod: domain.PaymentCash})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	id := resp.Order.ID

	updated, err := svc.UpdateRemark(ctx, id, " 不要蔥 ")
	if err != nil {
		t.Fatalf("remark: %v", err)
	}
	if updated.Order.Remark != "不要蔥" || updated.Order.TotalPrice != 100 {
		t.Fatalf("unexpected remark response %+v", updated)
	}
	remote, _ := repo.ListOrders(ctx, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	if len(remote) != 1 || remote[0].Remark != "不要蔥" {
		t.Fatalf("expected remote remark, got %+v", remote)
	}

	if _, err := svc.DeleteOrder(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.DeleteOrder(ctx, id); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	remote, _ = repo.ListOrders(ctx, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	if len(remote) != 0 {
		t.Fatalf("expected remote delete, got %+v", remote)
	}
}

func TestRemarkOnRemoteOnlyOrderReturnsStoredOrder(t *testing.T) {
	repo := memory.New()
	svc, _ := newTestService(t, repo)
	ctx := managerCtx()

	stored := domain.Order{
		ID:            "remote-order-1",
		CreatedAt:     testNow.Add(-26 * time.Hour),
		Items:         []domain.CartLine{{ID: "l1", ProductID: "sd_peanuts", ProductName: "花生", Quantity: 1, Price: 60}},
		TotalPrice:    60,
		TotalCost:     decimal.NewFromInt(20),
		TotalProfit:   decimal.NewFromInt(40),
		PaymentMethod: domain.PaymentCash,
	}
	if err := repo.InsertOrder(ctx, stored); err != nil {
		t.Fatalf("seed remote order: %v", err)
	}

	updated, err := svc.UpdateRemark(ctx, stored.ID, "少辣")
	if err != nil {
		t.Fatalf("remark: %v", err)
	}
	got := updated.Order
	if got.ID != stored.ID || got.Remark != "少辣" || got.TotalPrice != 60 || !got.CreatedAt.Equal(stored.CreatedAt) || len(got.Items) != 1 {
		t.Fatalf("expected full stored order in response, got %+v", got)
	}

	if _, err := svc.UpdateRemark(ctx, "missing-order", "x"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestCloseDayClearsOrdersOnlyAfterLedgerAccepts(t *testing.T) {
	repo := &flakyRepo{Store: memory.New(), failClosing: true}
	svc, _ := newTestService(t, repo)
	ctx := managerCtx()

	_, _ = svc.AddItem(ctx, domain.AddItemRequest{ProductID: "sd_peanuts"})
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{PaymentMethod: domain.PaymentCash}); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	_, _ = svc.AddItem(ctx, domain.AddItemRequest{ProductID: "sd_jellyfish"})
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{PaymentMethod: domain.PaymentWaste}); err != nil {
		t.Fatalf("waste checkout: %v", err)
	}

	req := domain.ReconcileRequest{Date: "2026-03-14"}
	if _, err := svc.CloseDay(ctx, req); !errors.Is(err, domain.ErrRemoteSync) {
		t.Fatalf("expected ErrRemoteSync, got %v", err)
	}
	local, _ := svc.ListOrders(ctx, "local", "")
	if len(local.Items) != 2 {
		t.Fatalf("expected orders kept after failed closing, got %d", len(local.Items))
	}

	repo.failClosing = false
	resp, err := svc.CloseDay(ctx, req)
	if err != nil {
		t.Fatalf("close day: %v", err)
	}
	if resp.Record.TotalRevenue != 100 || resp.Record.OrderCount != 2 {
		t.Fatalf("unexpected closing record %+v", resp.Record)
	}
	// no counts entered: variance is the waste cost of the jellyfish box
	if resp.Record.InventoryVariance.IsZero() || !resp.Record.InventoryVariance.IsNegative() {
		t.Fatalf("expected negative waste variance, got %s", resp.Record.InventoryVariance)
	}
	local, _ = svc.ListOrders(ctx, "local", "")
	if len(local.Items) != 0 {
		t.Fatalf("expected local orders cleared after closing, got %d", len(local.Items))
	}

	history, err := svc.ClosingHistory(ctx, "", "2026-03-14")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history.Items) != 1 || history.Items[0].Date != "2026-03-14" {
		t.Fatalf("unexpected history %+v", history)
	}
	if _, err := svc.ClosingHistory(ctx, "2026-03-15", "2026-03-14"); !errors.Is(err, domain.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for reversed range, got %v", err)
	}
}

func TestReconcileFromRemoteSource(t *testing.T) {
	repo := memory.New()
	svc, _ := newTestService(t, repo)
	ctx := managerCtx()

	_, _ = svc.AddItem(ctx, domain.AddItemRequest{ProductID: "sd_chickenfeet"})
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{PaymentMethod: domain.PaymentCash}); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	req := domain.ReconcileRequest{
		Date:   "2026-03-14",
		Source: "remote",
		Records: []domain.InventoryRecord{{
			ProductID: "sd_chickenfeet",
			Opening:   decimal.NewFromInt(2),
			Closing:   decimal.RequireFromString("1.5"),
		}},
	}
	report, err := svc.Reconcile(ctx, req)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.Source != domain.SourceRemote || !report.CountsEntered {
		t.Fatalf("unexpected report %+v", report)
	}
	var found bool
	for _, row := range report.Rows {
		if row.ProductID != "sd_chickenfeet" {
			continue
		}
		found = true
		// 0.5 catty at 300 estimates 150 against 100 sold
		if row.ActualRevenue != 100 || row.Diff != -50 {
			t.Fatalf("unexpected row %+v", row)
		}
	}
	if !found {
		t.Fatalf("expected chicken feet row")
	}

	if _, err := svc.Reconcile(ctx, domain.ReconcileRequest{Source: "cloud"}); !errors.Is(err, domain.ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
}

func TestExportReconciliationUploadsCSV(t *testing.T) {
	exporter := &recordingExporter{}
	svc, err := New(context.Background(), Options{
		Repo:     memory.New(),
		Exporter: exporter,
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	resp, err := svc.ExportReconciliation(managerCtx(), domain.ReconcileRequest{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if resp.Location != "mem://reconciliation/2026-03-14-local.csv" {
		t.Fatalf("unexpected location %q", resp.Location)
	}
	if !strings.HasPrefix(exporter.body, "product_id,") || !strings.Contains(exporter.body, "ss_roe") {
		t.Fatalf("unexpected csv body %q", exporter.body)
	}
}

func TestInsightWithoutSummarizerFallsBack(t *testing.T) {
	svc, _ := newTestService(t, nil)

	resp, err := svc.Insight(managerCtx(), "", "")
	if err != nil {
		t.Fatalf("insight: %v", err)
	}
	if resp.Text == "" || resp.Cached {
		t.Fatalf("expected static fallback, got %+v", resp)
	}
}

func TestNewRestoresSessionState(t *testing.T) {
	sessions := session.NewMemoryStore()
	seed := domain.SessionState{SoldOut: []string{"ss_roe"}}
	if err := sessions.Save(context.Background(), seed); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	svc, err := New(context.Background(), Options{Sessions: sessions, Repo: memory.New()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if sold := svc.Catalog().SoldOut; len(sold) != 1 || sold[0] != "ss_roe" {
		t.Fatalf("expected restored sold-out list, got %v", sold)
	}
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error without repository")
	}
}

func TestCatalogListsServableComboComponents(t *testing.T) {
	svc, _ := newTestService(t, nil)

	view := svc.Catalog()
	if len(view.ComboComponents) != 5 || view.ComboComponents[0].Key != "meat" || view.ComboComponents[0].ProductID != "ss_bellymeat" {
		t.Fatalf("unexpected combo components %+v", view.ComboComponents)
	}
}
