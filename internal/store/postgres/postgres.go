package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"haiwei-pos/backend/internal/domain"
	"haiwei-pos/backend/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id             TEXT PRIMARY KEY,
	created_at     TIMESTAMPTZ NOT NULL,
	items          JSONB NOT NULL,
	total_price    BIGINT NOT NULL,
	total_cost     NUMERIC NOT NULL,
	total_profit   NUMERIC NOT NULL,
	payment_method TEXT NOT NULL,
	customer_name  TEXT,
	customer_phone TEXT,
	remark         TEXT NOT NULL DEFAULT '',
	cash_received  BIGINT NOT NULL DEFAULT 0,
	change_due     BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS orders_created_at_idx ON orders (created_at DESC);

CREATE TABLE IF NOT EXISTS daily_closings (
	date               DATE PRIMARY KEY,
	total_revenue      BIGINT NOT NULL,
	total_cost         NUMERIC NOT NULL,
	total_profit       NUMERIC NOT NULL,
	order_count        INTEGER NOT NULL,
	inventory_variance NUMERIC NOT NULL,
	note               TEXT NOT NULL DEFAULT '',
	closed_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) InsertOrder(ctx context.Context, order domain.Order) error {
	if order.ID == "" || len(order.Items) == 0 {
		return store.ErrInvalid
	}
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}

	var customerName, customerPhone sql.NullString
	if order.Customer != nil {
		customerName = nullIfEmpty(order.Customer.Name)
		customerPhone = nullIfEmpty(order.Customer.Phone)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, created_at, items, total_price, total_cost, total_profit,
			payment_method, customer_name, customer_phone, remark, cash_received, change_due
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, order.ID, order.CreatedAt, itemsJSON, order.TotalPrice, order.TotalCost, order.TotalProfit,
		order.PaymentMethod, customerName, customerPhone, order.Remark, order.CashReceived, order.Change)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalid
		}
		return err
	}
	return nil
}

func (s *Store) UpdateOrderRemark(ctx context.Context, id string, remark string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET remark = $2 WHERE id = $1`, id, remark)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

const orderColumns = `id, created_at, items, total_price, total_cost, total_profit,
			payment_method, customer_name, customer_phone, remark, cash_received, change_due`

func (s *Store) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, store.ErrNotFound
	}
	return order, err
}

func (s *Store) ListOrders(ctx context.Context, from time.Time, to time.Time) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 64)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var order domain.Order
	var itemsRaw []byte
	var customerName, customerPhone sql.NullString
	if err := row.Scan(
		&order.ID,
		&order.CreatedAt,
		&itemsRaw,
		&order.TotalPrice,
		&order.TotalCost,
		&order.TotalProfit,
		&order.PaymentMethod,
		&customerName,
		&customerPhone,
		&order.Remark,
		&order.CashReceived,
		&order.Change,
	); err != nil {
		return domain.Order{}, err
	}
	order.CreatedAt = order.CreatedAt.UTC()
	if err := json.Unmarshal(itemsRaw, &order.Items); err != nil {
		return domain.Order{}, err
	}
	if customerName.Valid || customerPhone.Valid {
		order.Customer = &domain.Customer{Name: customerName.String, Phone: customerPhone.String}
	}
	return order, nil
}

func (s *Store) UpsertClosing(ctx context.Context, record domain.DailyClosingRecord) error {
	if _, err := time.Parse("2006-01-02", record.Date); err != nil {
		return store.ErrInvalid
	}
	if record.ClosedAt.IsZero() {
		record.ClosedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_closings (
			date, total_revenue, total_cost, total_profit, order_count, inventory_variance, note, closed_at
		)
		VALUES ($1::date,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (date)
		DO UPDATE SET
			total_revenue = EXCLUDED.total_revenue,
			total_cost = EXCLUDED.total_cost,
			total_profit = EXCLUDED.total_profit,
			order_count = EXCLUDED.order_count,
			inventory_variance = EXCLUDED.inventory_variance,
			note = EXCLUDED.note,
			closed_at = EXCLUDED.closed_at
	`, record.Date, record.TotalRevenue, record.TotalCost, record.TotalProfit,
		record.OrderCount, record.InventoryVariance, record.Note, record.ClosedAt)
	return err
}

func (s *Store) ListClosings(ctx context.Context, from string, to string) ([]domain.DailyClosingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, total_revenue, total_cost, total_profit, order_count, inventory_variance, note, closed_at
		FROM daily_closings
		WHERE date BETWEEN $1::date AND $2::date
		ORDER BY date DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.DailyClosingRecord, 0, 31)
	for rows.Next() {
		var record domain.DailyClosingRecord
		var date time.Time
		if err := rows.Scan(
			&date,
			&record.TotalRevenue,
			&record.TotalCost,
			&record.TotalProfit,
			&record.OrderCount,
			&record.InventoryVariance,
			&record.Note,
			&record.ClosedAt,
		); err != nil {
			return nil, err
		}
		record.Date = date.Format("2006-01-02")
		record.ClosedAt = record.ClosedAt.UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullIfEmpty(val string) sql.NullString {
	if val == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: val, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
