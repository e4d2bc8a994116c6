/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements persistence for the installment sales system: projects,
  lots, clients, plan templates, sales, payments and payment
  allocations. In production the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  schedule.SaleSource:          Per-sale reads
  schedule.ArrearsSource:       Bulk read for arrears sweeps
  schedule.RedistributionStore: Atomic schedule rewrites

KEY TABLES:
  sales:               Commercial terms + running totals. The
                       custom-quota and redistributed-quota lists are
                       serialized text columns, decoded defensively.
  payments:            Amounts received, one row per payment
  payment_allocations: How each payment was split across quota numbers

TOTALS INVARIANT:
  total_debt = total_value - total_raised is maintained by every
  payment mutation inside the same SQL transaction, never recomputed
  lazily from the schedule.

REDISTRIBUTION WRITES:
  ApplyRedistribution commits the rewrite as one transaction guarded by
  optimistic locking on the sale version column. A lost race surfaces
  as schedule.ErrConcurrentRedistribution; nothing is written.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/solterra.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - schedule/store.go: Interface definitions
  - schedule/serial.go: Wire form of the serialized sale fields
  - schedule/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/solterra/installment-engine/schedule"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lots (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		label TEXT NOT NULL,
		price TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'available',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_lots_project ON lots(project_id);

	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		created_at TEXT NOT NULL
	);

	-- Plan templates referenced at sale creation. The sale snapshots the
	-- terms so later template edits don't rewrite history.
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		quota_count INTEGER NOT NULL,
		initial_percent TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		lot_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		plan_id TEXT,
		status TEXT NOT NULL DEFAULT 'Active',
		sale_date TEXT NOT NULL,
		total_value TEXT NOT NULL,
		initial_payment TEXT NOT NULL DEFAULT '0',
		plan_kind TEXT NOT NULL,
		quota_count INTEGER NOT NULL DEFAULT 0,
		quota_value TEXT NOT NULL DEFAULT '0',
		new_quota_value TEXT,
		custom_quotas_json TEXT NOT NULL DEFAULT '',
		redistributed_json TEXT NOT NULL DEFAULT '',
		total_raised TEXT NOT NULL DEFAULT '0',
		total_debt TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_client ON sales(client_id);
	CREATE INDEX IF NOT EXISTS idx_sales_status ON sales(status);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid_at TEXT NOT NULL,
		method TEXT,
		reference TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_sale ON payments(sale_id);

	CREATE TABLE IF NOT EXISTS payment_allocations (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL,
		sale_id TEXT NOT NULL,
		quota_number INTEGER NOT NULL,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_payment
		ON payment_allocations(payment_id);
	-- Coverage aggregation (hot path): all allocations of one sale.
	CREATE INDEX IF NOT EXISTS idx_allocations_sale_quota
		ON payment_allocations(sale_id, quota_number);

	-- Sweep throttle: one row per client per day notified.
	CREATE TABLE IF NOT EXISTS notification_log (
		client_id TEXT NOT NULL,
		notified_on TEXT NOT NULL,
		PRIMARY KEY (client_id, notified_on)
	);
	`

	_, err := s.db.Exec(schemaSQL)
	return err
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// =============================================================================
// PROJECTS AND LOTS
// =============================================================================

type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Lot struct {
	ID        string
	ProjectID string
	Label     string
	Price     schedule.Money
	Status    string
	CreatedAt time.Time
}

func (s *Store) SaveProject(ctx context.Context, p Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		p.ID, p.Name, nowUTC())
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p Project
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SaveLot(ctx context.Context, l Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lots (id, project_id, label, price, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label, price = excluded.price, status = excluded.status`,
		l.ID, l.ProjectID, l.Label, l.Price.String(), l.Status, nowUTC())
	if err != nil {
		return fmt.Errorf("failed to save lot: %w", err)
	}
	return nil
}

func (s *Store) GetLot(ctx context.Context, id string) (*Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var l Lot
	var price, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, label, price, status, created_at FROM lots WHERE id = ?`, id).
		Scan(&l.ID, &l.ProjectID, &l.Label, &price, &l.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	l.Price = schedule.ParseMoney(price)
	l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &l, nil
}

func (s *Store) ListLotsByProject(ctx context.Context, projectID string) ([]Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, label, price, status, created_at
		 FROM lots WHERE project_id = ? ORDER BY label`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	defer rows.Close()

	var out []Lot
	for rows.Next() {
		var l Lot
		var price, createdAt string
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.Label, &price, &l.Status, &createdAt); err != nil {
			return nil, err
		}
		l.Price = schedule.ParseMoney(price)
		l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, l)
	}
	return out, rows.Err()
}

// SetLotStatus marks a lot e.g. sold or available again after a
// withdrawal.
func (s *Store) SetLotStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE lots SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update lot status: %w", err)
	}
	return nil
}

// =============================================================================
// CLIENTS
// =============================================================================

func (s *Store) SaveClient(ctx context.Context, c schedule.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, email, phone, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, email = excluded.email, phone = excluded.phone`,
		string(c.ID), c.Name, c.Email, c.Phone, nowUTC())
	if err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

func (s *Store) GetClient(ctx context.Context, id schedule.ClientID) (*schedule.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c schedule.Client
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(email, ''), COALESCE(phone, '') FROM clients WHERE id = ?`,
		string(id)).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	if err == sql.ErrNoRows {
		return nil, schedule.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]schedule.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(email, ''), COALESCE(phone, '') FROM clients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var out []schedule.Client
	for rows.Next() {
		var c schedule.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// PLAN TEMPLATES
// =============================================================================

type Plan struct {
	ID         string
	Name       string
	Kind       schedule.PlanKind
	QuotaCount int

	// House plans derive the initial payment as this percentage of the
	// lot's total value.
	InitialPercent schedule.Money

	CreatedAt time.Time
}

func (s *Store) SavePlan(ctx context.Context, p Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, kind, quota_count, initial_percent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, kind = excluded.kind,
			quota_count = excluded.quota_count, initial_percent = excluded.initial_percent`,
		p.ID, p.Name, string(p.Kind), p.QuotaCount, p.InitialPercent.String(), nowUTC())
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p Plan
	var kind, percent, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, kind, quota_count, initial_percent, created_at FROM plans WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &kind, &p.QuotaCount, &percent, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	p.Kind = schedule.PlanKind(kind)
	p.InitialPercent = schedule.ParseMoney(percent)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func (s *Store) ListPlans(ctx context.Context) ([]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, kind, quota_count, initial_percent, created_at FROM plans ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var out []Plan
	for rows.Next() {
		var p Plan
		var kind, percent, createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &kind, &p.QuotaCount, &percent, &createdAt); err != nil {
			return nil, err
		}
		p.Kind = schedule.PlanKind(kind)
		p.InitialPercent = schedule.ParseMoney(percent)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// SALES
// =============================================================================

const saleColumns = `id, client_id, lot_id, project_id, status, sale_date,
	total_value, initial_payment, plan_kind, quota_count, quota_value,
	new_quota_value, custom_quotas_json, redistributed_json,
	total_raised, total_debt, version`

// CreateSale inserts a new sale with its snapshotted plan terms.
func (s *Store) CreateSale(ctx context.Context, sale schedule.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newQuotaValue any
	if sale.Plan.NewQuotaValue != nil {
		newQuotaValue = sale.Plan.NewQuotaValue.String()
	}

	now := nowUTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, client_id, lot_id, project_id, status, sale_date,
			total_value, initial_payment, plan_kind, quota_count, quota_value,
			new_quota_value, custom_quotas_json, redistributed_json,
			total_raised, total_debt, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sale.ID), string(sale.ClientID), sale.LotID, sale.ProjectID,
		string(sale.Status), sale.SaleDate.String(),
		sale.TotalValue.String(), sale.InitialPayment.String(),
		string(sale.Plan.Kind), sale.Plan.QuotaCount, sale.Plan.QuotaValue.String(),
		newQuotaValue,
		schedule.EncodeCustomQuotas(sale.Plan.CustomQuotas),
		schedule.EncodeQuotaNumbers(sale.Plan.Redistributed),
		sale.TotalRaised.String(), sale.TotalDebt.String(),
		1, now, now)
	if err != nil {
		return fmt.Errorf("failed to create sale: %w", err)
	}
	return nil
}

// GetSale implements schedule.SaleSource.
func (s *Store) GetSale(ctx context.Context, id schedule.SaleID) (*schedule.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = ?`, string(id))
	sale, err := scanSale(row)
	if err == sql.ErrNoRows {
		return nil, schedule.ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	return sale, nil
}

// ListSalesByClient returns all of a client's sales, any status.
func (s *Store) ListSalesByClient(ctx context.Context, clientID schedule.ClientID) ([]schedule.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE client_id = ? ORDER BY sale_date, id`,
		string(clientID))
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	var out []schedule.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sale)
	}
	return out, rows.Err()
}

// SetSaleStatus updates the sale's lifecycle status (withdrawal).
func (s *Store) SetSaleStatus(ctx context.Context, id schedule.SaleID, status schedule.SaleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE sales SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), nowUTC(), string(id))
	if err != nil {
		return fmt.Errorf("failed to update sale status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrSaleNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSale decodes one sale row. The serialized list fields are decoded
// defensively: a malformed value is logged and treated as empty so the
// sale still resolves through the uniform plan path.
func scanSale(row rowScanner) (*schedule.Sale, error) {
	var sale schedule.Sale
	var saleDate, totalValue, initialPayment, planKind, quotaValue string
	var newQuotaValue sql.NullString
	var customJSON, redistributedJSON string
	var totalRaised, totalDebt string

	err := row.Scan(
		&sale.ID, &sale.ClientID, &sale.LotID, &sale.ProjectID,
		&sale.Status, &saleDate,
		&totalValue, &initialPayment, &planKind, &sale.Plan.QuotaCount, &quotaValue,
		&newQuotaValue, &customJSON, &redistributedJSON,
		&totalRaised, &totalDebt, &sale.Version)
	if err != nil {
		return nil, err
	}

	sale.SaleDate, err = schedule.ParseDate(saleDate)
	if err != nil {
		return nil, fmt.Errorf("sale %s: invalid sale_date: %w", sale.ID, err)
	}
	sale.TotalValue = schedule.ParseMoney(totalValue)
	sale.InitialPayment = schedule.ParseMoney(initialPayment)
	sale.TotalRaised = schedule.ParseMoney(totalRaised)
	sale.TotalDebt = schedule.ParseMoney(totalDebt)
	sale.Plan.Kind = schedule.PlanKind(planKind)
	sale.Plan.QuotaValue = schedule.ParseMoney(quotaValue)
	if newQuotaValue.Valid && newQuotaValue.String != "" {
		m := schedule.ParseMoney(newQuotaValue.String)
		sale.Plan.NewQuotaValue = &m
	}

	customs, decErr := schedule.DecodeCustomQuotas(sale.ID, customJSON)
	if decErr != nil {
		log.Printf("[Store] %v (treated as empty)", decErr)
	}
	sale.Plan.CustomQuotas = customs

	redistributed, decErr := schedule.DecodeQuotaNumbers(sale.ID, redistributedJSON)
	if decErr != nil {
		log.Printf("[Store] %v (treated as empty)", decErr)
	}
	sale.Plan.Redistributed = redistributed

	return &sale, nil
}

// =============================================================================
// PAYMENTS AND ALLOCATIONS
// =============================================================================

// CreatePayment records a payment and its quota allocations, adjusting
// the sale's running totals in the same transaction.
func (s *Store) CreatePayment(ctx context.Context, p schedule.Payment, allocations []schedule.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, sale_id, amount, paid_at, method, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), string(p.SaleID), p.Amount.String(), p.PaidAt.String(),
		p.Method, p.Reference, nowUTC())
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	for _, a := range allocations {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payment_allocations (id, payment_id, sale_id, quota_number, amount)
			VALUES (?, ?, ?, ?, ?)`,
			a.ID, string(a.PaymentID), string(a.SaleID), a.QuotaNumber, a.Amount.String())
		if err != nil {
			return fmt.Errorf("failed to insert allocation: %w", err)
		}
	}

	if err := adjustSaleTotals(ctx, tx, p.SaleID, p.Amount); err != nil {
		return err
	}

	return tx.Commit()
}

// DeletePayment removes a payment and its allocations, reversing the
// totals adjustment in the same transaction.
func (s *Store) DeletePayment(ctx context.Context, id schedule.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var saleID, amount string
	err = tx.QueryRowContext(ctx,
		`SELECT sale_id, amount FROM payments WHERE id = ?`, string(id)).
		Scan(&saleID, &amount)
	if err == sql.ErrNoRows {
		return schedule.ErrPaymentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load payment: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM payment_allocations WHERE payment_id = ?`, string(id)); err != nil {
		return fmt.Errorf("failed to delete allocations: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM payments WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}

	if err := adjustSaleTotals(ctx, tx, schedule.SaleID(saleID), schedule.ParseMoney(amount).Neg()); err != nil {
		return err
	}

	return tx.Commit()
}

// adjustSaleTotals applies a raised-amount delta while holding the
// totals invariant: total_debt = total_value - total_raised.
func adjustSaleTotals(ctx context.Context, tx *sql.Tx, saleID schedule.SaleID, delta schedule.Money) error {
	var totalValue, totalRaised string
	err := tx.QueryRowContext(ctx,
		`SELECT total_value, total_raised FROM sales WHERE id = ?`, string(saleID)).
		Scan(&totalValue, &totalRaised)
	if err == sql.ErrNoRows {
		return schedule.ErrSaleNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load sale totals: %w", err)
	}

	raised := schedule.ParseMoney(totalRaised).Add(delta)
	debt := schedule.ParseMoney(totalValue).Sub(raised)

	_, err = tx.ExecContext(ctx,
		`UPDATE sales SET total_raised = ?, total_debt = ?, updated_at = ? WHERE id = ?`,
		raised.String(), debt.String(), nowUTC(), string(saleID))
	if err != nil {
		return fmt.Errorf("failed to update sale totals: %w", err)
	}
	return nil
}

// GetPayment returns one payment.
func (s *Store) GetPayment(ctx context.Context, id schedule.PaymentID) (*schedule.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p schedule.Payment
	var amount, paidAt string
	var method, reference sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, sale_id, amount, paid_at, method, reference FROM payments WHERE id = ?`,
		string(id)).
		Scan(&p.ID, &p.SaleID, &amount, &paidAt, &method, &reference)
	if err == sql.ErrNoRows {
		return nil, schedule.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	p.Amount = schedule.ParseMoney(amount)
	p.PaidAt, _ = schedule.ParseDate(paidAt)
	p.Method = method.String
	p.Reference = reference.String
	return &p, nil
}

// ListPaymentsBySale returns a sale's payments ordered by date.
func (s *Store) ListPaymentsBySale(ctx context.Context, saleID schedule.SaleID) ([]schedule.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sale_id, amount, paid_at, method, reference
		 FROM payments WHERE sale_id = ? ORDER BY paid_at, created_at`,
		string(saleID))
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var out []schedule.Payment
	for rows.Next() {
		var p schedule.Payment
		var amount, paidAt string
		var method, reference sql.NullString
		if err := rows.Scan(&p.ID, &p.SaleID, &amount, &paidAt, &method, &reference); err != nil {
			return nil, err
		}
		p.Amount = schedule.ParseMoney(amount)
		p.PaidAt, _ = schedule.ParseDate(paidAt)
		p.Method = method.String
		p.Reference = reference.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListAllocations implements schedule.SaleSource.
func (s *Store) ListAllocations(ctx context.Context, saleID schedule.SaleID) ([]schedule.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payment_id, sale_id, quota_number, amount
		 FROM payment_allocations WHERE sale_id = ? ORDER BY quota_number`,
		string(saleID))
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	return scanAllocations(rows)
}

func scanAllocations(rows *sql.Rows) ([]schedule.Allocation, error) {
	var out []schedule.Allocation
	for rows.Next() {
		var a schedule.Allocation
		var amount string
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.SaleID, &a.QuotaNumber, &amount); err != nil {
			return nil, err
		}
		a.Amount = schedule.ParseMoney(amount)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// REDISTRIBUTION WRITE PATH (schedule.RedistributionStore)
// =============================================================================

// ApplyRedistribution commits the absorbed-quota list and the rewritten
// custom-quota amounts as one atomic unit. Optimistic locking on the
// version column enforces single-writer-per-sale: a concurrent rewrite
// since the result was computed surfaces as a retryable conflict and
// writes nothing.
func (s *Store) ApplyRedistribution(ctx context.Context, result schedule.RedistributionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE sales SET
			plan_kind = ?,
			custom_quotas_json = ?,
			redistributed_json = ?,
			new_quota_value = NULL,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?`,
		string(schedule.PlanCustom),
		schedule.EncodeCustomQuotas(result.CustomQuotas),
		schedule.EncodeQuotaNumbers(result.Redistributed),
		nowUTC(),
		string(result.SaleID), result.PriorVersion)
	if err != nil {
		return fmt.Errorf("failed to apply redistribution: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to apply redistribution: %w", err)
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM sales WHERE id = ?`, string(result.SaleID)).Scan(&exists); err != nil {
			return fmt.Errorf("failed to apply redistribution: %w", err)
		}
		if exists == 0 {
			return schedule.ErrSaleNotFound
		}
		return &schedule.RedistributionConflictError{SaleID: result.SaleID}
	}

	return tx.Commit()
}

// =============================================================================
// ARREARS SWEEP READ PATH (schedule.ArrearsSource)
// =============================================================================

// ListArrearsData returns every active sale with positive debt, grouped
// by client, with allocation ledgers and lot/project labels attached.
// Allocations are fetched in bulk, not once per sale.
func (s *Store) ListArrearsData(ctx context.Context) ([]schedule.ClientSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.client_id, s.lot_id, s.project_id, s.status, s.sale_date,
			s.total_value, s.initial_payment, s.plan_kind, s.quota_count, s.quota_value,
			s.new_quota_value, s.custom_quotas_json, s.redistributed_json,
			s.total_raised, s.total_debt, s.version,
			COALESCE(c.name, ''), COALESCE(c.email, ''), COALESCE(c.phone, ''),
			COALESCE(l.label, ''), COALESCE(p.name, '')
		FROM sales s
		LEFT JOIN clients c ON c.id = s.client_id
		LEFT JOIN lots l ON l.id = s.lot_id
		LEFT JOIN projects p ON p.id = s.project_id
		WHERE (s.status = ? OR s.status = '')
		  AND CAST(s.total_debt AS REAL) > 0
		ORDER BY s.client_id, s.sale_date, s.id`,
		string(schedule.SaleActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query arrears data: %w", err)
	}
	defer rows.Close()

	type saleRow struct {
		bundle schedule.SaleBundle
		client schedule.Client
	}
	var saleRows []saleRow
	var saleIDs []string

	for rows.Next() {
		var sale schedule.Sale
		var saleDate, totalValue, initialPayment, planKind, quotaValue string
		var newQuotaValue sql.NullString
		var customJSON, redistributedJSON, totalRaised, totalDebt string
		var client schedule.Client
		var lotLabel, projectName string

		err := rows.Scan(
			&sale.ID, &sale.ClientID, &sale.LotID, &sale.ProjectID, &sale.Status, &saleDate,
			&totalValue, &initialPayment, &planKind, &sale.Plan.QuotaCount, &quotaValue,
			&newQuotaValue, &customJSON, &redistributedJSON,
			&totalRaised, &totalDebt, &sale.Version,
			&client.Name, &client.Email, &client.Phone,
			&lotLabel, &projectName)
		if err != nil {
			return nil, err
		}

		sale.SaleDate, err = schedule.ParseDate(saleDate)
		if err != nil {
			log.Printf("[Store] sale %s: invalid sale_date %q, skipping", sale.ID, saleDate)
			continue
		}
		sale.TotalValue = schedule.ParseMoney(totalValue)
		sale.InitialPayment = schedule.ParseMoney(initialPayment)
		sale.TotalRaised = schedule.ParseMoney(totalRaised)
		sale.TotalDebt = schedule.ParseMoney(totalDebt)
		sale.Plan.Kind = schedule.PlanKind(planKind)
		sale.Plan.QuotaValue = schedule.ParseMoney(quotaValue)
		if newQuotaValue.Valid && newQuotaValue.String != "" {
			m := schedule.ParseMoney(newQuotaValue.String)
			sale.Plan.NewQuotaValue = &m
		}
		customs, decErr := schedule.DecodeCustomQuotas(sale.ID, customJSON)
		if decErr != nil {
			log.Printf("[Store] %v (treated as empty)", decErr)
		}
		sale.Plan.CustomQuotas = customs
		redistributed, decErr := schedule.DecodeQuotaNumbers(sale.ID, redistributedJSON)
		if decErr != nil {
			log.Printf("[Store] %v (treated as empty)", decErr)
		}
		sale.Plan.Redistributed = redistributed

		client.ID = sale.ClientID
		saleRows = append(saleRows, saleRow{
			bundle: schedule.SaleBundle{Sale: sale, LotLabel: lotLabel, ProjectLabel: projectName},
			client: client,
		})
		saleIDs = append(saleIDs, string(sale.ID))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(saleRows) == 0 {
		return nil, nil
	}

	allocsBySale, err := s.loadAllocationsForSales(ctx, saleIDs)
	if err != nil {
		return nil, err
	}

	// Group by client, preserving query order.
	var out []schedule.ClientSales
	index := make(map[schedule.ClientID]int)
	for _, sr := range saleRows {
		sr.bundle.Allocations = allocsBySale[sr.bundle.Sale.ID]
		i, ok := index[sr.client.ID]
		if !ok {
			out = append(out, schedule.ClientSales{Client: sr.client})
			i = len(out) - 1
			index[sr.client.ID] = i
		}
		out[i].Bundles = append(out[i].Bundles, sr.bundle)
	}
	return out, nil
}

// loadAllocationsForSales fetches allocation ledgers for many sales in
// one query. Caller holds the read lock.
func (s *Store) loadAllocationsForSales(ctx context.Context, saleIDs []string) (map[schedule.SaleID][]schedule.Allocation, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(saleIDs)), ",")
	args := make([]any, len(saleIDs))
	for i, id := range saleIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payment_id, sale_id, quota_number, amount
		 FROM payment_allocations WHERE sale_id IN (`+placeholders+`)
		 ORDER BY sale_id, quota_number`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk-load allocations: %w", err)
	}
	defer rows.Close()

	allocs, err := scanAllocations(rows)
	if err != nil {
		return nil, err
	}

	bySale := make(map[schedule.SaleID][]schedule.Allocation)
	for _, a := range allocs {
		bySale[a.SaleID] = append(bySale[a.SaleID], a)
	}
	return bySale, nil
}

// =============================================================================
// NOTIFICATION THROTTLE LOG
// =============================================================================

// WasNotifiedOn reports whether a client was already notified on a date.
func (s *Store) WasNotifiedOn(ctx context.Context, clientID schedule.ClientID, day schedule.Date) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM notification_log WHERE client_id = ? AND notified_on = ?`,
		string(clientID), day.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check notification log: %w", err)
	}
	return count > 0, nil
}

// MarkNotified records that a client was notified on a date. Idempotent.
func (s *Store) MarkNotified(ctx context.Context, clientID schedule.ClientID, day schedule.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO notification_log (client_id, notified_on) VALUES (?, ?)`,
		string(clientID), day.String())
	if err != nil {
		return fmt.Errorf("failed to mark notified: %w", err)
	}
	return nil
}
