package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"agencyfund/internal/core"
	"agencyfund/internal/ledger"
	applog "agencyfund/internal/log"

	_ "modernc.org/sqlite"
)

var _ ledger.Store = (*SQLiteRepository)(nil)

const fundColumns = `id, owner_id, name, funder_name, funder_relationship, budget_cents,
	spent_cents, status, is_agency_fund, excess_cents, tax_cents, created_at, completed_at`

const expenseColumns = `id, fund_id, amount_cents, description, category, supplier,
	expense_date, receipt_id, review_risk, review_warnings, created_at`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time: every spent increment runs inside a transaction
	// on the single connection, so concurrent submissions serialize.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateFund(ctx context.Context, f core.Fund) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO funds (`+fundColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.OwnerID, f.Name, f.FunderName, f.FunderRelationship, f.Budget.Cents,
		f.Spent.Cents, string(f.Status), f.IsAgencyFund, f.Excess.Cents, f.Tax.Cents,
		formatTime(f.CreatedAt), nullTime(f.CompletedAt))
	if err != nil {
		return core.Persistence("insert fund", err)
	}

	slog.InfoContext(ctx, "Fund saved to SQLite",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldFundID, f.ID,
		applog.FieldUserID, f.OwnerID)
	return nil
}

func (r *SQLiteRepository) GetFund(ctx context.Context, id string) (core.Fund, error) {
	return getFund(ctx, r.db, id)
}

func (r *SQLiteRepository) ListFunds(ctx context.Context, ownerID string, status core.FundStatus) ([]core.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM funds WHERE owner_id = ?`
	args := []any{ownerID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`
	return r.queryFunds(ctx, query, args...)
}

func (r *SQLiteRepository) FindFundsByName(ctx context.Context, ownerID, part string) ([]core.Fund, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(part))) + "%"
	return r.queryFunds(ctx, `SELECT `+fundColumns+` FROM funds
		WHERE owner_id = ? AND lower(name) LIKE ? ESCAPE '\'
		ORDER BY created_at DESC`, ownerID, pattern)
}

// AppendExpense increments spent and inserts the expense in one transaction.
// The guarded UPDATE doubles as the row lock: a fund that left the active
// state between the caller's read and this write is rejected here.
func (r *SQLiteRepository) AppendExpense(ctx context.Context, e core.Expense) (core.Fund, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Fund{}, core.Persistence("begin expense tx", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE funds SET spent_cents = spent_cents + ? WHERE id = ? AND status = ?`,
		e.Amount.Cents, e.FundID, string(core.FundActive))
	if err != nil {
		return core.Fund{}, core.Persistence("increment spent", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return core.Fund{}, core.Persistence("increment spent", err)
	} else if n == 0 {
		if _, err := getFund(ctx, tx, e.FundID); err != nil {
			return core.Fund{}, err
		}
		return core.Fund{}, core.ErrFundNotActive
	}

	warnings, err := encodeWarnings(e.Review)
	if err != nil {
		return core.Fund{}, core.Persistence("encode review", err)
	}
	var risk sql.NullString
	if e.Review != nil {
		risk = sql.NullString{String: string(e.Review.Risk), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO expenses (`+expenseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.FundID, e.Amount.Cents, e.Description, e.Category, e.Supplier,
		formatTime(e.Date), nullString(e.ReceiptID), risk, warnings, formatTime(e.CreatedAt))
	if err != nil {
		return core.Fund{}, core.Persistence("insert expense", err)
	}

	f, err := getFund(ctx, tx, e.FundID)
	if err != nil {
		return core.Fund{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Fund{}, core.Persistence("commit expense", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldExpenseID, e.ID,
		applog.FieldFundID, e.FundID,
		applog.FieldAmountCents, e.Amount.Cents)
	return f, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.NewNotFoundError("expense %s not found", id)
	}
	if err != nil {
		return core.Expense{}, core.Persistence("get expense", err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, fundID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE fund_id = ? ORDER BY created_at, id`, fundID)
	if err != nil {
		return nil, core.Persistence("list expenses", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, core.Persistence("scan expense", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persistence("list expenses", err)
	}
	return out, nil
}

// CompleteFund is a compare-and-set on (status, spent).
func (r *SQLiteRepository) CompleteFund(ctx context.Context, fundID string, expectedSpent core.Money, s core.Settlement) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE funds
		SET status = ?, completed_at = ?, excess_cents = ?, tax_cents = ?
		WHERE id = ? AND status = ? AND spent_cents = ?`,
		string(core.FundCompleted), formatTime(s.CompletedAt), s.Excess.Cents, s.Tax.Cents,
		fundID, string(core.FundActive), expectedSpent.Cents)
	if err != nil {
		return false, core.Persistence("complete fund", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, core.Persistence("complete fund", err)
	}
	if n == 1 {
		return true, nil
	}

	f, err := getFund(ctx, r.db, fundID)
	if err != nil {
		return false, err
	}
	if f.Status != core.FundActive {
		return false, core.NewStateError("fund is already " + string(f.Status))
	}
	return false, nil
}

func (r *SQLiteRepository) AddReceipt(ctx context.Context, rc core.Receipt) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Persistence("begin receipt tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO receipts (id, expense_id, verification_method, confidence, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rc.ID, rc.ExpenseID, rc.VerificationMethod, rc.Confidence, formatTime(rc.CreatedAt)); err != nil {
		return core.Persistence("insert receipt", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE expenses SET receipt_id = ? WHERE id = ?`, rc.ID, rc.ExpenseID); err != nil {
		return core.Persistence("link receipt", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Persistence("commit receipt", err)
	}
	return nil
}

func (r *SQLiteRepository) CountReceipts(ctx context.Context, fundID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM receipts rc
		JOIN expenses e ON e.id = rc.expense_id
		WHERE e.fund_id = ?`, fundID).Scan(&n)
	if err != nil {
		return 0, core.Persistence("count receipts", err)
	}
	return n, nil
}

// SumExpenses returns the ledger total straight from the expense rows.
func (r *SQLiteRepository) SumExpenses(ctx context.Context, fundID string) (core.Money, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM expenses WHERE fund_id = ?`, fundID).Scan(&total)
	if err != nil {
		return core.Money{}, core.Persistence("sum expenses", err)
	}
	return core.Money{Cents: total}, nil
}

func (r *SQLiteRepository) queryFunds(ctx context.Context, query string, args ...any) ([]core.Fund, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.Persistence("query funds", err)
	}
	defer rows.Close()

	var out []core.Fund
	for rows.Next() {
		f, err := scanFund(rows)
		if err != nil {
			return nil, core.Persistence("scan fund", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persistence("query funds", err)
	}
	return out, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getFund(ctx context.Context, q queryer, id string) (core.Fund, error) {
	row := q.QueryRowContext(ctx, `SELECT `+fundColumns+` FROM funds WHERE id = ?`, id)
	f, err := scanFund(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Fund{}, core.NewNotFoundError("fund %s not found", id)
	}
	if err != nil {
		return core.Fund{}, core.Persistence("get fund", err)
	}
	return f, nil
}

func scanFund(s scanner) (core.Fund, error) {
	var (
		f                core.Fund
		status           string
		createdAt        string
		completedAt      sql.NullString
		budget, spent    int64
		excess, taxCents int64
	)
	if err := s.Scan(&f.ID, &f.OwnerID, &f.Name, &f.FunderName, &f.FunderRelationship,
		&budget, &spent, &status, &f.IsAgencyFund, &excess, &taxCents, &createdAt, &completedAt); err != nil {
		return core.Fund{}, err
	}
	f.Budget = core.Money{Cents: budget}
	f.Spent = core.Money{Cents: spent}
	f.Excess = core.Money{Cents: excess}
	f.Tax = core.Money{Cents: taxCents}
	f.Status = core.FundStatus(status)
	f.CreatedAt = parseTime(createdAt)
	if completedAt.Valid {
		f.CompletedAt = parseTime(completedAt.String)
	}
	return f, nil
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e               core.Expense
		amount          int64
		date, createdAt string
		receiptID, risk sql.NullString
		warnings        sql.NullString
	)
	if err := s.Scan(&e.ID, &e.FundID, &amount, &e.Description, &e.Category, &e.Supplier,
		&date, &receiptID, &risk, &warnings, &createdAt); err != nil {
		return core.Expense{}, err
	}
	e.Amount = core.Money{Cents: amount}
	e.Date = parseTime(date)
	e.CreatedAt = parseTime(createdAt)
	e.ReceiptID = receiptID.String
	if risk.Valid {
		e.Review = &core.Review{Risk: core.RiskLevel(risk.String)}
		if warnings.Valid && warnings.String != "" {
			if err := json.Unmarshal([]byte(warnings.String), &e.Review.Warnings); err != nil {
				return core.Expense{}, fmt.Errorf("decode review warnings: %w", err)
			}
		}
	}
	return e, nil
}

func encodeWarnings(r *core.Review) (sql.NullString, error) {
	if r == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(r.Warnings)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
