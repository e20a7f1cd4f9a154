// Package sqlite is a row store on a local SQLite file. Reads and deletes are
// scoped to the session's user.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fixedspend/internal/core"
	"fixedspend/internal/log"
	"fixedspend/internal/remote"
)

type Store struct {
	db     *sql.DB
	logger *log.Logger
}

var (
	_ remote.ExpenseStore = (*Store)(nil)
	_ remote.Pinger       = (*Store)(nil)
)

// Open opens (creating if needed) the database at dbPath and migrates it.
func Open(dbPath string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const listExpenses = `
SELECT id, user_id, service_name, amount, payment_day, category
FROM expenses
WHERE user_id = ?
ORDER BY payment_day ASC NULLS LAST, rowid ASC`

func (s *Store) ListExpenses(ctx context.Context, sess remote.Session) ([]core.Expense, error) {
	uid, err := sess.RequireUser()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, listExpenses, uid)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e          core.Expense
			amount     sql.NullInt64
			paymentDay sql.NullInt64
			category   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.ServiceName, &amount, &paymentDay, &category); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Amount = wholeFromNull(amount)
		e.PaymentDay = wholeFromNull(paymentDay)
		e.Category = category.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (s *Store) ListAmounts(ctx context.Context, sess remote.Session) ([]core.Whole, error) {
	uid, err := sess.RequireUser()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT amount FROM expenses WHERE user_id = ?`, uid)
	if err != nil {
		return nil, fmt.Errorf("list amounts: %w", err)
	}
	defer rows.Close()

	var out []core.Whole
	for rows.Next() {
		var amount sql.NullInt64
		if err := rows.Scan(&amount); err != nil {
			return nil, fmt.Errorf("scan amount: %w", err)
		}
		out = append(out, wholeFromNull(amount))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate amounts: %w", err)
	}
	return out, nil
}

func (s *Store) InsertExpense(ctx context.Context, sess remote.Session, e core.NewExpense) (core.Expense, error) {
	uid, err := sess.RequireUser()
	if err != nil {
		return core.Expense{}, err
	}
	if e.UserID != uid {
		return core.Expense{}, fmt.Errorf("insert expense for %q: %w", e.UserID, remote.ErrNoSession)
	}

	row := e.Expense(uuid.NewString())
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, user_id, service_name, amount, payment_day, category) VALUES (?, ?, ?, ?, ?, ?)`,
		row.ID, row.UserID, row.ServiceName, nullFromWhole(row.Amount), nullFromWhole(row.PaymentDay), nullString(row.Category))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	s.logger.DebugContext(ctx, "Expense saved to SQLite",
		log.FieldExpenseID, row.ID,
		log.FieldServiceName, row.ServiceName)
	return row, nil
}

func (s *Store) DeleteExpense(ctx context.Context, sess remote.Session, id string) error {
	uid, err := sess.RequireUser()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, uid)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete expense %s: %w", id, remote.ErrNotFound)
	}
	return nil
}

func wholeFromNull(n sql.NullInt64) core.Whole {
	if !n.Valid {
		return core.Whole{}
	}
	return core.WholeOf(n.Int64)
}

func nullFromWhole(w core.Whole) sql.NullInt64 {
	return sql.NullInt64{Int64: w.Value, Valid: w.Valid}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
