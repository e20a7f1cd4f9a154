package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/supabase-community/postgrest-go"

	"fixedspend/internal/core"
	"fixedspend/internal/remote"
)

// rowID accepts both text/uuid and bigint primary keys.
type rowID string

func (id *rowID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = rowID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("row id: %w", err)
	}
	*id = rowID(n.String())
	return nil
}

type expenseRow struct {
	ID          rowID      `json:"id"`
	UserID      string     `json:"user_id"`
	ServiceName string     `json:"service_name"`
	Amount      core.Whole `json:"amount"`
	PaymentDay  core.Whole `json:"payment_day"`
	Category    *string    `json:"category"`
}

func (r expenseRow) expense() core.Expense {
	e := core.Expense{
		ID:          string(r.ID),
		UserID:      r.UserID,
		ServiceName: r.ServiceName,
		Amount:      r.Amount,
		PaymentDay:  r.PaymentDay,
	}
	if r.Category != nil {
		e.Category = *r.Category
	}
	return e
}

type insertRow struct {
	UserID      string     `json:"user_id"`
	ServiceName string     `json:"service_name"`
	Amount      core.Whole `json:"amount"`
	PaymentDay  core.Whole `json:"payment_day"`
	Category    *string    `json:"category"`
}

// ListExpenses selects every visible row ordered by payment day.
func (c *Client) ListExpenses(ctx context.Context, sess remote.Session) ([]core.Expense, error) {
	if !sess.Present() {
		return nil, remote.ErrNoSession
	}
	k, cancel := c.newCall(ctx)
	defer cancel()
	pg, err := c.restFor(k, sess)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	var rows []expenseRow
	_, err = pg.From(c.table).
		Select("*", "", false).
		Order("payment_day", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, k.fail("list expenses", err)
	}
	out := make([]core.Expense, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.expense())
	}
	return out, nil
}

// ListAmounts selects only the amount column.
func (c *Client) ListAmounts(ctx context.Context, sess remote.Session) ([]core.Whole, error) {
	if !sess.Present() {
		return nil, remote.ErrNoSession
	}
	k, cancel := c.newCall(ctx)
	defer cancel()
	pg, err := c.restFor(k, sess)
	if err != nil {
		return nil, fmt.Errorf("list amounts: %w", err)
	}

	var rows []struct {
		Amount core.Whole `json:"amount"`
	}
	if _, err := pg.From(c.table).Select("amount", "", false).ExecuteTo(&rows); err != nil {
		return nil, k.fail("list amounts", err)
	}
	out := make([]core.Whole, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Amount)
	}
	return out, nil
}

// InsertExpense inserts one row and returns it as stored.
func (c *Client) InsertExpense(ctx context.Context, sess remote.Session, e core.NewExpense) (core.Expense, error) {
	if !sess.Present() {
		return core.Expense{}, remote.ErrNoSession
	}
	row := insertRow{
		UserID:      e.UserID,
		ServiceName: e.ServiceName,
		Amount:      e.Amount,
		PaymentDay:  e.PaymentDay,
	}
	if e.Category != "" {
		cat := e.Category
		row.Category = &cat
	}

	k, cancel := c.newCall(ctx)
	defer cancel()
	pg, err := c.restFor(k, sess)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	var out []expenseRow
	_, err = pg.From(c.table).
		Insert([]insertRow{row}, false, "", "representation", "").
		ExecuteTo(&out)
	if err != nil {
		return core.Expense{}, k.fail("insert expense", err)
	}
	if len(out) == 0 {
		// Row-level security may hide the inserted row; report what was sent.
		return e.Expense(""), nil
	}
	return out[0].expense(), nil
}

// DeleteExpense removes the row with the given ID. A delete that matches no
// visible row reports remote.ErrNotFound.
func (c *Client) DeleteExpense(ctx context.Context, sess remote.Session, id string) error {
	if !sess.Present() {
		return remote.ErrNoSession
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("delete expense: %w", remote.ErrNotFound)
	}

	k, cancel := c.newCall(ctx)
	defer cancel()
	pg, err := c.restFor(k, sess)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	var out []expenseRow
	_, err = pg.From(c.table).
		Delete("representation", "").
		Eq("id", id).
		ExecuteTo(&out)
	if err != nil {
		return k.fail("delete expense", err)
	}
	if len(out) == 0 {
		return fmt.Errorf("delete expense %s: %w", id, remote.ErrNotFound)
	}
	return nil
}
