package core

import (
	"errors"
	"strings"
)

type (
	// Expense is a recurring monthly charge as held by the remote row store.
	Expense struct {
		ID          string
		UserID      string
		ServiceName string
		Amount      Whole // whole currency units
		PaymentDay  Whole // intended 1-31, not enforced
		Category    string
	}

	// NewExpense is the insert payload for a single expense row.
	NewExpense struct {
		UserID      string
		ServiceName string
		Amount      Whole
		PaymentDay  Whole
		Category    string
	}

	// ExpenseInput carries the raw form fields of the creation form.
	ExpenseInput struct {
		ServiceName string
		Amount      string
		PaymentDay  string
		Category    string
	}
)

const (
	// DefaultCategoryLabel is shown for rows without a category.
	DefaultCategoryLabel = "기타"

	// Hints rendered on the payment day input. They are not enforced.
	PaymentDayMin = 1
	PaymentDayMax = 31
)

var (
	ErrIncompleteInput = errors.New("service name, amount and payment day are required")
	ErrMissingOwner    = errors.New("missing owner")
)

// Complete reports whether the three required fields are present.
func (in ExpenseInput) Complete() bool {
	return in.ServiceName != "" && in.Amount != "" && in.PaymentDay != ""
}

// Coerce turns the form fields into an insert payload owned by userID.
// Amount and payment day use leading-integer parsing; nothing is range checked.
func (in ExpenseInput) Coerce(userID string) (NewExpense, error) {
	if !in.Complete() {
		return NewExpense{}, ErrIncompleteInput
	}
	if strings.TrimSpace(userID) == "" {
		return NewExpense{}, ErrMissingOwner
	}
	return NewExpense{
		UserID:      userID,
		ServiceName: in.ServiceName,
		Amount:      ParseWhole(in.Amount),
		PaymentDay:  ParseWhole(in.PaymentDay),
		Category:    in.Category,
	}, nil
}

// CategoryLabel returns the category or the default label when empty.
func (e Expense) CategoryLabel() string {
	if e.Category == "" {
		return DefaultCategoryLabel
	}
	return e.Category
}

// Expense materializes the payload as a stored row with the given ID.
func (n NewExpense) Expense(id string) Expense {
	return Expense{
		ID:          id,
		UserID:      n.UserID,
		ServiceName: n.ServiceName,
		Amount:      n.Amount,
		PaymentDay:  n.PaymentDay,
		Category:    n.Category,
	}
}
