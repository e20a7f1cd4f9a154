package core

import (
	"errors"
	"testing"
)

func TestExpenseInputCoerce(t *testing.T) {
	tests := []struct {
		name    string
		in      ExpenseInput
		want    NewExpense
		wantErr error
	}{
		{
			name: "plain numbers",
			in:   ExpenseInput{ServiceName: "Netflix", Amount: "15000", PaymentDay: "5"},
			want: NewExpense{UserID: "u1", ServiceName: "Netflix", Amount: WholeOf(15000), PaymentDay: WholeOf(5)},
		},
		{
			name: "trailing garbage is truncated",
			in:   ExpenseInput{ServiceName: "Gym", Amount: "12abc", PaymentDay: "31일", Category: "건강"},
			want: NewExpense{UserID: "u1", ServiceName: "Gym", Amount: WholeOf(12), PaymentDay: WholeOf(31), Category: "건강"},
		},
		{
			name: "non numeric becomes absent",
			in:   ExpenseInput{ServiceName: "X", Amount: "abc", PaymentDay: "??"},
			want: NewExpense{UserID: "u1", ServiceName: "X"},
		},
		{
			name: "out of range day is kept",
			in:   ExpenseInput{ServiceName: "X", Amount: "1", PaymentDay: "45"},
			want: NewExpense{UserID: "u1", ServiceName: "X", Amount: WholeOf(1), PaymentDay: WholeOf(45)},
		},
		{
			name:    "missing service name",
			in:      ExpenseInput{Amount: "1", PaymentDay: "1"},
			wantErr: ErrIncompleteInput,
		},
		{
			name:    "missing amount",
			in:      ExpenseInput{ServiceName: "X", PaymentDay: "1"},
			wantErr: ErrIncompleteInput,
		},
		{
			name:    "missing payment day",
			in:      ExpenseInput{ServiceName: "X", Amount: "1"},
			wantErr: ErrIncompleteInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Coerce("u1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Coerce() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Coerce() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExpenseInputCoerceRequiresOwner(t *testing.T) {
	in := ExpenseInput{ServiceName: "X", Amount: "1", PaymentDay: "1"}
	if _, err := in.Coerce(" "); !errors.Is(err, ErrMissingOwner) {
		t.Fatalf("expected ErrMissingOwner, got %v", err)
	}
}

func TestCategoryLabel(t *testing.T) {
	if got := (Expense{}).CategoryLabel(); got != DefaultCategoryLabel {
		t.Errorf("empty category label = %q", got)
	}
	if got := (Expense{Category: "OTT"}).CategoryLabel(); got != "OTT" {
		t.Errorf("category label = %q", got)
	}
}
