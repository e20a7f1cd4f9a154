package core

import "sort"

// Total returns the arithmetic sum of the given amounts. Absent amounts count as zero.
func Total(amounts []Whole) int64 {
	var total int64
	for _, a := range amounts {
		total += a.Int64()
	}
	return total
}

// TotalOf sums the amounts of the given expenses.
func TotalOf(expenses []Expense) int64 {
	var total int64
	for _, e := range expenses {
		total += e.Amount.Int64()
	}
	return total
}

// SortByPaymentDay orders expenses ascending by payment day, absent days last.
// The sort is stable so rows with equal days keep their insertion order.
func SortByPaymentDay(expenses []Expense) {
	sort.SliceStable(expenses, func(i, j int) bool {
		a, b := expenses[i].PaymentDay, expenses[j].PaymentDay
		if a.Valid != b.Valid {
			return a.Valid
		}
		return a.Value < b.Value
	})
}
