package sheets

import (
	"fmt"
	"strings"

	"fixedspend/internal/core"
)

// Column layout of the expenses tab: id | user_id | service_name | amount | payment_day | category
const (
	colID = iota
	colUserID
	colServiceName
	colAmount
	colPaymentDay
	colCategory
	numCols
)

// parsedRow is a data row plus its zero-based index in the tab.
type parsedRow struct {
	index   int64
	expense core.Expense
}

// parseRows converts a values matrix into expenses. The header row and rows
// without an ID are skipped. Numbers use the same lenient parsing as form input.
func parseRows(values [][]interface{}) []parsedRow {
	out := make([]parsedRow, 0, len(values))
	for i, row := range values {
		cols := toStrings(row)
		id := safeGet(cols, colID)
		if id == "" {
			continue
		}
		if i == 0 && strings.EqualFold(id, "id") {
			continue
		}
		out = append(out, parsedRow{
			index: int64(i),
			expense: core.Expense{
				ID:          id,
				UserID:      safeGet(cols, colUserID),
				ServiceName: safeGet(cols, colServiceName),
				Amount:      parseCell(safeGet(cols, colAmount)),
				PaymentDay:  parseCell(safeGet(cols, colPaymentDay)),
				Category:    safeGet(cols, colCategory),
			},
		})
	}
	return out
}

// parseCell tolerates thousands separators in formatted amounts.
func parseCell(s string) core.Whole {
	return core.ParseWhole(strings.ReplaceAll(s, ",", ""))
}

// formatRow renders an expense in column order.
func formatRow(e core.Expense) []interface{} {
	row := make([]interface{}, numCols)
	row[colID] = e.ID
	row[colUserID] = e.UserID
	row[colServiceName] = e.ServiceName
	row[colAmount] = cellValue(e.Amount)
	row[colPaymentDay] = cellValue(e.PaymentDay)
	row[colCategory] = e.Category
	return row
}

func cellValue(w core.Whole) interface{} {
	if !w.Valid {
		return ""
	}
	return w.Value
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
