package http

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"fixedspend/internal/core"
	"fixedspend/internal/services"
	appweb "fixedspend/web"
)

// User-facing messages.
const (
	msgCreateFailed    = "지출 등록에 실패했습니다."
	msgDeleteConfirm   = "정말 삭제하시겠습니까?"
	msgTooManyRequests = "요청이 너무 많습니다. 잠시 후 다시 시도해주세요."
	msgLoginFailed     = "로그인에 실패했습니다. 다시 시도해주세요."
)

func parseTemplates() (*template.Template, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"won": core.FormatWon,
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

func executeTemplate(t *template.Template, name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// expenseRow is one card of the expense list.
type expenseRow struct {
	ID          string
	ServiceName string
	Amount      string
	PaymentDay  string
	Category    string
	Due         string
	DueToday    bool
}

// boardView is the summary card plus the list, swapped as one partial.
type boardView struct {
	Total         int64
	Count         int
	Empty         bool
	Items         []expenseRow
	ConfirmDelete string
}

type loginView struct {
	ProviderLabel string
	Error         string
}

// chrome is what the top bar needs.
type chrome struct {
	SignedIn  bool
	UserEmail string
}

type dashboardView struct {
	Chrome chrome
	Alert  string
	Board  boardView
	Sheet  sheetView
}

// sheetView feeds the creation form. The day bounds are input hints only.
type sheetView struct {
	DayMin int
	DayMax int
}

func newSheetView() sheetView {
	return sheetView{DayMin: core.PaymentDayMin, DayMax: core.PaymentDayMax}
}

type profileView struct {
	Chrome     chrome
	Email      string
	Total      int64
	TotalKnown bool
}

func newBoardView(list services.ExpenseList, now time.Time) boardView {
	rows := make([]expenseRow, 0, len(list.Items))
	for _, e := range list.Items {
		rows = append(rows, newExpenseRow(e, now))
	}
	return boardView{
		Total:         list.Total,
		Count:         list.Count,
		Empty:         list.Empty(),
		Items:         rows,
		ConfirmDelete: msgDeleteConfirm,
	}
}

func newExpenseRow(e core.Expense, now time.Time) expenseRow {
	row := expenseRow{
		ID:          e.ID,
		ServiceName: e.ServiceName,
		Amount:      core.FormatAmount(e.Amount),
		PaymentDay:  "-",
		Category:    e.CategoryLabel(),
	}
	if e.PaymentDay.Valid {
		row.PaymentDay = strconv.FormatInt(e.PaymentDay.Value, 10) + "일"
	}
	switch days := core.DaysUntil(e.PaymentDay, now); {
	case days == 0:
		row.Due = "오늘"
		row.DueToday = true
	case days > 0:
		row.Due = "D-" + strconv.Itoa(days)
	}
	return row
}

func providerLabel(provider string) string {
	switch provider {
	case "", "kakao":
		return "카카오로 3초 만에 시작하기"
	case "google":
		return "Google로 시작하기"
	case "github":
		return "GitHub로 시작하기"
	default:
		return provider + "로 시작하기"
	}
}
