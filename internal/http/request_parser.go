// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for reading request data: the expense
// creation form, path parameters and htmx request detection.

package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fixedspend/internal/core"
)

// Form field names of the creation form.
const (
	fieldServiceName = "service_name"
	fieldAmount      = "amount"
	fieldPaymentDay  = "payment_day"
	fieldCategory    = "category"
)

// ParseExpenseInput reads the creation form. Values are stripped of control
// characters but not trimmed, so a whitespace-only field still counts as
// present.
func ParseExpenseInput(r *http.Request) (core.ExpenseInput, error) {
	if err := r.ParseForm(); err != nil {
		return core.ExpenseInput{}, err
	}
	return core.ExpenseInput{
		ServiceName: stripControl(r.PostForm.Get(fieldServiceName)),
		Amount:      stripControl(r.PostForm.Get(fieldAmount)),
		PaymentDay:  stripControl(r.PostForm.Get(fieldPaymentDay)),
		Category:    stripControl(r.PostForm.Get(fieldCategory)),
	}, nil
}

// expenseID returns the {id} path parameter.
func expenseID(r *http.Request) string {
	return strings.TrimSpace(stripControl(chi.URLParam(r, "id")))
}

// IsHTMX reports whether the request was issued by htmx.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// stripControl removes control characters other than tab and newlines.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
