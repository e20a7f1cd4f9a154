// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing HTMX responses.
// It provides a fluent API for HX-Trigger events and the swap
// header the dashboard relies on.

package http

import (
	"encoding/json"
	"net/http"
)

// Client-side events fired through HX-Trigger.
const (
	EventFormReset       = "form:reset"
	EventSheetClose      = "sheet:close"
	EventExpensesRefresh = "expenses:refresh"
	EventShowAlert       = "show-alert"
)

// HTMXResponseBuilder provides a fluent API for building HTMX responses.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	headers    map[string]string
}

// NewHTMXResponse creates a new response builder with default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerFormReset clears the creation form.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger(EventFormReset, struct{}{})
}

// TriggerSheetClose closes the creation sheet.
func (b *HTMXResponseBuilder) TriggerSheetClose() *HTMXResponseBuilder {
	return b.Trigger(EventSheetClose, struct{}{})
}

// TriggerExpensesRefresh makes the board re-fetch /ui/expenses.
func (b *HTMXResponseBuilder) TriggerExpensesRefresh() *HTMXResponseBuilder {
	return b.Trigger(EventExpensesRefresh, struct{}{})
}

// TriggerAlert shows a blocking alert with message.
func (b *HTMXResponseBuilder) TriggerAlert(message string) *HTMXResponseBuilder {
	return b.Trigger(EventShowAlert, map[string]string{"message": message})
}

// NoSwap tells htmx to leave the target untouched.
func (b *HTMXResponseBuilder) NoSwap() *HTMXResponseBuilder {
	b.headers["HX-Reswap"] = "none"
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		triggerJSON, err := json.Marshal(b.triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
}
