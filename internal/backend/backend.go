// Package backend assembles the auth service and the expense row store
// selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"fixedspend/internal/remote"
)

// Type names an auth or data backend.
type Type string

const (
	Supabase Type = "supabase"
	Memory   Type = "memory"
	SQLite   Type = "sqlite"
	Sheets   Type = "sheets"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// ValidAuth reports whether t can provide the auth service.
func (t Type) ValidAuth() bool {
	return t == Supabase || t == Memory
}

// ValidData reports whether t can provide the expense row store.
func (t Type) ValidData() bool {
	return slices.Contains(Types(), t)
}

// Types returns all data backend types.
func Types() []Type {
	return []Type{Supabase, Memory, SQLite, Sheets}
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Backend is the assembled remote surface used by the HTTP layer.
type Backend struct {
	Auth    remote.Auth
	Store   remote.ExpenseStore
	Pingers map[string]remote.Pinger
	Cleanup CleanupFunc

	AuthType Type
	DataType Type
}

// Ping checks every reachable dependency and joins the failures.
func (b *Backend) Ping(ctx context.Context) error {
	var errs []error
	names := make([]string, 0, len(b.Pingers))
	for name := range b.Pingers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := b.Pingers[name].Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close runs the cleanup function if any.
func (b *Backend) Close() error {
	if b.Cleanup == nil {
		return nil
	}
	return b.Cleanup()
}

// Config holds configuration for backend creation
type Config struct {
	AuthType Type
	DataType Type

	// Supabase
	SupabaseURL   string
	AnonKey       string
	ExpensesTable string

	// Development auth
	DevUserEmail string
	DevTokenTTL  time.Duration

	// SQLite
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.AuthType.ValidAuth() {
		return fmt.Errorf("invalid auth backend: %s", c.AuthType)
	}
	if !c.DataType.ValidData() {
		return fmt.Errorf("invalid data backend: %s", c.DataType)
	}
	if c.DataType == Supabase && c.AuthType != Supabase {
		return errors.New("supabase data backend requires the supabase auth backend")
	}
	if (c.AuthType == Supabase || c.DataType == Supabase) && (c.SupabaseURL == "" || c.AnonKey == "") {
		return errors.New("supabase URL and anon key are required for the supabase backend")
	}
	switch c.DataType {
	case SQLite:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case Sheets:
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets backend")
		}
	}
	return nil
}
