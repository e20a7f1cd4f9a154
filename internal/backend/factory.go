package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fixedspend/internal/config"
	"fixedspend/internal/log"
	"fixedspend/internal/remote"
	"fixedspend/internal/remote/memory"
	"fixedspend/internal/remote/sheets"
	"fixedspend/internal/remote/sqlite"
	"fixedspend/internal/remote/supabase"
)

const defaultDevTokenTTL = time.Hour

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	cfg := Config{
		AuthType: Type(appConfig.AuthBackend),
		DataType: Type(appConfig.DataBackend),

		SupabaseURL:   appConfig.SupabaseURL,
		AnonKey:       appConfig.SupabaseAnonKey,
		ExpensesTable: appConfig.SupabaseExpensesTable,

		DevUserEmail: appConfig.DevUserEmail,
		DevTokenTTL:  defaultDevTokenTTL,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}
	return cfg, cfg.Validate()
}

// Factory creates backends based on configuration
type Factory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create builds the auth service and row store named by cfg. On error every
// resource opened so far is released.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{
		AuthType: cfg.AuthType,
		DataType: cfg.DataType,
		Pingers:  map[string]remote.Pinger{},
	}

	var (
		hosted  *supabase.Client
		devAuth *memory.Auth
	)
	switch cfg.AuthType {
	case Supabase:
		client, err := f.supabaseClient(cfg)
		if err != nil {
			return nil, err
		}
		hosted = client
		b.Auth = client
		b.Pingers["auth"] = client
	case Memory:
		ttl := cfg.DevTokenTTL
		if ttl <= 0 {
			ttl = defaultDevTokenTTL
		}
		devAuth = memory.NewAuth(cfg.DevUserEmail, ttl)
		b.Auth = devAuth
		f.logger.WarnContext(ctx, "Using in-memory development auth, every sign-in is the same user",
			log.FieldUserID, devAuth.User().ID)
	}

	switch cfg.DataType {
	case Supabase:
		b.Store = hosted
	case Memory:
		store := memory.NewStore(devAuth)
		b.Store = store
		b.Pingers["store"] = store
	case SQLite:
		store, err := sqlite.Open(cfg.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		b.Store = store
		b.Pingers["store"] = store
		b.Cleanup = store.Close
	case Sheets:
		client, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		b.Store = client
		b.Pingers["store"] = client
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		log.FieldBackend, string(cfg.DataType),
		"auth_backend", string(cfg.AuthType))
	return b, nil
}

func (f *Factory) supabaseClient(cfg Config) (*supabase.Client, error) {
	var opts []supabase.Option
	if cfg.ExpensesTable != "" {
		opts = append(opts, supabase.WithTable(cfg.ExpensesTable))
	}
	client, err := supabase.New(cfg.SupabaseURL, cfg.AnonKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Supabase client: %w", err)
	}
	return client, nil
}
