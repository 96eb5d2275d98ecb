package backend

import (
	"context"
	"path/filepath"
	"testing"

	"monthbook/internal/config"
	"monthbook/internal/services"
)

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		DataBackend:       "sqlite",
		SQLiteDBPath:      "/tmp/x.db",
		LedgerMaxRetries:  5,
		LedgerStrictDates: true,
		CacheSize:         10,
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.Ledger.MaxRetries != 5 || !cfg.Ledger.StrictDates {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"unknown", Config{Type: "redis"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	f := NewFactory(nil, nil)
	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend, Ledger: services.DefaultLedgerConfig()})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	_, err = res.Service.SubmitTransaction(context.Background(), services.SubmitRequest{
		UserID: "u1", Type: "income", Amount: "10", Category: "Salary", Month: "3", Year: "2024", Date: "2024-03-01",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := res.Store.Get(context.Background(), "u1", "2024-03"); err != nil {
		t.Fatalf("store should hold the submitted ledger: %v", err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	f := NewFactory(nil, nil)
	res, err := f.CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path, Ledger: services.DefaultLedgerConfig()})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if err := res.Service.Ready(context.Background()); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}
