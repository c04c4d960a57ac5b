package config

import (
	"os"
	"path/filepath"
	"testing"

	"tacosync/internal/models"
)

func validCompany(name string) CompanyConfig {
	return CompanyConfig{
		Company: models.Company{
			Name:           name,
			SheetID:        "sheet",
			Range:          "Imposto!A1",
			DateRangeDays:  30,
			TokenQueryAds:  "SELECT access_token FROM tokens.meli",
			TokenQuerySync: "SELECT access_token FROM tokens.turbo",
		},
		Database: PostgresConfig{
			Host:   "localhost",
			User:   "app",
			DBName: "catalog",
		},
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	yamlContent := `
app:
  name: "tacosync"
  environment: "test"
google:
  credentials_file: "creds.json"
pipeline:
  ads_page_size: 100
companies:
  - name: "acme"
    sheet_id: "sheet-1"
    range: "Imposto!A1"
    date_range_days: 30
    token_query_ads: "SELECT access_token FROM tokens.meli LIMIT 1"
    token_query_sync: "SELECT access_token FROM tokens.turbo LIMIT 1"
    database:
      host: "localhost"
      user: "app"
      password: "${TEST_DB_PASSWORD}"
      dbname: "catalog"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if len(cfg.Companies) != 1 || cfg.Companies[0].Name != "acme" {
		t.Fatalf("expected 1 company named acme, got %+v", cfg.Companies)
	}
	if got := cfg.Companies[0].Database.Password; got != "s3cret" {
		t.Errorf("expected env-expanded password, got %q", got)
	}
	if cfg.Pipeline.AdsPageSize != 100 {
		t.Errorf("expected ads_page_size 100, got %d", cfg.Pipeline.AdsPageSize)
	}
	// Untouched knobs still pick up defaults.
	if cfg.Pipeline.PushChunkSize != 50 {
		t.Errorf("expected default push_chunk_size 50, got %d", cfg.Pipeline.PushChunkSize)
	}
	if cfg.Companies[0].Database.Port != 5432 {
		t.Errorf("expected default port 5432, got %d", cfg.Companies[0].Database.Port)
	}
}

func TestValidateConfig(t *testing.T) {
	missingDB := validCompany("acme")
	missingDB.Database.Host = ""

	noDateRange := validCompany("acme")
	noDateRange.DateRangeDays = 0

	halfException := validCompany("acme")
	halfException.CostExceptionSheetID = "sheet-2"

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Google:    GoogleConfig{CredentialsFile: "creds.json"},
				Companies: []CompanyConfig{validCompany("acme")},
			},
			wantErr: false,
		},
		{
			name: "missing credentials file",
			cfg: Config{
				Companies: []CompanyConfig{validCompany("acme")},
			},
			wantErr: true,
		},
		{
			name: "no companies",
			cfg: Config{
				Google: GoogleConfig{CredentialsFile: "creds.json"},
			},
			wantErr: true,
		},
		{
			name: "missing database host",
			cfg: Config{
				Google:    GoogleConfig{CredentialsFile: "creds.json"},
				Companies: []CompanyConfig{missingDB},
			},
			wantErr: true,
		},
		{
			name: "date range days zero",
			cfg: Config{
				Google:    GoogleConfig{CredentialsFile: "creds.json"},
				Companies: []CompanyConfig{noDateRange},
			},
			wantErr: true,
		},
		{
			name: "exception sheet id without range",
			cfg: Config{
				Google:    GoogleConfig{CredentialsFile: "creds.json"},
				Companies: []CompanyConfig{halfException},
			},
			wantErr: true,
		},
		{
			name: "duplicate company name",
			cfg: Config{
				Google:    GoogleConfig{CredentialsFile: "creds.json"},
				Companies: []CompanyConfig{validCompany("acme"), validCompany("acme")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Companies: []CompanyConfig{validCompany("acme")}}
	cfg.applyDefaults()

	if cfg.App.Name != "tacosync" {
		t.Errorf("expected default app name tacosync, got %s", cfg.App.Name)
	}
	if cfg.Monitoring.JobName != "tacosync" {
		t.Errorf("expected job name to follow app name, got %s", cfg.Monitoring.JobName)
	}
	if cfg.Pipeline.ResolveChunkSize != 100 {
		t.Errorf("expected default resolve chunk size 100, got %d", cfg.Pipeline.ResolveChunkSize)
	}
	if cfg.Pipeline.ChunkMaxRetries != 3 {
		t.Errorf("expected default chunk max retries 3, got %d", cfg.Pipeline.ChunkMaxRetries)
	}
	if cfg.Pipeline.ChunkRetryDelayMs != 5000 {
		t.Errorf("expected default chunk retry delay 5000ms, got %d", cfg.Pipeline.ChunkRetryDelayMs)
	}
	if cfg.Companies[0].Database.MaxConnections != 4 {
		t.Errorf("expected default max connections 4, got %d", cfg.Companies[0].Database.MaxConnections)
	}
}

func TestPostgresDSN(t *testing.T) {
	pg := PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "app",
		Password: "pw",
		DBName:   "catalog",
	}

	want := "postgres://app:pw@db.internal:5433/catalog?sslmode=disable"
	if got := pg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
