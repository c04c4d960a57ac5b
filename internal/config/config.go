package config

import (
	"errors"
	"fmt"
	"os"

	"tacosync/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Logging    LoggingConfig    `yaml:"logging"`
	Google     GoogleConfig     `yaml:"google"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Exports    ExportConfig     `yaml:"exports"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Companies  []CompanyConfig  `yaml:"companies"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

type MonitoringConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	JobName        string `yaml:"job_name"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// PipelineConfig tunes the batch engine. Zero values fall back to the
// defaults applied in applyDefaults.
type PipelineConfig struct {
	AdsPageSize       int     `yaml:"ads_page_size"`
	ResolveChunkSize  int     `yaml:"resolve_chunk_size"`
	PushChunkSize     int     `yaml:"push_chunk_size"`
	ChunkMaxRetries   int     `yaml:"chunk_max_retries"`
	ChunkRetryDelayMs int     `yaml:"chunk_retry_delay_ms"`
	ChunkDelayMs      int     `yaml:"chunk_delay_ms"`
	AdsRPS            float64 `yaml:"ads_rps"`
	SyncRPS           float64 `yaml:"sync_rps"`
}

// CompanyConfig pairs a tenant's pipeline settings with its catalog
// database connection.
type CompanyConfig struct {
	models.Company `yaml:",inline"`
	Database       PostgresConfig `yaml:"database"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// DSN renders a pgx-compatible connection string.
func (p PostgresConfig) DSN() string {
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, sslmode)
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment may already be populated.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Expand ${VAR} references before parsing so secrets stay out of
	// the YAML file.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Google.CredentialsFile == "" {
		return errors.New("google credentials file is required")
	}
	if len(c.Companies) == 0 {
		return errors.New("at least one company is required")
	}

	names := make(map[string]bool)
	for i := range c.Companies {
		if err := c.Companies[i].validate(); err != nil {
			return err
		}
		name := c.Companies[i].Name
		if names[name] {
			return fmt.Errorf("duplicate company name: %s", name)
		}
		names[name] = true
	}
	return nil
}

func (cc *CompanyConfig) validate() error {
	if cc.Name == "" {
		return errors.New("company name is required")
	}

	required := map[string]string{
		"sheet_id":         cc.SheetID,
		"range":            cc.Range,
		"token_query_ads":  cc.TokenQueryAds,
		"token_query_sync": cc.TokenQuerySync,
		"database.host":    cc.Database.Host,
		"database.user":    cc.Database.User,
		"database.dbname":  cc.Database.DBName,
	}
	var missing []string
	for key, value := range required {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("company %s: missing required fields: %v", cc.Name, missing)
	}

	if cc.DateRangeDays <= 0 {
		return fmt.Errorf("company %s: date_range_days must be positive", cc.Name)
	}

	// Exception sheets are optional but id and range come in pairs.
	if (cc.CostExceptionSheetID == "") != (cc.CostExceptionRange == "") {
		return fmt.Errorf("company %s: cost exception sheet id and range must be set together", cc.Name)
	}
	if (cc.TaxExceptionSheetID == "") != (cc.TaxExceptionRange == "") {
		return fmt.Errorf("company %s: tax exception sheet id and range must be set together", cc.Name)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "tacosync"
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = c.App.Name
	}

	if c.Pipeline.AdsPageSize == 0 {
		c.Pipeline.AdsPageSize = 300
	}
	if c.Pipeline.ResolveChunkSize == 0 {
		c.Pipeline.ResolveChunkSize = 100
	}
	if c.Pipeline.PushChunkSize == 0 {
		c.Pipeline.PushChunkSize = 50
	}
	if c.Pipeline.ChunkMaxRetries == 0 {
		c.Pipeline.ChunkMaxRetries = 3
	}
	if c.Pipeline.ChunkRetryDelayMs == 0 {
		c.Pipeline.ChunkRetryDelayMs = 5000
	}

	for i := range c.Companies {
		if c.Companies[i].Database.Port == 0 {
			c.Companies[i].Database.Port = 5432
		}
		if c.Companies[i].Database.MaxConnections == 0 {
			c.Companies[i].Database.MaxConnections = 4
		}
	}
}
