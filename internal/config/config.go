package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Mailer    MailerConfig
	DocRender DocRenderConfig
	Sheets    SheetsConfig
	Jobs      JobsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// MailerConfig contains credentials for the transactional email API.
type MailerConfig struct {
	BaseURL     string
	APIKey      string
	FromAddress string
}

// DocRenderConfig contains settings for the document render service.
type DocRenderConfig struct {
	BaseURL string
	APIKey  string
}

// SheetsConfig contains configuration for the regulator compliance export.
// Leaving both fields empty disables the export job.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// JobsConfig holds scheduler-related settings.
type JobsConfig struct {
	OutboxSchedule           string
	WithdrawalSweepSchedule  string
	ComplianceExportSchedule string
	Timezone                 string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "amutrack"),
		},
		Mailer: MailerConfig{
			BaseURL:     getenvWithDefault("MAILER_BASE_URL", "https://api.mailersend.com/v1"),
			APIKey:      os.Getenv("MAILER_API_KEY"),
			FromAddress: getenvWithDefault("MAILER_FROM", "noreply@amutrack.local"),
		},
		DocRender: DocRenderConfig{
			BaseURL: os.Getenv("DOCRENDER_BASE_URL"),
			APIKey:  os.Getenv("DOCRENDER_API_KEY"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("COMPLIANCE_SPREADSHEET_ID"),
		},
		Jobs: JobsConfig{
			OutboxSchedule:           getenvWithDefault("OUTBOX_CRON_SCHEDULE", "* * * * *"),
			WithdrawalSweepSchedule:  getenvWithDefault("WITHDRAWAL_SWEEP_CRON_SCHEDULE", "0 * * * *"),
			ComplianceExportSchedule: getenvWithDefault("COMPLIANCE_EXPORT_CRON_SCHEDULE", "0 6 * * 1"),
			Timezone:                 getenvWithDefault("TIMEZONE", "UTC"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch {
	case c.MongoDB.URI == "":
		return errors.New("MONGODB_URI must be provided")
	case c.MongoDB.DBName == "":
		return errors.New("MONGODB_DB_NAME must be provided")
	}

	switch {
	case c.Mailer.APIKey == "":
		return errors.New("MAILER_API_KEY must be provided")
	case c.Mailer.BaseURL == "":
		return errors.New("MAILER_BASE_URL must not be empty")
	case c.Mailer.FromAddress == "":
		return errors.New("MAILER_FROM must not be empty")
	}

	if c.DocRender.BaseURL == "" {
		return errors.New("DOCRENDER_BASE_URL must be provided")
	}

	// The compliance export is optional, but a half-configured one is a
	// deployment mistake worth failing on.
	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and COMPLIANCE_SPREADSHEET_ID must be set together")
	}

	switch {
	case c.Jobs.OutboxSchedule == "":
		return errors.New("OUTBOX_CRON_SCHEDULE must be provided")
	case c.Jobs.WithdrawalSweepSchedule == "":
		return errors.New("WITHDRAWAL_SWEEP_CRON_SCHEDULE must be provided")
	case c.Jobs.ComplianceExportSchedule == "":
		return errors.New("COMPLIANCE_EXPORT_CRON_SCHEDULE must be provided")
	case c.Jobs.Timezone == "":
		return errors.New("TIMEZONE must be provided")
	}

	return nil
}

// ComplianceExportEnabled reports whether the sheets export is configured.
func (c *Config) ComplianceExportEnabled() bool {
	return c.Sheets.CredentialsPath != "" && c.Sheets.SpreadsheetID != ""
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
