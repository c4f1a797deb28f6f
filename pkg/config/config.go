// Package config loads ledgerview settings from an optional .env file, an
// optional JSON file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default file locations.
const (
	ClientSecretFile = "data/client_secret.json"
	TokenFile        = "data/token.json"
	DefaultEnvFile   = ".env"
)

// Config holds the application configuration. Keys are the environment
// variable names.
type Config struct {
	// FeedBaseURL is the receipt API root, e.g. http://localhost:3001.
	// Environment variable: FEED_BASE_URL
	FeedBaseURL string `koanf:"FEED_BASE_URL"`
	// FeedTimeout bounds every feed request.
	FeedTimeout time.Duration `koanf:"FEED_TIMEOUT"`
	// FeedToken is sent as a bearer token when set.
	FeedToken string `koanf:"FEED_TOKEN"`
	// FeedFile reads receipts from a local JSON file instead of the API.
	FeedFile string `koanf:"FEED_FILE"`

	// HistoryBackend is one of json, sqlite, postgres, memory.
	HistoryBackend string `koanf:"HISTORY_BACKEND"`
	HistoryPath    string `koanf:"HISTORY_PATH"`
	SQLiteDBPath   string `koanf:"SQLITE_DB_PATH"`

	PostgresHost     string `koanf:"POSTGRES_HOST"`
	PostgresPort     int    `koanf:"POSTGRES_PORT"`
	PostgresDatabase string `koanf:"POSTGRES_DB"`
	PostgresUser     string `koanf:"POSTGRES_USER"`
	PostgresPassword string `koanf:"POSTGRES_PASSWORD"`
	PostgresSSLMode  string `koanf:"POSTGRES_SSLMODE"`
	PostgresDSN      string `koanf:"POSTGRES_DSN"`

	// ReportLabel prefixes generated filenames.
	ReportLabel string `koanf:"REPORT_LABEL"`
	// ReportChart embeds a trend chart in PDF reports.
	ReportChart bool `koanf:"REPORT_CHART"`

	// ArtifactSink is where generated files are kept: none, local or azblob.
	ArtifactSink     string `koanf:"ARTIFACT_SINK"`
	ExportDir        string `koanf:"EXPORT_DIR"`
	AzBlobServiceURL string `koanf:"AZBLOB_SERVICE_URL"`
	AzBlobContainer  string `koanf:"AZBLOB_CONTAINER"`

	// AMQPURL enables report events when set.
	AMQPURL        string `koanf:"AMQP_URL"`
	AMQPExchange   string `koanf:"AMQP_EXCHANGE"`
	AMQPRoutingKey string `koanf:"AMQP_ROUTING_KEY"`

	// GSheetsID or GSheetsTitle enables the Google Sheets mirror.
	GSheetsID    string `koanf:"GSHEETS_ID"`
	GSheetsTitle string `koanf:"GSHEETS_TITLE"`
	GSheetsName  string `koanf:"GSHEETS_NAME"`

	GoogleClientSecretFile string `koanf:"GOOGLE_CLIENT_SECRET_FILE"`
	GoogleTokenFile        string `koanf:"GOOGLE_TOKEN_FILE"`

	HTTPAddr string `koanf:"HTTP_ADDR"`

	LogLevel  string `koanf:"LOG_LEVEL"`
	LogFormat string `koanf:"LOG_FORMAT"`
}

// Default returns a configuration that runs against a local receipt API and
// keeps history in a JSON file.
func Default() Config {
	return Config{
		FeedBaseURL:            "http://localhost:3001",
		FeedTimeout:            15 * time.Second,
		HistoryBackend:         "json",
		HistoryPath:            "data/history.json",
		SQLiteDBPath:           "data/ledgerview.db",
		PostgresPort:           5432,
		PostgresSSLMode:        "disable",
		ReportLabel:            "AuditReport",
		ReportChart:            true,
		ArtifactSink:           "none",
		ExportDir:              "exports",
		AzBlobContainer:        "reports",
		AMQPExchange:           "ledgerview",
		AMQPRoutingKey:         "report.generated",
		GSheetsName:            "Reports",
		GoogleClientSecretFile: ClientSecretFile,
		GoogleTokenFile:        TokenFile,
		HTTPAddr:               ":8080",
		LogLevel:               "INFO",
		LogFormat:              "text",
	}
}

// LoadOptions selects the optional files read by Load.
type LoadOptions struct {
	// EnvFile is a dotenv file merged into the process environment. Missing
	// files are ignored.
	EnvFile string
	// JSONFile is a flat JSON object using the same keys as the environment.
	// Missing files are ignored.
	JSONFile string
}

// Load builds a Config from defaults, the JSON file and the environment.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		// Existing environment variables win over the file.
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading env file %s: %w", opts.EnvFile, err)
		}
	}

	k := koanf.New(".")

	if opts.JSONFile != "" {
		if _, err := os.Stat(opts.JSONFile); err == nil {
			if err := k.Load(file.Provider(opts.JSONFile), kJson.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file %s: %w", opts.JSONFile, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Known option values.
var (
	HistoryBackends = []string{"json", "sqlite", "postgres", "memory"}
	ArtifactSinks   = []string{"none", "local", "azblob"}
	LogFormats      = []string{"text", "json"}
)

// SheetsEnabled reports whether report rows should be mirrored to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GSheetsID != "" || c.GSheetsTitle != ""
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.FeedFile == "" {
		if u, err := url.Parse(c.FeedBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("invalid FEED_BASE_URL %q: must be an absolute URL", c.FeedBaseURL))
		}
	}
	if c.FeedTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("invalid FEED_TIMEOUT %s: must be positive", c.FeedTimeout))
	}

	backend := strings.ToLower(c.HistoryBackend)
	if !slices.Contains(HistoryBackends, backend) {
		problems = append(problems, fmt.Sprintf("invalid HISTORY_BACKEND %q: must be one of %v", c.HistoryBackend, HistoryBackends))
	}
	switch backend {
	case "json":
		if c.HistoryPath == "" {
			problems = append(problems, "HISTORY_PATH cannot be empty when using the json backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLITE_DB_PATH cannot be empty when using the sqlite backend")
		}
	case "postgres":
		if c.PostgresDSN == "" && c.PostgresHost == "" {
			problems = append(problems, "POSTGRES_HOST or POSTGRES_DSN is required when using the postgres backend")
		}
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			problems = append(problems, fmt.Sprintf("invalid POSTGRES_PORT %d: must be between 1 and 65535", c.PostgresPort))
		}
	}

	sink := strings.ToLower(c.ArtifactSink)
	if !slices.Contains(ArtifactSinks, sink) {
		problems = append(problems, fmt.Sprintf("invalid ARTIFACT_SINK %q: must be one of %v", c.ArtifactSink, ArtifactSinks))
	}
	if sink == "local" && c.ExportDir == "" {
		problems = append(problems, "EXPORT_DIR cannot be empty when using the local artifact sink")
	}
	if sink == "azblob" && c.AzBlobServiceURL == "" {
		problems = append(problems, "AZBLOB_SERVICE_URL is required when using the azblob artifact sink")
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP_URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP_URL scheme %q: must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP_EXCHANGE cannot be empty when AMQP_URL is provided")
		}
	}

	if c.SheetsEnabled() && c.GSheetsName == "" {
		problems = append(problems, "GSHEETS_NAME is required when the sheets mirror is enabled")
	}

	if !slices.Contains(LogFormats, strings.ToLower(c.LogFormat)) {
		problems = append(problems, fmt.Sprintf("invalid LOG_FORMAT %q: must be one of %v", c.LogFormat, LogFormats))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
