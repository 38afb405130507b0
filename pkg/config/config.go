package config

import (
	"fmt"
	"time"

	"github.com/sdejongh/contentsync/internal/platform"
	"github.com/sdejongh/contentsync/pkg/models"
)

// Store backend types
const (
	TypeAirtable = "airtable"
	TypeSheets   = "sheets"
	TypeLocal    = "local"
)

// Config represents the application configuration
type Config struct {
	StoreA  StoreAConfig  `mapstructure:"store_a" yaml:"store_a"`
	StoreB  StoreBConfig  `mapstructure:"store_b" yaml:"store_b"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	State   StateConfig   `mapstructure:"state" yaml:"state"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// StoreAConfig holds the table store settings
type StoreAConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // "airtable" or "local"
	Path string `mapstructure:"path" yaml:"path"`

	BaseURL           string       `mapstructure:"base_url" yaml:"base_url"`
	BaseID            string       `mapstructure:"base_id" yaml:"base_id"`
	Table             string       `mapstructure:"table" yaml:"table"`
	Token             string       `mapstructure:"token" yaml:"token"`
	ApprovedOnly      bool         `mapstructure:"approved_only" yaml:"approved_only"`
	RequestsPerSecond float64      `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Timeout           string       `mapstructure:"timeout" yaml:"timeout"`
	CacheTTL          string       `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	Fields            FieldsConfig `mapstructure:"fields" yaml:"fields"`
}

// FieldsConfig maps record fields to table column names
type FieldsConfig struct {
	Title                    string `mapstructure:"title" yaml:"title"`
	PrimaryKeyword           string `mapstructure:"primary_keyword" yaml:"primary_keyword"`
	Author                   string `mapstructure:"author" yaml:"author"`
	Status                   string `mapstructure:"status" yaml:"status"`
	Approved                 string `mapstructure:"approved" yaml:"approved"`
	PublishDate              string `mapstructure:"publish_date" yaml:"publish_date"`
	FeatureImage             string `mapstructure:"feature_image" yaml:"feature_image"`
	BodyRef                  string `mapstructure:"body_ref" yaml:"body_ref"`
	LastModified             string `mapstructure:"last_modified" yaml:"last_modified"`
	FeatureImageAsAttachment bool   `mapstructure:"feature_image_as_attachment" yaml:"feature_image_as_attachment"`
}

// StoreBConfig holds the spreadsheet store settings
type StoreBConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // "sheets" or "local"
	Path string `mapstructure:"path" yaml:"path"`

	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id" yaml:"spreadsheet_id"`
	SheetName       string `mapstructure:"sheet_name" yaml:"sheet_name"`
	Columns         string `mapstructure:"columns" yaml:"columns"`
	APIKey          string `mapstructure:"api_key" yaml:"api_key"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	CSVExportURL    string `mapstructure:"csv_export_url" yaml:"csv_export_url"`
	CacheTTL        string `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	Timeout         string `mapstructure:"timeout" yaml:"timeout"`
}

// SyncConfig holds sync-related settings
type SyncConfig struct {
	Policy          models.Policy    `mapstructure:"policy" yaml:"policy"`
	DefaultMaster   models.StoreID   `mapstructure:"default_master" yaml:"default_master"`
	Direction       models.Direction `mapstructure:"direction" yaml:"direction"`
	BatchSize       int              `mapstructure:"batch_size" yaml:"batch_size"`
	InterBatchDelay string           `mapstructure:"inter_batch_delay" yaml:"inter_batch_delay"`
	Comparison      string           `mapstructure:"comparison" yaml:"comparison"` // "fields" or "hash"
}

// StateConfig locates the files kept between runs. Relative file names
// are resolved against Dir; an empty MetricsFile disables metrics.
type StateConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	StatusFile  string `mapstructure:"status_file" yaml:"status_file"`
	LedgerFile  string `mapstructure:"ledger_file" yaml:"ledger_file"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
	LockFile    string `mapstructure:"lock_file" yaml:"lock_file"`
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `mapstructure:"format" yaml:"format"`     // "human" or "json"
	Progress bool   `mapstructure:"progress" yaml:"progress"` // Show progress bars
	Quiet    bool   `mapstructure:"quiet" yaml:"quiet"`       // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Format     string `mapstructure:"format" yaml:"format"` // "json" or "text"
	Level      string `mapstructure:"level" yaml:"level"`   // "debug", "info", "warn", "error"
	File       string `mapstructure:"file" yaml:"file"`     // Log file path (empty = stderr)
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// Default returns the default configuration
func Default() *Config {
	stateDir, err := platform.StateDir()
	if err != nil {
		stateDir = "."
	}

	return &Config{
		StoreA: StoreAConfig{
			Type:              TypeAirtable,
			RequestsPerSecond: 5,
			Timeout:           "30s",
			CacheTTL:          "5m",
			Fields: FieldsConfig{
				Title:          "Title",
				PrimaryKeyword: "Primary Keyword",
				Author:         "Author",
				Status:         "Status",
				Approved:       "Approved",
				PublishDate:    "Publish Date",
				FeatureImage:   "Feature Image",
				BodyRef:        "Document URL",
				LastModified:   "Last Modified",
			},
		},
		StoreB: StoreBConfig{
			Type:      TypeSheets,
			SheetName: "Sheet1",
			Columns:   "A:Z",
			CacheTTL:  "5m",
			Timeout:   "30s",
		},
		Sync: SyncConfig{
			Policy:          models.PolicyNewestWins,
			DefaultMaster:   models.StoreA,
			Direction:       models.DirectionBoth,
			BatchSize:       10,
			InterBatchDelay: "1s",
			Comparison:      "fields",
		},
		State: StateConfig{
			Dir:        stateDir,
			StatusFile: "status.json",
			LedgerFile: "ledger.db",
			LockFile:   "contentsync.lock",
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
		},
		Logging: LoggingConfig{
			Format:     "json",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.StoreA.Type {
	case TypeAirtable:
	case TypeLocal:
		if c.StoreA.Path == "" {
			return &models.ValidationError{Field: "store_a.path", Message: "required for a local store"}
		}
	default:
		return &models.ValidationError{Field: "store_a.type", Message: "must be 'airtable' or 'local'"}
	}

	switch c.StoreB.Type {
	case TypeSheets:
	case TypeLocal:
		if c.StoreB.Path == "" {
			return &models.ValidationError{Field: "store_b.path", Message: "required for a local store"}
		}
	default:
		return &models.ValidationError{Field: "store_b.type", Message: "must be 'sheets' or 'local'"}
	}

	if c.StoreA.RequestsPerSecond < 0 {
		return &models.ValidationError{Field: "store_a.requests_per_second", Message: "must not be negative"}
	}

	durations := map[string]string{
		"store_a.timeout":        c.StoreA.Timeout,
		"store_a.cache_ttl":      c.StoreA.CacheTTL,
		"store_b.timeout":        c.StoreB.Timeout,
		"store_b.cache_ttl":      c.StoreB.CacheTTL,
		"sync.inter_batch_delay": c.Sync.InterBatchDelay,
	}
	for field, value := range durations {
		if _, err := parseDuration(value); err != nil {
			return &models.ValidationError{Field: field, Message: err.Error()}
		}
	}

	if !c.Sync.Policy.IsValid() {
		return &models.ValidationError{
			Field:   "sync.policy",
			Message: "must be 'a-wins', 'b-wins' or 'newest-wins'",
		}
	}

	if !c.Sync.DefaultMaster.IsValid() {
		return &models.ValidationError{Field: "sync.default_master", Message: "must be 'A' or 'B'"}
	}

	if !c.Sync.Direction.IsValid() {
		return &models.ValidationError{
			Field:   "sync.direction",
			Message: "must be 'both', 'a-to-b' or 'b-to-a'",
		}
	}

	if c.Sync.BatchSize < 1 {
		return &models.ValidationError{Field: "sync.batch_size", Message: "must be at least 1"}
	}

	validComparisons := map[string]bool{"fields": true, "hash": true}
	if !validComparisons[c.Sync.Comparison] {
		return &models.ValidationError{Field: "sync.comparison", Message: "must be 'fields' or 'hash'"}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	return nil
}

// parseDuration accepts Go duration strings; empty means zero
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", s)
	}
	return d, nil
}

// Duration parses a validated duration setting
func Duration(s string) time.Duration {
	d, _ := parseDuration(s)
	return d
}

// StatusPath returns the resolved status file path
func (s StateConfig) StatusPath() string {
	return platform.Resolve(s.Dir, s.StatusFile)
}

// LedgerPath returns the resolved ledger database path
func (s StateConfig) LedgerPath() string {
	return platform.Resolve(s.Dir, s.LedgerFile)
}

// MetricsPath returns the resolved metrics textfile path, empty when disabled
func (s StateConfig) MetricsPath() string {
	return platform.Resolve(s.Dir, s.MetricsFile)
}

// LockPath returns the resolved run lock path
func (s StateConfig) LockPath() string {
	return platform.Resolve(s.Dir, s.LockFile)
}

const redacted = "********"

// Redacted returns a copy with secrets masked, for display
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&out.StoreA.Token)
	mask(&out.StoreB.APIKey)
	return &out
}
