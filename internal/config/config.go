package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Paths   PathsConfig   `yaml:"paths" mapstructure:"paths"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Mailbox MailboxConfig `yaml:"mailbox" mapstructure:"mailbox"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PathsConfig makes every filesystem root explicit and test-injectable.
// SourceRoot holds one subdirectory per property; VaultRoot receives the
// archived and classified copies.
type PathsConfig struct {
	SourceRoot       string   `yaml:"source_root" mapstructure:"source_root"`
	VaultRoot        string   `yaml:"vault_root" mapstructure:"vault_root"`
	MailRoot         string   `yaml:"mail_root" mapstructure:"mail_root"`
	MetadataExport   string   `yaml:"metadata_export" mapstructure:"metadata_export"`
	DropDirs         []string `yaml:"drop_dirs" mapstructure:"drop_dirs"`
	ExcludedFolders  []string `yaml:"excluded_folders" mapstructure:"excluded_folders"`
	ExcludeGlobs     []string `yaml:"exclude_globs" mapstructure:"exclude_globs"`
	MaxWalkDepth     int      `yaml:"max_walk_depth" mapstructure:"max_walk_depth"`
}

// ExtractConfig configures the extraction boundary and its retry budget.
type ExtractConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	TesseractPath string `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	WorkerBin     string `yaml:"worker_bin" mapstructure:"worker_bin"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts   int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffMillis int    `yaml:"backoff_millis" mapstructure:"backoff_millis"`
	// ReconcileRate caps second-opinion extractions per second during the
	// reconciliation pass.
	ReconcileRate float64 `yaml:"reconcile_rate" mapstructure:"reconcile_rate"`
}

// MailboxConfig configures the local mail-store scan.
type MailboxConfig struct {
	MaxBlobMB int `yaml:"max_blob_mb" mapstructure:"max_blob_mb"`
}

// WatchConfig configures the drop-zone watcher.
type WatchConfig struct {
	ImportsDir  string   `yaml:"imports_dir" mapstructure:"imports_dir"`
	Extensions  []string `yaml:"extensions" mapstructure:"extensions"`
	SettleMills int      `yaml:"settle_millis" mapstructure:"settle_millis"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "vault.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("paths.max_walk_depth", 32)
	v.SetDefault("paths.excluded_folders", []string{"search"})
	v.SetDefault("extract.pdftotext_path", "pdftotext")
	v.SetDefault("extract.tesseract_path", "tesseract")
	v.SetDefault("extract.timeout_secs", 120)
	v.SetDefault("extract.max_attempts", 3)
	v.SetDefault("extract.backoff_millis", 1000)
	v.SetDefault("extract.reconcile_rate", 0.5)
	v.SetDefault("mailbox.max_blob_mb", 100)
	v.SetDefault("watch.extensions", []string{".pdf", ".jpg", ".jpeg", ".png", ".xlsx", ".csv"})
	v.SetDefault("watch.settle_millis", 2000)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
