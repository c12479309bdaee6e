// Package config loads toolkit settings from an optional YAML file with
// environment-variable overrides. Every field has a working default so the
// toolkit runs with no config file at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Storage Storage `yaml:"storage"`
	Blob    Blob    `yaml:"blob"`
	Reports Reports `yaml:"reports"`
	Logging Logging `yaml:"logging"`
}

// Storage selects the document store driver.
type Storage struct {
	Driver      string `yaml:"driver"`       // dir|memory|sqlite|postgres
	DataDir     string `yaml:"data_dir"`     // driver=dir
	SQLitePath  string `yaml:"sqlite_path"`  // driver=sqlite
	PostgresDSN string `yaml:"postgres_dsn"` // driver=postgres
}

// Blob selects the artifact destination.
type Blob struct {
	Driver   string `yaml:"driver"` // fs|s3|memory
	FSRoot   string `yaml:"fs_root"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
}

// Reports controls report generation.
type Reports struct {
	Actor             string  `yaml:"actor"`
	AuditPath         string  `yaml:"audit_path"`
	LowStockThreshold float64 `yaml:"low_stock_threshold"`
}

// Logging controls the structured logger.
type Logging struct {
	Mode  string `yaml:"mode"` // production|development
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Storage: Storage{Driver: "dir", DataDir: "./benchbook_data", SQLitePath: "./benchbook.db"},
		Blob:    Blob{Driver: "fs", FSRoot: "./artifacts"},
		Reports: Reports{AuditPath: "./artifacts/audit.log", LowStockThreshold: 10},
		Logging: Logging{Mode: "development", Level: "info"},
	}
}

// Load reads the YAML file at path when it exists, then applies environment
// overrides. An empty path skips the file and uses defaults plus
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Storage.Driver, "BENCHBOOK_STORAGE_DRIVER")
	setString(&cfg.Storage.DataDir, "BENCHBOOK_DATA_DIR")
	setString(&cfg.Storage.SQLitePath, "BENCHBOOK_SQLITE_PATH")
	setString(&cfg.Storage.PostgresDSN, "BENCHBOOK_POSTGRES_DSN")
	setString(&cfg.Blob.Driver, "BENCHBOOK_BLOB_DRIVER")
	setString(&cfg.Blob.FSRoot, "BENCHBOOK_BLOB_FS_ROOT")
	setString(&cfg.Blob.S3Bucket, "BENCHBOOK_BLOB_S3_BUCKET")
	setString(&cfg.Blob.S3Region, "BENCHBOOK_BLOB_S3_REGION")
	setString(&cfg.Reports.Actor, "BENCHBOOK_ACTOR")
	setString(&cfg.Reports.AuditPath, "BENCHBOOK_AUDIT_PATH")
	setFloat(&cfg.Reports.LowStockThreshold, "BENCHBOOK_LOW_STOCK_THRESHOLD")
	setString(&cfg.Logging.Mode, "BENCHBOOK_LOG_MODE")
	setString(&cfg.Logging.Level, "BENCHBOOK_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case "dir", "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "s3", "memory":
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.Reports.LowStockThreshold < 0 {
		return fmt.Errorf("low_stock_threshold must not be negative")
	}
	return nil
}
