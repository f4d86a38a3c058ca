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
	Reproject ReprojectConfig `yaml:"reproject" mapstructure:"reproject"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ReprojectConfig configures zone selection and repair.
type ReprojectConfig struct {
	SourceCRS      string `yaml:"source_crs" mapstructure:"source_crs"`
	VerifyRepairs  bool   `yaml:"verify_repairs" mapstructure:"verify_repairs"`
	IrregularZones bool   `yaml:"irregular_zones" mapstructure:"irregular_zones"`
}

// OutputConfig configures written datasets and repair reports.
type OutputConfig struct {
	MaxDecimalDigits int    `yaml:"max_decimal_digits" mapstructure:"max_decimal_digits"`
	ReportFormat     string `yaml:"report_format" mapstructure:"report_format"`
}

// StoreConfig configures the PostGIS sink.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
	Table       string `yaml:"table" mapstructure:"table"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	MaxBodyMB      int      `yaml:"max_body_mb" mapstructure:"max_body_mb"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// BatchConfig configures multi-file runs.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
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
	v.SetEnvPrefix("REPROJECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("reproject.source_crs", "")
	v.SetDefault("reproject.verify_repairs", false)
	v.SetDefault("reproject.irregular_zones", false)
	v.SetDefault("output.max_decimal_digits", -1)
	v.SetDefault("output.report_format", "json")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.schema", "public")
	v.SetDefault("store.table", "reprojected_features")
	v.SetDefault("store.batch_size", 50000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_mb", 32)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("batch.concurrency", 4)

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

// Validate checks the settings required by mode: "cli", "postgis" or
// "serve". All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, "log.format must be json or console")
	}
	switch c.Output.ReportFormat {
	case "json", "yaml", "yml":
	default:
		errs = append(errs, "output.report_format must be json or yaml")
	}
	if c.Output.MaxDecimalDigits < -1 {
		errs = append(errs, "output.max_decimal_digits must be >= -1")
	}
	if c.Store.BatchSize < 0 {
		errs = append(errs, "store.batch_size must be >= 0")
	}
	if c.Batch.Concurrency < 1 {
		errs = append(errs, "batch.concurrency must be >= 1")
	}

	switch mode {
	case "cli":
	case "postgis":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Store.Table == "" {
			errs = append(errs, "store.table is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.MaxBodyMB <= 0 {
			errs = append(errs, "server.max_body_mb must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
