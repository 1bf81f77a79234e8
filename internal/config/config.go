package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/locate-qa/internal/category"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig     `yaml:"store" mapstructure:"store"`
	Audit  AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Lines  LinesConfig     `yaml:"lines" mapstructure:"lines"`
	Server ServerConfig    `yaml:"server" mapstructure:"server"`
	Log    LogConfig       `yaml:"log" mapstructure:"log"`
	Custom []category.Spec `yaml:"categories" mapstructure:"categories"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AuditConfig configures the validation context of a run.
type AuditConfig struct {
	MinLocateScore       float64 `yaml:"min_locate_score" mapstructure:"min_locate_score"`
	ValidGPSCodes        string  `yaml:"valid_gps_codes" mapstructure:"valid_gps_codes"`
	PassThresholdPercent float64 `yaml:"pass_threshold_percent" mapstructure:"pass_threshold_percent"`
}

// LinesConfig configures facility-line ingestion.
type LinesConfig struct {
	IDField   string `yaml:"id_field" mapstructure:"id_field"`
	PassField string `yaml:"pass_field" mapstructure:"pass_field"`
}

// ServerConfig configures the read-only results API.
type ServerConfig struct {
	Port      int     `yaml:"port" mapstructure:"port"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// GPSCodes returns the configured fix-type codes as a slice.
func (a AuditConfig) GPSCodes() []string {
	parts := strings.Split(a.ValidGPSCodes, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}

// Validate checks the fields required for the given command mode.
// Errors are collected so the operator sees every problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres, got "+c.Store.Driver)
	}

	switch mode {
	case "store":
		// Store checks above are the whole contract.
	case "audit":
		if c.Audit.MinLocateScore < 0 {
			problems = append(problems, "audit.min_locate_score must be >= 0")
		}
		if c.Audit.PassThresholdPercent < 0 || c.Audit.PassThresholdPercent > 100 {
			problems = append(problems, "audit.pass_threshold_percent must be between 0 and 100")
		}
		if len(c.Audit.GPSCodes()) == 0 {
			problems = append(problems, "audit.valid_gps_codes must name at least one code")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RateLimit <= 0 {
			problems = append(problems, "server.rate_limit must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LOCATEQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "locate-qa.db")
	v.SetDefault("audit.min_locate_score", 70.0)
	v.SetDefault("audit.valid_gps_codes", "R,F")
	v.SetDefault("audit.pass_threshold_percent", 75.0)
	v.SetDefault("lines.id_field", "LINE_ID")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
