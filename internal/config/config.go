package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/docufill/fieldcalc/internal/resolve"
)

// Config holds the full application configuration.
type Config struct {
	Schema    SchemaConfig    `yaml:"schema" mapstructure:"schema"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	Intake    IntakeConfig    `yaml:"intake" mapstructure:"intake"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SchemaConfig locates the form schema.
type SchemaConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ResolveConfig tunes the calculation resolution engine. PolicyFile, when
// set, points at a dedicated YAML policy file that overrides the inline
// settings.
type ResolveConfig struct {
	PolicyFile       string  `yaml:"policy_file" mapstructure:"policy_file"`
	Epsilon          float64 `yaml:"epsilon" mapstructure:"epsilon"`
	AbsTolerance     float64 `yaml:"abs_tolerance" mapstructure:"abs_tolerance"`
	MaxPasses        int     `yaml:"max_passes" mapstructure:"max_passes"`
	WriteBack        bool    `yaml:"write_back" mapstructure:"write_back"`
	WriteBackVeryLow bool    `yaml:"write_back_very_low" mapstructure:"write_back_very_low"`
}

// IntakeConfig configures document intake.
type IntakeConfig struct {
	PdfToTextPath string  `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
	HostRate      float64 `yaml:"host_rate" mapstructure:"host_rate"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"` // sqlite file
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// NotionConfig holds Notion API credentials and database IDs for schema sync.
type NotionConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	FieldDB string `yaml:"field_db" mapstructure:"field_db"`
	GroupDB string `yaml:"group_db" mapstructure:"group_db"`
}

// AnthropicConfig holds Anthropic API settings for review assistance.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("FIELDCALC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("schema.path", "schema.json")
	v.SetDefault("resolve.epsilon", 1e-9)
	v.SetDefault("resolve.abs_tolerance", 1e-12)
	v.SetDefault("resolve.max_passes", 10)
	v.SetDefault("resolve.write_back", true)
	v.SetDefault("resolve.write_back_very_low", false)
	v.SetDefault("intake.pdftotext_path", "pdftotext")
	v.SetDefault("intake.user_agent", "fieldcalc/1.0")
	v.SetDefault("intake.timeout_secs", 30)
	v.SetDefault("intake.max_retries", 3)
	v.SetDefault("intake.host_rate", 5)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "fieldcalc.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

// Policy converts the resolve section into an engine policy.
func (rc ResolveConfig) Policy() resolve.Policy {
	return resolve.Policy{
		Epsilon:          rc.Epsilon,
		AbsTolerance:     rc.AbsTolerance,
		MaxPasses:        rc.MaxPasses,
		WriteBack:        rc.WriteBack,
		WriteBackVeryLow: rc.WriteBackVeryLow,
	}
}

// Validate checks that the configuration can support the given mode.
// Modes: "fill" for commands that run the document pipeline, "serve" for
// the HTTP API (fill requirements plus a listen port), and "sync" for the
// Notion schema sync.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "fill":
		errs = append(errs, c.fillErrs()...)
	case "serve":
		errs = append(errs, c.fillErrs()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and < 65536")
		}
	case "sync":
		if c.Notion.Token == "" {
			errs = append(errs, "notion.token is required")
		}
		if c.Notion.FieldDB == "" {
			errs = append(errs, "notion.field_db is required")
		}
		if c.Notion.GroupDB == "" {
			errs = append(errs, "notion.group_db is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	errs = append(errs, c.boundsErrs()...)

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// fillErrs covers everything the document pipeline needs.
func (c *Config) fillErrs() []string {
	var errs []string
	if c.Schema.Path == "" {
		errs = append(errs, "schema.path is required")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	return errs
}

// boundsErrs covers numeric settings shared by every mode.
func (c *Config) boundsErrs() []string {
	var errs []string
	if c.Resolve.Epsilon <= 0 {
		errs = append(errs, "resolve.epsilon must be > 0")
	}
	if c.Resolve.AbsTolerance < 0 {
		errs = append(errs, "resolve.abs_tolerance must be >= 0")
	}
	if c.Resolve.MaxPasses < 1 || c.Resolve.MaxPasses > 100 {
		errs = append(errs, "resolve.max_passes must be between 1 and 100")
	}
	if c.Intake.TimeoutSecs <= 0 {
		errs = append(errs, "intake.timeout_secs must be > 0")
	}
	if c.Intake.HostRate <= 0 {
		errs = append(errs, "intake.host_rate must be > 0")
	}
	if c.Anthropic.MaxTokens <= 0 {
		errs = append(errs, "anthropic.max_tokens must be > 0")
	}
	return errs
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
