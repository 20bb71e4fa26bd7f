package config

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix, e.g. GLUCOSE_DB_HOST. Field
// names carry no envconfig tags so the unprefixed fallback (USER, HOST)
// never applies.
const Prefix = "GLUCOSE"

// Config is the process configuration, read from the environment.
type Config struct {
	DB      DatabaseConfig
	Load    LoadConfig
	Notify  NotifyConfig
	Gateway GatewayConfig
	Log     LogConfig
}

// DatabaseConfig holds the destination database settings. There is no
// default password; it must come from the environment.
type DatabaseConfig struct {
	Host     string `default:"localhost" validate:"required"`
	Port     int    `default:"5432" validate:"min=1,max=65535"`
	User     string `default:"postgres" validate:"required"`
	Password string `validate:"required"`
	Name     string `default:"patient_data" validate:"required"`
	SSLMode  string `default:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	LogLevel string `split_words:"true" default:"warn" validate:"oneof=silent error warn info"`
}

// DSN returns a postgres URL for the database.
func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// LoadConfig controls a single batch load.
type LoadConfig struct {
	Source        string `default:"patient_data.csv"`
	Sheet         string
	OnConflict    string            `split_words:"true" default:"reject" validate:"oneof=reject skip upsert"`
	BatchSize     int               `split_words:"true" default:"500" validate:"min=1"`
	ColumnAliases map[string]string `split_words:"true"`
}

// NotifyConfig selects where the load-completed event goes.
type NotifyConfig struct {
	Backend string   `default:"none" validate:"oneof=none sqs kafka"`
	Queue   string   `default:"glucose-etl-queue" validate:"required_if=Backend sqs"`
	Brokers []string `default:"kafka:9092" validate:"required_if=Backend kafka"`
	Topic   string   `default:"glucose-loads" validate:"required_if=Backend kafka"`
}

type GatewayConfig struct {
	Addr string `default:":8080" validate:"required"`
}

type LogConfig struct {
	Level  string `default:"info" validate:"oneof=debug info warn error"`
	Format string `default:"json" validate:"oneof=json console"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
