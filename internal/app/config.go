package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/stockpulse/stockpulse/internal/stocks"
)

// Config holds runtime configuration for both binaries.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development" validate:"oneof=development staging production test"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":5000" validate:"required"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	// AppRateLimit caps dashboard requests per IP and minute. The data
	// endpoint is never limited.
	AppRateLimit int `envconfig:"APP_RATE_LIMIT" default:"60" validate:"gte=0"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty" validate:"oneof=pretty json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFile   string `envconfig:"LOG_FILE"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	DBConfig
	DashboardConfig
}

// DBConfig describes the stock database connection.
type DBConfig struct {
	Driver       string        `envconfig:"DB_DRIVER" default:"mysql" validate:"oneof=mysql postgres"`
	Host         string        `envconfig:"DB_HOST" default:"127.0.0.1" validate:"required"`
	Port         int           `envconfig:"DB_PORT" validate:"gte=0,lte=65535"`
	User         string        `envconfig:"DB_USER" default:"root" validate:"required"`
	Password     string        `envconfig:"DB_PASSWORD"`
	Name         string        `envconfig:"DB_NAME" default:"stocks" validate:"required"`
	Table        string        `envconfig:"DB_TABLE" default:"stock_data" validate:"required,sqlident"`
	QueryTimeout time.Duration `envconfig:"DB_QUERY_TIMEOUT" default:"10s" validate:"gte=0"`
	MaxOpenConns int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10" validate:"gte=1"`
}

// PortOrDefault returns the configured port or the driver's well-known one.
func (c DBConfig) PortOrDefault() int {
	if c.Port > 0 {
		return c.Port
	}
	if c.Driver == "postgres" {
		return 5432
	}
	return 3306
}

// DashboardConfig configures the renderer process.
type DashboardConfig struct {
	Addr         string        `envconfig:"DASHBOARD_ADDR" default:":3000" validate:"required"`
	APIURL       string        `envconfig:"DASHBOARD_API_URL" default:"http://127.0.0.1:5000" validate:"required,url"`
	FetchTimeout time.Duration `envconfig:"DASHBOARD_FETCH_TIMEOUT" validate:"gte=0"`
	ZeroBase     string        `envconfig:"DASHBOARD_ZERO_BASE_POLICY" default:"propagate" validate:"oneof=propagate zero"`
	SnapshotTTL  time.Duration `envconfig:"DASHBOARD_SNAPSHOT_TTL" default:"5m" validate:"gte=0"`
	SessionTTL   time.Duration `envconfig:"DASHBOARD_SESSION_TTL" default:"30m" validate:"gte=0"`
	LoadWait     time.Duration `envconfig:"DASHBOARD_LOAD_WAIT" default:"250ms" validate:"gte=0"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.ZeroBase = strings.ToLower(strings.TrimSpace(cfg.ZeroBase))
	return &cfg, nil
}

// ValidateAPI checks the settings the data endpoint needs.
func (c *Config) ValidateAPI() error {
	if c == nil {
		return errors.New("config is nil")
	}
	v := newValidator()
	if err := v.StructPartial(c, "AppEnv", "AppAddr", "AppRateLimit", "LogFormat", "LogLevel"); err != nil {
		return validationError(err)
	}
	if err := v.Struct(c.DBConfig); err != nil {
		return validationError(err)
	}
	return nil
}

// ValidateDashboard checks the settings the renderer needs.
func (c *Config) ValidateDashboard() error {
	if c == nil {
		return errors.New("config is nil")
	}
	v := newValidator()
	if err := v.StructPartial(c, "AppEnv", "AppRateLimit", "LogFormat", "LogLevel"); err != nil {
		return validationError(err)
	}
	if err := v.Struct(c.DashboardConfig); err != nil {
		return validationError(err)
	}
	return nil
}

// ZeroBasePolicy returns the parsed day-on-day policy.
func (c *Config) ZeroBasePolicy() (stocks.ZeroBasePolicy, error) {
	if c == nil {
		return stocks.PropagateNonFinite, nil
	}
	return stocks.ParseZeroBasePolicy(c.ZeroBase)
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return stocks.ValidTableName(fl.Field().String())
	})
	return v
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
