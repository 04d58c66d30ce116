package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/finplan/internal/api"
	"github.com/starford/finplan/internal/catalog"
	"github.com/starford/finplan/internal/finance"
	"github.com/starford/finplan/internal/subscription"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config represents the application configuration.
type Config struct {
	App           ApplicationConfig   `yaml:"app"`
	SQLite        SQLiteConfig        `yaml:"sqlite"`
	Auth          AuthConfig          `yaml:"auth"`
	Simulation    SimulationConfig    `yaml:"simulation"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	ReferenceRate ReferenceRateConfig `yaml:"reference_rate"`
	Events        EventsConfig        `yaml:"events"`
	Notify        NotifyConfig        `yaml:"notify"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.SQLite, &c.Auth, &c.Simulation, &c.Catalog, &c.ReferenceRate, &c.Events, &c.Notify,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//   - "jwt": HS256 Bearer tokens signed with JWTSecret; the tier claim selects features.
type AuthConfig struct {
	Mode        string `yaml:"mode"`
	Token       string `yaml:"token"`
	JWTSecret   string `yaml:"jwt_secret"`
	DefaultTier string `yaml:"default_tier"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = api.AuthDisabled
	}
	if c.DefaultTier == "" {
		c.DefaultTier = string(subscription.Free)
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(api.AuthDisabled, api.AuthToken, api.AuthJWT)),
		validation.Field(&c.DefaultTier, validation.By(func(any) error {
			_, err := subscription.ParseTier(c.DefaultTier)
			return err
		})),
	); err != nil {
		return err
	}
	if c.Mode == api.AuthToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", api.AuthToken)
	}
	if c.Mode == api.AuthJWT && c.JWTSecret == "" {
		return fmt.Errorf("auth: mode is %q but jwt_secret is empty", api.AuthJWT)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == api.AuthToken || c.Mode == api.AuthJWT
}

// API converts the section into the middleware configuration.
func (c *AuthConfig) API() api.AuthConfig {
	tier, err := subscription.ParseTier(c.DefaultTier)
	if err != nil {
		tier = subscription.Free
	}
	return api.AuthConfig{
		Mode:        c.Mode,
		Token:       c.Token,
		JWTSecret:   []byte(c.JWTSecret),
		DefaultTier: tier,
	}
}

// SimulationConfig holds Monte Carlo settings.
type SimulationConfig struct {
	Iterations int         `yaml:"iterations"`
	Cache      CacheConfig `yaml:"cache"`
}

// Validate validates the simulation configuration.
func (c *SimulationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Iterations, validation.Required, validation.Min(1), validation.Max(finance.MaxIterations)),
	); err != nil {
		return err
	}
	return c.Cache.Validate()
}

// CacheConfig selects where simulation results are cached.
type CacheConfig struct {
	Backend   string        `yaml:"backend"`
	Size      int           `yaml:"size"`
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redis_addr"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(CacheMemory, CacheRedis)),
		validation.Field(&c.Size, validation.Min(1)),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
		validation.Field(&c.RedisAddr, validation.When(c.Backend == CacheRedis, validation.Required)),
	)
}

// CatalogConfig holds the interest-rate catalog file location.
type CatalogConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ReferenceRateConfig configures the published key-rate feed.
type ReferenceRateConfig struct {
	Enabled    bool    `yaml:"enabled"`
	URL        string  `yaml:"url"`
	XPath      string  `yaml:"xpath"`
	SOAPBody   string  `yaml:"soap_body"`
	SOAPAction string  `yaml:"soap_action"`
	Margin     float64 `yaml:"margin"`
	Schedule   string  `yaml:"schedule"`
}

// Validate validates the reference rate configuration.
func (c *ReferenceRateConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.XPath, validation.Required),
		validation.Field(&c.Schedule, validation.Required, validation.By(func(any) error {
			return catalog.ValidSchedule(c.Schedule)
		})),
	)
}

// Feed converts the section into the feed configuration.
func (c *ReferenceRateConfig) Feed() catalog.ReferenceConfig {
	return catalog.ReferenceConfig{
		URL:        c.URL,
		XPath:      c.XPath,
		SOAPBody:   c.SOAPBody,
		SOAPAction: c.SOAPAction,
		Margin:     c.Margin,
	}
}

// EventsConfig holds event delivery settings.
type EventsConfig struct {
	// GraphThrottle limits how often analytics.updated reaches SSE clients.
	GraphThrottle time.Duration `yaml:"graph_throttle"`
	AMQPURL       string        `yaml:"amqp_url"`
	AMQPExchange  string        `yaml:"amqp_exchange"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GraphThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.AMQPExchange, validation.When(c.AMQPURL != "", validation.Required)),
	)
}

// NotifyConfig holds SMTP settings for budget alerts.
type NotifyConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Validate validates the notify configuration.
func (c *NotifyConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.From, validation.Required),
		validation.Field(&c.To, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./finplan.db",
		},
		Auth: AuthConfig{
			Mode:        api.AuthDisabled,
			DefaultTier: string(subscription.Free),
		},
		Simulation: SimulationConfig{
			Iterations: finance.DefaultIterations,
			Cache: CacheConfig{
				Backend: CacheMemory,
				Size:    256,
				TTL:     time.Hour,
			},
		},
		Catalog: CatalogConfig{
			Path:  "./config/rates.yaml",
			Watch: true,
		},
		ReferenceRate: ReferenceRateConfig{
			Schedule: "@hourly",
		},
		Events: EventsConfig{
			GraphThrottle: 2 * time.Second,
			AMQPExchange:  "finplan.events",
		},
		Notify: NotifyConfig{
			Port: 587,
		},
	}
}
