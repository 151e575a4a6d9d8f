package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/bike-order-form/internal/kurzy"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (ORDERFORM_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	Rates     RatesConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// RatesConfig selects where exchange rates come from.
type RatesConfig struct {
	URL     string        `default:"https://data.kurzy.cz/json/meny/b6.json" usage:"Exchange rate feed URL" flag:"rates-url"`
	Timeout time.Duration `default:"10s" usage:"Exchange rate feed request timeout, 0 waits forever" flag:"rates-timeout"`
	// Snapshot, when set, replaces the feed with a file written by
	// rates-snapshot.
	Snapshot string `usage:"Read exchange rates from a gzip snapshot instead of the feed" flag:"rates-snapshot"`
}

// SessionConfig controls the per-visitor view state.
type SessionConfig struct {
	TTL        time.Duration `default:"30m" usage:"Idle time after which a visitor's order form is forgotten" flag:"session-ttl"`
	CookieName string        `default:"orderform_session" usage:"Session cookie name" flag:"session-cookie"`
	Secure     bool          `default:"false" usage:"Send the session cookie over HTTPS only" flag:"session-secure"`
}

// RateLimitConfig throttles form posts and quotes per client.
type RateLimitConfig struct {
	Max    int           `default:"60" usage:"Max form posts and quotes per window, 0 disables"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// CORSConfig controls cross-origin access to the JSON API.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Origins allowed to call /api/"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, command line
// flags and YAML config files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(nil, []string{"config.yaml", "/etc/orderform/config.yaml"})
}

func loadConfig(args, files []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDERFORM",
		Args:      args,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults honours the PORT variable set by hosting platforms
// unless the address was configured explicitly.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	if c.Rates.URL == "" {
		c.Rates.URL = kurzy.DefaultURL
	}
}

func (c *Config) validate() error {
	if c.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.RateLimit.Max > 0 && c.RateLimit.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if c.Rates.Timeout < 0 {
		return errors.New("rates timeout must not be negative")
	}
	return nil
}
