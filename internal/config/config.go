package config

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config is loaded from POS_-prefixed environment variables, flags and an
// optional config.yaml. Platform variables PORT and DATABASE_URL are
// honoured when the prefixed ones are unset.
type Config struct {
	Port          string `default:"8080" usage:"HTTP listen port"`
	AllowedOrigin string `default:"http://127.0.0.1:3000" usage:"CORS allowed origin" flag:"allowed-origin"`

	MongoURI      string `default:"" usage:"MongoDB connection URI; takes precedence over DatabaseURL" flag:"mongo-uri"`
	MongoDatabase string `default:"kasirpos" usage:"MongoDB database name" flag:"mongo-database"`
	DatabaseURL   string `default:"" usage:"PostgreSQL connection URL (POS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`

	RedisAddr        string        `default:"" usage:"Redis address for the settings cache" flag:"redis-addr"`
	RedisPassword    string        `default:"" usage:"Redis password" flag:"redis-password"`
	RedisDB          int           `default:"0" usage:"Redis database number" flag:"redis-db"`
	SettingsCacheTTL time.Duration `default:"5m" usage:"How long merchant settings stay cached" flag:"settings-cache-ttl"`

	AuthSecret     string        `default:"" usage:"HMAC secret for access tokens, at least 32 bytes" flag:"auth-secret"`
	AccessTokenTTL time.Duration `default:"8h" usage:"Access token lifetime" flag:"access-token-ttl"`

	Timezone            string  `default:"Asia/Jakarta" usage:"Timezone for report day bounds and labels"`
	DefaultTaxRate      float64 `default:"11" usage:"Tax percent for merchants without saved settings" flag:"default-tax-rate"`
	DefaultDiscountRate float64 `default:"0" usage:"Discount percent for merchants without saved settings" flag:"default-discount-rate"`

	SuperAdminEmail    string `default:"" usage:"Bootstrap superadmin email for persistent stores" flag:"superadmin-email"`
	SuperAdminPassword string `default:"" usage:"Bootstrap superadmin password" flag:"superadmin-password"`

	LogDevelopment bool `default:"false" usage:"Human friendly development logging" flag:"log-development"`
}

func Load() (Config, error) {
	return load(aconfig.Config{
		EnvPrefix: "POS",
		Files:     []string{"config.yaml", "/etc/kasirpos/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func load(ac aconfig.Config) (Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return Config{}, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)

	if cfg.DefaultTaxRate < 0 || cfg.DefaultTaxRate > 100 {
		return Config{}, errors.Errorf("default tax rate %v must be within 0..100", cfg.DefaultTaxRate)
	}
	if cfg.DefaultDiscountRate < 0 || cfg.DefaultDiscountRate > 100 {
		return Config{}, errors.Errorf("default discount rate %v must be within 0..100", cfg.DefaultDiscountRate)
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 8 * time.Hour
	}
	if cfg.SettingsCacheTTL <= 0 {
		cfg.SettingsCacheTTL = 5 * time.Minute
	}
	return cfg, nil
}

func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Port == "8080" {
		c.Port = port
	}
}

// Location resolves Timezone, falling back to a fixed UTC+7 zone when the
// tz database is missing from the host.
func (c Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.FixedZone("WIB", 7*60*60)
}

func (c Config) Address() string {
	return ":" + c.Port
}
