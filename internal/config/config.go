package config

import (
	"banksim/internal/models"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BANKSIM_CUSTOMERS.
const EnvPrefix = "BANKSIM"

var ErrInvalid = errors.New("invalid configuration")

type (
	Config struct {
		Customers     int    `mapstructure:"customers"`
		Acceleration  int    `mapstructure:"acceleration"`
		MinDelay      int    `mapstructure:"min_delay"`
		MaxDelay      int    `mapstructure:"max_delay"`
		Seed          int64  `mapstructure:"seed"`
		QueueCapacity int    `mapstructure:"queue_capacity"`
		Dataset       string `mapstructure:"dataset"`
		Store         bool   `mapstructure:"store"`
		Log           Log    `mapstructure:"log"`
		DB            DB     `mapstructure:"db"`
		HTTP          HTTP   `mapstructure:"http"`
	}

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	}

	DB struct {
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	}

	HTTP struct {
		Addr       string `mapstructure:"addr"`
		RatePerMin int    `mapstructure:"rate_per_min"`
	}
)

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("customers", 100)
	v.SetDefault("acceleration", 1)
	v.SetDefault("min_delay", 1)
	v.SetDefault("max_delay", 5)
	v.SetDefault("seed", 0)
	v.SetDefault("queue_capacity", 0)
	v.SetDefault("dataset", "")
	v.SetDefault("store", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.dsn", "banksim.db")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.rate_per_min", 10)
}

// Load resolves the configuration from defaults, an optional config file,
// a .env file and BANKSIM_* environment variables, in increasing priority.
// Flags bound to v by the caller win over all of them.
func Load(v *viper.Viper, file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %q", file)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.Customers <= 0 || cfg.Customers > models.MaxCustomers {
		return errors.Wrapf(ErrInvalid, "customers must be between 1 and %d", models.MaxCustomers)
	}
	if cfg.MinDelay < 0 || cfg.MaxDelay < cfg.MinDelay {
		return errors.Wrapf(ErrInvalid, "invalid delay bounds [%d, %d]", cfg.MinDelay, cfg.MaxDelay)
	}
	if cfg.QueueCapacity < 0 || cfg.QueueCapacity > cfg.Customers {
		return errors.Wrapf(ErrInvalid, "queue_capacity must be between 0 and customers (%d)", cfg.Customers)
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return errors.Wrapf(ErrInvalid, "log.level: %v", err)
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return errors.Wrapf(ErrInvalid, "log.format must be text or json, got %q", cfg.Log.Format)
	}
	if cfg.DB.Driver != "sqlite3" && cfg.DB.Driver != "pgx" {
		return errors.Wrapf(ErrInvalid, "db.driver must be sqlite3 or pgx, got %q", cfg.DB.Driver)
	}
	if cfg.HTTP.RatePerMin <= 0 {
		return errors.Wrap(ErrInvalid, "http.rate_per_min must be > 0")
	}
	return nil
}
