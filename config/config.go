package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stocks-simulator/models"
	"stocks-simulator/portfolio"
)

// Config is the application configuration. Values come from defaults, then
// an optional YAML file, then the environment (a .env file is loaded first).
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	// Store selects the ledger backend: "postgres" or "memory".
	Store string   `yaml:"store"`
	DB    DBConfig `yaml:"db"`

	Redis RedisConfig `yaml:"redis"`

	JWTSecret       string        `yaml:"jwt_secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`

	// StartingCash is credited to every new account.
	StartingCash decimal.Decimal `yaml:"starting_cash"`

	Market MarketConfig `yaml:"market"`
}

type DBConfig struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	Name         string        `yaml:"name"`
	SSLMode      string        `yaml:"sslmode"`
	TimeZone     string        `yaml:"timezone"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

type RedisConfig struct {
	// Addr is empty to run without Redis.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MarketConfig struct {
	// Provider is "alphavantage" or "static".
	Provider          string                  `yaml:"provider"`
	APIKey            string                  `yaml:"api_key"`
	BaseURL           string                  `yaml:"base_url"`
	Timeout           time.Duration           `yaml:"timeout"`
	RequestsPerMinute int                     `yaml:"requests_per_minute"`
	QuoteTTL          time.Duration           `yaml:"quote_ttl"`
	Static            map[string]models.Quote `yaml:"static"`
}

func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		LogLevel: "info",
		Store:    "postgres",
		DB: DBConfig{
			Host:         "localhost",
			Port:         "5432",
			SSLMode:      "disable",
			TimeZone:     "UTC",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			QueryTimeout: 5 * time.Second,
		},
		AccessTokenTTL:  24 * time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		StartingCash:    decimal.NewFromInt(10000),
		Market: MarketConfig{
			Provider:          "alphavantage",
			Timeout:           10 * time.Second,
			RequestsPerMinute: 5,
			QuoteTTL:          5 * time.Minute,
		},
	}
}

// Load reads path (skipped when empty or missing) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Warn().Str("path", path).Msg("config file not found, using defaults and environment")
		case err != nil:
			return cfg, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	str("HTTP_ADDR", &c.HTTPAddr)
	str("LOG_LEVEL", &c.LogLevel)
	str("STORE", &c.Store)
	str("DB_HOST", &c.DB.Host)
	str("DB_PORT", &c.DB.Port)
	str("DB_USER", &c.DB.User)
	str("DB_PASSWORD", &c.DB.Password)
	str("DB_NAME", &c.DB.Name)
	str("DB_SSLMODE", &c.DB.SSLMode)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("JWT_SECRET", &c.JWTSecret)
	str("MARKET_PROVIDER", &c.Market.Provider)
	str("ALPHA_VANTAGE_API_KEY", &c.Market.APIKey)

	if v, ok := os.LookupEnv("REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		c.Redis.DB = n
	}
	if v, ok := os.LookupEnv("STARTING_CASH"); ok {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("STARTING_CASH: %w", err)
		}
		c.StartingCash = d
	}
	if v, ok := os.LookupEnv("LOG_JSON"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_JSON: %w", err)
		}
		c.LogJSON = b
	}
	return nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.Market.Provider {
	case "alphavantage":
		if c.Market.APIKey == "" {
			return errors.New("ALPHA_VANTAGE_API_KEY is required for the alphavantage provider")
		}
	case "static":
		if len(c.Market.Static) == 0 {
			return errors.New("market.static must list at least one quote")
		}
	default:
		return fmt.Errorf("unknown market provider %q", c.Market.Provider)
	}
	if c.StartingCash.IsNegative() {
		return errors.New("starting cash cannot be negative")
	}
	if !c.StartingCash.Equal(c.StartingCash.Round(portfolio.MoneyPlaces)) {
		return fmt.Errorf("starting cash has more than %d decimal places", portfolio.MoneyPlaces)
	}
	return nil
}

func (d DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone)
}

// OpenDB connects to PostgreSQL.
func OpenDB(cfg DBConfig, level logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	return db, nil
}

// OpenRedis connects to Redis and checks the connection. It returns nil when
// no address is configured.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}
