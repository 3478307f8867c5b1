package config

import (
	"fmt"
	"os"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port        string `yaml:"port"`
	BindAddress string `yaml:"bind_address"`
	JWTSecret   string `yaml:"jwt_secret"`
	Database    struct {
		Driver   string `yaml:"driver"` // "postgres" or "sqlite"
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		Path     string `yaml:"path"` // sqlite file
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Load reads the optional YAML file at path, then applies environment
// overrides. A missing file is not an error; env-only setups are common.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", orDefault(cfg.Port, "8080"))
	cfg.BindAddress = getEnv("BIND_ADDRESS", orDefault(cfg.BindAddress, ""))
	cfg.JWTSecret = getEnv("JWT_SECRET", orDefault(cfg.JWTSecret, "change-this-in-production"))
	cfg.Database.Driver = getEnv("DB_DRIVER", orDefault(cfg.Database.Driver, "sqlite"))
	cfg.Database.Host = getEnv("DB_HOST", orDefault(cfg.Database.Host, "localhost"))
	cfg.Database.Port = getEnv("DB_PORT", orDefault(cfg.Database.Port, "5432"))
	cfg.Database.User = getEnv("DB_USER", orDefault(cfg.Database.User, "quizverse"))
	cfg.Database.Password = getEnv("DB_PASSWORD", orDefault(cfg.Database.Password, "quizverse"))
	cfg.Database.Name = getEnv("DB_NAME", orDefault(cfg.Database.Name, "quizverse"))
	cfg.Database.Path = getEnv("DB_PATH", orDefault(cfg.Database.Path, "quizverse.db"))
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// InitDB opens the configured database. TranslateError is on so unique-index
// races surface as gorm.ErrDuplicatedKey instead of driver-specific errors.
func InitDB(cfg *Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{TranslateError: true}

	switch cfg.Database.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.Database.Host, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.Port)
		db, err := gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return db, nil
	case "sqlite", "":
		db, err := gorm.Open(sqlite.Open(cfg.Database.Path), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// InitRedis returns a client for the proctor feed, or nil when Redis is not
// configured; the feed then runs in-process.
func InitRedis(cfg *Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
