// Package config loads server configuration from BIZREG_* environment
// variables and an optional config file. Every setting has a default that
// lets the server run fully in memory.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	strutil "bizreg/pkg/platform/strings"
)

const envPrefix = "BIZREG"

// DevSigningKey is the fallback signing key. Load refuses it in production.
const DevSigningKey = "dev-secret-key-change-in-production"

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Draft    DraftConfig
	Kafka    KafkaConfig
}

type ServerConfig struct {
	Addr           string
	Environment    string
	RequestTimeout time.Duration
}

// DatabaseConfig selects Postgres when URL is set; drafts stay in memory otherwise.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig selects Redis for revocations and idempotency keys when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StorageConfig selects filesystem object storage when Dir is set.
type StorageConfig struct {
	Dir           string
	PublicBaseURL string
}

type AuthConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	TokenTTL   time.Duration
	DevAuth    bool
}

type DraftConfig struct {
	MaxUploadBytes    int64
	MaxRequestBytes   int64
	TxTimeout         time.Duration
	UploadConcurrency int
	IdempotencyTTL    time.Duration
}

// KafkaConfig selects the Kafka audit sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	Partitions int32
	Replicas   int16
}

func (c Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load reads configuration. configFile may be empty.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:           v.GetString("server.addr"),
			Environment:    v.GetString("server.environment"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			DialTimeout:  v.GetDuration("redis.dial_timeout"),
			ReadTimeout:  v.GetDuration("redis.read_timeout"),
			WriteTimeout: v.GetDuration("redis.write_timeout"),
		},
		Storage: StorageConfig{
			Dir:           v.GetString("storage.dir"),
			PublicBaseURL: strings.TrimRight(v.GetString("storage.public_base_url"), "/"),
		},
		Auth: AuthConfig{
			SigningKey: v.GetString("auth.signing_key"),
			Issuer:     v.GetString("auth.issuer"),
			Audience:   v.GetString("auth.audience"),
			TokenTTL:   v.GetDuration("auth.token_ttl"),
			DevAuth:    v.GetBool("dev_auth"),
		},
		Draft: DraftConfig{
			MaxUploadBytes:    v.GetInt64("draft.max_upload_bytes"),
			MaxRequestBytes:   v.GetInt64("draft.max_request_bytes"),
			TxTimeout:         v.GetDuration("draft.tx_timeout"),
			UploadConcurrency: v.GetInt("draft.upload_concurrency"),
			IdempotencyTTL:    v.GetDuration("draft.idempotency_ttl"),
		},
		Kafka: KafkaConfig{
			Brokers:    strutil.SplitList(v.GetString("kafka.brokers"), ","),
			Topic:      v.GetString("kafka.topic"),
			Partitions: v.GetInt32("kafka.partitions"),
			Replicas:   int16(v.GetInt("kafka.replicas")),
		},
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.request_timeout", 60*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("storage.dir", "")
	v.SetDefault("storage.public_base_url", "http://localhost:8080")

	v.SetDefault("auth.signing_key", DevSigningKey)
	v.SetDefault("auth.issuer", "bizreg")
	v.SetDefault("auth.audience", "bizreg-api")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("dev_auth", false)

	v.SetDefault("draft.max_upload_bytes", 5<<20)
	v.SetDefault("draft.max_request_bytes", 64<<20)
	v.SetDefault("draft.tx_timeout", 10*time.Second)
	v.SetDefault("draft.upload_concurrency", 4)
	v.SetDefault("draft.idempotency_ttl", 24*time.Hour)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "bizreg.audit")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.replicas", 1)
}

func (c Config) validate() error {
	if c.IsProduction() {
		if c.Auth.SigningKey == DevSigningKey {
			return errors.New("BIZREG_AUTH_SIGNING_KEY must be set in production")
		}
		if c.Auth.DevAuth {
			return errors.New("BIZREG_DEV_AUTH cannot be enabled in production")
		}
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth token ttl must be positive")
	}
	if c.Draft.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}
	if c.Draft.TxTimeout <= 0 {
		return errors.New("transaction timeout must be positive")
	}
	return nil
}
