package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection URL. Credentials are escaped.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// EncryptionConfig configures field-level encryption. Salt is hex and must be
// generated once per installation (openssl rand -hex 16).
type EncryptionConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	Salt      string `mapstructure:"salt"`
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	GroupID      string        `mapstructure:"group_id"`
	Topics       []string      `mapstructure:"topics"`
	DLQTopic     string        `mapstructure:"dlq_topic"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	DedupTTL     time.Duration `mapstructure:"dedup_ttl"`
	Source       string        `mapstructure:"source"`
}

type SyncConfig struct {
	MaxOperations  int           `mapstructure:"max_operations"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	LockWait       time.Duration `mapstructure:"lock_wait"`
	BatchCacheTTL  time.Duration `mapstructure:"batch_cache_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// DefaultTopics are the payment topics consumed by the event normalizer.
var DefaultTopics = []string{
	"subscription-payments",
	"payment-analytics",
	"subscription-events",
	"payment-transactions",
}

// Load reads configuration from an optional .env file, a YAML file and
// environment variables, in increasing order of precedence. Prefix: ACS_.
// Nested keys use underscore: ACS_DATABASE_HOST, ACS_KAFKA_BROKERS, etc.
// ENCRYPTION_SECRET_KEY and ENCRYPTION_SALT are honoured without prefix.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_body_bytes", 2<<20)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "accounting")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "accounting-sync")
	v.SetDefault("encryption.secret_key", "")
	v.SetDefault("encryption.salt", "")
	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "accounting-payment-consumer")
	v.SetDefault("kafka.topics", DefaultTopics)
	v.SetDefault("kafka.dlq_topic", "payment-events-dlq")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", "500ms")
	v.SetDefault("kafka.dedup_ttl", "72h")
	v.SetDefault("kafka.source", "accounting-sync")
	v.SetDefault("sync.max_operations", 500)
	v.SetDefault("sync.max_concurrency", 1)
	v.SetDefault("sync.batch_timeout", "30s")
	v.SetDefault("sync.lock_ttl", "45s")
	v.SetDefault("sync.lock_wait", "5s")
	v.SetDefault("sync.batch_cache_ttl", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ACS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("encryption.secret_key", "ACS_ENCRYPTION_SECRET_KEY", "ENCRYPTION_SECRET_KEY")
	_ = v.BindEnv("encryption.salt", "ACS_ENCRYPTION_SALT", "ENCRYPTION_SALT")

	// The config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations the service must not start with.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.Encryption.SecretKey == "" {
		errs = append(errs, errors.New("encryption.secret_key is required"))
	}
	salt, err := hex.DecodeString(c.Encryption.Salt)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("encryption.salt must be hex: %w", err))
	case len(salt) < 16:
		errs = append(errs, fmt.Errorf("encryption.salt must be at least 16 bytes, got %d", len(salt)))
	}
	if c.Sync.MaxOperations < 1 {
		errs = append(errs, errors.New("sync.max_operations must be positive"))
	}
	if c.Sync.MaxConcurrency < 1 {
		errs = append(errs, errors.New("sync.max_concurrency must be positive"))
	}
	if c.Sync.LockTTL <= c.Sync.BatchTimeout {
		errs = append(errs, errors.New("sync.lock_ttl must exceed sync.batch_timeout"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}

	return errors.Join(errs...)
}
