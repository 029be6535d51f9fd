package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinkaiteo/edms/internal/identity"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "EDMS"
	configFileName = "edms"
)

type Config struct {
	Database      DatabaseConfig     `mapstructure:"database"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Kafka         KafkaConfig        `mapstructure:"kafka"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Sweep         SweepConfig        `mapstructure:"sweep"`
	Emitter       EmitterConfig      `mapstructure:"emitter"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Log           LogConfig          `mapstructure:"log"`
	Users         []identity.User    `mapstructure:"users"`
}

// DatabaseConfig selects the gorm dialect. Path is used by sqlite only.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
	LogLevel string `mapstructure:"log_level"`
}

// RedisConfig enables the capability cache when Addr is set.
type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	CapabilityTTL time.Duration `mapstructure:"capability_ttl"`
	FlushSchedule string        `mapstructure:"flush_schedule"`
}

// KafkaConfig enables the audit forwarder when Brokers is non-empty.
type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	AuditTopic  string   `mapstructure:"audit_topic"`
	Compression string   `mapstructure:"compression"`
}

// NotificationConfig picks the watermill publisher: "gochannel" or "kafka".
type NotificationConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Publisher string `mapstructure:"publisher"`
	Topic     string `mapstructure:"topic"`
}

type SweepConfig struct {
	EffectiveSchedule    string        `mapstructure:"effective_schedule"`
	ObsolescenceSchedule string        `mapstructure:"obsolescence_schedule"`
	Timeout              time.Duration `mapstructure:"timeout"`
	ReconcileInterval    time.Duration `mapstructure:"reconcile_interval"`
}

type EmitterConfig struct {
	QueueSize       int           `mapstructure:"queue_size"`
	MaxRetries      uint64        `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "edms")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "edms")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", ".data/edms.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.capability_ttl", 5*time.Minute)
	v.SetDefault("redis.flush_schedule", "@every 1h")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.audit_topic", "edms.transitions")
	v.SetDefault("kafka.compression", "gzip")

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.publisher", "gochannel")
	v.SetDefault("notifications.topic", "edms.notifications")

	v.SetDefault("sweep.effective_schedule", "@every 1m")
	v.SetDefault("sweep.obsolescence_schedule", "@every 1m")
	v.SetDefault("sweep.timeout", 30*time.Second)
	v.SetDefault("sweep.reconcile_interval", 10*time.Minute)

	v.SetDefault("emitter.queue_size", 1024)
	v.SetDefault("emitter.max_retries", 5)
	v.SetDefault("emitter.initial_interval", 200*time.Millisecond)
	v.SetDefault("emitter.max_interval", 5*time.Second)
	v.SetDefault("emitter.delivery_timeout", 10*time.Second)

	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads defaults, an optional edms.yml from the working directory or
// ./config, and EDMS_* environment variables, in increasing precedence.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetConfigName(configFileName)
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfig loads the process configuration and exits on error.
func LoadConfig() *Config {
	cfg, err := Load(viper.New())
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Notifications.Publisher {
	case "gochannel", "kafka":
	default:
		return fmt.Errorf("unsupported notification publisher %q", c.Notifications.Publisher)
	}
	if c.Notifications.Publisher == "kafka" && len(c.Kafka.Brokers) == 0 {
		return errors.New("notifications.publisher kafka needs kafka.brokers")
	}

	seen := make(map[string]struct{}, len(c.Users))
	for _, u := range c.Users {
		if u.ID == "" {
			return errors.New("user without id in config")
		}
		if _, ok := seen[u.ID]; ok {
			return fmt.Errorf("duplicate user %q in config", u.ID)
		}
		seen[u.ID] = struct{}{}
	}

	return nil
}
