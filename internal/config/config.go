package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL         string   `mapstructure:"REDIS_URL"`
	KafkaBrokers     string   `mapstructure:"KAFKA_BROKERS"`
	KafkaUsersTopic  string   `mapstructure:"KAFKA_USERS_TOPIC"`
	KafkaGroupID     string   `mapstructure:"KAFKA_GROUP_ID"`
	SchedulableRoles []string `mapstructure:"SCHEDULABLE_ROLES"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("KAFKA_USERS_TOPIC", "auth.users")
	v.SetDefault("KAFKA_GROUP_ID", "registry-service-users-group")
	v.SetDefault("SCHEDULABLE_ROLES", "doctor,admin")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("KAFKA_BROKERS")
	v.BindEnv("KAFKA_USERS_TOPIC")
	v.BindEnv("KAFKA_GROUP_ID")
	v.BindEnv("SCHEDULABLE_ROLES")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.SchedulableRoles == nil {
		cfg.SchedulableRoles = splitList(v.GetString("SCHEDULABLE_ROLES"))
	}
	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if len(c.SchedulableRoles) == 0 {
		return fmt.Errorf("SCHEDULABLE_ROLES must name at least one role allowed to own schedules")
	}
	if c.KafkaBrokers != "" && c.KafkaUsersTopic == "" {
		return fmt.Errorf("KAFKA_USERS_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
