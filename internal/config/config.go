package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Auth   AuthConfig
	CORS   CORSConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type DBConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret     string
	JWTExpiry     time.Duration
	AgentToken    string
	AdminEmail    string
	AdminPassword string
}

type CORSConfig struct {
	AllowedOrigins string
}

func Load() (*Config, error) {
	jwtExpiry, err := time.ParseDuration(envOrDefault("ARMADA_JWT_EXPIRY", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid ARMADA_JWT_EXPIRY: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: envOrDefault("ARMADA_HOST", "0.0.0.0"),
			Port: envOrDefault("ARMADA_PORT", "8080"),
		},
		DB: DBConfig{
			Host:     envOrDefault("ARMADA_DB_HOST", "localhost"),
			Port:     envOrDefault("ARMADA_DB_PORT", "5432"),
			Name:     envOrDefault("ARMADA_DB_NAME", "armada"),
			User:     envOrDefault("ARMADA_DB_USER", "armada"),
			Password: envOrDefault("ARMADA_DB_PASSWORD", "armada"),
			SSLMode:  envOrDefault("ARMADA_DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:     envOrDefault("ARMADA_JWT_SECRET", "change-me-in-production"),
			JWTExpiry:     jwtExpiry,
			AgentToken:    envOrDefault("ARMADA_AGENT_TOKEN", "change-me-in-production"),
			AdminEmail:    envOrDefault("ARMADA_ADMIN_EMAIL", "admin@armada.local"),
			AdminPassword: envOrDefault("ARMADA_ADMIN_PASSWORD", "admin"),
		},
		CORS: CORSConfig{
			AllowedOrigins: envOrDefault("ARMADA_CORS_ORIGINS", "http://localhost:3000"),
		},
	}

	return cfg, nil
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
