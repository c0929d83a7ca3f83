package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sitewatch/internal/auth"
)

// MinBcryptCost is the lowest password hashing work factor accepted.
const MinBcryptCost = 12

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr            string
		RequestTimeout  time.Duration
		ShutdownTimeout time.Duration
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret  string
		TokenTTL   time.Duration
		BcryptCost int
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("SITEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:3000")
	v.SetDefault("server.requesttimeout", "15s")
	v.SetDefault("server.shutdowntimeout", "10s")
	v.SetDefault("database.path", "data/sitewatch.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttl", auth.DefaultTokenTTL.String())
	v.SetDefault("auth.bcryptcost", MinBcryptCost)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "tick-exports")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// plain JWT_SECRET and PORT are honoured for existing deployments
	_ = v.BindEnv("auth.jwtsecret", "SITEWATCH_AUTH_JWTSECRET", "JWT_SECRET")
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" && os.Getenv("SITEWATCH_SERVER_ADDR") == "" {
		v.Set("server.addr", "0.0.0.0:"+port)
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate reports configuration that must stop the process from serving.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth jwt secret is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth token ttl must be positive"))
	}
	if c.Auth.BcryptCost < MinBcryptCost {
		errs = append(errs, fmt.Errorf("auth bcrypt cost must be at least %d", MinBcryptCost))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	return errors.Join(errs...)
}

// AuthConfig builds the immutable token signing configuration.
func (c Config) AuthConfig() auth.Config {
	return auth.Config{
		Secret: []byte(c.Auth.JWTSecret),
		TTL:    c.Auth.TokenTTL,
	}
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
