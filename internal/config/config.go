package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	backendConfig "github.com/iurnickita/posmart/internal/backend/config"
	handlerConfig "github.com/iurnickita/posmart/internal/handler/config"
	loggerConfig "github.com/iurnickita/posmart/internal/logger/config"
	storeConfig "github.com/iurnickita/posmart/internal/store/config"
	tokenConfig "github.com/iurnickita/posmart/internal/token/config"
)

type Config struct {
	Handler handlerConfig.Config `yaml:"server"`
	Backend backendConfig.Config `yaml:"backend"`
	Store   storeConfig.Config   `yaml:"store"`
	Logger  loggerConfig.Config  `yaml:"log"`
	Token   tokenConfig.Config   `yaml:"token"`
}

func defaults() Config {
	return Config{
		Handler: handlerConfig.Config{ServerAddr: ":8080"},
		Backend: backendConfig.Config{BaseURL: "http://localhost:5000/api"},
		Store:   storeConfig.Config{Driver: storeConfig.DriverMemory, Namespace: "posmart"},
		Logger:  loggerConfig.Config{LogLevel: "info"},
		Token:   tokenConfig.Config{TTL: 12 * time.Hour},
	}
}

// GetConfig layers defaults, the optional YAML file at path and POS_*
// environment variables, in that order.
func GetConfig(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := fromEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	setString("POS_SERVER_ADDR", &cfg.Handler.ServerAddr)
	setString("POS_BACKEND_URL", &cfg.Backend.BaseURL)
	setString("POS_STORE_DRIVER", &cfg.Store.Driver)
	setString("POS_STORE_DSN", &cfg.Store.DBDsn)
	setString("POS_STORE_NAMESPACE", &cfg.Store.Namespace)
	setString("POS_REDIS_ADDR", &cfg.Store.RedisAddr)
	setString("POS_LOG_LEVEL", &cfg.Logger.LogLevel)
	setString("POS_TOKEN_SECRET", &cfg.Token.Secret)

	if v, ok := os.LookupEnv("POS_REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("POS_REDIS_DB: %w", err)
		}
		cfg.Store.RedisDB = db
	}
	if v, ok := os.LookupEnv("POS_TOKEN_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("POS_TOKEN_TTL: %w", err)
		}
		cfg.Token.TTL = ttl
	}
	return nil
}
