package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type Config struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=8002"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	BusDriver     string `env:"BUS_DRIVER,default=redis"`
	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
	ChannelPrefix string `env:"CHANNEL_PREFIX,default=relay"`

	StoreDriver     string `env:"STORE_DRIVER,default=mongo"`
	MongoURI        string `env:"MONGO_URI,default=mongodb://localhost:27017"`
	MongoDatabase   string `env:"MONGO_DATABASE,default=chat_db"`
	MongoCollection string `env:"MONGO_COLLECTION,default=messages"`

	StoreTimeout    time.Duration `env:"STORE_TIMEOUT,default=5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.BusDriver {
	case DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("config error: unknown BUS_DRIVER %q", c.BusDriver)
	}

	switch c.StoreDriver {
	case DriverMongo, DriverMemory:
	default:
		return fmt.Errorf("config error: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.ChannelPrefix == "" {
		return fmt.Errorf("config error: CHANNEL_PREFIX cannot be empty")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("config error: STORE_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type ClientConfig struct {
	RelayURL string `env:"RELAY_URL,default=http://localhost:8002"`
	LogLevel string `env:"LOG_LEVEL,default=error"`
}

func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	var cfg ClientConfig
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return &cfg, nil
}
