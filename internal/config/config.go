package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server   ServerConfig
	Engine   EngineConfig
	Postgres PostgresConfig
	Redis    RedisConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// EngineConfig carries the reservation engine's knobs. HoldTTL is fixed per
// deployment; it is never accepted from a client.
type EngineConfig struct {
	StorageDriver  string
	HoldTTL        time.Duration
	ReaperInterval time.Duration
	MaxPerHolder   int
}

type RedisConfig struct {
	// Addr empty disables Redis entirely (no cache, pub/sub, rate limit
	// or idempotency store); useful for local memory-driver runs.
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPort, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	driver := os.Getenv("STORAGE_DRIVER")
	if driver == "" {
		driver = DriverPostgres
	}
	if driver != DriverPostgres && driver != DriverMemory {
		return nil, fmt.Errorf("%s: unknown STORAGE_DRIVER %q", op, driver)
	}

	holdTTL, err := durationEnv("HOLD_TTL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reaperInterval, err := durationEnv("REAPER_INTERVAL", 45*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	maxPerHolder, err := intEnv("MAX_PER_HOLDER", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	engineCfg := EngineConfig{
		StorageDriver:  driver,
		HoldTTL:        holdTTL,
		ReaperInterval: reaperInterval,
		MaxPerHolder:   maxPerHolder,
	}

	var postgresCfg PostgresConfig
	if driver == DriverPostgres {
		postgresCfg, err = loadPostgres()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	redisCfg := RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	}

	return &Config{
		Server: ServerConfig{
			Host: serverHost,
			Port: serverPort,
		},
		Engine:   engineCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
	}, nil
}

func loadPostgres() (PostgresConfig, error) {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}

	port, err := intEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return PostgresConfig{}, err
	}

	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_USER")
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_PASSWORD")
	}

	name := os.Getenv("POSTGRES_DB")
	if name == "" {
		return PostgresConfig{}, fmt.Errorf("missing POSTGRES_DB")
	}

	sslMode := os.Getenv("POSTGRES_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	return PostgresConfig{
		User:     user,
		Password: password,
		Name:     name,
		Host:     host,
		Port:     port,
		SSLMode:  sslMode,
	}, nil
}

func intEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
}
