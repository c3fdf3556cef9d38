package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/gmelo/transferapi/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8080"
	defaultLoggingLevel    = logger.LevelInfo
	defaultRegistryAddr    = "http://localhost:9080"
	defaultBacenAddr       = "http://localhost:9090"
	defaultEnvironment     = logger.EnvProduction
	defaultClientCacheTTL  = 5 * time.Minute
	defaultBalanceCacheTTL = 10 * time.Second
	defaultBacenRate       = 10.0
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the transfer service will be run
	ListenAddr string

	// Client registry ("cadastro") service base URL
	RegistryAddr string

	// BACEN notification service base URL
	BacenAddr string

	// Database to connect to
	DatabaseDSN string

	// Environment
	Environment string

	// How long registry client lookups stay cached
	ClientCacheTTL time.Duration

	// How long balance views stay cached
	BalanceCacheTTL time.Duration

	// Outbound BACEN call budget, calls per second
	BacenRatePerSecond float64
}

func NewConfig() *Config {
	return &Config{
		LogLevel:           defaultLoggingLevel,
		ListenAddr:         defaultListenAddr,
		RegistryAddr:       defaultRegistryAddr,
		BacenAddr:          defaultBacenAddr,
		Environment:        defaultEnvironment,
		ClientCacheTTL:     defaultClientCacheTTL,
		BalanceCacheTTL:    defaultBalanceCacheTTL,
		BacenRatePerSecond: defaultBacenRate,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if d, err := time.ParseDuration(value); err == nil {
				*o = d
			}
		}
	}
	setFloat := func(o *float64) func(value string) {
		return func(value string) {
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				*o = f
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":           setString(&c.ListenAddr),
		"DATABASE_URI":          setString(&c.DatabaseDSN),
		"REGISTRY_ADDRESS":      setString(&c.RegistryAddr),
		"BACEN_ADDRESS":         setString(&c.BacenAddr),
		"LOG_LEVEL":             setString(&c.LogLevel),
		"ENVIRONMENT":           setString(&c.Environment),
		"CLIENT_CACHE_TTL":      setDuration(&c.ClientCacheTTL),
		"BALANCE_CACHE_TTL":     setDuration(&c.BalanceCacheTTL),
		"BACEN_RATE_PER_SECOND": setFloat(&c.BacenRatePerSecond),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("transferapi", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.RegistryAddr, "registry", "r", c.RegistryAddr, "Client registry service base URL")
	fs.StringVarP(&c.BacenAddr, "bacen", "b", c.BacenAddr, "BACEN notification service base URL")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.DurationVar(&c.ClientCacheTTL, "client-cache-ttl", c.ClientCacheTTL, "Registry lookup cache TTL")
	fs.DurationVar(&c.BalanceCacheTTL, "balance-cache-ttl", c.BalanceCacheTTL, "Balance view cache TTL")
	fs.Float64Var(&c.BacenRatePerSecond, "bacen-rate", c.BacenRatePerSecond, "Outbound BACEN calls per second")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("database DSN is required")
	}
	return nil
}
