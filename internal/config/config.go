// Package config loads TerraScope settings from config.yaml, .env and
// TERRASCOPE_ environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/terrascope/terrascope/internal/harvest"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Query   QueryConfig   `yaml:"query" mapstructure:"query"`
	Harvest HarvestConfig `yaml:"harvest" mapstructure:"harvest"`
	Seed    SeedConfig    `yaml:"seed" mapstructure:"seed"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string      `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string      `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32       `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32       `yaml:"min_conns" mapstructure:"min_conns"`
	Mongo       MongoConfig `yaml:"mongo" mapstructure:"mongo"`
	SQLitePath  string      `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// MongoConfig locates the properties collection.
type MongoConfig struct {
	URI        string `yaml:"uri" mapstructure:"uri"`
	Database   string `yaml:"database" mapstructure:"database"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// CacheConfig configures the analytics response cache.
type CacheConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	Prefix        string `yaml:"prefix" mapstructure:"prefix"`
	TTLSecs       int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
	MaxEntries    int    `yaml:"max_entries" mapstructure:"max_entries"`
}

// TTL returns the configured entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSecs) * time.Second
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port                int `yaml:"port" mapstructure:"port"`
	ShutdownTimeoutSecs int `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// QueryConfig bounds list queries.
type QueryConfig struct {
	MaxResults int `yaml:"max_results" mapstructure:"max_results"`
}

// HarvestConfig configures the OSM harvester and shapefile import.
type HarvestConfig struct {
	OverpassURL    string                  `yaml:"overpass_url" mapstructure:"overpass_url"`
	BBox           string                  `yaml:"bbox" mapstructure:"bbox"`
	RatePerSec     float64                 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxRetries     int                     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs    int                     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	TileRows       int                     `yaml:"tile_rows" mapstructure:"tile_rows"`
	TileCols       int                     `yaml:"tile_cols" mapstructure:"tile_cols"`
	Concurrency    int                     `yaml:"concurrency" mapstructure:"concurrency"`
	ShapefileField harvest.ShapefileFields `yaml:"shapefile_fields" mapstructure:"shapefile_fields"`
}

// SeedConfig configures automatic seeding.
type SeedConfig struct {
	Threshold int64  `yaml:"threshold" mapstructure:"threshold"`
	GridSeed  uint64 `yaml:"grid_seed" mapstructure:"grid_seed"`
	OnStart   bool   `yaml:"on_start" mapstructure:"on_start"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads .env, then configuration from file and environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TERRASCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fields := harvest.DefaultShapefileFields()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongo.database", "terrascope")
	v.SetDefault("store.mongo.collection", "properties")
	v.SetDefault("store.sqlite_path", "terrascope.db")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", "terrascope:")
	v.SetDefault("cache.ttl_secs", 60)
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("query.max_results", 2000)
	v.SetDefault("harvest.overpass_url", harvest.DefaultOverpassURL)
	v.SetDefault("harvest.bbox", "-122.402,37.788,-122.392,37.798")
	v.SetDefault("harvest.rate_per_sec", 1.0)
	v.SetDefault("harvest.max_retries", 3)
	v.SetDefault("harvest.timeout_secs", 60)
	v.SetDefault("harvest.tile_rows", 1)
	v.SetDefault("harvest.tile_cols", 1)
	v.SetDefault("harvest.concurrency", 2)
	v.SetDefault("harvest.shapefile_fields.id", fields.ID)
	v.SetDefault("harvest.shapefile_fields.address", fields.Address)
	v.SetDefault("harvest.shapefile_fields.price", fields.Price)
	v.SetDefault("harvest.shapefile_fields.height", fields.Height)
	v.SetDefault("harvest.shapefile_fields.year_built", fields.YearBuilt)
	v.SetDefault("harvest.shapefile_fields.owner", fields.Owner)
	v.SetDefault("harvest.shapefile_fields.land_use", fields.LandUse)
	v.SetDefault("seed.threshold", harvest.DefaultSeedThreshold)
	v.SetDefault("seed.grid_seed", 1)
	v.SetDefault("seed.on_start", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Modes: "serve", "store",
// "harvest".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Query.MaxResults <= 0 {
			errs = append(errs, "query.max_results must be > 0")
		}
		switch c.Cache.Driver {
		case "memory", "none":
		case "redis":
			if c.Cache.RedisAddr == "" {
				errs = append(errs, "cache.redis_addr is required for the redis cache")
			}
		default:
			errs = append(errs, fmt.Sprintf("cache.driver %q must be memory, redis or none", c.Cache.Driver))
		}
		errs = append(errs, c.storeErrors()...)
	case "store":
		errs = append(errs, c.storeErrors()...)
	case "harvest":
		if c.Harvest.OverpassURL == "" {
			errs = append(errs, "harvest.overpass_url is required")
		}
		if c.Harvest.RatePerSec <= 0 {
			errs = append(errs, "harvest.rate_per_sec must be > 0")
		}
		if c.Harvest.Concurrency < 1 || c.Harvest.Concurrency > 16 {
			errs = append(errs, "harvest.concurrency must be between 1 and 16")
		}
		if c.Harvest.TileRows < 1 || c.Harvest.TileCols < 1 {
			errs = append(errs, "harvest.tile_rows and harvest.tile_cols must be >= 1")
		}
		errs = append(errs, c.storeErrors()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) storeErrors() []string {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for the postgres store"}
		}
	case "mongo":
		if c.Store.Mongo.URI == "" {
			return []string{"store.mongo.uri is required for the mongo store"}
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return []string{"store.sqlite_path is required for the sqlite store"}
		}
	default:
		return []string{fmt.Sprintf("store.driver %q must be postgres, mongo or sqlite", c.Store.Driver)}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
