package main

import (
	"flag"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/i-egik/NameCount/core"
	serr "github.com/i-egik/NameCount/error"
	"github.com/i-egik/NameCount/platform/cache"
	"github.com/i-egik/NameCount/platform/sqlite"
	"github.com/i-egik/NameCount/platform/stream"
	"github.com/i-egik/NameCount/service/change"
)

// Supported durable stores.
const (
	storeMem      = "mem"
	storePostgres = "postgres"
	storeSQLite   = "sqlite"
)

// Supported change sources.
const (
	sourceNop   = "nop"
	sourceRedis = "redis"
)

const envPrefix = "NAMED"

// Config is the complete process configuration. Values are layered: defaults,
// then the YAML file, then NAMED_ prefixed environment variables, then
// explicitly passed flags.
type Config struct {
	ListenAddr    string `yaml:"listen_addr" split_words:"true"`
	TelemetryAddr string `yaml:"telemetry_addr" split_words:"true"`

	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit" split_words:"true"`
	Redis     RedisConfig     `yaml:"redis"`
	Store     StoreConfig     `yaml:"store"`
	Stream    StreamConfig    `yaml:"stream"`
	Writer    WriterConfig    `yaml:"writer"`
}

// CacheConfig sizes the local tiers.
type CacheConfig struct {
	CatalogCapacity int           `yaml:"catalog_capacity" split_words:"true"`
	CatalogTTL      time.Duration `yaml:"catalog_ttl" split_words:"true"`
	CatalogWarm     bool          `yaml:"catalog_warm" split_words:"true"`
	ValueCapacity   int           `yaml:"value_capacity" split_words:"true"`
	ValueTTL        time.Duration `yaml:"value_ttl" split_words:"true"`
}

// RateLimitConfig bounds mutating requests per client address. A zero Limit
// disables it.
type RateLimitConfig struct {
	Limit  int64         `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// RedisConfig points at the server holding counter values and the change
// stream.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Codec    string `yaml:"codec"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
}

// StoreConfig selects the durable catalog and counter store.
type StoreConfig struct {
	Kind        string `yaml:"kind"`
	PostgresURL string `yaml:"postgres_url" split_words:"true"`
	SQLitePath  string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
}

// StreamConfig describes the change stream and this process' consumer.
type StreamConfig struct {
	Block    time.Duration `yaml:"block"`
	Codec    string        `yaml:"codec"`
	Consumer string        `yaml:"consumer"`
	Count    int64         `yaml:"count"`
	Group    string        `yaml:"group"`
	Key      string        `yaml:"key"`
	Source   string        `yaml:"source"`
}

// WriterConfig tunes the durable writer.
type WriterConfig struct {
	Enabled         bool          `yaml:"enabled"`
	InitialInterval time.Duration `yaml:"initial_interval" split_words:"true"`
	MaxInterval     time.Duration `yaml:"max_interval" split_words:"true"`
	ReadRetries     uint64        `yaml:"read_retries" split_words:"true"`
	SetupRetries    uint64        `yaml:"setup_retries" split_words:"true"`
}

func defaultConfig() *Config {
	return &Config{
		ListenAddr:    ":8083",
		TelemetryAddr: ":9000",
		Cache: CacheConfig{
			CatalogCapacity: cache.DefaultCapacity,
			CatalogTTL:      core.CatalogCacheTTL,
			ValueCapacity:   cache.DefaultCapacity,
			ValueTTL:        cache.DefaultTTL,
		},
		RateLimit: RateLimitConfig{
			Window: time.Minute,
		},
		Redis: RedisConfig{
			Addr:  ":6379",
			Codec: cache.CodecDecimal.String(),
		},
		Store: StoreConfig{
			Kind:       storePostgres,
			SQLitePath: sqlite.DSNMemory,
		},
		Stream: StreamConfig{
			Block:  stream.DefaultBlock,
			Codec:  change.CodecFields.String(),
			Count:  stream.DefaultCount,
			Group:  "durable",
			Key:    change.StreamKey,
			Source: sourceRedis,
		},
		Writer: WriterConfig{
			Enabled:         true,
			InitialInterval: core.DefaultWriterInitialInterval,
			MaxInterval:     core.DefaultWriterMaxInterval,
			ReadRetries:     core.DefaultWriterReadRetries,
			SetupRetries:    core.DefaultWriterSetupRetries,
		},
	}
}

// loadConfig parses args and assembles the layered Config.
func loadConfig(args []string) (*Config, error) {
	var (
		fs    = flag.NewFlagSet("named", flag.ContinueOnError)
		flags = defaultConfig()

		configPath = fs.String("config", "", "YAML file to read configuration from")
	)

	fs.StringVar(&flags.ListenAddr, "listen.addr", flags.ListenAddr, "HTTP bind address for main API")
	fs.StringVar(&flags.TelemetryAddr, "telemetry.addr", flags.TelemetryAddr, "HTTP bind address where prometheus telemetry is exposed")
	fs.BoolVar(&flags.Cache.CatalogWarm, "catalog.warm", flags.Cache.CatalogWarm, "Load all catalog entries into the cache on start")
	fs.Int64Var(&flags.RateLimit.Limit, "ratelimit.limit", flags.RateLimit.Limit, "Mutating requests per client and window, 0 disables limiting")
	fs.StringVar(&flags.Redis.Addr, "redis.addr", flags.Redis.Addr, "Redis address to connect to")
	fs.StringVar(&flags.Redis.Codec, "redis.codec", flags.Redis.Codec, "Codec of counter values stored in Redis (decimal, binary)")
	fs.StringVar(&flags.Store.Kind, "store", flags.Store.Kind, "Durable store (postgres, sqlite, mem)")
	fs.StringVar(&flags.Store.PostgresURL, "postgres.url", flags.Store.PostgresURL, "Postgres URL to connect to")
	fs.StringVar(&flags.Store.SQLitePath, "sqlite.path", flags.Store.SQLitePath, "SQLite database file")
	fs.StringVar(&flags.Stream.Codec, "stream.codec", flags.Stream.Codec, "Codec of change events (fields, strings, packed)")
	fs.StringVar(&flags.Stream.Consumer, "stream.consumer", flags.Stream.Consumer, "Consumer name within the group, defaults to the hostname")
	fs.StringVar(&flags.Stream.Group, "stream.group", flags.Stream.Group, "Consumer group of the durable writer")
	fs.StringVar(&flags.Stream.Source, "source", flags.Stream.Source, "Source type used for change propagation (redis, nop)")
	fs.BoolVar(&flags.Writer.Enabled, "writer", flags.Writer.Enabled, "Run the durable writer in this process")

	if err := fs.Parse(args); err != nil {
		return nil, serr.Wrap(serr.ErrInvalidInput, "flags: %s", err)
	}

	cfg := defaultConfig()

	if *configPath != "" {
		if err := loadConfigFile(*configPath, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, serr.Wrap(serr.ErrInvalidInput, "environment: %s", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen.addr":
			cfg.ListenAddr = flags.ListenAddr
		case "telemetry.addr":
			cfg.TelemetryAddr = flags.TelemetryAddr
		case "catalog.warm":
			cfg.Cache.CatalogWarm = flags.Cache.CatalogWarm
		case "ratelimit.limit":
			cfg.RateLimit.Limit = flags.RateLimit.Limit
		case "redis.addr":
			cfg.Redis.Addr = flags.Redis.Addr
		case "redis.codec":
			cfg.Redis.Codec = flags.Redis.Codec
		case "store":
			cfg.Store.Kind = flags.Store.Kind
		case "postgres.url":
			cfg.Store.PostgresURL = flags.Store.PostgresURL
		case "sqlite.path":
			cfg.Store.SQLitePath = flags.Store.SQLitePath
		case "stream.codec":
			cfg.Stream.Codec = flags.Stream.Codec
		case "stream.consumer":
			cfg.Stream.Consumer = flags.Stream.Consumer
		case "stream.group":
			cfg.Stream.Group = flags.Stream.Group
		case "source":
			cfg.Stream.Source = flags.Stream.Source
		case "writer":
			cfg.Writer.Enabled = flags.Writer.Enabled
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return serr.Wrap(serr.ErrInvalidInput, "config file: %s", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		return serr.Wrap(serr.ErrInvalidInput, "config file %s: %s", path, err)
	}

	return nil
}

// Validate rejects unknown store, source and codec names.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case storeMem, storeSQLite:
	case storePostgres:
		if c.Store.PostgresURL == "" {
			return serr.Wrap(serr.ErrInvalidInput, "postgres store needs a url")
		}
	default:
		return serr.Wrap(serr.ErrInvalidInput, "store '%s' not supported", c.Store.Kind)
	}

	switch c.Stream.Source {
	case sourceNop, sourceRedis:
	default:
		return serr.Wrap(serr.ErrInvalidInput, "source '%s' not supported", c.Stream.Source)
	}

	if _, err := cache.CodecByName(c.Redis.Codec); err != nil {
		return serr.Wrap(serr.ErrInvalidInput, "%s", err)
	}

	if _, err := change.CodecByName(c.Stream.Codec); err != nil {
		return serr.Wrap(serr.ErrInvalidInput, "%s", err)
	}

	if c.RateLimit.Limit < 0 || c.RateLimit.Window < time.Second {
		return serr.Wrap(serr.ErrInvalidInput, "rate limit needs a positive limit and a window of at least 1s")
	}

	if c.Stream.Group == "" {
		return serr.Wrap(serr.ErrInvalidInput, "stream group must be set")
	}

	return nil
}
