package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i-egik/NameCount/core"
	handler "github.com/i-egik/NameCount/handler/http"
	"github.com/i-egik/NameCount/platform/cache"
	"github.com/i-egik/NameCount/platform/limiter"
	"github.com/i-egik/NameCount/platform/metrics"
	"github.com/i-egik/NameCount/platform/pg"
	"github.com/i-egik/NameCount/platform/redis"
	"github.com/i-egik/NameCount/platform/service"
	"github.com/i-egik/NameCount/platform/sqlite"
	"github.com/i-egik/NameCount/platform/stream"
	"github.com/i-egik/NameCount/service/catalog"
	"github.com/i-egik/NameCount/service/change"
	"github.com/i-egik/NameCount/service/counter"
)

// Logging and telemetry identifiers.
const (
	component        = "named"
	namespaceCache   = "cache"
	namespaceService = "service"
	namespaceSource  = "source"
	storeCache       = "redis"
)

// Prefixes.
const (
	prefixRateLimiter = "ratelimiter:client"
)

// Versions.
const (
	versionCurrent = "0.1"
)

// Timeouts
const (
	defaultReadTimeout     = 2 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultWriteTimeout    = 3 * time.Second
)

// Buildtime vars.
var (
	revision = "0000000-dev"
)

func main() {
	begin := time.Now()

	// Setup logging.
	logger := log.With(
		log.NewJSONLogger(log.NewSyncWriter(os.Stdout)),
		"caller", log.Caller(3),
		"component", component,
		"revision", revision,
	)

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		_ = logger.Log("err", err, "lifecycle", "abort")
		os.Exit(1)
	}

	hostname, err := os.Hostname()
	if err != nil {
		_ = logger.Log("err", err, "lifecycle", "abort")
	}

	logger = log.With(logger, "host", hostname)

	if cfg.Stream.Consumer == "" {
		cfg.Stream.Consumer = hostname
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup instrumentation.
	go func(addr string) {
		_ = logger.Log(
			"duration", time.Since(begin).Nanoseconds(),
			"lifecycle", "start",
			"listen", addr,
			"sub", "telemetry",
		)

		m := http.NewServeMux()
		m.Handle("/metrics", promhttp.Handler())

		err := http.ListenAndServe(addr, m)
		if err != nil {
			_ = logger.Log("err", err, "lifecycle", "abort", "sub", "telemetry")
			os.Exit(1)
		}
	}(cfg.TelemetryAddr)

	cacheErrCount, cacheOpCount, cacheOpLatency := metrics.KeyMetrics(
		namespaceCache,
		metrics.FieldComponent,
		metrics.FieldMethod,
		metrics.FieldStore,
	)

	cacheHitCount, cacheMissCount := metrics.HitMetrics(
		namespaceCache,
		metrics.FieldComponent,
		metrics.FieldMethod,
		metrics.FieldStore,
	)

	serviceErrCount, serviceOpCount, serviceOpLatency := metrics.KeyMetrics(
		namespaceService,
		metrics.FieldComponent,
		metrics.FieldMethod,
		metrics.FieldService,
		metrics.FieldStore,
	)

	sourceFieldKeys := []string{
		metrics.FieldComponent,
		metrics.FieldMethod,
		metrics.FieldSource,
		metrics.FieldStore,
	}

	sourceErrCount, sourceOpCount, sourceOpLatency := metrics.KeyMetrics(
		namespaceSource,
		sourceFieldKeys...,
	)

	sourceQueueLatency := metrics.QueueLatency(namespaceSource, sourceFieldKeys...)

	// Setup clients.
	var (
		redisPool    = redis.Pool(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		streamClient = stream.Client(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		valueCodec   cache.Codec
		eventCodec   change.Codec
	)
	defer redisPool.Close()
	defer streamClient.Close()

	// Validated with the config.
	valueCodec, _ = cache.CodecByName(cfg.Redis.Codec)
	eventCodec, _ = change.CodecByName(cfg.Stream.Codec)

	// Setup services.
	var (
		catalogs catalog.Service
		counters counter.Service
		checks   = map[string]handler.HealthCheck{
			"redis": func(context.Context) error {
				return redis.Ping(redisPool)
			},
		}
	)

	switch cfg.Store.Kind {
	case storeMem:
		catalogs = catalog.MemService()
		counters = counter.MemService()
	case storePostgres:
		db, err := sqlx.Connect(storePostgres, cfg.Store.PostgresURL)
		if err != nil {
			_ = logger.Log("err", err, "lifecycle", "abort")
			os.Exit(1)
		}
		defer db.Close()

		catalogs = catalog.PostgresService(db, pg.DefaultNamespace)
		counters = counter.PostgresService(db, pg.DefaultNamespace)
		checks[storePostgres] = db.PingContext
	case storeSQLite:
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			_ = logger.Log("err", err, "lifecycle", "abort")
			os.Exit(1)
		}
		defer db.Close()

		catalogs = catalog.SQLiteService(db)
		counters = counter.SQLiteService(db)
		checks[storeSQLite] = db.PingContext
	}

	catalogs = catalog.InstrumentServiceMiddleware(
		component,
		cfg.Store.Kind,
		serviceErrCount,
		serviceOpCount,
		serviceOpLatency,
	)(catalogs)
	catalogs = catalog.LogServiceMiddleware(logger, cfg.Store.Kind)(catalogs)

	counters = counter.InstrumentServiceMiddleware(
		component,
		cfg.Store.Kind,
		serviceErrCount,
		serviceOpCount,
		serviceOpLatency,
	)(counters)
	counters = counter.LogServiceMiddleware(logger, cfg.Store.Kind)(counters)

	for _, s := range []service.Lifecycle{catalogs, counters} {
		if err := s.Setup(ctx); err != nil {
			_ = logger.Log("err", err, "lifecycle", "abort")
			os.Exit(1)
		}
	}

	// Setup sources.
	var source change.Source

	switch cfg.Stream.Source {
	case sourceNop:
		source = change.NopSource()
	case sourceRedis:
		source = change.RedisSource(streamClient, change.RedisOptions{
			Block:    cfg.Stream.Block,
			Codec:    eventCodec,
			Consumer: cfg.Stream.Consumer,
			Count:    cfg.Stream.Count,
			Group:    cfg.Stream.Group,
			Stream:   cfg.Stream.Key,
		})
		checks["stream"] = func(ctx context.Context) error {
			return streamClient.Ping(ctx).Err()
		}
	}

	source = change.InstrumentSourceMiddleware(
		component,
		cfg.Stream.Source,
		sourceErrCount,
		sourceOpCount,
		sourceOpLatency,
		sourceQueueLatency,
	)(source)
	source = change.LogSourceMiddleware(cfg.Stream.Source, logger)(source)

	// Setup caches.
	var counts cache.CountService
	counts = cache.RedisCountService(redisPool, valueCodec, logger)
	counts = cache.InstrumentCountServiceMiddleware(
		component,
		storeCache,
		cacheErrCount,
		cacheHitCount,
		cacheMissCount,
		cacheOpCount,
		cacheOpLatency,
	)(counts)
	counts = cache.LogCountServiceMiddleware(logger, storeCache)(counts)

	ids, err := core.CatalogCache(ctx, catalogs, core.CatalogCacheOptions{
		Capacity: cfg.Cache.CatalogCapacity,
		TTL:      cfg.Cache.CatalogTTL,
		Warm:     cfg.Cache.CatalogWarm,
	})
	if err != nil {
		_ = logger.Log("err", err, "lifecycle", "abort")
		os.Exit(1)
	}

	values, err := cache.LocalService[string, int64](
		ctx,
		cache.CountCacheService(counts),
		cache.LocalOptions[string, int64]{
			Capacity: cfg.Cache.ValueCapacity,
			TTL:      cfg.Cache.ValueTTL,
		},
	)
	if err != nil {
		_ = logger.Log("err", err, "lifecycle", "abort")
		os.Exit(1)
	}

	for name, src := range map[string]cache.StatsSource{
		"catalog": ids,
		"value":   values,
	} {
		if err := cache.RegisterStats(component, name, src); err != nil {
			_ = logger.Log("err", err, "lifecycle", "abort")
			os.Exit(1)
		}
	}

	// Setup durable writer.
	writerDone := make(chan struct{})

	if cfg.Writer.Enabled {
		w := core.NewWriter(counters, source, core.WriterOptions{
			InitialInterval: cfg.Writer.InitialInterval,
			Logger:          logger,
			MaxInterval:     cfg.Writer.MaxInterval,
			ReadRetries:     cfg.Writer.ReadRetries,
			SetupRetries:    cfg.Writer.SetupRetries,
		})

		go func() {
			defer close(writerDone)

			_ = logger.Log("lifecycle", "start", "sub", "writer")

			if err := w.Run(ctx); err != nil {
				_ = logger.Log("err", err, "lifecycle", "abort", "sub", "writer")
				stop()
				return
			}

			_ = logger.Log("lifecycle", "stop", "sub", "writer")
		}()
	} else {
		close(writerDone)
	}

	// Setup middlewares.
	withBase := handler.Chain(
		handler.CtxPrepare(versionCurrent),
		handler.Log(logger),
		handler.Instrument(component),
		handler.DebugHeaders(revision, hostname),
		handler.Gzip(),
		handler.ValidateContent(),
	)

	withLimit := withBase

	if cfg.RateLimit.Limit > 0 {
		withLimit = handler.Chain(
			withBase,
			handler.RateLimit(
				limiter.Redis(redisPool, prefixRateLimiter),
				cfg.RateLimit.Limit,
				cfg.RateLimit.Window,
			),
		)
	}

	resolve := core.CatalogResolve(ids)

	// Setup Router.
	router := mux.NewRouter().StrictSlash(true)

	router.NotFoundHandler = handler.Wrap(withBase, handler.NotFound())

	router.Methods("GET").Path(`/health`).Name("healthcheck").HandlerFunc(
		handler.Wrap(
			handler.CtxPrepare(versionCurrent),
			handler.Health(checks),
		),
	)

	// Catalog routes.
	router.Methods("GET").Path(`/catalog`).Name("catalogList").HandlerFunc(
		handler.Wrap(
			withBase,
			handler.CatalogList(core.CatalogList(catalogs)),
		),
	)

	router.Methods("GET").Path(`/catalog/{name}`).Name("catalogGet").HandlerFunc(
		handler.Wrap(
			withBase,
			handler.CatalogGet(core.CatalogGet(catalogs)),
		),
	)

	router.Methods("PUT").Path(`/catalog/{name}`).Name("catalogPut").HandlerFunc(
		handler.Wrap(
			withLimit,
			handler.CatalogPut(core.CatalogRegister(catalogs, ids)),
		),
	)

	router.Methods("PATCH").Path(`/catalog/{catalogID:[0-9]+}`).Name("catalogUpdate").HandlerFunc(
		handler.Wrap(
			withLimit,
			handler.CatalogUpdate(core.CatalogUpdate(catalogs, ids)),
		),
	)

	// Counter routes.
	router.Methods("GET").Path(`/counters/{name}/users/{userID}`).Name("counterGet").HandlerFunc(
		handler.Wrap(
			withBase,
			handler.CounterGet(core.CounterGet(resolve, values)),
		),
	)

	router.Methods("POST").Path(`/counters/{name}/users/{userID}`).Name("counterIncrement").HandlerFunc(
		handler.Wrap(
			withLimit,
			handler.CounterIncrement(
				core.CounterIncrement(resolve, counts, values, source),
			),
		),
	)

	router.Methods("DELETE").Path(`/counters/{name}/users/{userID}`).Name("counterReset").HandlerFunc(
		handler.Wrap(
			withLimit,
			handler.CounterReset(core.CounterReset(resolve, values, source)),
		),
	)

	// Setup server.
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			defaultShutdownTimeout,
		)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = logger.Log("err", err, "lifecycle", "shutdown", "sub", "api")
		}
	}()

	_ = logger.Log(
		"duration", time.Since(begin).Nanoseconds(),
		"lifecycle", "start",
		"listen", cfg.ListenAddr,
		"sub", "api",
		"store", cfg.Store.Kind,
		"source", cfg.Stream.Source,
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		_ = logger.Log("err", err, "lifecycle", "abort", "sub", "api")
		stop()
	}

	<-writerDone

	_ = logger.Log(
		"lifecycle", "stop",
		"msg", fmt.Sprintf("served for %s", time.Since(begin).Round(time.Second)),
	)
}
