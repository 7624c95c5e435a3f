package di

import (
	"context"
	"fmt"
	"time"

	"FluxFeed/internal/domain/repository"
	"FluxFeed/internal/domain/service"
	"FluxFeed/internal/handler/api"
	mid "FluxFeed/internal/middleware"
	internalrepo "FluxFeed/internal/repository"
	"FluxFeed/internal/service/alpaca"
	"FluxFeed/internal/service/alphavantage"
	"FluxFeed/internal/service/backend"
	respcache "FluxFeed/internal/service/cache"
	"FluxFeed/internal/service/coingecko"
	"FluxFeed/internal/service/finnhub"
	"FluxFeed/internal/service/frankfurter"
	"FluxFeed/internal/service/pricestream"
	"FluxFeed/internal/service/ratelimit"
	"FluxFeed/internal/service/session"
	"FluxFeed/internal/service/yahoo"
	"FluxFeed/internal/usecase"
	"FluxFeed/pkg/cache"
	pkgch "FluxFeed/pkg/clickhouse"
	"FluxFeed/pkg/config"
	xhttp "FluxFeed/pkg/http"
	pkgkafka "FluxFeed/pkg/kafka"
	"FluxFeed/pkg/logger"
	"FluxFeed/pkg/metrics"
	"FluxFeed/pkg/queue"
	"FluxFeed/pkg/scheduler"
	"FluxFeed/pkg/server"
)

const schemaTimeout = 10 * time.Second

// ProvideKafkaProducer creates the shared Kafka producer. It returns nil when
// no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	kc := cfg.Storage.Kafka
	if len(kc.Brokers) == 0 {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(kc.Brokers),
		pkgkafka.WithDelivery(kc.RequiredAcks, kc.Producer.MaxAttempts, kc.Compression),
		pkgkafka.WithBatching(kc.Producer.BatchSize, kc.Producer.BatchBytes, kc.Producer.Linger),
		pkgkafka.WithWriteTimeout(kc.Producer.WriteTimeout),
		pkgkafka.WithAsync(kc.Producer.Async),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger and, when a collector topic is
// set, ships aggregated error entries through the Kafka producer.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, func(), error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.CollectorTopic != "" && producer != nil {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval: cfg.Logging.CollectorInterval,
			Topic:        cfg.Logging.CollectorTopic,
			Publisher:    producer,
		})
	}
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

func ProvideSession(cfg *config.Config) *session.Session {
	return session.New(cfg.Backend.Token)
}

// ProvideRedisCache dials redis when an address is configured, nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, func(), error) {
	rc := cfg.Cache.Redis
	if rc.Addr == "" {
		return nil, func() {}, nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(rc.Addr),
		cache.WithRedisPassword(rc.Password),
		cache.WithRedisDB(rc.DB),
		cache.WithRedisPrefix(cfg.Cache.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return c, func() { _ = c.Close() }, nil
}

// ProvideCache selects the cache backing last-known prices, the chart cache
// and backfill locks.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) (cache.Service, func()) {
	switch cfg.Cache.Backend {
	case "redis":
		return rc, func() {}
	case "layered":
		lc := cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Cache.MaxSize))
		return lc, func() { _ = lc.Close() }
	default:
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxSize))
		return mc, func() { _ = mc.Close() }
	}
}

// ProvideResponseCache backs profile, news and FX responses. They share redis
// when it is available so every replica serves the same copies.
func ProvideResponseCache(cfg *config.Config, rc *cache.RedisCache) respcache.BytesCache {
	if rc != nil && cfg.Cache.Backend != "memory" {
		return respcache.NewRedisBytes(rc.Client(), cfg.Cache.Prefix+":resp")
	}
	return respcache.NewTTLCache()
}

func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// Providers holds the external data clients. A client whose credentials are
// missing stays nil and is left out of every cascade.
type Providers struct {
	Backend      *backend.Client
	Finnhub      *finnhub.Client
	CoinGecko    *coingecko.Client
	AlphaVantage *alphavantage.Client
	Alpaca       *alpaca.Client
	Yahoo        *yahoo.Client
	Frankfurter  *frankfurter.Client
}

func ProvideProviders(cfg *config.Config, sess *session.Session) *Providers {
	pc := cfg.Providers
	p := &Providers{
		CoinGecko: coingecko.New(pc.CoinGecko.BaseURL, pc.CoinGecko.APIKey, pc.Timeout, cfg.Feed.CryptoIDs),
	}
	if cfg.Backend.URL != "" {
		p.Backend = backend.New(cfg.Backend.URL, cfg.Backend.Timeout, sess)
	}
	if pc.Finnhub.APIKey != "" {
		p.Finnhub = finnhub.New(pc.Finnhub.BaseURL, pc.Finnhub.APIKey, pc.Timeout, cfg.Feed.StockSymbols)
	}
	if pc.AlphaVantage.APIKey != "" {
		p.AlphaVantage = alphavantage.New(pc.AlphaVantage.BaseURL, pc.AlphaVantage.APIKey, pc.Timeout)
	}
	if pc.Alpaca.APIKey != "" {
		p.Alpaca = alpaca.New(pc.Alpaca.APIKey, pc.Alpaca.APISecret, pc.Alpaca.BaseURL, pc.Alpaca.Feed)
	}
	if !pc.Yahoo.Disabled {
		p.Yahoo = yahoo.New(pc.Yahoo.BaseURL, pc.Timeout)
	}
	if !pc.Frankfurter.Disabled {
		p.Frankfurter = frankfurter.New(pc.Frankfurter.BaseURL, pc.Frankfurter.Base, pc.Timeout)
	}
	return p
}

// ProvideQuoteSources ranks the REST quote providers: Finnhub, CoinGecko and
// Alpha Vantage, then Alpaca, Yahoo and Frankfurter.
func ProvideQuoteSources(p *Providers) []service.QuoteSource {
	var out []service.QuoteSource
	if p.Finnhub != nil {
		out = append(out, p.Finnhub)
	}
	if p.CoinGecko != nil {
		out = append(out, p.CoinGecko)
	}
	if p.AlphaVantage != nil {
		out = append(out, p.AlphaVantage)
	}
	if p.Alpaca != nil {
		out = append(out, p.Alpaca)
	}
	if p.Yahoo != nil {
		out = append(out, p.Yahoo)
	}
	if p.Frankfurter != nil {
		out = append(out, p.Frankfurter)
	}
	return out
}

// ProvideCandleSources ranks chart sources. The candle store comes last so
// backfilled history answers when every live source is down.
func ProvideCandleSources(p *Providers, store repository.CandleStore) []service.CandleSource {
	var out []service.CandleSource
	if p.Backend != nil {
		out = append(out, p.Backend)
	}
	if p.Finnhub != nil {
		out = append(out, p.Finnhub)
	}
	if p.Yahoo != nil {
		out = append(out, p.Yahoo)
	}
	if p.Alpaca != nil {
		out = append(out, p.Alpaca)
	}
	if src, ok := store.(service.CandleSource); ok && src != nil {
		out = append(out, src)
	}
	return out
}

func ProvideProfileSources(p *Providers) []service.ProfileSource {
	var out []service.ProfileSource
	if p.Backend != nil {
		out = append(out, p.Backend)
	}
	if p.Finnhub != nil {
		out = append(out, p.Finnhub)
	}
	return out
}

func ProvidePollers(cfg *config.Config, p *Providers) []usecase.Poller {
	var out []usecase.Poller
	if p.CoinGecko != nil {
		out = append(out, usecase.Poller{Source: p.CoinGecko, Interval: cfg.Feed.CryptoInterval, Timeout: cfg.Providers.Timeout})
	}
	if p.Finnhub != nil && len(cfg.Feed.StockSymbols) > 0 {
		out = append(out, usecase.Poller{Source: p.Finnhub, Interval: cfg.Feed.StockInterval, Timeout: 2 * cfg.Providers.Timeout})
	}
	if p.Frankfurter != nil {
		out = append(out, usecase.Poller{Source: p.Frankfurter, Interval: cfg.Feed.FXInterval, Timeout: cfg.Providers.Timeout})
	}
	return out
}

func ProvideSnapshotStore(cfg *config.Config) *usecase.SnapshotStore {
	return usecase.NewSnapshotStore(usecase.WithCryptoSymbols(usecase.CatalogSymbols(cfg.Feed.CryptoIDs)...))
}

func ProvidePriceResolver(
	cfg *config.Config,
	snap *usecase.SnapshotStore,
	sources []service.QuoteSource,
	c cache.Service,
	limiter *ratelimit.Limiter,
	log *logger.Logger,
) *usecase.PriceResolver {
	static := make(map[string]usecase.StaticQuote, len(cfg.Resolver.StaticFallbacks))
	for sym, sp := range cfg.Resolver.StaticFallbacks {
		static[sym] = usecase.StaticQuote{Price: sp.Price, Change: sp.Change}
	}
	return usecase.NewPriceResolver(snap, sources, c, limiter, usecase.ResolverOptions{
		Timeout:      cfg.Providers.Timeout,
		RateCapacity: cfg.Providers.RateLimit.Capacity,
		RateRefill:   cfg.Providers.RateLimit.RefillPerSecond,
		LastKnownTTL: cfg.Resolver.LastKnownTTL,
		Static:       static,
	}, log.With(logger.String("component", "resolver")))
}

// ProvidePriceStream returns the backend WebSocket client, or nil when no
// backend is configured.
func ProvidePriceStream(cfg *config.Config, sess *session.Session, log *logger.Logger) repository.PriceStream {
	u := cfg.Backend.StreamURL()
	if u == "" {
		return nil
	}
	return pricestream.New(u, sess, log)
}

// ProvideClickHouseClient connects when a host is configured, nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	cc := cfg.Storage.ClickHouse
	if cc.Host == "" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cc.Host, cc.Port),
		pkgch.WithDatabase(cc.Database),
		pkgch.WithCredentials(cc.User, cc.Password),
		pkgch.WithHTTP(cc.UseHTTP),
		pkgch.WithAsyncInsert(cc.AsyncInsert),
		pkgch.WithTimeouts(cc.DialTimeout, cc.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideTickStorage creates the tick table and returns its storage.
func ProvideTickStorage(cfg *config.Config, ch *pkgch.Client) (repository.Storage, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseStorage(ch, cfg.Storage.ClickHouse.Database+"."+cfg.Storage.ClickHouse.TickTable)
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("tick schema: %w", err)
	}
	return store, nil
}

func ProvideTickPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Storage.Kafka.Topic)
}

func ProvideTickProcessor(
	cfg *config.Config,
	pub repository.Publisher,
	store repository.Storage,
	m repository.Metrics,
) (*usecase.TickProcessor, func(), error) {
	proc, err := usecase.NewTickProcessor(pub, store, m, cfg.Storage.Backend)
	if err != nil {
		return nil, nil, err
	}
	return proc, func() { _ = proc.Close() }, nil
}

// ProvidePipeline builds the validate, throttle and buffer stage between the
// feed and the tick processor.
func ProvidePipeline(cfg *config.Config, proc *usecase.TickProcessor, m repository.Metrics, log *logger.Logger) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(proc, m,
		mid.WithMaxRPS(cfg.Feed.MaxRPS),
		mid.WithBufferSize(cfg.Feed.BufferSize),
		mid.WithPipelineLogger(log),
	)
}

func ProvidePriceFeed(
	snap *usecase.SnapshotStore,
	stream repository.PriceStream,
	pollers []usecase.Poller,
	pipe *mid.RealtimePipeline,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.PriceFeed {
	return usecase.NewPriceFeed(snap, stream, pollers, pipe, m, log.With(logger.String("component", "feed")))
}

// ProvideCandleStore creates the candle table when ClickHouse is configured.
func ProvideCandleStore(cfg *config.Config, ch *pkgch.Client, log *logger.Logger) (repository.CandleStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHCandleStore(ch, cfg.Storage.ClickHouse.Database+"."+cfg.Storage.ClickHouse.CandleTable, log)
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("candle schema: %w", err)
	}
	return store, nil
}

// ProvideJobQueue uses redis when the queue is enabled, an in-process queue
// otherwise.
func ProvideJobQueue(cfg *config.Config, rc *cache.RedisCache, log *logger.Logger) queue.Queue {
	qc := queue.Config{Workers: cfg.Queue.Workers, RetryLimit: cfg.Queue.MaxRetries}
	if cfg.Queue.Enabled && rc != nil {
		return queue.NewRedisQueue(log, rc.Client(), cfg.Queue.Name, qc)
	}
	return queue.NewMemoryQueue(log, 0, qc)
}

// ProvideBackfillJob pulls history from Alpaca, or Finnhub without Alpaca
// credentials. It is nil when there is no source or no store to fill.
func ProvideBackfillJob(p *Providers, store repository.CandleStore, log *logger.Logger) *usecase.BackfillJob {
	if store == nil {
		return nil
	}
	var src service.CandleSource
	switch {
	case p.Alpaca != nil:
		src = p.Alpaca
	case p.Finnhub != nil:
		src = p.Finnhub
	default:
		return nil
	}
	return usecase.NewBackfillJob(src, store, log)
}

func ProvideChartUseCase(
	cfg *config.Config,
	sources []service.CandleSource,
	store repository.CandleStore,
	resolver *usecase.PriceResolver,
	c cache.Service,
	jobs queue.Queue,
	job *usecase.BackfillJob,
	log *logger.Logger,
) *usecase.ChartUseCase {
	var enq queue.Enqueuer
	if job != nil {
		jobs.RegisterJob(job)
		enq = jobs
	}
	return usecase.NewChartUseCase(sources, store, resolver, nil, c, enq, usecase.ChartOptions{
		DefaultRange:  cfg.Chart.DefaultRange,
		SyntheticSpan: cfg.Chart.SyntheticSpan,
		CacheTTL:      cfg.Chart.CacheTTL,
		SMAPeriod:     cfg.Chart.SMAPeriod,
		RSIPeriod:     cfg.Chart.RSIPeriod,
	}, log.With(logger.String("component", "chart")))
}

func ProvideMarketInfo(
	cfg *config.Config,
	profiles []service.ProfileSource,
	p *Providers,
	c respcache.BytesCache,
	log *logger.Logger,
) *usecase.MarketInfoUseCase {
	var news usecase.NewsSource
	if p.Finnhub != nil {
		news = p.Finnhub
	}
	var rates usecase.RatesSource
	if p.Frankfurter != nil {
		rates = p.Frankfurter
	}
	return usecase.NewMarketInfoUseCase(profiles, news, rates, c, usecase.MarketInfoOptions{Timeout: cfg.Providers.Timeout}, log)
}

// ProvideScheduler registers the periodic snapshot archive when enabled.
func ProvideScheduler(cfg *config.Config, snap *usecase.SnapshotStore, log *logger.Logger) (*scheduler.Scheduler, error) {
	s := scheduler.New(log)
	if cfg.Archive.Enabled {
		archiver := usecase.NewSnapshotArchiver(snap, internalrepo.NewParquetArchive(cfg.Archive.Dir), log)
		if err := s.Register("snapshot-archive", cfg.Archive.Schedule, archiver.Run); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ProvideKafkaConsumer sinks the tick topic into ClickHouse when enabled.
func ProvideKafkaConsumer(cfg *config.Config, store repository.Storage, m repository.Metrics, log *logger.Logger) (*pkgkafka.Consumer, error) {
	kc := cfg.Storage.Kafka
	if !kc.Consumer.Enabled || store == nil {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(kc.Brokers),
		pkgkafka.WithGroupID(kc.Consumer.GroupID),
		pkgkafka.WithWorkers(kc.Consumer.Workers, kc.Consumer.BufferSize),
		pkgkafka.WithRetry(kc.Consumer.RetryMax, kc.Consumer.BackoffMin, kc.Consumer.BackoffMax),
		pkgkafka.WithDLQ(kc.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewKafkaTicksHandler(kc.Topic, store, m))
	return consumer, nil
}

func ProvideHTTPHandler(
	log *logger.Logger,
	resolver *usecase.PriceResolver,
	snap *usecase.SnapshotStore,
	chart *usecase.ChartUseCase,
	info *usecase.MarketInfoUseCase,
	sess *session.Session,
	feed *usecase.PriceFeed,
) xhttp.Handler {
	return xhttp.Handlers{
		api.NewMarketEchoHandler(log, resolver, snap, chart, info),
		api.NewSessionEchoHandler(log, sess, feed),
	}
}

func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, log *logger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(log),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	feed *usecase.PriceFeed,
	pipe *mid.RealtimePipeline,
	consumer *pkgkafka.Consumer,
	jobs queue.Queue,
	sched *scheduler.Scheduler,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(cfg, log, server.Components{
		Feed:      feed,
		Pipeline:  pipe,
		Consumer:  consumer,
		Jobs:      jobs,
		Scheduler: sched,
		HTTP:      httpServer,
	})
}
