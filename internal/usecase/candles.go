package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FluxFeed/internal/domain/models"
	domrepo "FluxFeed/internal/domain/repository"
	"FluxFeed/internal/domain/service"
	svcmetrics "FluxFeed/internal/service/metrics"
	"FluxFeed/internal/services/cascade"
	"FluxFeed/internal/services/indicators"
	"FluxFeed/internal/services/synthetic"
	"FluxFeed/pkg/cache"
	"FluxFeed/pkg/logger"
	"FluxFeed/pkg/queue"
	"FluxFeed/pkg/util"
)

// SourceSynthetic tags a generated placeholder series.
const SourceSynthetic = "synthetic"

// QuoteResolver is the slice of PriceResolver the chart needs to seed a
// synthetic series.
type QuoteResolver interface {
	Resolve(ctx context.Context, symbol string) (models.Quote, error)
}

type ChartOptions struct {
	DefaultRange  time.Duration
	SyntheticSpan time.Duration
	CacheTTL      time.Duration
	SMAPeriod     int
	RSIPeriod     int
	// Timeout bounds each source call.
	Timeout time.Duration
	// BackfillCooldown suppresses repeat backfill jobs for one series.
	BackfillCooldown time.Duration
}

// ChartUseCase serves candle series with SMA and RSI overlays. Sources are
// tried in rank order; when none has data a synthetic series is returned
// and a backfill job is queued.
type ChartUseCase struct {
	sources  []service.CandleSource
	store    domrepo.CandleStore
	resolver QuoteResolver
	gen      *synthetic.Generator
	cache    cache.Service
	jobs     queue.Enqueuer
	opts     ChartOptions
	log      *logger.Logger
	now      func() time.Time
}

// NewChartUseCase wires the chart cascade. store, resolver, c and jobs may be nil.
func NewChartUseCase(
	sources []service.CandleSource,
	store domrepo.CandleStore,
	resolver QuoteResolver,
	gen *synthetic.Generator,
	c cache.Service,
	jobs queue.Enqueuer,
	opts ChartOptions,
	log *logger.Logger,
) *ChartUseCase {
	if opts.DefaultRange <= 0 {
		opts.DefaultRange = 180 * 24 * time.Hour
	}
	if opts.SyntheticSpan <= 0 {
		opts.SyntheticSpan = synthetic.DefaultSpan
	}
	if opts.SMAPeriod <= 0 {
		opts.SMAPeriod = 20
	}
	if opts.RSIPeriod <= 0 {
		opts.RSIPeriod = 14
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BackfillCooldown <= 0 {
		opts.BackfillCooldown = 10 * time.Minute
	}
	if gen == nil {
		gen = synthetic.New()
	}
	if log == nil {
		log = logger.NewNop()
	}
	uc := &ChartUseCase{
		store:    store,
		resolver: resolver,
		gen:      gen,
		cache:    c,
		jobs:     jobs,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
	for _, src := range sources {
		if src != nil {
			uc.sources = append(uc.sources, src)
		}
	}
	return uc
}

type GetChartParams struct {
	Symbol     string
	Resolution string
	From       int64
	To         int64
	SMA        int
	RSI        int
}

// cachedSeries is what the chart cache holds: sanitized candles and their source.
type cachedSeries struct {
	Source  string          `json:"source"`
	Candles []models.Candle `json:"candles"`
}

var errNoCandles = errors.New("no candles")

// providers binds each source to one query.
func (uc *ChartUseCase) providers(q chartQuery) []cascade.Provider[[]models.Candle] {
	out := make([]cascade.Provider[[]models.Candle], 0, len(uc.sources))
	for _, src := range uc.sources {
		name := src.Name()
		out = append(out, cascade.Provider[[]models.Candle]{
			Name: name,
			Fetch: func(ctx context.Context, _ string) ([]models.Candle, error) {
				cctx, cancel := context.WithTimeout(ctx, uc.opts.Timeout)
				defer cancel()

				start := time.Now()
				candles, err := src.Candles(cctx, q.symbol, q.res, q.from, q.to)
				if err == nil && len(candles) == 0 {
					err = errNoCandles
				}
				svcmetrics.ObserveCall(name, outcome(err), time.Since(start))
				return candles, err
			},
		})
	}
	return out
}

type chartQuery struct {
	symbol   string
	res      domrepo.Resolution
	from, to time.Time
}

// GetChart returns the series for p. It never fails for lack of data; the
// only errors are an invalid symbol and context cancellation.
func (uc *ChartUseCase) GetChart(ctx context.Context, p GetChartParams) (*models.ChartSeries, error) {
	sym := util.NormalizeSymbol(p.Symbol)
	if sym == "" || len(sym) > maxSymbolLen {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSymbol, p.Symbol)
	}
	res := domrepo.NormalizeResolution(p.Resolution)
	from, to := util.ResolveRange(p.From, p.To, uc.opts.DefaultRange, uc.now())
	from, to = util.AlignFromTo(from, to, time.Duration(res.Seconds())*time.Second)

	series, isSynthetic, err := uc.candles(ctx, chartQuery{symbol: sym, res: res, from: from, to: to}, p.From > 0)
	if err != nil {
		return nil, err
	}

	smaPeriod, rsiPeriod := p.SMA, p.RSI
	if smaPeriod <= 0 {
		smaPeriod = uc.opts.SMAPeriod
	}
	if rsiPeriod <= 0 {
		rsiPeriod = uc.opts.RSIPeriod
	}
	return &models.ChartSeries{
		Symbol:     sym,
		Resolution: string(res),
		From:       from.Unix(),
		To:         to.Unix(),
		Source:     series.Source,
		Synthetic:  isSynthetic,
		Candles:    series.Candles,
		SMA:        indicators.SMA(series.Candles, smaPeriod),
		RSI:        indicators.RSI(series.Candles, rsiPeriod),
	}, nil
}

func (uc *ChartUseCase) candles(ctx context.Context, q chartQuery, explicitFrom bool) (cachedSeries, bool, error) {
	key := cache.GenerateKeyWithParams("chart", q.symbol, q.res, q.from.Unix(), q.to.Unix())
	if uc.cache != nil {
		var hit cachedSeries
		if err := uc.cache.Get(ctx, key, &hit); err == nil && len(hit.Candles) > 0 {
			return hit, false, nil
		}
	}

	res, err := cascade.FirstSuccess(ctx, key, uc.providers(q), nil, func(provider string, err error) {
		uc.log.Debug("candle source skipped",
			logger.String("symbol", q.symbol),
			logger.String("source", provider),
			logger.Error(err),
		)
	})
	if err == nil {
		candles := models.NormalizeCandles(res.Value)
		// the store keeps provider volumes; placeholders are for display only
		uc.persist(ctx, q, res.Provider, candles)
		series := cachedSeries{
			Source:  res.Provider,
			Candles: indicators.SanitizeVolume(candles, uc.gen.Jitter),
		}
		if uc.cache != nil {
			if err := uc.cache.Set(ctx, key, series, uc.opts.CacheTTL); err != nil {
				uc.log.Warn("chart cache write failed", logger.String("key", key), logger.Error(err))
			}
		}
		return series, false, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return cachedSeries{}, false, ctxErr
	}

	start := q.to.Add(-uc.opts.SyntheticSpan)
	if explicitFrom || start.Before(q.from) {
		start = q.from
	}
	candles := uc.gen.Window(uc.seedPrice(ctx, q.symbol), start, q.to)
	svcmetrics.SyntheticSeries.Inc()
	uc.requestBackfill(ctx, q)
	return cachedSeries{
		Source:  SourceSynthetic,
		Candles: indicators.SanitizeVolume(candles, uc.gen.Jitter),
	}, true, nil
}

// persist writes provider data through to the candle store so it can serve
// the next miss. Data read from the store itself is not written back.
func (uc *ChartUseCase) persist(ctx context.Context, q chartQuery, source string, candles []models.Candle) {
	if uc.store == nil {
		return
	}
	if named, ok := uc.store.(interface{ Name() string }); ok && named.Name() == source {
		return
	}
	if err := uc.store.SaveCandles(ctx, q.symbol, q.res, source, candles); err != nil {
		uc.log.Warn("candle store write failed", logger.String("symbol", q.symbol), logger.Error(err))
	}
}

func (uc *ChartUseCase) seedPrice(ctx context.Context, sym string) float64 {
	if uc.resolver == nil {
		return 0
	}
	q, err := uc.resolver.Resolve(ctx, sym)
	if err != nil {
		return 0
	}
	return q.Price
}

// requestBackfill queues at most one job per series and cooldown window.
func (uc *ChartUseCase) requestBackfill(ctx context.Context, q chartQuery) {
	if uc.jobs == nil {
		return
	}
	if uc.cache != nil {
		lockKey := cache.GenerateKeyWithParams("backfill", q.symbol, q.res)
		ok, err := uc.cache.TryLock(ctx, lockKey, uc.opts.BackfillCooldown)
		if err != nil || !ok {
			return
		}
	}
	payload := BackfillPayload{
		Symbol:     q.symbol,
		Resolution: string(q.res),
		From:       q.from.Unix(),
		To:         q.to.Unix(),
	}
	if err := uc.jobs.Enqueue(ctx, JobChartBackfill, payload); err != nil {
		uc.log.Warn("backfill enqueue failed", logger.String("symbol", q.symbol), logger.Error(err))
	}
}
