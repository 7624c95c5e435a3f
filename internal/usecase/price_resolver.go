package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/domain/service"
	svcmetrics "FluxFeed/internal/service/metrics"
	"FluxFeed/internal/service/ratelimit"
	"FluxFeed/internal/services/cascade"
	"FluxFeed/pkg/cache"
	"FluxFeed/pkg/logger"
	"FluxFeed/pkg/util"
)

var (
	// ErrNoPrice means every source, including the fallbacks, came up empty.
	ErrNoPrice       = errors.New("waiting for price")
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// Source names for the non-provider tiers of the cascade.
const (
	SourceSnapshot  = "snapshot"
	SourceLastKnown = "lastknown"
	SourceStatic    = "static"
)

const (
	lastKnownPrefix = "lastknown"
	maxSymbolLen    = 32
	batchFanout     = 8
)

// StaticQuote is a hardcoded display value for a symbol no provider covers.
type StaticQuote struct {
	Price  float64
	Change float64
}

// DefaultStaticQuotes covers the major indices free APIs rarely serve.
var DefaultStaticQuotes = map[string]StaticQuote{
	"^GSPC":  {Price: 6845.20, Change: 0.45},
	"^IXIC":  {Price: 25250.10, Change: 1.20},
	"^DJI":   {Price: 48100.50, Change: -0.15},
	"^N225":  {Price: 50555.00, Change: 0.82},
	"^FTSE":  {Price: 10100.50, Change: 0.53},
	"^GDAXI": {Price: 25000.00, Change: 0.61},
	"^BSESN": {Price: 86000.00, Change: 1.12},
	"^NSEI":  {Price: 26500.00, Change: 0.95},
}

type ResolverOptions struct {
	// Timeout bounds each provider call.
	Timeout      time.Duration
	RateCapacity float64
	RateRefill   float64
	LastKnownTTL time.Duration
	// Static extends and overrides DefaultStaticQuotes.
	Static map[string]StaticQuote
}

// PriceResolver answers "what is the price of X" by walking the snapshot,
// the REST providers in rank order, the last-known cache and the static
// table. The first valid price wins.
type PriceResolver struct {
	snap      *SnapshotStore
	lastKnown cache.Service
	limiter   *ratelimit.Limiter
	opts      ResolverOptions
	static    map[string]StaticQuote
	providers []cascade.Provider[models.PricePoint]
	log       *logger.Logger
	now       func() time.Time
}

// NewPriceResolver ranks sources in the order given. lastKnown and limiter
// may be nil.
func NewPriceResolver(snap *SnapshotStore, sources []service.QuoteSource, lastKnown cache.Service, limiter *ratelimit.Limiter, opts ResolverOptions, log *logger.Logger) *PriceResolver {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.LastKnownTTL <= 0 {
		opts.LastKnownTTL = 24 * time.Hour
	}
	if log == nil {
		log = logger.NewNop()
	}
	r := &PriceResolver{
		snap:      snap,
		lastKnown: lastKnown,
		limiter:   limiter,
		opts:      opts,
		static:    make(map[string]StaticQuote, len(DefaultStaticQuotes)+len(opts.Static)),
		log:       log,
		now:       time.Now,
	}
	for k, v := range DefaultStaticQuotes {
		r.static[k] = v
	}
	for k, v := range opts.Static {
		r.static[util.NormalizeSymbol(k)] = v
	}

	r.providers = append(r.providers, cascade.Provider[models.PricePoint]{Name: SourceSnapshot, Fetch: r.fromSnapshot})
	for _, src := range sources {
		if src != nil {
			r.providers = append(r.providers, r.guarded(src))
		}
	}
	r.providers = append(r.providers,
		cascade.Provider[models.PricePoint]{Name: SourceLastKnown, Fetch: r.fromLastKnown},
		cascade.Provider[models.PricePoint]{Name: SourceStatic, Fetch: r.fromStatic},
	)
	return r
}

// Sources lists the cascade in rank order.
func (r *PriceResolver) Sources() []string { return cascade.Names(r.providers) }

var (
	errNotInSnapshot = errors.New("not in snapshot")
	errNoStatic      = errors.New("no static value")
)

func (r *PriceResolver) fromSnapshot(_ context.Context, sym string) (models.PricePoint, error) {
	if p, ok := r.snap.Get(sym); ok {
		return p, nil
	}
	return models.PricePoint{}, errNotInSnapshot
}

func (r *PriceResolver) fromLastKnown(ctx context.Context, sym string) (models.PricePoint, error) {
	if r.lastKnown == nil {
		return models.PricePoint{}, cache.ErrCacheMiss
	}
	var p models.PricePoint
	if err := r.lastKnown.Get(ctx, cache.GenerateKey(lastKnownPrefix, sym), &p); err != nil {
		return models.PricePoint{}, err
	}
	return p, nil
}

func (r *PriceResolver) fromStatic(_ context.Context, sym string) (models.PricePoint, error) {
	q, ok := r.static[sym]
	if !ok {
		return models.PricePoint{}, errNoStatic
	}
	return models.PricePoint{Symbol: sym, Price: q.Price, Change24h: q.Change}, nil
}

// guarded wraps a provider with its token bucket, a per-call timeout and
// call metrics.
func (r *PriceResolver) guarded(src service.QuoteSource) cascade.Provider[models.PricePoint] {
	name := src.Name()
	return cascade.Provider[models.PricePoint]{
		Name: name,
		Fetch: func(ctx context.Context, sym string) (models.PricePoint, error) {
			if r.limiter != nil {
				if err := r.limiter.Take(name, r.opts.RateCapacity, r.opts.RateRefill); err != nil {
					svcmetrics.ObserveCall(name, svcmetrics.OutcomeLimited, 0)
					return models.PricePoint{}, err
				}
			}
			cctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
			defer cancel()

			start := time.Now()
			p, err := src.Quote(cctx, sym)
			svcmetrics.ObserveCall(name, outcome(err), time.Since(start))
			return p, err
		},
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return svcmetrics.OutcomeOK
	case errors.Is(err, service.ErrUnsupported):
		return svcmetrics.OutcomeSkipped
	case errors.Is(err, ratelimit.ErrLimited):
		return svcmetrics.OutcomeLimited
	default:
		return svcmetrics.OutcomeError
	}
}

// Resolve returns the best available quote for symbol. The returned error
// is ErrInvalidSymbol, ErrNoPrice, or the context's error.
func (r *PriceResolver) Resolve(ctx context.Context, symbol string) (models.Quote, error) {
	return r.resolve(ctx, symbol, r.providers)
}

func (r *PriceResolver) resolve(ctx context.Context, symbol string, providers []cascade.Provider[models.PricePoint]) (models.Quote, error) {
	sym := util.NormalizeSymbol(symbol)
	if sym == "" || len(sym) > maxSymbolLen {
		return models.Quote{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}

	res, err := cascade.FirstSuccess(ctx, sym, providers, models.PricePoint.Valid, func(provider string, err error) {
		r.log.Debug("price source skipped",
			logger.String("symbol", sym),
			logger.String("source", provider),
			logger.Error(err),
		)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.Quote{}, ctxErr
		}
		return models.Quote{}, fmt.Errorf("%w: %s", ErrNoPrice, sym)
	}

	p := res.Value
	p.Symbol = sym
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = r.now().UTC()
	}
	q := models.Quote{
		PricePoint: p,
		Source:     res.Provider,
		Stale:      res.Provider == SourceLastKnown || res.Provider == SourceStatic,
	}
	svcmetrics.ResolvedBy.WithLabelValues(res.Provider).Inc()

	if !q.Stale && r.lastKnown != nil {
		if err := r.lastKnown.Set(ctx, cache.GenerateKey(lastKnownPrefix, sym), p, r.opts.LastKnownTTL); err != nil {
			r.log.Warn("last-known cache write failed", logger.String("symbol", sym), logger.Error(err))
		}
	}
	return q, nil
}

// withKnown returns the cascade with its last-known tier served from known,
// a batch read taken up front.
func (r *PriceResolver) withKnown(known map[string]models.PricePoint) []cascade.Provider[models.PricePoint] {
	out := make([]cascade.Provider[models.PricePoint], len(r.providers))
	copy(out, r.providers)
	for i := range out {
		if out[i].Name != SourceLastKnown {
			continue
		}
		out[i].Fetch = func(_ context.Context, sym string) (models.PricePoint, error) {
			if p, ok := known[cache.GenerateKey(lastKnownPrefix, sym)]; ok {
				return p, nil
			}
			return models.PricePoint{}, cache.ErrCacheMiss
		}
	}
	return out
}

// ResolveMany resolves symbols concurrently. Last-known values are read in
// one MGet. Symbols that cannot be resolved are listed, sorted, in Missing.
func (r *PriceResolver) ResolveMany(ctx context.Context, symbols []string) (models.BatchQuoteResponse, error) {
	out := models.BatchQuoteResponse{
		Quotes:  make(map[string]models.Quote, len(symbols)),
		Missing: []string{},
	}
	var mu sync.Mutex

	providers := r.providers
	if r.lastKnown != nil && len(symbols) > 0 {
		keys := make([]string, len(symbols))
		for i, s := range symbols {
			keys[i] = cache.GenerateKey(lastKnownPrefix, util.NormalizeSymbol(s))
		}
		known, err := cache.MGetTyped[models.PricePoint](ctx, r.lastKnown, keys...)
		if err != nil {
			// fall back to per-symbol reads
			r.log.Warn("last-known batch read failed", logger.Error(err))
		} else {
			providers = r.withKnown(known)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchFanout)
	for _, s := range symbols {
		sym := util.NormalizeSymbol(s)
		g.Go(func() error {
			q, err := r.resolve(gctx, sym, providers)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, ErrNoPrice) || errors.Is(err, ErrInvalidSymbol) {
					out.Missing = append(out.Missing, sym)
					return nil
				}
				return err
			}
			out.Quotes[sym] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.BatchQuoteResponse{}, err
	}
	sort.Strings(out.Missing)
	return out, nil
}
