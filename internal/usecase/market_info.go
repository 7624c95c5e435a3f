package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/domain/service"
	"FluxFeed/internal/service/backend"
	respcache "FluxFeed/internal/service/cache"
	"FluxFeed/internal/services/cascade"
	"FluxFeed/pkg/logger"
	"FluxFeed/pkg/util"
)

// ErrNoData means no configured source could answer a reference-data query.
var ErrNoData = errors.New("no data available")

// NewsSource lists recent company news.
type NewsSource interface {
	News(ctx context.Context, symbol string, days int) ([]models.NewsItem, error)
}

// RatesSource returns an FX table for a base currency.
type RatesSource interface {
	Rates(ctx context.Context, base string) (models.FXRates, error)
}

type MarketInfoOptions struct {
	ProfileTTL time.Duration
	NewsTTL    time.Duration
	FXTTL      time.Duration
	Timeout    time.Duration
}

// MarketInfoUseCase serves company profiles, news and FX tables, each behind
// a response cache.
type MarketInfoUseCase struct {
	profiles []service.ProfileSource
	news     NewsSource
	rates    RatesSource
	cache    respcache.BytesCache
	opts     MarketInfoOptions
	log      *logger.Logger
}

func NewMarketInfoUseCase(profiles []service.ProfileSource, news NewsSource, rates RatesSource, c respcache.BytesCache, opts MarketInfoOptions, log *logger.Logger) *MarketInfoUseCase {
	if opts.ProfileTTL <= 0 {
		opts.ProfileTTL = 24 * time.Hour
	}
	if opts.NewsTTL <= 0 {
		opts.NewsTTL = 10 * time.Minute
	}
	if opts.FXTTL <= 0 {
		opts.FXTTL = time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	uc := &MarketInfoUseCase{news: news, rates: rates, cache: c, opts: opts, log: log}
	for _, p := range profiles {
		if p != nil {
			uc.profiles = append(uc.profiles, p)
		}
	}
	return uc
}

// Profile tries the backend first, then the public providers. When every
// source fails and one of them was a backend auth rejection, that error is
// returned alongside ErrNoData.
func (uc *MarketInfoUseCase) Profile(ctx context.Context, symbol string) (models.CompanyProfile, error) {
	sym := util.NormalizeSymbol(symbol)
	if sym == "" {
		return models.CompanyProfile{}, ErrInvalidSymbol
	}
	return respcache.Fetch(uc.cache, "profile:"+sym, uc.opts.ProfileTTL, func() (models.CompanyProfile, error) {
		providers := make([]cascade.Provider[models.CompanyProfile], 0, len(uc.profiles))
		for _, src := range uc.profiles {
			providers = append(providers, cascade.Provider[models.CompanyProfile]{
				Name: src.Name(),
				Fetch: func(ctx context.Context, sym string) (models.CompanyProfile, error) {
					cctx, cancel := context.WithTimeout(ctx, uc.opts.Timeout)
					defer cancel()
					return src.Profile(cctx, sym)
				},
			})
		}

		var authErr *backend.AuthError
		res, err := cascade.FirstSuccess(ctx, sym, providers,
			func(p models.CompanyProfile) bool { return p.Name != "" },
			func(provider string, err error) {
				var ae *backend.AuthError
				if authErr == nil && errors.As(err, &ae) {
					authErr = ae
				}
				uc.log.Debug("profile source skipped", logger.String("source", provider), logger.Error(err))
			})
		if err != nil {
			if ctx.Err() != nil {
				return models.CompanyProfile{}, ctx.Err()
			}
			if authErr != nil {
				return models.CompanyProfile{}, errors.Join(fmt.Errorf("%w: profile %s", ErrNoData, sym), authErr)
			}
			return models.CompanyProfile{}, fmt.Errorf("%w: profile %s", ErrNoData, sym)
		}
		p := res.Value
		p.Symbol = sym
		if p.Source == "" {
			p.Source = res.Provider
		}
		return p, nil
	})
}

// News returns items from the last days days, newest first as the source sends them.
func (uc *MarketInfoUseCase) News(ctx context.Context, symbol string, days int) ([]models.NewsItem, error) {
	sym := util.NormalizeSymbol(symbol)
	if sym == "" {
		return nil, ErrInvalidSymbol
	}
	if uc.news == nil {
		return nil, fmt.Errorf("%w: no news source configured", ErrNoData)
	}
	if days <= 0 {
		days = 7
	}
	key := fmt.Sprintf("news:%s:%d", sym, days)
	return respcache.Fetch(uc.cache, key, uc.opts.NewsTTL, func() ([]models.NewsItem, error) {
		cctx, cancel := context.WithTimeout(ctx, uc.opts.Timeout)
		defer cancel()
		items, err := uc.news.News(cctx, sym, days)
		if err != nil {
			return nil, fmt.Errorf("news %s: %w", sym, err)
		}
		if items == nil {
			items = []models.NewsItem{}
		}
		return items, nil
	})
}

// FX returns rates for base, which defaults to USD.
func (uc *MarketInfoUseCase) FX(ctx context.Context, base string) (models.FXRates, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		base = "USD"
	}
	if uc.rates == nil {
		return models.FXRates{}, fmt.Errorf("%w: no fx source configured", ErrNoData)
	}
	return respcache.Fetch(uc.cache, "fx:"+base, uc.opts.FXTTL, func() (models.FXRates, error) {
		cctx, cancel := context.WithTimeout(ctx, uc.opts.Timeout)
		defer cancel()
		r, err := uc.rates.Rates(cctx, base)
		if err != nil {
			return models.FXRates{}, fmt.Errorf("fx %s: %w", base, err)
		}
		return r, nil
	})
}
