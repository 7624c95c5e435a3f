package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FluxFeed/internal/domain/models"
	domrepo "FluxFeed/internal/domain/repository"
	"FluxFeed/internal/domain/service"
	"FluxFeed/pkg/logger"
	"FluxFeed/pkg/queue"
)

// JobChartBackfill is the queue message type for history backfills.
const JobChartBackfill = "chart.backfill"

// BackfillPayload names one series to fetch and store.
type BackfillPayload struct {
	Symbol     string `json:"symbol"`
	Resolution string `json:"resolution"`
	From       int64  `json:"from"`
	To         int64  `json:"to"`
}

// BackfillJob pulls history from a bar source and writes it to the candle
// store, so the chart cascade finds real data on the next request.
type BackfillJob struct {
	source service.CandleSource
	store  domrepo.CandleStore
	log    *logger.Logger
}

func NewBackfillJob(source service.CandleSource, store domrepo.CandleStore, log *logger.Logger) *BackfillJob {
	if log == nil {
		log = logger.NewNop()
	}
	return &BackfillJob{source: source, store: store, log: log}
}

func (j *BackfillJob) Name() string { return "chart-backfill" }
func (j *BackfillJob) Type() string { return JobChartBackfill }

// Handle returns nil for symbols the source cannot serve so the queue does
// not retry them.
func (j *BackfillJob) Handle(ctx context.Context, raw json.RawMessage) error {
	p, err := queue.Decode[BackfillPayload](raw)
	if err != nil {
		return err
	}
	if p.Symbol == "" || p.To <= p.From {
		return fmt.Errorf("backfill: invalid payload %+v", p)
	}
	res := domrepo.NormalizeResolution(p.Resolution)

	candles, err := j.source.Candles(ctx, p.Symbol, res, time.Unix(p.From, 0).UTC(), time.Unix(p.To, 0).UTC())
	if err != nil {
		if errors.Is(err, service.ErrUnsupported) {
			j.log.Info("backfill skipped", logger.String("symbol", p.Symbol), logger.Error(err))
			return nil
		}
		return fmt.Errorf("backfill %s: %w", p.Symbol, err)
	}
	candles = models.NormalizeCandles(candles)
	if len(candles) == 0 {
		return nil
	}
	if err := j.store.SaveCandles(ctx, p.Symbol, res, j.source.Name(), candles); err != nil {
		return fmt.Errorf("backfill %s: %w", p.Symbol, err)
	}
	j.log.Info("backfill stored",
		logger.String("symbol", p.Symbol),
		logger.String("resolution", string(res)),
		logger.Int("candles", len(candles)),
	)
	return nil
}

var _ queue.Job = (*BackfillJob)(nil)
