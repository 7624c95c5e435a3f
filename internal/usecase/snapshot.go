package usecase

import (
	"sort"
	"sync"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/service/coingecko"
	"FluxFeed/pkg/util"
)

// SnapshotStore is the shared symbol -> latest price map. Every writer
// overwrites; there is no ordering between sources.
type SnapshotStore struct {
	mu     sync.RWMutex
	points models.Snapshot
	crypto map[string]struct{}
}

type SnapshotOption func(*SnapshotStore)

// WithCryptoSymbols sets the base assets a quoted pair such as BTCUSDT may
// fall back to. The default is the CoinGecko catalog.
func WithCryptoSymbols(symbols ...string) SnapshotOption {
	return func(s *SnapshotStore) {
		s.crypto = make(map[string]struct{}, len(symbols))
		for _, sym := range symbols {
			s.crypto[util.NormalizeSymbol(sym)] = struct{}{}
		}
	}
}

func NewSnapshotStore(opts ...SnapshotOption) *SnapshotStore {
	s := &SnapshotStore{points: make(models.Snapshot)}
	WithCryptoSymbols(CatalogSymbols(nil)...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CatalogSymbols lists the display symbols of an id -> symbol catalog, or of
// coingecko.DefaultCatalog when ids is empty.
func CatalogSymbols(ids map[string]string) []string {
	if len(ids) == 0 {
		ids = coingecko.DefaultCatalog
	}
	out := make([]string, 0, len(ids))
	for _, sym := range ids {
		out = append(out, sym)
	}
	return out
}

// Apply stores the valid points under their normalized symbol and returns
// the ones it kept.
func (s *SnapshotStore) Apply(points []models.PricePoint) []models.PricePoint {
	kept := make([]models.PricePoint, 0, len(points))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		p.Symbol = util.NormalizeSymbol(p.Symbol)
		if !p.Valid() {
			continue
		}
		s.points[p.Symbol] = p
		kept = append(kept, p)
	}
	return kept
}

// Get looks symbol up as given, then by its base asset so BTCUSDT finds BTC.
// Only known crypto assets take the second path; EURUSD never matches EUR.
func (s *SnapshotStore) Get(symbol string) (models.PricePoint, bool) {
	sym := util.NormalizeSymbol(symbol)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.points[sym]; ok {
		return p, true
	}
	if base := util.BaseAsset(sym); base != sym && s.isCrypto(base) {
		if p, ok := s.points[base]; ok {
			return p, true
		}
	}
	return models.PricePoint{}, false
}

func (s *SnapshotStore) isCrypto(base string) bool {
	_, ok := s.crypto[base]
	return ok
}

// All returns a copy of the snapshot.
func (s *SnapshotStore) All() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(models.Snapshot, len(s.points))
	for k, v := range s.points {
		out[k] = v
	}
	return out
}

// Points returns the snapshot sorted by symbol.
func (s *SnapshotStore) Points() []models.PricePoint {
	s.mu.RLock()
	out := make([]models.PricePoint, 0, len(s.points))
	for _, p := range s.points {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}
