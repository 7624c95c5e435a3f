// Package pricestream consumes the backend's /ws/prices snapshot stream.
package pricestream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/service/session"
	"FluxFeed/pkg/logger"
	"FluxFeed/pkg/util"

	"github.com/gorilla/websocket"
)

const (
	DefaultMinBackoff   = 2 * time.Second
	DefaultMaxBackoff   = 10 * time.Second
	DefaultPingInterval = 30 * time.Second
)

type Option func(*Client)

func WithBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		if min > 0 {
			c.minBackoff = min
		}
		if max >= c.minBackoff {
			c.maxBackoff = max
		}
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

// Client keeps one connection open, reconnecting with exponential backoff on
// close or error. A session token change forces a reconnect with the new token.
type Client struct {
	url          string
	session      *session.Session
	log          *logger.Logger
	dialer       *websocket.Dialer
	minBackoff   time.Duration
	maxBackoff   time.Duration
	pingInterval time.Duration
	now          func() time.Time

	connected atomic.Bool
	tokenCh   chan struct{}
}

func New(url string, s *session.Session, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		url:          url,
		session:      s,
		log:          log.With(logger.String("component", "pricestream")),
		dialer:       websocket.DefaultDialer,
		minBackoff:   DefaultMinBackoff,
		maxBackoff:   DefaultMaxBackoff,
		pingInterval: DefaultPingInterval,
		now:          time.Now,
		tokenCh:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) IsConnected() bool { return c.connected.Load() }

// nextBackoff doubles cur up to max.
func nextBackoff(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		return max
	}
	return cur
}

// Run blocks until ctx is cancelled, delivering each decoded frame to
// onUpdate in arrival order.
func (c *Client) Run(ctx context.Context, onUpdate func([]models.PricePoint)) error {
	if c.url == "" {
		return fmt.Errorf("pricestream: no stream url configured")
	}
	if c.session != nil {
		unsub := c.session.Subscribe(func(string) {
			select {
			case c.tokenCh <- struct{}{}:
			default:
			}
		})
		defer unsub()
	}

	backoff := c.minBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.log.Warn("stream dial failed", logger.Error(err), logger.Duration("retry_in_ms", backoff))
		} else {
			backoff = c.minBackoff
			c.log.Info("stream connected", logger.String("url", c.url))
			err = c.serve(ctx, conn, onUpdate)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, errTokenChanged) {
				continue
			}
			c.log.Warn("stream disconnected", logger.Error(err), logger.Duration("retry_in_ms", backoff))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.tokenCh:
			backoff = c.minBackoff
		case <-time.After(backoff):
			backoff = nextBackoff(backoff, c.maxBackoff)
		}
	}
}

var errTokenChanged = errors.New("pricestream: session token changed")

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.session != nil {
		if tok := c.session.Token(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}
	return conn, nil
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn, onUpdate func([]models.PricePoint)) error {
	c.connected.Store(true)
	defer c.connected.Store(false)

	done := make(chan struct{})
	var reason atomic.Value
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-c.tokenCh:
				reason.Store(errTokenChanged)
				_ = conn.Close()
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()
	defer close(done)
	defer conn.Close()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if r, ok := reason.Load().(error); ok {
				return r
			}
			return fmt.Errorf("read: %w", err)
		}
		pts, err := Decode(b, c.now().UTC())
		if err != nil {
			c.log.Debug("skipping malformed frame", logger.Error(err))
			continue
		}
		if len(pts) > 0 {
			onUpdate(pts)
		}
	}
}

type frameEntry struct {
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Decode parses one {"SYM": {price, change_24h, updated_at}} frame. Entries
// without a usable price are dropped; a missing updated_at becomes now.
// Output is sorted by symbol.
func Decode(b []byte, now time.Time) ([]models.PricePoint, error) {
	var frame map[string]frameEntry
	if err := json.Unmarshal(b, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	out := make([]models.PricePoint, 0, len(frame))
	for sym, e := range frame {
		p := models.PricePoint{
			Symbol:    util.NormalizeSymbol(sym),
			Price:     e.Price,
			Change24h: e.Change24h,
			UpdatedAt: e.UpdatedAt,
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = now
		}
		if p.Valid() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}
