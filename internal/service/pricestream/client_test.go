package pricestream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/service/session"
	"FluxFeed/pkg/logger"

	"github.com/gorilla/websocket"
)

func TestNextBackoff(t *testing.T) {
	got := []time.Duration{DefaultMinBackoff}
	for i := 0; i < 4; i++ {
		got = append(got, nextBackoff(got[len(got)-1], DefaultMaxBackoff))
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("backoff sequence = %v, want %v", got, want)
		}
	}
}

func TestDecode(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	pts, err := Decode([]byte(`{
		"BTC":{"price":65000,"change_24h":1.2,"updated_at":"2025-01-01T00:00:05Z"},
		"eth":{"price":3000},
		"BAD":{"price":0}
	}`), now)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pts) != 2 || pts[0].Symbol != "BTC" || pts[1].Symbol != "ETH" {
		t.Fatalf("unexpected points %+v", pts)
	}
	if pts[1].UpdatedAt != now || pts[0].UpdatedAt.Second() != 5 {
		t.Fatalf("unexpected timestamps %+v", pts)
	}

	if _, err := Decode([]byte(`[1,2]`), now); err == nil {
		t.Fatalf("expected error for non-object frame")
	}
}

// streamServer accepts connections, sends one frame and hangs up.
func streamServer(t *testing.T, conns *atomic.Int32, auth *atomic.Value) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		price := "101"
		if conns.Add(1) == 1 {
			price = "100"
		}
		frame := `{"AAPL":{"price":` + price + `,"change_24h":0.5}}`
		_ = ws.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = ws.WriteMessage(websocket.TextMessage, []byte(frame))
		time.Sleep(20 * time.Millisecond)
		_ = ws.Close()
	}))
}

func TestRunReconnectsAndDelivers(t *testing.T) {
	var conns atomic.Int32
	var auth atomic.Value
	srv := streamServer(t, &conns, &auth)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(url, session.New("tok"), logger.NewNop(), WithBackoff(5*time.Millisecond, 20*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var mu sync.Mutex
	var prices []float64
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(ctx, func(pts []models.PricePoint) {
			mu.Lock()
			defer mu.Unlock()
			for _, p := range pts {
				prices = append(prices, p.Price)
			}
			if len(prices) >= 2 {
				cancel()
			}
		})
	}()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not return")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(prices) < 2 || prices[0] != 100 || prices[1] != 101 {
		t.Fatalf("unexpected prices %v", prices)
	}
	if conns.Load() < 2 {
		t.Fatalf("expected a reconnect, got %d connections", conns.Load())
	}
	if auth.Load() != "Bearer tok" {
		t.Fatalf("unexpected auth header %v", auth.Load())
	}
	if c.IsConnected() {
		t.Fatalf("client should report disconnected after Run returns")
	}
}

func TestRunWithoutURL(t *testing.T) {
	c := New("", nil, logger.NewNop())
	if err := c.Run(context.Background(), func([]models.PricePoint) {}); err == nil {
		t.Fatalf("expected error without url")
	}
}

func TestRunReconnectsOnTokenChange(t *testing.T) {
	var mu sync.Mutex
	var headers []string
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = append(headers, r.Header.Get("Authorization"))
		mu.Unlock()
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		// hold the connection until the client drops it
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	seen := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), headers...)
	}

	sess := session.New("a")
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	// an hour of backoff leaves the token change as the only way to redial
	c := New(url, sess, logger.NewNop(), WithBackoff(time.Hour, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx, func([]models.PricePoint) {}) }()

	deadline := time.Now().Add(2 * time.Second)
	for (!c.IsConnected() || len(seen()) == 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !c.IsConnected() {
		t.Fatalf("client never connected")
	}

	sess.Set("b")
	for len(seen()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-errCh; err != context.Canceled {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	got := seen()
	if len(got) != 2 || got[0] != "Bearer a" || got[1] != "Bearer b" {
		t.Fatalf("authorization headers = %v", got)
	}
}
