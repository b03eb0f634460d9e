// Package feed optionally replaces the CSV reader with a live
// WebSocket source: one JSON-encoded MBO event per text message, fed
// to the same Reconstructor.Process used by the CSV path. The engine
// itself is transport-agnostic; this package only produces Events.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aryandadwal2006/mbp-reconstructor/internal/infra/metrics"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/mbo"
	"github.com/aryandadwal2006/mbp-reconstructor/internal/price"
)

// wireEvent is the JSON shape of one live-feed message; field names
// mirror the CSV header so the two transports share a mental model.
type wireEvent struct {
	TsRecv       string `json:"ts_recv"`
	TsEvent      string `json:"ts_event"`
	RType        int    `json:"rtype"`
	PublisherID  int    `json:"publisher_id"`
	InstrumentID int    `json:"instrument_id"`
	Action       string `json:"action"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	Size         uint32 `json:"size"`
	Flags        uint32 `json:"flags"`
	TsInDelta    uint64 `json:"ts_in_delta"`
	Sequence     uint64 `json:"sequence"`
	Symbol       string `json:"symbol"`
	OrderID      uint64 `json:"order_id"`
}

func (w wireEvent) toEvent() mbo.Event {
	ev := mbo.Event{
		TsRecv: w.TsRecv, TsEvent: w.TsEvent, RType: w.RType,
		PublisherID: w.PublisherID, InstrumentID: w.InstrumentID,
		Size: w.Size, Flags: w.Flags, TsInDelta: w.TsInDelta,
		Sequence: w.Sequence, Symbol: w.Symbol, OrderID: w.OrderID,
	}
	if len(w.Action) > 0 {
		ev.Action = mbo.Action(w.Action[0])
	}
	if len(w.Side) > 0 {
		ev.Side = mbo.Side(w.Side[0])
	} else {
		ev.Side = mbo.SideNeutral
	}
	ev.PriceScaled = price.ParseScaled(w.Price)
	return ev
}

// Client streams mbo.Event values from a WebSocket URL onto a
// channel until the context is canceled. After a read error it
// reconnects at once; failed dials are retried with exponential
// backoff.
type Client struct {
	url    string
	logger zerolog.Logger

	mu   sync.RWMutex
	conn *websocket.Conn

	ReadTimeout time.Duration
}

// NewClient returns a Client for url.
func NewClient(url string, logger zerolog.Logger) *Client {
	return &Client{url: url, logger: logger, ReadTimeout: 60 * time.Second}
}

// Run streams decoded events onto out until ctx is canceled. out is
// closed on return.
func (c *Client) Run(ctx context.Context, out chan<- mbo.Event) {
	defer close(out)
	retry := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.connect(ctx); err != nil {
			c.logger.Warn().Err(err).Int("retry", retry).Msg("feed connect failed")
			metrics.WSReconnectsTotal.Inc()
			delay := calculateBackoff(retry)
			retry++
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0
		c.readLoop(ctx, out)
	}
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	conn, _, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", c.url, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.logger.Info().Str("url", c.url).Msg("feed connected")
	return nil
}

func (c *Client) readLoop(ctx context.Context, out chan<- mbo.Event) {
	// Closing the connection on cancellation unblocks ReadMessage so
	// Run returns promptly instead of waiting out ReadTimeout.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.close()
		case <-stop:
		}
	}()

	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn().Err(err).Msg("feed read error")
			c.close()
			return
		}

		var w wireEvent
		if err := json.Unmarshal(msg, &w); err != nil {
			c.logger.Warn().Err(err).Msg("feed decode error, dropping message")
			continue
		}

		select {
		case out <- w.toEvent():
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
