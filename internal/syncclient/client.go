package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/castfund/backend/internal/events"
)

var ErrTransportDisconnected = errors.New("syncclient: transport disconnected")

// PaymentStatusFunc asks the server for a deposit's outcome. done is false
// while it is still pending.
type PaymentStatusFunc func(ctx context.Context, transactionID string) (done, succeeded bool, err error)

type Options struct {
	URL        string // ws(s)://host/api/v1/events/ws
	Token      string
	Dialer     *websocket.Dialer
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     *slog.Logger

	// PaymentStatus, if set, is polled for pending payments after every
	// (re)connect, since their outcome may have been missed.
	PaymentStatus PaymentStatusFunc
}

// wireEvent is events.Event with the payload left undecoded.
type wireEvent struct {
	ID   string          `json:"id"`
	Type events.Type     `json:"type"`
	Keys events.Keys     `json:"entityKeys"`
	Data json.RawMessage `json:"data"`
	At   time.Time       `json:"at"`
}

type Client struct {
	opts     Options
	cache    *Cache
	payments *PendingPayments
	logger   *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	connID string
}

func New(cache *Cache, payments *PendingPayments, opts Options) *Client {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{opts: opts, cache: cache, payments: payments, logger: logger}
}

func (c *Client) Cache() *Cache              { return c.cache }
func (c *Client) Payments() *PendingPayments { return c.payments }

// ConnectionID is empty while disconnected.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// Run keeps a stream connection open until ctx ends, reconnecting with
// exponential backoff. Every drop marks the whole cache STALE.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.opts.MinBackoff
	for {
		err := c.connectAndServe(ctx)
		c.cache.MarkAllStale()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("[SYNC] stream lost, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if err == nil || !errors.Is(err, errDial) {
			backoff = c.opts.MinBackoff
		} else {
			backoff = min(backoff*2, c.opts.MaxBackoff)
		}
	}
}

var errDial = errors.New("dial")

func (c *Client) connectAndServe(ctx context.Context) error {
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		return fmt.Errorf("%w: %w", errDial, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		c.mu.Lock()
		c.conn = nil
		c.connID = ""
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		var e wireEvent
		if err := conn.ReadJSON(&e); err != nil {
			return fmt.Errorf("%w: %w", ErrTransportDisconnected, err)
		}
		c.handle(ctx, e)
	}
}

func (c *Client) handle(ctx context.Context, e wireEvent) {
	switch e.Type {
	case events.Connected:
		var p struct {
			ConnectionID string `json:"connectionId"`
		}
		if err := json.Unmarshal(e.Data, &p); err != nil || p.ConnectionID == "" {
			c.logger.Warn("[SYNC] connected frame without connection id", "event_id", e.ID, "error", err)
		} else {
			c.mu.Lock()
			c.connID = p.ConnectionID
			c.mu.Unlock()
		}

		c.cache.MarkAllStale()
		go c.afterConnect(ctx)
		return

	case events.UserLogout:
		c.cache.Clear()
		return

	case events.TransactionSuccess, events.TransactionFailed:
		var p struct {
			TransactionID string `json:"transactionId"`
		}
		if err := json.Unmarshal(e.Data, &p); err == nil && p.TransactionID != "" {
			c.payments.Resolve(p.TransactionID, e.Type == events.TransactionSuccess)
		}
	}
	c.cache.Invalidate(KeysFor(e.Type, e.Keys)...)
}

// afterConnect recovers what may have been missed while disconnected.
func (c *Client) afterConnect(ctx context.Context) {
	if c.opts.PaymentStatus != nil {
		for _, id := range c.payments.Pending() {
			done, ok, err := c.opts.PaymentStatus(ctx, id)
			if err != nil {
				c.logger.Warn("[SYNC] payment status poll failed", "transaction_id", id, "error", err)
				continue
			}
			if done {
				c.payments.Resolve(id, ok)
				c.cache.Invalidate(KeyWalletBalance, KeyWalletTransactions)
			}
		}
	}
	if err := c.cache.Resync(ctx); err != nil {
		c.logger.Warn("[SYNC] resync failed", "error", err)
	}
}

type watchMessage struct {
	EpisodeIDs []string `json:"episodeIds,omitempty"`
	ReviewIDs  []string `json:"reviewIds,omitempty"`
	SeriesIDs  []string `json:"seriesIds,omitempty"`
}

// Watch asks the server for events about the given entities on the
// current connection. Interest does not survive a reconnect.
func (c *Client) Watch(episodeIDs, reviewIDs, seriesIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrTransportDisconnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteJSON(watchMessage{EpisodeIDs: episodeIDs, ReviewIDs: reviewIDs, SeriesIDs: seriesIDs}); err != nil {
		return fmt.Errorf("%w: %w", ErrTransportDisconnected, err)
	}
	return nil
}
