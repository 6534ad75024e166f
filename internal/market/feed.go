package market

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	ReconnBaseDelay = 1 * time.Second
	ReconnMaxDelay  = 30 * time.Second
	PingPeriod      = 15 * time.Second // Keep-alive interval
)

// QuoteFeed maintains quote books for the configured pairs from a
// websocket quote stream, reconnecting with exponential backoff.
type QuoteFeed struct {
	url         string
	conn        *websocket.Conn
	mu          sync.RWMutex
	books       map[string]*QuoteBook
	subs        []string // pairs we want quotes for
	ctx         context.Context
	cancel      context.CancelFunc
	isConnected bool
}

func NewQuoteFeed(url string, pairs []string) *QuoteFeed {
	ctx, cancel := context.WithCancel(context.Background())
	f := &QuoteFeed{
		url:    url,
		books:  make(map[string]*QuoteBook),
		subs:   make([]string, 0, len(pairs)),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, pair := range pairs {
		f.subs = append(f.subs, pair)
		f.books[pair] = NewQuoteBook(pair)
	}
	return f
}

// Start launches the connection loop in a background goroutine
func (f *QuoteFeed) Start() {
	go f.runLoop()
}

// Stop closes the feed
func (f *QuoteFeed) Stop() {
	f.cancel()
	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()
	if conn != nil {
		conn.Close()
	}
}

// Book returns the quote book for a pair, or nil if not subscribed.
func (f *QuoteFeed) Book(pair string) *QuoteBook {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.books[pair]
}

func (f *QuoteFeed) runLoop() {
	delay := ReconnBaseDelay

	for {
		select {
		case <-f.ctx.Done():
			return
		default:
		}

		if err := f.connect(); err != nil {
			logger.Error("Quote feed connection failed", "error", err, "retry_in", delay)
			timer := time.NewTimer(delay)
			select {
			case <-f.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			delay *= 2
			if delay > ReconnMaxDelay {
				delay = ReconnMaxDelay
			}
			continue
		}

		// Connected successfully
		delay = ReconnBaseDelay
		f.mu.Lock()
		f.isConnected = true
		f.mu.Unlock()

		if err := f.sendSubscribe(); err != nil {
			logger.Error("Failed to subscribe quote feed", "error", err)
			f.conn.Close()
			continue
		}

		f.readLoop()

		f.mu.Lock()
		f.isConnected = false
		f.mu.Unlock()
	}
}

func (f *QuoteFeed) connect() error {
	if f.url == "" {
		return fmt.Errorf("quote feed url not configured")
	}
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	// Zombie check: no data or pong within the window means dead.
	readTimeout := PingPeriod + 10*time.Second
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	// Pinger
	go func() {
		ticker := time.NewTicker(PingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-f.ctx.Done():
				return
			case <-ticker.C:
				f.mu.Lock()
				if !f.isConnected || f.conn != conn {
					f.mu.Unlock()
					return
				}
				err := conn.WriteMessage(websocket.PingMessage, []byte{})
				f.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	return nil
}

type quoteMessage struct {
	EventType string `json:"event_type"` // "quote"
	Pair      string `json:"pair"`
	FeeTier   int    `json:"fee_tier"`
	Output    string `json:"output_amount"`
	Liquidity string `json:"pool_liquidity"`
}

func (f *QuoteFeed) sendSubscribe() error {
	f.mu.RLock()
	pairs := f.subs
	conn := f.conn
	f.mu.RUnlock()

	msg := map[string]interface{}{
		"type":  "subscribe",
		"pairs": pairs,
	}
	return conn.WriteJSON(msg)
}

func (f *QuoteFeed) readLoop() {
	defer f.conn.Close()

	readTimeout := PingPeriod + 10*time.Second

	for {
		f.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := f.conn.ReadMessage()
		if err != nil {
			logger.Error("Quote feed read error", "error", err)
			return
		}

		// The feed sends arrays of quote messages; tolerate single objects.
		var msgs []quoteMessage
		if err := json.Unmarshal(message, &msgs); err != nil {
			var single quoteMessage
			if err2 := json.Unmarshal(message, &single); err2 == nil {
				msgs = []quoteMessage{single}
			} else {
				continue
			}
		}

		for _, m := range msgs {
			if m.EventType != "quote" || m.Pair == "" {
				continue
			}
			f.mu.RLock()
			book := f.books[m.Pair]
			f.mu.RUnlock()
			if book == nil {
				continue
			}
			if err := book.Update(m.FeeTier, m.Output, m.Liquidity); err != nil {
				logger.Debug("dropping malformed quote", "pair", m.Pair, "error", err)
			}
		}
	}
}
