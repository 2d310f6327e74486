package kis

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"microtrade/internal/broker"
	"microtrade/internal/trading"
)

// Realtime execution-tick TR for domestic equities.
const streamTickTR = "H0STCNT0"

// QuoteStream subscribes to the KIS realtime websocket and forwards parsed
// ticks into Sink. It reconnects with linear backoff until the context is
// cancelled.
type QuoteStream struct {
	Logger *zap.Logger

	URL            string
	AppKey         string
	AppSecret      string
	Symbols        []string
	ReconnectDelay time.Duration
	MaxBackoff     time.Duration

	Sink func(q broker.Quote)

	mu     sync.Mutex
	cancel context.CancelFunc
	conn   *websocket.Conn
}

func (s *QuoteStream) Run(ctx context.Context) {
	if s == nil || s.Sink == nil || strings.TrimSpace(s.URL) == "" {
		return
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	backoff := s.ReconnectDelay
	if backoff <= 0 {
		backoff = 3 * time.Second
	}
	maxBackoff := s.MaxBackoff
	if maxBackoff < backoff {
		maxBackoff = backoff
	}

	delay := backoff
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.Logger.Warn("quote stream dropped, reconnecting",
				zap.Duration("delay", delay), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay += backoff
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
}

func (s *QuoteStream) runOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.URL, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "shutdown")
	}()

	for _, symbol := range s.Symbols {
		if err := s.subscribe(ctx, conn, symbol); err != nil {
			return err
		}
	}
	s.Logger.Info("quote stream connected", zap.Int("symbols", len(s.Symbols)))

	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		q, ok := parseTick(msg)
		if !ok {
			continue
		}
		s.Sink(q)
	}
}

func (s *QuoteStream) subscribe(ctx context.Context, conn *websocket.Conn, symbol string) error {
	payload := map[string]any{
		"header": map[string]string{
			"appkey":    s.AppKey,
			"appsecret": s.AppSecret,
			"custtype":  "P",
			"tr_type":   "1",
		},
		"body": map[string]any{
			"input": map[string]string{
				"tr_id":  streamTickTR,
				"tr_key": symbol,
			},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, raw)
}

func (s *QuoteStream) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	conn := s.conn
	s.cancel = nil
	s.conn = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "stop")
	}
}

// parseTick decodes a realtime data frame. Data frames are pipe-delimited
// ("0|H0STCNT0|001|payload") with a caret-separated payload; everything
// else (subscription acks, pingpong JSON) is ignored.
func parseTick(msg []byte) (broker.Quote, bool) {
	raw := string(msg)
	if len(raw) == 0 || (raw[0] != '0' && raw[0] != '1') {
		return broker.Quote{}, false
	}
	parts := strings.Split(raw, "|")
	if len(parts) < 4 || parts[1] != streamTickTR {
		return broker.Quote{}, false
	}
	fields := strings.Split(parts[3], "^")
	if len(fields) < 14 {
		return broker.Quote{}, false
	}

	price, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || price <= 0 {
		return broker.Quote{}, false
	}
	changeRate, _ := strconv.ParseFloat(fields[5], 64)
	volume, _ := strconv.ParseInt(fields[13], 10, 64)
	return broker.Quote{
		Symbol:     fields[0],
		Market:     trading.MarketKR,
		Price:      price,
		ChangeRate: changeRate,
		Volume:     volume,
		At:         time.Now().UTC(),
	}, true
}
