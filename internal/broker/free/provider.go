// Package free is the keyless, data-only gateway used when no brokerage
// credentials are configured. It serves delayed quotes from a public JSON
// endpoint and rejects everything order-shaped.
package free

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"microtrade/internal/broker"
	"microtrade/internal/trading"
)

type Provider struct {
	Logger *zap.Logger

	endpoint   string
	httpClient *http.Client
}

func NewProvider(httpClient *http.Client, endpoint string, logger *zap.Logger) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		Logger:     logger,
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: httpClient,
	}
}

func (p *Provider) Name() string { return "free" }

func (p *Provider) Connect(ctx context.Context) error {
	p.Logger.Info("free data provider ready", zap.String("endpoint", p.endpoint))
	return nil
}

func (p *Provider) Disconnect(ctx context.Context) error {
	return nil
}

func (p *Provider) PlaceOrder(ctx context.Context, req broker.OrderRequest) (*broker.OrderResult, error) {
	return nil, fmt.Errorf("%w: free provider cannot place orders", broker.ErrUnsupported)
}

func (p *Provider) CancelOrder(ctx context.Context, brokerOrderID string) error {
	return fmt.Errorf("%w: free provider cannot cancel orders", broker.ErrUnsupported)
}

func (p *Provider) GetBalance(ctx context.Context) broker.Balance {
	return broker.Balance{Currency: "KRW"}
}

func (p *Provider) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if p.endpoint == "" {
		return nil, fmt.Errorf("free provider endpoint not configured")
	}
	fullURL := p.endpoint + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("free provider error (%d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (p *Provider) GetQuote(ctx context.Context, symbol string, market trading.Market) (*broker.Quote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("market", string(market))
	body, err := p.get(ctx, "/quote", params)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Price      float64 `json:"price"`
		PrevClose  float64 `json:"prev_close"`
		ChangeRate float64 `json:"change_rate"`
		Volume     int64   `json:"volume"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("quote response malformed: %w", err)
	}
	return &broker.Quote{
		Symbol:     symbol,
		Market:     market,
		Price:      parsed.Price,
		PrevClose:  parsed.PrevClose,
		ChangeRate: parsed.ChangeRate,
		Volume:     parsed.Volume,
		At:         time.Now().UTC(),
	}, nil
}

func (p *Provider) GetDailyBars(ctx context.Context, symbol string, market trading.Market, days int) ([]broker.DailyBar, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("market", string(market))
	if days > 0 {
		params.Set("days", fmt.Sprintf("%d", days))
	}
	body, err := p.get(ctx, "/daily", params)
	if err != nil {
		return nil, err
	}
	var parsed []struct {
		Date   string  `json:"date"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume int64   `json:"volume"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("daily response malformed: %w", err)
	}
	bars := make([]broker.DailyBar, 0, len(parsed))
	for _, item := range parsed {
		date, err := time.Parse("2006-01-02", item.Date)
		if err != nil {
			continue
		}
		bars = append(bars, broker.DailyBar{
			Date:   date,
			Open:   item.Open,
			High:   item.High,
			Low:    item.Low,
			Close:  item.Close,
			Volume: item.Volume,
		})
	}
	return bars, nil
}

// GetIntradayBars is unsupported on the delayed feed.
func (p *Provider) GetIntradayBars(ctx context.Context, symbol string, market trading.Market, minutes int) ([]broker.IntradayBar, error) {
	return nil, fmt.Errorf("%w: free provider has no intraday data", broker.ErrUnsupported)
}
