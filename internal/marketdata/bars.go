package marketdata

import (
	"context"
	"sort"

	"microtrade/internal/broker"
	"microtrade/internal/trading"
)

// BarWithMA is a daily bar annotated with trailing moving averages. An MA
// is nil until its window has enough history.
type BarWithMA struct {
	broker.DailyBar
	MA5  *float64
	MA20 *float64
}

// GetDailyBars fetches daily bars from the active gateway and annotates
// them with 5- and 20-day moving averages, oldest first.
func (c *Cache) GetDailyBars(ctx context.Context, symbol string, market trading.Market, days int) ([]BarWithMA, error) {
	if c.Gateway == nil {
		return nil, broker.ErrNotConnected
	}
	src, err := c.Gateway(ctx)
	if err != nil {
		return nil, err
	}
	bars, err := src.GetDailyBars(ctx, symbol, market, days)
	if err != nil {
		return nil, err
	}
	// Gateway order varies by source; MAs want chronological order.
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return AnnotateMovingAverages(bars), nil
}

// GetIntradayBars passes minute bars through from the active gateway.
func (c *Cache) GetIntradayBars(ctx context.Context, symbol string, market trading.Market, minutes int) ([]broker.IntradayBar, error) {
	if c.Gateway == nil {
		return nil, broker.ErrNotConnected
	}
	src, err := c.Gateway(ctx)
	if err != nil {
		return nil, err
	}
	return src.GetIntradayBars(ctx, symbol, market, minutes)
}

// AnnotateMovingAverages computes trailing ma5/ma20 over chronologically
// ordered bars.
func AnnotateMovingAverages(bars []broker.DailyBar) []BarWithMA {
	out := make([]BarWithMA, len(bars))
	for i, b := range bars {
		out[i] = BarWithMA{DailyBar: b}
		if ma, ok := trailingMean(bars, i, 5); ok {
			out[i].MA5 = &ma
		}
		if ma, ok := trailingMean(bars, i, 20); ok {
			out[i].MA20 = &ma
		}
	}
	return out
}

func trailingMean(bars []broker.DailyBar, end, window int) (float64, bool) {
	if end+1 < window {
		return 0, false
	}
	sum := 0.0
	for i := end + 1 - window; i <= end; i++ {
		sum += bars[i].Close
	}
	return sum / float64(window), true
}
