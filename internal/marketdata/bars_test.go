package marketdata

import (
	"context"
	"testing"
	"time"

	"microtrade/internal/broker"
	"microtrade/internal/trading"
)

// barSource is a gateway stub serving a fixed bar slice.
type barSource struct {
	countingSource
	bars []broker.DailyBar
}

func (s *barSource) GetDailyBars(ctx context.Context, symbol string, market trading.Market, days int) ([]broker.DailyBar, error) {
	return append([]broker.DailyBar(nil), s.bars...), nil
}

func dailyBars(closes ...float64) []broker.DailyBar {
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]broker.DailyBar, len(closes))
	for i, c := range closes {
		out[i] = broker.DailyBar{Date: day.AddDate(0, 0, i), Close: c}
	}
	return out
}

func TestAnnotateMovingAverages_WindowGating(t *testing.T) {
	bars := dailyBars(1, 2, 3, 4, 5, 6)
	out := AnnotateMovingAverages(bars)
	if len(out) != 6 {
		t.Fatalf("len=%d want=6", len(out))
	}

	for i := 0; i < 4; i++ {
		if out[i].MA5 != nil {
			t.Fatalf("bar %d has ma5 before window filled", i)
		}
	}
	if out[4].MA5 == nil || *out[4].MA5 != 3 {
		t.Fatalf("ma5[4]=%v want=3", out[4].MA5)
	}
	if out[5].MA5 == nil || *out[5].MA5 != 4 {
		t.Fatalf("ma5[5]=%v want=4", out[5].MA5)
	}
	// 6 bars is short of the 20-day window everywhere.
	for i := range out {
		if out[i].MA20 != nil {
			t.Fatalf("bar %d has ma20 with only 6 bars", i)
		}
	}
}

func TestGetDailyBars_ChronologicalRegardlessOfFeedOrder(t *testing.T) {
	ctx := context.Background()
	asc := dailyBars(1, 2, 3, 4, 5)
	desc := make([]broker.DailyBar, len(asc))
	for i, b := range asc {
		desc[len(asc)-1-i] = b
	}

	for name, feed := range map[string][]broker.DailyBar{"ascending": asc, "descending": desc} {
		cache := newTestCache(nil, &barSource{bars: feed}, time.Second)
		out, err := cache.GetDailyBars(ctx, "005930", trading.MarketKR, 5)
		if err != nil {
			t.Fatalf("%s feed: %v", name, err)
		}
		if len(out) != 5 {
			t.Fatalf("%s feed: len=%d want=5", name, len(out))
		}
		for i := 1; i < len(out); i++ {
			if !out[i-1].Date.Before(out[i].Date) {
				t.Fatalf("%s feed: bars not ascending at %d", name, i)
			}
		}
		if out[4].MA5 == nil || *out[4].MA5 != 3 {
			t.Fatalf("%s feed: ma5[4]=%v want=3", name, out[4].MA5)
		}
	}
}

func TestAnnotateMovingAverages_MA20(t *testing.T) {
	closes := make([]float64, 0, 21)
	for i := 1; i <= 21; i++ {
		closes = append(closes, float64(i))
	}
	out := AnnotateMovingAverages(dailyBars(closes...))
	if out[18].MA20 != nil {
		t.Fatal("ma20 set before 20 bars")
	}
	// Mean of 1..20 is 10.5, of 2..21 is 11.5.
	if out[19].MA20 == nil || *out[19].MA20 != 10.5 {
		t.Fatalf("ma20[19]=%v want=10.5", out[19].MA20)
	}
	if out[20].MA20 == nil || *out[20].MA20 != 11.5 {
		t.Fatalf("ma20[20]=%v want=11.5", out[20].MA20)
	}
}
