package kis

import (
	"testing"
	"time"

	"microtrade/internal/broker"
)

func minuteBars(n int) []broker.IntradayBar {
	start := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	out := make([]broker.IntradayBar, n)
	for i := range out {
		f := float64(i + 1)
		out[i] = broker.IntradayBar{
			At:     start.Add(time.Duration(i) * time.Minute),
			Open:   f,
			High:   f + 0.5,
			Low:    f - 0.5,
			Close:  f + 0.25,
			Volume: 100,
		}
	}
	return out
}

func TestAggregateBars_DropsPartialTrailingBucket(t *testing.T) {
	bars := minuteBars(7)
	out := AggregateBars(bars, 3)
	if len(out) != 2 {
		t.Fatalf("len=%d want=2 (7 bars / width 3, remainder dropped)", len(out))
	}

	first := out[0]
	if !first.At.Equal(bars[0].At) {
		t.Fatalf("at=%v want=%v", first.At, bars[0].At)
	}
	if first.Open != 1 || first.Close != 3.25 {
		t.Fatalf("open=%v close=%v want open=1 close=3.25", first.Open, first.Close)
	}
	if first.High != 3.5 || first.Low != 0.5 {
		t.Fatalf("high=%v low=%v want high=3.5 low=0.5", first.High, first.Low)
	}
	if first.Volume != 300 {
		t.Fatalf("volume=%d want=300", first.Volume)
	}
}

func TestAggregateBars_WidthOnePassesThrough(t *testing.T) {
	bars := minuteBars(4)
	out := AggregateBars(bars, 1)
	if len(out) != 4 {
		t.Fatalf("len=%d want=4", len(out))
	}
}

func TestParseTick(t *testing.T) {
	payload := "005930^093012^71500^2^5^1.25^71000^71400^71600^71450^71500^2^300^1234567"
	msg := []byte("0|H0STCNT0|001|" + payload)

	q, ok := parseTick(msg)
	if !ok {
		t.Fatal("tick not parsed")
	}
	if q.Symbol != "005930" {
		t.Fatalf("symbol=%q want=005930", q.Symbol)
	}
	if q.Price != 71_500 {
		t.Fatalf("price=%v want=71500", q.Price)
	}
	if q.ChangeRate != 1.25 {
		t.Fatalf("change rate=%v want=1.25", q.ChangeRate)
	}
	if q.Volume != 1_234_567 {
		t.Fatalf("volume=%d want=1234567", q.Volume)
	}
}

func TestParseTick_RejectsControlFrames(t *testing.T) {
	if _, ok := parseTick([]byte(`{"header":{"tr_id":"PINGPONG"}}`)); ok {
		t.Fatal("json control frame parsed as tick")
	}
	if _, ok := parseTick([]byte("0|H0STASP0|001|005930^1^2")); ok {
		t.Fatal("wrong tr parsed as tick")
	}
	if _, ok := parseTick([]byte("0|H0STCNT0|001|005930^1")); ok {
		t.Fatal("short payload parsed as tick")
	}
}
