package broker

import (
	"context"
	"errors"
	"testing"

	"microtrade/internal/trading"
)

// fakeBroker counts lifecycle calls.
type fakeBroker struct {
	name        string
	connectErr  error
	connects    int
	disconnects int
}

func (f *fakeBroker) Name() string { return f.name }

func (f *fakeBroker) Connect(ctx context.Context) error {
	f.connects++
	return f.connectErr
}

func (f *fakeBroker) Disconnect(ctx context.Context) error {
	f.disconnects++
	return nil
}

func (f *fakeBroker) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	return nil, ErrUnsupported
}

func (f *fakeBroker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	return ErrUnsupported
}

func (f *fakeBroker) GetBalance(ctx context.Context) Balance { return Balance{} }

func (f *fakeBroker) GetQuote(ctx context.Context, symbol string, market trading.Market) (*Quote, error) {
	return nil, ErrUnsupported
}

func (f *fakeBroker) GetDailyBars(ctx context.Context, symbol string, market trading.Market, days int) ([]DailyBar, error) {
	return nil, ErrUnsupported
}

func (f *fakeBroker) GetIntradayBars(ctx context.Context, symbol string, market trading.Market, minutes int) ([]IntradayBar, error) {
	return nil, ErrUnsupported
}

func TestRegistry_ConnectsOncePerMode(t *testing.T) {
	ctx := context.Background()
	built := 0
	fake := &fakeBroker{name: "paper"}
	registry := NewRegistry(func(mode trading.Mode) (Broker, error) {
		built++
		return fake, nil
	}, nil)

	first, err := registry.Get(ctx, trading.ModePaper)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := registry.Get(ctx, trading.ModePaper)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if first != second {
		t.Fatal("expected the cached instance")
	}
	if built != 1 || fake.connects != 1 {
		t.Fatalf("built=%d connects=%d want=1/1", built, fake.connects)
	}
}

func TestRegistry_FailedConnectNotCached(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBroker{name: "kis", connectErr: errors.New("boom")}
	registry := NewRegistry(func(mode trading.Mode) (Broker, error) {
		return fake, nil
	}, nil)

	if _, err := registry.Get(ctx, trading.ModeReal); err == nil {
		t.Fatal("expected connect error")
	}

	// The next call retries instead of serving the broken instance.
	fake.connectErr = nil
	if _, err := registry.Get(ctx, trading.ModeReal); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if fake.connects != 2 {
		t.Fatalf("connects=%d want=2", fake.connects)
	}
}

func TestRegistry_EvictDisconnects(t *testing.T) {
	ctx := context.Background()
	fake := &fakeBroker{name: "paper"}
	registry := NewRegistry(func(mode trading.Mode) (Broker, error) {
		return fake, nil
	}, nil)

	if _, err := registry.Get(ctx, trading.ModePaper); err != nil {
		t.Fatalf("get: %v", err)
	}
	registry.Evict(ctx, trading.ModePaper)
	if fake.disconnects != 1 {
		t.Fatalf("disconnects=%d want=1", fake.disconnects)
	}

	if _, err := registry.Get(ctx, trading.ModePaper); err != nil {
		t.Fatalf("get after evict: %v", err)
	}
	if fake.connects != 2 {
		t.Fatalf("connects=%d want=2 (reconnect after evict)", fake.connects)
	}
}

func TestRegistry_ShutdownDrainsAll(t *testing.T) {
	ctx := context.Background()
	fakes := map[trading.Mode]*fakeBroker{
		trading.ModePaper: {name: "paper"},
		trading.ModeReal:  {name: "kis"},
	}
	registry := NewRegistry(func(mode trading.Mode) (Broker, error) {
		return fakes[mode], nil
	}, nil)

	for mode := range fakes {
		if _, err := registry.Get(ctx, mode); err != nil {
			t.Fatalf("get %s: %v", mode, err)
		}
	}
	registry.Shutdown(ctx)
	for mode, fake := range fakes {
		if fake.disconnects != 1 {
			t.Fatalf("%s disconnects=%d want=1", mode, fake.disconnects)
		}
	}
}
