package broker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"microtrade/internal/trading"
)

// Factory builds an unconnected gateway for a mode.
type Factory func(mode trading.Mode) (Broker, error)

// Registry hands out one connected gateway per trading mode. Construction
// and Connect happen under the lock, so concurrent callers never observe a
// half-connected instance and Connect runs at most once per mode.
type Registry struct {
	Logger *zap.Logger

	mu      sync.Mutex
	factory Factory
	brokers map[trading.Mode]Broker
}

func NewRegistry(factory Factory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		Logger:  logger,
		factory: factory,
		brokers: make(map[trading.Mode]Broker),
	}
}

// Get returns the cached gateway for the mode, building and connecting it
// on first use. A failed Connect is not cached; the next call retries.
func (r *Registry) Get(ctx context.Context, mode trading.Mode) (Broker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.brokers[mode]; ok {
		return b, nil
	}

	b, err := r.factory(mode)
	if err != nil {
		return nil, err
	}
	if err := b.Connect(ctx); err != nil {
		r.Logger.Warn("broker connect failed",
			zap.String("mode", string(mode)), zap.Error(err))
		return nil, err
	}

	r.brokers[mode] = b
	r.Logger.Info("broker connected",
		zap.String("mode", string(mode)), zap.String("broker", b.Name()))
	return b, nil
}

// Evict disconnects and drops the cached gateway for the mode, if any.
// Used when credentials change or a mode switch wants a fresh session.
func (r *Registry) Evict(ctx context.Context, mode trading.Mode) {
	r.mu.Lock()
	b, ok := r.brokers[mode]
	if ok {
		delete(r.brokers, mode)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := b.Disconnect(ctx); err != nil {
		r.Logger.Warn("broker disconnect failed",
			zap.String("mode", string(mode)), zap.Error(err))
	}
}

// Shutdown disconnects every cached gateway.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	brokers := r.brokers
	r.brokers = make(map[trading.Mode]Broker)
	r.mu.Unlock()

	for mode, b := range brokers {
		if err := b.Disconnect(ctx); err != nil {
			r.Logger.Warn("broker disconnect failed",
				zap.String("mode", string(mode)), zap.Error(err))
		}
	}
}
