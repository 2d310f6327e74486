package trading

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ModeStore persists the active trading mode across restarts.
type ModeStore interface {
	LoadMode(ctx context.Context) (Mode, bool, error)
	SaveMode(ctx context.Context, m Mode) error
}

// ModeSwitch owns the process-wide trading mode. Reads are cheap; writes
// persist through the store before flipping the in-memory value and then
// notify subscribers.
type ModeSwitch struct {
	Store  ModeStore
	Logger *zap.Logger

	mu        sync.RWMutex
	current   Mode
	listeners []func(old, new Mode)
}

func NewModeSwitch(store ModeStore, logger *zap.Logger, fallback Mode) *ModeSwitch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModeSwitch{Store: store, Logger: logger, current: fallback}
}

// Restore loads the persisted mode if one exists. Missing or unreadable
// state leaves the fallback in place.
func (s *ModeSwitch) Restore(ctx context.Context) {
	if s.Store == nil {
		return
	}
	m, ok, err := s.Store.LoadMode(ctx)
	if err != nil {
		s.Logger.Warn("trading mode restore failed, keeping default",
			zap.String("default", string(s.Current())), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	s.mu.Lock()
	s.current = m
	s.mu.Unlock()
	s.Logger.Info("trading mode restored", zap.String("mode", string(m)))
}

func (s *ModeSwitch) Current() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers a callback invoked after every successful switch.
// Callbacks run synchronously under no lock.
func (s *ModeSwitch) Subscribe(fn func(old, new Mode)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Switch persists and activates the mode. Switching to the current mode is
// a no-op that reports false.
func (s *ModeSwitch) Switch(ctx context.Context, m Mode) (bool, error) {
	s.mu.Lock()
	old := s.current
	if old == m {
		s.mu.Unlock()
		return false, nil
	}
	if s.Store != nil {
		if err := s.Store.SaveMode(ctx, m); err != nil {
			s.mu.Unlock()
			return false, err
		}
	}
	s.current = m
	listeners := make([]func(old, new Mode), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	s.Logger.Info("trading mode switched",
		zap.String("from", string(old)), zap.String("to", string(m)))
	for _, fn := range listeners {
		fn(old, m)
	}
	return true, nil
}
