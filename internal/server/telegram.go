package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/repo"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/usecase"
)

// ErrFatalStopped is returned when the supervisor gives up
var ErrFatalStopped = errors.New("connection supervisor stopped")

const eventBuffer = 64

// BackgroundTask runs alongside a connected session.
// Run must return nil once ctx is done.
type BackgroundTask interface {
	Name() string
	Run(ctx context.Context) error
}

// EventConsumer processes inbound events
type EventConsumer interface {
	Handle(ctx context.Context, event domain.Event)
}

// SupervisorConfig contains reconnect settings
type SupervisorConfig struct {
	MaxAttempts int           // Network failures tolerated before giving up
	BaseDelay   time.Duration // Linear backoff unit
}

// Supervisor owns the transport lifecycle and retries failed connections
type Supervisor struct {
	transport repo.Transport
	consumer  EventConsumer
	tasks     []BackgroundTask
	config    SupervisorConfig
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error

	mu       sync.RWMutex
	state    domain.ConnectionState
	attempts int
}

// NewSupervisor creates a new connection supervisor
func NewSupervisor(
	transport repo.Transport,
	consumer EventConsumer,
	config SupervisorConfig,
	logger *zap.Logger,
	tasks ...BackgroundTask,
) *Supervisor {
	return &Supervisor{
		transport: transport,
		consumer:  consumer,
		tasks:     tasks,
		config:    config,
		logger:    logger.Named("supervisor"),
		sleep:     usecase.SleepContext,
		state:     domain.StateDisconnected,
	}
}

// State returns the current connection state
func (s *Supervisor) State() domain.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Supervisor) setState(state domain.ConnectionState) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()

	if prev != state {
		s.logger.Debug("state changed", zap.Stringer("from", prev), zap.Stringer("to", state))
	}
}

// Run connects and keeps reconnecting until ctx is done or a fatal failure occurs
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			s.setState(domain.StateDisconnected)
			return nil
		}

		s.setState(domain.StateConnecting)
		err := s.session(ctx)
		if ctx.Err() != nil {
			s.setState(domain.StateDisconnected)
			return nil
		}
		if err == nil {
			// Only a clean disconnect clears the network failure budget
			s.attempts = 0
			s.logger.Info("transport disconnected, reconnecting")
			s.setState(domain.StateDisconnected)
			continue
		}

		delay, stop := s.nextDelay(err)
		if stop != nil {
			s.setState(domain.StateFatalStopped)
			return stop
		}

		s.setState(domain.StateRetryBackoff)
		if err := s.sleep(ctx, delay); err != nil {
			s.setState(domain.StateDisconnected)
			return nil
		}
	}
}

// nextDelay decides how long to wait after err, or returns a non-nil stop error
func (s *Supervisor) nextDelay(err error) (time.Duration, error) {
	te := repo.Classify(err)

	switch te.Kind {
	case repo.KindFatal:
		switch te.Reason {
		case repo.ReasonSecondFactorRequired:
			s.logger.Error("two-factor authentication required, run the login command", zap.Error(err))
		default:
			s.logger.Error("telegram session is invalid, log in again", zap.Error(err))
		}
		return 0, fmt.Errorf("%w: %w", ErrFatalStopped, err)

	case repo.KindRateLimited:
		s.logger.Warn("flood wait", zap.Duration("wait", te.Wait))
		return te.Wait, nil

	case repo.KindNetwork:
		s.attempts++
		if s.attempts > s.config.MaxAttempts {
			s.logger.Error("maximum reconnect attempts exceeded", zap.Int("attempts", s.attempts-1), zap.Error(err))
			return 0, fmt.Errorf("%w: %w", ErrFatalStopped, err)
		}
		delay := s.config.BaseDelay * time.Duration(s.attempts)
		s.logger.Warn("connection error, retrying", zap.Duration("wait", delay), zap.Int("attempt", s.attempts), zap.Error(err))
		return delay, nil

	default:
		s.logger.Error("unexpected error, retrying", zap.Duration("wait", s.config.BaseDelay), zap.Error(err))
		return s.config.BaseDelay, nil
	}
}

// session runs one connected session: event worker, background tasks and the transport
func (s *Supervisor) session(ctx context.Context) error {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan domain.Event, eventBuffer)
	handler := func(_ context.Context, ev domain.Event) {
		select {
		case events <- ev:
		case <-sessCtx.Done():
		}
	}

	if err := s.transport.Connect(ctx, handler); err != nil {
		return err
	}
	defer func() {
		if err := s.transport.Disconnect(); err != nil {
			s.logger.Warn("disconnect failed", zap.Error(err))
		}
	}()

	s.setState(domain.StateConnected)
	s.logger.Info("userbot connected")

	g, gctx := errgroup.WithContext(sessCtx)

	g.Go(func() error {
		s.consume(gctx, events)
		return nil
	})

	for _, task := range s.tasks {
		g.Go(func() error {
			if err := task.Run(gctx); err != nil {
				s.logger.Error("background task failed", zap.String("task", task.Name()), zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		return s.transport.Run(gctx)
	})

	return g.Wait()
}

// consume handles events one at a time in arrival order
func (s *Supervisor) consume(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			s.consumer.Handle(ctx, ev)
		}
	}
}
