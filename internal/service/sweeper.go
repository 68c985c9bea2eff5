package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/usecase"
)

// PendingSweeper evicts pending queries the responder never answered
type PendingSweeper struct {
	pending  *usecase.PendingTable
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewPendingSweeper creates a new sweeper
func NewPendingSweeper(pending *usecase.PendingTable, ttl, interval time.Duration, logger *zap.Logger) *PendingSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PendingSweeper{
		pending:  pending,
		ttl:      ttl,
		interval: interval,
		logger:   logger.Named("sweeper"),
	}
}

// Name returns the task name
func (s *PendingSweeper) Name() string {
	return "sweeper"
}

// Run sweeps on every interval until ctx is done
func (s *PendingSweeper) Run(ctx context.Context) error {
	if s.ttl <= 0 {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep evicts expired entries once and returns how many were removed
func (s *PendingSweeper) Sweep() int {
	evicted := s.pending.Sweep(s.ttl)
	for _, q := range evicted {
		s.logger.Info("pending query expired",
			zap.String("request_id", q.RequestID),
			zap.String("key", domain.MaskKey(q.Key)),
			zap.Int64("chat_id", q.OriginChat),
		)
	}
	return len(evicted)
}
