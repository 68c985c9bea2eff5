package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/usecase"
)

// ReconcileLoop runs membership reconciliation on a fixed interval
type ReconcileLoop struct {
	membershipUC *usecase.MembershipUsecase
	interval     time.Duration
	tickTimeout  time.Duration
	logger       *zap.Logger
}

// NewReconcileLoop creates a new reconcile loop
func NewReconcileLoop(membershipUC *usecase.MembershipUsecase, logger *zap.Logger) *ReconcileLoop {
	interval := membershipUC.Config().Interval
	return &ReconcileLoop{
		membershipUC: membershipUC,
		interval:     interval,
		tickTimeout:  time.Minute + membershipUC.Config().SettleDelay,
		logger:       logger.Named("reconcile"),
	}
}

// Name returns the task name
func (l *ReconcileLoop) Name() string {
	return "reconcile"
}

// Run sleeps, ticks and repeats until ctx is done.
// A tick in progress is never interrupted; the loop exits at its next wake.
func (l *ReconcileLoop) Run(ctx context.Context) error {
	l.logger.Info("group monitoring started", zap.Duration("interval", l.interval))
	defer l.logger.Info("group monitoring stopped")

	for {
		if err := usecase.SleepContext(ctx, l.interval); err != nil {
			return nil
		}
		l.tick(ctx)
	}
}

func (l *ReconcileLoop) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.tickTimeout)
	defer cancel()

	result, err := l.membershipUC.Tick(tickCtx)
	if err != nil {
		l.logger.Error("group monitoring tick failed", zap.Error(err))
		return
	}
	if result.Rewritten {
		l.logger.Info("group list reconciled",
			zap.Int("joined", result.Diff.Joined.Len()),
			zap.Int("left", result.Diff.Left.Len()),
			zap.Int("groups", result.Updated.Len()),
		)
	}
}
