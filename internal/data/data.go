package data

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/repo"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/conf"
)

// NewMembershipStore creates the group list store selected by cfg.Store
func NewMembershipStore(ctx context.Context, cfg conf.GroupsConfig, logger *zap.Logger) (repo.MembershipStore, error) {
	switch cfg.Store {
	case conf.StoreSQLite:
		seed, err := domain.ParseGroupSet(cfg.Initial)
		if err != nil {
			return nil, fmt.Errorf("parse GROUP_IDS: %w", err)
		}
		store, err := NewSQLiteStore(ctx, cfg.DBPath, seed)
		if err != nil {
			return nil, err
		}
		logger.Info("membership store ready", zap.String("store", cfg.Store), zap.String("path", cfg.DBPath))
		return store, nil

	case conf.StoreEnv, "":
		logger.Info("membership store ready", zap.String("store", conf.StoreEnv), zap.String("path", cfg.ConfigPath))
		return NewEnvFileStore(cfg.ConfigPath, cfg.Initial), nil

	default:
		return nil, fmt.Errorf("unknown membership store %q", cfg.Store)
	}
}

// LoadInitialGroups reads the startup group set.
// An empty or unreadable store falls back to the GROUP_IDS environment value.
func LoadInitialGroups(ctx context.Context, store repo.MembershipStore, initial string, logger *zap.Logger) (domain.GroupSet, error) {
	groups, err := store.Read(ctx)
	if err == nil && groups.Len() > 0 {
		return groups, nil
	}
	if err != nil {
		logger.Warn("failed to read stored groups, using environment", zap.Error(err))
	}

	fallback, parseErr := domain.ParseGroupSet(initial)
	if parseErr != nil {
		return nil, fmt.Errorf("parse GROUP_IDS: %w", parseErr)
	}
	return fallback, nil
}
