package biz

import (
	"go.uber.org/zap"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/domain"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/repo"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Active     *usecase.ActiveGroups
	Pending    *usecase.PendingTable
	Extractor  *usecase.FieldExtractor
	Membership *usecase.MembershipUsecase
}

// NewUsecases creates all usecases around the initial group set
func NewUsecases(
	initial domain.GroupSet,
	store repo.MembershipStore,
	lister usecase.MembershipLister,
	extractorCfg usecase.ExtractorConfig,
	membershipCfg usecase.MembershipConfig,
	logger *zap.Logger,
) *Usecases {
	active := usecase.NewActiveGroups(initial)
	return &Usecases{
		Active:     active,
		Pending:    usecase.NewPendingTable(),
		Extractor:  usecase.NewFieldExtractor(extractorCfg),
		Membership: usecase.NewMembershipUsecase(store, lister, active, membershipCfg, logger),
	}
}
