package pgsql

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		EventStoreRepo:     newPgxEventStoreRepository(dbPool),
		AccountRepo:        newPgxAccountRepository(dbPool),
		TransactionRepo:    newPgxTransactionRepository(dbPool),
		PeriodRepo:         newPgxPeriodRepository(dbPool),
		MemberRepo:         newPgxMemberRepository(dbPool),
		ContributionRepo:   newPgxContributionRepository(dbPool),
		ClaimRepo:          newPgxClaimRepository(dbPool),
		AllocationRepo:     newPgxAllocationRepository(dbPool),
		DistributionRepo:   newPgxDistributionRepository(dbPool),
		CapitalAccountRepo: newPgxCapitalAccountRepository(dbPool),
		WorkflowRepo:       newPgxWorkflowRepository(dbPool),
		IdempotencyRepo:    newPgxIdempotencyRepository(dbPool),
		CheckpointRepo:     newPgxCheckpointRepository(dbPool),
		ProjectionAdmin:    newPgxProjectionAdmin(dbPool),
	}
}

// PgxProjectionAdmin empties projection tables ahead of a rebuild. The event
// store and saga state are never touched.
type PgxProjectionAdmin struct {
	BaseRepository
}

func newPgxProjectionAdmin(pool *pgxpool.Pool) portsrepo.ProjectionAdminFacade {
	return &PgxProjectionAdmin{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.ProjectionAdminFacade = (*PgxProjectionAdmin)(nil)

func (r *PgxProjectionAdmin) TruncateProjections(ctx context.Context) error {
	query := `
		TRUNCATE TABLE
			entries, transactions, accounts, periods, members, contributions,
			patronage_claims, allocations, distributions,
			capital_movements, capital_accounts
		RESTART IDENTITY CASCADE;
	`
	if _, err := r.Pool.Exec(ctx, query); err != nil {
		return apperrors.NewAppError(500, "failed to truncate projection tables", err)
	}
	return nil
}
