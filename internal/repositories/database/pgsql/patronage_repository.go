package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
)

// PgxClaimRepository maintains the patronage claims projection.
type PgxClaimRepository struct {
	BaseRepository
}

func newPgxClaimRepository(pool *pgxpool.Pool) portsrepo.ClaimRepositoryFacade {
	return &PgxClaimRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.ClaimRepositoryFacade = (*PgxClaimRepository)(nil)

const claimColumns = `
	claim_id, contribution_id, member_id, period_id,
	raw_value, weight, weighted_value, revoked,
	created_at, created_by, last_updated_at, last_updated_by
`

func scanClaim(row pgx.Row) (domain.PatronageClaim, error) {
	var c domain.PatronageClaim
	err := row.Scan(
		&c.ClaimID,
		&c.ContributionID,
		&c.MemberID,
		&c.PeriodID,
		&c.RawValue,
		&c.Weight,
		&c.WeightedValue,
		&c.Revoked,
		&c.CreatedAt,
		&c.CreatedBy,
		&c.LastUpdatedAt,
		&c.LastUpdatedBy,
	)
	return c, err
}

// SaveClaim inserts a claim. The unique contribution_id constraint enforces
// the one-claim-per-contribution rule; a second insert maps to ErrDuplicate.
func (r *PgxClaimRepository) SaveClaim(ctx context.Context, claim domain.PatronageClaim) error {
	query := `
		INSERT INTO patronage_claims (` + claimColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`
	_, err := r.Pool.Exec(ctx, query,
		claim.ClaimID,
		claim.ContributionID,
		claim.MemberID,
		claim.PeriodID,
		claim.RawValue,
		claim.Weight,
		claim.WeightedValue,
		claim.Revoked,
		claim.CreatedAt,
		claim.CreatedBy,
		claim.LastUpdatedAt,
		claim.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicate
		}
		return apperrors.NewAppError(500, "failed to save claim "+claim.ClaimID, err)
	}
	return nil
}

func (r *PgxClaimRepository) FindClaimByContributionID(ctx context.Context, contributionID string) (*domain.PatronageClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM patronage_claims WHERE contribution_id = $1;`
	c, err := scanClaim(r.Pool.QueryRow(ctx, query, contributionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find claim for contribution "+contributionID, err)
	}
	return &c, nil
}

func (r *PgxClaimRepository) MarkClaimRevoked(ctx context.Context, claimID string, updatedBy string, updatedAt time.Time) error {
	query := `
		UPDATE patronage_claims
		SET revoked = TRUE, last_updated_at = $2, last_updated_by = $3
		WHERE claim_id = $1;
	`
	cmdTag, err := r.Pool.Exec(ctx, query, claimID, updatedAt, updatedBy)
	if err != nil {
		return apperrors.NewAppError(500, "failed to revoke claim "+claimID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("claim " + claimID + " not found for revoke")
	}
	return nil
}

func (r *PgxClaimRepository) ListClaimsByPeriod(ctx context.Context, periodID string) ([]domain.PatronageClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM patronage_claims WHERE period_id = $1 ORDER BY created_at;`
	rows, err := r.Pool.Query(ctx, query, periodID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list claims for period "+periodID, err)
	}
	defer rows.Close()

	claims := []domain.PatronageClaim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan claim row for period "+periodID, err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating claim rows for period "+periodID, err)
	}
	return claims, nil
}

// PgxAllocationRepository maintains the allocations projection.
type PgxAllocationRepository struct {
	BaseRepository
}

func newPgxAllocationRepository(pool *pgxpool.Pool) portsrepo.AllocationRepositoryFacade {
	return &PgxAllocationRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.AllocationRepositoryFacade = (*PgxAllocationRepository)(nil)

const allocationColumns = `
	allocation_id, member_id, period_id, status,
	total_patronage, share, total_allocation, cash_distribution,
	retained_allocation, cash_rate,
	created_at, created_by, last_updated_at, last_updated_by
`

func scanAllocation(row pgx.Row) (domain.Allocation, error) {
	var a domain.Allocation
	err := row.Scan(
		&a.AllocationID,
		&a.MemberID,
		&a.PeriodID,
		&a.Status,
		&a.TotalPatronage,
		&a.Share,
		&a.TotalAllocation,
		&a.CashDistribution,
		&a.RetainedAllocation,
		&a.CashRate,
		&a.CreatedAt,
		&a.CreatedBy,
		&a.LastUpdatedAt,
		&a.LastUpdatedBy,
	)
	return a, err
}

func (r *PgxAllocationRepository) SaveAllocation(ctx context.Context, allocation domain.Allocation) error {
	query := `
		INSERT INTO allocations (` + allocationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (allocation_id) DO UPDATE SET
			status = EXCLUDED.status,
			total_patronage = EXCLUDED.total_patronage,
			share = EXCLUDED.share,
			total_allocation = EXCLUDED.total_allocation,
			cash_distribution = EXCLUDED.cash_distribution,
			retained_allocation = EXCLUDED.retained_allocation,
			cash_rate = EXCLUDED.cash_rate,
			last_updated_at = EXCLUDED.last_updated_at,
			last_updated_by = EXCLUDED.last_updated_by;
	`
	_, err := r.Pool.Exec(ctx, query,
		allocation.AllocationID,
		allocation.MemberID,
		allocation.PeriodID,
		allocation.Status,
		allocation.TotalPatronage,
		allocation.Share,
		allocation.TotalAllocation,
		allocation.CashDistribution,
		allocation.RetainedAllocation,
		allocation.CashRate,
		allocation.CreatedAt,
		allocation.CreatedBy,
		allocation.LastUpdatedAt,
		allocation.LastUpdatedBy,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to save allocation "+allocation.AllocationID, err)
	}
	return nil
}

func (r *PgxAllocationRepository) FindAllocationByID(ctx context.Context, allocationID string) (*domain.Allocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM allocations WHERE allocation_id = $1;`
	a, err := scanAllocation(r.Pool.QueryRow(ctx, query, allocationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find allocation "+allocationID, err)
	}
	return &a, nil
}

func (r *PgxAllocationRepository) UpdateAllocationStatus(ctx context.Context, allocationID string, status domain.AllocationStatus, updatedBy string, updatedAt time.Time) error {
	query := `
		UPDATE allocations
		SET status = $2, last_updated_at = $3, last_updated_by = $4
		WHERE allocation_id = $1;
	`
	cmdTag, err := r.Pool.Exec(ctx, query, allocationID, status, updatedAt, updatedBy)
	if err != nil {
		return apperrors.NewAppError(500, "failed to update status for allocation "+allocationID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("allocation " + allocationID + " not found for status update")
	}
	return nil
}

// DeleteAllocation removes a compensated allocation. Only saga compensation
// calls this; executed allocations are never deleted.
func (r *PgxAllocationRepository) DeleteAllocation(ctx context.Context, allocationID string) error {
	query := `DELETE FROM allocations WHERE allocation_id = $1;`
	if _, err := r.Pool.Exec(ctx, query, allocationID); err != nil {
		return apperrors.NewAppError(500, "failed to delete allocation "+allocationID, err)
	}
	return nil
}

func (r *PgxAllocationRepository) ListAllocationsByPeriod(ctx context.Context, periodID string) ([]domain.Allocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM allocations WHERE period_id = $1 ORDER BY member_id;`
	rows, err := r.Pool.Query(ctx, query, periodID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list allocations for period "+periodID, err)
	}
	defer rows.Close()
	return collectAllocations(rows, "period "+periodID)
}

func (r *PgxAllocationRepository) ListAllocationsByMember(ctx context.Context, memberID string) ([]domain.Allocation, error) {
	query := `SELECT ` + allocationColumns + ` FROM allocations WHERE member_id = $1 ORDER BY created_at DESC;`
	rows, err := r.Pool.Query(ctx, query, memberID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list allocations for member "+memberID, err)
	}
	defer rows.Close()
	return collectAllocations(rows, "member "+memberID)
}

func collectAllocations(rows pgx.Rows, what string) ([]domain.Allocation, error) {
	allocations := []domain.Allocation{}
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan allocation row for "+what, err)
		}
		allocations = append(allocations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating allocation rows for "+what, err)
	}
	return allocations, nil
}

// PgxDistributionRepository maintains the distributions projection.
type PgxDistributionRepository struct {
	BaseRepository
}

func newPgxDistributionRepository(pool *pgxpool.Pool) portsrepo.DistributionRepositoryFacade {
	return &PgxDistributionRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.DistributionRepositoryFacade = (*PgxDistributionRepository)(nil)

const distributionColumns = `
	distribution_id, allocation_id, member_id, amount, method, status, failure_reason,
	created_at, created_by, last_updated_at, last_updated_by
`

func scanDistribution(row pgx.Row) (domain.Distribution, error) {
	var d domain.Distribution
	var failureReason *string
	err := row.Scan(
		&d.DistributionID,
		&d.AllocationID,
		&d.MemberID,
		&d.Amount,
		&d.Method,
		&d.Status,
		&failureReason,
		&d.CreatedAt,
		&d.CreatedBy,
		&d.LastUpdatedAt,
		&d.LastUpdatedBy,
	)
	if failureReason != nil {
		d.FailureReason = *failureReason
	}
	return d, err
}

func (r *PgxDistributionRepository) SaveDistribution(ctx context.Context, distribution domain.Distribution) error {
	query := `
		INSERT INTO distributions (` + distributionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (distribution_id) DO UPDATE SET
			status = EXCLUDED.status,
			failure_reason = EXCLUDED.failure_reason,
			last_updated_at = EXCLUDED.last_updated_at,
			last_updated_by = EXCLUDED.last_updated_by;
	`
	_, err := r.Pool.Exec(ctx, query,
		distribution.DistributionID,
		distribution.AllocationID,
		distribution.MemberID,
		distribution.Amount,
		distribution.Method,
		distribution.Status,
		nullIfEmpty(distribution.FailureReason),
		distribution.CreatedAt,
		distribution.CreatedBy,
		distribution.LastUpdatedAt,
		distribution.LastUpdatedBy,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to save distribution "+distribution.DistributionID, err)
	}
	return nil
}

func (r *PgxDistributionRepository) FindDistributionByID(ctx context.Context, distributionID string) (*domain.Distribution, error) {
	query := `SELECT ` + distributionColumns + ` FROM distributions WHERE distribution_id = $1;`
	d, err := scanDistribution(r.Pool.QueryRow(ctx, query, distributionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find distribution "+distributionID, err)
	}
	return &d, nil
}

func (r *PgxDistributionRepository) UpdateDistributionStatus(ctx context.Context, distributionID string, status domain.DistributionStatus, reason string, updatedBy string, updatedAt time.Time) error {
	query := `
		UPDATE distributions
		SET status = $2, failure_reason = $3, last_updated_at = $4, last_updated_by = $5
		WHERE distribution_id = $1;
	`
	cmdTag, err := r.Pool.Exec(ctx, query, distributionID, status, nullIfEmpty(reason), updatedAt, updatedBy)
	if err != nil {
		return apperrors.NewAppError(500, "failed to update status for distribution "+distributionID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("distribution " + distributionID + " not found for status update")
	}
	return nil
}

func (r *PgxDistributionRepository) ListDistributionsByAllocation(ctx context.Context, allocationID string) ([]domain.Distribution, error) {
	query := `SELECT ` + distributionColumns + ` FROM distributions WHERE allocation_id = $1 ORDER BY created_at;`
	rows, err := r.Pool.Query(ctx, query, allocationID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list distributions for allocation "+allocationID, err)
	}
	defer rows.Close()
	return collectDistributions(rows, "allocation "+allocationID)
}

func (r *PgxDistributionRepository) ListDistributionsByPeriod(ctx context.Context, periodID string) ([]domain.Distribution, error) {
	query := `
		SELECT
			d.distribution_id, d.allocation_id, d.member_id, d.amount, d.method,
			d.status, d.failure_reason,
			d.created_at, d.created_by, d.last_updated_at, d.last_updated_by
		FROM distributions d
		JOIN allocations a ON a.allocation_id = d.allocation_id
		WHERE a.period_id = $1
		ORDER BY d.created_at;
	`
	rows, err := r.Pool.Query(ctx, query, periodID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list distributions for period "+periodID, err)
	}
	defer rows.Close()
	return collectDistributions(rows, "period "+periodID)
}

func collectDistributions(rows pgx.Rows, what string) ([]domain.Distribution, error) {
	distributions := []domain.Distribution{}
	for rows.Next() {
		d, err := scanDistribution(rows)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan distribution row for "+what, err)
		}
		distributions = append(distributions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating distribution rows for "+what, err)
	}
	return distributions, nil
}
