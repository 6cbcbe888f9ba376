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

// PgxContributionRepository maintains the contributions projection.
type PgxContributionRepository struct {
	BaseRepository
}

func newPgxContributionRepository(pool *pgxpool.Pool) portsrepo.ContributionRepositoryFacade {
	return &PgxContributionRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.ContributionRepositoryFacade = (*PgxContributionRepository)(nil)

const contributionColumns = `
	contribution_id, member_id, period_id, type, status, description,
	hours, hourly_rate, stated_value, decision_reason,
	created_at, created_by, last_updated_at, last_updated_by
`

func scanContribution(row pgx.Row) (domain.Contribution, error) {
	var c domain.Contribution
	var decisionReason *string
	err := row.Scan(
		&c.ContributionID,
		&c.MemberID,
		&c.PeriodID,
		&c.Type,
		&c.Status,
		&c.Description,
		&c.Hours,
		&c.HourlyRate,
		&c.StatedValue,
		&decisionReason,
		&c.CreatedAt,
		&c.CreatedBy,
		&c.LastUpdatedAt,
		&c.LastUpdatedBy,
	)
	if decisionReason != nil {
		c.DecisionReason = *decisionReason
	}
	return c, err
}

func (r *PgxContributionRepository) SaveContribution(ctx context.Context, contribution domain.Contribution) error {
	query := `
		INSERT INTO contributions (` + contributionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (contribution_id) DO UPDATE SET
			status = EXCLUDED.status,
			decision_reason = EXCLUDED.decision_reason,
			last_updated_at = EXCLUDED.last_updated_at,
			last_updated_by = EXCLUDED.last_updated_by;
	`
	_, err := r.Pool.Exec(ctx, query,
		contribution.ContributionID,
		contribution.MemberID,
		contribution.PeriodID,
		contribution.Type,
		contribution.Status,
		contribution.Description,
		contribution.Hours,
		contribution.HourlyRate,
		contribution.StatedValue,
		nullIfEmpty(contribution.DecisionReason),
		contribution.CreatedAt,
		contribution.CreatedBy,
		contribution.LastUpdatedAt,
		contribution.LastUpdatedBy,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to save contribution "+contribution.ContributionID, err)
	}
	return nil
}

func (r *PgxContributionRepository) FindContributionByID(ctx context.Context, contributionID string) (*domain.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE contribution_id = $1;`
	c, err := scanContribution(r.Pool.QueryRow(ctx, query, contributionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find contribution "+contributionID, err)
	}
	return &c, nil
}

func (r *PgxContributionRepository) UpdateContributionStatus(ctx context.Context, contributionID string, status domain.ContributionStatus, reason string, updatedBy string, updatedAt time.Time) error {
	query := `
		UPDATE contributions
		SET status = $2, decision_reason = $3, last_updated_at = $4, last_updated_by = $5
		WHERE contribution_id = $1;
	`
	cmdTag, err := r.Pool.Exec(ctx, query, contributionID, status, nullIfEmpty(reason), updatedAt, updatedBy)
	if err != nil {
		return apperrors.NewAppError(500, "failed to update status for contribution "+contributionID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("contribution " + contributionID + " not found for status update")
	}
	return nil
}

func (r *PgxContributionRepository) ListContributionsByPeriod(ctx context.Context, periodID string, status *domain.ContributionStatus) ([]domain.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE period_id = $1`
	args := []interface{}{periodID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at;`

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list contributions for period "+periodID, err)
	}
	defer rows.Close()
	return collectContributions(rows, "period "+periodID)
}

func (r *PgxContributionRepository) ListContributionsByMember(ctx context.Context, memberID string, limit int, offset int) ([]domain.Contribution, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + contributionColumns + `
		FROM contributions
		WHERE member_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := r.Pool.Query(ctx, query, memberID, limit, offset)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list contributions for member "+memberID, err)
	}
	defer rows.Close()
	return collectContributions(rows, "member "+memberID)
}

func collectContributions(rows pgx.Rows, what string) ([]domain.Contribution, error) {
	contributions := []domain.Contribution{}
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan contribution row for "+what, err)
		}
		contributions = append(contributions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating contribution rows for "+what, err)
	}
	return contributions, nil
}
