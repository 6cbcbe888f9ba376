package pgsql

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
)

// PgxWorkflowRepository persists period-close saga state. Steps and approvals
// are stored as jsonb; the row is the single source of truth for resume.
type PgxWorkflowRepository struct {
	BaseRepository
}

func newPgxWorkflowRepository(pool *pgxpool.Pool) portsrepo.WorkflowRepositoryFacade {
	return &PgxWorkflowRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.WorkflowRepositoryFacade = (*PgxWorkflowRepository)(nil)

func (r *PgxWorkflowRepository) SaveWorkflow(ctx context.Context, wf domain.PeriodCloseWorkflow) error {
	steps, err := json.Marshal(wf.Steps)
	if err != nil {
		return apperrors.NewAppError(500, "failed to marshal workflow steps for period "+wf.PeriodID, err)
	}
	approvals, err := json.Marshal(wf.Approvals)
	if err != nil {
		return apperrors.NewAppError(500, "failed to marshal workflow approvals for period "+wf.PeriodID, err)
	}

	query := `
		INSERT INTO period_close_workflows (
			period_id, status, steps, approvals, failure_note, started_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (period_id) DO UPDATE SET
			status = EXCLUDED.status,
			steps = EXCLUDED.steps,
			approvals = EXCLUDED.approvals,
			failure_note = EXCLUDED.failure_note,
			updated_at = EXCLUDED.updated_at;
	`
	_, err = r.Pool.Exec(ctx, query,
		wf.PeriodID,
		wf.Status,
		steps,
		approvals,
		nullIfEmpty(wf.FailureNote),
		wf.StartedAt,
		wf.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to save close workflow for period "+wf.PeriodID, err)
	}
	return nil
}

func scanWorkflow(row pgx.Row) (domain.PeriodCloseWorkflow, error) {
	var wf domain.PeriodCloseWorkflow
	var steps, approvals []byte
	var failureNote *string
	err := row.Scan(
		&wf.PeriodID,
		&wf.Status,
		&steps,
		&approvals,
		&failureNote,
		&wf.StartedAt,
		&wf.UpdatedAt,
	)
	if err != nil {
		return domain.PeriodCloseWorkflow{}, err
	}
	if failureNote != nil {
		wf.FailureNote = *failureNote
	}
	if err := json.Unmarshal(steps, &wf.Steps); err != nil {
		return domain.PeriodCloseWorkflow{}, err
	}
	if err := json.Unmarshal(approvals, &wf.Approvals); err != nil {
		return domain.PeriodCloseWorkflow{}, err
	}
	return wf, nil
}

const workflowColumns = `
	period_id, status, steps, approvals, failure_note, started_at, updated_at
`

func (r *PgxWorkflowRepository) FindWorkflowByPeriodID(ctx context.Context, periodID string) (*domain.PeriodCloseWorkflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM period_close_workflows WHERE period_id = $1;`
	wf, err := scanWorkflow(r.Pool.QueryRow(ctx, query, periodID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find close workflow for period "+periodID, err)
	}
	return &wf, nil
}

func (r *PgxWorkflowRepository) ListWorkflows(ctx context.Context, statuses []domain.CloseStep) ([]domain.PeriodCloseWorkflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM period_close_workflows`
	args := []interface{}{}
	if len(statuses) > 0 {
		query += ` WHERE status = ANY($1)`
		statusStrings := make([]string, len(statuses))
		for i, s := range statuses {
			statusStrings[i] = string(s)
		}
		args = append(args, statusStrings)
	}
	query += ` ORDER BY started_at;`

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list close workflows", err)
	}
	defer rows.Close()

	workflows := []domain.PeriodCloseWorkflow{}
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan close workflow row", err)
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating close workflow rows", err)
	}
	return workflows, nil
}
