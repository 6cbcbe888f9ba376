package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
)

// PgxCapitalAccountRepository maintains the capital accounts projection and
// the movement lines backing member capital statements.
type PgxCapitalAccountRepository struct {
	BaseRepository
}

func newPgxCapitalAccountRepository(pool *pgxpool.Pool) portsrepo.CapitalAccountRepositoryFacade {
	return &PgxCapitalAccountRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.CapitalAccountRepositoryFacade = (*PgxCapitalAccountRepository)(nil)

const capitalAccountColumns = `
	member_id, book_balance, tax_balance,
	contributed_capital, retained_patronage, distributed_patronage,
	created_at, created_by, last_updated_at, last_updated_by
`

func scanCapitalAccount(row pgx.Row) (domain.CapitalAccount, error) {
	var ca domain.CapitalAccount
	err := row.Scan(
		&ca.MemberID,
		&ca.BookBalance,
		&ca.TaxBalance,
		&ca.ContributedCapital,
		&ca.RetainedPatronage,
		&ca.DistributedPatronage,
		&ca.CreatedAt,
		&ca.CreatedBy,
		&ca.LastUpdatedAt,
		&ca.LastUpdatedBy,
	)
	return ca, err
}

func (r *PgxCapitalAccountRepository) FindCapitalAccount(ctx context.Context, memberID string) (*domain.CapitalAccount, error) {
	query := `SELECT ` + capitalAccountColumns + ` FROM capital_accounts WHERE member_id = $1;`
	ca, err := scanCapitalAccount(r.Pool.QueryRow(ctx, query, memberID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find capital account for member "+memberID, err)
	}
	return &ca, nil
}

// ApplyMovement upserts the member's capital account, adjusts the targeted
// bucket plus both ledger balances, and records the movement line, all in
// one DB transaction. Distributions reduce balances; the other buckets add.
func (r *PgxCapitalAccountRepository) ApplyMovement(ctx context.Context, movement portsrepo.CapitalMovement, updatedBy string) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	var bucketColumn string
	bookDelta := movement.Amount
	taxDelta := movement.TaxAmount
	switch movement.Bucket {
	case domain.BucketContributed:
		bucketColumn = "contributed_capital"
	case domain.BucketRetained:
		bucketColumn = "retained_patronage"
	case domain.BucketDistributed:
		bucketColumn = "distributed_patronage"
		bookDelta = bookDelta.Neg()
		taxDelta = taxDelta.Neg()
	default:
		return apperrors.NewAppError(400, "unknown capital bucket "+string(movement.Bucket), apperrors.ErrValidation)
	}

	upsertQuery := `
		INSERT INTO capital_accounts (` + capitalAccountColumns + `)
		VALUES ($1, 0, 0, 0, 0, 0, $2, $3, $2, $3)
		ON CONFLICT (member_id) DO NOTHING;
	`
	if _, err := tx.Exec(ctx, upsertQuery, movement.MemberID, movement.OccurredAt, updatedBy); err != nil {
		return apperrors.NewAppError(500, "failed to upsert capital account for member "+movement.MemberID, err)
	}

	// bucketColumn comes from the switch above, never from input.
	updateQuery := `
		UPDATE capital_accounts
		SET ` + bucketColumn + ` = ` + bucketColumn + ` + $2,
			book_balance = book_balance + $3,
			tax_balance = tax_balance + $4,
			last_updated_at = $5,
			last_updated_by = $6
		WHERE member_id = $1;
	`
	if _, err := tx.Exec(ctx, updateQuery,
		movement.MemberID, movement.Amount, bookDelta, taxDelta, movement.OccurredAt, updatedBy,
	); err != nil {
		return apperrors.NewAppError(500, "failed to apply capital movement for member "+movement.MemberID, err)
	}

	lineQuery := `
		INSERT INTO capital_movements (member_id, bucket, amount, tax_amount, source_kind, source_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	if _, err := tx.Exec(ctx, lineQuery,
		movement.MemberID, movement.Bucket, movement.Amount, movement.TaxAmount,
		movement.SourceKind, movement.SourceID, movement.OccurredAt,
	); err != nil {
		return apperrors.NewAppError(500, "failed to record capital movement for member "+movement.MemberID, err)
	}

	return r.Commit(ctx, tx)
}

func (r *PgxCapitalAccountRepository) ListMovements(ctx context.Context, memberID string) ([]portsrepo.CapitalMovement, error) {
	query := `
		SELECT member_id, bucket, amount, tax_amount, source_kind, source_id, occurred_at
		FROM capital_movements
		WHERE member_id = $1
		ORDER BY occurred_at;
	`
	rows, err := r.Pool.Query(ctx, query, memberID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list capital movements for member "+memberID, err)
	}
	defer rows.Close()

	movements := []portsrepo.CapitalMovement{}
	for rows.Next() {
		var m portsrepo.CapitalMovement
		var amount, taxAmount decimal.Decimal
		var occurredAt time.Time
		if err := rows.Scan(&m.MemberID, &m.Bucket, &amount, &taxAmount, &m.SourceKind, &m.SourceID, &occurredAt); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan capital movement row for member "+memberID, err)
		}
		m.Amount = amount
		m.TaxAmount = taxAmount
		m.OccurredAt = occurredAt
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating capital movement rows for member "+memberID, err)
	}
	return movements, nil
}

func (r *PgxCapitalAccountRepository) ListCapitalAccounts(ctx context.Context) ([]domain.CapitalAccount, error) {
	query := `SELECT ` + capitalAccountColumns + ` FROM capital_accounts ORDER BY member_id;`
	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list capital accounts", err)
	}
	defer rows.Close()

	accounts := []domain.CapitalAccount{}
	for rows.Next() {
		ca, err := scanCapitalAccount(rows)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan capital account row", err)
		}
		accounts = append(accounts, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating capital account rows", err)
	}
	return accounts, nil
}
