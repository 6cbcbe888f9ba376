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

// PgxTransactionRepository maintains the transactions/entries projection.
type PgxTransactionRepository struct {
	BaseRepository
}

func newPgxTransactionRepository(pool *pgxpool.Pool) portsrepo.TransactionRepositoryFacade {
	return &PgxTransactionRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.TransactionRepositoryFacade = (*PgxTransactionRepository)(nil)

// SaveTransaction persists the header and all entries in one DB transaction:
// either everything lands or nothing does. Re-applying the same event is a
// no-op thanks to the primary-key conflict clause.
func (r *PgxTransactionRepository) SaveTransaction(ctx context.Context, txn domain.Transaction) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	headerQuery := `
		INSERT INTO transactions (
			transaction_id, txn_date, period_id, description, status, void_reason,
			created_at, created_by, last_updated_at, last_updated_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (transaction_id) DO NOTHING;
	`
	cmdTag, err := tx.Exec(ctx, headerQuery,
		txn.TransactionID,
		txn.Date,
		txn.PeriodID,
		txn.Description,
		txn.Status,
		nullIfEmpty(txn.VoidReason),
		txn.CreatedAt,
		txn.CreatedBy,
		txn.LastUpdatedAt,
		txn.LastUpdatedBy,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to insert transaction "+txn.TransactionID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		// Already projected; skip the entries too.
		return r.Commit(ctx, tx)
	}

	batch := &pgx.Batch{}
	entryQuery := `
		INSERT INTO entries (entry_id, transaction_id, account_id, direction, amount, memo)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	for _, e := range txn.Entries {
		batch.Queue(entryQuery, e.EntryID, e.TransactionID, e.AccountID, e.Direction, e.Amount, e.Memo)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return apperrors.NewAppError(500, "failed to execute entry batch for transaction "+txn.TransactionID, err)
	}

	return r.Commit(ctx, tx)
}

const transactionColumns = `
	transaction_id, txn_date, period_id, description, status, void_reason,
	created_at, created_by, last_updated_at, last_updated_by
`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var t domain.Transaction
	var voidReason *string
	err := row.Scan(
		&t.TransactionID,
		&t.Date,
		&t.PeriodID,
		&t.Description,
		&t.Status,
		&voidReason,
		&t.CreatedAt,
		&t.CreatedBy,
		&t.LastUpdatedAt,
		&t.LastUpdatedBy,
	)
	if voidReason != nil {
		t.VoidReason = *voidReason
	}
	return t, err
}

func (r *PgxTransactionRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1;`
	t, err := scanTransaction(r.Pool.QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find transaction "+transactionID, err)
	}

	entries, err := r.findEntries(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	t.Entries = entries
	return &t, nil
}

func (r *PgxTransactionRepository) findEntries(ctx context.Context, transactionID string) ([]domain.Entry, error) {
	query := `
		SELECT entry_id, transaction_id, account_id, direction, amount, memo
		FROM entries
		WHERE transaction_id = $1
		ORDER BY entry_id;
	`
	rows, err := r.Pool.Query(ctx, query, transactionID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query entries for transaction "+transactionID, err)
	}
	defer rows.Close()

	entries := []domain.Entry{}
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.EntryID, &e.TransactionID, &e.AccountID, &e.Direction, &e.Amount, &e.Memo); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan entry row for transaction "+transactionID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating entry rows for transaction "+transactionID, err)
	}
	return entries, nil
}

func (r *PgxTransactionRepository) MarkTransactionVoid(ctx context.Context, transactionID string, reason string, updatedBy string, updatedAt time.Time) error {
	query := `
		UPDATE transactions
		SET status = $2, void_reason = $3, last_updated_at = $4, last_updated_by = $5
		WHERE transaction_id = $1;
	`
	cmdTag, err := r.Pool.Exec(ctx, query, transactionID, domain.TxnVoid, reason, updatedAt, updatedBy)
	if err != nil {
		return apperrors.NewAppError(500, "failed to void transaction "+transactionID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("transaction " + transactionID + " not found for void")
	}
	return nil
}

func (r *PgxTransactionRepository) ListTransactionsByPeriod(ctx context.Context, periodID string, status *domain.TransactionStatus) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE period_id = $1`
	args := []interface{}{periodID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY txn_date, created_at;`

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list transactions for period "+periodID, err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan transaction row for period "+periodID, err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating transaction rows for period "+periodID, err)
	}
	return txns, nil
}

func (r *PgxTransactionRepository) CountDraftTransactionsInPeriod(ctx context.Context, periodID string) (int, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE period_id = $1 AND status = $2;`
	var count int
	if err := r.Pool.QueryRow(ctx, query, periodID, domain.TxnDraft).Scan(&count); err != nil {
		return 0, apperrors.NewAppError(500, "failed to count draft transactions for period "+periodID, err)
	}
	return count, nil
}

// ListEntriesByAccount returns entries of posted, non-voided transactions for
// an account, optionally bounded by an as-of date.
func (r *PgxTransactionRepository) ListEntriesByAccount(ctx context.Context, accountID string, asOf *time.Time) ([]domain.Entry, error) {
	query := `
		SELECT e.entry_id, e.transaction_id, e.account_id, e.direction, e.amount, e.memo
		FROM entries e
		JOIN transactions t ON t.transaction_id = e.transaction_id
		WHERE e.account_id = $1 AND t.status = $2
	`
	args := []interface{}{accountID, domain.TxnPosted}
	if asOf != nil {
		query += ` AND t.txn_date <= $3`
		args = append(args, *asOf)
	}
	query += ` ORDER BY t.txn_date, e.entry_id;`

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list entries for account "+accountID, err)
	}
	defer rows.Close()

	entries := []domain.Entry{}
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.EntryID, &e.TransactionID, &e.AccountID, &e.Direction, &e.Amount, &e.Memo); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan entry row for account "+accountID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating entry rows for account "+accountID, err)
	}
	return entries, nil
}

// ListAllEntries returns all entries of posted transactions. Used by the
// ledger integrity validator.
func (r *PgxTransactionRepository) ListAllEntries(ctx context.Context) ([]domain.Entry, error) {
	query := `
		SELECT e.entry_id, e.transaction_id, e.account_id, e.direction, e.amount, e.memo
		FROM entries e
		JOIN transactions t ON t.transaction_id = e.transaction_id
		WHERE t.status = $1
		ORDER BY e.transaction_id, e.entry_id;
	`
	rows, err := r.Pool.Query(ctx, query, domain.TxnPosted)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list all posted entries", err)
	}
	defer rows.Close()

	entries := []domain.Entry{}
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.EntryID, &e.TransactionID, &e.AccountID, &e.Direction, &e.Amount, &e.Memo); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan posted entry row", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating posted entry rows", err)
	}
	return entries, nil
}
