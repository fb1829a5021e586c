/**
 * @description
 * This file provides the PostgreSQL implementation of the account side of the
 * `Repository` interface: account holder resolution, locked balance postings and
 * the append-only transactions ledger.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: NUMERIC columns are scanned through its sql.Scanner.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bipinss1983/banksystem/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `
	a.id, a.user_id, a.account_no, a.balance, a.initial_deposit_date, a.interest_start_date,
	a.created_at, a.updated_at,
	t.id, t.name, t.maximum_withdrawal_amount, t.annual_interest_rate, t.interest_calculation_per_year`

func accountScanTargets(account *domain.Account) []interface{} {
	return []interface{}{
		&account.ID,
		&account.UserID,
		&account.AccountNo,
		&account.Balance,
		&account.InitialDepositDate,
		&account.InterestStartDate,
		&account.CreatedAt,
		&account.UpdatedAt,
		&account.AccountType.ID,
		&account.AccountType.Name,
		&account.AccountType.MaximumWithdrawalAmount,
		&account.AccountType.AnnualInterestRate,
		&account.AccountType.InterestCalculationPerYear,
	}
}

// FindAccountHolderByClerkUserID resolves the user and account bound to a Clerk user id.
func (r *PostgresRepository) FindAccountHolderByClerkUserID(ctx context.Context, clerkUserID string) (*domain.AccountHolder, error) {
	query := `
		SELECT u.id, u.clerk_user_id, u.email, u.full_name,` + accountColumns + `
		FROM users u
		JOIN accounts a ON a.user_id = u.id
		JOIN account_types t ON t.id = a.account_type_id
		WHERE u.clerk_user_id = $1
	`
	var holder domain.AccountHolder
	targets := append([]interface{}{
		&holder.User.ID,
		&holder.User.ClerkUserID,
		&holder.User.Email,
		&holder.User.FullName,
	}, accountScanTargets(&holder.Account)...)

	err := r.db.QueryRow(ctx, query, strings.TrimSpace(clerkUserID)).Scan(targets...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &holder, nil
}

// FindAccountByID retrieves an account and its account type.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	query := `SELECT` + accountColumns + `
		FROM accounts a
		JOIN account_types t ON t.id = a.account_type_id
		WHERE a.id = $1
	`
	var account domain.Account
	if err := r.db.QueryRow(ctx, query, accountID).Scan(accountScanTargets(&account)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ApplyPosting runs a balance mutation under a row lock and commits the account
// update, the ledger row and the outbox event in a single transaction.
func (r *PostgresRepository) ApplyPosting(ctx context.Context, accountID uuid.UUID, apply PostingFunc) (*domain.PostingResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin posting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT` + accountColumns + `
		FROM accounts a
		JOIN account_types t ON t.id = a.account_type_id
		WHERE a.id = $1
		FOR UPDATE OF a
	`
	var account domain.Account
	if err := tx.QueryRow(ctx, query, accountID).Scan(accountScanTargets(&account)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	posting, err := apply(&account)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE accounts
		SET balance = $2,
			initial_deposit_date = $3,
			interest_start_date = $4,
			updated_at = NOW()
		WHERE id = $1
	`, account.ID, account.Balance, account.InitialDepositDate, account.InterestStartDate)
	if err != nil {
		return nil, fmt.Errorf("failed to update account balance: %w", err)
	}

	if err := insertTransactionTx(ctx, tx, posting.Transaction); err != nil {
		return nil, err
	}

	if posting.Event != nil {
		if err := enqueueEventTx(ctx, tx, posting.Event); err != nil {
			return nil, domain.NotificationDelivery("enqueue notification", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit posting: %w", err)
	}

	return &domain.PostingResult{Account: account, Transaction: posting.Transaction}, nil
}

// RecordEnquiry appends an enquiry row while holding a share lock on the account.
func (r *PostgresRepository) RecordEnquiry(ctx context.Context, accountID uuid.UUID, record EnquiryFunc) (*domain.Account, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin enquiry transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT` + accountColumns + `
		FROM accounts a
		JOIN account_types t ON t.id = a.account_type_id
		WHERE a.id = $1
		FOR SHARE OF a
	`
	var account domain.Account
	if err := tx.QueryRow(ctx, query, accountID).Scan(accountScanTargets(&account)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	if err := insertTransactionTx(ctx, tx, record(account)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit enquiry: %w", err)
	}
	return &account, nil
}

// CreateTransaction appends a ledger row that does not move the balance.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, transaction *domain.Transaction) error {
	return insertTransactionTx(ctx, r.db, transaction)
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

func insertTransactionTx(ctx context.Context, db execer, transaction *domain.Transaction) error {
	_, err := db.Exec(ctx, `
		INSERT INTO transactions (id, account_id, amount, balance_after_transaction, transaction_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		transaction.ID,
		transaction.AccountID,
		transaction.Amount,
		transaction.BalanceAfterTransaction,
		string(transaction.Type),
		transaction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the account's ledger, newest first.
func (r *PostgresRepository) ListTransactions(ctx context.Context, accountID uuid.UUID, rng *domain.DateRange) ([]domain.Transaction, error) {
	transactions := make([]domain.Transaction, 0)
	err := r.StreamTransactions(ctx, accountID, rng, func(transaction domain.Transaction) error {
		transactions = append(transactions, transaction)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// StreamTransactions calls fn for each ledger row without buffering the result set.
func (r *PostgresRepository) StreamTransactions(ctx context.Context, accountID uuid.UUID, rng *domain.DateRange, fn func(domain.Transaction) error) error {
	query := `
		SELECT id, account_id, amount, balance_after_transaction, transaction_type, created_at
		FROM transactions
		WHERE account_id = $1
	`
	args := []interface{}{accountID}
	if rng != nil {
		from, until := rng.Bounds()
		query += ` AND created_at >= $2 AND created_at < $3`
		args = append(args, from, until)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			transaction domain.Transaction
			kind        string
		)
		if err := rows.Scan(
			&transaction.ID,
			&transaction.AccountID,
			&transaction.Amount,
			&transaction.BalanceAfterTransaction,
			&kind,
			&transaction.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to scan transaction: %w", err)
		}
		transaction.Type = domain.TransactionType(kind)
		if err := fn(transaction); err != nil {
			return err
		}
	}
	return rows.Err()
}
