/**
 * @description
 * This file defines the `Repository` interface, the contract for all data access
 * required by the teller service. Business logic in internal/app depends only on
 * these interfaces so it can run against PostgreSQL in production and the
 * in-memory implementation in tests.
 *
 * @dependencies
 * - github.com/google/uuid: account and transaction identifiers.
 * - internal/domain: the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/bipinss1983/banksystem/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrAccountNotFound = errors.New("account not found")
)

// PostingFunc mutates a locked account and returns what must be persisted with
// it. Returning an error aborts the posting without writing anything.
type PostingFunc func(account *domain.Account) (*domain.Posting, error)

// EnquiryFunc builds the enquiry ledger row from the account as read under lock.
type EnquiryFunc func(account domain.Account) *domain.Transaction

// AccountRepository covers accounts and their ledger.
type AccountRepository interface {
	// Resolve the account bound to a Clerk user id (the JWT subject).
	FindAccountHolderByClerkUserID(ctx context.Context, clerkUserID string) (*domain.AccountHolder, error)
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)

	// ApplyPosting locks the account, runs apply, then persists the account's
	// balance and interest dates, the ledger row and the outbox event atomically.
	ApplyPosting(ctx context.Context, accountID uuid.UUID, apply PostingFunc) (*domain.PostingResult, error)
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	// RecordEnquiry reads the account with a shared lock and appends the row built
	// by record in the same transaction, so its snapshot cannot go stale.
	RecordEnquiry(ctx context.Context, accountID uuid.UUID, record EnquiryFunc) (*domain.Account, error)

	// Transactions are returned newest first. A nil range means unfiltered.
	ListTransactions(ctx context.Context, accountID uuid.UUID, rng *domain.DateRange) ([]domain.Transaction, error)
	StreamTransactions(ctx context.Context, accountID uuid.UUID, rng *domain.DateRange, fn func(domain.Transaction) error) error
}

// OutboxMessage is a claimed notification_outbox row.
type OutboxMessage struct {
	ID         int64
	Exchange   string
	RoutingKey string
	Payload    []byte
	Attempts   int
}

// OutboxRepository covers the notification outbox.
type OutboxRepository interface {
	ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, id int64) error
	MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error
	PurgePublishedOutbox(ctx context.Context, publishedBefore time.Time) (int64, error)
}

// Repository defines the full set of methods for interacting with the database.
type Repository interface {
	AccountRepository
	OutboxRepository
}

const maxOutboxErrorLength = 2000

func truncateReason(reason string) string {
	if len(reason) > maxOutboxErrorLength {
		return reason[:maxOutboxErrorLength]
	}
	return reason
}
