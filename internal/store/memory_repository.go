package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bipinss1983/banksystem/internal/domain"
	"github.com/google/uuid"
)

type memoryOutboxRow struct {
	message             OutboxMessage
	status              string
	nextAttemptAt       time.Time
	processingStartedAt time.Time
	publishedAt         time.Time
	lastError           string
	createdAt           time.Time
}

// MemoryRepository is an in-process Repository. A single mutex serializes every
// posting, which gives the same lost-update guarantee as the row lock in Postgres.
type MemoryRepository struct {
	mu           sync.Mutex
	users        map[string]domain.User
	accounts     map[uuid.UUID]*domain.Account
	transactions []domain.Transaction
	outbox       []*memoryOutboxRow
	nextOutboxID int64
	now          func() time.Time
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:    make(map[string]domain.User),
		accounts: make(map[uuid.UUID]*domain.Account),
		now:      time.Now,
	}
}

// AddAccountHolder registers a user and their account.
func (r *MemoryRepository) AddAccountHolder(user domain.User, account domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.UserID = user.ID
	r.users[user.ClerkUserID] = user
	r.accounts[account.ID] = &account
}

func (r *MemoryRepository) FindAccountHolderByClerkUserID(ctx context.Context, clerkUserID string) (*domain.AccountHolder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[strings.TrimSpace(clerkUserID)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	for _, account := range r.accounts {
		if account.UserID == user.ID {
			return &domain.AccountHolder{User: user, Account: *account}, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *MemoryRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *MemoryRepository) ApplyPosting(ctx context.Context, accountID uuid.UUID, apply PostingFunc) (*domain.PostingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}

	// apply works on a copy so a rejected posting leaves no trace.
	working := *stored
	posting, err := apply(&working)
	if err != nil {
		return nil, err
	}

	var outboxRow *memoryOutboxRow
	if posting.Event != nil {
		blob, err := json.Marshal(posting.Event.Payload)
		if err != nil {
			return nil, domain.NotificationDelivery("enqueue notification", err)
		}
		r.nextOutboxID++
		now := r.now()
		outboxRow = &memoryOutboxRow{
			message: OutboxMessage{
				ID:         r.nextOutboxID,
				Exchange:   strings.TrimSpace(posting.Event.Exchange),
				RoutingKey: strings.TrimSpace(posting.Event.RoutingKey),
				Payload:    blob,
			},
			status:        "pending",
			nextAttemptAt: now,
			createdAt:     now,
		}
	}

	stored.Balance = working.Balance
	stored.InitialDepositDate = working.InitialDepositDate
	stored.InterestStartDate = working.InterestStartDate
	stored.UpdatedAt = working.UpdatedAt
	r.transactions = append(r.transactions, *posting.Transaction)
	if outboxRow != nil {
		r.outbox = append(r.outbox, outboxRow)
	}

	return &domain.PostingResult{Account: *stored, Transaction: posting.Transaction}, nil
}

func (r *MemoryRepository) RecordEnquiry(ctx context.Context, accountID uuid.UUID, record EnquiryFunc) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *stored
	r.transactions = append(r.transactions, *record(copied))
	return &copied, nil
}

func (r *MemoryRepository) CreateTransaction(ctx context.Context, transaction *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[transaction.AccountID]; !ok {
		return ErrAccountNotFound
	}
	r.transactions = append(r.transactions, *transaction)
	return nil
}

func (r *MemoryRepository) ListTransactions(ctx context.Context, accountID uuid.UUID, rng *domain.DateRange) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[uuid.UUID]struct{})
	result := make([]domain.Transaction, 0)
	for _, transaction := range r.transactions {
		if transaction.AccountID != accountID {
			continue
		}
		if rng != nil && !rng.Contains(transaction.CreatedAt) {
			continue
		}
		if _, dup := seen[transaction.ID]; dup {
			continue
		}
		seen[transaction.ID] = struct{}{}
		result = append(result, transaction)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID.String() > result[j].ID.String()
	})
	return result, nil
}

func (r *MemoryRepository) StreamTransactions(ctx context.Context, accountID uuid.UUID, rng *domain.DateRange, fn func(domain.Transaction) error) error {
	transactions, err := r.ListTransactions(ctx, accountID, rng)
	if err != nil {
		return err
	}
	for _, transaction := range transactions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(transaction); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryRepository) ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]OutboxMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if staleAfterSeconds <= 0 {
		staleAfterSeconds = 120
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	staleBefore := now.Add(-time.Duration(staleAfterSeconds) * time.Second)
	messages := make([]OutboxMessage, 0, limit)
	for _, row := range r.outbox {
		if len(messages) == limit {
			break
		}
		due := row.status == "pending" && !row.nextAttemptAt.After(now)
		stale := row.status == "processing" && row.processingStartedAt.Before(staleBefore)
		if !due && !stale {
			continue
		}
		row.status = "processing"
		row.processingStartedAt = now
		row.message.Attempts++
		messages = append(messages, row.message)
	}
	return messages, nil
}

func (r *MemoryRepository) MarkOutboxPublished(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row := r.findOutboxRow(id); row != nil {
		row.status = "published"
		row.publishedAt = r.now()
		row.lastError = ""
	}
	return nil
}

func (r *MemoryRepository) MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if row := r.findOutboxRow(id); row != nil {
		row.status = "pending"
		row.nextAttemptAt = r.now().Add(time.Duration(retryAfterSeconds) * time.Second)
		row.lastError = truncateReason(reason)
	}
	return nil
}

func (r *MemoryRepository) PurgePublishedOutbox(ctx context.Context, publishedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.outbox[:0]
	var purged int64
	for _, row := range r.outbox {
		if row.status == "published" && row.publishedAt.Before(publishedBefore) {
			purged++
			continue
		}
		kept = append(kept, row)
	}
	r.outbox = kept
	return purged, nil
}

// PendingOutbox returns the messages not yet published, oldest first.
func (r *MemoryRepository) PendingOutbox() []OutboxMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]OutboxMessage, 0)
	for _, row := range r.outbox {
		if row.status != "published" {
			pending = append(pending, row.message)
		}
	}
	return pending
}

func (r *MemoryRepository) findOutboxRow(id int64) *memoryOutboxRow {
	for _, row := range r.outbox {
		if row.message.ID == id {
			return row
		}
	}
	return nil
}
