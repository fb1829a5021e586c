/**
 * @description
 * This file contains the core business logic for the teller service: deposits,
 * withdrawals, balance enquiries, the filtered transaction report and the CSV
 * export. It resolves the caller's account, applies the posting rules from
 * internal/domain and hands persistence to the repository.
 *
 * @dependencies
 * - internal/store: Repository interface for database interactions.
 * - internal/domain: posting rules, errors and models.
 * - internal/export: CSV row schema.
 */

package app

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/bipinss1983/banksystem/internal/domain"
	"github.com/bipinss1983/banksystem/internal/export"
	"github.com/bipinss1983/banksystem/internal/store"
	"github.com/shopspring/decimal"
)

// ServiceConfig carries the tunables the service reads on every request.
type ServiceConfig struct {
	Limits                     domain.Limits
	RecordEnquiries            bool
	ReportLocation             *time.Location
	DownloadRateLimitPerMinute int
}

// Service provides the transaction-related business logic.
type Service struct {
	repo     store.AccountRepository
	notifier *Notifier
	limiter  DownloadLimiter
	cfg      ServiceConfig
	now      func() time.Time
}

// NewService creates a new Service. notifier and limiter may be nil.
func NewService(repo store.AccountRepository, notifier *Notifier, limiter DownloadLimiter, cfg ServiceConfig) *Service {
	if cfg.ReportLocation == nil {
		cfg.ReportLocation = time.UTC
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		limiter:  limiter,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ResolveAccountHolder binds an authenticated subject to its account.
func (s *Service) ResolveAccountHolder(ctx context.Context, clerkUserID string) (*domain.AccountHolder, error) {
	if strings.TrimSpace(clerkUserID) == "" {
		return nil, domain.ErrUnauthorized
	}
	holder, err := s.repo.FindAccountHolderByClerkUserID(ctx, clerkUserID)
	if err != nil {
		return nil, classifyStoreError("resolve account", err)
	}
	return holder, nil
}

// Deposit credits the holder's account.
func (s *Service) Deposit(ctx context.Context, holder *domain.AccountHolder, amount decimal.Decimal) (*domain.PostingResult, error) {
	if err := s.cfg.Limits.ValidateDeposit(amount); err != nil {
		return nil, err
	}
	return s.post(ctx, holder, amount, domain.ApplyDeposit)
}

// Withdraw debits the holder's account. Overdrafts are rejected.
func (s *Service) Withdraw(ctx context.Context, holder *domain.AccountHolder, amount decimal.Decimal) (*domain.PostingResult, error) {
	if err := s.cfg.Limits.ValidateWithdrawal(amount); err != nil {
		return nil, err
	}
	return s.post(ctx, holder, amount, domain.ApplyWithdrawal)
}

type applyFunc func(account *domain.Account, amount decimal.Decimal, now time.Time) (*domain.Transaction, error)

func (s *Service) post(ctx context.Context, holder *domain.AccountHolder, amount decimal.Decimal, apply applyFunc) (*domain.PostingResult, error) {
	if holder == nil {
		return nil, domain.ErrUnauthorized
	}

	result, err := s.repo.ApplyPosting(ctx, holder.Account.ID, func(account *domain.Account) (*domain.Posting, error) {
		tx, err := apply(account, amount, s.now())
		if err != nil {
			return nil, err
		}
		return &domain.Posting{
			Transaction: tx,
			Event:       s.notifier.Confirmation(holder.User, tx),
		}, nil
	})
	if err != nil {
		return nil, classifyStoreError("post transaction", err)
	}

	log.Printf(
		"level=info component=app msg=\"transaction posted\" type=%s account_no=%d transaction_id=%s amount=%s balance=%s",
		result.Transaction.Type,
		result.Account.AccountNo,
		result.Transaction.ID,
		result.Transaction.Amount.StringFixed(2),
		result.Account.Balance.StringFixed(2),
	)
	return result, nil
}

// Enquire returns the current balance and, when configured, records the enquiry.
// The recorded snapshot is taken under the same lock as the balance it reports.
func (s *Service) Enquire(ctx context.Context, holder *domain.AccountHolder) (*domain.BalanceView, error) {
	if holder == nil {
		return nil, domain.ErrUnauthorized
	}

	if !s.cfg.RecordEnquiries {
		account, err := s.repo.FindAccountByID(ctx, holder.Account.ID)
		if err != nil {
			return nil, classifyStoreError("load account", err)
		}
		return domain.NewBalanceView(*account, s.now()), nil
	}

	var asOf time.Time
	account, err := s.repo.RecordEnquiry(ctx, holder.Account.ID, func(account domain.Account) *domain.Transaction {
		asOf = s.now()
		return domain.NewEnquiryRecord(account, asOf)
	})
	if err != nil {
		return nil, classifyStoreError("record enquiry", err)
	}
	return domain.NewBalanceView(*account, asOf), nil
}

// ParseDateRange parses report query parameters in the report time zone.
func (s *Service) ParseDateRange(start, end, combined string) (*domain.DateRange, error) {
	return domain.ParseDateRange(start, end, combined, s.cfg.ReportLocation)
}

// Report lists the holder's transactions, newest first, optionally filtered.
func (s *Service) Report(ctx context.Context, holder *domain.AccountHolder, rng *domain.DateRange) ([]domain.Transaction, error) {
	if holder == nil {
		return nil, domain.ErrUnauthorized
	}
	transactions, err := s.repo.ListTransactions(ctx, holder.Account.ID, rng)
	if err != nil {
		return nil, classifyStoreError("list transactions", err)
	}
	return transactions, nil
}

// Export writes the holder's full history as CSV to w and returns the row count.
func (s *Service) Export(ctx context.Context, holder *domain.AccountHolder, w io.Writer) (int, error) {
	if holder == nil {
		return 0, domain.ErrUnauthorized
	}

	ew := export.NewWriter(w)
	accountNo := holder.Account.AccountNo
	err := s.repo.StreamTransactions(ctx, holder.Account.ID, nil, func(tx domain.Transaction) error {
		return ew.Write(export.FromTransaction(accountNo, tx))
	})
	if err != nil {
		return ew.Rows(), classifyStoreError("export transactions", err)
	}
	if err := ew.Flush(); err != nil {
		return ew.Rows(), domain.Persistence("flush export", err)
	}
	return ew.Rows(), nil
}

// AllowDownload takes one download from the subject's per-minute budget and,
// when the budget is spent, returns the whole seconds until it refills.
// Limiter failures fail open.
func (s *Service) AllowDownload(ctx context.Context, subject string) (bool, int) {
	if s.limiter == nil || s.cfg.DownloadRateLimitPerMinute <= 0 {
		return true, 0
	}
	quota, err := s.limiter.TakeDownload(ctx, subject)
	if err != nil {
		log.Printf("level=warn component=app msg=\"download rate limiter unavailable\" err=%v", err)
		return true, 0
	}
	if quota.Used <= s.cfg.DownloadRateLimitPerMinute {
		return true, 0
	}
	wait := quota.Reset.Sub(s.now())
	retryAfter := int((wait + time.Second - 1) / time.Second)
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}

func classifyStoreError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrNotificationDelivery),
		errors.Is(err, domain.ErrPersistence):
		return err
	case errors.Is(err, store.ErrAccountNotFound), errors.Is(err, store.ErrUserNotFound):
		return domain.ErrNoAccount
	default:
		return domain.Persistence(op, err)
	}
}
