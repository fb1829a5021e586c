package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType tags what a ledger row records.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeEnquiry    TransactionType = "enquiry"
	TransactionTypeDownload   TransactionType = "download"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeEnquiry, TransactionTypeDownload:
		return true
	}
	return false
}

// Transaction is an immutable ledger row. Amount is stored as entered (always
// non-negative); the type decides the direction of the balance change.
type Transaction struct {
	ID                      uuid.UUID       `json:"id"`
	AccountID               uuid.UUID       `json:"account_id"`
	Amount                  decimal.Decimal `json:"amount"`
	BalanceAfterTransaction decimal.Decimal `json:"balance_after_transaction"`
	Type                    TransactionType `json:"transaction_type"`
	CreatedAt               time.Time       `json:"timestamp"`
}

// AmountRequest is the DTO for deposit and withdrawal API requests.
type AmountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// OutboxEvent is a message that must be published once the surrounding database
// transaction commits.
type OutboxEvent struct {
	Exchange   string
	RoutingKey string
	Payload    interface{}
}

// Posting is what a balance mutation produces: the ledger row and, optionally,
// the event announcing it.
type Posting struct {
	Transaction *Transaction
	Event       *OutboxEvent
}

// PostingResult is returned to callers once a posting has committed.
type PostingResult struct {
	Account     Account      `json:"-"`
	Transaction *Transaction `json:"transaction"`
}
