package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EmailNotification is the payload published for a deposit or withdrawal. It is
// consumed by whatever mail relay is bound to the notification exchange.
type EmailNotification struct {
	EventID         uuid.UUID       `json:"event_id"`
	Subject         string          `json:"subject"`
	Body            string          `json:"body"`
	Sender          string          `json:"sender"`
	Recipients      []string        `json:"recipients"`
	AccountID       uuid.UUID       `json:"account_id"`
	TransactionID   uuid.UUID       `json:"transaction_id"`
	TransactionType TransactionType `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	OccurredAt      time.Time       `json:"occurred_at"`
}
