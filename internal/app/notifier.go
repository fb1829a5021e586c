package app

import (
	"fmt"
	"log"
	"strings"

	"github.com/bipinss1983/banksystem/internal/domain"
	"github.com/google/uuid"
)

const (
	RoutingKeyDepositEmail    = "notification.email.deposit"
	RoutingKeyWithdrawalEmail = "notification.email.withdrawal"
)

// Notifier builds the confirmation messages queued alongside a posting.
type Notifier struct {
	exchange string
	sender   string
}

func NewNotifier(exchange, sender string) *Notifier {
	return &Notifier{
		exchange: strings.TrimSpace(exchange),
		sender:   strings.TrimSpace(sender),
	}
}

// Confirmation returns the outbox event for a deposit or withdrawal, or nil when
// the transaction type does not notify or the user has no email address.
func (n *Notifier) Confirmation(user domain.User, tx *domain.Transaction) *domain.OutboxEvent {
	if n == nil || tx == nil {
		return nil
	}

	var subject, body, routingKey string
	amount := tx.Amount.StringFixed(2)
	switch tx.Type {
	case domain.TransactionTypeDeposit:
		subject = "Amount Deposited"
		body = fmt.Sprintf("%s$ was deposited to your account successfully", amount)
		routingKey = RoutingKeyDepositEmail
	case domain.TransactionTypeWithdrawal:
		subject = "Amount Withdrawn"
		body = fmt.Sprintf("%s$ was debited from your account successfully", amount)
		routingKey = RoutingKeyWithdrawalEmail
	default:
		return nil
	}

	recipient := strings.TrimSpace(user.Email)
	if recipient == "" {
		log.Printf("level=warn component=app msg=\"user has no email; skipping confirmation\" user_id=%s transaction_id=%s", user.ID, tx.ID)
		return nil
	}

	return &domain.OutboxEvent{
		Exchange:   n.exchange,
		RoutingKey: routingKey,
		Payload: domain.EmailNotification{
			EventID:         uuid.New(),
			Subject:         subject,
			Body:            body,
			Sender:          n.sender,
			Recipients:      []string{recipient},
			AccountID:       tx.AccountID,
			TransactionID:   tx.ID,
			TransactionType: tx.Type,
			Amount:          tx.Amount,
			OccurredAt:      tx.CreatedAt,
		},
	}
}
