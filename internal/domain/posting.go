package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Limits are the service-wide amount bounds. A zero value disables the bound.
type Limits struct {
	MinDeposit    decimal.Decimal
	MinWithdrawal decimal.Decimal
	MaxWithdrawal decimal.Decimal
}

// MaxAmount is the largest value a NUMERIC(14, 2) column holds. It bounds both
// posted amounts and the resulting balance.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// ValidateAmount checks the rules shared by every monetary posting.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrInvalidAmount, MaxAmount.StringFixed(2))
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateDeposit applies the amount rules and the deposit minimum.
func (l Limits) ValidateDeposit(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if l.MinDeposit.IsPositive() && amount.LessThan(l.MinDeposit) {
		return fmt.Errorf("%w: minimum deposit is %s", ErrAmountBelowMinimum, l.MinDeposit.StringFixed(2))
	}
	return nil
}

// ValidateWithdrawal applies the amount rules and the withdrawal bounds.
func (l Limits) ValidateWithdrawal(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if l.MinWithdrawal.IsPositive() && amount.LessThan(l.MinWithdrawal) {
		return fmt.Errorf("%w: minimum withdrawal is %s", ErrAmountBelowMinimum, l.MinWithdrawal.StringFixed(2))
	}
	if l.MaxWithdrawal.IsPositive() && amount.GreaterThan(l.MaxWithdrawal) {
		return fmt.Errorf("%w: maximum withdrawal is %s", ErrAmountAboveMaximum, l.MaxWithdrawal.StringFixed(2))
	}
	return nil
}

// ApplyDeposit credits account in place and returns the ledger row for it.
// The first deposit also stamps the initial deposit and interest start dates.
func ApplyDeposit(account *Account, amount decimal.Decimal, now time.Time) (*Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	balance := account.Balance.Add(amount)
	if balance.GreaterThan(MaxAmount) {
		return nil, fmt.Errorf("%w: balance would exceed %s", ErrAmountAboveMaximum, MaxAmount.StringFixed(2))
	}

	if account.InitialDepositDate == nil {
		start, err := InterestStartDate(account.AccountType, now)
		if err != nil {
			return nil, err
		}
		initial := now
		account.InitialDepositDate = &initial
		account.InterestStartDate = &start
	}

	account.Balance = balance
	account.UpdatedAt = now
	return newTransaction(account, amount, TransactionTypeDeposit, now), nil
}

// ApplyWithdrawal debits account in place and returns the ledger row for it.
// The account is left untouched when the withdrawal is rejected.
func ApplyWithdrawal(account *Account, amount decimal.Decimal, now time.Time) (*Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if limit := account.AccountType.MaximumWithdrawalAmount; limit.Valid && amount.GreaterThan(limit.Decimal) {
		return nil, fmt.Errorf("%w: maximum withdrawal for %s accounts is %s", ErrAmountAboveMaximum, account.AccountType.Name, limit.Decimal.StringFixed(2))
	}
	if amount.GreaterThan(account.Balance) {
		return nil, ErrInsufficientFunds
	}

	account.Balance = account.Balance.Sub(amount)
	account.UpdatedAt = now
	return newTransaction(account, amount, TransactionTypeWithdrawal, now), nil
}

// NewEnquiryRecord returns the zero-amount audit row for a balance enquiry.
func NewEnquiryRecord(account Account, now time.Time) *Transaction {
	return newTransaction(&account, decimal.Zero, TransactionTypeEnquiry, now)
}

func newTransaction(account *Account, amount decimal.Decimal, kind TransactionType, now time.Time) *Transaction {
	return &Transaction{
		ID:                      uuid.New(),
		AccountID:               account.ID,
		Amount:                  amount,
		BalanceAfterTransaction: account.Balance,
		Type:                    kind,
		CreatedAt:               now,
	}
}
