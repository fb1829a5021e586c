package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newSavingsAccount(balance string) *Account {
	return &Account{
		ID:        uuid.New(),
		AccountNo: 10000001,
		AccountType: AccountType{
			Name:                       "Savings",
			MaximumWithdrawalAmount:    decimal.NewNullDecimal(decimal.RequireFromString("5000")),
			AnnualInterestRate:         decimal.RequireFromString("3.5"),
			InterestCalculationPerYear: 4,
		},
		Balance: decimal.RequireFromString(balance),
	}
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{name: "accepts whole amount", amount: "50"},
		{name: "accepts two decimals", amount: "50.25"},
		{name: "accepts trailing zeros", amount: "50.2500"},
		{name: "rejects zero", amount: "0", wantErr: true},
		{name: "rejects negative", amount: "-10", wantErr: true},
		{name: "rejects three decimals", amount: "10.001", wantErr: true},
		{name: "accepts largest storable amount", amount: "999999999999.99"},
		{name: "rejects amount wider than the column", amount: "1000000000000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tt.amount))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("expected ErrInvalidAmount, got %v", err)
				}
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected error to be classified as validation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLimits(t *testing.T) {
	limits := Limits{
		MinDeposit:    decimal.NewFromInt(10),
		MinWithdrawal: decimal.NewFromInt(10),
		MaxWithdrawal: decimal.NewFromInt(10000),
	}

	if err := limits.ValidateDeposit(decimal.RequireFromString("9.99")); !errors.Is(err, ErrAmountBelowMinimum) {
		t.Fatalf("expected ErrAmountBelowMinimum for small deposit, got %v", err)
	}
	if err := limits.ValidateDeposit(decimal.NewFromInt(10)); err != nil {
		t.Fatalf("expected minimum deposit to be accepted, got %v", err)
	}
	if err := limits.ValidateWithdrawal(decimal.NewFromInt(5)); !errors.Is(err, ErrAmountBelowMinimum) {
		t.Fatalf("expected ErrAmountBelowMinimum for small withdrawal, got %v", err)
	}
	if err := limits.ValidateWithdrawal(decimal.NewFromInt(10001)); !errors.Is(err, ErrAmountAboveMaximum) {
		t.Fatalf("expected ErrAmountAboveMaximum, got %v", err)
	}
	if err := (Limits{}).ValidateWithdrawal(decimal.NewFromInt(1)); err != nil {
		t.Fatalf("expected zero limits to disable bounds, got %v", err)
	}
}

func TestApplyDeposit_FirstDepositSetsInterestDates(t *testing.T) {
	account := newSavingsAccount("0")
	now := time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC)

	tx, err := ApplyDeposit(account, decimal.RequireFromString("100.50"), now)
	if err != nil {
		t.Fatalf("ApplyDeposit returned error: %v", err)
	}

	if !account.Balance.Equal(decimal.RequireFromString("100.50")) {
		t.Fatalf("expected balance 100.50, got %s", account.Balance)
	}
	if !tx.BalanceAfterTransaction.Equal(account.Balance) {
		t.Fatalf("expected balance_after_transaction %s, got %s", account.Balance, tx.BalanceAfterTransaction)
	}
	if tx.Type != TransactionTypeDeposit || tx.AccountID != account.ID {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if account.InitialDepositDate == nil || !account.InitialDepositDate.Equal(now) {
		t.Fatalf("expected initial deposit date %v, got %v", now, account.InitialDepositDate)
	}
	want := time.Date(2025, time.April, 15, 9, 30, 0, 0, time.UTC)
	if account.InterestStartDate == nil || !account.InterestStartDate.Equal(want) {
		t.Fatalf("expected interest start %v, got %v", want, account.InterestStartDate)
	}
}

func TestApplyDeposit_RejectsBalanceAboveStorableMaximum(t *testing.T) {
	account := newSavingsAccount("999999999999.00")

	tx, err := ApplyDeposit(account, decimal.RequireFromString("1.00"), time.Now())
	if !errors.Is(err, ErrAmountAboveMaximum) || !errors.Is(err, ErrValidation) {
		t.Fatalf("expected a validation error for balance overflow, got %v", err)
	}
	if tx != nil {
		t.Fatalf("expected no transaction, got %+v", tx)
	}
	if !account.Balance.Equal(decimal.RequireFromString("999999999999.00")) || account.InitialDepositDate != nil {
		t.Fatalf("expected account to be untouched, got balance %s", account.Balance)
	}
}

func TestApplyDeposit_LaterDepositKeepsInterestDates(t *testing.T) {
	account := newSavingsAccount("40")
	first := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	account.InitialDepositDate = &first
	account.InterestStartDate = &start

	if _, err := ApplyDeposit(account, decimal.NewFromInt(60), time.Now()); err != nil {
		t.Fatalf("ApplyDeposit returned error: %v", err)
	}

	if !account.InitialDepositDate.Equal(first) || !account.InterestStartDate.Equal(start) {
		t.Fatalf("expected interest dates to be unchanged, got %v / %v", account.InitialDepositDate, account.InterestStartDate)
	}
	if !account.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected balance 100, got %s", account.Balance)
	}
}

func TestApplyDeposit_RejectsAccountTypeWithoutFrequency(t *testing.T) {
	account := newSavingsAccount("0")
	account.AccountType.InterestCalculationPerYear = 0

	_, err := ApplyDeposit(account, decimal.NewFromInt(10), time.Now())
	if !errors.Is(err, ErrInvalidAccountType) {
		t.Fatalf("expected ErrInvalidAccountType, got %v", err)
	}
	if !account.Balance.IsZero() || account.InitialDepositDate != nil {
		t.Fatalf("expected account to be untouched, got %+v", account)
	}
}

func TestApplyWithdrawal(t *testing.T) {
	tests := []struct {
		name        string
		balance     string
		amount      string
		wantBalance string
		wantErr     error
	}{
		{name: "debits balance", balance: "100", amount: "40", wantBalance: "60"},
		{name: "allows emptying the account", balance: "100", amount: "100", wantBalance: "0"},
		{name: "rejects overdraft", balance: "100", amount: "100.01", wantBalance: "100", wantErr: ErrInsufficientFunds},
		{name: "rejects above account type maximum", balance: "9000", amount: "5000.01", wantBalance: "9000", wantErr: ErrAmountAboveMaximum},
		{name: "rejects invalid amount", balance: "100", amount: "-1", wantBalance: "100", wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := newSavingsAccount(tt.balance)
			tx, err := ApplyWithdrawal(account, decimal.RequireFromString(tt.amount), time.Now())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if tx != nil {
					t.Fatalf("expected no transaction, got %+v", tx)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			} else if tx.Type != TransactionTypeWithdrawal || !tx.Amount.Equal(decimal.RequireFromString(tt.amount)) {
				t.Fatalf("unexpected transaction: %+v", tx)
			}
			if !account.Balance.Equal(decimal.RequireFromString(tt.wantBalance)) {
				t.Fatalf("expected balance %s, got %s", tt.wantBalance, account.Balance)
			}
		})
	}
}

func TestNewEnquiryRecord(t *testing.T) {
	account := newSavingsAccount("250.75")
	tx := NewEnquiryRecord(*account, time.Now())

	if tx.Type != TransactionTypeEnquiry || !tx.Amount.IsZero() {
		t.Fatalf("unexpected enquiry record: %+v", tx)
	}
	if !tx.BalanceAfterTransaction.Equal(account.Balance) {
		t.Fatalf("expected balance snapshot %s, got %s", account.Balance, tx.BalanceAfterTransaction)
	}
}
