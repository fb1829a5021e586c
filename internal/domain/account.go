/**
 * @description
 * Account-side domain models: the bank account itself, its configured account
 * type, and the user who owns it. Money is held in shopspring/decimal values with
 * two decimal places, mirroring the NUMERIC(14,2) columns in the database.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType is the product configuration an account is opened under.
type AccountType struct {
	ID                         uuid.UUID           `json:"id"`
	Name                       string              `json:"name"`
	MaximumWithdrawalAmount    decimal.NullDecimal `json:"maximum_withdrawal_amount"`
	AnnualInterestRate         decimal.Decimal     `json:"annual_interest_rate"`
	InterestCalculationPerYear int                 `json:"interest_calculation_per_year"`
}

// MonthsBetweenInterestCalculations returns 12 / InterestCalculationPerYear using
// integer division.
func (t AccountType) MonthsBetweenInterestCalculations() (int, error) {
	if t.InterestCalculationPerYear <= 0 {
		return 0, ErrInvalidAccountType
	}
	return 12 / t.InterestCalculationPerYear, nil
}

// Account represents a user's bank account. Balance is only ever changed by a
// posting (see ApplyDeposit and ApplyWithdrawal).
type Account struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             uuid.UUID       `json:"user_id"`
	AccountNo          int64           `json:"account_no"`
	AccountType        AccountType     `json:"account_type"`
	Balance            decimal.Decimal `json:"balance"`
	InitialDepositDate *time.Time      `json:"initial_deposit_date,omitempty"`
	InterestStartDate  *time.Time      `json:"interest_start_date,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// User is the subset of the identity record this service needs.
type User struct {
	ID          uuid.UUID `json:"id"`
	ClerkUserID string    `json:"clerk_user_id"`
	Email       string    `json:"email"`
	FullName    *string   `json:"full_name,omitempty"`
}

// AccountHolder binds an authenticated user to the single account their session
// may operate on.
type AccountHolder struct {
	User    User
	Account Account
}

// BalanceView is the read model returned by a balance enquiry.
type BalanceView struct {
	AccountNo          int64           `json:"account_no"`
	AccountType        string          `json:"account_type"`
	Balance            decimal.Decimal `json:"balance"`
	InitialDepositDate *time.Time      `json:"initial_deposit_date,omitempty"`
	InterestStartDate  *time.Time      `json:"interest_start_date,omitempty"`
	AsOf               time.Time       `json:"as_of"`
}

// NewBalanceView builds the enquiry read model for an account.
func NewBalanceView(account Account, asOf time.Time) *BalanceView {
	return &BalanceView{
		AccountNo:          account.AccountNo,
		AccountType:        account.AccountType.Name,
		Balance:            account.Balance,
		InitialDepositDate: account.InitialDepositDate,
		InterestStartDate:  account.InterestStartDate,
		AsOf:               asOf,
	}
}
