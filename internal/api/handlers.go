/**
 * @description
 * HTTP handlers for the teller endpoints. Each handler resolves the caller's
 * account from the verified token subject, delegates to app.Service and maps
 * domain errors to status codes in mapServiceError.
 *
 * @dependencies
 * - internal/app: business logic.
 * - internal/domain: request/response models and error kinds.
 * - internal/export: CSV schema version header.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/bipinss1983/banksystem/internal/app"
	"github.com/bipinss1983/banksystem/internal/domain"
	"github.com/bipinss1983/banksystem/internal/export"
	"github.com/shopspring/decimal"
)

const maxRequestBodyBytes = 1 << 20

// TransactionHandlers holds the dependencies for the HTTP handlers.
type TransactionHandlers struct {
	service *app.Service
}

func NewTransactionHandlers(service *app.Service) *TransactionHandlers {
	return &TransactionHandlers{service: service}
}

type postingResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
	Balance     decimal.Decimal     `json:"balance"`
	Message     string              `json:"message"`
}

type reportResponse struct {
	AccountNo    int64                `json:"account_no"`
	Balance      decimal.Decimal      `json:"balance"`
	DateRange    string               `json:"daterange,omitempty"`
	Transactions []domain.Transaction `json:"transactions"`
}

func (h *TransactionHandlers) resolveAccountHolder(w http.ResponseWriter, r *http.Request) (*domain.AccountHolder, string, bool) {
	subject, ok := GetClerkUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Could not get user ID from context")
		return nil, "", false
	}
	holder, err := h.service.ResolveAccountHolder(r.Context(), subject)
	if err != nil {
		h.writeServiceError(w, "resolve account", err)
		return nil, "", false
	}
	return holder, subject, true
}

func decodeAmount(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	var req domain.AmountRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return decimal.Decimal{}, false
	}
	if req.Amount == nil {
		writeError(w, http.StatusBadRequest, "amount is required")
		return decimal.Decimal{}, false
	}
	return *req.Amount, true
}

// DepositHandler credits the caller's account.
func (h *TransactionHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	holder, _, ok := h.resolveAccountHolder(w, r)
	if !ok {
		return
	}
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}

	result, err := h.service.Deposit(r.Context(), holder, amount)
	if err != nil {
		h.writeServiceError(w, "deposit", err)
		return
	}

	writeJSON(w, http.StatusCreated, postingResponse{
		Transaction: result.Transaction,
		Balance:     result.Account.Balance,
		Message:     fmt.Sprintf("%s$ was deposited to your account successfully", amount.StringFixed(2)),
	})
}

// WithdrawHandler debits the caller's account.
func (h *TransactionHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	holder, _, ok := h.resolveAccountHolder(w, r)
	if !ok {
		return
	}
	amount, ok := decodeAmount(w, r)
	if !ok {
		return
	}

	result, err := h.service.Withdraw(r.Context(), holder, amount)
	if err != nil {
		h.writeServiceError(w, "withdraw", err)
		return
	}

	writeJSON(w, http.StatusCreated, postingResponse{
		Transaction: result.Transaction,
		Balance:     result.Account.Balance,
		Message:     fmt.Sprintf("Successfully withdrawn %s$ from your account", amount.StringFixed(2)),
	})
}

// EnquiryHandler returns the caller's balance.
func (h *TransactionHandlers) EnquiryHandler(w http.ResponseWriter, r *http.Request) {
	holder, _, ok := h.resolveAccountHolder(w, r)
	if !ok {
		return
	}

	view, err := h.service.Enquire(r.Context(), holder)
	if err != nil {
		h.writeServiceError(w, "enquiry", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ReportHandler lists the caller's transactions, optionally by date range.
func (h *TransactionHandlers) ReportHandler(w http.ResponseWriter, r *http.Request) {
	holder, _, ok := h.resolveAccountHolder(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	rng, err := h.service.ParseDateRange(query.Get("start_date"), query.Get("end_date"), query.Get("daterange"))
	if err != nil {
		h.writeServiceError(w, "report", err)
		return
	}

	transactions, err := h.service.Report(r.Context(), holder, rng)
	if err != nil {
		h.writeServiceError(w, "report", err)
		return
	}

	response := reportResponse{
		AccountNo:    holder.Account.AccountNo,
		Balance:      holder.Account.Balance,
		Transactions: transactions,
	}
	if rng != nil {
		response.DateRange = rng.String()
	}
	writeJSON(w, http.StatusOK, response)
}

// DownloadHandler streams the caller's transaction history as CSV.
func (h *TransactionHandlers) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	holder, subject, ok := h.resolveAccountHolder(w, r)
	if !ok {
		return
	}

	if allowed, retryAfter := h.service.AllowDownload(r.Context(), subject); !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusTooManyRequests, "Too many download requests. Please try again later.")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	w.Header().Set("X-Export-Schema-Version", export.SchemaVersion)
	w.WriteHeader(http.StatusOK)

	rows, err := h.service.Export(r.Context(), holder, w)
	if err != nil {
		// Headers are already sent; the truncated body is all the client gets.
		log.Printf("level=error component=api msg=\"export failed mid-stream\" account_no=%d rows=%d err=%v", holder.Account.AccountNo, rows, err)
		return
	}
	log.Printf("level=info component=api msg=\"export completed\" account_no=%d rows=%d", holder.Account.AccountNo, rows)
}

// mapServiceError converts a service error into a status code and client message.
func mapServiceError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, "No bank account is bound to this session."
	case errors.Is(err, domain.ErrNotificationDelivery):
		return http.StatusServiceUnavailable, "Unable to queue the confirmation message. Please try again."
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (h *TransactionHandlers) writeServiceError(w http.ResponseWriter, op string, err error) {
	status, message := mapServiceError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("level=error component=api msg=\"%s failed\" status=%d err=%v", op, status, err)
	}
	writeError(w, status, message)
}

// writeJSON is a helper to write JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("level=warn component=api msg=\"failed to encode response\" err=%v", err)
		}
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
