package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bipinss1983/banksystem/internal/domain"
	"github.com/shopspring/decimal"
)

// SchemaVersion identifies the column layout below. Bump it whenever Header changes.
const SchemaVersion = "v1"

// Header is the CSV header for a transaction export.
const Header = "id,account,amount,balance_after_transaction,transaction_type"

const (
	numFields      = 5
	colID          = 0
	colAccount     = 1
	colAmount      = 2
	colBalance     = 3
	colTransaction = 4
)

// Row is one exported ledger entry.
type Row struct {
	ID                      string
	AccountNo               int64
	Amount                  decimal.Decimal
	BalanceAfterTransaction decimal.Decimal
	TransactionType         domain.TransactionType
}

// FromTransaction converts a ledger row for an account into an export row.
func FromTransaction(accountNo int64, tx domain.Transaction) Row {
	return Row{
		ID:                      tx.ID.String(),
		AccountNo:               accountNo,
		Amount:                  tx.Amount,
		BalanceAfterTransaction: tx.BalanceAfterTransaction,
		TransactionType:         tx.Type,
	}
}

// MarshalRow converts a Row to a CSV record.
func MarshalRow(row Row) []string {
	record := make([]string, numFields)
	record[colID] = row.ID
	record[colAccount] = strconv.FormatInt(row.AccountNo, 10)
	record[colAmount] = row.Amount.StringFixed(2)
	record[colBalance] = row.BalanceAfterTransaction.StringFixed(2)
	record[colTransaction] = string(row.TransactionType)
	return record
}

// Writer streams rows to an io.Writer. The header is written exactly once,
// before the first row or on Flush for an empty export.
type Writer struct {
	cw          *csv.Writer
	wroteHeader bool
	rows        int
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{cw: csv.NewWriter(w)}
}

func (w *Writer) writeHeader() error {
	if w.wroteHeader {
		return nil
	}
	w.wroteHeader = true
	if err := w.cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

// Write appends a row.
func (w *Writer) Write(row Row) error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	if err := w.cw.Write(MarshalRow(row)); err != nil {
		return fmt.Errorf("writing row %d: %w", w.rows+2, err)
	}
	w.rows++
	return nil
}

// Rows returns how many data rows have been written.
func (w *Writer) Rows() int {
	return w.rows
}

// Flush writes any buffered data and reports the first write error.
func (w *Writer) Flush() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	w.cw.Flush()
	return w.cw.Error()
}

// WriteRows writes a complete export, header included.
func WriteRows(w io.Writer, rows []Row) error {
	ew := NewWriter(w)
	for _, row := range rows {
		if err := ew.Write(row); err != nil {
			return err
		}
	}
	return ew.Flush()
}
