package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bipinss1983/banksystem/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRows_HeaderOncePlusOneRowPerTransaction(t *testing.T) {
	txs := []domain.Transaction{
		{ID: uuid.New(), Amount: decimal.RequireFromString("30"), BalanceAfterTransaction: decimal.RequireFromString("120"), Type: domain.TransactionTypeWithdrawal, CreatedAt: time.Now()},
		{ID: uuid.New(), Amount: decimal.RequireFromString("50.5"), BalanceAfterTransaction: decimal.RequireFromString("150.5"), Type: domain.TransactionTypeDeposit, CreatedAt: time.Now()},
	}
	rows := make([]Row, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, FromTransaction(10000007, tx))
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, strings.Split(Header, ","), records[0])
	assert.Equal(t, []string{txs[0].ID.String(), "10000007", "30.00", "120.00", "withdrawal"}, records[1])
	assert.Equal(t, []string{txs[1].ID.String(), "10000007", "50.50", "150.50", "deposit"}, records[2])
}

func TestWriter_EmptyExportStillHasHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Flush())
	require.NoError(t, w.Flush())

	assert.Equal(t, Header+"\n", buf.String())
	assert.Zero(t, w.Rows())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func TestWriter_FlushReportsWriteErrors(t *testing.T) {
	w := NewWriter(failingWriter{})
	require.NoError(t, w.Write(Row{ID: "x", TransactionType: domain.TransactionTypeDeposit}))
	assert.EqualError(t, w.Flush(), "disk full")
	assert.Equal(t, 1, w.Rows())
}
