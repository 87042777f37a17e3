package sheets

import (
	"context"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// Row is one ledger transaction as it appears in the mirror sheet. The
// transaction id is the row's key: the database forgets a mirrored row once
// the transaction is deleted, so removal is always by id.
type Row struct {
	TransactionID int64
	Date          core.Date
	Type          core.TxType
	Account       string
	Category      string
	Description   string
	Amount        decimal.Decimal
	Currency      string
}

// Values renders the row in sheet column order.
func (r Row) Values() []any {
	return []any{r.TransactionID, r.Date.String(), string(r.Type), r.Account, r.Category, r.Description, r.Amount.StringFixed(2), r.Currency}
}

// Header is the first row of a mirror sheet.
var Header = []any{"ID", "Date", "Type", "Account", "Category", "Description", "Amount", "Currency"}

// Ports for outbound adapters.
type (
	RowWriter interface {
		Append(ctx context.Context, r Row) (rowRef string, err error)
	}

	RowDeleter interface {
		// Delete removes the row of a transaction. A missing row is not an error.
		Delete(ctx context.Context, transactionID int64) error
	}

	Mirror interface {
		RowWriter
		RowDeleter
	}
)
