// Package finance persists the receivable and payable records that sales
// orders produce: Incoming (money owed by the customer) and Expense
// (logistic cost carried by the organization).
package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Incoming is a receivable linked one-to-one with a sales order.
type Incoming struct {
	ID             int64
	OrganizationID int64
	SalesOrderID   int64
	Amount         decimal.Decimal
	Date           time.Time
	StatusID       int64
	CategoryID     int64
	Remark         string
}

// Expense is a payable linked one-to-one with a sales order.
type Expense struct {
	ID             int64
	OrganizationID int64
	SalesOrderID   int64
	Amount         decimal.Decimal
	Date           time.Time
	StatusID       int64
	CategoryID     int64
	// Remark is NOT NULL in the schema; an empty string is stored when unset.
	Remark string
}

// IsNew reports whether the incoming has not been persisted yet.
func (i *Incoming) IsNew() bool { return i.ID == 0 }

// IsNew reports whether the expense has not been persisted yet.
func (e *Expense) IsNew() bool { return e.ID == 0 }
