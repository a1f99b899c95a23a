// Package shipping persists the delivery records generated for direct-sale
// orders.
package shipping

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shipping is the delivery header linked one-to-one with a sales order.
type Shipping struct {
	ID             int64
	OrganizationID int64
	SalesOrderID   int64
	Date           time.Time
	StatusID       int64
	TypeID         int64
	Remark         string
	Lines          []Line
}

// Line mirrors one sales order line.
type Line struct {
	ID               int64
	ShippingID       int64
	SalesOrderLineID int64
	ProductID        int64
	Quantity         decimal.Decimal
	Price            decimal.Decimal
}

// IsNew reports whether the shipping has not been persisted yet.
func (s *Shipping) IsNew() bool { return s.ID == 0 }

// LineFor returns the line tracking the given sales order line.
func (s *Shipping) LineFor(salesOrderLineID int64) (*Line, bool) {
	for i := range s.Lines {
		if s.Lines[i].SalesOrderLineID == salesOrderLineID {
			return &s.Lines[i], true
		}
	}
	return nil, false
}
