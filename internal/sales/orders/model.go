package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/psi-backoffice/psi/internal/enums"
	"github.com/psi-backoffice/psi/internal/finance"
	"github.com/psi-backoffice/psi/internal/shipping"
)

type SalesOrder struct {
	ID             int64
	OrganizationID int64
	CustomerID     *int64
	Type           enums.Value
	Status         enums.Value
	// LogisticAmount is nullable; an unset amount produces no Expense.
	LogisticAmount decimal.NullDecimal
	ActualAmount   decimal.Decimal
	OriginalAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	OrderDate      time.Time
	Remark         string
	ExternalID     *string
	CustomerName   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Lines          []SalesOrderLine

	// Dependents currently linked to the order, nil when absent.
	Incoming *finance.Incoming
	Expense  *finance.Expense
	Shipping *shipping.Shipping
}

type SalesOrderLine struct {
	ID           int64
	SalesOrderID int64
	ProductID    int64
	ProductName  string
	UnitPrice    decimal.Decimal
	Quantity     decimal.Decimal
	// RetailPrice is copied from the product when the order is loaded or saved.
	RetailPrice decimal.Decimal
	Remark      string
	ExternalID  *string
}

// PriceDiscount is the per-unit gap between retail and charged price.
func (l SalesOrderLine) PriceDiscount() decimal.Decimal {
	return l.RetailPrice.Sub(l.UnitPrice)
}

// OriginalAmount is the line valued at retail price.
func (l SalesOrderLine) OriginalAmount() decimal.Decimal {
	return l.RetailPrice.Mul(l.Quantity)
}

// ActualAmount is the line valued at the charged price.
func (l SalesOrderLine) ActualAmount() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity)
}

func (l SalesOrderLine) DiscountAmount() decimal.Decimal {
	return l.OriginalAmount().Sub(l.ActualAmount())
}

// RecomputeTotals sums the line amounts into the order header.
func (o *SalesOrder) RecomputeTotals() {
	actual, original := decimal.Zero, decimal.Zero
	for _, l := range o.Lines {
		actual = actual.Add(l.ActualAmount())
		original = original.Add(l.OriginalAmount())
	}
	o.ActualAmount = actual
	o.OriginalAmount = original
	o.DiscountAmount = original.Sub(actual)
}

// State is the subset of an order row actions look at.
func (o *SalesOrder) State() OrderState {
	return OrderState{ID: o.ID, Type: o.Type, Status: o.Status}
}

// SalesOrderRow is one line of the list screen.
type SalesOrderRow struct {
	ID             int64
	OrganizationID int64
	Type           enums.Value
	Status         enums.Value
	CustomerID     *int64
	CustomerName   string
	LogisticAmount decimal.NullDecimal
	ActualAmount   decimal.Decimal
	OriginalAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	OrderDate      time.Time
	Remark         string
	IncomingID     *int64
	ExpenseID      *int64
	ShippingID     *int64
}

func (r SalesOrderRow) State() OrderState {
	return OrderState{ID: r.ID, Type: r.Type, Status: r.Status}
}

// OrderState identifies an order with its current type and status.
type OrderState struct {
	ID     int64
	Type   enums.Value
	Status enums.Value
}
