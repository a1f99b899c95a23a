package orders

import (
	"fmt"

	"github.com/psi-backoffice/psi/internal/enums"
	"github.com/psi-backoffice/psi/internal/finance"
	"github.com/psi-backoffice/psi/internal/shipping"
)

// DeriveIncoming returns the receivable the order should have. The linked
// record is copied and updated; a new one starts pending as sales income.
func DeriveIncoming(o *SalesOrder, reg *enums.Registry) (*finance.Incoming, error) {
	var in finance.Incoming
	if o.Incoming != nil {
		in = *o.Incoming
	} else {
		status, err := reg.Get(enums.IncomingPendingStatus)
		if err != nil {
			return nil, fmt.Errorf("derive incoming: %w", err)
		}
		category, err := reg.Get(enums.SalesIncomeCategory)
		if err != nil {
			return nil, fmt.Errorf("derive incoming: %w", err)
		}
		in.StatusID = status.ID
		in.CategoryID = category.ID
	}
	in.SalesOrderID = o.ID
	in.OrganizationID = o.OrganizationID
	in.Date = o.OrderDate
	in.Amount = o.ActualAmount
	return &in, nil
}

// DeriveExpense returns the logistic payable, or nil when the order carries
// no logistic amount.
func DeriveExpense(o *SalesOrder, reg *enums.Registry) (*finance.Expense, error) {
	if !o.LogisticAmount.Valid {
		return nil, nil
	}
	var ex finance.Expense
	if o.Expense != nil {
		ex = *o.Expense
	} else {
		status, err := reg.Get(enums.ExpensePendingStatus)
		if err != nil {
			return nil, fmt.Errorf("derive expense: %w", err)
		}
		category, err := reg.Get(enums.LogisticExpenseCategory)
		if err != nil {
			return nil, fmt.Errorf("derive expense: %w", err)
		}
		ex.StatusID = status.ID
		ex.CategoryID = category.ID
	}
	ex.SalesOrderID = o.ID
	ex.OrganizationID = o.OrganizationID
	ex.Date = o.OrderDate
	ex.Amount = o.LogisticAmount.Decimal
	return &ex, nil
}

// DeriveShipping returns the completed delivery of a direct sale, or nil for
// any other order type. Its lines track the order lines one-to-one.
func DeriveShipping(o *SalesOrder, reg *enums.Registry) (*shipping.Shipping, error) {
	if !o.Type.Is(enums.DirectSOType) {
		return nil, nil
	}
	status, err := reg.Get(enums.ShippingCompleteStatus)
	if err != nil {
		return nil, fmt.Errorf("derive shipping: %w", err)
	}
	typ, err := reg.Get(enums.DirectShippingType)
	if err != nil {
		return nil, fmt.Errorf("derive shipping: %w", err)
	}

	var sh shipping.Shipping
	if o.Shipping != nil {
		sh = *o.Shipping
	}
	sh.SalesOrderID = o.ID
	sh.OrganizationID = o.OrganizationID
	sh.Date = o.OrderDate
	sh.StatusID = status.ID
	sh.TypeID = typ.ID

	lines := make([]shipping.Line, 0, len(o.Lines))
	for _, ol := range o.Lines {
		line := shipping.Line{SalesOrderLineID: ol.ID}
		if o.Shipping != nil {
			if existing, ok := o.Shipping.LineFor(ol.ID); ok {
				line = *existing
			}
		}
		line.ProductID = ol.ProductID
		line.Quantity = ol.Quantity
		line.Price = ol.UnitPrice
		lines = append(lines, line)
	}
	sh.Lines = lines
	return &sh, nil
}
