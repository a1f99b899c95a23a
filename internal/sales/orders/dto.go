package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaveSalesOrderRequest creates an order when ID is nil, otherwise edits it.
type SaveSalesOrderRequest struct {
	ID             *int64                      `json:"id,omitempty"`
	CustomerID     *int64                      `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	LogisticAmount decimal.NullDecimal         `json:"logistic_amount" validate:"omitempty,gte=0"`
	OrderDate      time.Time                   `json:"order_date" validate:"required"`
	Remark         string                      `json:"remark" validate:"max=2000"`
	Lines          []SaveSalesOrderLineRequest `json:"lines" validate:"dive"`
}

type SaveSalesOrderLineRequest struct {
	ID        *int64          `json:"id,omitempty" validate:"omitempty,gt=0"`
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
	Remark    string          `json:"remark" validate:"max=500"`
}

// AmountFilter compares one money column against Value.
type AmountFilter struct {
	Op    string          `validate:"required,oneof=lt gt eq"`
	Value decimal.Decimal `validate:"-"`
}

// Sortable list columns.
const (
	SortID             = "id"
	SortLogisticAmount = "logistic_amount"
	SortActualAmount   = "actual_amount"
	SortOriginalAmount = "original_amount"
	SortDiscountAmount = "discount_amount"
	SortOrderDate      = "order_date"
	SortStatus         = "status"
	SortType           = "type"
)

type ListSalesOrdersRequest struct {
	OrganizationID int64         `validate:"required,gt=0"`
	DateFrom       *time.Time    `validate:"-"`
	DateTo         *time.Time    `validate:"-"`
	LogisticAmount *AmountFilter `validate:"omitempty"`
	ActualAmount   *AmountFilter `validate:"omitempty"`
	OriginalAmount *AmountFilter `validate:"omitempty"`
	DiscountAmount *AmountFilter `validate:"omitempty"`
	Search         string        `validate:"max=100"`
	SortBy         string        `validate:"omitempty,oneof=id logistic_amount actual_amount original_amount discount_amount order_date status type"`
	SortDesc       bool
	Page           int `validate:"gte=0"`
	PerPage        int `validate:"gte=0,lte=200"`
}
