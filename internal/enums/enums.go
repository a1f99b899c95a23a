// Package enums resolves rows of the enum_values table by their stable code.
//
// The codes the application branches on form a closed set declared here.
// The registry is loaded once at startup and refuses to start when any of
// those codes has no row, so a missing seed never surfaces mid-request.
package enums

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code is the stable identifier of an enum_values row.
type Code string

// Codes the application depends on.
const (
	DirectSOType    Code = "DIRECT_SO"
	FranchiseSOType Code = "FRANCHISE_SO"

	SOCreatedStatus   Code = "SALES_ORDER_CREATED"
	SOShippedStatus   Code = "SALES_ORDER_SHIPPED"
	SOInvalidStatus   Code = "SALES_ORDER_INVALID"
	SODeliveredStatus Code = "SALES_ORDER_DELIVERED"

	IncomingPendingStatus Code = "INCOMING_PENDING"
	SalesIncomeCategory   Code = "SALES_INCOME"

	ExpensePendingStatus    Code = "EXPENSE_PENDING"
	LogisticExpenseCategory Code = "LOGISTIC_EXPENSE"

	DirectShippingType     Code = "DIRECT_SHIPPING"
	ShippingCompleteStatus Code = "SHIPPING_COMPLETE"
)

// Type codes grouping the values above.
const (
	TypeSalesOrderType      = "SALES_ORDER_TYPE"
	TypeSalesOrderStatus    = "SALES_ORDER_STATUS"
	TypeIncomingStatus      = "INCOMING_STATUS"
	TypeIncomingCategory    = "INCOMING_CATEGORY"
	TypeExpenseStatus       = "EXPENSE_STATUS"
	TypeExpenseCategory     = "EXPENSE_CATEGORY"
	TypeShippingType        = "SHIPPING_TYPE"
	TypeShippingStatus      = "SHIPPING_STATUS"
	TypeCustomerLevel       = "CUSTOMER_LEVEL"
	TypeCustomerJoinChannel = "CUSTOMER_JOIN_CHANNEL"
)

var required = map[Code]string{
	DirectSOType:            TypeSalesOrderType,
	FranchiseSOType:         TypeSalesOrderType,
	SOCreatedStatus:         TypeSalesOrderStatus,
	SOShippedStatus:         TypeSalesOrderStatus,
	SOInvalidStatus:         TypeSalesOrderStatus,
	SODeliveredStatus:       TypeSalesOrderStatus,
	IncomingPendingStatus:   TypeIncomingStatus,
	SalesIncomeCategory:     TypeIncomingCategory,
	ExpensePendingStatus:    TypeExpenseStatus,
	LogisticExpenseCategory: TypeExpenseCategory,
	DirectShippingType:      TypeShippingType,
	ShippingCompleteStatus:  TypeShippingStatus,
}

var (
	// ErrUnknownCode is returned when a code has no registered row.
	ErrUnknownCode = errors.New("enums: unknown code")
	// ErrUnknownID is returned when an id has no registered row.
	ErrUnknownID = errors.New("enums: unknown id")
	// ErrMissingCodes is returned by NewRegistry when required rows are absent.
	ErrMissingCodes = errors.New("enums: required codes missing")
)

// Required lists the closed set of codes, sorted.
func Required() []Code {
	out := make([]Code, 0, len(required))
	for code := range required {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TypeOf returns the type code a required code belongs to.
func TypeOf(code Code) (string, bool) {
	t, ok := required[code]
	return t, ok
}

// Value is one enum_values row.
type Value struct {
	ID       int64
	TypeCode string
	Code     Code
	Display  string
}

// Is reports whether v carries the given code.
func (v Value) Is(code Code) bool {
	return v.Code == code
}

// Registry is an immutable index of enum_values by code and id.
type Registry struct {
	byCode map[Code]Value
	byID   map[int64]Value
}

// NewRegistry indexes values and verifies every required code is present
// under its expected type.
func NewRegistry(values []Value) (*Registry, error) {
	r := &Registry{
		byCode: make(map[Code]Value, len(values)),
		byID:   make(map[int64]Value, len(values)),
	}
	for _, v := range values {
		if _, dup := r.byCode[v.Code]; dup {
			return nil, fmt.Errorf("enums: duplicate code %s", v.Code)
		}
		r.byCode[v.Code] = v
		r.byID[v.ID] = v
	}

	var missing []string
	for _, code := range Required() {
		v, ok := r.byCode[code]
		if !ok {
			missing = append(missing, string(code))
			continue
		}
		if want := required[code]; v.TypeCode != want {
			missing = append(missing, fmt.Sprintf("%s (type %s, want %s)", code, v.TypeCode, want))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingCodes, strings.Join(missing, ", "))
	}
	return r, nil
}

// Get resolves a code.
func (r *Registry) Get(code Code) (Value, error) {
	v, ok := r.byCode[code]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownCode, code)
	}
	return v, nil
}

// ByID resolves an id.
func (r *Registry) ByID(id int64) (Value, error) {
	v, ok := r.byID[id]
	if !ok {
		return Value{}, fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	return v, nil
}

// OfType returns every value of a type code, ordered by display.
func (r *Registry) OfType(typeCode string) []Value {
	var out []Value
	for _, v := range r.byCode {
		if v.TypeCode == typeCode {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Display < out[j].Display })
	return out
}
