package enums

// Fixture returns one row per required code with stable ids starting at 1.
// Seed scripts and tests in other packages share it.
func Fixture() []Value {
	displays := map[Code]string{
		DirectSOType:            "Direct Sales",
		FranchiseSOType:         "Franchise Sales",
		SOCreatedStatus:         "Created",
		SOShippedStatus:         "Shipped",
		SOInvalidStatus:         "Invalid",
		SODeliveredStatus:       "Delivered",
		IncomingPendingStatus:   "Pending",
		SalesIncomeCategory:     "Sales Income",
		ExpensePendingStatus:    "Pending",
		LogisticExpenseCategory: "Logistic Expense",
		DirectShippingType:      "Direct Shipping",
		ShippingCompleteStatus:  "Complete",
	}
	codes := Required()
	out := make([]Value, 0, len(codes))
	for i, code := range codes {
		out = append(out, Value{
			ID:       int64(i + 1),
			TypeCode: required[code],
			Code:     code,
			Display:  displays[code],
		})
	}
	return out
}

// MustFixtureRegistry builds a registry from Fixture and panics on failure.
func MustFixtureRegistry() *Registry {
	r, err := NewRegistry(Fixture())
	if err != nil {
		panic(err)
	}
	return r
}
