package products

import "github.com/shopspring/decimal"

// Product is an item an organization sells. RetailPrice is the list price
// every sales order line is compared against.
type Product struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	RetailPrice    decimal.Decimal `json:"retail_price"`
	IsActive       bool            `json:"is_active"`
}

// Label is the option text shown in selectors.
func (p Product) Label() string {
	if p.Code == "" {
		return p.Name
	}
	return p.Code + " - " + p.Name
}
