package products

// ListFilters narrows the product catalogue of one organization.
type ListFilters struct {
	OrganizationID int64
	Search         string
	ActiveOnly     bool
}
