package customers

// ListCustomersRequest filters the customer directory of one organization.
type ListCustomersRequest struct {
	OrganizationID int64  `validate:"required,gt=0"`
	Search         string `validate:"max=100"`
	Limit          int    `validate:"gte=0,lte=1000"`
	Offset         int    `validate:"gte=0"`
}
