package customers

import (
	"strings"
	"time"
)

// Customer is a buyer owned by one organization.
type Customer struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	MobilePhone    string    `json:"mobile_phone"`
	Email          string    `json:"email"`
	Address        string    `json:"address"`
	LevelID        *int64    `json:"level_id,omitempty"`
	JoinChannelID  *int64    `json:"join_channel_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Name joins first and last name for option labels.
func (c Customer) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
