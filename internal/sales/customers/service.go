package customers

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Service exposes the organization-scoped customer directory.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// ListForOrganization returns every customer of the organization.
func (s *Service) ListForOrganization(ctx context.Context, orgID int64) ([]Customer, error) {
	out, _, err := s.repo.List(ctx, ListCustomersRequest{OrganizationID: orgID})
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return out, nil
}

// GetForOrganization returns the customer only when it belongs to orgID.
func (s *Service) GetForOrganization(ctx context.Context, orgID, id int64) (*Customer, error) {
	return s.repo.Get(ctx, orgID, id)
}

func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, req)
}
