package products

import (
	"context"
	"errors"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListForOrganization returns the catalogue of one organization.
func (s *Service) ListForOrganization(ctx context.Context, orgID int64) ([]Product, error) {
	if orgID <= 0 {
		return nil, errors.New("invalid organization ID")
	}
	out, err := s.repo.List(ctx, ListFilters{OrganizationID: orgID})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, orgID, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, errors.New("invalid product ID")
	}
	return s.repo.Get(ctx, orgID, id)
}

// FindForOrganization resolves ids to products of orgID. Ids owned by another
// organization or unknown are absent from the result.
func (s *Service) FindForOrganization(ctx context.Context, orgID int64, ids []int64) (map[int64]Product, error) {
	out := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	found, err := s.repo.FindByIDs(ctx, orgID, unique)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	for _, p := range found {
		out[p.ID] = p
	}
	return out, nil
}
