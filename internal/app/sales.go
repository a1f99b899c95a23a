package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/psi-backoffice/psi/internal/enums"
	"github.com/psi-backoffice/psi/internal/masterdata/products"
	"github.com/psi-backoffice/psi/internal/sales/customers"
	"github.com/psi-backoffice/psi/internal/sales/orders"
	"github.com/psi-backoffice/psi/internal/shared"
)

// SalesServices bundles the services behind the sales screens and the
// reconciliation job.
type SalesServices struct {
	Enums     *enums.Registry
	Customers *customers.Service
	Products  *products.Service
	Orders    *orders.Service
}

// NewSalesServices loads the enum registry and wires the sales services
// against the pool. It fails when a required enum value is missing.
func NewSalesServices(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, observer orders.CascadeObserver) (*SalesServices, error) {
	registry, err := enums.Load(ctx, enums.NewRepository(pool))
	if err != nil {
		return nil, fmt.Errorf("load enum values: %w", err)
	}
	customerService := customers.NewService(customers.NewRepository(pool))
	productService := products.NewService(products.NewRepository(pool))
	orderService, err := orders.NewService(orders.ServiceDeps{
		Repo:      orders.NewRepository(pool),
		Enums:     registry,
		Customers: customerService,
		Products:  productService,
		Audit:     shared.NewAuditLogger(pool),
		Metrics:   observer,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init order service: %w", err)
	}
	return &SalesServices{
		Enums:     registry,
		Customers: customerService,
		Products:  productService,
		Orders:    orderService,
	}, nil
}
