// Package sales mounts the sales back-office screens under /sales.
package sales

import (
	"github.com/go-chi/chi/v5"

	"github.com/psi-backoffice/psi/internal/sales/customers"
	"github.com/psi-backoffice/psi/internal/sales/orders"
)

// Handler groups the customer and order handlers.
type Handler struct {
	Customers *customers.Handler
	Orders    *orders.Handler
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	if h.Customers != nil {
		h.Customers.MountRoutes(r)
	}
	if h.Orders != nil {
		h.Orders.MountRoutes(r)
	}
}
