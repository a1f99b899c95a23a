package customers

import (
	"github.com/go-chi/chi/v5"

	"github.com/psi-backoffice/psi/internal/shared"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSalesOrderView))
		r.Get("/customers", h.List)
	})
}
