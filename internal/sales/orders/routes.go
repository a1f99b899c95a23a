package orders

import (
	"github.com/go-chi/chi/v5"

	"github.com/psi-backoffice/psi/internal/shared"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSalesOrderView))
		r.Get("/orders", h.List)
		r.Get("/orders/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSalesOrderCreate))
		r.Get("/orders/new", h.ShowForm)
		r.Post("/orders", h.Create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSalesOrderEdit))
		r.Get("/orders/{id}/edit", h.ShowEditForm)
		r.Post("/orders/{id}/edit", h.Update)
		r.Post("/orders/{id}/remark", h.UpdateRemark)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSalesOrderStatus))
		r.Post("/orders/{id}/status", h.UpdateStatus)
	})
}
