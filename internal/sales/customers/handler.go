package customers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/psi-backoffice/psi/internal/rbac"
	"github.com/psi-backoffice/psi/internal/shared"
	"github.com/psi-backoffice/psi/internal/view"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

func NewHandler(
	logger *slog.Logger,
	service *Service,
	templates *view.Engine,
	csrf *shared.CSRFManager,
	rbac rbac.Middleware,
) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		rbac:      rbac,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	search := q.Get("search")
	pg := shared.NewPagination(page, shared.DefaultPerPage, 0)

	customers, total, err := h.service.List(r.Context(), ListCustomersRequest{
		OrganizationID: actor.OrganizationID,
		Search:         search,
		Limit:          pg.PerPage,
		Offset:         pg.Offset(),
	})
	if err != nil {
		h.logger.Error("list customers failed", slog.Any("error", err))
		http.Error(w, "Failed to load customers", http.StatusInternalServerError)
		return
	}

	h.render(w, r, "pages/sales/customers_list.html", map[string]any{
		"Customers":  customers,
		"Pagination": shared.NewPagination(pg.Page, pg.PerPage, total),
		"Search":     search,
		"Filters":    q,
	}, http.StatusOK)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)

	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, tmpl, view.TemplateData{
		Title:       "Customers",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}); err != nil {
		h.logger.Error("template render failed", slog.Any("error", err), slog.String("template", tmpl))
	}
}
