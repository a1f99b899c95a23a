package orders

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/psi-backoffice/psi/internal/platform/httpx"
	"github.com/psi-backoffice/psi/internal/rbac"
	"github.com/psi-backoffice/psi/internal/shared"
	"github.com/psi-backoffice/psi/internal/view"
)

const dateLayout = "2006-01-02"

type Handler struct {
	logger    *slog.Logger
	service   *Service
	customers CustomerDirectory
	products  ProductCatalog
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

func NewHandler(
	logger *slog.Logger,
	service *Service,
	customers CustomerDirectory,
	products ProductCatalog,
	templates *view.Engine,
	csrf *shared.CSRFManager,
	rbac rbac.Middleware,
) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		customers: customers,
		products:  products,
		templates: templates,
		csrf:      csrf,
		rbac:      rbac,
	}
}

type formErrors map[string]string

// orderListItem pairs a row with its pre-rendered actions.
type orderListItem struct {
	Row     SalesOrderRow
	Actions template.HTML
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, err := parseListRequest(r)
	if err != nil {
		h.render(w, r, "pages/sales/orders_list.html", map[string]any{
			"Errors": formErrors{"general": err.Error()},
		}, http.StatusBadRequest)
		return
	}

	rows, pg, err := h.service.List(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("list sales orders failed", slog.Any("error", err))
		h.render(w, r, "pages/sales/orders_list.html", map[string]any{
			"Errors": formErrors{"general": userMessage(err)},
		}, httpx.StatusFor(toHTTPError(err)))
		return
	}

	items := make([]orderListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, orderListItem{Row: row, Actions: RenderRowActions(h.service.RowActions(), row.State())})
	}
	h.render(w, r, "pages/sales/orders_list.html", map[string]any{
		"Orders":     items,
		"Pagination": pg,
		"Filters":    r.URL.Query(),
		"Errors":     formErrors{},
	}, http.StatusOK)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	order, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "Sales order not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get sales order failed", slog.Any("error", err), slog.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/sales/order_detail.html", map[string]any{
		"Order":   order,
		"Actions": RenderRowActions(h.service.RowActions(), order.State()),
	}, http.StatusOK)
}

func (h *Handler) ShowForm(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	values := SaveSalesOrderRequest{
		OrderDate:      time.Now().Truncate(24 * time.Hour),
		LogisticAmount: decimal.NewNullDecimal(decimal.Zero),
	}
	h.renderForm(w, r, actor, values, nil, formErrors{}, http.StatusOK)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, nil)
}

func (h *Handler) ShowEditForm(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	order, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		http.Error(w, "Sales order not found", http.StatusNotFound)
		return
	}
	h.renderForm(w, r, actor, RequestFromOrder(order), order, formErrors{}, http.StatusOK)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	h.save(w, r, &id)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, id *int64) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	req, errs := parseSaveRequest(r)
	req.ID = id
	if len(errs) > 0 {
		h.renderForm(w, r, actor, req, nil, errs, http.StatusBadRequest)
		return
	}

	order, err := h.service.Save(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("save sales order failed", slog.Any("error", err))
		if errors.Is(err, ErrNotFound) && id != nil {
			http.Error(w, "Sales order not found", http.StatusNotFound)
			return
		}
		h.renderForm(w, r, actor, req, nil, formErrors{"general": userMessage(err)}, http.StatusBadRequest)
		return
	}

	msg := "Sales order updated successfully"
	if id == nil {
		msg = "Sales order created successfully"
	}
	h.redirectWithFlash(w, r, "/sales/orders/"+strconv.FormatInt(order.ID, 10), "success", msg)
}

// UpdateRemark serves the inline remark editor of the list.
func (h *Handler) UpdateRemark(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	if err := h.service.UpdateRemark(r.Context(), actor, id, r.PostFormValue("remark")); err != nil {
		h.logger.Warn("update remark failed", slog.Any("error", err), slog.Int64("id", id))
		h.redirectWithFlash(w, r, "/sales/orders", "error", userMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/sales/orders", "success", "Remark updated")
}

// UpdateStatus is called by the mark shipped / mark invalid row actions.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid id", httpx.ErrValidation))
		return
	}
	statusID, err := strconv.ParseInt(r.PostFormValue("status_id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid status_id", httpx.ErrValidation))
		return
	}

	order, err := h.service.MarkStatus(r.Context(), actor, id, statusID)
	if err != nil {
		if httpx.StatusFor(toHTTPError(err)) == http.StatusInternalServerError {
			h.logger.Error("mark sales order status failed", slog.Any("error", err), slog.Int64("id", id))
		}
		httpx.RespondError(w, toHTTPError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":     order.ID,
		"status": string(order.Status.Code),
	})
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	case errors.Is(err, ErrActionNotAllowed):
		return fmt.Errorf("%w: %v", httpx.ErrConflict, err)
	case errors.Is(err, ErrForeignReference):
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	case errors.Is(err, ErrActorRequired):
		return fmt.Errorf("%w: %v", httpx.ErrUnauthorized, err)
	}
	return err
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrForeignReference):
		return "The selected customer or product is not available in your organization."
	case errors.Is(err, ErrNotFound):
		return "Sales order not found."
	case errors.Is(err, ErrActionNotAllowed):
		return "This action is not available for the sales order."
	}
	return shared.UserSafeMessage(err)
}

func parseSaveRequest(r *http.Request) (SaveSalesOrderRequest, formErrors) {
	errs := formErrors{}
	req := SaveSalesOrderRequest{Remark: r.PostFormValue("remark")}

	if v := strings.TrimSpace(r.PostFormValue("customer_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs["customer_id"] = "Invalid customer"
		} else {
			req.CustomerID = &id
		}
	}
	if v := strings.TrimSpace(r.PostFormValue("logistic_amount")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			errs["logistic_amount"] = "Invalid amount"
		} else {
			req.LogisticAmount = decimal.NewNullDecimal(d)
		}
	}
	if t, err := time.Parse(dateLayout, r.PostFormValue("order_date")); err != nil {
		errs["order_date"] = "Order date is required"
	} else {
		req.OrderDate = t
	}

	productIDs := r.PostForm["product_id"]
	lineIDs := r.PostForm["line_id"]
	prices := r.PostForm["unit_price"]
	quantities := r.PostForm["quantity"]
	remarks := r.PostForm["line_remark"]
	at := func(values []string, i int) string {
		if i < len(values) {
			return strings.TrimSpace(values[i])
		}
		return ""
	}
	for i := range productIDs {
		// the blank row kept at the end of the form for adding lines
		if at(productIDs, i) == "" && at(prices, i) == "" && at(quantities, i) == "" && at(lineIDs, i) == "" {
			continue
		}
		var line SaveSalesOrderLineRequest
		key := fmt.Sprintf("lines[%d]", len(req.Lines))
		pid, err := strconv.ParseInt(at(productIDs, i), 10, 64)
		if err != nil {
			errs[key] = "Select a product"
		}
		line.ProductID = pid
		if v := at(lineIDs, i); v != "" {
			if lid, err := strconv.ParseInt(v, 10, 64); err != nil {
				errs[key] = "Invalid line"
			} else {
				line.ID = &lid
			}
		}
		if line.UnitPrice, err = decimal.NewFromString(at(prices, i)); err != nil {
			errs[key] = "Invalid unit price"
		}
		if line.Quantity, err = decimal.NewFromString(at(quantities, i)); err != nil {
			errs[key] = "Invalid quantity"
		}
		line.Remark = at(remarks, i)
		req.Lines = append(req.Lines, line)
	}
	return req, errs
}

func parseListRequest(r *http.Request) (ListSalesOrdersRequest, error) {
	q := r.URL.Query()
	req := ListSalesOrdersRequest{
		Search:   q.Get("search"),
		SortBy:   q.Get("sort"),
		SortDesc: q.Get("desc") == "1",
	}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if v := q.Get("date_from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return req, fmt.Errorf("invalid date_from")
		}
		req.DateFrom = &t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return req, fmt.Errorf("invalid date_to")
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		req.DateTo = &end
	}
	for name, dst := range map[string]**AmountFilter{
		"logistic_amount": &req.LogisticAmount,
		"actual_amount":   &req.ActualAmount,
		"original_amount": &req.OriginalAmount,
		"discount_amount": &req.DiscountAmount,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return req, fmt.Errorf("invalid %s", name)
		}
		op := q.Get(name + "_op")
		if op == "" {
			op = "eq"
		}
		*dst = &AmountFilter{Op: op, Value: d}
	}
	return req, nil
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, actor shared.Actor, values SaveSalesOrderRequest, order *SalesOrder, errs formErrors, status int) {
	form, err := BuildForm(r.Context(), h.customers, h.products, actor, values)
	if err != nil {
		h.logger.Error("build sales order form failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	form.Order = order
	for k, v := range errs {
		form.Errors[k] = v
	}
	h.render(w, r, "pages/sales/order_form.html", map[string]any{
		"Form":   form,
		"Errors": form.Errors,
	}, status)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
	}
	return actor, ok
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}

	viewData := view.TemplateData{
		Title:       "Sales Orders",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, tmpl, viewData); err != nil {
		h.logger.Error("template render failed", slog.Any("error", err), slog.String("template", tmpl))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, url, flashType, message string) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: flashType, Message: message})
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
