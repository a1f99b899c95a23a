package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/psi-backoffice/psi/internal/enums"
	"github.com/psi-backoffice/psi/internal/finance"
	"github.com/psi-backoffice/psi/internal/masterdata/products"
	"github.com/psi-backoffice/psi/internal/sales/customers"
	"github.com/psi-backoffice/psi/internal/shared"
	"github.com/psi-backoffice/psi/internal/shipping"
)

var (
	// ErrForeignReference flags a customer or product outside the actor's organization.
	ErrForeignReference = errors.New("reference outside organization")
	// ErrActionNotAllowed flags a status change the order does not qualify for.
	ErrActionNotAllowed = errors.New("action not allowed for order")
	// ErrActorRequired is returned when a call carries no authenticated actor.
	ErrActorRequired = errors.New("authenticated actor required")
)

// CustomerDirectory is the organization-scoped view of customers.
type CustomerDirectory interface {
	ListForOrganization(ctx context.Context, orgID int64) ([]customers.Customer, error)
	GetForOrganization(ctx context.Context, orgID, id int64) (*customers.Customer, error)
}

// ProductCatalog is the organization-scoped view of products.
type ProductCatalog interface {
	ListForOrganization(ctx context.Context, orgID int64) ([]products.Product, error)
	FindForOrganization(ctx context.Context, orgID int64, ids []int64) (map[int64]products.Product, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CascadeObserver counts save cascades by outcome.
type CascadeObserver interface {
	ObserveCascade(result string)
}

type ServiceDeps struct {
	Repo      Repository
	Enums     *enums.Registry
	Customers CustomerDirectory
	Products  ProductCatalog
	Audit     AuditRecorder
	Metrics   CascadeObserver
	Logger    *slog.Logger
}

type Service struct {
	repo       Repository
	enums      *enums.Registry
	customers  CustomerDirectory
	products   ProductCatalog
	audit      AuditRecorder
	metrics    CascadeObserver
	logger     *slog.Logger
	validate   *validator.Validate
	rowActions []RowAction
}

func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Repo == nil || deps.Enums == nil || deps.Customers == nil || deps.Products == nil {
		return nil, errors.New("orders: repository, enums, customers and products are required")
	}
	actions, err := DefaultRowActions(deps.Enums)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       deps.Repo,
		enums:      deps.Enums,
		customers:  deps.Customers,
		products:   deps.Products,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		logger:     logger,
		validate:   newValidator(),
		rowActions: actions,
	}, nil
}

// RowActions returns the per-row affordances of the list screen.
func (s *Service) RowActions() []RowAction { return s.rowActions }

// saveRun carries the state of one Save through its steps.
type saveRun struct {
	actor    shared.Actor
	req      SaveSalesOrderRequest
	products map[int64]products.Product
	order    *SalesOrder
	created  bool
	incoming *finance.Incoming
	expense  *finance.Expense
	shipping *shipping.Shipping
}

type saveStep struct {
	name string
	fn   func(ctx context.Context, repo Repository, run *saveRun) error
}

// saveSteps run in order inside one transaction.
func (s *Service) saveSteps() []saveStep {
	return []saveStep{
		{"load", s.stepLoad},
		{"apply-defaults", s.stepApplyDefaults},
		{"assign", s.stepAssign},
		{"persist-order", s.stepPersistOrder},
		{"derive-dependents", s.stepDerive},
		{"persist-dependents", s.stepPersistDependents},
	}
}

// Save validates the request, then creates or updates the order together
// with its Incoming, Expense and Shipping in a single transaction.
func (s *Service) Save(ctx context.Context, actor shared.Actor, req SaveSalesOrderRequest) (*SalesOrder, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	prods, err := s.checkOwnership(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	run := &saveRun{actor: actor, req: req, products: prods}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		for _, step := range s.saveSteps() {
			if err := step.fn(ctx, repo, run); err != nil {
				return fmt.Errorf("%s: %w", step.name, err)
			}
		}
		return nil
	})
	if err != nil {
		s.observe("failure")
		return nil, fmt.Errorf("save sales order: %w", err)
	}
	s.observe("success")

	action := "sales_order.update"
	if run.created {
		action = "sales_order.create"
	}
	meta := map[string]any{"run_id": uuid.NewString(), "lines": len(run.order.Lines)}
	if run.incoming != nil {
		meta["incoming_id"] = run.incoming.ID
	}
	if run.expense != nil {
		meta["expense_id"] = run.expense.ID
	}
	if run.shipping != nil {
		meta["shipping_id"] = run.shipping.ID
	}
	s.record(ctx, actor, action, run.order.ID, meta)
	return run.order, nil
}

func (s *Service) checkOwnership(ctx context.Context, actor shared.Actor, req SaveSalesOrderRequest) (map[int64]products.Product, error) {
	if req.CustomerID != nil {
		if _, err := s.customers.GetForOrganization(ctx, actor.OrganizationID, *req.CustomerID); err != nil {
			if errors.Is(err, customers.ErrNotFound) {
				return nil, fmt.Errorf("%w: customer %d", ErrForeignReference, *req.CustomerID)
			}
			return nil, err
		}
	}
	ids := make([]int64, 0, len(req.Lines))
	for _, l := range req.Lines {
		ids = append(ids, l.ProductID)
	}
	found, err := s.products.FindForOrganization(ctx, actor.OrganizationID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, fmt.Errorf("%w: product %d", ErrForeignReference, id)
		}
	}
	return found, nil
}

func (s *Service) stepLoad(ctx context.Context, repo Repository, run *saveRun) error {
	if run.req.ID == nil {
		run.order = &SalesOrder{}
		run.created = true
		return nil
	}
	o, err := repo.Get(ctx, run.actor.OrganizationID, *run.req.ID)
	if err != nil {
		return err
	}
	run.order = o
	return nil
}

func (s *Service) stepApplyDefaults(_ context.Context, _ Repository, run *saveRun) error {
	if !run.created {
		return nil
	}
	typ, err := s.enums.Get(enums.DirectSOType)
	if err != nil {
		return err
	}
	status, err := s.enums.Get(enums.SODeliveredStatus)
	if err != nil {
		return err
	}
	run.order.Type = typ
	run.order.Status = status
	run.order.OrganizationID = run.actor.OrganizationID
	return nil
}

func (s *Service) stepAssign(_ context.Context, _ Repository, run *saveRun) error {
	o, req := run.order, run.req
	o.CustomerID = req.CustomerID
	o.LogisticAmount = req.LogisticAmount
	o.OrderDate = req.OrderDate
	o.Remark = strings.TrimSpace(req.Remark)

	existing := make(map[int64]SalesOrderLine, len(o.Lines))
	for _, l := range o.Lines {
		existing[l.ID] = l
	}
	seen := make(map[int64]struct{}, len(req.Lines))
	lines := make([]SalesOrderLine, 0, len(req.Lines))
	for _, lr := range req.Lines {
		var line SalesOrderLine
		if lr.ID != nil {
			prev, ok := existing[*lr.ID]
			if !ok {
				return fmt.Errorf("%w: line %d", ErrNotFound, *lr.ID)
			}
			if _, dup := seen[*lr.ID]; dup {
				return fmt.Errorf("%w: line %d submitted twice", ErrNotFound, *lr.ID)
			}
			seen[*lr.ID] = struct{}{}
			line = prev
		}
		p := run.products[lr.ProductID]
		line.ProductID = p.ID
		line.ProductName = p.Name
		line.RetailPrice = p.RetailPrice
		line.UnitPrice = lr.UnitPrice
		line.Quantity = lr.Quantity
		line.Remark = strings.TrimSpace(lr.Remark)
		lines = append(lines, line)
	}
	o.Lines = lines
	o.RecomputeTotals()
	return nil
}

func (s *Service) stepPersistOrder(ctx context.Context, repo Repository, run *saveRun) error {
	return repo.SaveOrder(ctx, run.order)
}

func (s *Service) stepDerive(_ context.Context, _ Repository, run *saveRun) error {
	var err error
	if run.incoming, err = DeriveIncoming(run.order, s.enums); err != nil {
		return err
	}
	if run.expense, err = DeriveExpense(run.order, s.enums); err != nil {
		return err
	}
	if run.shipping, err = DeriveShipping(run.order, s.enums); err != nil {
		return err
	}
	return nil
}

func (s *Service) stepPersistDependents(ctx context.Context, repo Repository, run *saveRun) error {
	if run.incoming != nil {
		if err := repo.SaveIncoming(ctx, run.incoming); err != nil {
			return err
		}
		run.order.Incoming = run.incoming
	}
	if run.expense != nil {
		if err := repo.SaveExpense(ctx, run.expense); err != nil {
			return err
		}
		run.order.Expense = run.expense
	}
	if run.shipping != nil {
		if err := repo.SaveShipping(ctx, run.shipping); err != nil {
			return err
		}
		run.order.Shipping = run.shipping
	}
	return nil
}

// MarkStatus moves a pending franchise order to shipped or invalid. The
// dependents are left untouched.
func (s *Service) MarkStatus(ctx context.Context, actor shared.Actor, id, statusID int64) (*SalesOrder, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	target, err := s.enums.ByID(statusID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown status %d", ErrActionNotAllowed, statusID)
	}

	var order *SalesOrder
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		o, err := repo.Get(ctx, actor.OrganizationID, id)
		if err != nil {
			return err
		}
		var allowed bool
		switch target.Code {
		case enums.SOShippedStatus:
			allowed = CanMarkShipped(o.State())
		case enums.SOInvalidStatus:
			allowed = CanMarkInvalid(o.State())
		}
		if !allowed {
			return fmt.Errorf("%w: %s to %s", ErrActionNotAllowed, o.Status.Code, target.Code)
		}
		if err := repo.UpdateStatus(ctx, actor.OrganizationID, id, target.ID); err != nil {
			return err
		}
		o.Status = target
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "sales_order.status", id, map[string]any{"status": string(target.Code)})
	return order, nil
}

// UpdateRemark edits the remark inline from the list screen.
func (s *Service) UpdateRemark(ctx context.Context, actor shared.Actor, id int64, remark string) error {
	if !actor.Valid() {
		return ErrActorRequired
	}
	remark = strings.TrimSpace(remark)
	if err := s.validate.Var(remark, "max=2000"); err != nil {
		return err
	}
	if err := s.repo.UpdateRemark(ctx, actor.OrganizationID, id, remark); err != nil {
		return err
	}
	s.record(ctx, actor, "sales_order.remark", id, nil)
	return nil
}

func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (*SalesOrder, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}
	return s.repo.Get(ctx, actor.OrganizationID, id)
}

// List returns one page of the actor's orders.
func (s *Service) List(ctx context.Context, actor shared.Actor, req ListSalesOrdersRequest) ([]SalesOrderRow, shared.Pagination, error) {
	if !actor.Valid() {
		return nil, shared.Pagination{}, ErrActorRequired
	}
	req.OrganizationID = actor.OrganizationID
	pg := shared.NewPagination(req.Page, req.PerPage, 0)
	req.Page, req.PerPage = pg.Page, pg.PerPage
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.Pagination{}, err
	}
	rows, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(req.Page, req.PerPage, total), nil
}

// ReconcileResult summarises one reconciliation pass.
type ReconcileResult struct {
	Scanned  int
	Repaired int
	Failed   int
}

// ReconcileDependents re-runs derivation for orders missing a dependent.
// Each order is repaired in its own transaction; one failure does not stop
// the batch.
func (s *Service) ReconcileDependents(ctx context.Context, limit int) (ReconcileResult, error) {
	var res ReconcileResult
	refs, err := s.repo.ListMissingDependents(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("list orders missing dependents: %w", err)
	}
	res.Scanned = len(refs)

	var errs []error
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			o, err := repo.Get(ctx, ref.OrganizationID, ref.ID)
			if err != nil {
				return err
			}
			run := &saveRun{order: o}
			if err := s.stepDerive(ctx, repo, run); err != nil {
				return err
			}
			return s.stepPersistDependents(ctx, repo, run)
		})
		if err != nil {
			res.Failed++
			s.observe("failure")
			s.logger.Error("reconcile sales order", slog.Int64("order_id", ref.ID), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("order %d: %w", ref.ID, err))
			continue
		}
		res.Repaired++
		s.observe("reconciled")
	}
	return res, errors.Join(errs...)
}

func (s *Service) observe(result string) {
	if s.metrics != nil {
		s.metrics.ObserveCascade(result)
	}
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:        actor.UserID,
		OrganizationID: actor.OrganizationID,
		Action:         action,
		Entity:         "sales_order",
		EntityID:       strconv.FormatInt(id, 10),
		Meta:           meta,
	})
	if err != nil {
		s.logger.Warn("audit sales order", slog.String("action", action), slog.Any("error", err))
	}
}
