package orders

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/psi-backoffice/psi/internal/enums"
	"github.com/psi-backoffice/psi/internal/finance"
	"github.com/psi-backoffice/psi/internal/masterdata/products"
	"github.com/psi-backoffice/psi/internal/sales/customers"
	"github.com/psi-backoffice/psi/internal/shared"
	"github.com/psi-backoffice/psi/internal/shipping"
)

type memState struct {
	nextID    int64
	orders    map[int64]SalesOrder
	incomings map[int64]finance.Incoming
	expenses  map[int64]finance.Expense
	shippings map[int64]shipping.Shipping
}

func (s *memState) clone() *memState {
	c := &memState{
		nextID:    s.nextID,
		orders:    make(map[int64]SalesOrder, len(s.orders)),
		incomings: make(map[int64]finance.Incoming, len(s.incomings)),
		expenses:  make(map[int64]finance.Expense, len(s.expenses)),
		shippings: make(map[int64]shipping.Shipping, len(s.shippings)),
	}
	for k, v := range s.orders {
		v.Lines = append([]SalesOrderLine(nil), v.Lines...)
		c.orders[k] = v
	}
	for k, v := range s.incomings {
		c.incomings[k] = v
	}
	for k, v := range s.expenses {
		c.expenses[k] = v
	}
	for k, v := range s.shippings {
		v.Lines = append([]shipping.Line(nil), v.Lines...)
		c.shippings[k] = v
	}
	return c
}

// memoryRepo is an in-memory Repository; WithTx restores a snapshot when fn fails.
type memoryRepo struct {
	mu             sync.Mutex
	state          *memState
	failShipping   error
	incomingWrites int
	expenseWrites  int
	shippingWrites int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: (&memState{}).clone()}
}

func (m *memoryRepo) id() int64 {
	m.state.nextID++
	return m.state.nextID
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()
	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryRepo) Get(_ context.Context, orgID, id int64) (*SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok || o.OrganizationID != orgID {
		return nil, ErrNotFound
	}
	o.Lines = append([]SalesOrderLine(nil), o.Lines...)
	if in, ok := m.state.incomings[id]; ok {
		o.Incoming = &in
	}
	if ex, ok := m.state.expenses[id]; ok {
		o.Expense = &ex
	}
	if sh, ok := m.state.shippings[id]; ok {
		sh.Lines = append([]shipping.Line(nil), sh.Lines...)
		o.Shipping = &sh
	}
	return &o, nil
}

func (m *memoryRepo) List(_ context.Context, req ListSalesOrdersRequest) ([]SalesOrderRow, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []SalesOrderRow
	for _, o := range m.state.orders {
		if o.OrganizationID != req.OrganizationID {
			continue
		}
		row := SalesOrderRow{
			ID: o.ID, OrganizationID: o.OrganizationID, Type: o.Type, Status: o.Status,
			CustomerID: o.CustomerID, LogisticAmount: o.LogisticAmount, ActualAmount: o.ActualAmount,
			OriginalAmount: o.OriginalAmount, DiscountAmount: o.DiscountAmount, OrderDate: o.OrderDate, Remark: o.Remark,
		}
		if in, ok := m.state.incomings[o.ID]; ok {
			row.IncomingID = &in.ID
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	return rows, len(rows), nil
}

func (m *memoryRepo) ListMissingDependents(_ context.Context, limit int) ([]OrderRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OrderRef
	for id, o := range m.state.orders {
		_, hasIn := m.state.incomings[id]
		_, hasEx := m.state.expenses[id]
		_, hasSh := m.state.shippings[id]
		missing := !hasIn || (o.LogisticAmount.Valid && !hasEx) || (o.Type.Is(enums.DirectSOType) && !hasSh)
		if missing {
			out = append(out, OrderRef{ID: id, OrganizationID: o.OrganizationID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) SaveOrder(_ context.Context, o *SalesOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == 0 {
		o.ID = m.id()
	} else if _, ok := m.state.orders[o.ID]; !ok {
		return ErrNotFound
	}
	for i := range o.Lines {
		o.Lines[i].SalesOrderID = o.ID
		if o.Lines[i].ID == 0 {
			o.Lines[i].ID = m.id()
		}
	}
	stored := *o
	stored.Lines = append([]SalesOrderLine(nil), o.Lines...)
	stored.Incoming, stored.Expense, stored.Shipping = nil, nil, nil
	m.state.orders[o.ID] = stored
	return nil
}

func (m *memoryRepo) UpdateRemark(_ context.Context, orgID, id int64, remark string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok || o.OrganizationID != orgID {
		return ErrNotFound
	}
	o.Remark = remark
	m.state.orders[id] = o
	return nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, orgID, id, statusID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok || o.OrganizationID != orgID {
		return ErrNotFound
	}
	o.Status.ID = statusID
	m.state.orders[id] = o
	return nil
}

func (m *memoryRepo) SaveIncoming(_ context.Context, in *finance.Incoming) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in.ID == 0 {
		if _, dup := m.state.incomings[in.SalesOrderID]; dup {
			return finance.ErrDuplicate
		}
		in.ID = m.id()
	}
	m.incomingWrites++
	m.state.incomings[in.SalesOrderID] = *in
	return nil
}

func (m *memoryRepo) SaveExpense(_ context.Context, ex *finance.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ex.ID == 0 {
		if _, dup := m.state.expenses[ex.SalesOrderID]; dup {
			return finance.ErrDuplicate
		}
		ex.ID = m.id()
	}
	m.expenseWrites++
	m.state.expenses[ex.SalesOrderID] = *ex
	return nil
}

func (m *memoryRepo) SaveShipping(_ context.Context, sh *shipping.Shipping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failShipping != nil {
		return m.failShipping
	}
	if sh.ID == 0 {
		if _, dup := m.state.shippings[sh.SalesOrderID]; dup {
			return shipping.ErrDuplicate
		}
		sh.ID = m.id()
	}
	for i := range sh.Lines {
		sh.Lines[i].ShippingID = sh.ID
		if sh.Lines[i].ID == 0 {
			sh.Lines[i].ID = m.id()
		}
	}
	m.shippingWrites++
	stored := *sh
	stored.Lines = append([]shipping.Line(nil), sh.Lines...)
	m.state.shippings[sh.SalesOrderID] = stored
	return nil
}

// seedOrder stores an order directly, bypassing Save.
func (m *memoryRepo) seedOrder(o SalesOrder) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = m.id()
	for i := range o.Lines {
		o.Lines[i].ID = m.id()
		o.Lines[i].SalesOrderID = o.ID
	}
	m.state.orders[o.ID] = o
	return o.ID
}

type stubCustomers struct {
	rows []customers.Customer
	err  error
}

func (s stubCustomers) ListForOrganization(_ context.Context, orgID int64) ([]customers.Customer, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []customers.Customer
	for _, c := range s.rows {
		if c.OrganizationID == orgID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s stubCustomers) GetForOrganization(_ context.Context, orgID, id int64) (*customers.Customer, error) {
	for _, c := range s.rows {
		if c.ID == id && c.OrganizationID == orgID {
			return &c, nil
		}
	}
	return nil, customers.ErrNotFound
}

type stubProducts struct {
	rows []products.Product
}

func (s stubProducts) ListForOrganization(_ context.Context, orgID int64) ([]products.Product, error) {
	var out []products.Product
	for _, p := range s.rows {
		if p.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s stubProducts) FindForOrganization(_ context.Context, orgID int64, ids []int64) (map[int64]products.Product, error) {
	out := map[int64]products.Product{}
	for _, id := range ids {
		for _, p := range s.rows {
			if p.ID == id && p.OrganizationID == orgID {
				out[id] = p
			}
		}
	}
	return out, nil
}

type recordingAudit struct {
	logs []shared.AuditLog
	err  error
}

func (r *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	r.logs = append(r.logs, log)
	return r.err
}

type countingObserver map[string]int

func (c countingObserver) ObserveCascade(result string) { c[result]++ }

var errShippingDown = errors.New("shipping store unavailable")
