package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psi-backoffice/psi/internal/enums"
	"github.com/psi-backoffice/psi/internal/masterdata/products"
	"github.com/psi-backoffice/psi/internal/sales/customers"
	"github.com/psi-backoffice/psi/internal/shared"
)

var (
	actorOrg1 = shared.Actor{UserID: 1, OrganizationID: 1}
	actorOrg2 = shared.Actor{UserID: 2, OrganizationID: 2}
	orderDate = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
)

type serviceFixture struct {
	svc     *Service
	repo    *memoryRepo
	reg     *enums.Registry
	audit   *recordingAudit
	metrics countingObserver
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	f := serviceFixture{
		repo:    newMemoryRepo(),
		reg:     enums.MustFixtureRegistry(),
		audit:   &recordingAudit{},
		metrics: countingObserver{},
	}
	svc, err := NewService(ServiceDeps{
		Repo:  f.repo,
		Enums: f.reg,
		Customers: stubCustomers{rows: []customers.Customer{
			{ID: 1, OrganizationID: 1, FirstName: "Ana", LastName: "Lim"},
			{ID: 2, OrganizationID: 2, FirstName: "Budi", LastName: "Santoso"},
		}},
		Products: stubProducts{rows: []products.Product{
			{ID: 7, OrganizationID: 1, Code: "P-7", Name: "Rice 5kg", RetailPrice: dec("12.50"), IsActive: true},
			{ID: 8, OrganizationID: 1, Code: "P-8", Name: "Sugar 1kg", RetailPrice: dec("4"), IsActive: true},
			{ID: 9, OrganizationID: 2, Code: "P-9", Name: "Flour 1kg", RetailPrice: dec("3"), IsActive: true},
		}},
		Audit:   f.audit,
		Metrics: f.metrics,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func int64Ptr(v int64) *int64 { return &v }

func createRequest() SaveSalesOrderRequest {
	return SaveSalesOrderRequest{
		CustomerID:     int64Ptr(1),
		LogisticAmount: decimal.NewNullDecimal(dec("15")),
		OrderDate:      orderDate,
		Remark:         "  first order  ",
		Lines: []SaveSalesOrderLineRequest{
			{ProductID: 7, UnitPrice: dec("10"), Quantity: dec("3")},
			{ProductID: 8, UnitPrice: dec("4"), Quantity: dec("2")},
		},
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceDeps{})
	assert.Error(t, err)
}

func TestSaveCreatesOrderWithDependents(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	o, err := f.svc.Save(ctx, actorOrg1, createRequest())
	require.NoError(t, err)

	assert.NotZero(t, o.ID)
	assert.Equal(t, int64(1), o.OrganizationID)
	assert.True(t, o.Type.Is(enums.DirectSOType))
	assert.True(t, o.Status.Is(enums.SODeliveredStatus))
	assert.Equal(t, "first order", o.Remark)
	assert.True(t, o.ActualAmount.Equal(dec("38")))
	assert.True(t, o.OriginalAmount.Equal(dec("45.50")))
	assert.True(t, o.DiscountAmount.Equal(dec("7.50")))
	assert.Equal(t, "Rice 5kg", o.Lines[0].ProductName)

	stored, err := f.repo.Get(ctx, 1, o.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Incoming)
	require.NotNil(t, stored.Expense)
	require.NotNil(t, stored.Shipping)
	assert.True(t, stored.Incoming.Amount.Equal(dec("38")))
	assert.True(t, stored.Expense.Amount.Equal(dec("15")))
	assert.Equal(t, orderDate, stored.Incoming.Date)
	require.Len(t, stored.Shipping.Lines, 2)
	assert.Equal(t, stored.Lines[0].ID, stored.Shipping.Lines[0].SalesOrderLineID)

	assert.Equal(t, 1, f.metrics["success"])
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, "sales_order.create", f.audit.logs[0].Action)
	assert.NotEmpty(t, f.audit.logs[0].Meta["run_id"])
}

func TestSaveTwiceKeepsSingleDependents(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	o, err := f.svc.Save(ctx, actorOrg1, createRequest())
	require.NoError(t, err)
	first, err := f.repo.Get(ctx, 1, o.ID)
	require.NoError(t, err)

	edit := RequestFromOrder(first)
	edit.LogisticAmount = decimal.NewNullDecimal(dec("20"))
	edit.Lines[0].Quantity = dec("5")
	_, err = f.svc.Save(ctx, actorOrg1, edit)
	require.NoError(t, err)

	second, err := f.repo.Get(ctx, 1, o.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Incoming.ID, second.Incoming.ID)
	assert.Equal(t, first.Expense.ID, second.Expense.ID)
	assert.Equal(t, first.Shipping.ID, second.Shipping.ID)
	assert.True(t, second.Incoming.Amount.Equal(dec("58")))
	assert.True(t, second.Expense.Amount.Equal(dec("20")))
	assert.Equal(t, first.Shipping.Lines[0].ID, second.Shipping.Lines[0].ID)
	assert.True(t, second.Shipping.Lines[0].Quantity.Equal(dec("5")))

	assert.Len(t, f.repo.state.incomings, 1)
	assert.Len(t, f.repo.state.expenses, 1)
	assert.Len(t, f.repo.state.shippings, 1)
	assert.Equal(t, "sales_order.update", f.audit.logs[1].Action)
}

func TestSaveEditKeepsTypeAndStatus(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	id := f.repo.seedOrder(SalesOrder{
		OrganizationID: 1,
		Type:           mustValue(t, f.reg, enums.FranchiseSOType),
		Status:         mustValue(t, f.reg, enums.SOCreatedStatus),
		OrderDate:      orderDate,
	})

	req := createRequest()
	req.ID = &id
	o, err := f.svc.Save(ctx, actorOrg1, req)
	require.NoError(t, err)
	assert.True(t, o.Type.Is(enums.FranchiseSOType))
	assert.True(t, o.Status.Is(enums.SOCreatedStatus))
	assert.Nil(t, o.Shipping, "franchise orders get no shipping")
	assert.NotNil(t, o.Incoming)
	assert.Empty(t, f.repo.state.shippings)
}

func TestSaveWithoutLogisticAmountSkipsExpense(t *testing.T) {
	f := newServiceFixture(t)
	req := createRequest()
	req.LogisticAmount = decimal.NullDecimal{}

	o, err := f.svc.Save(context.Background(), actorOrg1, req)
	require.NoError(t, err)
	assert.Nil(t, o.Expense)
	assert.Empty(t, f.repo.state.expenses)
	assert.Len(t, f.repo.state.incomings, 1)
}

func TestSaveShippingLinesFollowOrderLines(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	o, err := f.svc.Save(ctx, actorOrg1, createRequest())
	require.NoError(t, err)

	stored, err := f.repo.Get(ctx, 1, o.ID)
	require.NoError(t, err)
	edit := RequestFromOrder(stored)
	edit.Lines = edit.Lines[1:]
	edit.Lines = append(edit.Lines, SaveSalesOrderLineRequest{ProductID: 7, UnitPrice: dec("11"), Quantity: dec("1")})
	_, err = f.svc.Save(ctx, actorOrg1, edit)
	require.NoError(t, err)

	after, err := f.repo.Get(ctx, 1, o.ID)
	require.NoError(t, err)
	require.Len(t, after.Lines, 2)
	require.Len(t, after.Shipping.Lines, 2)
	for i, l := range after.Lines {
		assert.Equal(t, l.ID, after.Shipping.Lines[i].SalesOrderLineID)
		assert.True(t, l.UnitPrice.Equal(after.Shipping.Lines[i].Price))
	}
	assert.NotEqual(t, stored.Lines[0].ID, after.Shipping.Lines[0].SalesOrderLineID)
}

func TestSaveRejectsForeignReferences(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	req := createRequest()
	req.CustomerID = int64Ptr(2)
	_, err := f.svc.Save(ctx, actorOrg1, req)
	assert.ErrorIs(t, err, ErrForeignReference)

	req = createRequest()
	req.Lines[1].ProductID = 9
	_, err = f.svc.Save(ctx, actorOrg1, req)
	assert.ErrorIs(t, err, ErrForeignReference)

	assert.Empty(t, f.repo.state.orders)
	assert.Empty(t, f.audit.logs)
}

func TestSaveCannotEditOtherOrganizationsOrder(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	o, err := f.svc.Save(ctx, actorOrg1, createRequest())
	require.NoError(t, err)

	req := SaveSalesOrderRequest{ID: &o.ID, OrderDate: orderDate}
	_, err = f.svc.Save(ctx, actorOrg2, req)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejectsUnknownLineID(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	o, err := f.svc.Save(ctx, actorOrg1, createRequest())
	require.NoError(t, err)

	req := createRequest()
	req.ID = &o.ID
	req.Lines[0].ID = int64Ptr(9999)
	_, err = f.svc.Save(ctx, actorOrg1, req)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejectsRepeatedLineID(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	req := createRequest()
	req.Lines = req.Lines[:1]
	o, err := f.svc.Save(ctx, actorOrg1, req)
	require.NoError(t, err)

	stored, err := f.repo.Get(ctx, 1, o.ID)
	require.NoError(t, err)
	edit := RequestFromOrder(stored)
	edit.Lines = append(edit.Lines, edit.Lines[0])
	_, err = f.svc.Save(ctx, actorOrg1, edit)
	assert.ErrorIs(t, err, ErrNotFound)

	after, err := f.repo.Get(ctx, 1, o.ID)
	require.NoError(t, err)
	assert.Len(t, after.Lines, 1)
	assert.True(t, after.ActualAmount.Equal(dec("30")), after.ActualAmount.String())
	require.NotNil(t, after.Incoming)
	assert.True(t, after.Incoming.Amount.Equal(dec("30")), after.Incoming.Amount.String())
}

func TestSaveValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	cases := map[string]func(*SaveSalesOrderRequest){
		"missing date":      func(r *SaveSalesOrderRequest) { r.OrderDate = time.Time{} },
		"negative logistic": func(r *SaveSalesOrderRequest) { r.LogisticAmount = decimal.NewNullDecimal(dec("-1")) },
		"zero quantity":     func(r *SaveSalesOrderRequest) { r.Lines[0].Quantity = decimal.Zero },
		"negative price":    func(r *SaveSalesOrderRequest) { r.Lines[0].UnitPrice = dec("-0.01") },
		"missing product":   func(r *SaveSalesOrderRequest) { r.Lines[0].ProductID = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := createRequest()
			mutate(&req)
			_, err := f.svc.Save(ctx, actorOrg1, req)
			var verrs validator.ValidationErrors
			assert.True(t, errors.As(err, &verrs), "got %v", err)
		})
	}
	assert.Empty(t, f.repo.state.orders)
}

func TestSaveRequiresActor(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.Save(context.Background(), shared.Actor{}, createRequest())
	assert.ErrorIs(t, err, ErrActorRequired)
}

func TestSaveRollsBackWhenDependentFails(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.failShipping = errShippingDown

	_, err := f.svc.Save(context.Background(), actorOrg1, createRequest())
	require.ErrorIs(t, err, errShippingDown)
	assert.Contains(t, err.Error(), "persist-dependents")

	assert.Empty(t, f.repo.state.orders)
	assert.Empty(t, f.repo.state.incomings)
	assert.Empty(t, f.repo.state.expenses)
	assert.Equal(t, 1, f.metrics["failure"])
	assert.Empty(t, f.audit.logs)
}

func TestSaveSurvivesAuditFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.audit.err = errors.New("audit table locked")

	o, err := f.svc.Save(context.Background(), actorOrg1, createRequest())
	require.NoError(t, err)
	assert.NotZero(t, o.ID)
}

func seedFranchise(t *testing.T, f serviceFixture, status enums.Code) int64 {
	t.Helper()
	return f.repo.seedOrder(SalesOrder{
		OrganizationID: 1,
		Type:           mustValue(t, f.reg, enums.FranchiseSOType),
		Status:         mustValue(t, f.reg, status),
		OrderDate:      orderDate,
	})
}

func TestMarkStatus(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	shipped := mustValue(t, f.reg, enums.SOShippedStatus)
	invalid := mustValue(t, f.reg, enums.SOInvalidStatus)

	id := seedFranchise(t, f, enums.SOCreatedStatus)
	o, err := f.svc.MarkStatus(ctx, actorOrg1, id, shipped.ID)
	require.NoError(t, err)
	assert.True(t, o.Status.Is(enums.SOShippedStatus))
	assert.Equal(t, shipped.ID, f.repo.state.orders[id].Status.ID)
	assert.Empty(t, f.repo.state.incomings, "status change does not cascade")

	_, err = f.svc.MarkStatus(ctx, actorOrg1, id, invalid.ID)
	assert.ErrorIs(t, err, ErrActionNotAllowed, "only created orders qualify")

	other := seedFranchise(t, f, enums.SOCreatedStatus)
	_, err = f.svc.MarkStatus(ctx, actorOrg1, other, invalid.ID)
	require.NoError(t, err)

	require.Len(t, f.audit.logs, 2)
	assert.Equal(t, "sales_order.status", f.audit.logs[0].Action)
}

func TestMarkStatusRejections(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	shipped := mustValue(t, f.reg, enums.SOShippedStatus)
	delivered := mustValue(t, f.reg, enums.SODeliveredStatus)

	direct := f.repo.seedOrder(SalesOrder{
		OrganizationID: 1,
		Type:           mustValue(t, f.reg, enums.DirectSOType),
		Status:         mustValue(t, f.reg, enums.SOCreatedStatus),
	})
	_, err := f.svc.MarkStatus(ctx, actorOrg1, direct, shipped.ID)
	assert.ErrorIs(t, err, ErrActionNotAllowed)

	pending := seedFranchise(t, f, enums.SOCreatedStatus)
	_, err = f.svc.MarkStatus(ctx, actorOrg1, pending, delivered.ID)
	assert.ErrorIs(t, err, ErrActionNotAllowed, "only shipped and invalid are reachable")

	_, err = f.svc.MarkStatus(ctx, actorOrg1, pending, 9999)
	assert.ErrorIs(t, err, ErrActionNotAllowed)

	_, err = f.svc.MarkStatus(ctx, actorOrg2, pending, shipped.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, f.repo.state.orders[pending].Status.Is(enums.SOCreatedStatus))
}

func TestUpdateRemark(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	id := seedFranchise(t, f, enums.SOCreatedStatus)

	require.NoError(t, f.svc.UpdateRemark(ctx, actorOrg1, id, "  call before delivery "))
	assert.Equal(t, "call before delivery", f.repo.state.orders[id].Remark)

	assert.ErrorIs(t, f.svc.UpdateRemark(ctx, actorOrg2, id, "x"), ErrNotFound)

	long := make([]byte, 2001)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, f.svc.UpdateRemark(ctx, actorOrg1, id, string(long)))
}

func TestListScopesToActorOrganization(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	_, err := f.svc.Save(ctx, actorOrg1, createRequest())
	require.NoError(t, err)
	f.repo.seedOrder(SalesOrder{OrganizationID: 2, Type: mustValue(t, f.reg, enums.DirectSOType)})

	rows, pg, err := f.svc.List(ctx, actorOrg1, ListSalesOrdersRequest{OrganizationID: 2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].OrganizationID)
	assert.NotNil(t, rows[0].IncomingID)
	assert.Equal(t, 1, pg.Total)
	assert.Equal(t, shared.DefaultPerPage, pg.PerPage)

	_, _, err = f.svc.List(ctx, actorOrg1, ListSalesOrdersRequest{SortBy: "password"})
	assert.Error(t, err)
}

func TestReconcileDependents(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	o, err := f.svc.Save(ctx, actorOrg1, createRequest())
	require.NoError(t, err)

	orphan := f.repo.seedOrder(SalesOrder{
		OrganizationID: 1,
		Type:           mustValue(t, f.reg, enums.DirectSOType),
		Status:         mustValue(t, f.reg, enums.SODeliveredStatus),
		LogisticAmount: decimal.NewNullDecimal(dec("5")),
		OrderDate:      orderDate,
		Lines:          []SalesOrderLine{{ProductID: 7, UnitPrice: dec("2"), Quantity: dec("1"), RetailPrice: dec("2")}},
	})
	f.repo.mu.Lock()
	ord := f.repo.state.orders[orphan]
	ord.RecomputeTotals()
	f.repo.state.orders[orphan] = ord
	f.repo.mu.Unlock()

	res, err := f.svc.ReconcileDependents(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Scanned: 1, Repaired: 1}, res)
	assert.Equal(t, 1, f.metrics["reconciled"])

	repaired, err := f.repo.Get(ctx, 1, orphan)
	require.NoError(t, err)
	require.NotNil(t, repaired.Incoming)
	require.NotNil(t, repaired.Expense)
	require.NotNil(t, repaired.Shipping)
	assert.True(t, repaired.Incoming.Amount.Equal(dec("2")))

	untouched, err := f.repo.Get(ctx, 1, o.ID)
	require.NoError(t, err)
	assert.NotNil(t, untouched.Incoming)

	res, err = f.svc.ReconcileDependents(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Scanned)
}

func TestReconcileDependentsContinuesPastFailures(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		f.repo.seedOrder(SalesOrder{
			OrganizationID: 1,
			Type:           mustValue(t, f.reg, enums.DirectSOType),
			Status:         mustValue(t, f.reg, enums.SODeliveredStatus),
			OrderDate:      orderDate,
		})
	}
	f.repo.failShipping = errShippingDown

	res, err := f.svc.ReconcileDependents(ctx, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, errShippingDown)
	assert.Equal(t, ReconcileResult{Scanned: 2, Failed: 2}, res)
	assert.Empty(t, f.repo.state.incomings, "failed repairs roll back")
	assert.Equal(t, 2, f.metrics["failure"])
}
