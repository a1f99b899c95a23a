package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/psi-backoffice/psi/internal/enums"
	"github.com/psi-backoffice/psi/internal/finance"
	"github.com/psi-backoffice/psi/internal/platform/db"
	"github.com/psi-backoffice/psi/internal/shipping"
)

var (
	ErrNotFound = errors.New("record not found")
)

// OrderRef points at an order of some organization.
type OrderRef struct {
	ID             int64
	OrganizationID int64
}

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	// Get loads the order with its lines and linked dependents.
	Get(ctx context.Context, orgID, id int64) (*SalesOrder, error)
	List(ctx context.Context, req ListSalesOrdersRequest) ([]SalesOrderRow, int, error)
	// ListMissingDependents finds orders whose Incoming, Expense or Shipping
	// was never written, across organizations.
	ListMissingDependents(ctx context.Context, limit int) ([]OrderRef, error)
	SaveOrder(ctx context.Context, o *SalesOrder) error
	UpdateRemark(ctx context.Context, orgID, id int64, remark string) error
	UpdateStatus(ctx context.Context, orgID, id, statusID int64) error
	SaveIncoming(ctx context.Context, in *finance.Incoming) error
	SaveExpense(ctx context.Context, ex *finance.Expense) error
	SaveShipping(ctx context.Context, sh *shipping.Shipping) error
}

type repository struct {
	db       db.DBTX
	pool     *pgxpool.Pool
	finance  *finance.Store
	shipping *shipping.Store
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return newRepository(pool, pool)
}

func newRepository(conn db.DBTX, pool *pgxpool.Pool) *repository {
	return &repository{
		db:       conn,
		pool:     pool,
		finance:  finance.NewStore(conn),
		shipping: shipping.NewStore(conn),
	}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, newRepository(tx, r.pool))
	})
}

const orderSelect = `
	SELECT so.id, so.organization_id, so.customer_id,
	       t.id, t.type_code, t.code, t.display,
	       s.id, s.type_code, s.code, s.display,
	       so.logistic_amount, so.actual_amount, so.original_amount, so.discount_amount,
	       so.order_date, so.remark, so.external_id, so.created_at, so.updated_at,
	       COALESCE(TRIM(c.first_name || ' ' || COALESCE(c.last_name, '')), '')
	FROM sales_order so
	JOIN enum_values t ON t.id = so.type_id
	JOIN enum_values s ON s.id = so.status_id
	LEFT JOIN customer c ON c.id = so.customer_id`

func (r *repository) Get(ctx context.Context, orgID, id int64) (*SalesOrder, error) {
	var o SalesOrder
	err := r.db.QueryRow(ctx, orderSelect+` WHERE so.id = $1 AND so.organization_id = $2`, id, orgID).Scan(
		&o.ID, &o.OrganizationID, &o.CustomerID,
		&o.Type.ID, &o.Type.TypeCode, &o.Type.Code, &o.Type.Display,
		&o.Status.ID, &o.Status.TypeCode, &o.Status.Code, &o.Status.Display,
		&o.LogisticAmount, &o.ActualAmount, &o.OriginalAmount, &o.DiscountAmount,
		&o.OrderDate, &o.Remark, &o.ExternalID, &o.CreatedAt, &o.UpdatedAt,
		&o.CustomerName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if o.Lines, err = r.lines(ctx, o.ID); err != nil {
		return nil, err
	}
	if err := r.attachDependents(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) lines(ctx context.Context, orderID int64) ([]SalesOrderLine, error) {
	rows, err := r.db.Query(ctx, `
		SELECT l.id, l.sales_order_id, l.product_id, p.name, l.unit_price, l.quantity, p.retail_price, l.remark, l.external_id
		FROM sales_order_line l
		JOIN product p ON p.id = l.product_id
		WHERE l.sales_order_id = $1
		ORDER BY l.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []SalesOrderLine
	for rows.Next() {
		var l SalesOrderLine
		if err := rows.Scan(&l.ID, &l.SalesOrderID, &l.ProductID, &l.ProductName, &l.UnitPrice, &l.Quantity,
			&l.RetailPrice, &l.Remark, &l.ExternalID); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *repository) attachDependents(ctx context.Context, o *SalesOrder) error {
	in, err := r.finance.IncomingForOrder(ctx, o.ID)
	switch {
	case err == nil:
		o.Incoming = in
	case !errors.Is(err, finance.ErrNotFound):
		return err
	}
	ex, err := r.finance.ExpenseForOrder(ctx, o.ID)
	switch {
	case err == nil:
		o.Expense = ex
	case !errors.Is(err, finance.ErrNotFound):
		return err
	}
	sh, err := r.shipping.ShippingForOrder(ctx, o.ID)
	switch {
	case err == nil:
		o.Shipping = sh
	case !errors.Is(err, shipping.ErrNotFound):
		return err
	}
	return nil
}

var sortColumns = map[string]string{
	SortID:             "so.id",
	SortLogisticAmount: "so.logistic_amount",
	SortActualAmount:   "so.actual_amount",
	SortOriginalAmount: "so.original_amount",
	SortDiscountAmount: "so.discount_amount",
	SortOrderDate:      "so.order_date",
	SortStatus:         "s.display",
	SortType:           "t.display",
}

var amountOps = map[string]string{"lt": "<", "gt": ">", "eq": "="}

func (r *repository) List(ctx context.Context, req ListSalesOrdersRequest) ([]SalesOrderRow, int, error) {
	conditions := []string{"so.organization_id = $1"}
	args := []any{req.OrganizationID}
	argPos := 2

	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("so.order_date >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("so.order_date <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}
	for _, f := range []struct {
		column string
		filter *AmountFilter
	}{
		{"so.logistic_amount", req.LogisticAmount},
		{"so.actual_amount", req.ActualAmount},
		{"so.original_amount", req.OriginalAmount},
		{"so.discount_amount", req.DiscountAmount},
	} {
		column, filter := f.column, f.filter
		if filter == nil {
			continue
		}
		op, ok := amountOps[filter.Op]
		if !ok {
			return nil, 0, fmt.Errorf("unknown amount operator %q", filter.Op)
		}
		conditions = append(conditions, fmt.Sprintf("%s %s $%d", column, op, argPos))
		args = append(args, filter.Value)
		argPos++
	}
	if s := strings.TrimSpace(req.Search); s != "" {
		conditions = append(conditions, fmt.Sprintf(`(
			c.first_name ILIKE $%[1]d OR c.last_name ILIKE $%[1]d OR c.mobile_phone ILIKE $%[1]d OR
			c.email ILIKE $%[1]d OR c.address ILIKE $%[1]d OR so.remark ILIKE $%[1]d OR
			t.display ILIKE $%[1]d OR t.code ILIKE $%[1]d OR s.display ILIKE $%[1]d OR s.code ILIKE $%[1]d OR
			lv.display ILIKE $%[1]d OR jc.display ILIKE $%[1]d)`, argPos))
		args = append(args, "%"+s+"%")
		argPos++
	}

	from := `
		FROM sales_order so
		JOIN enum_values t ON t.id = so.type_id
		JOIN enum_values s ON s.id = so.status_id
		LEFT JOIN customer c ON c.id = so.customer_id
		LEFT JOIN enum_values lv ON lv.id = c.level_id
		LEFT JOIN enum_values jc ON jc.id = c.join_channel_id
		WHERE ` + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*)"+from, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := sortColumns[req.SortBy]
	if order == "" {
		order = "so.id"
	}
	if req.SortDesc || req.SortBy == "" {
		order += " DESC"
	}

	query := fmt.Sprintf(`
		SELECT so.id, so.organization_id,
		       t.id, t.type_code, t.code, t.display,
		       s.id, s.type_code, s.code, s.display,
		       so.customer_id, COALESCE(TRIM(c.first_name || ' ' || c.last_name), ''),
		       so.logistic_amount, so.actual_amount, so.original_amount, so.discount_amount,
		       so.order_date, so.remark,
		       (SELECT id FROM incoming WHERE sales_order_id = so.id),
		       (SELECT id FROM expense WHERE sales_order_id = so.id),
		       (SELECT id FROM shipping WHERE sales_order_id = so.id)
		%s
		ORDER BY %s, so.id DESC
		LIMIT $%d OFFSET $%d`, from, order, argPos, argPos+1)
	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []SalesOrderRow
	for rows.Next() {
		var row SalesOrderRow
		if err := rows.Scan(
			&row.ID, &row.OrganizationID,
			&row.Type.ID, &row.Type.TypeCode, &row.Type.Code, &row.Type.Display,
			&row.Status.ID, &row.Status.TypeCode, &row.Status.Code, &row.Status.Display,
			&row.CustomerID, &row.CustomerName,
			&row.LogisticAmount, &row.ActualAmount, &row.OriginalAmount, &row.DiscountAmount,
			&row.OrderDate, &row.Remark,
			&row.IncomingID, &row.ExpenseID, &row.ShippingID,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

func (r *repository) ListMissingDependents(ctx context.Context, limit int) ([]OrderRef, error) {
	rows, err := r.db.Query(ctx, `
		SELECT so.id, so.organization_id
		FROM sales_order so
		JOIN enum_values t ON t.id = so.type_id
		LEFT JOIN incoming i ON i.sales_order_id = so.id
		LEFT JOIN expense e ON e.sales_order_id = so.id
		LEFT JOIN shipping sh ON sh.sales_order_id = so.id
		WHERE i.id IS NULL
		   OR (so.logistic_amount IS NOT NULL AND e.id IS NULL)
		   OR (t.code = $1 AND sh.id IS NULL)
		ORDER BY so.id
		LIMIT $2`, string(enums.DirectSOType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRef
	for rows.Next() {
		var ref OrderRef
		if err := rows.Scan(&ref.ID, &ref.OrganizationID); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (r *repository) SaveOrder(ctx context.Context, o *SalesOrder) error {
	if o.ID == 0 {
		err := r.db.QueryRow(ctx, `
			INSERT INTO sales_order (organization_id, customer_id, type_id, status_id, logistic_amount,
				actual_amount, original_amount, discount_amount, order_date, remark, external_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at, updated_at`,
			o.OrganizationID, o.CustomerID, o.Type.ID, o.Status.ID, o.LogisticAmount,
			o.ActualAmount, o.OriginalAmount, o.DiscountAmount, o.OrderDate, o.Remark, o.ExternalID,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
	} else {
		err := r.db.QueryRow(ctx, `
			UPDATE sales_order
			SET customer_id = $3, type_id = $4, status_id = $5, logistic_amount = $6,
			    actual_amount = $7, original_amount = $8, discount_amount = $9,
			    order_date = $10, remark = $11, updated_at = NOW()
			WHERE id = $1 AND organization_id = $2
			RETURNING updated_at`,
			o.ID, o.OrganizationID, o.CustomerID, o.Type.ID, o.Status.ID, o.LogisticAmount,
			o.ActualAmount, o.OriginalAmount, o.DiscountAmount, o.OrderDate, o.Remark,
		).Scan(&o.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("update order: %w", err)
		}
	}
	return r.syncLines(ctx, o)
}

// syncLines updates lines that keep their id, inserts new ones and deletes
// the rest.
func (r *repository) syncLines(ctx context.Context, o *SalesOrder) error {
	keep := make([]int64, 0, len(o.Lines))
	for i := range o.Lines {
		l := &o.Lines[i]
		l.SalesOrderID = o.ID
		if l.ID == 0 {
			err := r.db.QueryRow(ctx, `
				INSERT INTO sales_order_line (sales_order_id, product_id, unit_price, quantity, remark, external_id)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				l.SalesOrderID, l.ProductID, l.UnitPrice, l.Quantity, l.Remark, l.ExternalID,
			).Scan(&l.ID)
			if err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
		} else {
			tag, err := r.db.Exec(ctx, `
				UPDATE sales_order_line
				SET product_id = $3, unit_price = $4, quantity = $5, remark = $6
				WHERE id = $1 AND sales_order_id = $2`,
				l.ID, l.SalesOrderID, l.ProductID, l.UnitPrice, l.Quantity, l.Remark)
			if err != nil {
				return fmt.Errorf("update order line: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: line %d", ErrNotFound, l.ID)
			}
		}
		keep = append(keep, l.ID)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM sales_order_line WHERE sales_order_id = $1 AND NOT (id = ANY($2))`, o.ID, keep); err != nil {
		return fmt.Errorf("delete order lines: %w", err)
	}
	return nil
}

func (r *repository) UpdateRemark(ctx context.Context, orgID, id int64, remark string) error {
	tag, err := r.db.Exec(ctx, `UPDATE sales_order SET remark = $3, updated_at = NOW() WHERE id = $1 AND organization_id = $2`,
		id, orgID, remark)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, orgID, id, statusID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE sales_order SET status_id = $3, updated_at = NOW() WHERE id = $1 AND organization_id = $2`,
		id, orgID, statusID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SaveIncoming(ctx context.Context, in *finance.Incoming) error {
	return r.finance.SaveIncoming(ctx, in)
}

func (r *repository) SaveExpense(ctx context.Context, ex *finance.Expense) error {
	return r.finance.SaveExpense(ctx, ex)
}

func (r *repository) SaveShipping(ctx context.Context, sh *shipping.Shipping) error {
	return r.shipping.SaveShipping(ctx, sh)
}
