package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/psi-backoffice/psi/internal/platform/db"
)

var (
	// ErrNotFound indicates the sales order has no linked record.
	ErrNotFound = errors.New("finance: record not found")
	// ErrDuplicate indicates a second record for the same sales order.
	ErrDuplicate = errors.New("finance: sales order already linked")
)

// Store reads and writes incoming and expense rows. It runs on a pool or
// inside a caller's transaction.
type Store struct {
	db db.DBTX
}

// NewStore constructs a Store.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

// IncomingForOrder loads the incoming linked to a sales order.
func (s *Store) IncomingForOrder(ctx context.Context, salesOrderID int64) (*Incoming, error) {
	var in Incoming
	var remark *string
	err := s.db.QueryRow(ctx, `
		SELECT id, organization_id, sales_order_id, amount, date, status_id, category_id, remark
		FROM incoming WHERE sales_order_id = $1`, salesOrderID).
		Scan(&in.ID, &in.OrganizationID, &in.SalesOrderID, &in.Amount, &in.Date, &in.StatusID, &in.CategoryID, &remark)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finance: load incoming: %w", err)
	}
	if remark != nil {
		in.Remark = *remark
	}
	return &in, nil
}

// SaveIncoming inserts a new incoming or updates an existing one.
func (s *Store) SaveIncoming(ctx context.Context, in *Incoming) error {
	if in.IsNew() {
		err := s.db.QueryRow(ctx, `
			INSERT INTO incoming (organization_id, sales_order_id, amount, date, status_id, category_id, remark)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			in.OrganizationID, in.SalesOrderID, in.Amount, in.Date, in.StatusID, in.CategoryID, in.Remark,
		).Scan(&in.ID)
		if db.IsUniqueViolation(err, "incoming_sales_order_key") {
			return fmt.Errorf("%w: incoming for order %d", ErrDuplicate, in.SalesOrderID)
		}
		if err != nil {
			return fmt.Errorf("finance: insert incoming: %w", err)
		}
		return nil
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE incoming
		SET organization_id = $2, amount = $3, date = $4, status_id = $5, category_id = $6, remark = $7
		WHERE id = $1`,
		in.ID, in.OrganizationID, in.Amount, in.Date, in.StatusID, in.CategoryID, in.Remark)
	if err != nil {
		return fmt.Errorf("finance: update incoming: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpenseForOrder loads the expense linked to a sales order.
func (s *Store) ExpenseForOrder(ctx context.Context, salesOrderID int64) (*Expense, error) {
	var ex Expense
	err := s.db.QueryRow(ctx, `
		SELECT id, organization_id, sales_order_id, amount, date, status_id, category_id, remark
		FROM expense WHERE sales_order_id = $1`, salesOrderID).
		Scan(&ex.ID, &ex.OrganizationID, &ex.SalesOrderID, &ex.Amount, &ex.Date, &ex.StatusID, &ex.CategoryID, &ex.Remark)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finance: load expense: %w", err)
	}
	return &ex, nil
}

// SaveExpense inserts a new expense or updates an existing one.
func (s *Store) SaveExpense(ctx context.Context, ex *Expense) error {
	if ex.IsNew() {
		err := s.db.QueryRow(ctx, `
			INSERT INTO expense (organization_id, sales_order_id, amount, date, status_id, category_id, remark)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			ex.OrganizationID, ex.SalesOrderID, ex.Amount, ex.Date, ex.StatusID, ex.CategoryID, ex.Remark,
		).Scan(&ex.ID)
		if db.IsUniqueViolation(err, "expense_sales_order_key") {
			return fmt.Errorf("%w: expense for order %d", ErrDuplicate, ex.SalesOrderID)
		}
		if err != nil {
			return fmt.Errorf("finance: insert expense: %w", err)
		}
		return nil
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE expense
		SET organization_id = $2, amount = $3, date = $4, status_id = $5, category_id = $6, remark = $7
		WHERE id = $1`,
		ex.ID, ex.OrganizationID, ex.Amount, ex.Date, ex.StatusID, ex.CategoryID, ex.Remark)
	if err != nil {
		return fmt.Errorf("finance: update expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
