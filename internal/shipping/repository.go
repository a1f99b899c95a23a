package shipping

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/psi-backoffice/psi/internal/platform/db"
)

var (
	// ErrNotFound indicates the sales order has no shipping.
	ErrNotFound = errors.New("shipping: record not found")
	// ErrDuplicate indicates a second shipping for the same sales order.
	ErrDuplicate = errors.New("shipping: sales order already linked")
)

// Store reads and writes shipping headers and lines.
type Store struct {
	db db.DBTX
}

// NewStore constructs a Store.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

// ShippingForOrder loads the shipping of a sales order with its lines.
func (s *Store) ShippingForOrder(ctx context.Context, salesOrderID int64) (*Shipping, error) {
	var sh Shipping
	err := s.db.QueryRow(ctx, `
		SELECT id, organization_id, sales_order_id, date, status_id, type_id, remark
		FROM shipping WHERE sales_order_id = $1`, salesOrderID).
		Scan(&sh.ID, &sh.OrganizationID, &sh.SalesOrderID, &sh.Date, &sh.StatusID, &sh.TypeID, &sh.Remark)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("shipping: load: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, shipping_id, sales_order_line_id, product_id, quantity, price
		FROM shipping_line WHERE shipping_id = $1 ORDER BY id`, sh.ID)
	if err != nil {
		return nil, fmt.Errorf("shipping: load lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		var solID *int64
		if err := rows.Scan(&l.ID, &l.ShippingID, &solID, &l.ProductID, &l.Quantity, &l.Price); err != nil {
			return nil, err
		}
		if solID != nil {
			l.SalesOrderLineID = *solID
		}
		sh.Lines = append(sh.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &sh, nil
}

// SaveShipping upserts the header, then makes the stored lines match
// sh.Lines: lines with an id are updated, new ones inserted, the rest removed.
func (s *Store) SaveShipping(ctx context.Context, sh *Shipping) error {
	if sh.IsNew() {
		err := s.db.QueryRow(ctx, `
			INSERT INTO shipping (organization_id, sales_order_id, date, status_id, type_id, remark)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			sh.OrganizationID, sh.SalesOrderID, sh.Date, sh.StatusID, sh.TypeID, sh.Remark,
		).Scan(&sh.ID)
		if db.IsUniqueViolation(err, "shipping_sales_order_key") {
			return fmt.Errorf("%w: order %d", ErrDuplicate, sh.SalesOrderID)
		}
		if err != nil {
			return fmt.Errorf("shipping: insert: %w", err)
		}
	} else {
		tag, err := s.db.Exec(ctx, `
			UPDATE shipping
			SET organization_id = $2, date = $3, status_id = $4, type_id = $5, remark = $6
			WHERE id = $1`,
			sh.ID, sh.OrganizationID, sh.Date, sh.StatusID, sh.TypeID, sh.Remark)
		if err != nil {
			return fmt.Errorf("shipping: update: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
	}

	keep := make([]int64, 0, len(sh.Lines))
	for i := range sh.Lines {
		l := &sh.Lines[i]
		l.ShippingID = sh.ID
		if l.ID == 0 {
			err := s.db.QueryRow(ctx, `
				INSERT INTO shipping_line (shipping_id, sales_order_line_id, product_id, quantity, price)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				l.ShippingID, l.SalesOrderLineID, l.ProductID, l.Quantity, l.Price,
			).Scan(&l.ID)
			if err != nil {
				return fmt.Errorf("shipping: insert line: %w", err)
			}
		} else {
			_, err := s.db.Exec(ctx, `
				UPDATE shipping_line SET product_id = $2, quantity = $3, price = $4
				WHERE id = $1 AND shipping_id = $5`,
				l.ID, l.ProductID, l.Quantity, l.Price, l.ShippingID)
			if err != nil {
				return fmt.Errorf("shipping: update line: %w", err)
			}
		}
		keep = append(keep, l.ID)
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM shipping_line WHERE shipping_id = $1 AND NOT (id = ANY($2))`, sh.ID, keep); err != nil {
		return fmt.Errorf("shipping: prune lines: %w", err)
	}
	return nil
}
