package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/psi-backoffice/psi/internal/platform/db"
)

// ErrNotFound is returned when a customer does not exist in the organization.
var ErrNotFound = errors.New("customers: record not found")

// Repository reads customers; every query is scoped by organization.
type Repository interface {
	Get(ctx context.Context, orgID, id int64) (*Customer, error)
	List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error)
}

type repository struct {
	db db.DBTX
}

// NewRepository builds a pgx backed Repository.
func NewRepository(conn db.DBTX) Repository {
	return &repository{db: conn}
}

const customerColumns = `id, organization_id, first_name, last_name, mobile_phone, email, address, level_id, join_channel_id, created_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.OrganizationID, &c.FirstName, &c.LastName, &c.MobilePhone,
		&c.Email, &c.Address, &c.LevelID, &c.JoinChannelID, &c.CreatedAt)
	return c, err
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (*Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customer WHERE id = $1 AND organization_id = $2`, id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	conditions := []string{"organization_id = $1"}
	args := []any{req.OrganizationID}
	argPos := 2

	if s := strings.TrimSpace(req.Search); s != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR mobile_phone ILIKE $%[1]d OR email ILIKE $%[1]d)", argPos))
		args = append(args, "%"+s+"%")
		argPos++
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM customer "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM customer %s ORDER BY first_name, last_name, id`, customerColumns, where)
	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		args = append(args, req.Limit, req.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}
