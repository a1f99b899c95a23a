package enums

import (
	"context"
	"fmt"

	"github.com/psi-backoffice/psi/internal/platform/db"
)

// Source lists every enum_values row.
type Source interface {
	ListValues(ctx context.Context) ([]Value, error)
}

// PGRepository reads enum_values from PostgreSQL.
type PGRepository struct {
	db db.DBTX
}

// NewRepository constructs a PGRepository.
func NewRepository(conn db.DBTX) *PGRepository {
	return &PGRepository{db: conn}
}

// ListValues implements Source.
func (r *PGRepository) ListValues(ctx context.Context) ([]Value, error) {
	rows, err := r.db.Query(ctx, `SELECT id, type_code, code, display FROM enum_values ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Value
	for rows.Next() {
		var v Value
		var code string
		if err := rows.Scan(&v.ID, &v.TypeCode, &code, &v.Display); err != nil {
			return nil, err
		}
		v.Code = Code(code)
		out = append(out, v)
	}
	return out, rows.Err()
}

// Load reads every value from src and builds the registry.
func Load(ctx context.Context, src Source) (*Registry, error) {
	values, err := src.ListValues(ctx)
	if err != nil {
		return nil, fmt.Errorf("enums: load: %w", err)
	}
	return NewRegistry(values)
}

var _ Source = (*PGRepository)(nil)
