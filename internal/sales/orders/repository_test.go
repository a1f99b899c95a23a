package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStopQuery = errors.New("stop")

type failingRow struct{}

func (failingRow) Scan(...any) error { return errStopQuery }

// sqlRecorder captures statements and fails every call.
type sqlRecorder struct {
	statements []string
	args       [][]any
}

func (r *sqlRecorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.statements = append(r.statements, sql)
	r.args = append(r.args, args)
	return pgconn.CommandTag{}, errStopQuery
}

func (r *sqlRecorder) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	r.statements = append(r.statements, sql)
	r.args = append(r.args, args)
	return nil, errStopQuery
}

func (r *sqlRecorder) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	r.statements = append(r.statements, sql)
	r.args = append(r.args, args)
	return failingRow{}
}

func TestListSearchCoversCustomerLevelAndJoinChannel(t *testing.T) {
	rec := &sqlRecorder{}
	repo := newRepository(rec, nil)

	_, _, err := repo.List(context.Background(), ListSalesOrdersRequest{OrganizationID: 1, Search: "gold"})
	require.ErrorIs(t, err, errStopQuery)
	require.Len(t, rec.statements, 1)

	sql := rec.statements[0]
	assert.Contains(t, sql, "LEFT JOIN enum_values lv ON lv.id = c.level_id")
	assert.Contains(t, sql, "LEFT JOIN enum_values jc ON jc.id = c.join_channel_id")
	assert.Contains(t, sql, "lv.display ILIKE $2")
	assert.Contains(t, sql, "jc.display ILIKE $2")
	assert.Equal(t, []any{int64(1), "%gold%"}, rec.args[0])
}

func TestGetSelectsCustomerName(t *testing.T) {
	rec := &sqlRecorder{}
	repo := newRepository(rec, nil)

	_, err := repo.Get(context.Background(), 1, 5)
	require.ErrorIs(t, err, errStopQuery)
	require.Len(t, rec.statements, 1)
	assert.Contains(t, rec.statements[0], "LEFT JOIN customer c ON c.id = so.customer_id")
	assert.Contains(t, rec.statements[0], "c.first_name")
}
