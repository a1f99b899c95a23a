package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psi-backoffice/psi/internal/shared"
)

type stubSource struct {
	perms []string
	err   error
	calls int
}

func (s *stubSource) EffectivePermissions(context.Context, int64) ([]string, error) {
	s.calls++
	return s.perms, s.err
}

func serve(t *testing.T, mw func(http.Handler) http.Handler, actor *shared.Actor) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/sales/orders", nil)
	if actor != nil {
		req = req.WithContext(shared.ContextWithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireAnyGrantsOnSinglePermission(t *testing.T) {
	src := &stubSource{perms: []string{"Sales.Order.View"}}
	m := Middleware{Service: src}
	actor := shared.Actor{UserID: 7, OrganizationID: 1}

	assert.Equal(t, http.StatusNoContent, serve(t, m.RequireAny(shared.PermSalesOrderView, shared.PermSalesOrderEdit), &actor))
	assert.Equal(t, 1, src.calls)
}

func TestRequireAllRejectsPartialGrant(t *testing.T) {
	m := Middleware{Service: &stubSource{perms: []string{shared.PermSalesOrderView}}}
	actor := shared.Actor{UserID: 7, OrganizationID: 1}

	assert.Equal(t, http.StatusForbidden, serve(t, m.RequireAll(shared.PermSalesOrderView, shared.PermSalesOrderEdit), &actor))
	assert.Equal(t, http.StatusNoContent, serve(t, m.RequireAll(shared.PermSalesOrderView), &actor))
}

func TestRequireAnyWithoutActorIsForbidden(t *testing.T) {
	src := &stubSource{perms: shared.SalesOrderScopes()}
	m := Middleware{Service: src}

	assert.Equal(t, http.StatusForbidden, serve(t, m.RequireAny(shared.PermSalesOrderView), nil))
	assert.Zero(t, src.calls)
}

func TestRequireAnyPropagatesStoreFailure(t *testing.T) {
	m := Middleware{Service: &stubSource{err: errors.New("db down")}}
	actor := shared.Actor{UserID: 7, OrganizationID: 1}

	require.Equal(t, http.StatusInternalServerError, serve(t, m.RequireAny(shared.PermSalesOrderView), &actor))
}

func TestNormalizePermissionsDeduplicates(t *testing.T) {
	got := normalizePermissions([]string{" sales.order.view", "SALES.ORDER.VIEW", ""})
	assert.Equal(t, []string{"sales.order.view"}, got)
}
