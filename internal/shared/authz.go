package shared

// Permissions checked by the RBAC middleware.
const (
	PermSalesOrderView   = "sales.order.view"
	PermSalesOrderCreate = "sales.order.create"
	PermSalesOrderEdit   = "sales.order.edit"
	PermSalesOrderStatus = "sales.order.status"

	PermJobsView = "jobs.view"
)

// RoleDirectSalesOrder is the role granting access to the direct sales order screens.
const RoleDirectSalesOrder = "direct_sales_order"

// SalesOrderScopes lists every permission bundled into RoleDirectSalesOrder.
func SalesOrderScopes() []string {
	return []string{
		PermSalesOrderView,
		PermSalesOrderCreate,
		PermSalesOrderEdit,
		PermSalesOrderStatus,
	}
}
