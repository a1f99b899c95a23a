package orders

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/psi-backoffice/psi/internal/masterdata/products"
	"github.com/psi-backoffice/psi/internal/sales/customers"
	"github.com/psi-backoffice/psi/internal/shared"
)

// Option is one entry of a select box.
type Option struct {
	ID       int64
	Label    string
	Selected bool
}

// LineForm is a bound order line with its own product options.
type LineForm struct {
	Values         SaveSalesOrderLineRequest
	ProductOptions []Option
}

// FormModel backs the create and edit screens.
type FormModel struct {
	Values          SaveSalesOrderRequest
	Order           *SalesOrder
	CustomerOptions []Option
	// NewLineOptions feed the blank line template used to add lines.
	NewLineOptions []Option
	Lines          []LineForm
	Errors         map[string]string
}

// BuildForm loads the organization's customers and products and binds them
// to values. Every option list only holds rows of the actor's organization;
// a bound id from elsewhere stays unselected.
func BuildForm(ctx context.Context, dir CustomerDirectory, cat ProductCatalog, actor shared.Actor, values SaveSalesOrderRequest) (*FormModel, error) {
	if !actor.Valid() {
		return nil, ErrActorRequired
	}

	var (
		custs []customers.Customer
		prods []products.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		custs, err = dir.ListForOrganization(gctx, actor.OrganizationID)
		if err != nil {
			return fmt.Errorf("load customers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		prods, err = cat.ListForOrganization(gctx, actor.OrganizationID)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scoped := scopeProducts(prods, actor.OrganizationID)
	form := &FormModel{
		Values:         values,
		NewLineOptions: productOptions(scoped, 0),
		Errors:         map[string]string{},
	}
	var selectedCustomer int64
	if values.CustomerID != nil {
		selectedCustomer = *values.CustomerID
	}
	for _, c := range custs {
		if c.OrganizationID != actor.OrganizationID {
			continue
		}
		form.CustomerOptions = append(form.CustomerOptions, Option{
			ID:       c.ID,
			Label:    c.Name(),
			Selected: c.ID == selectedCustomer,
		})
	}
	for _, l := range values.Lines {
		form.Lines = append(form.Lines, LineForm{
			Values:         l,
			ProductOptions: productOptions(scoped, l.ProductID),
		})
	}
	return form, nil
}

func scopeProducts(prods []products.Product, orgID int64) []products.Product {
	out := make([]products.Product, 0, len(prods))
	for _, p := range prods {
		if p.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	return out
}

func productOptions(prods []products.Product, selected int64) []Option {
	out := make([]Option, 0, len(prods))
	for _, p := range prods {
		out = append(out, Option{ID: p.ID, Label: p.Label(), Selected: p.ID == selected})
	}
	return out
}

// RequestFromOrder turns a stored order into form values for editing.
func RequestFromOrder(o *SalesOrder) SaveSalesOrderRequest {
	id := o.ID
	req := SaveSalesOrderRequest{
		ID:             &id,
		CustomerID:     o.CustomerID,
		LogisticAmount: o.LogisticAmount,
		OrderDate:      o.OrderDate,
		Remark:         o.Remark,
	}
	for _, l := range o.Lines {
		lineID := l.ID
		req.Lines = append(req.Lines, SaveSalesOrderLineRequest{
			ID:        &lineID,
			ProductID: l.ProductID,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Remark:    l.Remark,
		})
	}
	return req
}
