package orders

import (
	"fmt"
	"html/template"

	"github.com/psi-backoffice/psi/internal/enums"
)

// RowAction renders an optional per-row affordance on the order list. An
// empty result means the action does not apply to the row.
type RowAction interface {
	Name() string
	Render(o OrderState) template.HTML
}

// franchisePending reports whether a franchise order still awaits a decision.
func franchisePending(o OrderState) bool {
	return o.Status.Is(enums.SOCreatedStatus) && o.Type.Is(enums.FranchiseSOType)
}

// CanMarkShipped reports whether the order may be moved to shipped.
func CanMarkShipped(o OrderState) bool { return franchisePending(o) }

// CanMarkInvalid reports whether the order may be moved to invalid.
func CanMarkInvalid(o OrderState) bool { return franchisePending(o) }

// MarkShippedAction targets the shipped status.
type MarkShippedAction struct {
	ShippedStatusID int64
}

func (MarkShippedAction) Name() string { return "mark_ship" }

func (a MarkShippedAction) Render(o OrderState) template.HTML {
	if !CanMarkShipped(o) {
		return ""
	}
	return renderAnchor("ship", "mark_ship_row_action", "fa-truck", "Mark as shipped", o.ID, a.ShippedStatusID)
}

// MarkInvalidAction targets the invalid status.
type MarkInvalidAction struct {
	InvalidStatusID int64
}

func (MarkInvalidAction) Name() string { return "mark_invalid" }

func (a MarkInvalidAction) Render(o OrderState) template.HTML {
	if !CanMarkInvalid(o) {
		return ""
	}
	return renderAnchor("invalid", "mark_invalid_row_action", "fa-minus-circle", "Mark as invalid", o.ID, a.InvalidStatusID)
}

// DefaultRowActions builds both actions from the registry.
func DefaultRowActions(reg *enums.Registry) ([]RowAction, error) {
	shipped, err := reg.Get(enums.SOShippedStatus)
	if err != nil {
		return nil, err
	}
	invalid, err := reg.Get(enums.SOInvalidStatus)
	if err != nil {
		return nil, err
	}
	return []RowAction{
		MarkShippedAction{ShippedStatusID: shipped.ID},
		MarkInvalidAction{InvalidStatusID: invalid.ID},
	}, nil
}

// RenderRowActions concatenates every applicable action for one row.
func RenderRowActions(actions []RowAction, o OrderState) template.HTML {
	var out template.HTML
	for _, a := range actions {
		out += a.Render(o)
	}
	return out
}

// renderAnchor emits the anchor picked up by static/js/row_actions.js. The
// values are integers, so no escaping is required.
func renderAnchor(kind, idPrefix, icon, title string, orderID, statusID int64) template.HTML {
	return template.HTML(fmt.Sprintf(
		`<a class="icon row-action" href="#" title="%s" data-row-action="%s" data-order-id="%d" data-status-id="%d" id="%s_%d"><span class="fa %s"></span></a>`,
		template.HTMLEscapeString(title), kind, orderID, statusID, idPrefix, orderID, icon,
	))
}
