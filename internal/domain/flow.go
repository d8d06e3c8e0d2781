// Package domain holds the types shared by the conversation engine and the
// request router: flow kinds, collected field names and completed requests.
package domain

// FlowKind identifies one of the request flows offered in the main menu.
// The zero value means no flow is active.
type FlowKind string

const (
	FlowNone   FlowKind = ""
	FlowUrgent FlowKind = "urgent"
	FlowRepair FlowKind = "repair"
	FlowRental FlowKind = "rental"
	FlowAudit  FlowKind = "audit"
)

// Flows lists every flow kind in main-menu order.
var Flows = []FlowKind{FlowUrgent, FlowRepair, FlowRental, FlowAudit}

// Valid reports whether f is one of the known flow kinds.
func (f FlowKind) Valid() bool {
	switch f {
	case FlowUrgent, FlowRepair, FlowRental, FlowAudit:
		return true
	default:
		return false
	}
}

func (f FlowKind) String() string {
	if f == FlowNone {
		return "none"
	}
	return string(f)
}

// Field names a value collected during a flow.
type Field string

const (
	FieldEquipmentType  Field = "equipment_type"
	FieldEquipmentModel Field = "equipment_model"
	FieldProblem        Field = "problem_description"
	FieldPhone          Field = "phone"
	FieldEmail          Field = "email"
	FieldTaxID          Field = "tax_id"
	FieldPurpose        Field = "purpose"
)
