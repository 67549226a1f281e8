// internal/domain/prospect/entity.go
package prospect

import "time"

// Prospect is a sales lead tracked through the pipeline. Ingestion
// creates it unassigned; only the assignment engine mutates the
// ownership fields afterwards.
type Prospect struct {
	ID                 int64   `json:"id"`
	FullName           *string `json:"full_name,omitempty"`
	WhatsappName       *string `json:"whatsapp_name,omitempty"`
	Phone              string  `json:"phone"`
	Email              *string `json:"email,omitempty"`
	CRMID              *string `json:"crm_id,omitempty"`
	CoordinationUnitID *int64  `json:"coordination_unit_id,omitempty"`
	ExecutiveID        *int64  `json:"executive_id,omitempty"`
	RequiresAttention  bool    `json:"requires_attention"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName prefers the registered full name over the
// WhatsApp-derived one.
func (p *Prospect) DisplayName() string {
	if p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	if p.WhatsappName != nil {
		return *p.WhatsappName
	}
	return ""
}

// AssignmentState is the assignment dimension of a prospect's
// lifecycle. Any state may transition to any other.
type AssignmentState string

const (
	StateUnassigned        AssignmentState = "unassigned"
	StateAutoAssigned      AssignmentState = "auto_assigned"
	StateExecutiveAssigned AssignmentState = "executive_assigned"
)

// State derives the assignment state from the ownership fields.
func (p *Prospect) State() AssignmentState {
	switch {
	case p.ExecutiveID != nil:
		return StateExecutiveAssigned
	case p.CoordinationUnitID != nil:
		return StateAutoAssigned
	default:
		return StateUnassigned
	}
}

// AssignmentAudit is an append-only record of an ownership change.
// Never mutated or deleted; conflicting concurrent reassignments are
// investigated here rather than prevented up front.
type AssignmentAudit struct {
	ID          int64     `json:"id"`
	Reference   string    `json:"reference"`
	ProspectID  int64     `json:"prospect_id"`
	PrevUnitID  *int64    `json:"prev_coordination_unit_id,omitempty"`
	NextUnitID  *int64    `json:"next_coordination_unit_id,omitempty"`
	PrevExecID  *int64    `json:"prev_executive_id,omitempty"`
	NextExecID  *int64    `json:"next_executive_id,omitempty"`
	ActorUserID *int64    `json:"actor_user_id,omitempty"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}
