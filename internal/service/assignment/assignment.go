// internal/service/assignment/assignment.go
package assignment

import (
	"context"
	"errors"
	"fmt"

	"prospect-service/internal/domain/prospect"
	"prospect-service/internal/domain/staff"
	xerrors "prospect-service/internal/pkg/errors"
	"prospect-service/internal/service/permissions"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Failure classes surfaced to the actor with a specific message.
var (
	ErrUnitNotAssignable  = errors.New("coordination unit is inactive or archived")
	ErrUnitMismatch       = errors.New("executive does not belong to the target coordination unit")
	ErrExecutiveInactive  = errors.New("executive is not active")
	ErrIncompleteProspect = errors.New("prospect needs a name and an email before assignment")
	ErrAlreadyAssigned    = errors.New("prospect already has an executive assigned")
)

// ProspectStore is the prospect write surface of the engine.
type ProspectStore interface {
	FindByID(ctx context.Context, id int64) (*prospect.Prospect, error)
	UpdateAssignment(ctx context.Context, id int64, unitID, executiveID *int64) error
	ClearExecutive(ctx context.Context, id int64) error
	SetCoordinationUnit(ctx context.Context, id int64, unitID int64) error
}

// StaffSource resolves assignment targets.
type StaffSource interface {
	FindExecutiveByID(ctx context.Context, id int64) (*staff.Executive, error)
}

// UnitSource resolves target units and the remote allocation procedure.
type UnitSource interface {
	FindByID(ctx context.Context, id int64) (*staff.CoordinationUnit, error)
	AllocateUnit(ctx context.Context, prospectID int64) (*int64, error)
}

// AuditStore appends assignment audit records.
type AuditStore interface {
	Insert(ctx context.Context, a *prospect.AssignmentAudit) error
}

// Authorizer is the slice of the permission resolver the engine needs.
// Authorization here always reads fresh membership.
type Authorizer interface {
	CanAssignWithinUnit(ctx context.Context, userID, unitID int64) permissions.AccessDecision
	ActorRole(ctx context.Context, userID int64) (*staff.User, error)
}

// Engine mutates prospect ownership. Every successful mutation appends
// an audit record; concurrent reassignment is last-writer-wins with
// the audit trail as the conflict record.
type Engine struct {
	prospects ProspectStore
	staff     StaffSource
	units     UnitSource
	audit     AuditStore
	auth      Authorizer
	logger    *zap.Logger
}

func NewEngine(prospects ProspectStore, staffSrc StaffSource, units UnitSource, audit AuditStore, auth Authorizer, logger *zap.Logger) *Engine {
	return &Engine{
		prospects: prospects,
		staff:     staffSrc,
		units:     units,
		audit:     audit,
		auth:      auth,
		logger:    logger,
	}
}

// AssignManually assigns one prospect to an executive inside a unit.
func (e *Engine) AssignManually(ctx context.Context, prospectID, unitID, executiveID, actorUserID int64, reason string) error {
	p, err := e.prospects.FindByID(ctx, prospectID)
	if err != nil {
		return fmt.Errorf("prospect %d: %w", prospectID, err)
	}

	if d := e.auth.CanAssignWithinUnit(ctx, actorUserID, unitID); !d.CanAccess {
		return fmt.Errorf("%w: %s", xerrors.ErrForbidden, d.Reason)
	}

	// Pulling a prospect out of a foreign unit needs authority over
	// that unit too, not just over the target.
	if p.CoordinationUnitID != nil && *p.CoordinationUnitID != unitID {
		if d := e.auth.CanAssignWithinUnit(ctx, actorUserID, *p.CoordinationUnitID); !d.CanAccess {
			return fmt.Errorf("%w: coordination unit mismatch: prospect belongs to a unit outside your scope", xerrors.ErrForbidden)
		}
	}

	// Unit status check is advisory: a transient lookup failure logs a
	// warning and the assignment proceeds. A definitive inactive or
	// archived unit still blocks.
	unit, err := e.units.FindByID(ctx, unitID)
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		return fmt.Errorf("coordination unit %d: %w", unitID, err)
	case err != nil:
		e.logger.Warn("unit status check failed, continuing",
			zap.Int64("coordination_unit_id", unitID), zap.Error(err))
	case !unit.AssignableTarget():
		return ErrUnitNotAssignable
	}

	exec, err := e.staff.FindExecutiveByID(ctx, executiveID)
	if err != nil {
		return fmt.Errorf("executive %d: %w", executiveID, err)
	}
	if exec.CoordinationUnitID != unitID {
		return ErrUnitMismatch
	}
	if !exec.IsActive {
		return ErrExecutiveInactive
	}

	if err := e.completenessGate(ctx, p, actorUserID); err != nil {
		return err
	}

	if err := e.prospects.UpdateAssignment(ctx, prospectID, &unitID, &executiveID); err != nil {
		return err
	}

	if reason == "" {
		reason = "manual assignment"
	}
	e.writeAudit(ctx, &prospect.AssignmentAudit{
		ProspectID:  prospectID,
		PrevUnitID:  p.CoordinationUnitID,
		NextUnitID:  &unitID,
		PrevExecID:  p.ExecutiveID,
		NextExecID:  &executiveID,
		ActorUserID: &actorUserID,
		Reason:      reason,
	})

	e.logger.Info("prospect assigned",
		zap.Int64("prospect_id", prospectID),
		zap.Int64("coordination_unit_id", unitID),
		zap.Int64("executive_id", executiveID),
		zap.Int64("actor_user_id", actorUserID),
	)

	return nil
}

// AssignBulk applies one target to many prospects. Failures are
// isolated per item; one failing prospect never aborts the batch.
func (e *Engine) AssignBulk(ctx context.Context, prospectIDs []int64, unitID, executiveID, actorUserID int64, reason string) *prospect.BulkResult {
	result := &prospect.BulkResult{}

	for _, id := range prospectIDs {
		if err := e.AssignManually(ctx, id, unitID, executiveID, actorUserID, reason); err != nil {
			result.FailedCount++
			result.Failures = append(result.Failures, prospect.ItemFailure{
				ProspectID: id,
				Message:    err.Error(),
			})
			continue
		}
		result.SuccessCount++
	}

	return result
}

// Unassign clears a prospect's executive, retaining the coordination
// unit.
func (e *Engine) Unassign(ctx context.Context, prospectID, actorUserID int64, reason string) error {
	p, err := e.prospects.FindByID(ctx, prospectID)
	if err != nil {
		return fmt.Errorf("prospect %d: %w", prospectID, err)
	}

	if p.CoordinationUnitID != nil {
		if d := e.auth.CanAssignWithinUnit(ctx, actorUserID, *p.CoordinationUnitID); !d.CanAccess {
			return fmt.Errorf("%w: %s", xerrors.ErrForbidden, d.Reason)
		}
	} else {
		actor, err := e.auth.ActorRole(ctx, actorUserID)
		if err != nil {
			return fmt.Errorf("%w: permission data unavailable", xerrors.ErrForbidden)
		}
		if actor.Role != staff.RoleAdmin && actor.Role != staff.RoleQualityCoordinator {
			return fmt.Errorf("%w: prospect has no coordination unit", xerrors.ErrForbidden)
		}
	}

	if err := e.prospects.ClearExecutive(ctx, prospectID); err != nil {
		return err
	}

	if reason == "" {
		reason = "unassignment"
	}
	e.writeAudit(ctx, &prospect.AssignmentAudit{
		ProspectID:  prospectID,
		PrevUnitID:  p.CoordinationUnitID,
		NextUnitID:  p.CoordinationUnitID,
		PrevExecID:  p.ExecutiveID,
		NextExecID:  nil,
		ActorUserID: &actorUserID,
		Reason:      reason,
	})

	e.logger.Info("prospect unassigned",
		zap.Int64("prospect_id", prospectID),
		zap.Int64("actor_user_id", actorUserID),
	)

	return nil
}

// AutoAssign allocates a coordination unit for an unassigned prospect
// through the database allocation procedure. The selection policy is
// opaque here; the result is mirrored onto the prospect row for read
// consistency. Only unassigned prospects are eligible: reallocating
// under an assigned executive would move the unit out from under them.
func (e *Engine) AutoAssign(ctx context.Context, prospectID int64) (*int64, error) {
	p, err := e.prospects.FindByID(ctx, prospectID)
	if err != nil {
		return nil, fmt.Errorf("prospect %d: %w", prospectID, err)
	}
	if p.ExecutiveID != nil {
		return nil, ErrAlreadyAssigned
	}
	if p.CoordinationUnitID != nil {
		// Repeat invocation by the automation; the earlier allocation
		// stands.
		return p.CoordinationUnitID, nil
	}

	unitID, err := e.units.AllocateUnit(ctx, prospectID)
	if err != nil {
		return nil, err
	}
	if unitID == nil {
		e.logger.Warn("allocation returned no unit", zap.Int64("prospect_id", prospectID))
		return nil, nil
	}

	if err := e.prospects.SetCoordinationUnit(ctx, prospectID, *unitID); err != nil {
		return nil, err
	}

	e.writeAudit(ctx, &prospect.AssignmentAudit{
		ProspectID: prospectID,
		PrevUnitID: p.CoordinationUnitID,
		NextUnitID: unitID,
		PrevExecID: p.ExecutiveID,
		NextExecID: p.ExecutiveID,
		Reason:     "auto-assignment",
	})

	e.logger.Info("prospect auto-assigned",
		zap.Int64("prospect_id", prospectID),
		zap.Int64("coordination_unit_id", *unitID),
	)

	return unitID, nil
}

// completenessGate blocks ordinary coordinators from assigning a
// prospect that lacks a CRM id and is missing a name or email. Admins
// and quality coordinators bypass the gate.
func (e *Engine) completenessGate(ctx context.Context, p *prospect.Prospect, actorUserID int64) error {
	if p.CRMID != nil && *p.CRMID != "" {
		return nil
	}

	actor, err := e.auth.ActorRole(ctx, actorUserID)
	if err != nil {
		return fmt.Errorf("%w: permission data unavailable", xerrors.ErrForbidden)
	}
	if actor.Role != staff.RoleCoordinator {
		return nil
	}

	if p.DisplayName() == "" || p.Email == nil || *p.Email == "" {
		return ErrIncompleteProspect
	}
	return nil
}

// writeAudit appends the audit record for a mutation that already
// committed. A failed append is logged, not propagated, so the caller
// is not told a durable assignment failed.
func (e *Engine) writeAudit(ctx context.Context, a *prospect.AssignmentAudit) {
	a.Reference = ulid.Make().String()
	if err := e.audit.Insert(ctx, a); err != nil {
		e.logger.Error("failed to write assignment audit",
			zap.Int64("prospect_id", a.ProspectID), zap.Error(err))
	}
}
