// internal/service/permissions/permissions.go
package permissions

import (
	"context"
	"fmt"
	"time"

	"prospect-service/internal/domain/prospect"
	"prospect-service/internal/domain/staff"
	"prospect-service/internal/pkg/cache"
	xerrors "prospect-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// unitCacheTTL bounds how stale a cached unit-membership read may be.
// Membership and backup relationships change mid-session, so the cache
// serves read paths only; authorization goes to the source tables.
const unitCacheTTL = 30 * time.Second

// UserSource resolves login identities.
type UserSource interface {
	FindByID(ctx context.Context, id int64) (*staff.User, error)
}

// StaffSource resolves staff rows and coordinator unit membership.
type StaffSource interface {
	FindExecutiveByID(ctx context.Context, id int64) (*staff.Executive, error)
	CoordinatorUnitIDs(ctx context.Context, coordinatorID int64) ([]int64, error)
}

// ProspectSource resolves prospect rows for access checks.
type ProspectSource interface {
	FindByID(ctx context.Context, id int64) (*prospect.Prospect, error)
}

// AccessDecision is the result of an access check. Reason carries a
// human-readable explanation when access is denied.
type AccessDecision struct {
	CanAccess bool   `json:"can_access"`
	Reason    string `json:"reason,omitempty"`
}

func allow() AccessDecision {
	return AccessDecision{CanAccess: true}
}

func deny(reason string) AccessDecision {
	return AccessDecision{CanAccess: false, Reason: reason}
}

// Resolver computes the visibility and assignment scope of a user from
// role, coordination-unit membership, and backup relationships.
type Resolver struct {
	users     UserSource
	staff     StaffSource
	prospects ProspectSource
	unitCache *cache.TTL[int64, []int64]
	logger    *zap.Logger
}

func NewResolver(users UserSource, staffSrc StaffSource, prospects ProspectSource, clock cache.Clock, logger *zap.Logger) *Resolver {
	return &Resolver{
		users:     users,
		staff:     staffSrc,
		prospects: prospects,
		unitCache: cache.NewTTL[int64, []int64](unitCacheTTL, clock),
		logger:    logger,
	}
}

// ActorRole loads and validates the acting user
func (r *Resolver) ActorRole(ctx context.Context, userID int64) (*staff.User, error) {
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user role: %w", err)
	}
	if !user.IsActive {
		return nil, xerrors.ErrForbidden
	}
	return user, nil
}

// ExecutiveFilter returns the executive id to filter listings by when
// the user has single-owner scope, nil for broader roles.
func (r *Resolver) ExecutiveFilter(ctx context.Context, userID int64) (*int64, error) {
	user, err := r.ActorRole(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.Role != staff.RoleExecutive {
		return nil, nil
	}
	if user.StaffID == nil {
		return nil, fmt.Errorf("executive user %d has no staff link", userID)
	}
	return user.StaffID, nil
}

// CoordinationUnitsFilter returns the coordination units the user may
// see. nil signals unrestricted scope (admin and quality coordinator).
// Results are cached briefly; this filter feeds listings, never the
// assignment authorization path.
func (r *Resolver) CoordinationUnitsFilter(ctx context.Context, userID int64) ([]int64, error) {
	user, err := r.ActorRole(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.Role == staff.RoleAdmin || user.Role == staff.RoleQualityCoordinator {
		return nil, nil
	}

	if units, ok := r.unitCache.Get(userID); ok {
		return units, nil
	}

	units, err := r.memberUnits(ctx, user)
	if err != nil {
		return nil, err
	}

	r.unitCache.Set(userID, units)
	return units, nil
}

// InvalidateUnits drops a user's cached unit scope, for callers that
// just changed membership.
func (r *Resolver) InvalidateUnits(userID int64) {
	r.unitCache.Invalidate(userID)
}

// Scope resolves both listing filters at once for the prospect list
// endpoint.
func (r *Resolver) Scope(ctx context.Context, userID int64) (unitIDs []int64, executiveID *int64, err error) {
	unitIDs, err = r.CoordinationUnitsFilter(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	executiveID, err = r.ExecutiveFilter(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return unitIDs, executiveID, nil
}

// IsCoordinator reports whether the user holds a coordinator-tier role.
// False on any lookup failure.
func (r *Resolver) IsCoordinator(ctx context.Context, userID int64) bool {
	user, err := r.ActorRole(ctx, userID)
	if err != nil {
		return false
	}
	return user.Role == staff.RoleCoordinator || user.Role == staff.RoleQualityCoordinator
}

// IsQualityCoordinator reports whether the user holds the quality
// coordinator role, which bypasses unit membership and the
// data-completeness gate. False on any lookup failure.
func (r *Resolver) IsQualityCoordinator(ctx context.Context, userID int64) bool {
	user, err := r.ActorRole(ctx, userID)
	if err != nil {
		return false
	}
	return user.Role == staff.RoleQualityCoordinator
}

// CanAccessProspect checks whether a user may see or act on a prospect.
// Fail-closed: any lookup failure denies with a reason rather than
// granting.
func (r *Resolver) CanAccessProspect(ctx context.Context, userID, prospectID int64) AccessDecision {
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		r.logger.Warn("access check: user lookup failed",
			zap.Int64("user_id", userID), zap.Error(err))
		return deny("permission data unavailable")
	}

	p, err := r.prospects.FindByID(ctx, prospectID)
	if err != nil {
		r.logger.Warn("access check: prospect lookup failed",
			zap.Int64("prospect_id", prospectID), zap.Error(err))
		return deny("prospect not found")
	}

	return r.CanAccessProspectRow(ctx, user, p)
}

// CanAccessProspectRow is the row-level variant for callers that
// already hold both records, such as the change-feed reconciler.
func (r *Resolver) CanAccessProspectRow(ctx context.Context, user *staff.User, p *prospect.Prospect) AccessDecision {
	if !user.IsActive {
		return deny("user is inactive")
	}

	switch user.Role {
	case staff.RoleAdmin, staff.RoleQualityCoordinator:
		return allow()

	case staff.RoleCoordinator:
		if p.CoordinationUnitID == nil {
			return deny("prospect has no coordination unit")
		}
		units, err := r.memberUnits(ctx, user)
		if err != nil {
			r.logger.Warn("access check: unit membership lookup failed",
				zap.Int64("user_id", user.ID), zap.Error(err))
			return deny("permission data unavailable")
		}
		if !containsUnit(units, *p.CoordinationUnitID) {
			return deny("prospect belongs to a coordination unit outside your scope")
		}
		return allow()

	case staff.RoleExecutive:
		if user.StaffID == nil {
			return deny("user has no staff record")
		}
		if p.ExecutiveID == nil {
			return deny("prospect is not assigned to you")
		}
		if *p.ExecutiveID == *user.StaffID {
			return allow()
		}
		// Backup expansion: a backup inherits visibility into the
		// covered executive's prospects without the prospect's
		// executive_id changing.
		owner, err := r.staff.FindExecutiveByID(ctx, *p.ExecutiveID)
		if err != nil {
			r.logger.Warn("access check: owner lookup failed",
				zap.Int64("executive_id", *p.ExecutiveID), zap.Error(err))
			return deny("permission data unavailable")
		}
		if owner.BackupID != nil && *owner.BackupID == *user.StaffID {
			return allow()
		}
		return deny("prospect belongs to another executive")

	default:
		return deny("unknown role")
	}
}

// CanAssignWithinUnit authorizes an assignment into a target unit.
// Always reads fresh membership; the short-lived cache is for listing
// scope only.
func (r *Resolver) CanAssignWithinUnit(ctx context.Context, userID, unitID int64) AccessDecision {
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		r.logger.Warn("assignment authorization: user lookup failed",
			zap.Int64("user_id", userID), zap.Error(err))
		return deny("permission data unavailable")
	}
	if !user.IsActive {
		return deny("user is inactive")
	}

	switch user.Role {
	case staff.RoleAdmin, staff.RoleQualityCoordinator:
		return allow()
	case staff.RoleCoordinator:
		units, err := r.memberUnits(ctx, user)
		if err != nil {
			r.logger.Warn("assignment authorization: unit membership lookup failed",
				zap.Int64("user_id", user.ID), zap.Error(err))
			return deny("permission data unavailable")
		}
		if !containsUnit(units, unitID) {
			return deny("you are not a member of the target coordination unit")
		}
		return allow()
	default:
		return deny("your role cannot reassign prospects")
	}
}

// memberUnits reads a user's unit scope from the source tables.
func (r *Resolver) memberUnits(ctx context.Context, user *staff.User) ([]int64, error) {
	if user.StaffID == nil {
		return nil, fmt.Errorf("user %d has no staff link", user.ID)
	}

	switch user.Role {
	case staff.RoleCoordinator:
		units, err := r.staff.CoordinatorUnitIDs(ctx, *user.StaffID)
		if err != nil {
			return nil, fmt.Errorf("failed to load coordinator units: %w", err)
		}
		return units, nil
	case staff.RoleExecutive:
		exec, err := r.staff.FindExecutiveByID(ctx, *user.StaffID)
		if err != nil {
			return nil, fmt.Errorf("failed to load executive: %w", err)
		}
		return []int64{exec.CoordinationUnitID}, nil
	default:
		return []int64{}, nil
	}
}

func containsUnit(units []int64, unitID int64) bool {
	for _, u := range units {
		if u == unitID {
			return true
		}
	}
	return false
}
