// internal/service/permissions/permissions_test.go
package permissions

import (
	"context"
	"errors"
	"testing"
	"time"

	"prospect-service/internal/domain/prospect"
	"prospect-service/internal/domain/staff"
	xerrors "prospect-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type fakeUsers struct {
	users map[int64]*staff.User
	err   error
}

func (f *fakeUsers) FindByID(ctx context.Context, id int64) (*staff.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return u, nil
}

type fakeStaff struct {
	executives map[int64]*staff.Executive
	coordUnits map[int64][]int64
	err        error
}

func (f *fakeStaff) FindExecutiveByID(ctx context.Context, id int64) (*staff.Executive, error) {
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.executives[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return e, nil
}

func (f *fakeStaff) CoordinatorUnitIDs(ctx context.Context, coordinatorID int64) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.coordUnits[coordinatorID], nil
}

type fakeProspects struct {
	prospects map[int64]*prospect.Prospect
	err       error
}

func (f *fakeProspects) FindByID(ctx context.Context, id int64) (*prospect.Prospect, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.prospects[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return p, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func i64(v int64) *int64 { return &v }

func activeUser(id int64, role staff.Role, staffID *int64) *staff.User {
	return &staff.User{ID: id, Role: role, StaffID: staffID, IsActive: true}
}

func newFixture() (*fakeUsers, *fakeStaff, *fakeProspects, *fakeClock, *Resolver) {
	users := &fakeUsers{users: map[int64]*staff.User{}}
	staffSrc := &fakeStaff{
		executives: map[int64]*staff.Executive{},
		coordUnits: map[int64][]int64{},
	}
	prospects := &fakeProspects{prospects: map[int64]*prospect.Prospect{}}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	r := NewResolver(users, staffSrc, prospects, clock, zap.NewNop())
	return users, staffSrc, prospects, clock, r
}

func TestExecutiveFilter(t *testing.T) {
	users, _, _, _, r := newFixture()
	users.users[1] = activeUser(1, staff.RoleExecutive, i64(10))
	users.users[2] = activeUser(2, staff.RoleCoordinator, i64(20))

	filter, err := r.ExecutiveFilter(context.Background(), 1)
	if err != nil {
		t.Fatalf("ExecutiveFilter returned error: %v", err)
	}
	if filter == nil || *filter != 10 {
		t.Errorf("expected executive filter 10, got %v", filter)
	}

	filter, err = r.ExecutiveFilter(context.Background(), 2)
	if err != nil {
		t.Fatalf("ExecutiveFilter returned error: %v", err)
	}
	if filter != nil {
		t.Errorf("expected nil filter for coordinator, got %d", *filter)
	}
}

func TestCoordinationUnitsFilter(t *testing.T) {
	users, staffSrc, _, _, r := newFixture()
	users.users[1] = activeUser(1, staff.RoleAdmin, nil)
	users.users[2] = activeUser(2, staff.RoleCoordinator, i64(20))
	users.users[3] = activeUser(3, staff.RoleExecutive, i64(30))
	users.users[4] = activeUser(4, staff.RoleQualityCoordinator, i64(40))
	staffSrc.coordUnits[20] = []int64{1, 2}
	staffSrc.executives[30] = &staff.Executive{ID: 30, CoordinationUnitID: 5, IsActive: true}

	units, err := r.CoordinationUnitsFilter(context.Background(), 1)
	if err != nil {
		t.Fatalf("admin filter error: %v", err)
	}
	if units != nil {
		t.Errorf("expected unrestricted (nil) scope for admin, got %v", units)
	}

	units, err = r.CoordinationUnitsFilter(context.Background(), 4)
	if err != nil {
		t.Fatalf("quality coordinator filter error: %v", err)
	}
	if units != nil {
		t.Errorf("expected unrestricted (nil) scope for quality coordinator, got %v", units)
	}

	units, err = r.CoordinationUnitsFilter(context.Background(), 2)
	if err != nil {
		t.Fatalf("coordinator filter error: %v", err)
	}
	if len(units) != 2 || units[0] != 1 || units[1] != 2 {
		t.Errorf("expected units [1 2], got %v", units)
	}

	units, err = r.CoordinationUnitsFilter(context.Background(), 3)
	if err != nil {
		t.Fatalf("executive filter error: %v", err)
	}
	if len(units) != 1 || units[0] != 5 {
		t.Errorf("expected units [5], got %v", units)
	}
}

func TestCoordinationUnitsFilter_CacheExpiry(t *testing.T) {
	users, staffSrc, _, clock, r := newFixture()
	users.users[2] = activeUser(2, staff.RoleCoordinator, i64(20))
	staffSrc.coordUnits[20] = []int64{1}

	units, err := r.CoordinationUnitsFilter(context.Background(), 2)
	if err != nil {
		t.Fatalf("filter error: %v", err)
	}
	if len(units) != 1 || units[0] != 1 {
		t.Fatalf("expected units [1], got %v", units)
	}

	// Membership changes; within the TTL the stale scope is served.
	staffSrc.coordUnits[20] = []int64{1, 2}
	clock.Advance(10 * time.Second)

	units, _ = r.CoordinationUnitsFilter(context.Background(), 2)
	if len(units) != 1 {
		t.Errorf("expected cached units [1] within TTL, got %v", units)
	}

	clock.Advance(25 * time.Second)

	units, _ = r.CoordinationUnitsFilter(context.Background(), 2)
	if len(units) != 2 {
		t.Errorf("expected refreshed units [1 2] after expiry, got %v", units)
	}
}

func TestCanAssignWithinUnit_BypassesCache(t *testing.T) {
	users, staffSrc, _, _, r := newFixture()
	users.users[2] = activeUser(2, staff.RoleCoordinator, i64(20))
	staffSrc.coordUnits[20] = []int64{1}

	// Prime the read cache.
	if _, err := r.CoordinationUnitsFilter(context.Background(), 2); err != nil {
		t.Fatalf("filter error: %v", err)
	}

	// Membership revoked. The authorization path must see it
	// immediately, regardless of cache freshness.
	staffSrc.coordUnits[20] = []int64{}

	d := r.CanAssignWithinUnit(context.Background(), 2, 1)
	if d.CanAccess {
		t.Error("expected denial after membership revocation, cache must not apply")
	}
}

func TestCanAssignWithinUnit_Roles(t *testing.T) {
	users, staffSrc, _, _, r := newFixture()
	users.users[1] = activeUser(1, staff.RoleAdmin, nil)
	users.users[2] = activeUser(2, staff.RoleCoordinator, i64(20))
	users.users[3] = activeUser(3, staff.RoleExecutive, i64(30))
	users.users[4] = activeUser(4, staff.RoleQualityCoordinator, i64(40))
	staffSrc.coordUnits[20] = []int64{7}

	if d := r.CanAssignWithinUnit(context.Background(), 1, 7); !d.CanAccess {
		t.Errorf("admin should be allowed: %s", d.Reason)
	}
	if d := r.CanAssignWithinUnit(context.Background(), 4, 7); !d.CanAccess {
		t.Errorf("quality coordinator should be allowed: %s", d.Reason)
	}
	if d := r.CanAssignWithinUnit(context.Background(), 2, 7); !d.CanAccess {
		t.Errorf("member coordinator should be allowed: %s", d.Reason)
	}
	if d := r.CanAssignWithinUnit(context.Background(), 2, 8); d.CanAccess {
		t.Error("non-member coordinator should be denied")
	}
	if d := r.CanAssignWithinUnit(context.Background(), 3, 7); d.CanAccess {
		t.Error("executive should be denied assignment authority")
	}
}

func TestCanAccessProspect_FailClosed(t *testing.T) {
	users, _, prospects, _, r := newFixture()
	users.err = errors.New("connection reset")
	prospects.prospects[100] = &prospect.Prospect{ID: 100}

	d := r.CanAccessProspect(context.Background(), 1, 100)
	if d.CanAccess {
		t.Fatal("expected denial when user lookup fails")
	}
	if d.Reason == "" {
		t.Error("expected a reason on fail-closed denial")
	}

	users.err = nil
	users.users[1] = activeUser(1, staff.RoleAdmin, nil)
	prospects.err = errors.New("connection reset")

	d = r.CanAccessProspect(context.Background(), 1, 100)
	if d.CanAccess {
		t.Fatal("expected denial when prospect lookup fails")
	}
}

func TestCanAccessProspect_ExecutiveScope(t *testing.T) {
	users, staffSrc, prospects, _, r := newFixture()
	users.users[1] = activeUser(1, staff.RoleExecutive, i64(10))
	staffSrc.executives[10] = &staff.Executive{ID: 10, CoordinationUnitID: 1, IsActive: true}
	staffSrc.executives[11] = &staff.Executive{ID: 11, CoordinationUnitID: 1, IsActive: true}
	prospects.prospects[100] = &prospect.Prospect{ID: 100, ExecutiveID: i64(10), CoordinationUnitID: i64(1)}
	prospects.prospects[101] = &prospect.Prospect{ID: 101, ExecutiveID: i64(11), CoordinationUnitID: i64(1)}
	prospects.prospects[102] = &prospect.Prospect{ID: 102}

	if d := r.CanAccessProspect(context.Background(), 1, 100); !d.CanAccess {
		t.Errorf("own prospect should be accessible: %s", d.Reason)
	}
	if d := r.CanAccessProspect(context.Background(), 1, 101); d.CanAccess {
		t.Error("another executive's prospect should be denied")
	}
	if d := r.CanAccessProspect(context.Background(), 1, 102); d.CanAccess {
		t.Error("unassigned prospect should be denied for executive scope")
	}
}

func TestCanAccessProspect_BackupExpansion(t *testing.T) {
	users, staffSrc, prospects, _, r := newFixture()
	users.users[1] = activeUser(1, staff.RoleExecutive, i64(10))
	// Executive 11 is covered by executive 10 as backup.
	staffSrc.executives[11] = &staff.Executive{
		ID: 11, CoordinationUnitID: 1, IsActive: true,
		BackupID: i64(10), HasBackup: true,
	}
	prospects.prospects[101] = &prospect.Prospect{ID: 101, ExecutiveID: i64(11), CoordinationUnitID: i64(1)}

	d := r.CanAccessProspect(context.Background(), 1, 101)
	if !d.CanAccess {
		t.Errorf("backup should inherit visibility into covered executive's prospect: %s", d.Reason)
	}
}

func TestCanAccessProspect_CoordinatorScope(t *testing.T) {
	users, staffSrc, prospects, _, r := newFixture()
	users.users[2] = activeUser(2, staff.RoleCoordinator, i64(20))
	staffSrc.coordUnits[20] = []int64{1, 2}
	prospects.prospects[100] = &prospect.Prospect{ID: 100, CoordinationUnitID: i64(2)}
	prospects.prospects[101] = &prospect.Prospect{ID: 101, CoordinationUnitID: i64(3)}
	prospects.prospects[102] = &prospect.Prospect{ID: 102}

	if d := r.CanAccessProspect(context.Background(), 2, 100); !d.CanAccess {
		t.Errorf("prospect inside scope should be accessible: %s", d.Reason)
	}
	if d := r.CanAccessProspect(context.Background(), 2, 101); d.CanAccess {
		t.Error("prospect outside unit scope should be denied")
	}
	if d := r.CanAccessProspect(context.Background(), 2, 102); d.CanAccess {
		t.Error("prospect without a unit should be denied for coordinator scope")
	}
}

func TestRoleChecks(t *testing.T) {
	users, _, _, _, r := newFixture()
	users.users[1] = activeUser(1, staff.RoleCoordinator, i64(20))
	users.users[2] = activeUser(2, staff.RoleQualityCoordinator, i64(21))
	users.users[3] = activeUser(3, staff.RoleExecutive, i64(22))

	if !r.IsCoordinator(context.Background(), 1) {
		t.Error("coordinator should satisfy IsCoordinator")
	}
	if !r.IsCoordinator(context.Background(), 2) {
		t.Error("quality coordinator should satisfy IsCoordinator")
	}
	if r.IsCoordinator(context.Background(), 3) {
		t.Error("executive should not satisfy IsCoordinator")
	}
	if r.IsQualityCoordinator(context.Background(), 1) {
		t.Error("ordinary coordinator should not satisfy IsQualityCoordinator")
	}
	if !r.IsQualityCoordinator(context.Background(), 2) {
		t.Error("quality coordinator should satisfy IsQualityCoordinator")
	}
	if r.IsCoordinator(context.Background(), 99) {
		t.Error("unknown user must resolve to false, not error")
	}
}
