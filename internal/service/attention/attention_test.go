// internal/service/attention/attention_test.go
package attention

import (
	"context"
	"testing"
	"time"

	"prospect-service/internal/domain/prospect"
	"prospect-service/internal/domain/realtime"
	"prospect-service/internal/domain/staff"
	xerrors "prospect-service/internal/pkg/errors"
	"prospect-service/internal/service/permissions"

	"go.uber.org/zap"
)

type fakeAccess struct {
	allow func(user *staff.User, p *prospect.Prospect) bool
}

func (f *fakeAccess) CanAccessProspectRow(ctx context.Context, user *staff.User, p *prospect.Prospect) permissions.AccessDecision {
	if f.allow(user, p) {
		return permissions.AccessDecision{CanAccess: true}
	}
	return permissions.AccessDecision{CanAccess: false, Reason: "out of scope"}
}

type fakeMessages struct {
	lastInbound map[int64]*time.Time
}

func (f *fakeMessages) LastInboundAt(ctx context.Context, prospectID int64) (*time.Time, error) {
	return f.lastInbound[prospectID], nil
}

type fakeLister struct {
	flagged []prospect.Prospect
}

func (f *fakeLister) ListRequiringAttention(ctx context.Context) ([]prospect.Prospect, error) {
	return f.flagged, nil
}

type fakeUsers struct {
	users map[int64]*staff.User
}

func (f *fakeUsers) FindByID(ctx context.Context, id int64) (*staff.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return u, nil
}

type fakeCoverage struct {
	covering map[int64]int64 // viewer staff id -> covered executive id
}

func (f *fakeCoverage) CoveredBy(ctx context.Context, viewerStaffID, prospectExecutiveID int64) (*staff.Coverage, error) {
	if f.covering[viewerStaffID] == prospectExecutiveID {
		return &staff.Coverage{IsBackup: true, ExecutiveName: "covered"}, nil
	}
	return &staff.Coverage{}, nil
}

type notified struct {
	userID int64
	event  *realtime.AttentionEvent
}

type fakeNotifier struct {
	events []notified
}

func (f *fakeNotifier) AttentionChanged(userID int64, event *realtime.AttentionEvent) {
	f.events = append(f.events, notified{userID: userID, event: event})
}

func (f *fakeNotifier) forUser(userID int64) []*realtime.AttentionEvent {
	out := []*realtime.AttentionEvent{}
	for _, n := range f.events {
		if n.userID == userID {
			out = append(out, n.event)
		}
	}
	return out
}

func i64(v int64) *int64        { return &v }
func ts(t time.Time) *time.Time { return &t }

// executiveScope grants access only to prospects owned by the viewer's
// own staff id, mirroring the resolver's executive branch.
func executiveScope(user *staff.User, p *prospect.Prospect) bool {
	if user.StaffID == nil || p.ExecutiveID == nil {
		return false
	}
	return *p.ExecutiveID == *user.StaffID
}

type fixture struct {
	access   *fakeAccess
	messages *fakeMessages
	lister   *fakeLister
	users    *fakeUsers
	coverage *fakeCoverage
	notifier *fakeNotifier
	svc      *Service
}

func newFixture(allow func(*staff.User, *prospect.Prospect) bool) *fixture {
	f := &fixture{
		access:   &fakeAccess{allow: allow},
		messages: &fakeMessages{lastInbound: map[int64]*time.Time{}},
		lister:   &fakeLister{},
		users:    &fakeUsers{users: map[int64]*staff.User{}},
		coverage: &fakeCoverage{covering: map[int64]int64{}},
		notifier: &fakeNotifier{},
	}
	f.svc = NewService(f.access, f.messages, f.lister, f.users, f.coverage, f.notifier, zap.NewNop())
	return f
}

func flagged(id int64, execID int64, name string) prospect.Prospect {
	return prospect.Prospect{
		ID: id, FullName: &name, Phone: "555",
		ExecutiveID: i64(execID), CoordinationUnitID: i64(1),
		RequiresAttention: true, UpdatedAt: time.Now(),
	}
}

func TestRegisterViewer_SnapshotScopedAndOrdered(t *testing.T) {
	f := newFixture(executiveScope)
	f.users.users[1] = &staff.User{ID: 1, Role: staff.RoleExecutive, StaffID: i64(10), IsActive: true}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.lister.flagged = []prospect.Prospect{
		flagged(100, 10, "older"),
		flagged(101, 10, "newer"),
		flagged(102, 11, "foreign"),
	}
	f.messages.lastInbound[100] = ts(base)
	f.messages.lastInbound[101] = ts(base.Add(time.Hour))

	entries, err := f.svc.RegisterViewer(context.Background(), 1)
	if err != nil {
		t.Fatalf("RegisterViewer failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 scoped entries, got %d", len(entries))
	}
	if entries[0].ProspectID != 101 || entries[1].ProspectID != 100 {
		t.Errorf("expected order [101 100] by last message desc, got [%d %d]",
			entries[0].ProspectID, entries[1].ProspectID)
	}
}

func TestHandleChange_InsertRespectsScope(t *testing.T) {
	f := newFixture(executiveScope)
	f.users.users[1] = &staff.User{ID: 1, Role: staff.RoleExecutive, StaffID: i64(10), IsActive: true}
	if _, err := f.svc.RegisterViewer(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	// Flag flips true on a prospect owned by someone outside the
	// viewer's scope: must not appear.
	foreign := flagged(200, 11, "foreign")
	f.svc.HandleChange(context.Background(), &prospect.ChangeEvent{
		Op: prospect.OpUpdate, New: &foreign,
	})

	if len(f.svc.Snapshot(1)) != 0 {
		t.Error("out-of-scope prospect must not enter the viewer's list")
	}
	if len(f.notifier.forUser(1)) != 0 {
		t.Error("no notification expected for out-of-scope change")
	}

	// An owned prospect does appear.
	own := flagged(201, 10, "mine")
	f.svc.HandleChange(context.Background(), &prospect.ChangeEvent{
		Op: prospect.OpInsert, New: &own,
	})

	snap := f.svc.Snapshot(1)
	if len(snap) != 1 || snap[0].ProspectID != 201 {
		t.Fatalf("expected [201], got %+v", snap)
	}
	events := f.notifier.forUser(1)
	if len(events) != 1 || events[0].Type != realtime.EventTypeAttentionAdded {
		t.Errorf("expected one added event, got %+v", events)
	}
}

func TestHandleChange_FlagClearedRemoves(t *testing.T) {
	f := newFixture(executiveScope)
	f.users.users[1] = &staff.User{ID: 1, Role: staff.RoleExecutive, StaffID: i64(10), IsActive: true}
	f.lister.flagged = []prospect.Prospect{flagged(100, 10, "mine")}
	if _, err := f.svc.RegisterViewer(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	cleared := flagged(100, 10, "mine")
	cleared.RequiresAttention = false
	cleared.UpdatedAt = time.Now().Add(time.Minute)
	f.svc.HandleChange(context.Background(), &prospect.ChangeEvent{
		Op: prospect.OpUpdate, New: &cleared,
	})

	if len(f.svc.Snapshot(1)) != 0 {
		t.Error("entry must be removed when the flag clears")
	}
	events := f.notifier.forUser(1)
	if len(events) != 1 || events[0].Type != realtime.EventTypeAttentionRemoved {
		t.Errorf("expected one removed event, got %+v", events)
	}
}

func TestHandleChange_OwnershipMove(t *testing.T) {
	// Prospect 100 moves from executive 10 to executive 11 with the
	// flag still set: it must vanish for viewer 1 and appear for
	// viewer 2.
	f := newFixture(executiveScope)
	f.users.users[1] = &staff.User{ID: 1, Role: staff.RoleExecutive, StaffID: i64(10), IsActive: true}
	f.users.users[2] = &staff.User{ID: 2, Role: staff.RoleExecutive, StaffID: i64(11), IsActive: true}

	f.lister.flagged = []prospect.Prospect{flagged(100, 10, "moving")}
	if _, err := f.svc.RegisterViewer(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	f.lister.flagged = nil
	if _, err := f.svc.RegisterViewer(context.Background(), 2); err != nil {
		t.Fatal(err)
	}

	old := flagged(100, 10, "moving")
	moved := flagged(100, 11, "moving")
	moved.UpdatedAt = old.UpdatedAt.Add(time.Minute)
	f.svc.HandleChange(context.Background(), &prospect.ChangeEvent{
		Op: prospect.OpUpdate, Old: &old, New: &moved,
	})

	if len(f.svc.Snapshot(1)) != 0 {
		t.Error("previous owner's viewer must lose the entry")
	}
	snap2 := f.svc.Snapshot(2)
	if len(snap2) != 1 || snap2[0].ProspectID != 100 {
		t.Errorf("new owner's viewer must gain the entry, got %+v", snap2)
	}
}

func TestHandleChange_Dedup(t *testing.T) {
	f := newFixture(executiveScope)
	f.users.users[1] = &staff.User{ID: 1, Role: staff.RoleExecutive, StaffID: i64(10), IsActive: true}
	if _, err := f.svc.RegisterViewer(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	p := flagged(100, 10, "mine")
	ev := &prospect.ChangeEvent{Op: prospect.OpInsert, New: &p}
	f.svc.HandleChange(context.Background(), ev)
	f.svc.HandleChange(context.Background(), ev)

	if got := len(f.notifier.forUser(1)); got != 1 {
		t.Errorf("duplicate delivery must fire one notification, got %d", got)
	}
	if len(f.svc.Snapshot(1)) != 1 {
		t.Error("duplicate delivery must not duplicate the entry")
	}
}

func TestHandleChange_NoOpUpdateStaysQuiet(t *testing.T) {
	// An edit that touches none of the displayed fields must not fire a
	// resorted event, even though the rebuilt entry holds fresh pointer
	// allocations.
	f := newFixture(executiveScope)
	f.users.users[1] = &staff.User{ID: 1, Role: staff.RoleExecutive, StaffID: i64(10), IsActive: true}
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.messages.lastInbound[100] = ts(last)
	f.lister.flagged = []prospect.Prospect{flagged(100, 10, "mine")}
	if _, err := f.svc.RegisterViewer(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	same := flagged(100, 10, "mine")
	same.UpdatedAt = time.Now().Add(time.Minute)
	f.messages.lastInbound[100] = ts(last)
	f.svc.HandleChange(context.Background(), &prospect.ChangeEvent{
		Op: prospect.OpUpdate, New: &same,
	})

	if got := len(f.notifier.forUser(1)); got != 0 {
		t.Errorf("identical entry content must not notify, got %d events", got)
	}
}

func TestHandleChange_SameTimestampDistinctChanges(t *testing.T) {
	// Two different row states committed at the same updated_at must
	// both be applied; the dedup key cannot rest on the timestamp alone.
	f := newFixture(executiveScope)
	f.users.users[1] = &staff.User{ID: 1, Role: staff.RoleExecutive, StaffID: i64(10), IsActive: true}
	if _, err := f.svc.RegisterViewer(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	set := flagged(100, 10, "mine")
	set.UpdatedAt = stamp
	f.svc.HandleChange(context.Background(), &prospect.ChangeEvent{
		Op: prospect.OpUpdate, New: &set,
	})
	if len(f.svc.Snapshot(1)) != 1 {
		t.Fatal("expected entry after the flag was set")
	}

	cleared := flagged(100, 10, "mine")
	cleared.RequiresAttention = false
	cleared.UpdatedAt = stamp
	f.svc.HandleChange(context.Background(), &prospect.ChangeEvent{
		Op: prospect.OpUpdate, New: &cleared,
	})

	if len(f.svc.Snapshot(1)) != 0 {
		t.Error("flag clear sharing the set's timestamp must still remove the entry")
	}
}

func TestHandleChange_OldMissingFallback(t *testing.T) {
	// Update without the old row version while the entry is already
	// displayed: membership stands in for the missing old state, so
	// the result is a resort, not a duplicate add.
	f := newFixture(executiveScope)
	f.users.users[1] = &staff.User{ID: 1, Role: staff.RoleExecutive, StaffID: i64(10), IsActive: true}
	f.lister.flagged = []prospect.Prospect{flagged(100, 10, "mine")}
	if _, err := f.svc.RegisterViewer(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	updated := flagged(100, 10, "mine")
	updated.UpdatedAt = time.Now().Add(time.Minute)
	f.messages.lastInbound[100] = ts(time.Now())
	f.svc.HandleChange(context.Background(), &prospect.ChangeEvent{
		Op: prospect.OpUpdate, Old: nil, New: &updated,
	})

	snap := f.svc.Snapshot(1)
	if len(snap) != 1 {
		t.Fatalf("expected single entry after old-missing update, got %d", len(snap))
	}
	events := f.notifier.forUser(1)
	if len(events) != 1 || events[0].Type != realtime.EventTypeAttentionResorted {
		t.Errorf("expected one resorted event, got %+v", events)
	}
}

func TestSortEntries_NilTimestampsSink(t *testing.T) {
	now := time.Now()
	entries := []realtime.AttentionEntry{
		{ProspectID: 1},
		{ProspectID: 2, LastMessageAt: ts(now)},
		{ProspectID: 3, LastMessageAt: ts(now.Add(time.Minute))},
	}
	sortEntries(entries)

	if entries[0].ProspectID != 3 || entries[1].ProspectID != 2 || entries[2].ProspectID != 1 {
		t.Errorf("expected order [3 2 1], got [%d %d %d]",
			entries[0].ProspectID, entries[1].ProspectID, entries[2].ProspectID)
	}
}

func TestCoveredBackupLabel(t *testing.T) {
	f := newFixture(func(user *staff.User, p *prospect.Prospect) bool {
		// Viewer 1 (staff 10) covers executive 11 as backup.
		return executiveScope(user, p) || (p.ExecutiveID != nil && *p.ExecutiveID == 11)
	})
	f.users.users[1] = &staff.User{ID: 1, Role: staff.RoleExecutive, StaffID: i64(10), IsActive: true}
	f.coverage.covering[10] = 11
	f.lister.flagged = []prospect.Prospect{flagged(100, 11, "covered")}

	entries, err := f.svc.RegisterViewer(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !entries[0].CoveredBackup {
		t.Errorf("expected covered-backup label, got %+v", entries)
	}
}
