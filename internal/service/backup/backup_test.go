// internal/service/backup/backup_test.go
package backup

import (
	"context"
	"errors"
	"testing"

	"prospect-service/internal/domain/staff"
	xerrors "prospect-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type fakeStaff struct {
	executives   map[int64]*staff.Executive
	coordinators map[int64]*staff.Coordinator
}

func newFakeStaff() *fakeStaff {
	return &fakeStaff{
		executives:   map[int64]*staff.Executive{},
		coordinators: map[int64]*staff.Coordinator{},
	}
}

func (f *fakeStaff) FindExecutiveByID(ctx context.Context, id int64) (*staff.Executive, error) {
	e, ok := f.executives[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return e, nil
}

func (f *fakeStaff) FindMemberByID(ctx context.Context, id int64) (staff.Member, error) {
	if e, ok := f.executives[id]; ok {
		return e, nil
	}
	if c, ok := f.coordinators[id]; ok {
		return c, nil
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeStaff) ExecutivesByUnit(ctx context.Context, unitID int64) ([]staff.Executive, error) {
	out := []staff.Executive{}
	for _, e := range f.executives {
		if e.CoordinationUnitID == unitID && e.IsActive {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStaff) CoordinatorsByUnit(ctx context.Context, unitID int64) ([]staff.Coordinator, error) {
	out := []staff.Coordinator{}
	for _, c := range f.coordinators {
		if !c.IsActive {
			continue
		}
		for _, u := range c.UnitIDs {
			if u == unitID {
				out = append(out, *c)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStaff) UpdateBackup(ctx context.Context, executiveID int64, phone string, originalPhone *string, backupID *int64, hasBackup bool) error {
	e, ok := f.executives[executiveID]
	if !ok {
		return xerrors.ErrNotFound
	}
	e.Phone = phone
	e.OriginalPhone = originalPhone
	e.BackupID = backupID
	e.HasBackup = hasBackup
	return nil
}

func i64(v int64) *int64 { return &v }

func exec(id, unitID int64, phone string) *staff.Executive {
	return &staff.Executive{
		ID: id, FullName: "exec", CoordinationUnitID: unitID,
		Phone: phone, IsActive: true, IsOperational: true,
	}
}

func TestAssignBackup_Scenario(t *testing.T) {
	fs := newFakeStaff()
	fs.executives[1] = exec(1, 1, "555-0001")
	fs.executives[2] = exec(2, 1, "555-0002")
	m := NewManager(fs, zap.NewNop())

	candidates, err := m.AvailableBackups(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("AvailableBackups failed: %v", err)
	}
	if len(candidates) != 1 || candidates[0].StaffID != 2 {
		t.Fatalf("expected candidate pool [2], got %+v", candidates)
	}

	if err := m.AssignBackup(context.Background(), 1, 2); err != nil {
		t.Fatalf("AssignBackup failed: %v", err)
	}

	e := fs.executives[1]
	if e.Phone != "555-0002" {
		t.Errorf("expected live phone 555-0002, got %s", e.Phone)
	}
	if e.OriginalPhone == nil || *e.OriginalPhone != "555-0001" {
		t.Errorf("expected original phone 555-0001, got %v", e.OriginalPhone)
	}
	if !e.HasBackup || e.BackupID == nil || *e.BackupID != 2 {
		t.Errorf("backup fields wrong: has=%v id=%v", e.HasBackup, e.BackupID)
	}
}

func TestAssignBackup_Idempotence(t *testing.T) {
	fs := newFakeStaff()
	fs.executives[1] = exec(1, 1, "555-0001")
	fs.executives[2] = exec(2, 1, "555-0002")
	fs.executives[3] = exec(3, 1, "555-0003")
	m := NewManager(fs, zap.NewNop())

	if err := m.AssignBackup(context.Background(), 1, 2); err != nil {
		t.Fatalf("first activation failed: %v", err)
	}
	// Double activation, then a different backup. Neither may
	// overwrite the phone captured on first activation.
	if err := m.AssignBackup(context.Background(), 1, 2); err != nil {
		t.Fatalf("re-activation failed: %v", err)
	}
	if err := m.AssignBackup(context.Background(), 1, 3); err != nil {
		t.Fatalf("backup switch failed: %v", err)
	}

	e := fs.executives[1]
	if e.OriginalPhone == nil || *e.OriginalPhone != "555-0001" {
		t.Errorf("original phone must survive re-activation, got %v", e.OriginalPhone)
	}
	if e.Phone != "555-0003" {
		t.Errorf("live phone should follow the current backup, got %s", e.Phone)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	fs := newFakeStaff()
	fs.executives[1] = exec(1, 1, "555-0001")
	fs.executives[2] = exec(2, 1, "555-0002")
	m := NewManager(fs, zap.NewNop())

	if err := m.AssignBackup(context.Background(), 1, 2); err != nil {
		t.Fatalf("AssignBackup failed: %v", err)
	}
	if err := m.RemoveBackup(context.Background(), 1); err != nil {
		t.Fatalf("RemoveBackup failed: %v", err)
	}

	e := fs.executives[1]
	if e.Phone != "555-0001" {
		t.Errorf("phone must be restored to pre-activation value, got %s", e.Phone)
	}
	if e.BackupID != nil || e.HasBackup || e.OriginalPhone != nil {
		t.Errorf("backup fields must be cleared: id=%v has=%v orig=%v",
			e.BackupID, e.HasBackup, e.OriginalPhone)
	}
}

func TestRemoveBackup_MissingOriginalPhone(t *testing.T) {
	fs := newFakeStaff()
	e := exec(1, 1, "555-0002")
	e.BackupID = i64(2)
	e.HasBackup = true
	fs.executives[1] = e
	m := NewManager(fs, zap.NewNop())

	err := m.RemoveBackup(context.Background(), 1)
	if !errors.Is(err, ErrNoOriginalPhone) {
		t.Errorf("expected ErrNoOriginalPhone, got %v", err)
	}
	if fs.executives[1].Phone != "555-0002" {
		t.Error("phone must not be touched when restore data is missing")
	}
}

func TestRemoveBackup_NoActiveBackup(t *testing.T) {
	fs := newFakeStaff()
	fs.executives[1] = exec(1, 1, "555-0001")
	m := NewManager(fs, zap.NewNop())

	if err := m.RemoveBackup(context.Background(), 1); !errors.Is(err, ErrNoActiveBackup) {
		t.Errorf("expected ErrNoActiveBackup, got %v", err)
	}
}

func TestAssignBackup_Rejections(t *testing.T) {
	fs := newFakeStaff()
	fs.executives[1] = exec(1, 1, "555-0001")
	fs.executives[2] = exec(2, 1, "")
	inactive := exec(3, 1, "555-0003")
	inactive.IsActive = false
	fs.executives[3] = inactive
	m := NewManager(fs, zap.NewNop())

	if err := m.AssignBackup(context.Background(), 1, 1); !errors.Is(err, ErrSelfBackup) {
		t.Errorf("expected ErrSelfBackup, got %v", err)
	}
	if err := m.AssignBackup(context.Background(), 1, 2); !errors.Is(err, ErrBackupNoPhone) {
		t.Errorf("expected ErrBackupNoPhone, got %v", err)
	}
	if err := m.AssignBackup(context.Background(), 1, 3); !errors.Is(err, ErrBackupInactive) {
		t.Errorf("expected ErrBackupInactive, got %v", err)
	}
}

func TestAssignBackup_CycleRejected(t *testing.T) {
	fs := newFakeStaff()
	fs.executives[1] = exec(1, 1, "555-0001")
	e2 := exec(2, 1, "555-0002")
	e2.BackupID = i64(1)
	e2.HasBackup = true
	fs.executives[2] = e2
	m := NewManager(fs, zap.NewNop())

	// 2 is already backed by 1; making 2 the backup of 1 would loop.
	if err := m.AssignBackup(context.Background(), 1, 2); !errors.Is(err, ErrBackupCycle) {
		t.Errorf("expected ErrBackupCycle, got %v", err)
	}
}

func TestAvailableBackups_CoordinatorFallback(t *testing.T) {
	fs := newFakeStaff()
	fs.executives[1] = exec(1, 1, "555-0001")
	// Only other executive in the unit is not operational.
	e2 := exec(2, 1, "555-0002")
	e2.IsOperational = false
	fs.executives[2] = e2
	fs.coordinators[10] = &staff.Coordinator{
		ID: 10, FullName: "coord", Phone: "555-0010", IsActive: true, UnitIDs: []int64{1},
	}
	fs.coordinators[11] = &staff.Coordinator{
		ID: 11, FullName: "no phone", IsActive: true, UnitIDs: []int64{1},
	}
	m := NewManager(fs, zap.NewNop())

	candidates, err := m.AvailableBackups(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("AvailableBackups failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 coordinator candidate, got %+v", candidates)
	}
	if candidates[0].StaffID != 10 || candidates[0].Kind != staff.KindCoordinator {
		t.Errorf("expected coordinator 10, got %+v", candidates[0])
	}
}

func TestCoveredBy(t *testing.T) {
	fs := newFakeStaff()
	owner := exec(1, 1, "555-0002")
	owner.FullName = "Luis Parra"
	owner.BackupID = i64(2)
	owner.HasBackup = true
	fs.executives[1] = owner
	m := NewManager(fs, zap.NewNop())

	cov, err := m.CoveredBy(context.Background(), 2, 1)
	if err != nil {
		t.Fatalf("CoveredBy failed: %v", err)
	}
	if !cov.IsBackup || cov.ExecutiveName != "Luis Parra" {
		t.Errorf("expected coverage of Luis Parra, got %+v", cov)
	}

	cov, err = m.CoveredBy(context.Background(), 3, 1)
	if err != nil {
		t.Fatalf("CoveredBy failed: %v", err)
	}
	if cov.IsBackup {
		t.Error("staff 3 is not the backup and must not be reported as covering")
	}
}
