// internal/service/backup/backup.go
package backup

import (
	"context"
	"errors"
	"fmt"

	"prospect-service/internal/domain/staff"

	"go.uber.org/zap"
)

var (
	ErrSelfBackup      = errors.New("an executive cannot be their own backup")
	ErrBackupCycle     = errors.New("backup relationship would form a cycle")
	ErrBackupInactive  = errors.New("backup candidate is not active")
	ErrBackupNoPhone   = errors.New("backup candidate has no phone")
	ErrNoActiveBackup  = errors.New("executive has no active backup")
	ErrNoOriginalPhone = errors.New("no original phone stored for this executive")
)

// maxChainDepth bounds the cycle walk; backup chains in practice are
// one or two hops.
const maxChainDepth = 16

// StaffStore is the staff surface of the backup manager.
type StaffStore interface {
	FindExecutiveByID(ctx context.Context, id int64) (*staff.Executive, error)
	FindMemberByID(ctx context.Context, id int64) (staff.Member, error)
	ExecutivesByUnit(ctx context.Context, unitID int64) ([]staff.Executive, error)
	CoordinatorsByUnit(ctx context.Context, unitID int64) ([]staff.Coordinator, error)
	UpdateBackup(ctx context.Context, executiveID int64, phone string, originalPhone *string, backupID *int64, hasBackup bool) error
}

// Manager owns the backup relationship of executives. Activation swaps
// the executive's live phone for the backup's, because inbound routing
// in the telephony collaborator is keyed by phone number; the original
// phone is preserved so the swap reverses exactly once.
type Manager struct {
	staff  StaffStore
	logger *zap.Logger
}

func NewManager(staffStore StaffStore, logger *zap.Logger) *Manager {
	return &Manager{staff: staffStore, logger: logger}
}

// AssignBackup activates backup coverage for an executive.
// Re-activating with the same or a different backup keeps the first
// captured original phone.
func (m *Manager) AssignBackup(ctx context.Context, executiveID, backupID int64) error {
	if executiveID == backupID {
		return ErrSelfBackup
	}

	exec, err := m.staff.FindExecutiveByID(ctx, executiveID)
	if err != nil {
		return fmt.Errorf("executive %d: %w", executiveID, err)
	}

	candidate, err := m.staff.FindMemberByID(ctx, backupID)
	if err != nil {
		return fmt.Errorf("backup candidate %d: %w", backupID, err)
	}
	if !candidate.MemberActive() {
		return ErrBackupInactive
	}
	if candidate.MemberPhone() == "" {
		return ErrBackupNoPhone
	}

	if candidate.MemberKind() == staff.KindExecutive {
		if err := m.checkChain(ctx, executiveID, backupID); err != nil {
			return err
		}
	}

	// Idempotence guard: only the first activation captures the
	// executive's own phone. A second activation must not overwrite it
	// with the previous backup's phone.
	originalPhone := exec.OriginalPhone
	if originalPhone == nil || *originalPhone == "" {
		phone := exec.Phone
		originalPhone = &phone
	}

	if err := m.staff.UpdateBackup(ctx, executiveID, candidate.MemberPhone(), originalPhone, &backupID, true); err != nil {
		return err
	}

	m.logger.Info("backup activated",
		zap.Int64("executive_id", executiveID),
		zap.Int64("backup_id", backupID),
		zap.String("backup_kind", string(candidate.MemberKind())),
	)

	return nil
}

// RemoveBackup reverses a backup activation, restoring the phone
// captured on first activation. A missing original phone is an
// explicit error; restoring an empty phone would strand the
// executive's inbound routing.
func (m *Manager) RemoveBackup(ctx context.Context, executiveID int64) error {
	exec, err := m.staff.FindExecutiveByID(ctx, executiveID)
	if err != nil {
		return fmt.Errorf("executive %d: %w", executiveID, err)
	}

	if exec.BackupID == nil && !exec.HasBackup {
		return ErrNoActiveBackup
	}
	if exec.OriginalPhone == nil || *exec.OriginalPhone == "" {
		return ErrNoOriginalPhone
	}

	if err := m.staff.UpdateBackup(ctx, executiveID, *exec.OriginalPhone, nil, nil, false); err != nil {
		return err
	}

	m.logger.Info("backup removed",
		zap.Int64("executive_id", executiveID),
	)

	return nil
}

// AvailableBackups lists coverage candidates for an executive of a
// unit: active operational executives of the same unit with a phone,
// excluding the requester. When that pool is empty it broadens to the
// unit's active coordinators, so a lone executive in a small unit is
// never stranded without coverage.
func (m *Manager) AvailableBackups(ctx context.Context, unitID, excludeExecutiveID int64) ([]staff.BackupCandidate, error) {
	executives, err := m.staff.ExecutivesByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}

	candidates := []staff.BackupCandidate{}
	for _, e := range executives {
		if e.ID == excludeExecutiveID || !e.IsActive || !e.IsOperational || e.Phone == "" {
			continue
		}
		candidates = append(candidates, staff.BackupCandidate{
			StaffID:  e.ID,
			Kind:     staff.KindExecutive,
			FullName: e.FullName,
			Phone:    e.Phone,
		})
	}
	if len(candidates) > 0 {
		return candidates, nil
	}

	coordinators, err := m.staff.CoordinatorsByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	for _, c := range coordinators {
		if c.ID == excludeExecutiveID || !c.IsActive || c.Phone == "" {
			continue
		}
		candidates = append(candidates, staff.BackupCandidate{
			StaffID:  c.ID,
			Kind:     staff.KindCoordinator,
			FullName: c.FullName,
			Phone:    c.Phone,
		})
	}

	return candidates, nil
}

// CoveredBy reports whether a viewer is covering the prospect's
// executive as backup, for labeling covered prospects in listings.
func (m *Manager) CoveredBy(ctx context.Context, viewerStaffID, prospectExecutiveID int64) (*staff.Coverage, error) {
	owner, err := m.staff.FindExecutiveByID(ctx, prospectExecutiveID)
	if err != nil {
		return nil, fmt.Errorf("executive %d: %w", prospectExecutiveID, err)
	}

	if owner.BackupID != nil && *owner.BackupID == viewerStaffID {
		return &staff.Coverage{IsBackup: true, ExecutiveName: owner.FullName}, nil
	}
	return &staff.Coverage{IsBackup: false}, nil
}

// checkChain rejects a backup assignment whose chain of executive
// backups loops back to the requesting executive.
func (m *Manager) checkChain(ctx context.Context, executiveID, backupID int64) error {
	current := backupID
	for depth := 0; depth < maxChainDepth; depth++ {
		e, err := m.staff.FindExecutiveByID(ctx, current)
		if err != nil {
			return fmt.Errorf("backup chain member %d: %w", current, err)
		}
		if e.BackupID == nil {
			return nil
		}
		if *e.BackupID == executiveID {
			return ErrBackupCycle
		}
		current = *e.BackupID
	}
	return ErrBackupCycle
}
