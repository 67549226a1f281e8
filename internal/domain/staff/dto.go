// internal/domain/staff/dto.go
package staff

import "time"

// BackupCandidate is a staff member eligible to cover an absent
// executive. Kind distinguishes the executive pool from the
// coordinator fallback pool.
type BackupCandidate struct {
	StaffID  int64  `json:"staff_id"`
	Kind     Kind   `json:"kind"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// Coverage reports whether a viewer is covering a prospect's
// executive as their backup, for UI labeling.
type Coverage struct {
	IsBackup      bool   `json:"is_backup"`
	ExecutiveName string `json:"executive_name,omitempty"`
}

// AssignBackupRequest activates backup coverage for an executive.
type AssignBackupRequest struct {
	BackupID int64 `json:"backup_id" binding:"required"`
}

// UnitWithExecutives is a coordination unit plus its assignable
// executives, used by the assignment menu.
type UnitWithExecutives struct {
	Unit       CoordinationUnit `json:"unit"`
	Executives []Executive      `json:"executives"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Device   string `json:"device"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}
