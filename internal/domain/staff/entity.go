// internal/domain/staff/entity.go
package staff

import "time"

// Role is the access tier attached to a dashboard user.
type Role string

const (
	RoleAdmin              Role = "admin"
	RoleCoordinator        Role = "coordinator"
	RoleQualityCoordinator Role = "quality_coordinator"
	RoleExecutive          Role = "executive"
)

// Kind tags the two staff variants stored in the staff table.
type Kind string

const (
	KindExecutive   Kind = "executive"
	KindCoordinator Kind = "coordinator"
)

// Member is the common surface of the two staff variants. Both an
// Executive and a Coordinator can be offered as a backup candidate,
// so phone and unit membership live on the interface.
type Member interface {
	MemberID() int64
	MemberKind() Kind
	MemberName() string
	MemberEmail() string
	MemberPhone() string
	MemberUnits() []int64
	MemberActive() bool
}

// Executive owns prospects inside a single coordination unit.
type Executive struct {
	ID                 int64   `json:"id"`
	FullName           string  `json:"full_name"`
	Email              string  `json:"email"`
	Phone              string  `json:"phone"`
	CoordinationUnitID int64   `json:"coordination_unit_id"`
	IsActive           bool    `json:"is_active"`
	IsOperational      bool    `json:"is_operational"`
	BackupID           *int64  `json:"backup_id,omitempty"`
	OriginalPhone      *string `json:"original_phone,omitempty"`
	HasBackup          bool    `json:"has_backup"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Executive) MemberID() int64     { return e.ID }
func (e *Executive) MemberKind() Kind    { return KindExecutive }
func (e *Executive) MemberName() string  { return e.FullName }
func (e *Executive) MemberEmail() string { return e.Email }
func (e *Executive) MemberPhone() string { return e.Phone }
func (e *Executive) MemberUnits() []int64 {
	return []int64{e.CoordinationUnitID}
}
func (e *Executive) MemberActive() bool { return e.IsActive }

// Coordinator oversees one or more coordination units through the
// coordinator_units membership table.
type Coordinator struct {
	ID       int64   `json:"id"`
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Phone    string  `json:"phone"`
	IsActive bool    `json:"is_active"`
	UnitIDs  []int64 `json:"unit_ids"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Coordinator) MemberID() int64      { return c.ID }
func (c *Coordinator) MemberKind() Kind     { return KindCoordinator }
func (c *Coordinator) MemberName() string   { return c.FullName }
func (c *Coordinator) MemberEmail() string  { return c.Email }
func (c *Coordinator) MemberPhone() string  { return c.Phone }
func (c *Coordinator) MemberUnits() []int64 { return c.UnitIDs }
func (c *Coordinator) MemberActive() bool   { return c.IsActive }

// CoordinationUnit is an organizational partition bounding prospect
// visibility and assignment scope.
type CoordinationUnit struct {
	ID         int64     `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	IsActive   bool      `json:"is_active"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AssignableTarget reports whether the unit may receive new assignments.
// Archived or inactive units keep their existing prospects but are
// excluded from target listings.
func (u *CoordinationUnit) AssignableTarget() bool {
	return u.IsActive && !u.IsArchived
}

// User is a login identity. StaffID links it to the staff row the
// role scopes over; admins have no staff row.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	StaffID      *int64    `json:"staff_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
