// internal/domain/prospect/dto.go
package prospect

import "time"

// AssignRequest is a single manual assignment.
type AssignRequest struct {
	CoordinationUnitID int64  `json:"coordination_unit_id" binding:"required"`
	ExecutiveID        int64  `json:"executive_id" binding:"required"`
	Reason             string `json:"reason"`
}

// BulkAssignRequest applies one target to many prospects.
type BulkAssignRequest struct {
	ProspectIDs        []int64 `json:"prospect_ids" binding:"required"`
	CoordinationUnitID int64   `json:"coordination_unit_id" binding:"required"`
	ExecutiveID        int64   `json:"executive_id" binding:"required"`
	Reason             string  `json:"reason"`
}

// UnassignRequest clears a prospect's executive.
type UnassignRequest struct {
	Reason string `json:"reason"`
}

// ItemFailure is a per-prospect failure inside a bulk assignment.
type ItemFailure struct {
	ProspectID int64  `json:"prospect_id"`
	Message    string `json:"message"`
}

// BulkResult aggregates a bulk assignment. One failing prospect never
// aborts the batch.
type BulkResult struct {
	SuccessCount int           `json:"success_count"`
	FailedCount  int           `json:"failed_count"`
	Failures     []ItemFailure `json:"failures,omitempty"`
}

// ListFilters scopes and pages a prospect listing.
type ListFilters struct {
	UnitIDs           []int64
	ExecutiveID       *int64
	RequiresAttention *bool
	Search            string
	Page              int
	PageSize          int
}

// ListResponse is a paged prospect listing.
type ListResponse struct {
	Prospects  []Prospect `json:"prospects"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// ChangeOp is the change-feed operation type.
type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
)

// ChangeEvent is one prospect row change delivered by the change
// feed. Old is nil when the feed does not replicate prior values.
type ChangeEvent struct {
	Op  ChangeOp  `json:"op"`
	Old *Prospect `json:"old,omitempty"`
	New *Prospect `json:"new"`
	At  time.Time `json:"at"`
}
