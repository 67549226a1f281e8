// internal/handlers/staff/staff_handler.go
package staff

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"prospect-service/internal/domain/staff"
	"prospect-service/internal/middleware"
	"prospect-service/internal/pkg/cache"
	xerrors "prospect-service/internal/pkg/errors"
	"prospect-service/internal/pkg/response"
	"prospect-service/internal/repository/postgres"
	"prospect-service/internal/service/backup"

	"github.com/gin-gonic/gin"
)

// unitsCacheTTL bounds how stale the unit directory may be. The
// directory changes rarely and drives dropdowns, not authorization.
const unitsCacheTTL = 30 * time.Second

const unitsCacheKey = "assignable"

type StaffHandler struct {
	backups    *backup.Manager
	staffRepo  *postgres.StaffRepository
	units      *postgres.CoordinationUnitRepository
	unitsCache *cache.TTL[string, []staff.UnitWithExecutives]
}

func NewStaffHandler(backups *backup.Manager, staffRepo *postgres.StaffRepository, units *postgres.CoordinationUnitRepository) *StaffHandler {
	return &StaffHandler{
		backups:    backups,
		staffRepo:  staffRepo,
		units:      units,
		unitsCache: cache.NewTTL[string, []staff.UnitWithExecutives](unitsCacheTTL, nil),
	}
}

// BackupCandidates lists who can take over the executive's phone
func (h *StaffHandler) BackupCandidates(c *gin.Context) {
	executiveID, err := parseStaffID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid staff ID", err)
		return
	}
	if !canManageBackup(c, executiveID) {
		response.Error(c, http.StatusForbidden, "you cannot manage this executive's backup", nil)
		return
	}

	exec, err := h.staffRepo.FindExecutiveByID(c.Request.Context(), executiveID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.Error(c, http.StatusNotFound, "executive not found", nil)
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load executive", err)
		return
	}

	candidates, err := h.backups.AvailableBackups(c.Request.Context(), exec.CoordinationUnitID, executiveID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list backup candidates", err)
		return
	}

	response.Success(c, http.StatusOK, "backup candidates", candidates)
}

// AssignBackup redirects the executive's number to a covering colleague
func (h *StaffHandler) AssignBackup(c *gin.Context) {
	executiveID, err := parseStaffID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid staff ID", err)
		return
	}
	if !canManageBackup(c, executiveID) {
		response.Error(c, http.StatusForbidden, "you cannot manage this executive's backup", nil)
		return
	}

	var req staff.AssignBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.backups.AssignBackup(c.Request.Context(), executiveID, req.BackupID); err != nil {
		writeBackupError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "backup assigned", nil)
}

// RemoveBackup restores the executive's original number
func (h *StaffHandler) RemoveBackup(c *gin.Context) {
	executiveID, err := parseStaffID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid staff ID", err)
		return
	}
	if !canManageBackup(c, executiveID) {
		response.Error(c, http.StatusForbidden, "you cannot manage this executive's backup", nil)
		return
	}

	if err := h.backups.RemoveBackup(c.Request.Context(), executiveID); err != nil {
		writeBackupError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "backup removed", nil)
}

// Coverage reports whether the caller currently covers the executive
func (h *StaffHandler) Coverage(c *gin.Context) {
	executiveID, err := parseStaffID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid staff ID", err)
		return
	}

	viewerStaffID, ok := middleware.GetStaffID(c)
	if !ok {
		response.Error(c, http.StatusForbidden, "caller has no staff profile", nil)
		return
	}

	cov, err := h.backups.CoveredBy(c.Request.Context(), viewerStaffID, executiveID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.Error(c, http.StatusNotFound, "executive not found", nil)
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to check coverage", err)
		return
	}

	response.Success(c, http.StatusOK, "coverage", cov)
}

// Units lists assignable coordination units with their executives, for
// assignment target pickers.
func (h *StaffHandler) Units(c *gin.Context) {
	if cached, ok := h.unitsCache.Get(unitsCacheKey); ok {
		response.Success(c, http.StatusOK, "coordination units", cached)
		return
	}

	units, err := h.units.ListAssignable(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list coordination units", err)
		return
	}

	result := make([]staff.UnitWithExecutives, 0, len(units))
	for _, u := range units {
		executives, err := h.staffRepo.ExecutivesByUnit(c.Request.Context(), u.ID)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "failed to list unit executives", err)
			return
		}
		result = append(result, staff.UnitWithExecutives{
			Unit:       u,
			Executives: executives,
		})
	}

	h.unitsCache.Set(unitsCacheKey, result)
	response.Success(c, http.StatusOK, "coordination units", result)
}

func parseStaffID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

// canManageBackup allows the executive themself plus coordinating and
// admin roles.
func canManageBackup(c *gin.Context, executiveID int64) bool {
	if !middleware.HasRole(c, string(staff.RoleExecutive)) {
		return true
	}
	staffID, ok := middleware.GetStaffID(c)
	return ok && staffID == executiveID
}

// writeBackupError maps backup failure classes onto HTTP statuses.
func writeBackupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		response.Error(c, http.StatusNotFound, "staff member not found", err)
	case errors.Is(err, backup.ErrSelfBackup),
		errors.Is(err, backup.ErrBackupCycle),
		errors.Is(err, backup.ErrBackupInactive),
		errors.Is(err, backup.ErrBackupNoPhone):
		response.Error(c, http.StatusBadRequest, "invalid backup target", err)
	case errors.Is(err, backup.ErrNoActiveBackup):
		response.Error(c, http.StatusConflict, "no active backup to remove", err)
	case errors.Is(err, backup.ErrNoOriginalPhone):
		response.Error(c, http.StatusConflict, "original phone number is missing", err)
	default:
		response.Error(c, http.StatusInternalServerError, "backup operation failed", err)
	}
}
