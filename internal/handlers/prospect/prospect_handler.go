// internal/handlers/prospect/prospect_handler.go
package prospect

import (
	"errors"
	"net/http"
	"strconv"

	"prospect-service/internal/domain/prospect"
	"prospect-service/internal/middleware"
	xerrors "prospect-service/internal/pkg/errors"
	"prospect-service/internal/pkg/response"
	"prospect-service/internal/repository/postgres"
	"prospect-service/internal/service/assignment"
	"prospect-service/internal/service/attention"
	"prospect-service/internal/service/permissions"

	"github.com/gin-gonic/gin"
)

type ProspectHandler struct {
	resolver  *permissions.Resolver
	engine    *assignment.Engine
	attention *attention.Service
	prospects *postgres.ProspectRepository
	audit     *postgres.AssignmentAuditRepository
}

func NewProspectHandler(
	resolver *permissions.Resolver,
	engine *assignment.Engine,
	attentionSvc *attention.Service,
	prospects *postgres.ProspectRepository,
	audit *postgres.AssignmentAuditRepository,
) *ProspectHandler {
	return &ProspectHandler{
		resolver:  resolver,
		engine:    engine,
		attention: attentionSvc,
		prospects: prospects,
		audit:     audit,
	}
}

// List returns prospects inside the caller's permission scope
func (h *ProspectHandler) List(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	unitIDs, executiveID, err := h.resolver.Scope(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusForbidden, "failed to resolve permission scope", err)
		return
	}

	filters := &prospect.ListFilters{
		UnitIDs:     unitIDs,
		ExecutiveID: executiveID,
		Search:      c.Query("search"),
	}
	filters.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filters.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if v := c.Query("requires_attention"); v != "" {
		flag := v == "true"
		filters.RequiresAttention = &flag
	}

	prospects, total, err := h.prospects.List(c.Request.Context(), filters)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list prospects", err)
		return
	}

	totalPages := int(total) / filters.PageSize
	if int(total)%filters.PageSize > 0 {
		totalPages++
	}

	response.Success(c, http.StatusOK, "prospects", &prospect.ListResponse{
		Prospects:  prospects,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: totalPages,
	})
}

// Get returns one prospect after an access check
func (h *ProspectHandler) Get(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	prospectID, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid prospect ID", err)
		return
	}

	if d := h.resolver.CanAccessProspect(c.Request.Context(), userID, prospectID); !d.CanAccess {
		response.Error(c, http.StatusForbidden, d.Reason, nil)
		return
	}

	p, err := h.prospects.FindByID(c.Request.Context(), prospectID)
	if err != nil {
		response.Error(c, http.StatusNotFound, "prospect not found", err)
		return
	}

	response.Success(c, http.StatusOK, "prospect", p)
}

// Access returns the access decision with its reason, for UI labeling
func (h *ProspectHandler) Access(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	prospectID, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid prospect ID", err)
		return
	}

	d := h.resolver.CanAccessProspect(c.Request.Context(), userID, prospectID)
	response.Success(c, http.StatusOK, "access decision", d)
}

// Attention returns the caller's current "needs attention" list
func (h *ProspectHandler) Attention(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	entries, err := h.attention.ListFor(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to build attention list", err)
		return
	}

	response.Success(c, http.StatusOK, "attention list", entries)
}

// Assign assigns one prospect to an executive
func (h *ProspectHandler) Assign(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	prospectID, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid prospect ID", err)
		return
	}

	var req prospect.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	err = h.engine.AssignManually(c.Request.Context(), prospectID,
		req.CoordinationUnitID, req.ExecutiveID, userID, req.Reason)
	if err != nil {
		writeAssignError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "prospect assigned", nil)
}

// AssignBulk applies one target to many prospects
func (h *ProspectHandler) AssignBulk(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req prospect.BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result := h.engine.AssignBulk(c.Request.Context(), req.ProspectIDs,
		req.CoordinationUnitID, req.ExecutiveID, userID, req.Reason)

	response.Success(c, http.StatusOK, "bulk assignment processed", result)
}

// Unassign clears a prospect's executive
func (h *ProspectHandler) Unassign(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	prospectID, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid prospect ID", err)
		return
	}

	var req prospect.UnassignRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.engine.Unassign(c.Request.Context(), prospectID, userID, req.Reason); err != nil {
		writeAssignError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "prospect unassigned", nil)
}

// AutoAssign runs the allocation procedure for a prospect
func (h *ProspectHandler) AutoAssign(c *gin.Context) {
	prospectID, err := parseID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid prospect ID", err)
		return
	}

	unitID, err := h.engine.AutoAssign(c.Request.Context(), prospectID)
	if err != nil {
		writeAssignError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "auto-assignment processed", map[string]interface{}{
		"coordination_unit_id": unitID,
	})
}

// AuditTrail lists a prospect's assignment history
func (h *ProspectHandler) AuditTrail(c *gin.Context) {
	prospectID, err := strconv.ParseInt(c.Query("prospect_id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid prospect_id", err)
		return
	}

	userID := middleware.MustGetUserID(c)
	if d := h.resolver.CanAccessProspect(c.Request.Context(), userID, prospectID); !d.CanAccess {
		response.Error(c, http.StatusForbidden, d.Reason, nil)
		return
	}

	records, err := h.audit.ListByProspect(c.Request.Context(), prospectID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load audit trail", err)
		return
	}

	response.Success(c, http.StatusOK, "audit trail", records)
}

func parseID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

// writeAssignError maps engine failure classes onto HTTP statuses.
func writeAssignError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, xerrors.ErrForbidden):
		response.Error(c, http.StatusForbidden, "assignment not allowed", err)
	case errors.Is(err, xerrors.ErrNotFound):
		response.Error(c, http.StatusNotFound, "target not found", err)
	case errors.Is(err, assignment.ErrIncompleteProspect):
		response.Error(c, http.StatusUnprocessableEntity, "prospect needs data completion", err)
	case errors.Is(err, assignment.ErrAlreadyAssigned):
		response.Error(c, http.StatusConflict, "prospect is already assigned", err)
	case errors.Is(err, assignment.ErrUnitMismatch),
		errors.Is(err, assignment.ErrUnitNotAssignable),
		errors.Is(err, assignment.ErrExecutiveInactive):
		response.Error(c, http.StatusBadRequest, "invalid assignment target", err)
	default:
		response.Error(c, http.StatusInternalServerError, "assignment failed", err)
	}
}
