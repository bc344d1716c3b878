package handler

import (
	"net/http"
	"strings"
	"time"

	"backoffice-service/internal/audit"
	"backoffice-service/internal/model"
	"backoffice-service/internal/policy"
	"backoffice-service/pkg/database"
	"backoffice-service/pkg/logger"
	"backoffice-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type userRef struct {
	ID       uint   `json:"id"`
	FullName string `json:"full_name"`
}

type projectResponse struct {
	ID                 uint      `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Status             string    `json:"status"`
	CreatedBy          userRef   `json:"created_by"`
	TaskCount          int64     `json:"task_count"`
	CompletedTaskCount int64     `json:"completed_task_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type taskAgg struct {
	ProjectID uint
	Total     int64
	Completed int64
}

// taskCounts returns per-project task totals for the given project ids
func taskCounts(projectIDs []uint) map[uint]taskAgg {
	counts := map[uint]taskAgg{}
	if len(projectIDs) == 0 {
		return counts
	}

	var aggs []taskAgg
	database.GetDB().Model(&model.Task{}).
		Select("project_id, COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS completed", model.TaskStatusCompleted).
		Where("project_id IN ?", projectIDs).
		Group("project_id").
		Scan(&aggs)

	for _, a := range aggs {
		counts[a.ProjectID] = a
	}
	return counts
}

func newProjectResponse(p *model.Project, agg taskAgg) projectResponse {
	return projectResponse{
		ID:                 p.ID,
		Name:               p.Name,
		Description:        p.Description,
		Status:             p.Status,
		CreatedBy:          userRef{ID: p.Creator.ID, FullName: p.Creator.FullName},
		TaskCount:          agg.Total,
		CompletedTaskCount: agg.Completed,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

// CreateProject creates a project for the caller's tenant, subject to the
// max_projects quota (count-then-compare, accepted race)
func CreateProject(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("project", "create")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Status      string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request")
	}

	if req.Name == "" {
		return respondError(c, http.StatusBadRequest, "Project name is required")
	}
	if req.Status == "" {
		req.Status = model.ProjectStatusActive
	}
	if !model.ValidProjectStatus(req.Status) {
		return respondError(c, http.StatusBadRequest, "Invalid status value")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, ident.TenantID).Error; err != nil {
		log.Error("Failed to load tenant", zap.Uint("tenant_id", ident.TenantID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	var projectCount int64
	if err := database.GetDB().Model(&model.Project{}).Where("tenant_id = ?", ident.TenantID).Count(&projectCount).Error; err != nil {
		log.Error("Failed to count projects", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}
	if projectCount >= int64(tenant.MaxProjects) {
		log.Warn("Project quota reached",
			zap.Uint("tenant_id", ident.TenantID),
			zap.Int64("count", projectCount),
			zap.Int("max_projects", tenant.MaxProjects))
		prometheus.RecordQuotaRejection("projects")
		return respondError(c, http.StatusForbidden, "Project limit reached")
	}

	project := model.Project{
		TenantID:    ident.TenantID,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		CreatedBy:   ident.UserID,
	}
	if err := database.GetDB().Create(&project).Error; err != nil {
		log.Error("Failed to create project", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	audit.Record(c, ident, "Create Project", "Project", project.ID)

	log.Info("Project created",
		zap.Uint("project_id", project.ID),
		zap.Uint("tenant_id", project.TenantID),
		zap.String("name", project.Name))

	return respondData(c, http.StatusCreated, project)
}

// ListProjects lists the tenant's projects with status filter,
// case-insensitive name search and pagination
func ListProjects(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("project", "list")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	page, limit, offset := paging(c, 20)
	status := c.QueryParam("status")
	search := c.QueryParam("search")

	filtered := func() *gorm.DB {
		q := database.GetDB().Model(&model.Project{}).Where("tenant_id = ?", ident.TenantID)
		if status != "" {
			q = q.Where("status = ?", status)
		}
		if search != "" {
			q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
		}
		return q
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		log.Error("Failed to count projects", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	var projects []model.Project
	if err := filtered().Preload("Creator").Order("created_at desc").Limit(limit).Offset(offset).Find(&projects).Error; err != nil {
		log.Error("Failed to list projects", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	ids := make([]uint, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	counts := taskCounts(ids)

	responses := make([]projectResponse, 0, len(projects))
	for i := range projects {
		responses = append(responses, newProjectResponse(&projects[i], counts[projects[i].ID]))
	}

	return respondData(c, http.StatusOK, echo.Map{
		"projects":   responses,
		"total":      total,
		"pagination": newPagination(page, limit, total),
	})
}

// loadScopedProject fetches the project and applies the isolation policy:
// 404 when the id does not exist, 403 when it lives in another tenant.
// Returns a non-nil error response already written when ok is false.
func loadScopedProject(c echo.Context, ident *policy.Identity) (*model.Project, bool, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, false, respondError(c, http.StatusBadRequest, "Invalid project ID")
	}

	var project model.Project
	if err := database.GetDB().Preload("Creator").First(&project, id).Error; err != nil {
		return nil, false, respondError(c, http.StatusNotFound, "Project not found")
	}

	if !policy.CanAccessTenant(ident, project.TenantID) {
		prometheus.RecordAuthError("project_access_denied")
		return nil, false, respondError(c, http.StatusForbidden, "Not authorized")
	}

	return &project, true, nil
}

// GetProject returns a single project with its task counts
func GetProject(c echo.Context) error {
	prometheus.RecordOperation("project", "get")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	project, ok, errResp := loadScopedProject(c, ident)
	if !ok {
		return errResp
	}

	counts := taskCounts([]uint{project.ID})
	return respondData(c, http.StatusOK, newProjectResponse(project, counts[project.ID]))
}

// UpdateProject updates name/description/status; only the creator or a
// tenant admin may do so. Absent fields are left untouched.
func UpdateProject(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("project", "update")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	project, ok, errResp := loadScopedProject(c, ident)
	if !ok {
		return errResp
	}

	if !policy.CanModifyProject(ident, project) {
		prometheus.RecordAuthError("project_modify_denied")
		return respondError(c, http.StatusForbidden, "Not authorized")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		if !model.ValidProjectStatus(*req.Status) {
			return respondError(c, http.StatusBadRequest, "Invalid status value")
		}
		updates["status"] = *req.Status
	}
	if len(updates) == 0 {
		return respondError(c, http.StatusBadRequest, "No fields provided to update")
	}

	if err := database.GetDB().Model(project).Updates(updates).Error; err != nil {
		log.Error("Failed to update project", zap.Uint("project_id", project.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	audit.Record(c, ident, "Update Project", "Project", project.ID)

	log.Info("Project updated", zap.Uint("project_id", project.ID))
	return respondMessage(c, http.StatusOK, "Project updated successfully", project)
}

// DeleteProject deletes the project and all of its tasks
func DeleteProject(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("project", "delete")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	project, ok, errResp := loadScopedProject(c, ident)
	if !ok {
		return errResp
	}

	if !policy.CanModifyProject(ident, project) {
		prometheus.RecordAuthError("project_modify_denied")
		return respondError(c, http.StatusForbidden, "Not authorized")
	}

	if err := database.GetDB().Where("project_id = ?", project.ID).Delete(&model.Task{}).Error; err != nil {
		log.Error("Failed to delete project tasks", zap.Uint("project_id", project.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}
	if err := database.GetDB().Delete(project).Error; err != nil {
		log.Error("Failed to delete project", zap.Uint("project_id", project.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	audit.Record(c, ident, "Delete Project", "Project", project.ID)

	log.Info("Project deleted", zap.Uint("project_id", project.ID), zap.Uint("tenant_id", project.TenantID))
	return respondMessage(c, http.StatusOK, "Project deleted successfully", nil)
}
