package handler

import (
	"encoding/json"
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

// priorityRank orders high > medium > low regardless of the strings'
// lexical order
const priorityRank = "CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END"

// assigneeInTenant checks that the target user exists inside the tenant
func assigneeInTenant(userID, tenantID uint) (bool, error) {
	var count int64
	err := database.GetDB().Model(&model.User{}).
		Where("id = ? AND tenant_id = ?", userID, tenantID).
		Count(&count).Error
	return count > 0, err
}

// CreateTask creates a task under a project. The task inherits the
// project's tenant; an assignee from another tenant is rejected.
func CreateTask(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("task", "create")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	var req struct {
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Status      string     `json:"status"`
		Priority    string     `json:"priority"`
		AssignedTo  *uint      `json:"assigned_to"`
		DueDate     *time.Time `json:"due_date"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	project, ok, errResp := loadScopedProject(c, ident)
	if !ok {
		return errResp
	}

	if req.Title == "" {
		return respondError(c, http.StatusBadRequest, "Task title is required")
	}
	if req.Status == "" {
		req.Status = model.TaskStatusTodo
	}
	if !model.ValidTaskStatus(req.Status) {
		return respondError(c, http.StatusBadRequest, "Invalid status value")
	}
	if req.Priority == "" {
		req.Priority = model.TaskPriorityMedium
	}
	if !model.ValidTaskPriority(req.Priority) {
		return respondError(c, http.StatusBadRequest, "Invalid priority value")
	}

	if req.AssignedTo != nil {
		inTenant, err := assigneeInTenant(*req.AssignedTo, project.TenantID)
		if err != nil {
			log.Error("Failed to check assignee", zap.Error(err))
			return respondError(c, http.StatusInternalServerError, "Internal server error")
		}
		if !inTenant {
			log.Warn("Cross-tenant task assignment attempt",
				zap.Uint("user_id", ident.UserID),
				zap.Uint("assigned_to", *req.AssignedTo))
			prometheus.RecordAuthError("cross_tenant_assignment")
			return respondError(c, http.StatusBadRequest, "Assigned user does not belong to your tenant")
		}
	}

	task := model.Task{
		ProjectID:   project.ID,
		TenantID:    project.TenantID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
	}
	if err := database.GetDB().Create(&task).Error; err != nil {
		log.Error("Failed to create task", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	audit.Record(c, ident, "Create Task", "Task", task.ID)

	log.Info("Task created",
		zap.Uint("task_id", task.ID),
		zap.Uint("project_id", project.ID),
		zap.String("priority", task.Priority))

	return respondData(c, http.StatusCreated, task)
}

// ListTasks lists a project's tasks ordered by priority rank then due
// date, with status/assignee/priority filters and title search
func ListTasks(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("task", "list")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	project, ok, errResp := loadScopedProject(c, ident)
	if !ok {
		return errResp
	}

	page, limit, offset := paging(c, 50)
	status := c.QueryParam("status")
	assignedTo := c.QueryParam("assigned_to")
	priority := c.QueryParam("priority")
	search := c.QueryParam("search")

	filtered := func() *gorm.DB {
		q := database.GetDB().Model(&model.Task{}).Where("project_id = ?", project.ID)
		if status != "" {
			q = q.Where("status = ?", status)
		}
		if assignedTo != "" {
			q = q.Where("assigned_to = ?", assignedTo)
		}
		if priority != "" {
			q = q.Where("priority = ?", priority)
		}
		if search != "" {
			q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		log.Error("Failed to count tasks", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	var tasks []model.Task
	if err := filtered().Preload("Assignee").
		Order(priorityRank + " DESC").
		Order("due_date asc").
		Limit(limit).Offset(offset).
		Find(&tasks).Error; err != nil {
		log.Error("Failed to list tasks", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	return respondData(c, http.StatusOK, echo.Map{
		"tasks":      tasks,
		"total":      total,
		"pagination": newPagination(page, limit, total),
	})
}

// loadScopedTask fetches the task and applies the isolation policy:
// 404 when the id does not exist, 403 when it lives in another tenant
func loadScopedTask(c echo.Context, ident *policy.Identity) (*model.Task, bool, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, false, respondError(c, http.StatusBadRequest, "Invalid task ID")
	}

	var task model.Task
	if err := database.GetDB().First(&task, id).Error; err != nil {
		return nil, false, respondError(c, http.StatusNotFound, "Task not found")
	}

	if !policy.CanAccessTenant(ident, task.TenantID) {
		prometheus.RecordAuthError("task_access_denied")
		return nil, false, respondError(c, http.StatusForbidden, "Not authorized")
	}

	return &task, true, nil
}

// UpdateTaskStatus moves a task along the todo/in_progress/completed
// flow; any tenant member may do it
func UpdateTaskStatus(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("task", "update_status")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	task, ok, errResp := loadScopedTask(c, ident)
	if !ok {
		return errResp
	}

	if !model.ValidTaskStatus(req.Status) {
		return respondError(c, http.StatusBadRequest, "Invalid status value")
	}

	if err := database.GetDB().Model(task).Update("status", req.Status).Error; err != nil {
		log.Error("Failed to update task status", zap.Uint("task_id", task.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	audit.Record(c, ident, "Update Task Status", "Task", task.ID)

	log.Info("Task status updated", zap.Uint("task_id", task.ID), zap.String("status", req.Status))
	return respondMessage(c, http.StatusOK, "Task status updated successfully", task)
}

// UpdateTask updates task fields; absent keys are left untouched. For the
// two nullable columns a JSON null is an explicit clear, so the body is
// decoded key by key instead of into a pointer struct, which cannot tell
// null from absent.
func UpdateTask(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("task", "update")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	var fields map[string]json.RawMessage
	if err := c.Bind(&fields); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	task, ok, errResp := loadScopedTask(c, ident)
	if !ok {
		return errResp
	}

	updates := map[string]interface{}{}
	if raw, ok := fields["title"]; ok {
		var title string
		if err := json.Unmarshal(raw, &title); err != nil || title == "" {
			return respondError(c, http.StatusBadRequest, "Task title is required")
		}
		updates["title"] = title
	}
	if raw, ok := fields["description"]; ok {
		var description string
		if err := json.Unmarshal(raw, &description); err != nil {
			return respondError(c, http.StatusBadRequest, "Invalid request")
		}
		updates["description"] = description
	}
	if raw, ok := fields["status"]; ok {
		var status string
		if err := json.Unmarshal(raw, &status); err != nil || !model.ValidTaskStatus(status) {
			return respondError(c, http.StatusBadRequest, "Invalid status value")
		}
		updates["status"] = status
	}
	if raw, ok := fields["priority"]; ok {
		var priority string
		if err := json.Unmarshal(raw, &priority); err != nil || !model.ValidTaskPriority(priority) {
			return respondError(c, http.StatusBadRequest, "Invalid priority value")
		}
		updates["priority"] = priority
	}
	if raw, ok := fields["assigned_to"]; ok {
		var assignedTo *uint
		if err := json.Unmarshal(raw, &assignedTo); err != nil {
			return respondError(c, http.StatusBadRequest, "Invalid request")
		}
		if assignedTo == nil {
			updates["assigned_to"] = nil
		} else {
			inTenant, err := assigneeInTenant(*assignedTo, task.TenantID)
			if err != nil {
				log.Error("Failed to check assignee", zap.Error(err))
				return respondError(c, http.StatusInternalServerError, "Internal server error")
			}
			if !inTenant {
				prometheus.RecordAuthError("cross_tenant_assignment")
				return respondError(c, http.StatusBadRequest, "Assigned user does not belong to your tenant")
			}
			updates["assigned_to"] = *assignedTo
		}
	}
	if raw, ok := fields["due_date"]; ok {
		var dueDate *time.Time
		if err := json.Unmarshal(raw, &dueDate); err != nil {
			return respondError(c, http.StatusBadRequest, "Invalid request")
		}
		if dueDate == nil {
			updates["due_date"] = nil
		} else {
			updates["due_date"] = *dueDate
		}
	}
	if len(updates) == 0 {
		return respondError(c, http.StatusBadRequest, "No fields provided to update")
	}

	if err := database.GetDB().Model(task).Updates(updates).Error; err != nil {
		log.Error("Failed to update task", zap.Uint("task_id", task.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	audit.Record(c, ident, "Update Task", "Task", task.ID)

	log.Info("Task updated", zap.Uint("task_id", task.ID))
	return respondMessage(c, http.StatusOK, "Task updated successfully", task)
}

// DeleteTask removes a single task
func DeleteTask(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("task", "delete")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	task, ok, errResp := loadScopedTask(c, ident)
	if !ok {
		return errResp
	}

	if err := database.GetDB().Delete(task).Error; err != nil {
		log.Error("Failed to delete task", zap.Uint("task_id", task.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	audit.Record(c, ident, "Delete Task", "Task", task.ID)

	log.Info("Task deleted", zap.Uint("task_id", task.ID), zap.Uint("project_id", task.ProjectID))
	return respondMessage(c, http.StatusOK, "Task deleted successfully", nil)
}
