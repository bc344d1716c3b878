package handler_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"backoffice-service/internal/model"
	"backoffice-service/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTask(t *testing.T) {
	setupTest(t)
	acme := createTenant(t, "acme", 5, 10)
	beta := createTenant(t, "beta", 5, 10)
	member := createUser(t, acme.ID, "user@acme.test", model.RoleUser)
	teammate := createUser(t, acme.ID, "mate@acme.test", model.RoleUser)
	outsider := createUser(t, beta.ID, "user@beta.test", model.RoleUser)
	project := createProject(t, acme.ID, member.ID, "Alpha")

	path := fmt.Sprintf("/projects/%d/tasks", project.ID)

	t.Run("defaults applied", func(t *testing.T) {
		rec := doRequest(t, http.MethodPost, path, tokenFor(t, member),
			map[string]interface{}{"title": "First task"})
		require.Equal(t, http.StatusCreated, rec.Code)

		env := decode(t, rec)
		assert.Equal(t, model.TaskStatusTodo, env.Data["status"])
		assert.Equal(t, model.TaskPriorityMedium, env.Data["priority"])
		assert.Equal(t, float64(acme.ID), env.Data["tenant_id"], "task inherits the project's tenant")
	})

	t.Run("assignee in the same tenant", func(t *testing.T) {
		rec := doRequest(t, http.MethodPost, path, tokenFor(t, member),
			map[string]interface{}{"title": "Assigned", "assigned_to": teammate.ID})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, float64(teammate.ID), decode(t, rec).Data["assigned_to"])
	})

	t.Run("assignee from another tenant", func(t *testing.T) {
		rec := doRequest(t, http.MethodPost, path, tokenFor(t, member),
			map[string]interface{}{"title": "Bad assignee", "assigned_to": outsider.ID})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Assigned user does not belong to your tenant", decode(t, rec).Message)
	})

	t.Run("title required", func(t *testing.T) {
		rec := doRequest(t, http.MethodPost, path, tokenFor(t, member),
			map[string]interface{}{"description": "no title"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid priority", func(t *testing.T) {
		rec := doRequest(t, http.MethodPost, path, tokenFor(t, member),
			map[string]interface{}{"title": "x", "priority": "urgent"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("project of another tenant is forbidden", func(t *testing.T) {
		rec := doRequest(t, http.MethodPost, path, tokenFor(t, outsider),
			map[string]interface{}{"title": "intrusion"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown project is not found", func(t *testing.T) {
		rec := doRequest(t, http.MethodPost, "/projects/9999/tasks", tokenFor(t, member),
			map[string]interface{}{"title": "ghost"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListTasks(t *testing.T) {
	setupTest(t)
	acme := createTenant(t, "acme", 5, 10)
	member := createUser(t, acme.ID, "user@acme.test", model.RoleUser)
	teammate := createUser(t, acme.ID, "mate@acme.test", model.RoleUser)
	project := createProject(t, acme.ID, member.ID, "Alpha")

	createTask(t, project, "low task", model.TaskStatusTodo, model.TaskPriorityLow)
	createTask(t, project, "high task", model.TaskStatusTodo, model.TaskPriorityHigh)
	medium := createTask(t, project, "medium task", model.TaskStatusInProgress, model.TaskPriorityMedium)
	require.NoError(t, database.GetDB().Model(medium).Update("assigned_to", teammate.ID).Error)

	path := fmt.Sprintf("/projects/%d/tasks", project.ID)

	taskTitles := func(env envelope) []string {
		var titles []string
		for _, raw := range env.Data["tasks"].([]interface{}) {
			titles = append(titles, raw.(map[string]interface{})["title"].(string))
		}
		return titles
	}

	t.Run("ordered by priority rank", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, path, tokenFor(t, member), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"high task", "medium task", "low task"}, taskTitles(decode(t, rec)))
	})

	t.Run("due date breaks priority ties", func(t *testing.T) {
		soon := time.Now().Add(24 * time.Hour)
		later := time.Now().Add(72 * time.Hour)
		urgent := createTask(t, project, "due soon", model.TaskStatusTodo, model.TaskPriorityHigh)
		relaxed := createTask(t, project, "due later", model.TaskStatusTodo, model.TaskPriorityHigh)
		require.NoError(t, database.GetDB().Model(urgent).Update("due_date", soon).Error)
		require.NoError(t, database.GetDB().Model(relaxed).Update("due_date", later).Error)

		rec := doRequest(t, http.MethodGet, path+"?priority=high", tokenFor(t, member), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		titles := taskTitles(decode(t, rec))
		require.Len(t, titles, 3)
		assert.Less(t, indexOf(titles, "due soon"), indexOf(titles, "due later"))

		database.GetDB().Delete(urgent)
		database.GetDB().Delete(relaxed)
	})

	t.Run("status filter", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, path+"?status=in_progress", tokenFor(t, member), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"medium task"}, taskTitles(decode(t, rec)))
	})

	t.Run("assignee filter preloads the assignee", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, fmt.Sprintf("%s?assigned_to=%d", path, teammate.ID), tokenFor(t, member), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		tasks := decode(t, rec).Data["tasks"].([]interface{})
		require.Len(t, tasks, 1)
		assignee := tasks[0].(map[string]interface{})["assignee"].(map[string]interface{})
		assert.Equal(t, "mate@acme.test", assignee["email"])
	})

	t.Run("title search", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, path+"?search=LOW", tokenFor(t, member), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"low task"}, taskTitles(decode(t, rec)))
	})
}

func indexOf(items []string, target string) int {
	for i, item := range items {
		if item == target {
			return i
		}
	}
	return -1
}

func TestUpdateTaskStatus(t *testing.T) {
	setupTest(t)
	acme := createTenant(t, "acme", 5, 10)
	beta := createTenant(t, "beta", 5, 10)
	member := createUser(t, acme.ID, "user@acme.test", model.RoleUser)
	outsider := createUser(t, beta.ID, "user@beta.test", model.RoleUser)
	project := createProject(t, acme.ID, member.ID, "Alpha")
	task := createTask(t, project, "movable", model.TaskStatusTodo, model.TaskPriorityMedium)

	path := fmt.Sprintf("/tasks/%d/status", task.ID)

	t.Run("any tenant member may move the task", func(t *testing.T) {
		rec := doRequest(t, http.MethodPatch, path, tokenFor(t, member),
			map[string]interface{}{"status": model.TaskStatusInProgress})
		require.Equal(t, http.StatusOK, rec.Code)

		var row model.Task
		require.NoError(t, database.GetDB().First(&row, task.ID).Error)
		assert.Equal(t, model.TaskStatusInProgress, row.Status)
	})

	t.Run("invalid status", func(t *testing.T) {
		rec := doRequest(t, http.MethodPatch, path, tokenFor(t, member),
			map[string]interface{}{"status": "done"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("cross tenant is forbidden", func(t *testing.T) {
		rec := doRequest(t, http.MethodPatch, path, tokenFor(t, outsider),
			map[string]interface{}{"status": model.TaskStatusCompleted})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown task is not found", func(t *testing.T) {
		rec := doRequest(t, http.MethodPatch, "/tasks/9999/status", tokenFor(t, member),
			map[string]interface{}{"status": model.TaskStatusCompleted})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUpdateTask(t *testing.T) {
	setupTest(t)
	acme := createTenant(t, "acme", 5, 10)
	beta := createTenant(t, "beta", 5, 10)
	member := createUser(t, acme.ID, "user@acme.test", model.RoleUser)
	teammate := createUser(t, acme.ID, "mate@acme.test", model.RoleUser)
	outsider := createUser(t, beta.ID, "user@beta.test", model.RoleUser)
	project := createProject(t, acme.ID, member.ID, "Alpha")
	task := createTask(t, project, "original", model.TaskStatusTodo, model.TaskPriorityMedium)

	path := fmt.Sprintf("/tasks/%d", task.ID)

	t.Run("partial update", func(t *testing.T) {
		rec := doRequest(t, http.MethodPut, path, tokenFor(t, member),
			map[string]interface{}{"priority": model.TaskPriorityHigh, "assigned_to": teammate.ID})
		require.Equal(t, http.StatusOK, rec.Code)

		var row model.Task
		require.NoError(t, database.GetDB().First(&row, task.ID).Error)
		assert.Equal(t, model.TaskPriorityHigh, row.Priority)
		assert.Equal(t, "original", row.Title, "absent fields stay untouched")
		require.NotNil(t, row.AssignedTo)
		assert.Equal(t, teammate.ID, *row.AssignedTo)
	})

	t.Run("explicit null clears assignment and due date", func(t *testing.T) {
		due := time.Now().Add(48 * time.Hour)
		require.NoError(t, database.GetDB().Model(task).Update("due_date", due).Error)

		rec := doRequest(t, http.MethodPut, path, tokenFor(t, member),
			map[string]interface{}{"assigned_to": nil, "due_date": nil, "title": "unassigned again"})
		require.Equal(t, http.StatusOK, rec.Code)

		var row model.Task
		require.NoError(t, database.GetDB().First(&row, task.ID).Error)
		assert.Nil(t, row.AssignedTo)
		assert.Nil(t, row.DueDate)
		assert.Equal(t, "unassigned again", row.Title)
		assert.Equal(t, model.TaskPriorityHigh, row.Priority, "absent fields stay untouched")
	})

	t.Run("reassignment across tenants is rejected", func(t *testing.T) {
		rec := doRequest(t, http.MethodPut, path, tokenFor(t, member),
			map[string]interface{}{"assigned_to": outsider.ID})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Assigned user does not belong to your tenant", decode(t, rec).Message)
	})

	t.Run("empty title is rejected", func(t *testing.T) {
		rec := doRequest(t, http.MethodPut, path, tokenFor(t, member),
			map[string]interface{}{"title": ""})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty update", func(t *testing.T) {
		rec := doRequest(t, http.MethodPut, path, tokenFor(t, member), map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteTask(t *testing.T) {
	setupTest(t)
	acme := createTenant(t, "acme", 5, 10)
	beta := createTenant(t, "beta", 5, 10)
	member := createUser(t, acme.ID, "user@acme.test", model.RoleUser)
	outsider := createUser(t, beta.ID, "user@beta.test", model.RoleUser)
	project := createProject(t, acme.ID, member.ID, "Alpha")

	t.Run("member deletes a task", func(t *testing.T) {
		task := createTask(t, project, "doomed", model.TaskStatusTodo, model.TaskPriorityLow)
		rec := doRequest(t, http.MethodDelete, fmt.Sprintf("/tasks/%d", task.ID), tokenFor(t, member), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var count int64
		database.GetDB().Model(&model.Task{}).Where("id = ?", task.ID).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("cross tenant is forbidden", func(t *testing.T) {
		task := createTask(t, project, "protected", model.TaskStatusTodo, model.TaskPriorityLow)
		rec := doRequest(t, http.MethodDelete, fmt.Sprintf("/tasks/%d", task.ID), tokenFor(t, outsider), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
