package handlers

import (
	"net/http"

	"taskledger/backend/internal/middleware"
	"taskledger/backend/internal/services"
	"taskledger/backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type TaskHandler struct {
	taskService services.TaskService
}

func NewTaskHandler(taskService services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// ownerID is set by AuthzMiddleware on every route this handler serves.
func ownerID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserIDFromContext(c)
	if !ok {
		respondError(c, services.ErrUnauthenticated)
	}
	return id, ok
}

// taskID treats an unparsable id like any other unknown task.
func taskID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Param("id")
	if !utils.IsValidUUID(raw) {
		respondError(c, services.ErrNotFound)
		return uuid.Nil, false
	}
	return uuid.FromStringOrNil(raw), true
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	var input services.TaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequestBody(c)
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), owner, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": task.ID})
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.ListTasks(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), owner, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	var input services.TaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequestBody(c)
		return
	}

	if _, err := h.taskService.UpdateTask(c.Request.Context(), owner, id, input); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task updated successfully"})
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), owner, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted successfully"})
}

func (h *TaskHandler) GetTaskLog(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	entries, err := h.taskService.ListLog(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *TaskHandler) ClearTaskLog(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		return
	}

	if err := h.taskService.ClearLog(c.Request.Context(), owner); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task log cleared"})
}
