package handler

import (
	"net/http"

	"github.com/AnTengye/contractdesk/middleware"
	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/service"
	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	tasks *service.TaskService
}

func NewTaskHandler(tasks *service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// List returns tasks. ?status= and ?assignee= narrow the result, and
// ?mine=true is shorthand for the caller's own tasks.
func (h *TaskHandler) List(c *gin.Context) {
	status, err := model.ParseTaskStatus(c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	filter := service.TaskFilter{Status: status, Assignee: c.Query("assignee")}
	if c.Query("mine") == "true" {
		if s := middleware.GetSession(c); s != nil {
			if identity, ok := s.CurrentIdentity(); ok {
				filter.Assignee = identity.Email
			}
		}
	}

	tasks, err := h.tasks.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TaskHandler) Create(c *gin.Context) {
	var in service.TaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), middleware.GetSession(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

type taskStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves a task to another status
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	var req taskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	task, err := h.tasks.UpdateStatus(c.Request.Context(), middleware.GetSession(c), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.tasks.Delete(c.Request.Context(), middleware.GetSession(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}
