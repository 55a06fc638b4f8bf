package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"tasklist/internal/models"
)

type createTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

type updateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// handleListTasks fetches the caller's tasks.
func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := handleFrom(c).ListTasks(c.Request.Context(), accountFrom(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleCreateTask inserts a new task for the caller.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	task, err := handleFrom(c).CreateTask(c.Request.Context(), accountFrom(c).ID, req.Title, getString(req.Description))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleGetTask returns one of the caller's tasks.
func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	task, found, err := handleFrom(c).GetOwnedTask(c.Request.Context(), accountFrom(c).ID, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !found {
		s.respondError(c, fmt.Errorf("%w: task %d", models.ErrNotFound, id))
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleUpdateTask replaces title, description and completion.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	task, err := handleFrom(c).UpdateTask(c.Request.Context(), accountFrom(c).ID, id, req.Title, req.Description, req.Completed)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleToggleTask flips the completion flag.
func (s *Server) handleToggleTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}

	task, err := handleFrom(c).ToggleTask(c.Request.Context(), accountFrom(c).ID, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := handleFrom(c).DeleteTask(c.Request.Context(), accountFrom(c).ID, id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

func getString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
