package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/recall/internal/tasks"
)

// TasksController handles task queue endpoints.
type TasksController struct {
	client  TaskQueue
	scanner LibraryScanner
}

// NewTasksController creates a new TasksController.
func NewTasksController(client TaskQueue, scanner LibraryScanner) *TasksController {
	return &TasksController{client: client, scanner: scanner}
}

// GetTaskStatus handles GET /api/tasks/:id
// Returns the status of a specific task.
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.client.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": tasks.StatusName(status),
	})
}

// ScanLibrary handles POST /api/library/scan
// Queues an extraction for every new or modified pair in the library.
func (tc *TasksController) ScanLibrary(c *gin.Context) {
	result, err := tc.scanner.Scan()
	if err != nil {
		respondInternalError(c, err, "library scan")
		return
	}
	c.JSON(http.StatusAccepted, result)
}
