package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Routes whose dependency is missing from cfg are not registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.LibraryDir, cfg.Version)
	router.GET("/health", health.Status)

	api := router.Group("/api")

	if cfg.BookReader != nil {
		books := NewBooksController(cfg.BookReader)
		api.GET("/books", books.GetAllBooks)
		api.GET("/books/stats", books.GetBookStats)
		api.GET("/books/lookup", books.GetBookByTitleAndAuthor)
		api.GET("/books/:id", books.GetBook)
	}

	extractController := NewExtractController(cfg)
	if cfg.Extractor != nil {
		api.POST("/extract", extractController.Extract)
	}
	if cfg.Runs != nil {
		api.GET("/runs", extractController.ListRuns)
		api.GET("/books/:id/runs", extractController.ListBookRuns)
	}

	if cfg.TaskClient != nil {
		api.POST("/extract/jobs", extractController.EnqueueJob)

		tasksController := NewTasksController(cfg.TaskClient, cfg.Scanner)
		api.GET("/tasks/:id", tasksController.GetTaskStatus)
		if cfg.Scanner != nil {
			api.POST("/library/scan", tasksController.ScanLibrary)
		}
	}

	return router
}
