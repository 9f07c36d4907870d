package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/recall/internal/audit"
	"github.com/mrlokans/recall/internal/config"
	"github.com/mrlokans/recall/internal/database"
	"github.com/mrlokans/recall/internal/exporters"
	http_controllers "github.com/mrlokans/recall/internal/http"
	"github.com/mrlokans/recall/internal/runner"
	"github.com/mrlokans/recall/internal/scheduler"
	"github.com/mrlokans/recall/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// checkLibraryDir only warns: uploads work without a library directory.
func checkLibraryDir(dir string) {
	if dir == "" {
		log.Printf("WARNING: Library directory is not set. Job and scan endpoints will reject file names.")
		return
	}
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		log.Printf("WARNING: Library directory %s does not exist", dir)
	case err != nil:
		log.Printf("WARNING: Cannot stat library directory %s: %v", dir, err)
	case !info.IsDir():
		log.Printf("WARNING: Library path %s is not a directory", dir)
	default:
		log.Printf("Library directory %s exists\n", dir)
	}
}

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	checkLibraryDir(cfg.Library.Dir)

	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT; SIGKILL cannot be caught
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before the listener so no new tasks are queued
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Recall v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Saves into the database and, with EXPORT_DIR set, rewrites the
	// book's markdown notebook
	exporter := exporters.NewDatabaseExporter(db, cfg.Export.Dir)
	if cfg.Export.Dir != "" {
		log.Printf("Markdown notebooks are exported to %s", cfg.Export.Dir)
	}

	var auditor *audit.Auditor
	if cfg.Reports.Dir != "" {
		auditor = audit.NewAuditor(cfg.Reports.Dir)
	}

	extractRunner := runner.New(exporter, db, auditor)

	routerCfg := http_controllers.RouterConfig{
		Database:       db,
		BookReader:     exporter,
		Runs:           db,
		Extractor:      extractRunner,
		LibraryDir:     cfg.Library.Dir,
		MaxUploadBytes: cfg.HTTP.MaxUploadMB << 20,
		Version:        version,
	}

	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	var libraryScan *scheduler.LibraryScanScheduler
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		// Report files and run history share one retention period
		pruners := []tasks.ReportPruner{db.Runs()}
		if auditor != nil {
			pruners = append(pruners, auditor)
		}
		taskClient.Register(
			tasks.NewExtractBookQueue(extractRunner),
			tasks.NewCleanupReportsQueue(pruners...),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		libraryScan = scheduler.NewLibraryScanScheduler(scheduler.LibraryScanConfig{
			Dir:                 cfg.Library.Dir,
			Schedule:            cfg.InboxScan.Schedule,
			ReportRetentionDays: cfg.Reports.RetentionDays,
		}, taskClient)

		if cfg.InboxScan.Enabled {
			if err := libraryScan.Start(taskCtx); err != nil {
				log.Fatalf("Failed to start library scan: %v", err)
			}
		}

		routerCfg.TaskClient = taskClient
		if cfg.Library.Dir != "" {
			routerCfg.Scanner = libraryScan
		}
	} else {
		log.Printf("Task queue disabled: job and scan endpoints are not available")
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if libraryScan != nil {
			libraryScan.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
