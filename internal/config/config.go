package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Library
		InboxScan
		Extract
		Reports
		Export
		Tasks
	}

	HTTP struct {
		Port        int32
		Host        string
		MaxUploadMB int64
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Library struct {
		Dir string // Books and annotation sidecars available to the server
	}
	InboxScan struct {
		Enabled  bool
		Schedule string // Cron format: "*/15 * * * *" = every 15 minutes
	}
	Extract struct {
		Workers int // 0 means one worker per CPU
	}
	Reports struct {
		Dir           string
		RetentionDays int // Days to keep report files (default: 30)
	}
	Export struct {
		Dir string // Markdown notebooks are written here when set
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("max_upload_mb", DefaultMaxUploadMB)
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("library_dir", DefaultLibraryDir)
	v.SetDefault("inbox_scan_enabled", false)
	v.SetDefault("inbox_scan_schedule", DefaultInboxScanSchedule)
	v.SetDefault("extract_workers", 0)
	v.SetDefault("reports_dir", DefaultReportsDir)
	v.SetDefault("reports_retention_days", 30)
	v.SetDefault("export_dir", "")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	return &Config{
		HTTP: HTTP{
			Port:        v.GetInt32("PORT"),
			Host:        v.GetString("HOST"),
			MaxUploadMB: v.GetInt64("MAX_UPLOAD_MB"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Library: Library{
			Dir: v.GetString("LIBRARY_DIR"),
		},
		InboxScan: InboxScan{
			Enabled:  v.GetBool("INBOX_SCAN_ENABLED"),
			Schedule: v.GetString("INBOX_SCAN_SCHEDULE"),
		},
		Extract: Extract{
			Workers: v.GetInt("EXTRACT_WORKERS"),
		},
		Reports: Reports{
			Dir:           v.GetString("REPORTS_DIR"),
			RetentionDays: v.GetInt("REPORTS_RETENTION_DAYS"),
		},
		Export: Export{
			Dir: v.GetString("EXPORT_DIR"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
	}
}
