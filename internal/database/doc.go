// Package database provides the data access layer for the application.
//
// # Architecture
//
//	database/
//	├── database.go      # Connection setup, migrations, source seeding, books
//	└── runs/            # Extraction run history
//
// Books and highlights live on the Database struct itself. Saving a book
// upserts it by title and author and merges highlights by text, location
// and timestamp, so re-extracting the same sidecar never duplicates entries.
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./recall.db")
//
//	runsRepo := db.Runs()
//	page, total, err := runsRepo.Page(entities.RunStatusFailed, 20, 0)
//
// # Interface Implementations
//
//   - Database: implements services.BookReader and services.RunRecorder
//   - runs.Repository: implements tasks.ReportPruner
package database
