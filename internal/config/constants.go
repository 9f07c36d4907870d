package config

// Defaults shared by the server configuration and the CLI flags.
const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./recall.db"

	// DefaultReportsDir is where per-run extraction reports are written
	DefaultReportsDir = "./reports"

	// DefaultLibraryDir holds the books and annotation sidecars the server scans
	DefaultLibraryDir = "./library"

	// DefaultInboxScanSchedule scans the library every 15 minutes
	DefaultInboxScanSchedule = "*/15 * * * *"

	// DefaultMaxUploadMB bounds the multipart body of an extraction request
	DefaultMaxUploadMB = 64
)
