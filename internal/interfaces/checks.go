package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/recall/internal/audit"
	"github.com/mrlokans/recall/internal/database"
	"github.com/mrlokans/recall/internal/exporters"
	"github.com/mrlokans/recall/internal/formats"
	"github.com/mrlokans/recall/internal/http"
	"github.com/mrlokans/recall/internal/importers"
	"github.com/mrlokans/recall/internal/position"
	"github.com/mrlokans/recall/internal/runner"
	"github.com/mrlokans/recall/internal/scheduler"
	"github.com/mrlokans/recall/internal/services"
	"github.com/mrlokans/recall/internal/tasks"
)

// =============================================================================
// Format Adapters
// =============================================================================

var _ formats.Adapter = formats.KFXAdapter{}
var _ formats.Adapter = formats.KF8Adapter{}
var _ formats.Adapter = formats.MOBIAdapter{}
var _ formats.Adapter = formats.HTMLZAdapter{}

// Position tokens
var _ position.Token = position.RawOffset{}
var _ position.Token = position.CompoundOffset{}
var _ position.Token = position.FragmentRelative{}

// =============================================================================
// Data Access Layer
// =============================================================================

// BookReader/BookExporter implementations
var _ services.BookReader = (*exporters.DatabaseExporter)(nil)
var _ services.BookReader = (*database.Database)(nil)
var _ services.BookExporter = (*exporters.DatabaseExporter)(nil)
var _ services.BookExporter = (*exporters.MarkdownExporter)(nil)
var _ services.RunRecorder = (*database.Database)(nil)

// =============================================================================
// Import Pipeline
// =============================================================================

var _ importers.Converter = (*importers.KindleConverter)(nil)
var _ importers.Exporter = (*exporters.DatabaseExporter)(nil)

// =============================================================================
// Background Work
// =============================================================================

var _ tasks.BookExtractor = (*runner.Runner)(nil)
var _ tasks.ReportPruner = (*audit.Auditor)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)

// =============================================================================
// HTTP Dependencies
// =============================================================================

var _ http.Extractor = (*runner.Runner)(nil)
var _ http.TaskQueue = (*tasks.Client)(nil)
var _ http.LibraryScanner = (*scheduler.LibraryScanScheduler)(nil)
