// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Extraction Pipeline
//
//   - Adapter: Reconstructs the text of one container format (internal/formats/formats.go)
//   - Book: A reconstructed book with metadata and page anchors (internal/formats/formats.go)
//   - Navigator: Books that carry a table of contents (internal/formats/formats.go)
//   - Token: A parsed annotation position (internal/position/token.go)
//
// ## Data Access Interfaces
//
//   - BookReader: Read-only access to books (internal/services/interfaces.go)
//   - BookExporter: Persist books to storage (internal/services/interfaces.go)
//   - RunRecorder: Extraction run history (internal/services/interfaces.go)
//   - Converter/Exporter: The import pipeline ends (internal/importers/pipeline.go)
//
// ## Background Work
//
//   - BookExtractor: Runs one queued extraction (internal/tasks/extract_book.go)
//   - ReportPruner: Removes expired reports (internal/tasks/cleanup_reports.go)
//   - Enqueuer: Queues the pairs a library scan finds (internal/scheduler/library_scan.go)
//
// ## HTTP Dependencies
//
//   - Extractor, TaskQueue, LibraryScanner (internal/http/config.go)
//
// # Adding a New Book Format
//
//  1. Implement Adapter in internal/formats/
//
//     type EPUBAdapter struct{}
//
//     func (EPUBAdapter) Reconstruct(raw []byte) (Book, error) {
//         // Rebuild the text buffer and collect page anchors
//     }
//
//  2. Register it for its Format in the package init:
//
//     Register(FormatEPUB, EPUBAdapter{})
//
//  3. Add a compile-time check to checks.go
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
