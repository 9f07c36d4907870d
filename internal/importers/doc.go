// Package importers turns pipeline results into books ready for storage.
//
// # Architecture
//
// The import pipeline follows a simple flow:
//
//	extract.Result → Converter → RawHighlight → Pipeline → entities.Book → Exporter → Storage
//
// A Converter flattens a source into RawHighlights. The Pipeline groups them
// by book and hands the books to the configured Exporter, which deduplicates
// highlights that were already stored by an earlier run.
//
// # Converters
//
//   - KindleConverter: highlights recovered from a book and its annotation sidecar
//
// For sources that already provide book-level grouping, use
// Pipeline.ImportBooks() directly instead of implementing a Converter.
//
// # Example Usage
//
//	pipeline := importers.NewPipeline(exporter)
//
//	res, err := extract.RunFiles(ctx, bookPath, sidecarPath, formats.FormatUnknown)
//	result, err := pipeline.Import(importers.NewKindleConverter(res, bookPath))
package importers
