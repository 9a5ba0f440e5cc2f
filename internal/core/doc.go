// Package core validates client spreadsheets before they are imported.
//
// The package holds the domain logic independent of any transport. The CLI
// and the HTTP API both drive it through [Service].
//
// # Pipeline
//
// A file goes through four components:
//
//  1. [Parser] reads raw rows, finds the header and converts each data row
//     into a typed [CandidateRecord]. Header problems fail the whole file
//     with [FileFormatError]; a file without data rows fails with
//     [EmptyFileError].
//  2. [Engine] checks every record against the required, type, format and
//     consistency rules on a bounded worker pool, then marks duplicates in a
//     single ordered pass with [MarkDuplicates].
//  3. [Aggregate] folds the outcomes into a [PreviewResult].
//  4. [Exporter] writes blank templates from the same [schema.TemplateSpec]
//     the parser reads with.
//
// Record-level problems are data, reported as [FieldError] values on each
// [ValidationOutcome]. Only structural problems are returned as errors.
//
// # Duplicates
//
// Records are keyed by their trimmed, lowercased tax identifier. The first
// occurrence of a key in a file is kept; later ones, and any record whose
// key is in the caller's [KeySet], are rejected.
//
// # Error Handling
//
// Errors are mapped to user-facing messages with [MapError]. Each category
// has a code for support reference:
//
//   - FILE001-FILE007: File errors (size, format, encoding, empty, write)
//   - VAL001-VAL004: Header and template errors
//   - IMP001-IMP004: Import errors (busy, cancelled, timeout, commit)
//   - DB001-DB004: Database errors
package core
