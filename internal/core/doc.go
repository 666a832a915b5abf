// Package core provides the business logic for bulk student imports.
//
// This package holds all domain logic independent of any transport. It is
// driven by the HTTP server, the rosterctl CLI, and tests without
// modification.
//
// # Pipeline
//
// An import turns raw comma-separated text into persisted students:
//
//  1. [Importer.Load] fetches the identifiers already stored for the college.
//  2. [Tokenize] splits the text into non-empty lines and fields.
//  3. [ResolveColumns] maps the header onto name, identifier and email.
//  4. [ValidateRows] checks every data row and collects all row errors.
//  5. [FilterDuplicates] rejects identifiers already stored or repeated.
//  6. Any row error rejects the file with an [AbortedError].
//  7. [BatchScheduler.Run] submits the candidates in bounded slices.
//  8. [Aggregate] builds the [ImportSummary].
//
// # Service
//
// [Service] runs imports asynchronously. [Service.StartImport] returns an
// import ID at once; progress is streamed via [Service.SubscribeProgress] and
// the final [ImportResult] is available from [Service.GetImportResult] until
// the retention period expires. Concurrent imports are bounded by an
// [ImportLimiter].
//
// # Error Handling
//
// Technical errors are mapped to Spanish user-facing messages with a support
// code by [MapError]:
//
//   - FILE001-FILE004: file errors (size, empty, missing columns)
//   - VAL001: import rejected because of row errors
//   - DB001-DB006: store errors (duplicates, connections)
//   - IMP001-IMP005: import lifecycle (cancelled, busy, not found)
package core
