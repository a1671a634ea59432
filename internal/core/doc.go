// Package core provides the business logic for publishing spreadsheet data.
//
// This package is the heart of sheetshare, containing all domain logic
// independent of any UI or transport layer. It talks to persistence only
// through the [Store] interface, so it can be used by web handlers, CLI tools,
// or tests without modification.
//
// # Architecture
//
// The package is organized around four components:
//
//   - [Parse]: decodes an uploaded .csv, .xlsx or .xls file into ordered [Record] values.
//   - [TablePresenter]: search and pagination over any slice of records.
//   - [BatchPublisher]: writes the [Dataset] metadata document, then commits rows
//     in chunks below the store's atomic batch ceiling, reporting progress.
//   - [DatasetCatalog]: lists datasets and fetches a dataset's rows, restoring
//     the original column order from the dataset metadata.
//
// A [Session] ties them together for one publisher as an explicit state machine:
//
//	idle -> parsing -> previewing -> publishing -> done | failed
//
// # Publishing
//
// Chunks are committed strictly one after another. Progress only advances after
// the store confirms a chunk:
//
//	ds, err := publisher.Publish(ctx, actor, records, "Q3 prices", func(current, total int) {
//	    log.Printf("%d/%d", current, total)
//	})
//
// If a chunk fails, the publish stops and returns a [*ChunkCommitError] carrying the
// number of rows already committed. Committed chunks are not rolled back, so the
// dataset's RecordCount can overstate the rows present. Retrying starts again at
// chunk one under a new dataset.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE005: Upload and parse errors
//   - PUB001-PUB005: Publish errors
//   - CAT001-CAT002: Catalog read errors
//   - AUTH001-AUTH002: Missing or insufficient role
//   - UPL004-UPL005: Cancelled or timed-out requests
package core
