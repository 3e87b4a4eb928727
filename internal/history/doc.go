// Package history keeps an append-only journal of pipeline runs in SQLite.
//
// The Store records one row per unit outcome alongside a runs table carrying
// start and finish timestamps and aggregate totals. The journal is a
// reporting surface, not coordination state: nothing reads it to decide what
// to process next, and the pipeline downgrades journal write failures to
// warnings rather than aborting a run over them.
//
// Schema changes ship as new files under migrations/; applied versions are
// tracked in the schema_migrations table.
package history
