// Package preflight provides readiness checks for the external tools,
// filesystem paths, and storage endpoint that ytd depends on.
//
// These checks run in two contexts:
//   - The pipeline calls RunAll before a run starts. A failed check aborts
//     the run before any per-unit work begins.
//   - The CLI "ytd status" command renders RunAll and CheckSystemDeps
//     results so operators can see what is missing.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
