// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp playlist IDs, stage names, unit stems, and run
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that let stage code
//     classify failures as retryable, permanent, or fatal.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
