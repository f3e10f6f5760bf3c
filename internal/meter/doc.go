// Package meter owns the reading pipeline.
//
// Ownership boundary:
// - byte source lifecycle (open, read, reconnect with backoff)
// - outcome handling: assemble -> verify -> tokenize
// - latest-reading snapshot and counters
//
// Lifecycle order:
// - open -> read until source failure or end -> backoff -> open
//
// - a new telegram.Reader is built per opened source; a failed Reader is never reused.
package meter
