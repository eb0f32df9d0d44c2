// Package session owns the per-run session parameters and bookkeeping.
//
// Ownership boundary:
// - protocol version, field widths and retry bound
// - per-call transport timeouts
// - file transfer attempt ledger
//
// The values here are injected into the client state machine; nothing in
// the client reads package-level tunables.
package session
