// Package client owns the session protocol engine.
//
// Ownership boundary:
// - connection lifetime (one stream per run, closed on every exit path)
// - registration, reconnection and the single reconnect->register fallback
// - key exchange and symmetric key unwrapping
// - the bounded file-transfer/CRC loop
// - the entry flow that picks reconnect or register from persisted identity
//
// Lifecycle order:
// - disconnected -> connected -> registering | reconnecting
// - key_exchange_pending -> file_transferring -> verified | exhausted
// - succeeded | failed
//
// The protocol is strict request/response. Only the file-transfer loop
// retries; every other failure ends the run.
package client
