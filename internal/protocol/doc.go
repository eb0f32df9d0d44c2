// Package protocol owns the client/server wire contract.
//
// Ownership boundary:
// - request and response codes
// - request/response frame encode and decode
// - fixed-layout payload builders and parsers
//
// All multi-byte fields are big-endian. Request frames carry the client id,
// response frames do not.
package protocol
