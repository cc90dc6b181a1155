// Package votingbooth implements the polling-station booth inside the
// election context.
//
// A voter is verified in three ordered steps (QR voter id, fingerprint
// payload, facial landmarks) inside an in-memory session, and a verified
// session may cast exactly one vote. The cast is the only write on the
// verification path and is atomic per voter in both the in-memory and the
// Postgres adapters. Administrative enrollment, result tallies and the
// outbox-backed vote confirmation worker sit beside the booth flow.
package votingbooth
