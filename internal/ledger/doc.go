// Package ledger implements the local ledger engine behind the bridge.
//
// The engine owns subjects, their signed event chains, pending approvals
// and the node's stored keys. It is deliberately small: it validates
// signatures, applies JSON merge patches checked against CUE schemas
// declared by governance subjects, and signs every event with the node key.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// Every API call becomes a command on an unbounded FIFO. One goroutine
// dequeues commands and runs them to completion, so reads and writes never
// interleave and notifications leave in the order state changed.
//
// Request Flow:
//  1. ExternalRequest verifies the signature and derives the request id
//  2. The request is stored as "processing"
//  3. apply runs the create/fact/transfer/eol rules
//  4. Refused requests are stored as "error"; accepted ones as "finished",
//     or stay "processing" while an approval is pending
//  5. Notifications are queued for the single stream consumer
//
// Storage failures inside the loop emit unrecoverable_error and fail the
// request; nothing is retried.
//
// Shutdown:
// Stop closes the command queue. Queued commands still run, then the loop
// closes the notification stream. Next returns ErrStreamClosed once the
// stream is drained.
package ledger
