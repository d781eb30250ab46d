// Package bridge is the synchronous, string-encoded surface over the ledger
// engine.
//
// Every operation decodes its identifiers first and fails with
// MalformedIdentifier before touching the engine, then blocks the caller on
// the shared runtime while the engine does the work, maps engine failures
// to a Kind, and re-encodes the result. Nothing is retried.
package bridge
