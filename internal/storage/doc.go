// Package storage adapts a foreign, synchronous key/value store to the
// collection contract the ledger engine consumes.
//
// The foreign side implements Backend, BackendCollection and
// BackendIterator. The engine side only sees Manager and *Collection.
//
// The adapter is deliberately thin:
//   - No value caching, no buffering, no retries
//   - The only lock guards the name -> collection map
//   - Absent keys surface as ErrEntryNotFound, everything else the backend
//     reports surfaces as *Error carrying the backend's own message
//
// Scans are lazy and live: each step asks the backend for the next tuple,
// so writes made while a scan is in progress may or may not be observed
// depending on the backend. A scan can be ranged over once.
package storage
