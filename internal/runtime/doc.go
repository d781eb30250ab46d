// Package runtime is the shared execution context behind the bridge.
//
// A Runtime is created once per node. Synchronous callers hand it a unit of
// work with Block and wait on their own goroutine while a fresh goroutine
// runs it. Calls never queue behind each other; concurrency is bounded only
// by the engine's own loop.
package runtime
