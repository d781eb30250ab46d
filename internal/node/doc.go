// Package node owns the running engine and gates who may consume it.
//
// A Node holds the engine handle in a cell with two states, Active and
// Terminated. HandleNotifications, DropNotifications and ShutdownGracefully
// take the handle out of the cell; the first caller wins and every other
// caller, concurrent or later, gets bridge.ErrNodeUnavailable. The move
// happens when the handle is taken, not when a drain finishes.
//
// ReceiveBlocking borrows the handle instead of taking it:
//
//	caller A: ReceiveBlocking  -> RLock, check Active, register borrower, RUnlock
//	                              Next(ctx) ... (ctx cancelled on take)
//	caller B: DropNotifications -> Lock, cell = Terminated, cancel(takenCtx), Unlock
//	                              wait for borrowers, then drain
//
// A borrower that is waiting when the handle is taken returns
// bridge.ErrNoConnection, and the draining caller only starts once every
// borrower has left, so no notification reaches two consumers.
//
// The query facade, the subject builder and the shutdown signal hold their
// own references and stay usable after the handle is taken. Once the engine
// has stopped and the runtime is closed, facade calls report
// bridge.ErrNodeUnavailable.
package node
