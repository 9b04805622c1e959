// Package realtime drives a chartkit Machine from a fixed-rate tick loop.
//
// Events are not processed when they are sent. They are queued and the
// whole batch is dispatched at the next tick boundary, ordered by:
//  1. Priority (higher first)
//  2. Sequence number (FIFO for equal priority)
//
// Given the same sequence of SendEvent calls, the machine goes through the
// same macrosteps regardless of goroutine timing. Each event of a batch is
// a full macrostep on the machine, so eventless transitions have settled
// before the next event of the batch is dispatched.
//
// # Example Usage
//
//	def, _ := core.NewDefinition(cfg)
//	rt := realtime.NewRuntime(core.NewMachine(def), realtime.Config{
//		TickRate: 16667 * time.Microsecond, // 60 FPS
//	})
//	rt.Start(ctx)
//	defer rt.Stop()
//	rt.SendEvent(primitives.NewEvent("JUMP", nil))
//
// Tick can be called directly instead of Start for stepped execution (tests,
// replays).
//
// # Use Cases
//
//   - Game logic at a fixed frame rate
//   - Fixed time-step simulations
//   - Reproducible replays of recorded input
package realtime
