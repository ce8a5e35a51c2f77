// Package dispatcher delivers queued OpenWebNet frames to the plant.
//
// A Dispatcher is the single consumer of the priority queue and the only
// owner of the plant session. Its loop is:
//
//	pop frame (blocks while the queue is empty)
//	open a session if none is open
//	send the frame
//	pace: wait the fixed interval the plant needs between commands
//	if the queue is now empty, close the session
//
// The session lives in the loop's local state and is never shared, so it
// needs no locking. Consecutive frames reuse one session for as long as
// the queue does not drain between them.
//
// # Failure Policy
//
// Connect and write failures never stop the loop. With PolicyDrop (the
// default) the failed frame is logged and discarded: delivery is at most
// once. PolicyRequeue puts the frame back at the head of its priority
// level and backs off exponentially, up to Config.MaxAttempts tries.
// Close failures are logged and the session is discarded anyway.
//
// # Shutdown
//
// Run returns when its context is cancelled, either while waiting for
// work or while pacing. Any open session is closed on the way out.
package dispatcher
