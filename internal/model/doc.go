// Package model defines the core data structures used throughout
// quicksong.
//
// # ResourceID
//
// ResourceID is the numeric id of a beatmap set on the remote service:
//
//	id := model.ResourceID(123456)
//	fmt.Println(id.TempName()) // beatmap_123456.osz
//
// # Task
//
// Task tracks one id through the download state machine:
//
//	Pending -> InFlight -> {Succeeded, FailedFatal, FailedRetryable}
//	FailedRetryable -> Pending (when re-enqueued)
//
// # Errors
//
// Error carries an ErrorKind so callers can decide between aborting,
// retrying and dropping:
//
//	if model.KindOf(err) == model.KindPath {
//	    // fatal precondition, abort before any download starts
//	}
//
// # Retry Policy
//
// RetryPolicy computes the cooldown before a retried attempt:
//
//	policy := model.DefaultRetryPolicy()
//	delay := policy.Delay(task.Attempts)
package model
