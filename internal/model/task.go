package model

import "fmt"

// TaskState is the position of a Task in the download state machine.
type TaskState int

const (
	StatePending TaskState = iota
	StateInFlight
	StateSucceeded
	StateFailedFatal
	StateFailedRetryable
)

func (s TaskState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in-flight"
	case StateSucceeded:
		return "succeeded"
	case StateFailedFatal:
		return "failed"
	case StateFailedRetryable:
		return "retrying"
	default:
		return fmt.Sprintf("TaskState(%d)", int(s))
	}
}

// Outcome is the terminal result reported for an id.
type Outcome int

const (
	// OutcomeSkipped means the id was already present locally.
	OutcomeSkipped Outcome = iota

	// OutcomeSucceeded means the archive was downloaded. The rename to the
	// server-provided name may still have failed; see Result.Err.
	OutcomeSucceeded

	// OutcomeFailedFatal means the service refused the id permanently.
	OutcomeFailedFatal

	// OutcomeDropped means the attempt failed in an unclassified way and
	// was not retried.
	OutcomeDropped

	// OutcomeAbandoned means the task was still retryable when the run
	// ended (cancellation or retry limit).
	OutcomeAbandoned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "already exists"
	case OutcomeSucceeded:
		return "success"
	case OutcomeFailedFatal:
		return "failed"
	case OutcomeDropped:
		return "dropped"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Task tracks a single id through the download state machine.
//
// A Task is owned by one goroutine at a time; it is not safe for
// concurrent use.
type Task struct {
	// ID is the beatmap set being downloaded.
	ID ResourceID

	// State is the current state.
	State TaskState

	// Attempts counts how many fetches have been started.
	Attempts int

	// LastError is the error of the most recent failed attempt.
	LastError error
}

// NewTask creates a pending task for id.
func NewTask(id ResourceID) *Task {
	return &Task{ID: id, State: StatePending}
}

// Start moves a pending task in flight and counts the attempt.
//
// It fails if the task is not pending, which guarantees a task never has
// two fetches outstanding.
func (t *Task) Start() error {
	if t.State != StatePending {
		return fmt.Errorf("task %d: cannot start from state %s", t.ID, t.State)
	}
	t.State = StateInFlight
	t.Attempts++
	return nil
}

// Finish records the end of the current attempt.
func (t *Task) Finish(state TaskState, err error) error {
	if t.State != StateInFlight {
		return fmt.Errorf("task %d: cannot finish from state %s", t.ID, t.State)
	}
	switch state {
	case StateSucceeded, StateFailedFatal, StateFailedRetryable:
	default:
		return fmt.Errorf("task %d: %s is not a completion state", t.ID, state)
	}
	t.State = state
	t.LastError = err
	return nil
}

// Requeue moves a retryable task back to pending.
func (t *Task) Requeue() error {
	if t.State != StateFailedRetryable {
		return fmt.Errorf("task %d: cannot requeue from state %s", t.ID, t.State)
	}
	t.State = StatePending
	return nil
}
