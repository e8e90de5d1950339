package catalog

import (
	"time"
)

type ResultState int

const (
	// Ready: the step's precondition held and its effects were applied.
	Ready ResultState = iota
	// NotYetReady: the precondition does not hold yet; check again later.
	NotYetReady
	// Failed: the step cannot succeed; the job has been marked failed.
	Failed
)

// Result is the outcome of one reconciliation step. NotYetReady results
// carry the delay after which the step should be re-checked; callers
// re-enqueue instead of blocking.
type Result struct {
	State      ResultState
	RetryAfter time.Duration
	Reason     string
	// RowMissing distinguishes "job row not visible yet" from "counters not
	// converged yet". Missing rows get a bounded retry budget.
	RowMissing bool
}

func ready() Result {
	return Result{State: Ready}
}

func notYetReady(after time.Duration, reason string) Result {
	return Result{State: NotYetReady, RetryAfter: after, Reason: reason}
}

func rowMissing(after time.Duration, reason string) Result {
	return Result{State: NotYetReady, RetryAfter: after, Reason: reason, RowMissing: true}
}

func failed(reason string) Result {
	return Result{State: Failed, Reason: reason}
}
