package dynsec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/dynboard/api-sdk/option"
)

// Outcome classifies how an operation ended. A succeeded queue item is
// split into applied and idempotent by the audit trail; failed and timed_out
// come from the item itself and from attempt exhaustion respectively.
type Outcome string

const (
	// OutcomeApplied: the change took effect.
	OutcomeApplied Outcome = "applied"
	// OutcomeIdempotent: the desired state already held; nothing changed.
	OutcomeIdempotent Outcome = "idempotent"
	// OutcomeFailed: the server processed the item and reported failure.
	OutcomeFailed Outcome = "failed"
	// OutcomeDryRun: nothing was enqueued; the server returned a preview.
	OutcomeDryRun Outcome = "dry_run"
)

// PollPolicy bounds the wait for a queue item to turn terminal. The interval
// is fixed: every attempt waits the same duration, with no backoff.
type PollPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

func DefaultPollPolicy() PollPolicy {
	return PollPolicy{MaxAttempts: 20, Interval: time.Second}
}

func (p PollPolicy) withDefaults() PollPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 20
	}
	if p.Interval <= 0 {
		p.Interval = time.Second
	}
	return p
}

// RunResult is the terminal view of one operation.
type RunResult struct {
	Outcome Outcome
	QueueID int64
	// Item is the terminal queue item; nil for dry runs and for operations
	// the server applied synchronously without queueing.
	Item *QueueItem
	// Preview holds the server's dry-run response, opaque to the client.
	Preview []byte
}

// Runner owns the asynchronous operation protocol: submit a mutation, poll
// the queue item to a terminal status, reconcile the outcome against the
// audit trail. One Runner serves any number of operations; it keeps no
// per-operation state.
type Runner struct {
	Apply  *ApplyService
	Queue  *QueueService
	Audit  *AuditService
	Policy PollPolicy

	// OnQueued is called once the server acknowledges an enqueue, before
	// polling starts. Optional.
	OnQueued func(queueID int64)
	// OnPoll is called after each poll attempt with the attempt number and
	// the status seen. Optional.
	OnPoll func(attempt int, status Status)
}

// Run executes the full submit, poll and reconcile cycle for one operation.
//
// A RunResult with OutcomeFailed and a nil error means the poll itself
// succeeded but the server reported the operation failed; inspect
// Item.ErrorMessage. A nil result with an error wrapping ErrPollTimeout
// means the outcome is unknown and the user should be told the change may
// have succeeded.
func (r *Runner) Run(ctx context.Context, params ApplyParams, opts ...option.RequestOption) (*RunResult, error) {
	resp, err := r.Apply.Submit(ctx, params, opts...)
	if err != nil {
		return nil, err
	}

	if params.DryRun {
		return &RunResult{Outcome: OutcomeDryRun, Preview: resp.Preview}, nil
	}

	if !resp.Queued {
		// Applied synchronously, no queue item to poll.
		return &RunResult{Outcome: OutcomeApplied}, nil
	}

	if r.OnQueued != nil {
		r.OnQueued(resp.QueueID)
	}

	item, err := r.Poll(ctx, resp.QueueID, opts...)
	if err != nil {
		return nil, err
	}

	res := &RunResult{QueueID: resp.QueueID, Item: item}
	if item.Status == StatusFailed {
		res.Outcome = OutcomeFailed
		return res, nil
	}

	res.Outcome = r.Reconcile(ctx, resp.QueueID, opts...)
	return res, nil
}

// Poll fetches the queue item up to Policy.MaxAttempts times, sleeping the
// fixed interval after every pending read. It returns the item as soon as it
// is terminal; a failed item is a successful poll, not a poll error. A
// missing item fails immediately with ErrQueueItemNotFound, without retrying:
// a queue id that does not exist can never subsequently appear. Exhausting
// every attempt on a still-pending item returns ErrPollTimeout.
func (r *Runner) Poll(ctx context.Context, queueID int64, opts ...option.RequestOption) (*QueueItem, error) {
	policy := r.Policy.withDefaults()

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		item, err := r.Queue.Get(ctx, queueID, opts...)
		if err != nil {
			return nil, err
		}

		if r.OnPoll != nil {
			r.OnPoll(attempt, item.Status)
		}

		if item.Status.Terminal() {
			return item, nil
		}

		if err := sleep(ctx, policy.Interval); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("queue item %d: %w", queueID, ErrPollTimeout)
}

// Reconcile classifies a terminally succeeded queue item as applied or
// idempotent by reading its audit entries. When the audit lookup fails or
// returns nothing, the classification degrades to applied: the audit trail
// is a best-effort messaging signal and must never block the flow or drive
// retries.
func (r *Runner) Reconcile(ctx context.Context, queueID int64, opts ...option.RequestOption) Outcome {
	entries, err := r.Audit.ListByQueueID(ctx, queueID, opts...)
	if err != nil || len(entries) == 0 {
		return OutcomeApplied
	}
	for i := range entries {
		if entries[i].Idempotent() {
			return OutcomeIdempotent
		}
	}
	return OutcomeApplied
}

// BulkResult pairs one entry of a bulk run with its result or error.
type BulkResult struct {
	Index  int
	Params ApplyParams
	Result *RunResult
	Err    error
}

// RunBulk executes the operations strictly one at a time: each entry's full
// submit, poll and reconcile cycle completes before the next submit starts.
// The sequential contract keeps the operation queue from being flooded by a
// single bulk action. A context cancellation stops the remaining entries;
// their BulkResult.Err carries the context error.
func (r *Runner) RunBulk(ctx context.Context, params []ApplyParams, opts ...option.RequestOption) []BulkResult {
	results := make([]BulkResult, len(params))
	for i, p := range params {
		results[i] = BulkResult{Index: i, Params: p}
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		results[i].Result, results[i].Err = r.Run(ctx, p, opts...)
	}
	return results
}

// IsTimeout reports whether the error is a poll timeout, the one case where
// the operation's true outcome is unknown.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrPollTimeout)
}

// IsNotFound reports whether the error is a missing queue item.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrQueueItemNotFound)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
