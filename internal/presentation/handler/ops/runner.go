package ops

import (
	"context"

	dynsec "github.com/hilthontt/dynboard/api-sdk"
)

// RunStats carries what the runner observed along the way, available even
// when the run itself errored.
type RunStats struct {
	QueueID  int64
	Attempts int
}

// Runner executes the full submit, poll and reconcile cycle for a single
// operation.
type Runner interface {
	Run(ctx context.Context, params dynsec.ApplyParams) (*dynsec.RunResult, RunStats, error)
}

// SDKRunner adapts a dynsec.Runner to the handler seam. The base runner is
// held by value and copied on every call so the callbacks never race between
// concurrent requests.
type SDKRunner struct {
	Base dynsec.Runner
}

func (r *SDKRunner) Run(ctx context.Context, params dynsec.ApplyParams) (*dynsec.RunResult, RunStats, error) {
	run := r.Base
	var stats RunStats
	run.OnQueued = func(queueID int64) {
		stats.QueueID = queueID
	}
	run.OnPoll = func(attempt int, _ dynsec.Status) {
		stats.Attempts = attempt
	}
	res, err := run.Run(ctx, params)
	return res, stats, err
}
