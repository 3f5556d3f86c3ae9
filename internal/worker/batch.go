package worker

import (
	"context"
)

// indexedJob remembers the submission position of a job
type indexedJob struct {
	index int
	job   Job
}

type indexedResult struct {
	index int
	Result
}

func (j *indexedJob) Execute(ctx context.Context) Result {
	return &indexedResult{index: j.index, Result: j.job.Execute(ctx)}
}

// RunOrdered executes jobs on a pool of the given size and returns the
// results in submission order. Jobs skipped because ctx was cancelled
// leave a nil slot.
func RunOrdered(ctx context.Context, workers int, jobs []Job) []Result {
	if len(jobs) == 0 {
		return []Result{}
	}

	pool := NewPool(ctx, workers)
	pool.Start()

	for i, job := range jobs {
		pool.Submit(&indexedJob{index: i, job: job})
	}

	ordered := make([]Result, len(jobs))
	for _, r := range pool.Wait() {
		ir := r.(*indexedResult)
		ordered[ir.index] = ir.Result
	}

	return ordered
}
