package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/tanq16/urlget/internal/output"
	"github.com/tanq16/urlget/internal/utils"
)

// PerformFunc runs the transfer of one job.
type PerformFunc func(ctx context.Context, job utils.Job) (int64, error)

// Run executes the jobs on numWorkers workers and returns one result per
// job, in job order. Jobs never share a session, so a failing job does not
// affect the others.
func Run(ctx context.Context, jobs []utils.Job, numWorkers int, perform PerformFunc, outputMgr *output.Manager) []utils.JobResult {
	if numWorkers < 1 {
		numWorkers = 1
	}
	log := utils.GetLogger("scheduler")

	type indexed struct {
		index int
		id    int
		job   utils.Job
	}
	jobCh := make(chan indexed, len(jobs))
	for i, job := range jobs {
		jobCh <- indexed{index: i, id: outputMgr.Register(job.Label), job: job}
	}
	close(jobCh)

	outputMgr.StartDisplay()
	defer outputMgr.StopDisplay()

	results := make([]utils.JobResult, len(jobs))
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for item := range jobCh {
				log.Debug().Str("op", "scheduler/run").Int("worker", workerID).Str("job", item.job.ID).Msg("starting job")
				results[item.index] = processJob(ctx, item.id, item.job, perform, outputMgr)
			}
		}(i)
	}
	wg.Wait()
	return results
}

func processJob(ctx context.Context, id int, job utils.Job, perform PerformFunc, outputMgr *output.Manager) utils.JobResult {
	outputMgr.SetStatus(id, "pending")
	outputMgr.SetMessage(id, "Transferring "+job.Label)

	start := time.Now()
	n, err := perform(ctx, job)
	result := utils.JobResult{Job: job, Bytes: n, Err: err, Duration: time.Since(start)}
	if err != nil {
		outputMgr.ReportError(id, err)
		return result
	}
	outputMgr.Complete(id, n)
	return result
}
