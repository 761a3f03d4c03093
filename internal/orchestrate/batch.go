package orchestrate

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Job is one transcript of a batch. A nil Analyst selects the configured one.
type Job struct {
	Request Request
	Analyst Analyst
}

// JobResult pairs a job with its outcome or error.
type JobResult struct {
	Job     Job
	Outcome *Outcome
	Err     error
}

// ProcessBatch processes jobs with up to parallel projects in flight. Jobs of
// one project run sequentially in input order. Results follow input order and
// a failed job never stops the others; the returned error is only the
// context's.
func (o *Orchestrator) ProcessBatch(ctx context.Context, jobs []Job, parallel int) ([]JobResult, error) {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]JobResult, len(jobs))
	var order []string
	byProject := map[string][]int{}
	for i, j := range jobs {
		results[i].Job = j
		id := j.Request.ProjectID
		if _, ok := byProject[id]; !ok {
			order = append(order, id)
		}
		byProject[id] = append(byProject[id], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, id := range order {
		idx := byProject[id]
		g.Go(func() error {
			for _, i := range idx {
				if err := gctx.Err(); err != nil {
					results[i].Err = err
					continue
				}
				an := jobs[i].Analyst
				if an == nil {
					an = o.analyst
				}
				results[i].Outcome, results[i].Err = o.ProcessWith(gctx, jobs[i].Request, an)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}
