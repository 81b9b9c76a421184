package explain

import (
	"golang.org/x/sync/errgroup"
)

// Outcome pairs a batch request with its result or error.
type Outcome struct {
	Request Request
	Result  *Result
	Err     error
}

// Batch explains reqs with at most limit requests in flight (limit <= 0
// means one per CPU worker of the backend). Outcomes are in request order;
// one failing request does not stop the others.
func (e *Explainer) Batch(reqs []Request, limit int) []Outcome {
	if limit <= 0 {
		limit = max(e.opts.Parallel.NumWorkers, 1)
	}

	out := make([]Outcome, len(reqs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := e.Explain(req)
			out[i] = Outcome{Request: req, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
