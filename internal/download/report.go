package download

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/handiism/quicksong/internal/identity"
	"github.com/handiism/quicksong/internal/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Result is the terminal outcome of one id.
type Result struct {
	ID       model.ResourceID
	Outcome  model.Outcome
	Path     string
	Attempts int
	Err      error
}

// Report collects the results of a run.
type Report struct {
	RunID   string
	Results []Result
}

// Count returns the number of results with outcome o.
func (r *Report) Count(o model.Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Merge appends the results of other.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Results = append(r.Results, other.Results...)
}

// Summary returns a one-line human readable tally.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d downloaded, %d already existed, %d failed, %d dropped, %d abandoned",
		r.Count(model.OutcomeSucceeded),
		r.Count(model.OutcomeSkipped),
		r.Count(model.OutcomeFailedFatal),
		r.Count(model.OutcomeDropped),
		r.Count(model.OutcomeAbandoned))
}

// Partition deals ids round-robin into n slices.
func Partition(ids []model.ResourceID, n int) [][]model.ResourceID {
	n = max(n, 1)
	parts := make([][]model.ResourceID, n)
	for i, id := range ids {
		parts[i%n] = append(parts[i%n], id)
	}
	return parts
}

// Sharder splits an identity source into disjoint views.
type Sharder interface {
	Shard(index, count int) *identity.Shard
}

// RunAll runs workers orchestrators side by side over disjoint slices of
// opts.IDs and merges their reports.
//
// Ids are deduplicated before they are dealt out, so an id is never
// fetched by two workers. When opts.Identities is a Sharder, each worker
// gets its own shard of proxies. With more than one worker, each
// orchestrator keeps at most workers+1 fetches in flight.
//
// A construction error (bad download path) aborts every worker.
func RunAll(ctx context.Context, opts Options, workers int) (*Report, error) {
	if workers <= 1 {
		o, err := New(opts)
		if err != nil {
			return nil, err
		}
		return o.Run(ctx)
	}

	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	parts := Partition(dedupe(opts.IDs), workers)
	orchestrators := make([]*Orchestrator, 0, workers)
	for i, ids := range parts {
		wopts := opts
		wopts.IDs = ids
		wopts.MaxInFlight = workers + 1
		wopts.Logger = log.WithField("worker", i)
		if s, ok := opts.Identities.(Sharder); ok {
			wopts.Identities = s.Shard(i, workers)
		}
		o, err := New(wopts)
		if err != nil {
			return nil, err
		}
		orchestrators = append(orchestrators, o)
	}

	var (
		mu     sync.Mutex
		merged = &Report{RunID: opts.RunID}
	)
	var g errgroup.Group
	for _, o := range orchestrators {
		g.Go(func() error {
			report, err := o.Run(ctx)
			mu.Lock()
			merged.Merge(report)
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	return merged, err
}

func dedupe(ids []model.ResourceID) []model.ResourceID {
	seen := make(map[model.ResourceID]struct{}, len(ids))
	out := make([]model.ResourceID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return slices.Clip(out)
}
