package sat

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrIncomplete is returned when the solve was cancelled before any worker
// could decide the instance.
var ErrIncomplete = errors.New("cancelled before a result could be found")

// Result is the outcome of a portfolio solve.
type Result struct {
	// Status is True for SAT and False for UNSAT.
	Status LBool

	// Model is the satisfying assignment, indexed by variable. It is only
	// set when Status is True.
	Model []bool

	// Winner is the ID of the worker that decided the instance.
	Winner int
}

// resultCell is a single-writer-wins cell shared by all workers. Once set it
// is immutable; workers poll it at their cancellation checkpoints.
type resultCell struct {
	v atomic.Pointer[Result]
}

// publish installs r and reports whether it won the race.
func (rc *resultCell) publish(r *Result) bool {
	return rc.v.CompareAndSwap(nil, r)
}

func (rc *resultCell) get() *Result {
	return rc.v.Load()
}

// DefaultWorkers returns the default portfolio size for this machine.
func DefaultWorkers() int {
	if n := runtime.NumCPU(); n < 4 {
		return n
	}
	return 4
}

// Portfolio races identical solver replicas on the same instance. The
// replicas share learnt clauses through a SharedDB and stop as soon as one of
// them decides the instance.
type Portfolio struct {
	// Workers is the number of replicas. Values below 1 select
	// DefaultWorkers().
	Workers int

	// Options configures every replica. All replicas are identical: they
	// only diverge through the timing of their clause imports.
	Options Options

	// Logger receives per-worker diagnostics. Nil disables them.
	Logger logrus.FieldLogger

	// Solvers created by the last Solve call, exposed for statistics.
	solvers []*Solver
}

// NewPortfolio returns a portfolio with n workers and default options.
func NewPortfolio(n int) *Portfolio {
	return &Portfolio{Workers: n, Options: DefaultOptions}
}

// Solve decides the instance. It blocks until a worker produces an answer or
// the context is cancelled, in which case it returns ErrIncomplete.
func (p *Portfolio) Solve(ctx context.Context, inst *Instance) (*Result, error) {
	n := p.Workers
	if n < 1 {
		n = DefaultWorkers()
	}

	db := NewSharedDB(n)
	cell := &resultCell{}

	p.solvers = make([]*Solver, n)
	for i := range p.solvers {
		s := NewSolverFromInstance(p.Options, inst)
		s.workerID = i
		s.shared = db
		p.solvers[i] = s
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := range p.solvers {
		s := p.solvers[i]
		g.Go(func() error {
			status, model := s.run(ctx, cell)
			db.Detach(s.workerID)

			if status == Unknown {
				return nil // cancelled
			}
			won := cell.publish(&Result{
				Status: status,
				Model:  model,
				Winner: s.workerID,
			})
			if p.Logger != nil {
				st := s.Statistics()
				p.Logger.WithFields(logrus.Fields{
					"worker":    s.workerID,
					"won":       won,
					"status":    status.String(),
					"conflicts": st.Conflicts,
					"learnt":    st.Learnt,
					"exported":  st.Exported,
					"imported":  st.Imported,
				}).Debug("worker finished")
			}
			return nil
		})
	}

	// Workers never return errors: Wait is a plain join here, the group's
	// context is what propagates external cancellation to the replicas.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := cell.get()
	if res == nil {
		return nil, ErrIncomplete
	}
	return res, nil
}

// Stats returns the per-worker statistics of the last Solve call.
func (p *Portfolio) Stats() []Stats {
	stats := make([]Stats, len(p.solvers))
	for i, s := range p.solvers {
		stats[i] = s.Statistics()
	}
	return stats
}
