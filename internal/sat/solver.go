package sat

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// antecedentKind tags the origin of an assignment on the trail.
type antecedentKind uint8

const (
	// antecedentDecision marks literals picked by the branching heuristic as
	// well as root-level facts.
	antecedentDecision antecedentKind = iota

	// antecedentClause marks literals forced by a clause that became unit.
	antecedentClause

	// antecedentImported marks literals forced by a clause received from
	// another worker. Imported antecedents behave exactly like propagated
	// ones; the search never reads the tag.
	antecedentImported
)

// antecedent is the reason a variable was assigned.
type antecedent struct {
	kind   antecedentKind
	clause *Clause
}

func decisionReason() antecedent {
	return antecedent{kind: antecedentDecision}
}

func clauseReason(c *Clause) antecedent {
	return antecedent{kind: antecedentClause, clause: c}
}

func importedReason(c *Clause) antecedent {
	return antecedent{kind: antecedentImported, clause: c}
}

// watcher represents a clause attached to the watch list of a literal.
type watcher struct {
	// The clause to be propagated when the watched literal becomes true.
	clause *Clause

	// Guard is one of the clause's literals. If it is true, then there is
	// no need to propagate the clause. Note that the guard literal must be
	// different from the watcher literal.
	guard Literal
}

// Options configures a solver. All workers of a portfolio share the same
// options: the replicas are identical and only diverge through the timing of
// their clause imports.
type Options struct {
	ClauseDecay   float64
	VariableDecay float64
	PhaseSaving   bool

	// RestartBase scales the Luby sequence: restart i is triggered after
	// RestartBase*luby(i) conflicts.
	RestartBase int64

	// The learnt DB is reduced every ReduceBase + ReduceInc*r conflicts,
	// where r is the number of reductions performed so far.
	ReduceBase int64
	ReduceInc  int64

	// Bounds on the clauses a worker offers to the shared database. Clauses
	// larger than MaxExportSize literals or with an LBD above MaxExportLBD
	// stay local. The export buffer holds at most ExportBufferSize clauses;
	// when full, the oldest buffered clause is dropped.
	MaxExportSize    int
	MaxExportLBD     uint32
	ExportBufferSize int

	// Stop conditions. Negative values disable them.
	MaxConflicts int64
	Timeout      time.Duration
}

var DefaultOptions = Options{
	ClauseDecay:      0.999,
	VariableDecay:    0.95,
	PhaseSaving:      true,
	RestartBase:      32,
	ReduceBase:       2000,
	ReduceInc:        300,
	MaxExportSize:    32,
	MaxExportLBD:     8,
	ExportBufferSize: 256,
	MaxConflicts:     -1,
	Timeout:          -1,
}

// Stats are the per-worker search statistics.
type Stats struct {
	Conflicts    int64
	Decisions    int64
	Propagations int64
	Restarts     int64
	Reductions   int64
	Learnt       int64
	Deleted      int64
	Exported     int64
	Imported     int64
	AvgLBD       float64
}

// Solver is a sequential CDCL solver. It is the unit replicated by the
// portfolio: each worker owns one Solver and the solvers only interact
// through the shared clause database.
type Solver struct {
	opts Options

	// Clause database.
	constraints []*Clause
	learnts     []*Clause
	clauseInc   float64
	clauseDecay float64

	// Variable ordering.
	order *VarOrder

	// Propagation and watchers.
	watchers  [][]watcher
	propQueue *Queue[Literal]

	// Value assigned to each literal.
	assigns []LBool

	// Trail.
	trail    []Literal
	trailLim []int
	reasons  []antecedent
	levels   []int

	// Whether the problem has reached a top level conflict.
	unsat bool

	// Restart and cleanup state.
	luby                  lubyGen
	restartLimit          int64
	conflictsSinceRestart int64
	conflictsSinceReduce  int64

	// Clause exchange. shared is nil for standalone solvers.
	shared    *SharedDB
	workerID  int
	exportBuf []SharedClause
	importBuf []SharedClause

	// Model found by the last successful Solve.
	Model []bool

	stats     Stats
	lbdEMA    EMA
	startTime time.Time

	// Shared by operations that need to put variables in a set and empty
	// that set efficiently.
	seenVar           *ResetSet
	seenLevel         *ResetSet
	minimizeRemovable *ResetSet
	minimizeFailed    *ResetSet

	// Temporary slice used in the Propagate function. The slice is re-used by
	// all Propagate calls to avoid unnecessarily allocating new slices.
	tmpWatchers []watcher

	// Temporary slice used in analyze to accumulate the learnt clause.
	tmpLearnts []Literal

	// Used by clauses to explain themselves.
	tmpReason []Literal
}

// NewDefaultSolver returns a solver configured with default options. This is
// equivalent to calling NewSolver with DefaultOptions.
func NewDefaultSolver() *Solver {
	return NewSolver(DefaultOptions)
}

func NewSolver(opts Options) *Solver {
	s := &Solver{
		opts:              opts,
		clauseDecay:       opts.ClauseDecay,
		clauseInc:         1,
		order:             NewVarOrder(opts.VariableDecay, opts.PhaseSaving),
		propQueue:         NewQueue[Literal](128),
		lbdEMA:            NewEMA(0.999),
		seenVar:           &ResetSet{},
		seenLevel:         &ResetSet{},
		minimizeRemovable: &ResetSet{},
		minimizeFailed:    &ResetSet{},
	}
	s.seenLevel.Expand() // level 0 exists even with no variables
	return s
}

// NewSolverFromInstance returns a solver loaded with the given instance.
func NewSolverFromInstance(opts Options, inst *Instance) *Solver {
	s := NewSolver(opts)
	for i := 0; i < inst.Variables; i++ {
		s.AddVariable()
	}
	for _, c := range inst.Clauses {
		s.AddClause(c)
	}
	return s
}

func (s *Solver) NumVariables() int {
	return len(s.assigns) / 2
}

func (s *Solver) NumAssigns() int {
	return len(s.trail)
}

func (s *Solver) NumConstraints() int {
	return len(s.constraints)
}

func (s *Solver) NumLearnts() int {
	return len(s.learnts)
}

func (s *Solver) VarValue(v int) LBool {
	return s.assigns[PositiveLiteral(v)]
}

func (s *Solver) LitValue(l Literal) LBool {
	return s.assigns[l]
}

// Statistics returns a snapshot of the solver's search statistics.
func (s *Solver) Statistics() Stats {
	st := s.stats
	st.AvgLBD = s.lbdEMA.Val()
	return st
}

func (s *Solver) AddVariable() int {
	index := s.NumVariables()
	s.watchers = append(s.watchers, nil, nil)
	s.assigns = append(s.assigns, Unknown, Unknown)
	s.reasons = append(s.reasons, antecedent{})
	s.levels = append(s.levels, -1)
	s.seenVar.Expand()
	s.seenLevel.Expand()
	s.minimizeRemovable.Expand()
	s.minimizeFailed.Expand()
	s.order.AddVar()
	return index
}

// AddClause adds a clause of the initial formula. Clauses can only be added
// at the root level, before the search starts.
func (s *Solver) AddClause(clause []Literal) error {
	if s.decisionLevel() != 0 {
		return fmt.Errorf("can only add clauses at the root level")
	}
	for _, l := range clause {
		if v := l.VarID(); v < 0 || v >= s.NumVariables() {
			return fmt.Errorf("literal %s out of range", l)
		}
	}
	c, ok := newProblemClause(s, clause)
	if c != nil {
		s.constraints = append(s.constraints, c)
	}
	if !ok {
		s.unsat = true
	}
	return nil
}

// watch registers clause c to be woken up when literal wake is assigned true.
func (s *Solver) watch(c *Clause, wake Literal, guard Literal) {
	s.watchers[wake] = append(s.watchers[wake], watcher{clause: c, guard: guard})
}

// unwatch removes clause c from the watch list of literal wake.
func (s *Solver) unwatch(c *Clause, wake Literal) {
	ws := s.watchers[wake]
	j := 0
	for i := 0; i < len(ws); i++ {
		if ws[i].clause != c {
			ws[j] = ws[i]
			j++
		}
	}
	s.watchers[wake] = ws[:j]
}

func (s *Solver) decisionLevel() int {
	return len(s.trailLim)
}

// enqueue records the assignment of literal l with the given antecedent. It
// returns false if l is already falsified, i.e. on a conflicting assignment.
func (s *Solver) enqueue(l Literal, from antecedent) bool {
	switch s.LitValue(l) {
	case False:
		return false // conflicting assignment
	case True:
		return true // already assigned
	default:
		v := l.VarID()
		s.assigns[l] = True
		s.assigns[l.Opposite()] = False
		s.levels[v] = s.decisionLevel()
		s.reasons[v] = from
		if from.clause != nil {
			from.clause.lockedBy = v
		}
		s.trail = append(s.trail, l)
		s.propQueue.Push(l)
		return true
	}
}

// Propagate drains the propagation queue to fixpoint and returns the first
// conflicting clause found, if any.
func (s *Solver) Propagate() *Clause {
	for s.propQueue.Size() > 0 {
		l := s.propQueue.Pop()
		s.stats.Propagations++

		s.tmpWatchers = s.tmpWatchers[:0]
		s.tmpWatchers = append(s.tmpWatchers, s.watchers[l]...)
		s.watchers[l] = s.watchers[l][:0]

		for i, w := range s.tmpWatchers {
			// No need to propagate the clause if its guard is true. This
			// avoids loading the clause in memory at all. Note that this
			// alters the order in which clauses are propagated and can thus
			// yield different conflicts and learnt clauses.
			if s.LitValue(w.guard) == True {
				s.watchers[l] = append(s.watchers[l], w)
				continue
			}

			if w.clause.propagate(s, l) {
				continue
			}

			// Clause is conflicting: copy the remaining watchers and
			// return it.
			s.watchers[l] = append(s.watchers[l], s.tmpWatchers[i+1:]...)
			s.propQueue.Clear()
			return s.tmpWatchers[i].clause
		}
	}
	return nil
}

func (s *Solver) assume(l Literal) bool {
	s.trailLim = append(s.trailLim, len(s.trail))
	return s.enqueue(l, decisionReason())
}

func (s *Solver) undoOne() {
	l := s.trail[len(s.trail)-1]
	v := l.VarID()

	s.order.Reinsert(v, Lift(l.IsPositive()))
	s.assigns[l] = Unknown
	s.assigns[l.Opposite()] = Unknown
	if c := s.reasons[v].clause; c != nil {
		c.lockedBy = -1
	}
	s.reasons[v] = antecedent{}
	s.levels[v] = -1

	s.trail = s.trail[:len(s.trail)-1]
}

func (s *Solver) cancel() {
	c := len(s.trail) - s.trailLim[len(s.trailLim)-1]
	for ; c != 0; c-- {
		s.undoOne()
	}
	s.trailLim = s.trailLim[:len(s.trailLim)-1]
}

func (s *Solver) cancelUntil(level int) {
	if s.decisionLevel() <= level {
		return
	}
	for s.decisionLevel() > level {
		s.cancel()
	}
	// Pending implications were enqueued at the undone levels.
	s.propQueue.Clear()
}

func (s *Solver) BumpClaActivity(c *Clause) {
	c.activity += s.clauseInc

	if c.activity > 1e100 {
		s.clauseInc *= 1e-100 // important to keep proportions
		for _, l := range s.learnts {
			l.activity *= 1e-100
		}
	}
}

func (s *Solver) DecayClaActivity() {
	s.clauseInc *= s.clauseDecay
}

// Solve runs the CDCL search until the instance is decided or a stop
// condition triggers. On True, the model is available in s.Model.
func (s *Solver) Solve() LBool {
	status, model := s.run(context.Background(), nil)
	s.Model = model
	return status
}

// run is the CDCL main loop. It returns Unknown if the search was cancelled
// through the context, the result cell, or a stop condition.
func (s *Solver) run(ctx context.Context, cell *resultCell) (LBool, []bool) {
	if s.unsat {
		return False, nil
	}
	s.startTime = time.Now()
	s.restartLimit = s.opts.RestartBase * s.luby.Next()

	for {
		if conflict := s.Propagate(); conflict != nil {
			if !s.resolveConflict(conflict) {
				return False, nil
			}
			continue
		}

		// Propagation quiescence: trade learnt clauses with the other
		// workers before committing to a new decision.
		if s.shared != nil {
			conflict, ok := s.exchange()
			if !ok {
				return False, nil
			}
			if conflict != nil {
				if !s.resolveConflict(conflict) {
					return False, nil
				}
				continue
			}
			if !s.propQueue.IsEmpty() {
				continue // imports became unit, propagate them first
			}
		}

		if cancelled(ctx, cell) {
			return Unknown, nil
		}

		if s.decisionLevel() == 0 {
			s.simplifyLearnts()
		}

		if s.conflictsSinceReduce >= s.reduceLimit() {
			s.conflictsSinceReduce = 0
			s.reduceDB()
		}

		if s.NumAssigns() == s.NumVariables() { // solution found
			model := s.model()
			s.cancelUntil(0)
			return True, model
		}

		if s.conflictsSinceRestart >= s.restartLimit {
			s.restart()
			continue
		}

		if s.shouldStop() {
			return Unknown, nil
		}

		s.stats.Decisions++
		s.assume(s.order.NextDecision(s))
	}
}

// resolveConflict learns from the conflict and backtracks. It returns false
// if the conflict proves the instance unsatisfiable.
func (s *Solver) resolveConflict(conflict *Clause) bool {
	s.stats.Conflicts++
	s.conflictsSinceRestart++
	s.conflictsSinceReduce++

	if s.decisionLevel() == 0 {
		s.unsat = true
		return false
	}

	learnt, backtrackLevel := s.analyze(conflict)
	lbd := s.computeLBD(learnt)
	s.lbdEMA.Add(float64(lbd))

	s.cancelUntil(backtrackLevel)
	s.record(learnt, lbd)

	s.DecayClaActivity()
	s.order.DecayScores()
	return true
}

// record turns the result of conflict analysis into a learnt clause and
// enqueues its asserting literal. The clause is also offered to the shared
// database.
func (s *Solver) record(learnt []Literal, lbd uint32) {
	c := newLearntClause(s, learnt, lbd)
	if c == nil {
		// Unit learnt clauses become root-level facts.
		s.enqueue(learnt[0], decisionReason())
	} else {
		s.learnts = append(s.learnts, c)
		s.stats.Learnt++
		s.BumpClaActivity(c)
		s.enqueue(learnt[0], clauseReason(c))
	}
	if s.shared != nil {
		s.bufferExport(learnt, lbd)
	}
}

// computeLBD returns the number of distinct decision levels among the
// literals. It must be called before backtracking, while the literals are
// still assigned.
func (s *Solver) computeLBD(lits []Literal) uint32 {
	s.seenLevel.Clear()
	lbd := uint32(0)
	for _, l := range lits {
		level := s.levels[l.VarID()]
		if level < 0 || s.seenLevel.Contains(level) {
			continue
		}
		s.seenLevel.Add(level)
		lbd++
	}
	return lbd
}

func (s *Solver) restart() {
	s.stats.Restarts++
	s.conflictsSinceRestart = 0
	s.restartLimit = s.opts.RestartBase * s.luby.Next()
	s.cancelUntil(0)
}

func (s *Solver) reduceLimit() int64 {
	return s.opts.ReduceBase + s.opts.ReduceInc*s.stats.Reductions
}

// reduceDB drops the lower-activity half of the learnt clauses, keeping the
// clauses that are locked, binary, or low-LBD.
func (s *Solver) reduceDB() {
	s.stats.Reductions++

	sort.Slice(s.learnts, func(i, j int) bool {
		return s.learnts[i].activity < s.learnts[j].activity
	})

	j := 0
	for i, c := range s.learnts {
		if i >= len(s.learnts)/2 || c.locked() || len(c.literals) <= 2 || c.lbd <= 2 {
			s.learnts[j] = c
			j++
		} else {
			c.delete(s)
			s.stats.Deleted++
		}
	}
	s.learnts = s.learnts[:j]
}

// simplifyLearnts removes the learnt clauses that are satisfied at the root
// level and discards their root-falsified literals.
func (s *Solver) simplifyLearnts() {
	j := 0
	for _, c := range s.learnts {
		if !c.locked() && c.simplify(s) {
			c.delete(s)
			s.stats.Deleted++
		} else {
			s.learnts[j] = c
			j++
		}
	}
	s.learnts = s.learnts[:j]
}

func (s *Solver) model() []bool {
	model := make([]bool, s.NumVariables())
	for v := range model {
		val := s.VarValue(v)
		if val == Unknown {
			panic("not a model")
		}
		model[v] = val == True
	}
	return model
}

func (s *Solver) shouldStop() bool {
	if s.opts.MaxConflicts >= 0 && s.stats.Conflicts >= s.opts.MaxConflicts {
		return true
	}
	if s.opts.Timeout >= 0 && time.Since(s.startTime) >= s.opts.Timeout {
		return true
	}
	return false
}

// cancelled reports whether the worker should abandon its search: either
// another worker published a result, or the caller cancelled the solve.
func cancelled(ctx context.Context, cell *resultCell) bool {
	if cell != nil && cell.get() != nil {
		return true
	}
	return ctx.Err() != nil
}
