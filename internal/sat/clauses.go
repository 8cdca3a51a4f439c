package sat

import (
	"sort"
	"strings"
)

type status uint8

const (
	statusDeleted  status = 0b001
	statusLearnt   status = 0b010
	statusImported status = 0b100
)

// Clause is a disjunction of literals. The literals are sorted by their
// underlying integer, deduplicated, and never reordered once the clause has
// been created: the watched pair is tracked by value in watchA and watchB
// rather than by position.
type Clause struct {
	activity float64

	// The clause's literals. The slice contains at least two literals if the
	// clause is active, it is nil if the clause has been marked as deleted.
	literals []Literal

	// The two watched literals. Both are members of literals. At any point in
	// time a watched literal is either unassigned or among the most recently
	// falsified literals of the clause; when both are false the clause is in
	// conflict.
	watchA Literal
	watchB Literal

	// The literal block distance used to estimate the quality of the clause.
	lbd uint32

	// The variable whose antecedent currently points at this clause, or -1.
	// Locked clauses must survive clause DB reductions.
	lockedBy int

	statusMask status
}

func (c *Clause) isLearnt() bool {
	return c.statusMask&statusLearnt != 0
}

func (c *Clause) isImported() bool {
	return c.statusMask&statusImported != 0
}

func (c *Clause) isDeleted() bool {
	return c.statusMask&statusDeleted != 0
}

func (c *Clause) locked() bool {
	return c.lockedBy >= 0
}

// sortDedup sorts the literals and removes duplicates in place. It returns
// the compacted slice and whether the clause is a tautology (contains both a
// literal and its opposite).
func sortDedup(lits []Literal) ([]Literal, bool) {
	sort.Slice(lits, func(i, j int) bool { return lits[i] < lits[j] })
	k := 0
	for i, l := range lits {
		if i > 0 && l == lits[k-1] {
			continue
		}
		// The positive and negative literals of a variable are consecutive
		// integers, so a tautology always ends up adjacent after sorting.
		if k > 0 && l == lits[k-1].Opposite() {
			return lits, true
		}
		lits[k] = l
		k++
	}
	return lits[:k], false
}

// newProblemClause adds a clause of the initial formula. It must be called at
// the root level. The boolean result is false if the clause makes the formula
// trivially unsatisfiable. A nil clause with a true result means the clause
// was absorbed (tautology, satisfied at root, or enqueued as a unit fact).
func newProblemClause(s *Solver, tmpLiterals []Literal) (*Clause, bool) {
	lits := make([]Literal, len(tmpLiterals))
	copy(lits, tmpLiterals)

	lits, tautology := sortDedup(lits)
	if tautology {
		return nil, true
	}

	// Apply the root-level assignment: a true literal satisfies the clause, a
	// false one is discarded.
	k := 0
	for _, l := range lits {
		switch s.LitValue(l) {
		case True:
			return nil, true
		case False:
			// discard the literal.
		default:
			lits[k] = l
			k++
		}
	}
	lits = lits[:k]

	switch len(lits) {
	case 0:
		// Empty clauses cannot be satisfied.
		return nil, false
	case 1:
		// Directly enqueue unit facts.
		return nil, s.enqueue(lits[0], decisionReason())
	default:
		// All remaining literals are unassigned: watch the first two.
		return makeClause(s, lits, 0, lits[0], lits[1]), true
	}
}

// newLearntClause creates a learnt clause from the literals produced by
// conflict analysis. The asserting literal must be first in tmpLiterals and
// the solver must already have backtracked to the clause's assertion level.
// The result is nil for unit learnt clauses, which are not stored.
func newLearntClause(s *Solver, tmpLiterals []Literal, lbd uint32) *Clause {
	if len(tmpLiterals) < 2 {
		return nil
	}

	assert := tmpLiterals[0]

	// The second watch is the most recently falsified literal, i.e. the one
	// assigned at the highest level.
	maxLevel := -1
	watchB := tmpLiterals[1]
	for _, l := range tmpLiterals[1:] {
		if level := s.levels[l.VarID()]; level > maxLevel {
			maxLevel = level
			watchB = l
		}
	}

	lits := make([]Literal, len(tmpLiterals))
	copy(lits, tmpLiterals)
	lits, _ = sortDedup(lits)

	c := makeClause(s, lits, statusLearnt, assert, watchB)
	c.lbd = lbd
	return c
}

// makeClause builds a clause around an already sorted literal slice and
// installs its two watches. Ownership of lits transfers to the clause.
func makeClause(s *Solver, lits []Literal, mask status, watchA, watchB Literal) *Clause {
	c := &Clause{
		literals:   lits,
		watchA:     watchA,
		watchB:     watchB,
		lockedBy:   -1,
		statusMask: mask,
	}
	s.watch(c, watchA.Opposite(), watchB)
	s.watch(c, watchB.Opposite(), watchA)
	return c
}

func (c *Clause) otherWatch(l Literal) Literal {
	if c.watchA == l {
		return c.watchB
	}
	return c.watchA
}

func (c *Clause) replaceWatch(old, new Literal) {
	if c.watchA == old {
		c.watchA = new
	} else {
		c.watchB = new
	}
}

// delete unwatches the clause and marks it as deleted. The literal slice is
// released so that it can be collected even if the clause is still referenced
// from a watcher copy.
func (c *Clause) delete(s *Solver) {
	c.statusMask |= statusDeleted

	s.unwatch(c, c.watchA.Opposite())
	s.unwatch(c, c.watchB.Opposite())
	c.literals = nil
}

// simplify removes the literals that are false at the root level. It returns
// true if the clause is satisfied at the root level, in which case the caller
// is expected to delete it. Removal keeps the literal order intact, and a
// watched literal can never be removed: at root-level quiescence a falsified
// watch implies a clause that is either satisfied or already propagated.
func (c *Clause) simplify(s *Solver) bool {
	k := 0
	for _, lit := range c.literals {
		switch s.LitValue(lit) {
		case True:
			return true
		case False:
			// discard the literal.
		case Unknown:
			c.literals[k] = lit
			k++
		}
	}
	c.literals = c.literals[:k]
	return false
}

// propagate is called when literal l was assigned true and the clause watches
// its opposite. It restores the watch invariant, which may enqueue a unit
// implication. It returns false if the clause is conflicting, in which case
// the watch on l is retained.
func (c *Clause) propagate(s *Solver, l Literal) bool {
	falseLit := l.Opposite()
	other := c.otherWatch(falseLit)

	// The clause is already satisfied by its other watch.
	if s.LitValue(other) == True {
		s.watch(c, l, other)
		return true
	}

	// Look for a replacement watch: any literal that is not already watched
	// and not false.
	for _, lit := range c.literals {
		if lit == falseLit || lit == other {
			continue
		}
		if s.LitValue(lit) != False {
			c.replaceWatch(falseLit, lit)
			s.watch(c, lit.Opposite(), other)
			return true
		}
	}

	// No replacement: the clause is unit on the other watch, or conflicting
	// if the other watch is false.
	s.watch(c, l, other)
	return s.enqueue(other, clauseReason(c))
}

// explainConflict returns the negation of every literal of the clause. The
// returned slice is shared with the solver and only valid until the next
// explain call.
func (c *Clause) explainConflict(s *Solver) []Literal {
	s.tmpReason = s.tmpReason[:0]
	for _, l := range c.literals {
		s.tmpReason = append(s.tmpReason, l.Opposite())
	}
	if c.isLearnt() {
		s.BumpClaActivity(c)
	}
	return s.tmpReason
}

// explainAssign returns the negation of every literal except the implied one.
func (c *Clause) explainAssign(s *Solver, implied Literal) []Literal {
	s.tmpReason = s.tmpReason[:0]
	for _, l := range c.literals {
		if l == implied {
			continue
		}
		s.tmpReason = append(s.tmpReason, l.Opposite())
	}
	if c.isLearnt() {
		s.BumpClaActivity(c)
	}
	return s.tmpReason
}

func (c *Clause) String() string {
	if len(c.literals) == 0 {
		return "Clause[]"
	}
	sb := strings.Builder{}
	sb.WriteString("Clause[")
	sb.WriteString(c.literals[0].String())
	for _, l := range c.literals[1:] {
		sb.WriteByte(' ')
		sb.WriteString(l.String())
	}
	sb.WriteByte(']')
	return sb.String()
}
