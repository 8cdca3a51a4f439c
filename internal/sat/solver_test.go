package sat

import (
	"reflect"
	"testing"
)

// newTestSolver returns a solver loaded with the given clauses, expressed as
// signed DIMACS literals.
func newTestSolver(t *testing.T, nVars int, clauses [][]int) *Solver {
	t.Helper()
	s := NewDefaultSolver()
	for i := 0; i < nVars; i++ {
		s.AddVariable()
	}
	for _, c := range clauses {
		lits := make([]Literal, len(c))
		for i, d := range c {
			lits[i] = LiteralFromDimacs(d)
		}
		if err := s.AddClause(lits); err != nil {
			t.Fatalf("AddClause(%v): %s", c, err)
		}
	}
	return s
}

// satisfies reports whether the model satisfies every clause, with clauses
// expressed as signed DIMACS literals.
func satisfies(clauses [][]int, model []bool) bool {
	for _, clause := range clauses {
		ok := false
		for _, d := range clause {
			l := LiteralFromDimacs(d)
			if model[l.VarID()] == l.IsPositive() {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// pigeonhole returns the (unsatisfiable for pigeons > holes) pigeonhole
// instance: every pigeon gets a hole, no two pigeons share one.
func pigeonhole(pigeons, holes int) (int, [][]int) {
	v := func(p, h int) int { return p*holes + h + 1 }

	var clauses [][]int
	for p := 0; p < pigeons; p++ {
		c := make([]int, holes)
		for h := 0; h < holes; h++ {
			c[h] = v(p, h)
		}
		clauses = append(clauses, c)
	}
	for h := 0; h < holes; h++ {
		for p1 := 0; p1 < pigeons; p1++ {
			for p2 := p1 + 1; p2 < pigeons; p2++ {
				clauses = append(clauses, []int{-v(p1, h), -v(p2, h)})
			}
		}
	}
	return pigeons * holes, clauses
}

func TestSolve(t *testing.T) {
	testCases := []struct {
		desc    string
		nVars   int
		clauses [][]int
		want    LBool
	}{{
		desc:    "single unit clause",
		nVars:   1,
		clauses: [][]int{{1}},
		want:    True,
	}, {
		desc:    "contradicting units",
		nVars:   1,
		clauses: [][]int{{1}, {-1}},
		want:    False,
	}, {
		desc:    "all sign patterns over two variables",
		nVars:   2,
		clauses: [][]int{{1, 2}, {-1, 2}, {1, -2}, {-1, -2}},
		want:    False,
	}, {
		desc:    "implication chain closes every branch",
		nVars:   3,
		clauses: [][]int{{1, 2, 3}, {-1, 2}, {-2, 3}, {-3}},
		want:    False,
	}, {
		desc:    "empty formula",
		nVars:   0,
		clauses: nil,
		want:    True,
	}, {
		desc:    "empty clause",
		nVars:   2,
		clauses: [][]int{{}},
		want:    False,
	}, {
		desc:    "satisfiable chain",
		nVars:   4,
		clauses: [][]int{{1, 2}, {-1, 3}, {-3, 4}, {-2, -4, 1}},
		want:    True,
	}, {
		desc:    "pigeonhole 4 into 3",
		nVars:   12,
		clauses: nil, // filled below
		want:    False,
	}}

	phVars, phClauses := pigeonhole(4, 3)
	testCases[7].nVars = phVars
	testCases[7].clauses = phClauses

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			s := newTestSolver(t, tc.nVars, tc.clauses)
			got := s.Solve()

			if got != tc.want {
				t.Fatalf("Solve(): want %s, got %s", tc.want, got)
			}
			if got == True && !satisfies(tc.clauses, s.Model) {
				t.Errorf("Solve(): model %v does not satisfy the formula", s.Model)
			}
		})
	}
}

func TestSolve_smallOptionsStillSound(t *testing.T) {
	// Aggressive restart and reduction cadences exercise the cleanup paths
	// on an instance that needs a few hundred conflicts.
	opts := DefaultOptions
	opts.RestartBase = 4
	opts.ReduceBase = 10
	opts.ReduceInc = 10

	nVars, clauses := pigeonhole(5, 4)
	s := NewSolver(opts)
	for i := 0; i < nVars; i++ {
		s.AddVariable()
	}
	for _, c := range clauses {
		lits := make([]Literal, len(c))
		for i, d := range c {
			lits[i] = LiteralFromDimacs(d)
		}
		if err := s.AddClause(lits); err != nil {
			t.Fatalf("AddClause(%v): %s", c, err)
		}
	}

	if got := s.Solve(); got != False {
		t.Fatalf("Solve(): want false, got %s", got)
	}
	if st := s.Statistics(); st.Restarts == 0 {
		t.Errorf("Statistics(): want restarts > 0, got 0")
	}
}

func TestAnalyze_learntClauseIsAsserting(t *testing.T) {
	s := newTestSolver(t, 3, [][]int{{-1, 2}, {-1, 3}, {-2, -3}})

	if !s.assume(PositiveLiteral(0)) {
		t.Fatal("assume(x1): conflicting assignment")
	}
	conflict := s.Propagate()
	if conflict == nil {
		t.Fatal("Propagate(): want a conflict, got none")
	}

	learnt, backtrackLevel := s.analyze(conflict)

	// Exactly one literal of the learnt clause is at the conflict level, and
	// it is the asserting literal in first position.
	atLevel := 0
	for _, l := range learnt {
		if s.levels[l.VarID()] == s.decisionLevel() {
			atLevel++
		}
	}
	if atLevel != 1 {
		t.Errorf("analyze(): want 1 literal at conflict level, got %d", atLevel)
	}
	if got := s.levels[learnt[0].VarID()]; got != s.decisionLevel() {
		t.Errorf("analyze(): asserting literal at level %d, want %d", got, s.decisionLevel())
	}

	// Deciding x1 alone closes the instance's only branch: the learnt clause
	// must be the unit clause !x1 with backtrack level 0.
	if want := []Literal{NegativeLiteral(0)}; !reflect.DeepEqual(want, learnt) {
		t.Errorf("analyze(): want learnt %v, got %v", want, learnt)
	}
	if backtrackLevel != 0 {
		t.Errorf("analyze(): want backtrack level 0, got %d", backtrackLevel)
	}
}

func TestTrailIntegrity(t *testing.T) {
	s := newTestSolver(t, 6, [][]int{{-1, 2}, {-3, 4}})

	s.assume(PositiveLiteral(0))
	if conflict := s.Propagate(); conflict != nil {
		t.Fatalf("Propagate(): unexpected conflict %s", conflict)
	}
	prefix := append([]Literal{}, s.trail...)

	s.assume(PositiveLiteral(2))
	if conflict := s.Propagate(); conflict != nil {
		t.Fatalf("Propagate(): unexpected conflict %s", conflict)
	}
	s.assume(NegativeLiteral(4))

	// Backtracking to level 1 must restore exactly the level-1 trail.
	s.cancelUntil(1)
	if !reflect.DeepEqual(prefix, s.trail) {
		t.Errorf("trail after backtrack: want %v, got %v", prefix, s.trail)
	}
	for _, l := range prefix {
		if got := s.LitValue(l); got != True {
			t.Errorf("LitValue(%s): want true, got %s", l, got)
		}
	}
	if got := s.VarValue(4); got != Unknown {
		t.Errorf("VarValue(4): want unknown, got %s", got)
	}
}

// checkWatchInvariant verifies that, at propagation quiescence, every active
// non-unit clause is referenced by exactly two watch lists, that those lists
// are the ones of its two watched literals, and that a falsified watch only
// occurs in a satisfied clause.
func checkWatchInvariant(t *testing.T, s *Solver) {
	t.Helper()

	type watchSet struct {
		count int
		wakes []Literal
	}
	found := map[*Clause]*watchSet{}
	for l := 0; l < len(s.watchers); l++ {
		for _, w := range s.watchers[l] {
			ws := found[w.clause]
			if ws == nil {
				ws = &watchSet{}
				found[w.clause] = ws
			}
			ws.count++
			ws.wakes = append(ws.wakes, Literal(l))
		}
	}

	check := func(c *Clause) {
		if c.isDeleted() || len(c.literals) < 2 {
			return
		}
		ws := found[c]
		if ws == nil || ws.count != 2 {
			t.Fatalf("clause %s: want exactly 2 watch entries, got %+v", c, ws)
		}
		for _, wake := range ws.wakes {
			if w := wake.Opposite(); w != c.watchA && w != c.watchB {
				t.Errorf("clause %s: watch list %s does not match watched pair (%s, %s)", c, wake, c.watchA, c.watchB)
			}
		}

		satisfied := false
		for _, l := range c.literals {
			if s.LitValue(l) == True {
				satisfied = true
				break
			}
		}
		if !satisfied && (s.LitValue(c.watchA) == False || s.LitValue(c.watchB) == False) {
			t.Errorf("clause %s: falsified watch in an unsatisfied clause", c)
		}
	}

	for _, c := range s.constraints {
		check(c)
	}
	for _, c := range s.learnts {
		check(c)
	}
}

func TestWatchInvariant(t *testing.T) {
	s := newTestSolver(t, 5, [][]int{
		{1, 2, 3},
		{-1, 2, 4},
		{-2, 3, 5},
		{-3, -4, -5},
		{1, -2, 5},
	})
	checkWatchInvariant(t, s)

	s.assume(NegativeLiteral(0))
	if conflict := s.Propagate(); conflict != nil {
		t.Fatalf("Propagate(): unexpected conflict %s", conflict)
	}
	checkWatchInvariant(t, s)

	s.assume(NegativeLiteral(1))
	if conflict := s.Propagate(); conflict == nil {
		checkWatchInvariant(t, s)
	}

	s.cancelUntil(0)
	checkWatchInvariant(t, s)
}
