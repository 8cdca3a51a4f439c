package sat

// analyze derives a 1-UIP learnt clause from the given conflict. It returns
// the learnt literals, with the asserting literal first, and the level the
// solver must backtrack to. The conflict must have occurred at a decision
// level greater than zero.
func (s *Solver) analyze(conflict *Clause) ([]Literal, int) {
	// Current number of "implication" nodes encountered in the exploration of
	// the decision level. A value of 0 indicates that the exploration has
	// reached a single implication point.
	nImplicationPoints := 0

	// Empty the buffer in which the learnt clause is accumulated. The first
	// slot is reserved for the asserting literal, set at the end.
	s.tmpLearnts = s.tmpLearnts[:0]
	s.tmpLearnts = append(s.tmpLearnts, -1)

	// Next trail literal to look at. This is used to iterate over the trail
	// without actually undoing the literal assignments.
	nextLiteral := len(s.trail) - 1

	l := Literal(-1) // sentinel: resolve on the whole conflict clause first
	s.seenVar.Clear()

	for {
		var reason []Literal
		if l == -1 {
			reason = conflict.explainConflict(s)
		} else {
			reason = conflict.explainAssign(s, l)
		}

		for _, q := range reason {
			v := q.VarID()
			if s.seenVar.Contains(v) || s.levels[v] == 0 {
				// Root-level literals are globally false and never
				// contribute to the learnt clause.
				continue
			}

			s.seenVar.Add(v)
			s.order.BumpScore(v)
			if s.levels[v] == s.decisionLevel() {
				nImplicationPoints++
				continue
			}
			s.tmpLearnts = append(s.tmpLearnts, q.Opposite())
		}

		// Select the next trail literal to resolve on.
		for {
			l = s.trail[nextLiteral]
			nextLiteral--
			if s.seenVar.Contains(l.VarID()) {
				break
			}
		}
		conflict = s.reasons[l.VarID()].clause

		nImplicationPoints--
		if nImplicationPoints <= 0 {
			break
		}
	}

	// The remaining literal of the conflict level is the first UIP.
	s.tmpLearnts[0] = l.Opposite()

	s.minimize()

	backtrackLevel := 0
	for _, q := range s.tmpLearnts[1:] {
		if level := s.levels[q.VarID()]; level > backtrackLevel {
			backtrackLevel = level
		}
	}
	return s.tmpLearnts, backtrackLevel
}

// minimize removes the redundant literals from the learnt clause accumulated
// in tmpLearnts: a literal is redundant if its antecedent chain bottoms out
// in literals that are already part of the learnt clause or falsified at the
// root level. The asserting literal is never removed.
func (s *Solver) minimize() {
	s.minimizeRemovable.Clear()
	s.minimizeFailed.Clear()

	j := 1
	for i := 1; i < len(s.tmpLearnts); i++ {
		l := s.tmpLearnts[i]
		if s.reasons[l.VarID()].clause == nil || !s.litRedundant(l) {
			s.tmpLearnts[j] = l
			j++
		}
	}
	s.tmpLearnts = s.tmpLearnts[:j]
}

// litRedundant reports whether l is implied by the other literals of the
// learnt clause. The check is a depth-first walk of l's antecedent chain.
// Verdicts are memoized per variable in the removable and failed sets, which
// both bounds the walk on reason graphs that reconverge and prevents
// revisits across the literals of the same learnt clause. Checking the
// reason clause breadth-first before recursing into its parents would accept
// literals whose chains escape the learnt clause and is unsound.
func (s *Solver) litRedundant(l Literal) bool {
	v := l.VarID()
	if s.minimizeRemovable.Contains(v) {
		return true
	}
	if s.minimizeFailed.Contains(v) {
		return false
	}

	reason := s.reasons[v].clause
	if reason == nil {
		// Decisions can never be resolved away.
		s.minimizeFailed.Add(v)
		return false
	}

	implied := l.Opposite()
	for _, q := range reason.literals {
		if q == implied {
			continue
		}
		qv := q.VarID()
		if s.levels[qv] == 0 || s.seenVar.Contains(qv) || s.minimizeRemovable.Contains(qv) {
			continue
		}
		if !s.litRedundant(q) {
			s.minimizeFailed.Add(v)
			return false
		}
	}

	s.minimizeRemovable.Add(v)
	return true
}
