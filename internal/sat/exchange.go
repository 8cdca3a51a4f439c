package sat

// bufferExport queues a freshly learnt clause for publication at the next
// exchange point. Clauses that are too large or too weak to be worth sharing
// stay local; when the buffer is full the oldest entry is dropped so that the
// freshest clauses survive.
func (s *Solver) bufferExport(lits []Literal, lbd uint32) {
	if len(lits) > s.opts.MaxExportSize || lbd > s.opts.MaxExportLBD {
		return
	}
	if len(s.exportBuf) == s.opts.ExportBufferSize {
		copy(s.exportBuf, s.exportBuf[1:])
		s.exportBuf = s.exportBuf[:len(s.exportBuf)-1]
	}
	cp := make([]Literal, len(lits))
	copy(cp, lits)
	s.exportBuf = append(s.exportBuf, SharedClause{
		Literals: cp,
		LBD:      lbd,
		Owner:    s.workerID,
	})
}

// exchange publishes the buffered exports and imports the clauses published
// by the other workers since the last exchange. It returns a conflict clause
// if an import is falsified under the current assignment, and false if an
// import proves the instance unsatisfiable.
func (s *Solver) exchange() (*Clause, bool) {
	if len(s.exportBuf) > 0 {
		s.shared.Publish(s.exportBuf)
		s.stats.Exported += int64(len(s.exportBuf))
		s.exportBuf = s.exportBuf[:0]
	}

	s.importBuf = s.shared.Drain(s.workerID, s.importBuf[:0])
	for _, sc := range s.importBuf {
		s.stats.Imported++
		conflict := s.importClause(sc)
		if s.unsat {
			return nil, false
		}
		if conflict != nil {
			// The rest of the batch is dropped: imports are redundant
			// learnt clauses and the conflict must be resolved first.
			return conflict, true
		}
	}
	return nil, true
}

// importClause wires a foreign clause into the local solver state. If the
// clause is unit or falsified under the current assignment, the solver
// backtracks just far enough to either enqueue the clause's implication or
// surface it as a conflict at the new decision level.
func (s *Solver) importClause(sc SharedClause) *Clause {
	// Shared literal buffers are immutable after publish: work on a copy.
	lits := make([]Literal, len(sc.Literals))
	copy(lits, sc.Literals)

	// Apply the root-level assignment.
	k := 0
	for _, l := range lits {
		if s.levels[l.VarID()] == 0 {
			switch s.LitValue(l) {
			case True:
				return nil // satisfied at the root, nothing to learn
			case False:
				continue
			}
		}
		lits[k] = l
		k++
	}
	lits = lits[:k]

	switch len(lits) {
	case 0:
		s.unsat = true
		return nil
	case 1:
		// A unit import is a root-level fact.
		s.cancelUntil(0)
		if !s.enqueue(lits[0], antecedent{kind: antecedentImported}) {
			s.unsat = true
		}
		return nil
	}

	// Watch the two literals assigned last, with unassigned literals ranking
	// highest. This keeps the watch invariant valid across later backtracks:
	// a falsified watch is always among the most recently falsified literals
	// of the clause.
	wA, wB := s.lastAssigned(lits)

	c := makeClause(s, lits, statusLearnt|statusImported, wA, wB)
	c.lbd = sc.LBD
	s.learnts = append(s.learnts, c)

	// A true literal satisfies the clause: there is nothing to repair.
	for _, l := range lits {
		if s.LitValue(l) == True {
			return nil
		}
	}

	switch {
	case s.LitValue(wA) == False:
		// Every literal is false. Backtrack to the second-highest level:
		// either the highest-level literal becomes unassigned and the clause
		// propagates it, or the clause is a genuine conflict at the new
		// decision level.
		s.cancelUntil(s.levels[wB.VarID()])
		if s.LitValue(wA) == Unknown {
			s.enqueue(wA, importedReason(c))
			return nil
		}
		return c
	case s.LitValue(wA) == Unknown && s.LitValue(wB) == False:
		// Unit under the current assignment.
		s.enqueue(wA, importedReason(c))
	}
	return nil
}

// lastAssigned returns the two literals of lits with the highest assignment
// levels, unassigned literals first. The first result ranks at least as high
// as the second.
func (s *Solver) lastAssigned(lits []Literal) (Literal, Literal) {
	rank := func(l Literal) int {
		if s.LitValue(l) == Unknown {
			return int(^uint(0) >> 1)
		}
		return s.levels[l.VarID()]
	}

	a, b := lits[0], lits[1]
	if rank(b) > rank(a) {
		a, b = b, a
	}
	for _, l := range lits[2:] {
		switch r := rank(l); {
		case r > rank(a):
			a, b = l, a
		case r > rank(b):
			b = l
		}
	}
	return a, b
}
