package sat

// Instance is a CNF formula in solver form. It is the immutable seed from
// which the portfolio instantiates its worker replicas, and it implements the
// builder interface expected by the DIMACS front-end.
type Instance struct {
	Variables int
	Clauses   [][]Literal
}

// AddVariable declares a new variable and returns its ID.
func (inst *Instance) AddVariable() int {
	inst.Variables++
	return inst.Variables - 1
}

// AddClause appends a copy of the given clause to the formula.
func (inst *Instance) AddClause(tmpClause []Literal) error {
	clause := make([]Literal, len(tmpClause))
	copy(clause, tmpClause)
	inst.Clauses = append(inst.Clauses, clause)
	return nil
}

// Verify reports whether the model satisfies every clause of the instance.
// An empty clause is never satisfied.
func (inst *Instance) Verify(model []bool) bool {
	if len(model) < inst.Variables {
		return false
	}
	for _, clause := range inst.Clauses {
		satisfied := false
		for _, l := range clause {
			if model[l.VarID()] == l.IsPositive() {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}
