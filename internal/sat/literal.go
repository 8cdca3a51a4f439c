package sat

import "fmt"

// Literal represents a literal, which either represents a boolean variable or
// its negation. Variable v maps to literal 2v (positive) and 2v+1 (negative)
// so that negating a literal is a bit flip and literals can be used directly
// to index per-literal slices such as watch lists.
type Literal int

// PositiveLiteral returns the positive literal of variable v.
func PositiveLiteral(v int) Literal {
	return Literal(v * 2)
}

// NegativeLiteral returns the negative literal of variable v.
func NegativeLiteral(v int) Literal {
	return Literal(v*2 + 1)
}

// LiteralFromDimacs returns the literal corresponding to a non-zero DIMACS
// literal. External variable d maps to internal variable d-1.
func LiteralFromDimacs(d int) Literal {
	if d < 0 {
		return NegativeLiteral(-d - 1)
	}
	return PositiveLiteral(d - 1)
}

// VarID returns the ID of the literal's variable.
func (l Literal) VarID() int {
	return int(l) / 2
}

// IsPositive returns true if and only if the literal represents the value of
// its boolean variable (i.e. not its negation).
func (l Literal) IsPositive() bool {
	return l&1 == 0
}

// Opposite returns the opposite literal.
func (l Literal) Opposite() Literal {
	return l ^ 1
}

// Dimacs returns the external (1-based, signed) form of the literal.
func (l Literal) Dimacs() int {
	if l.IsPositive() {
		return l.VarID() + 1
	}
	return -(l.VarID() + 1)
}

func (l Literal) String() string {
	if l.IsPositive() {
		return fmt.Sprintf("%d", l.VarID())
	} else {
		return fmt.Sprintf("!%d", l.VarID())
	}
}
