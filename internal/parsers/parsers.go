// Package parsers converts between DIMACS CNF files and solver instances.
package parsers

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/rhartert/dimacs"
	"github.com/rhartert/parsat/internal/sat"
)

// SATSolver is the destination of a parsed formula. Both sat.Solver and
// sat.Instance implement it.
type SATSolver interface {
	AddVariable() int
	AddClause([]sat.Literal) error
}

func reader(filename string, gzipped bool) (io.ReadCloser, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	rc := io.ReadCloser(file)
	if gzipped {
		rc, err = gzip.NewReader(rc)
		if err != nil {
			return nil, err
		}
	}
	return rc, nil
}

// LoadDIMACS parses the DIMACS CNF file and loads its formula in the given
// SAT solver.
func LoadDIMACS(filename string, gzipped bool, solver SATSolver) error {
	reader, err := reader(filename, gzipped)
	if err != nil {
		return fmt.Errorf("error reading file %q: %w", filename, err)
	}
	defer reader.Close()

	return Load(reader, solver)
}

// Load parses a DIMACS CNF formula from r and loads it in the given SAT
// solver.
func Load(r io.Reader, solver SATSolver) error {
	b := &builder{solver: solver}
	return dimacs.ReadBuilder(r, b)
}

// builder wraps the solver to implement dimacs.Builder.
type builder struct {
	solver SATSolver
	nVars  int
	buf    []sat.Literal
}

func (b *builder) Problem(problem string, nVars int, nClauses int) error {
	if problem != "cnf" {
		return fmt.Errorf("not a CNF problem")
	}
	b.nVars = nVars
	for i := 0; i < nVars; i++ {
		b.solver.AddVariable()
	}
	return nil
}

func (b *builder) Clause(tmpClause []int) error {
	b.buf = b.buf[:0]
	for _, l := range tmpClause {
		v := l
		if v < 0 {
			v = -v
		}
		if v == 0 || v > b.nVars {
			return fmt.Errorf("literal %d out of range [1, %d]", l, b.nVars)
		}
		b.buf = append(b.buf, sat.LiteralFromDimacs(l))
	}
	return b.solver.AddClause(b.buf)
}

func (b *builder) Comment(_ string) error {
	return nil // ignore comments
}

// WriteDIMACS prints the instance back in DIMACS CNF form.
func WriteDIMACS(w io.Writer, inst *sat.Instance) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "p cnf %d %d\n", inst.Variables, len(inst.Clauses)); err != nil {
		return err
	}
	for _, clause := range inst.Clauses {
		for _, l := range clause {
			if _, err := fmt.Fprintf(bw, "%d ", l.Dimacs()); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(bw, "0"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadModels returns the list of models (if any) contained in the given file.
// The file must contain one model per line using the same literals as the
// corresponding instance file.
func ReadModels(filename string) ([][]bool, error) {
	reader, err := reader(filename, false)
	if err != nil {
		return nil, fmt.Errorf("error reading file %q: %w", filename, err)
	}
	defer reader.Close()

	b := &modelBuilder{}
	if err := dimacs.ReadBuilder(reader, b); err != nil {
		return nil, err
	}
	return b.models, nil
}

// modelBuilder accumulates models to implement dimacs.Builder.
type modelBuilder struct {
	models [][]bool
}

func (b *modelBuilder) Problem(problem string, nVars int, nClauses int) error {
	return fmt.Errorf("model files should not have problem lines")
}

func (b *modelBuilder) Comment(_ string) error {
	return nil // ignore comments
}

func (b *modelBuilder) Clause(tmpClause []int) error {
	model := make([]bool, len(tmpClause))
	for i, l := range tmpClause {
		model[i] = l > 0
	}
	b.models = append(b.models, model)
	return nil
}
