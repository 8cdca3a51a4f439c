package parsers

import (
	"bytes"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rhartert/parsat/internal/sat"
)

var want = sat.Instance{
	Variables: 3,
	Clauses: [][]sat.Literal{
		{0, 2, 4},
		{0, 2, 5},
		{0, 3, 4},
		{1, 2, 4},
		{1, 3, 4},
		{1, 2, 5},
		{0, 3, 5},
		{1, 3, 5},
	},
}

func TestLoadDIMACS_cnf(t *testing.T) {
	got := sat.Instance{}
	gotErr := LoadDIMACS("testdata/test_instance.cnf", false, &got)

	if gotErr != nil {
		t.Errorf("LoadDIMACS(): want no error, got %s", gotErr)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadDIMACS(): mismatch (-want, +got):\n%s", diff)
	}
}

func TestLoadDIMACS_gzip(t *testing.T) {
	got := sat.Instance{}
	gotErr := LoadDIMACS("testdata/test_instance.cnf.gz", true, &got)

	if gotErr != nil {
		t.Errorf("LoadDIMACS(): want no error, got %s", gotErr)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadDIMACS(): mismatch (-want, +got):\n%s", diff)
	}
}

func TestLoadDIMACS_noFile(t *testing.T) {
	got := sat.Instance{}
	if gotErr := LoadDIMACS("", false, &got); gotErr == nil {
		t.Errorf("LoadDIMACS(): want error, got none")
	}
}

func TestLoadDIMACS_notGzipFile(t *testing.T) {
	got := sat.Instance{}
	if gotErr := LoadDIMACS("testdata/test_instance.cnf", true, &got); gotErr == nil {
		t.Errorf("LoadDIMACS(): want error, got none")
	}
}

func TestLoad_literalOutOfRange(t *testing.T) {
	input := "p cnf 2 1\n3 -1 0\n"
	if gotErr := Load(strings.NewReader(input), &sat.Instance{}); gotErr == nil {
		t.Errorf("Load(): want error, got none")
	}
}

func TestLoad_notCNF(t *testing.T) {
	input := "p graph 2 1\n1 2 0\n"
	if gotErr := Load(strings.NewReader(input), &sat.Instance{}); gotErr == nil {
		t.Errorf("Load(): want error, got none")
	}
}

// normalize returns the clause set as a sorted multiset of sorted literal
// sequences, the form in which two formulas are compared for equality.
func normalize(inst *sat.Instance) [][]sat.Literal {
	clauses := make([][]sat.Literal, len(inst.Clauses))
	for i, c := range inst.Clauses {
		cp := append([]sat.Literal{}, c...)
		sort.Slice(cp, func(a, b int) bool { return cp[a] < cp[b] })
		clauses[i] = cp
	}
	sort.Slice(clauses, func(a, b int) bool {
		x, y := clauses[a], clauses[b]
		for i := 0; i < len(x) && i < len(y); i++ {
			if x[i] != y[i] {
				return x[i] < y[i]
			}
		}
		return len(x) < len(y)
	})
	return clauses
}

// TestRoundTrip verifies that printing a parsed formula and parsing it again
// yields the same clause set.
func TestRoundTrip(t *testing.T) {
	first := sat.Instance{}
	if err := LoadDIMACS("testdata/test_instance.cnf", false, &first); err != nil {
		t.Fatalf("LoadDIMACS(): %s", err)
	}

	buf := bytes.Buffer{}
	if err := WriteDIMACS(&buf, &first); err != nil {
		t.Fatalf("WriteDIMACS(): %s", err)
	}

	second := sat.Instance{}
	if err := Load(&buf, &second); err != nil {
		t.Fatalf("Load(): %s", err)
	}

	if first.Variables != second.Variables {
		t.Errorf("Variables: want %d, got %d", first.Variables, second.Variables)
	}
	if diff := cmp.Diff(normalize(&first), normalize(&second)); diff != "" {
		t.Errorf("Clauses: mismatch (-want, +got):\n%s", diff)
	}
}

func TestReadModels(t *testing.T) {
	wantModels := [][]bool{
		{true, false, true},
		{false, true, false},
	}

	got, gotErr := ReadModels("testdata/test_models.txt")
	if gotErr != nil {
		t.Errorf("ReadModels(): want no error, got %s", gotErr)
	}
	if diff := cmp.Diff(wantModels, got); diff != "" {
		t.Errorf("ReadModels(): mismatch (-want, +got):\n%s", diff)
	}
}
