package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rhartert/parsat/internal/parsers"
	"github.com/rhartert/parsat/internal/sat"
)

type config struct {
	workers    int
	gzipped    bool
	timeout    time.Duration
	verbose    bool
	cpuProfile bool
	memProfile bool
}

// defaultWorkers resolves the portfolio size from the environment, falling
// back to the library default.
func defaultWorkers() int {
	if v := os.Getenv("PARSAT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return sat.DefaultWorkers()
}

func newRootCmd() *cobra.Command {
	cfg := &config{}
	cmd := &cobra.Command{
		Use:   "parsat [flags] <instance.cnf>...",
		Short: "parallel portfolio CDCL SAT solver",
		Long: `parsat decides the satisfiability of DIMACS CNF instances by racing
identical CDCL solver replicas that exchange learnt clauses.

For each instance, the result is printed on stdout: either UNSAT, or SAT
followed by a model given as signed variable ids terminated by 0. Search
diagnostics go to stderr.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg, args)
		},
	}

	cmd.Flags().IntVar(&cfg.workers, "workers", defaultWorkers(), "number of solver replicas (also via PARSAT_WORKERS)")
	cmd.Flags().BoolVar(&cfg.gzipped, "gzip", false, "instances are gzip compressed")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 0, "time limit per instance (0 = none)")
	cmd.Flags().BoolVarP(&cfg.verbose, "verbose", "v", false, "log per-worker diagnostics")
	cmd.Flags().BoolVar(&cfg.cpuProfile, "cpuprof", false, "save pprof CPU profile in cpuprof")
	cmd.Flags().BoolVar(&cfg.memProfile, "memprof", false, "save pprof memory profile in memprof")

	return cmd
}

func run(cfg *config, files []string) error {
	logrus.SetOutput(os.Stderr)
	if cfg.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if cfg.cpuProfile {
		f, err := os.Create("cpuprof")
		if err != nil {
			return err
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	for _, file := range files {
		if err := solveFile(cfg, file); err != nil {
			return err
		}
	}

	if cfg.memProfile {
		f, err := os.Create("memprof")
		if err != nil {
			return err
		}
		defer f.Close()
		return pprof.WriteHeapProfile(f)
	}
	return nil
}

func solveFile(cfg *config, file string) error {
	inst := &sat.Instance{}
	if err := parsers.LoadDIMACS(file, cfg.gzipped, inst); err != nil {
		return fmt.Errorf("could not parse instance %q: %w", file, err)
	}

	log := logrus.WithField("instance", file)
	log.WithFields(logrus.Fields{
		"variables": inst.Variables,
		"clauses":   len(inst.Clauses),
		"workers":   cfg.workers,
	}).Info("solving")

	ctx := context.Background()
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	p := &sat.Portfolio{
		Workers: cfg.workers,
		Options: sat.DefaultOptions,
		Logger:  log,
	}

	start := time.Now()
	res, err := p.Solve(ctx, inst)
	if err != nil {
		return fmt.Errorf("could not solve %q: %w", file, err)
	}
	elapsed := time.Since(start)

	for i, st := range p.Stats() {
		log.WithFields(logrus.Fields{
			"worker":    i,
			"conflicts": st.Conflicts,
			"decisions": st.Decisions,
			"restarts":  st.Restarts,
			"learnt":    st.Learnt,
			"exported":  st.Exported,
			"imported":  st.Imported,
			"avgLBD":    fmt.Sprintf("%.2f", st.AvgLBD),
		}).Debug("worker statistics")
	}
	log.WithFields(logrus.Fields{
		"status": res.Status.String(),
		"winner": res.Winner,
		"time":   elapsed.Seconds(),
	}).Info("solved")

	printResult(os.Stdout, res)
	return nil
}

// printResult writes the solver's answer in the output format: UNSAT, or SAT
// followed by the model as signed external variable ids terminated by 0.
func printResult(w io.Writer, res *sat.Result) {
	if res.Status == sat.False {
		fmt.Fprintln(w, "UNSAT")
		return
	}

	fmt.Fprintln(w, "SAT")
	sb := strings.Builder{}
	for v, val := range res.Model {
		l := sat.PositiveLiteral(v)
		if !val {
			l = sat.NegativeLiteral(v)
		}
		sb.WriteString(strconv.Itoa(l.Dimacs()))
		sb.WriteByte(' ')
	}
	sb.WriteByte('0')
	fmt.Fprintln(w, sb.String())
}
