package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/joeycumines/go-cbt/internal/config"
	"github.com/joeycumines/go-cbt/internal/driver"
	"github.com/joeycumines/go-cbt/internal/example/pickandplace"
	"github.com/joeycumines/go-cbt/internal/logging"
	"github.com/joeycumines/go-cbt/internal/metrics"
	"github.com/joeycumines/go-cbt/internal/tree"
	"github.com/joeycumines/go-cbt/internal/treefile"
)

// demoName names the built-in pick and place tree.
const demoName = "pickandplace"

// RunCommand drives a tree to completion.
type RunCommand struct {
	*BaseCommand
	config *config.Config

	tree          string
	interval      time.Duration
	leafTimeout   time.Duration
	stepInterval  time.Duration
	maxTicks      int64
	stopOnFailure bool
	metricsAddr   string
	logFile       string
	logLevel      string
	color         string
}

// NewRunCommand returns a run command. Flags left unset fall back to cfg.
func NewRunCommand(cfg *config.Config) *RunCommand {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Run a behavior tree until it settles",
			"run [options]",
		),
		config: cfg,
	}
}

// SetupFlags implements Command.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.tree, "tree", "", "Tree file to run (default: the pick and place demo)")
	fs.DurationVar(&c.interval, "interval", 0, "Delay between ticks (default 100ms)")
	fs.DurationVar(&c.leafTimeout, "leaf-timeout", 0, "Fail leaves running longer than this")
	fs.DurationVar(&c.stepInterval, "step-interval", 0, "Pause between leaf work steps")
	fs.Int64Var(&c.maxTicks, "max-ticks", 0, "Give up after this many ticks")
	fs.BoolVar(&c.stopOnFailure, "stop-on-failure", false, "Stop when the root fails instead of restarting")
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "Serve /metrics and /status on this address")
	fs.StringVar(&c.logFile, "log-file", "", "Also write JSON logs to this file")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&c.color, "color", "", "Colored output: auto, always, never")
}

// settings merges the flags over the configuration. A flag at its zero value
// is unset.
func (c *RunCommand) settings() (config.Settings, error) {
	s, err := config.DefaultSchema().Settings(c.config, c.Name())
	if err != nil {
		return s, err
	}
	if c.tree != "" {
		s.Tree = c.tree
	}
	if c.interval > 0 {
		s.TickInterval = c.interval
	}
	if c.leafTimeout > 0 {
		s.LeafTimeout = c.leafTimeout
	}
	if c.stepInterval > 0 {
		s.StepInterval = c.stepInterval
	}
	if c.maxTicks > 0 {
		s.MaxTicks = c.maxTicks
	}
	if c.stopOnFailure {
		s.StopOnFailure = true
	}
	if c.metricsAddr != "" {
		s.MetricsAddr = c.metricsAddr
	}
	if c.logFile != "" {
		s.LogFile = c.logFile
	}
	if c.logLevel != "" {
		s.LogLevel = c.logLevel
	}
	if c.color != "" {
		s.Color = c.color
	}
	return s, nil
}

// Execute implements Command.
func (c *RunCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return errUnexpectedArgs
	}
	s, err := c.settings()
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(s.LogLevel)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(logging.Options{
		Level:     level,
		Stderr:    stderr,
		File:      s.LogFile,
		MaxSizeMB: s.LogMaxSizeMB,
		MaxFiles:  s.LogMaxFiles,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	name, build, err := loadTree(s.Tree, logger)
	if err != nil {
		return err
	}

	out := newRenderer(stdout, colorEnabled(s.Color, stdout))
	collector := metrics.NewCollector()
	tr, err := build(
		tree.WithLogger(logger.With(slog.String("tree", name))),
		tree.WithLeafTimeout(s.LeafTimeout),
		tree.WithStepInterval(s.StepInterval),
		tree.WithHooks(collector.Hooks(name)),
		tree.WithHooks(out.Hooks()),
	)
	if err != nil {
		return err
	}

	d := driver.New(tr,
		driver.WithInterval(s.TickInterval),
		driver.WithMaxTicks(int(s.MaxTicks)),
		driver.WithStopOnFailure(s.StopOnFailure),
		driver.WithLogger(logger),
		driver.WithObserver(collector.Observer(name)),
	)

	serveCtx, stopServe := context.WithCancel(ctx)
	defer stopServe()
	var g errgroup.Group
	if s.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collector, collectors.NewGoCollector())
		status := func() metrics.Status {
			return metrics.Status{
				Tree:  name,
				Run:   tr.RunID(),
				Ticks: d.Ticks(),
				Root:  d.Last().String(),
				Nodes: tr.Snapshot(),
			}
		}
		srv, err := metrics.Listen(s.MetricsAddr, metrics.NewHandler(reg, status, logger), logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Serve(serveCtx) })
	}

	logger.Info("running tree", slog.String("tree", name), slog.String("run", tr.RunID()), slog.Int("nodes", tr.Len()))
	state, runErr := d.Run(ctx)
	stopServe()
	serveErr := g.Wait()

	_, _ = fmt.Fprintln(stdout)
	out.Tree(tr.Snapshot())
	_, _ = fmt.Fprintf(stdout, "\n%s: %s after %d ticks\n", name, out.state(state), d.Ticks())

	switch {
	case runErr != nil:
		return runErr
	case serveErr != nil:
		return fmt.Errorf("metrics server: %w", serveErr)
	case state != tree.Success:
		return fmt.Errorf("tree %s finished %s", name, state)
	}
	return nil
}

// loadTree returns the tree's name and a constructor for it: the file at
// path, or the pick and place demo if path is empty.
func loadTree(path string, logger *slog.Logger) (string, func(...tree.Option) (*tree.Tree, error), error) {
	if path == "" {
		return demoName, func(opts ...tree.Option) (*tree.Tree, error) {
			t, _, err := pickandplace.NewTree(logger, opts...)
			return t, err
		}, nil
	}

	f, err := treefile.Load(path)
	if err != nil {
		return "", nil, err
	}
	reg, err := newTreeRegistry(logger)
	if err != nil {
		return "", nil, err
	}
	return f.Name, func(opts ...tree.Option) (*tree.Tree, error) {
		t, _, err := f.Build(reg, opts...)
		return t, err
	}, nil
}

// newTreeRegistry returns the leaf kinds available to tree files.
func newTreeRegistry(logger *slog.Logger) (*treefile.Registry, error) {
	reg := treefile.DefaultRegistry()
	if err := pickandplace.Register(reg, logger); err != nil {
		return nil, err
	}
	return reg, nil
}
