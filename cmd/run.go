package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/ftlsim/config"
	"github.com/sarchlab/ftlsim/logging"
	"github.com/sarchlab/ftlsim/simulation"
)

type runFlags struct {
	scheme   string
	workload string
	trace    string
	requests int
	seed     int64
	monitor  bool
	port     int
	output   string
	metrics  string
}

func newRunCmd(configPath func() string) *cobra.Command {
	flags := &runFlags{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a workload against the simulated drive.",
		Long: "`run` builds the drive described by the configuration, sends the " +
			"workload through it, and prints a summary. Flags override the " +
			"configuration.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}

			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}

			return runSimulation(cmd, cfg)
		},
	}

	f := runCmd.Flags()
	f.StringVar(&flags.scheme, "scheme", "", "mapping scheme: page, block, or hybrid")
	f.StringVar(&flags.workload, "workload", "", "workload: sequential, random, mixed, or trace")
	f.StringVar(&flags.trace, "trace", "", "trace file to replay, implies --workload trace")
	f.IntVar(&flags.requests, "requests", 0, "number of synthetic requests")
	f.Int64Var(&flags.seed, "seed", 0, "seed of the synthetic workloads")
	f.BoolVar(&flags.monitor, "monitor", false, "serve the HTTP monitor")
	f.IntVar(&flags.port, "port", 0, "port of the HTTP monitor")
	f.StringVar(&flags.output, "output", "", "record the run into this SQLite file")
	f.StringVar(&flags.metrics, "metrics", "", "serve Prometheus metrics on this address")

	return runCmd
}

func (r *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed

	if changed("scheme") {
		cfg.FTL.Scheme = r.scheme
	}

	if changed("workload") {
		cfg.Workload.Kind = r.workload
	}

	if changed("trace") {
		cfg.Workload.Kind = "trace"
		cfg.Workload.TraceFile = r.trace
	}

	if changed("requests") {
		cfg.Workload.Requests = r.requests
	}

	if changed("seed") {
		cfg.Workload.Seed = r.seed
	}

	if changed("monitor") {
		cfg.Monitor.Enabled = r.monitor
	}

	if changed("port") {
		cfg.Monitor.Port = r.port
	}

	if changed("output") {
		cfg.Recorder.Enabled = true
		cfg.Recorder.Backend = "sqlite"
		cfg.Recorder.Path = r.output
	}

	if changed("metrics") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = r.metrics
	}

	config.ApplyDefaults(cfg)

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	return nil
}

func runSimulation(cmd *cobra.Command, cfg *config.Config) error {
	err := logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return err
	}

	s, err := simulation.MakeBuilder().
		WithConfig(cfg).
		WithLogger(logging.Logger()).
		Build()
	if err != nil {
		return err
	}

	if err := s.StartServers(); err != nil {
		return err
	}

	report, runErr := s.Run()

	report.PrintTable(cmd.OutOrStdout())

	if file := s.RecorderFile(); file != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\nRun recorded in %s\n", file)
	}

	if err := s.Terminate(); err != nil {
		logging.Warn("cannot shut down cleanly", "err", err)
	}

	return runErr
}
