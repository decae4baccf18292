package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"

	"github.com/sarchlab/ftlsim/config"
	"github.com/sarchlab/ftlsim/datarecording"
	"github.com/sarchlab/ftlsim/ftl"
	"github.com/sarchlab/ftlsim/metrics"
	"github.com/sarchlab/ftlsim/monitoring"
	"github.com/sarchlab/ftlsim/nand"
	"github.com/sarchlab/ftlsim/sim"
	"github.com/sarchlab/ftlsim/tracing"
	"github.com/sarchlab/ftlsim/workload"
)

// Builder can be used to build a simulation.
type Builder struct {
	cfg            *config.Config
	logger         *slog.Logger
	monitorOn      bool
	monitorPort    int
	outputFileName string
	registry       *prometheus.Registry
}

// MakeBuilder creates a new builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		cfg:       config.Default(),
		monitorOn: true,
	}
}

// WithConfig sets the configuration to simulate.
func (b Builder) WithConfig(cfg *config.Config) Builder {
	b.cfg = cfg
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l *slog.Logger) Builder {
	b.logger = l
	return b
}

// WithoutMonitoring disables the monitor, whatever the configuration says.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort overrides the port of the monitor.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithOutputFileName enables the recorder and sets its database file.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithRegistry collects metrics into the given registry, even if the
// metrics server is disabled.
func (b Builder) WithRegistry(r *prometheus.Registry) Builder {
	b.registry = r
	return b
}

func (b Builder) parametersMustBeValid() error {
	if b.cfg == nil {
		return errors.New("simulation needs a configuration")
	}

	if !b.monitorOn && b.monitorPort != 0 {
		return errors.New("monitor port cannot be set when monitoring is disabled")
	}

	return config.Validate(b.cfg)
}

// Build assembles the engine, the flash array, the FTL, the workload driver,
// and the configured recorder, metrics, and monitor.
func (b Builder) Build() (*Simulation, error) {
	if err := b.parametersMustBeValid(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Simulation{
		id:            xid.New().String(),
		cfg:           b.cfg,
		compNameIndex: make(map[string]int),
	}
	s.logger = logger.With("simulation", s.id)

	if err := b.buildCore(s); err != nil {
		return nil, err
	}

	b.buildTracers(s)

	if err := b.buildRecorder(s); err != nil {
		return nil, err
	}

	b.buildMetrics(s)

	return s, nil
}

func (b Builder) buildCore(s *Simulation) error {
	cfg := b.cfg
	geometry := cfg.NANDGeometry()

	options, err := cfg.FTLOptions()
	if err != nil {
		return err
	}

	gen, err := workload.New(workloadOptions(cfg.Workload, geometry))
	if err != nil {
		return fmt.Errorf("building workload: %w", err)
	}
	s.totalRequests = gen.Total()

	s.engine = sim.NewSerialEngine()
	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.engine.AcceptHook(sim.NewEventLogger(s.logger))
	}

	s.flash = nand.MakeBuilder().
		WithGeometry(geometry).
		WithTiming(cfg.NANDTiming()).
		WithClock(s.engine).
		WithDataStorage(cfg.FTL.StoreData).
		Build("Flash")

	s.ftl = ftl.MakeBuilder().
		WithDevice(s.flash).
		WithGeometry(geometry).
		WithOptions(options).
		WithLogger(s.logger).
		Build("FTL")

	driverBuilder := workload.MakeBuilder().
		WithEngine(s.engine).
		WithTarget(s.ftl).
		WithTimer(s.flash).
		WithGenerator(gen).
		WithLogger(s.logger)

	if cfg.FTL.StoreData {
		driverBuilder = driverBuilder.WithPayload(geometry.SectorSize)
	}

	if b.monitorOn && cfg.Monitor.Enabled {
		b.buildMonitor(s)
		driverBuilder = driverBuilder.WithProgress(s.progress)
	}

	s.driver = driverBuilder.Build("Driver")

	s.RegisterComponent(s.flash)
	s.RegisterComponent(s.ftl)
	s.RegisterComponent(s.driver)

	if s.monitor != nil {
		s.monitor.RegisterComponent(s.driver)
	}

	return nil
}

func (b Builder) buildMonitor(s *Simulation) {
	port := b.cfg.Monitor.Port
	if b.monitorPort != 0 {
		port = b.monitorPort
	}

	s.monitor = monitoring.NewMonitor().
		WithLogger(s.logger).
		WithPortNumber(port).
		WithBrowser(b.cfg.Monitor.OpenBrowser)
	s.monitor.RegisterEngine(s.engine)
	s.monitor.RegisterFTL(s.ftl)
	s.monitor.RegisterDevice(s.flash)

	s.progress = s.monitor.CreateProgressBar("Requests", uint64(s.totalRequests))
}

func (b Builder) buildTracers(s *Simulation) {
	s.readLatency = tracing.NewAverageTimeTracer(s.engine,
		tracing.WhatIs(workload.TaskKind, ftl.RequestRead.String()))
	s.writeLatency = tracing.NewAverageTimeTracer(s.engine,
		tracing.WhatIs(workload.TaskKind, ftl.RequestWrite.String()))
	s.busyTime = tracing.NewTotalTimeTracer(s.engine,
		tracing.KindIs(workload.TaskKind))
	s.ftlSteps = tracing.NewStepCountTracer(
		tracing.KindIs(ftl.RequestTaskKind))

	tracing.CollectTrace(s.driver, s.readLatency)
	tracing.CollectTrace(s.driver, s.writeLatency)
	tracing.CollectTrace(s.driver, s.busyTime)
	tracing.CollectTrace(s.ftl, s.ftlSteps)
}

func (b Builder) buildRecorder(s *Simulation) error {
	path := b.cfg.Recorder.Path
	if b.outputFileName != "" {
		path = b.outputFileName
	}

	if !b.cfg.Recorder.Enabled && b.outputFileName == "" {
		return nil
	}

	recorder, err := b.openRecorder(s, path)
	if err != nil {
		return fmt.Errorf("creating recorder: %w", err)
	}

	s.recorder = recorder

	s.execRecorder = datarecording.NewExecRecorder(recorder)
	s.execRecorder.Start()
	s.execRecorder.Record("Simulation ID", s.id)
	s.execRecorder.Record("Scheme", b.cfg.FTL.Scheme)
	s.execRecorder.Record("Workload", b.cfg.Workload.Kind)

	recorder.CreateTable(FTLStatsTable, ftl.Stats{})
	recorder.CreateTable(NANDStatsTable, nand.Stats{})
	recorder.CreateTable(RequestStatsTable, workload.Stats{})
	recorder.CreateTable(SummaryTable, Summary{})

	s.dbTracer = tracing.NewDBTracer(s.engine, recorder)
	tracing.CollectTrace(s.driver, s.dbTracer)

	return nil
}

// openRecorder opens the configured backend. An output file name always
// selects SQLite.
func (b Builder) openRecorder(
	s *Simulation,
	path string,
) (datarecording.DataRecorder, error) {
	if b.cfg.Recorder.Backend == "clickhouse" && b.outputFileName == "" {
		return datarecording.NewClickHouse(b.cfg.Recorder.DSN)
	}

	if path == "" {
		path = "ftlsim_" + s.id
	}

	recorder, err := datarecording.New(path)
	if err != nil {
		return nil, err
	}

	s.recorderFile = datarecording.FileName(path)

	return recorder, nil
}

func (b Builder) buildMetrics(s *Simulation) {
	registry := b.registry
	if registry == nil && b.cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
	}

	if registry == nil {
		return
	}

	s.collector = metrics.NewCollector(registry, s.engine)
	s.collector.WatchFTL(s.ftl)

	s.ftl.AcceptHook(s.collector)
	s.flash.AcceptHook(s.collector)
	tracing.CollectTrace(s.driver, s.collector)

	if b.cfg.Metrics.Enabled {
		s.metricsServer = metrics.NewServer(b.cfg.Metrics.Listen, registry, s.logger)
	}
}

func workloadOptions(c config.WorkloadConfig, g nand.Geometry) workload.Options {
	footprint := c.FootprintSectors
	if footprint == 0 {
		footprint = g.TotalSectors()
	}

	return workload.Options{
		Kind:              c.Kind,
		Requests:          c.Requests,
		SectorsPerRequest: c.SectorsPerRequest,
		ReadRatio:         c.ReadRatio,
		DiscardRatio:      c.DiscardRatio,
		Interarrival:      sim.VTimeInSec(c.Interarrival.Seconds()),
		Seed:              c.Seed,
		TraceFile:         c.TraceFile,
		Footprint:         footprint,
	}
}

// shutdownTimeout bounds how long Terminate waits for the metrics server.
const shutdownTimeout = 5 * time.Second
