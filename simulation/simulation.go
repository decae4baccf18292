// Package simulation assembles a simulated drive from a configuration and
// runs a workload against it.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

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

// The tables a run writes into the recorder, next to the trace and the
// exec_info tables.
const (
	FTLStatsTable     = "ftl_stats"
	NANDStatsTable    = "nand_stats"
	RequestStatsTable = "request_stats"
	SummaryTable      = "summary"
)

// A Simulation is a simulated drive together with the workload that drives
// it and the services that observe it.
type Simulation struct {
	id     string
	cfg    *config.Config
	logger *slog.Logger

	engine        *sim.SerialEngine
	flash         *nand.Flash
	ftl           *ftl.FTL
	driver        *workload.Driver
	totalRequests int

	readLatency  *tracing.AverageTimeTracer
	writeLatency *tracing.AverageTimeTracer
	busyTime     *tracing.TotalTimeTracer
	ftlSteps     *tracing.StepCountTracer

	recorder     datarecording.DataRecorder
	recorderFile string
	execRecorder *datarecording.ExecRecorder
	dbTracer     *tracing.DBTracer

	collector     *metrics.Collector
	metricsServer *metrics.Server

	monitor  *monitoring.Monitor
	progress *monitoring.ProgressBar

	components    []sim.Component
	compNameIndex map[string]int

	terminated bool
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() sim.Engine {
	return s.engine
}

// GetFTL returns the translation layer.
func (s *Simulation) GetFTL() *ftl.FTL {
	return s.ftl
}

// GetFlash returns the flash array.
func (s *Simulation) GetFlash() *nand.Flash {
	return s.flash
}

// GetDriver returns the workload driver.
func (s *Simulation) GetDriver() *workload.Driver {
	return s.driver
}

// GetDataRecorder returns the data recorder, or nil if recording is off.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.recorder
}

// RecorderFile returns the database file of the recorder. It is empty if
// recording is off or the recorder writes to ClickHouse.
func (s *Simulation) RecorderFile() string {
	return s.recorderFile
}

// GetMonitor returns the monitor, or nil if monitoring is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// RegisterComponent registers a component with the simulation.
func (s *Simulation) RegisterComponent(c sim.Component) {
	name := c.Name()
	if _, found := s.compNameIndex[name]; found {
		panic("component " + name + " already registered")
	}

	s.components = append(s.components, c)
	s.compNameIndex[name] = len(s.components) - 1
}

// GetComponentByName returns the component with the given name, or nil.
func (s *Simulation) GetComponentByName(name string) sim.Component {
	i, found := s.compNameIndex[name]
	if !found {
		return nil
	}

	return s.components[i]
}

// Components returns all the registered components.
func (s *Simulation) Components() []sim.Component {
	return append([]sim.Component(nil), s.components...)
}

// StartServers starts the monitor and the metrics server, if configured.
func (s *Simulation) StartServers() error {
	if s.monitor != nil {
		if _, err := s.monitor.StartServer(); err != nil {
			return err
		}
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Start(); err != nil {
			return err
		}
	}

	return nil
}

// Run sends the whole workload through the drive and returns the report.
// A run that stops on an error still returns the report of what was done.
func (s *Simulation) Run() (RunReport, error) {
	s.logger.Info("simulation started",
		"scheme", s.ftl.Options().Scheme.String(),
		"workload", s.cfg.Workload.Kind,
		"requests", s.totalRequests,
		"sectors", s.ftl.TotalSectors())

	start := time.Now()

	s.driver.Start()
	err := s.engine.Run()
	s.engine.Finished()

	if s.monitor != nil {
		s.monitor.CompleteProgressBar(s.progress)
	}

	report := s.Report()
	report.WallTime = time.Since(start)

	s.record(report)

	if err != nil {
		s.logger.Error("simulation stopped", "err", err)
		return report, fmt.Errorf("simulation stopped: %w", err)
	}

	s.logger.Info("simulation finished",
		"sim_time", float64(report.SimTime),
		"wall_time", report.WallTime,
		"write_amplification", report.FTL.WriteAmplification())

	return report, nil
}

// Report summarizes the run so far.
func (s *Simulation) Report() RunReport {
	requests := s.driver.Stats()

	return RunReport{
		ID:              s.id,
		Scheme:          s.ftl.Options().Scheme,
		SimTime:         s.engine.CurrentTime(),
		Requests:        requests,
		FTL:             s.ftl.Stats(),
		NAND:            s.flash.Stats(),
		AvgReadLatency:  s.readLatency.AverageTime(),
		MaxReadLatency:  s.readLatency.MaxTime(),
		AvgWriteLatency: s.writeLatency.AverageTime(),
		MaxWriteLatency: s.writeLatency.MaxTime(),
		BusyTime:        s.busyTime.TotalTime(),
		GCRequests:      s.ftlSteps.GetTaskCount("gc"),
		Bandwidth:       requests.Bandwidth(s.flash.Geometry().SectorSize),
	}
}

func (s *Simulation) record(r RunReport) {
	if s.recorder == nil {
		return
	}

	s.recorder.InsertData(FTLStatsTable, r.FTL)
	s.recorder.InsertData(NANDStatsTable, r.NAND)
	s.recorder.InsertData(RequestStatsTable, r.Requests)
	s.recorder.InsertData(SummaryTable, r.summary())
	s.recorder.Flush()
}

// Terminate stops the servers and closes the recorder. It is safe to call
// more than once.
func (s *Simulation) Terminate() error {
	if s.terminated {
		return nil
	}
	s.terminated = true

	var errs []error

	if s.metricsServer != nil && s.metricsServer.Addr() != "" {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		errs = append(errs, s.metricsServer.Stop(ctx))
	}

	if s.monitor != nil {
		errs = append(errs, s.monitor.StopServer())
	}

	if s.recorder != nil {
		s.execRecorder.End()
		s.dbTracer.Terminate()
		errs = append(errs, s.recorder.Close())
	}

	return errors.Join(errs...)
}
