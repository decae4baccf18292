package config

import (
	"strings"

	"github.com/sarchlab/ftlsim/ftl"
	"github.com/sarchlab/ftlsim/nand"
)

// Default returns the configuration of a 512 MiB, 4-chip device driven by a
// random workload.
func Default() *Config {
	t := nand.DefaultTiming()

	return &Config{
		Geometry: GeometryConfig{
			PageSize:       4 * KiB,
			SectorSize:     512,
			PagesPerBlock:  64,
			BlocksPerFlash: 512,
			FlashCount:     4,
			PlanesPerFlash: 2,
			ChannelCount:   2,
		},
		Timing: TimingConfig{
			RegWrite:           fromVTime(t.RegWrite),
			CellProgram:        fromVTime(t.CellProgram),
			RegRead:            fromVTime(t.RegRead),
			CellRead:           fromVTime(t.CellRead),
			BlockErase:         fromVTime(t.BlockErase),
			ChannelSwitchRead:  fromVTime(t.ChannelSwitchRead),
			ChannelSwitchWrite: fromVTime(t.ChannelSwitchWrite),
			IOParallelism:      t.IOParallelism,
		},
		FTL: FTLConfig{
			Scheme:        ftl.SchemePageMap.String(),
			GCPolicy:      ftl.VictimOverall.String(),
			WritePrecheck: true,
		},
		Workload: WorkloadConfig{
			Kind:              "random",
			Requests:          10000,
			SectorsPerRequest: 8,
			ReadRatio:         0.3,
			Interarrival:      fromVTime(t.CellProgram),
			Seed:              1,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stderr",
		},
		Recorder: RecorderConfig{
			Backend: "sqlite",
		},
		Metrics: MetricsConfig{
			Listen: ":9090",
		},
	}
}

// ApplyDefaults fills the fields left empty. Explicit values are kept.
func ApplyDefaults(cfg *Config) {
	d := Default()

	applyGeometryDefaults(&cfg.Geometry, &d.Geometry)
	applyFTLDefaults(&cfg.FTL)
	applyWorkloadDefaults(&cfg.Workload, &d.Workload)
	applyLoggingDefaults(&cfg.Logging)

	if cfg.Recorder.Backend == "" {
		cfg.Recorder.Backend = d.Recorder.Backend
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = d.Metrics.Listen
	}
}

func applyGeometryDefaults(cfg, d *GeometryConfig) {
	if cfg.PageSize == 0 {
		cfg.PageSize = d.PageSize
	}

	if cfg.SectorSize == 0 {
		cfg.SectorSize = d.SectorSize
	}

	if cfg.PagesPerBlock == 0 {
		cfg.PagesPerBlock = d.PagesPerBlock
	}

	if cfg.BlocksPerFlash == 0 {
		cfg.BlocksPerFlash = d.BlocksPerFlash
	}

	if cfg.FlashCount == 0 {
		cfg.FlashCount = d.FlashCount
	}

	if cfg.PlanesPerFlash == 0 {
		cfg.PlanesPerFlash = d.PlanesPerFlash
	}

	if cfg.ChannelCount == 0 {
		cfg.ChannelCount = d.ChannelCount
	}
}

func applyFTLDefaults(cfg *FTLConfig) {
	if cfg.Scheme == "" {
		cfg.Scheme = ftl.SchemePageMap.String()
	}
	cfg.Scheme = strings.ToLower(cfg.Scheme)

	if cfg.GCPolicy == "" {
		cfg.GCPolicy = ftl.VictimOverall.String()
	}
	cfg.GCPolicy = strings.ToLower(cfg.GCPolicy)
}

func applyWorkloadDefaults(cfg, d *WorkloadConfig) {
	if cfg.Kind == "" {
		cfg.Kind = d.Kind
	}
	cfg.Kind = strings.ToLower(cfg.Kind)

	if cfg.SectorsPerRequest == 0 {
		cfg.SectorsPerRequest = d.SectorsPerRequest
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}

	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}
