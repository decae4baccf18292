// Package config loads the settings of a simulation run.
//
// Settings come from, in order of precedence:
//  1. Environment variables (FTLSIM_*, also read from a .env file)
//  2. The configuration file (YAML)
//  3. Default values
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/ftlsim/ftl"
	"github.com/sarchlab/ftlsim/nand"
	"github.com/sarchlab/ftlsim/sim"
)

// EnvPrefix is the prefix of the environment variables that override the
// configuration file. FTLSIM_FTL_SCHEME overrides ftl.scheme.
const EnvPrefix = "FTLSIM"

// DefaultConfigName is the file Load looks for when no path is given.
const DefaultConfigName = "ftlsim.yaml"

// Config is the configuration of a simulation run.
type Config struct {
	Geometry GeometryConfig `mapstructure:"geometry" yaml:"geometry"`
	Timing   TimingConfig   `mapstructure:"timing" yaml:"timing"`
	FTL      FTLConfig      `mapstructure:"ftl" yaml:"ftl"`
	Workload WorkloadConfig `mapstructure:"workload" yaml:"workload"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Monitor  MonitorConfig  `mapstructure:"monitor" yaml:"monitor"`
	Recorder RecorderConfig `mapstructure:"recorder" yaml:"recorder"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// GeometryConfig describes the simulated NAND array.
type GeometryConfig struct {
	PageSize       ByteSize `mapstructure:"page_size" validate:"required" yaml:"page_size"`
	SectorSize     ByteSize `mapstructure:"sector_size" validate:"required" yaml:"sector_size"`
	PagesPerBlock  int      `mapstructure:"pages_per_block" validate:"gt=0" yaml:"pages_per_block"`
	BlocksPerFlash int      `mapstructure:"blocks_per_flash" validate:"gt=0" yaml:"blocks_per_flash"`
	FlashCount     int      `mapstructure:"flash_count" validate:"gt=0" yaml:"flash_count"`
	PlanesPerFlash int      `mapstructure:"planes_per_flash" validate:"gt=0" yaml:"planes_per_flash"`
	ChannelCount   int      `mapstructure:"channel_count" validate:"gt=0" yaml:"channel_count"`
}

// TimingConfig holds the flash latencies.
type TimingConfig struct {
	RegWrite           time.Duration `mapstructure:"reg_write" validate:"gte=0" yaml:"reg_write"`
	CellProgram        time.Duration `mapstructure:"cell_program" validate:"gte=0" yaml:"cell_program"`
	RegRead            time.Duration `mapstructure:"reg_read" validate:"gte=0" yaml:"reg_read"`
	CellRead           time.Duration `mapstructure:"cell_read" validate:"gte=0" yaml:"cell_read"`
	BlockErase         time.Duration `mapstructure:"block_erase" validate:"gte=0" yaml:"block_erase"`
	ChannelSwitchRead  time.Duration `mapstructure:"channel_switch_read" validate:"gte=0" yaml:"channel_switch_read"`
	ChannelSwitchWrite time.Duration `mapstructure:"channel_switch_write" validate:"gte=0" yaml:"channel_switch_write"`

	// IOParallelism lets the planes of a chip work at the same time.
	IOParallelism bool `mapstructure:"io_parallelism" yaml:"io_parallelism"`
}

// FTLConfig tunes the translation layer.
type FTLConfig struct {
	// Scheme is page, block, or hybrid.
	Scheme string `mapstructure:"scheme" validate:"required,scheme" yaml:"scheme"`

	// BMStartSector is the first block-mapped sector of the hybrid scheme.
	BMStartSector int64 `mapstructure:"bm_start_sector" validate:"gte=0" yaml:"bm_start_sector"`

	// OVP is the over-provisioning percentage.
	OVP int `mapstructure:"ovp" validate:"gte=0,lte=100" yaml:"ovp"`

	// GCTriggerBlocks is the empty pool size that starts a collection. Zero
	// means one block per plane; negative disables collection.
	GCTriggerBlocks int `mapstructure:"gc_trigger_blocks" yaml:"gc_trigger_blocks"`

	// GCVictimCount is the number of rounds per collection. Zero derives it
	// from OVP.
	GCVictimCount int `mapstructure:"gc_victim_count" validate:"gte=0" yaml:"gc_victim_count"`

	// GCPolicy is overall or inchip.
	GCPolicy string `mapstructure:"gc_policy" validate:"victim_policy" yaml:"gc_policy"`

	WritePrecheck bool `mapstructure:"write_precheck" yaml:"write_precheck"`

	// StoreData keeps page payloads in memory so that reads return data.
	StoreData bool `mapstructure:"store_data" yaml:"store_data"`
}

// WorkloadConfig selects the requests sent to the FTL.
type WorkloadConfig struct {
	// Kind is sequential, random, mixed, or trace.
	Kind string `mapstructure:"kind" validate:"required,oneof=sequential random mixed trace" yaml:"kind"`

	Requests          int           `mapstructure:"requests" validate:"gte=0" yaml:"requests"`
	SectorsPerRequest int           `mapstructure:"sectors_per_request" validate:"gt=0" yaml:"sectors_per_request"`
	ReadRatio         float64       `mapstructure:"read_ratio" validate:"gte=0,lte=1" yaml:"read_ratio"`
	DiscardRatio      float64       `mapstructure:"discard_ratio" validate:"gte=0,lte=1" yaml:"discard_ratio"`
	Interarrival      time.Duration `mapstructure:"interarrival" validate:"gte=0" yaml:"interarrival"`
	Seed              int64         `mapstructure:"seed" yaml:"seed"`
	TraceFile         string        `mapstructure:"trace_file" validate:"required_if=Kind trace" yaml:"trace_file,omitempty"`

	// FootprintSectors limits the sectors the generators touch. Zero means
	// the whole device.
	FootprintSectors int64 `mapstructure:"footprint_sectors" validate:"gte=0" yaml:"footprint_sectors"`
}

// LoggingConfig controls the log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MonitorConfig controls the HTTP monitor.
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port zero picks a free port.
	Port        int  `mapstructure:"port" validate:"gte=0,max=65535" yaml:"port"`
	OpenBrowser bool `mapstructure:"open_browser" yaml:"open_browser"`
}

// RecorderConfig controls the SQLite run record.
type RecorderConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Backend is sqlite or clickhouse.
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=sqlite clickhouse" yaml:"backend"`

	// DSN locates the ClickHouse server, such as
	// clickhouse://default:@localhost:9000/ftlsim.
	DSN string `mapstructure:"dsn" validate:"required_if=Backend clickhouse" yaml:"dsn,omitempty"`

	// Path of the database. Empty picks a unique name in the working
	// directory.
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" validate:"required_if=Enabled true" yaml:"listen"`
}

// Load reads the configuration at path. An empty path looks for
// DefaultConfigName in the working directory and then in the user config
// directory. A missing file is not an error: the defaults are used, with the
// environment overrides applied.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setupViper(v, path)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration as YAML.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// NANDGeometry converts the geometry section.
func (c *Config) NANDGeometry() nand.Geometry {
	g := c.Geometry

	return nand.Geometry{
		PageSize:       g.PageSize.Int(),
		SectorSize:     g.SectorSize.Int(),
		PagesPerBlock:  g.PagesPerBlock,
		BlocksPerFlash: g.BlocksPerFlash,
		FlashCount:     g.FlashCount,
		PlanesPerFlash: g.PlanesPerFlash,
		ChannelCount:   g.ChannelCount,
	}
}

// NANDTiming converts the timing section.
func (c *Config) NANDTiming() nand.Timing {
	t := c.Timing

	return nand.Timing{
		RegWrite:           toVTime(t.RegWrite),
		CellProgram:        toVTime(t.CellProgram),
		RegRead:            toVTime(t.RegRead),
		CellRead:           toVTime(t.CellRead),
		BlockErase:         toVTime(t.BlockErase),
		ChannelSwitchRead:  toVTime(t.ChannelSwitchRead),
		ChannelSwitchWrite: toVTime(t.ChannelSwitchWrite),
		IOParallelism:      t.IOParallelism,
	}
}

// FTLOptions converts the ftl section.
func (c *Config) FTLOptions() (ftl.Options, error) {
	scheme, err := ftl.ParseScheme(c.FTL.Scheme)
	if err != nil {
		return ftl.Options{}, err
	}

	policy, err := ftl.ParseVictimPolicy(c.FTL.GCPolicy)
	if err != nil {
		return ftl.Options{}, err
	}

	return ftl.Options{
		Scheme:          scheme,
		BMStartSector:   c.FTL.BMStartSector,
		OVP:             c.FTL.OVP,
		GCTriggerBlocks: c.FTL.GCTriggerBlocks,
		GCVictimCount:   c.FTL.GCVictimCount,
		GCPolicy:        policy,
		WritePrecheck:   c.FTL.WritePrecheck,
	}, nil
}

func toVTime(d time.Duration) sim.VTimeInSec {
	return sim.VTimeInSec(d.Seconds())
}

func fromVTime(t sim.VTimeInSec) time.Duration {
	return time.Duration(math.Round(float64(t) * float64(time.Second)))
}

func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("failed to load .env: %w", err)
}

func setupViper(v *viper.Viper, path string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v, reflect.TypeOf(Config{}), "")

	if path != "" {
		v.SetConfigFile(path)
		return
	}

	v.AddConfigPath(".")
	v.AddConfigPath(configDir())
	v.SetConfigName(strings.TrimSuffix(DefaultConfigName, filepath.Ext(DefaultConfigName)))
	v.SetConfigType("yaml")
}

// bindEnv registers every key of the config with viper, so that Unmarshal
// sees environment overrides of keys the file does not set.
func bindEnv(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		key := field.Tag.Get("mapstructure")
		if key == "" || key == "-" {
			continue
		}

		if prefix != "" {
			key = prefix + "." + key
		}

		if field.Type.Kind() == reflect.Struct {
			bindEnv(v, field.Type, key)
			continue
		}

		_ = v.BindEnv(key)
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	err := v.ReadInConfig()
	if err == nil {
		return true, nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return false, fmt.Errorf("failed to read config file: %w", err)
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return ParseByteSize(v)
		case int:
			return ByteSize(v), nil
		case int64:
			return ByteSize(v), nil
		case uint64:
			return ByteSize(v), nil
		case float64:
			return ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ftlsim")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "ftlsim")
}

// DefaultPath returns where `config init` writes when no path is given.
func DefaultPath() string {
	return DefaultConfigName
}
