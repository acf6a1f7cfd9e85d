// Package config centralises runtime configuration for the play-event simulator.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/topsongs/playsim/errs"
)

// Mode selects the simulation run mode.
type Mode string

const (
	// ModeHistorical replays a bounded volume of backdated events.
	ModeHistorical Mode = "historical"
	// ModeLive emits events at the current wall-clock time at a paced rate.
	ModeLive Mode = "live"
)

// Format names a supported reference data file format.
type Format string

const (
	// FormatCSV selects comma-separated reference data files.
	FormatCSV Format = "csv"
	// FormatJSON selects JSON reference data files.
	FormatJSON Format = "json"
)

// ReferenceDataConfig locates the master data collections.
type ReferenceDataConfig struct {
	Dir    string `yaml:"dir"`
	Format Format `yaml:"format"`
}

// HistoricalConfig governs bounded historical replay.
type HistoricalConfig struct {
	StartTime   time.Time `yaml:"startTime"`
	EndTime     time.Time `yaml:"endTime"`
	Volume      int       `yaml:"volume"`
	PostingRate float64   `yaml:"postingRate"`
}

// LiveConfig governs open-ended live emission.
type LiveConfig struct {
	VolumePerMinute int           `yaml:"volumePerMinute"`
	Duration        time.Duration `yaml:"duration"`
}

// DispatchConfig sizes the dispatcher worker pool and delivery policy.
type DispatchConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Workers        int           `yaml:"workers"`
	QueueCapacity  int           `yaml:"queueCapacity"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	MaxRetries     int           `yaml:"maxRetries"`
}

// DeviceWeights sets the relative likelihood of each device category.
type DeviceWeights struct {
	Mobile  float64 `yaml:"mobile"`
	Desktop float64 `yaml:"desktop"`
	Tablet  float64 `yaml:"tablet"`
	Other   float64 `yaml:"other"`
}

// TelemetryConfig configures the OTLP metrics exporter.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
}

// Settings contains the simulator configuration tree loaded from defaults and overrides.
type Settings struct {
	Mode          Mode                `yaml:"mode"`
	ReferenceData ReferenceDataConfig `yaml:"referenceData"`
	Historical    HistoricalConfig    `yaml:"historical"`
	Live          LiveConfig          `yaml:"live"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	Devices       DeviceWeights       `yaml:"devices"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
}

// Default returns the default simulator configuration.
func Default() Settings {
	return Settings{
		Mode: ModeHistorical,
		ReferenceData: ReferenceDataConfig{
			Dir:    "data/master",
			Format: FormatCSV,
		},
		Historical: HistoricalConfig{
			StartTime:   time.Time{},
			EndTime:     time.Time{},
			Volume:      10000,
			PostingRate: 10,
		},
		Live: LiveConfig{
			VolumePerMinute: 60,
			Duration:        0,
		},
		Dispatch: DispatchConfig{
			Endpoint:       "http://localhost:8000/play",
			Workers:        4,
			QueueCapacity:  256,
			RequestTimeout: 5 * time.Second,
			MaxRetries:     3,
		},
		Devices: DeviceWeights{
			Mobile:  0.55,
			Desktop: 0.25,
			Tablet:  0.15,
			Other:   0.05,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "",
			ServiceName:  "playsim",
		},
	}
}

// Load reads the YAML configuration file at path, overlaying it onto defaults.
// A missing file is not an error; defaults are returned with loaded=false.
func Load(path string) (Settings, bool, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, false, nil
		}
		return cfg, false, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, false, errs.New("config", errs.CodeInvalidConfig,
			errs.WithMessage(fmt.Sprintf("parse %s", path)), errs.WithCause(err))
	}
	return cfg, true, nil
}

// Validate checks the configuration once, before any generation begins.
func (s Settings) Validate() error {
	switch s.Mode {
	case ModeHistorical, ModeLive:
	default:
		return invalid(fmt.Sprintf("mode must be %q or %q, got %q", ModeHistorical, ModeLive, s.Mode))
	}

	switch s.ReferenceData.Format {
	case FormatCSV, FormatJSON:
	default:
		return invalid(fmt.Sprintf("reference data format must be %q or %q, got %q", FormatCSV, FormatJSON, s.ReferenceData.Format))
	}
	if strings.TrimSpace(s.ReferenceData.Dir) == "" {
		return invalid("reference data dir must not be empty")
	}

	if strings.TrimSpace(s.Dispatch.Endpoint) == "" {
		return invalid("dispatch endpoint must not be empty")
	}
	if s.Dispatch.Workers <= 0 {
		return invalid("dispatch workers must be >0")
	}
	if s.Dispatch.QueueCapacity <= 0 {
		return invalid("dispatch queue capacity must be >0")
	}
	if s.Dispatch.RequestTimeout <= 0 {
		return invalid("dispatch request timeout must be >0")
	}
	if s.Dispatch.MaxRetries < 0 {
		return invalid("dispatch max retries must be >=0")
	}

	if s.Devices.Mobile < 0 || s.Devices.Desktop < 0 || s.Devices.Tablet < 0 || s.Devices.Other < 0 {
		return invalid("device weights must be >=0")
	}
	if s.Devices.Mobile+s.Devices.Desktop+s.Devices.Tablet+s.Devices.Other <= 0 {
		return invalid("device weights must not all be zero")
	}

	switch s.Mode {
	case ModeHistorical:
		if s.Historical.StartTime.IsZero() || s.Historical.EndTime.IsZero() {
			return invalid("historical mode requires startTime and endTime")
		}
		if !s.Historical.EndTime.After(s.Historical.StartTime) {
			return invalid("historical endTime must be after startTime")
		}
		if s.Historical.Volume <= 0 {
			return invalid("historical volume must be >0")
		}
		if s.Historical.PostingRate <= 0 {
			return invalid("historical posting rate must be >0")
		}
	case ModeLive:
		if s.Live.VolumePerMinute <= 0 {
			return invalid("live volume per minute must be >0")
		}
		if s.Live.Duration < 0 {
			return invalid("live duration must be >=0 (0 = unbounded)")
		}
	}

	return nil
}

func invalid(msg string) error {
	return errs.New("config", errs.CodeInvalidConfig, errs.WithMessage(msg))
}
