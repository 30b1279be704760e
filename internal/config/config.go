// Package config holds the pipeline's validated run configuration
// (spec.md §6 "Out of scope" lists option validation as an external
// collaborator specified only by its contract) and the YAML preset loader.
package config

import (
	"fmt"
	"strings"

	"github.com/pclov3r/iqtool/internal/dsp/agc"
	"github.com/pclov3r/iqtool/internal/dsp/filter"
)

// ShiftFactorLimit is SHIFT_FACTOR_LIMIT (spec.md §6.5): the maximum
// |shift|/rate a frequency-shift configuration may request.
const ShiftFactorLimit = 5.0

// InputKind selects the Reader's source mode (spec.md §4.4).
type InputKind int

const (
	InputFile InputKind = iota
	InputSoundcard
	InputRealtimeSDR
)

// OutputKind selects the container writer.
type OutputKind int

const (
	OutputRaw OutputKind = iota
	OutputWav
	OutputStdout
)

// FilterConfig is one side's (pre- or post-resample) filter configuration.
type FilterConfig struct {
	Requests            []filter.Request
	TapsOverride        int
	TransitionWidthHz   float64
	AttenuationDB       float64
	ForceImplementation string
	FFTSizeOverride     int
}

// Config is the fully-resolved, validated configuration for one run. It is
// built by flag parsing plus an optional YAML preset merge (preset.go)
// before Validate is called.
type Config struct {
	InputKind  InputKind
	InputPath  string // file path, or soundcard/rig device name
	OutputKind OutputKind
	OutputPath string // strftime-templated output path; ignored for stdout

	InputFormat  string // sample format tag, e.g. "cs16"; must parse for file input (a WAV header then overrides it); unused for soundcard
	OutputFormat string

	InputRateHz  float64
	OutputRateHz float64 // == InputRateHz when NoResample

	RawPassthrough bool
	NoResample     bool

	DCBlock     bool
	IQCorrect   bool
	PreShiftHz  float64
	PostShiftHz float64

	PreFilter  FilterConfig
	PostFilter FilterConfig

	AGCEnabled bool
	AGCProfile agc.Profile

	RigDevice string // optional hamlib device for frequency reporting

	// BaseSamples is PIPELINE_CHUNK_BASE_SAMPLES, overridable for tests.
	BaseSamples int
}

// Default returns a Config with every spec.md §6.5 tunable at its default
// and DSP features disabled.
func Default() Config {
	return Config{
		InputKind:    InputFile,
		OutputKind:   OutputRaw,
		InputFormat:  "cf32",
		OutputFormat: "cf32",
		BaseSamples:  16384,
	}
}

// Validate checks cross-field invariants not expressible on individual
// flags (spec.md §7 "Configuration errors — detected pre-stream").
func (c *Config) Validate() error {
	if c.InputPath == "" && c.InputKind == InputFile {
		return fmt.Errorf("config: input file path is required")
	}
	if c.OutputPath == "" && c.OutputKind != OutputStdout {
		return fmt.Errorf("config: output path is required")
	}
	if c.InputRateHz <= 0 {
		return fmt.Errorf("config: input sample rate must be positive")
	}
	if c.NoResample {
		c.OutputRateHz = c.InputRateHz
	} else if c.OutputRateHz <= 0 {
		return fmt.Errorf("config: output sample rate must be positive")
	}

	if err := checkShiftFactor("pre-resample frequency shift", c.PreShiftHz, c.InputRateHz); err != nil {
		return err
	}
	if err := checkShiftFactor("post-resample frequency shift", c.PostShiftHz, c.OutputRateHz); err != nil {
		return err
	}

	if len(c.PreFilter.Requests) > filter.MaxFilterChain {
		return fmt.Errorf("config: pre-resample filter chain exceeds MAX_FILTER_CHAIN (%d)", filter.MaxFilterChain)
	}
	if len(c.PostFilter.Requests) > filter.MaxFilterChain {
		return fmt.Errorf("config: post-resample filter chain exceeds MAX_FILTER_CHAIN (%d)", filter.MaxFilterChain)
	}

	if c.RawPassthrough {
		if c.InputFormat != c.OutputFormat {
			return fmt.Errorf("config: raw_passthrough requires identical input and output formats")
		}
		if !c.NoResample {
			return fmt.Errorf("config: raw_passthrough is incompatible with resampling")
		}
		if c.DCBlock || c.IQCorrect || c.AGCEnabled || len(c.PreFilter.Requests) > 0 || len(c.PostFilter.Requests) > 0 || c.PreShiftHz != 0 || c.PostShiftHz != 0 {
			return fmt.Errorf("config: raw_passthrough is incompatible with any DSP stage")
		}
	}

	if c.AGCEnabled {
		switch c.AGCProfile {
		case agc.DX, agc.Local, agc.Digital:
		default:
			return fmt.Errorf("config: unknown AGC profile")
		}
	}

	return nil
}

func checkShiftFactor(label string, shiftHz, rateHz float64) error {
	if rateHz <= 0 || shiftHz == 0 {
		return nil
	}
	factor := shiftHz / rateHz
	if factor < 0 {
		factor = -factor
	}
	if factor > ShiftFactorLimit {
		return fmt.Errorf("config: %s factor |%.3f| exceeds SHIFT_FACTOR_LIMIT (%.1f)", label, factor, ShiftFactorLimit)
	}
	return nil
}

// ParseFilterKind maps a user-facing filter kind string to filter.Kind.
func ParseFilterKind(s string) (filter.Kind, error) {
	switch strings.ToLower(s) {
	case "lowpass", "lp":
		return filter.Lowpass, nil
	case "highpass", "hp":
		return filter.Highpass, nil
	case "passband", "bp", "bandpass":
		return filter.Passband, nil
	case "stopband", "notch":
		return filter.Stopband, nil
	default:
		return 0, fmt.Errorf("config: unknown filter kind %q", s)
	}
}

// ParseAGCProfile maps a user-facing AGC profile name to agc.Profile.
func ParseAGCProfile(s string) (agc.Profile, error) {
	switch strings.ToLower(s) {
	case "dx":
		return agc.DX, nil
	case "local":
		return agc.Local, nil
	case "digital":
		return agc.Digital, nil
	default:
		return 0, fmt.Errorf("config: unknown AGC profile %q", s)
	}
}
