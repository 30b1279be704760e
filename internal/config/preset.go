package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pclov3r/iqtool/internal/dsp/filter"
)

// Preset is the on-disk YAML shape for a saved configuration (spec.md §6
// "preset loading from a text file"). Only fields the user actually set in
// the preset override the Config already built from flags; zero-valued
// fields are left untouched, so a preset can be a partial overlay.
type Preset struct {
	Input        *string  `yaml:"input"`
	Output       *string  `yaml:"output"`
	InputFormat  *string  `yaml:"input_format"`
	OutputFormat *string  `yaml:"output_format"`
	InputRateHz  *float64 `yaml:"input_rate_hz"`
	OutputRateHz *float64 `yaml:"output_rate_hz"`

	RawPassthrough *bool `yaml:"raw_passthrough"`
	NoResample     *bool `yaml:"no_resample"`

	DCBlock     *bool    `yaml:"dc_block"`
	IQCorrect   *bool    `yaml:"iq_correct"`
	PreShiftHz  *float64 `yaml:"pre_shift_hz"`
	PostShiftHz *float64 `yaml:"post_shift_hz"`

	AGCProfile *string `yaml:"agc_profile"`

	PreFilters  []PresetFilter `yaml:"pre_filters"`
	PostFilters []PresetFilter `yaml:"post_filters"`
}

// PresetFilter is one YAML-encoded FilterRequest.
type PresetFilter struct {
	Kind string  `yaml:"kind"`
	F1Hz float64 `yaml:"f1_hz"`
	F2Hz float64 `yaml:"f2_hz"`
}

// LoadPreset reads and parses a YAML preset file.
func LoadPreset(path string) (*Preset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading preset %s: %w", path, err)
	}
	var p Preset
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("config: parsing preset %s: %w", path, err)
	}
	return &p, nil
}

// Apply overlays a preset's explicitly-set fields onto c.
func (p *Preset) Apply(c *Config) error {
	if p.Input != nil {
		c.InputPath = *p.Input
	}
	if p.Output != nil {
		c.OutputPath = *p.Output
	}
	if p.InputFormat != nil {
		c.InputFormat = *p.InputFormat
	}
	if p.OutputFormat != nil {
		c.OutputFormat = *p.OutputFormat
	}
	if p.InputRateHz != nil {
		c.InputRateHz = *p.InputRateHz
	}
	if p.OutputRateHz != nil {
		c.OutputRateHz = *p.OutputRateHz
	}
	if p.RawPassthrough != nil {
		c.RawPassthrough = *p.RawPassthrough
	}
	if p.NoResample != nil {
		c.NoResample = *p.NoResample
	}
	if p.DCBlock != nil {
		c.DCBlock = *p.DCBlock
	}
	if p.IQCorrect != nil {
		c.IQCorrect = *p.IQCorrect
	}
	if p.PreShiftHz != nil {
		c.PreShiftHz = *p.PreShiftHz
	}
	if p.PostShiftHz != nil {
		c.PostShiftHz = *p.PostShiftHz
	}
	if p.AGCProfile != nil {
		profile, err := ParseAGCProfile(*p.AGCProfile)
		if err != nil {
			return err
		}
		c.AGCEnabled = true
		c.AGCProfile = profile
	}

	if len(p.PreFilters) > 0 {
		reqs, err := toRequests(p.PreFilters)
		if err != nil {
			return err
		}
		c.PreFilter.Requests = reqs
	}
	if len(p.PostFilters) > 0 {
		reqs, err := toRequests(p.PostFilters)
		if err != nil {
			return err
		}
		c.PostFilter.Requests = reqs
	}
	return nil
}

func toRequests(in []PresetFilter) ([]filter.Request, error) {
	out := make([]filter.Request, len(in))
	for i, f := range in {
		kind, err := ParseFilterKind(f.Kind)
		if err != nil {
			return nil, err
		}
		out[i] = filter.Request{Kind: kind, F1Hz: f.F1Hz, F2Hz: f.F2Hz}
	}
	return out, nil
}
