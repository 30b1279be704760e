// Command iqtool streams I/Q samples from a file or a soundcard-presented
// SDR front end through the configurable DSP pipeline (resample, frequency
// shift, filter, AGC, I/Q correction) and writes them to a raw, WAV/RF64, or
// stdout container.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/pclov3r/iqtool/internal/config"
	"github.com/pclov3r/iqtool/internal/containerwriter"
	"github.com/pclov3r/iqtool/internal/driver"
	"github.com/pclov3r/iqtool/internal/driver/discovery"
	"github.com/pclov3r/iqtool/internal/driver/file"
	"github.com/pclov3r/iqtool/internal/driver/rig"
	"github.com/pclov3r/iqtool/internal/driver/soundcard"
	"github.com/pclov3r/iqtool/internal/dsp/filter"
	"github.com/pclov3r/iqtool/internal/logging"
	"github.com/pclov3r/iqtool/internal/pipeline"
	"github.com/pclov3r/iqtool/internal/progress"
	"github.com/pclov3r/iqtool/internal/sampleformat"
)

func main() {
	var (
		inputPath    = pflag.StringP("input", "i", "", "Input file path, or soundcard device name with --soundcard.")
		outputPath   = pflag.StringP("output", "o", "", "Output path (strftime-templated). \"-\" or \"stdout\" streams raw bytes to stdout.")
		inputFormat  = pflag.String("input-format", "cf32", "Wire sample format for a raw (non-WAV) input file; soundcard input always captures cs16.")
		outputFormat = pflag.String("output-format", "cf32", "Wire sample format for the output stream.")
		inputRate    = pflag.Float64("input-rate", 0, "Input sample rate in Hz. Always required; for a WAV input the header's rate is used for processing.")
		outputRate   = pflag.Float64("output-rate", 0, "Output sample rate in Hz. Required unless --no-resample.")
		noResample   = pflag.Bool("no-resample", false, "Skip resampling; output rate is forced equal to input rate.")
		rawPass      = pflag.Bool("raw-passthrough", false, "Copy input bytes straight to output, bypassing every DSP stage.")

		dcBlock   = pflag.Bool("dc-block", false, "Enable the fixed single-pole DC-blocking filter.")
		iqCorrect = pflag.Bool("iq-correct", false, "Enable automatic I/Q imbalance correction.")
		preShift  = pflag.Float64("pre-shift", 0, "Pre-resample frequency shift in Hz.")
		postShift = pflag.Float64("post-shift", 0, "Post-resample frequency shift in Hz.")

		agcProfile = pflag.String("agc", "", "Output AGC profile: dx, local, or digital. Empty disables AGC.")

		preFilters  = pflag.StringArray("pre-filter", nil, "Pre-resample filter request kind,f1hz[,f2hz]; may be repeated up to 5 times.")
		postFilters = pflag.StringArray("post-filter", nil, "Post-resample filter request kind,f1hz[,f2hz]; may be repeated up to 5 times.")

		presetPath = pflag.String("preset", "", "YAML preset file overlaying these flags.")

		soundcardMode = pflag.Bool("soundcard", false, "Read from a soundcard input device instead of a file.")
		rigModel      = pflag.Int("rig-model", 0, "Hamlib rig model ID, for tuned-frequency reporting.")
		rigDevice     = pflag.String("rig-device", "", "Rig device name, shown in rig error messages (not passed to hamlib).")

		baseSamples = pflag.Int("base-samples", 16384, "Nominal sample-pair count per pipeline chunk.")
		debug       = pflag.Bool("debug", false, "Enable debug-level logging.")
		listDevices = pflag.Bool("list-devices", false, "Enumerate candidate sound/serial devices and exit.")
		help        = pflag.BoolP("help", "h", false, "Display help text.")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "iqtool - a configurable I/Q sample stream processor.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: iqtool -i <input> -o <output> [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *listDevices {
		devices, err := discovery.List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "iqtool: listing devices: %v\n", err)
			os.Exit(1)
		}
		for _, d := range devices {
			fmt.Printf("%-8s %-16s %s (vendor=%s model=%s)\n", d.Subsystem, d.SysName, d.DevicePath, d.Vendor, d.Model)
		}
		os.Exit(0)
	}

	cfg, err := buildConfig(buildConfigArgs{
		inputPath: *inputPath, outputPath: *outputPath,
		inputFormat: *inputFormat, outputFormat: *outputFormat,
		inputRate: *inputRate, outputRate: *outputRate,
		noResample: *noResample, rawPass: *rawPass,
		dcBlock: *dcBlock, iqCorrect: *iqCorrect,
		preShift: *preShift, postShift: *postShift,
		agcProfile: *agcProfile,
		preFilters: *preFilters, postFilters: *postFilters,
		soundcardMode: *soundcardMode,
		rigDevice:     *rigDevice,
		baseSamples:   *baseSamples,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "iqtool: %v\n", err)
		os.Exit(1)
	}

	if *presetPath != "" {
		preset, err := config.LoadPreset(*presetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "iqtool: %v\n", err)
			os.Exit(1)
		}
		if err := preset.Apply(&cfg); err != nil {
			fmt.Fprintf(os.Stderr, "iqtool: applying preset %s: %v\n", *presetPath, err)
			os.Exit(1)
		}
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "iqtool: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Debug: *debug})

	if *rigModel != 0 {
		rpt, err := rig.Open(*rigModel, *rigDevice)
		if err != nil {
			logger.Warn("iqtool: opening rig for frequency reporting failed, continuing without it", "error", err)
		} else {
			defer rpt.Close()
			if freq, err := rpt.FrequencyHz(); err == nil {
				logger.Info("iqtool: rig tuned frequency", "hz", freq)
			}
		}
	}

	in, err := buildInputs(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iqtool: %v\n", err)
		os.Exit(1)
	}

	cw, err := buildContainerWriter(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iqtool: %v\n", err)
		os.Exit(1)
	}

	reporter := progress.New(os.Stderr)

	cancel := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("iqtool: signal received, requesting shutdown")
		close(cancel)
	}()

	if err := pipeline.Run(cfg, logger, in, cw, reporter, cancel); err != nil {
		fmt.Fprintf(os.Stderr, "iqtool: %v\n", err)
		os.Exit(1)
	}
}

type buildConfigArgs struct {
	inputPath, outputPath       string
	inputFormat, outputFormat   string
	inputRate, outputRate       float64
	noResample, rawPass         bool
	dcBlock, iqCorrect          bool
	preShift, postShift         float64
	agcProfile                  string
	preFilters, postFilters     []string
	soundcardMode               bool
	rigDevice                   string
	baseSamples                 int
}

func buildConfig(a buildConfigArgs) (config.Config, error) {
	cfg := config.Default()
	cfg.InputPath = a.inputPath
	cfg.OutputPath = a.outputPath
	cfg.InputFormat = a.inputFormat
	cfg.OutputFormat = a.outputFormat
	cfg.InputRateHz = a.inputRate
	cfg.OutputRateHz = a.outputRate
	cfg.NoResample = a.noResample
	cfg.RawPassthrough = a.rawPass
	cfg.DCBlock = a.dcBlock
	cfg.IQCorrect = a.iqCorrect
	cfg.PreShiftHz = a.preShift
	cfg.PostShiftHz = a.postShift
	cfg.RigDevice = a.rigDevice
	cfg.BaseSamples = a.baseSamples

	if a.soundcardMode {
		cfg.InputKind = config.InputSoundcard
	} else {
		cfg.InputKind = config.InputFile
	}

	switch {
	case a.outputPath == "-" || strings.EqualFold(a.outputPath, "stdout"):
		cfg.OutputKind = config.OutputStdout
	case strings.HasSuffix(strings.ToLower(a.outputPath), ".wav") || strings.HasSuffix(strings.ToLower(a.outputPath), ".rf64"):
		cfg.OutputKind = config.OutputWav
	default:
		cfg.OutputKind = config.OutputRaw
	}

	if a.agcProfile != "" {
		profile, err := config.ParseAGCProfile(a.agcProfile)
		if err != nil {
			return cfg, err
		}
		cfg.AGCEnabled = true
		cfg.AGCProfile = profile
	}

	preReqs, err := parseFilterRequests(a.preFilters)
	if err != nil {
		return cfg, fmt.Errorf("pre-filter: %w", err)
	}
	cfg.PreFilter.Requests = preReqs

	postReqs, err := parseFilterRequests(a.postFilters)
	if err != nil {
		return cfg, fmt.Errorf("post-filter: %w", err)
	}
	cfg.PostFilter.Requests = postReqs

	return cfg, nil
}

// parseFilterRequests parses "kind,f1hz[,f2hz]" tokens into filter.Requests.
func parseFilterRequests(tokens []string) ([]filter.Request, error) {
	reqs := make([]filter.Request, 0, len(tokens))
	for _, tok := range tokens {
		parts := strings.Split(tok, ",")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("malformed filter request %q (want kind,f1hz[,f2hz])", tok)
		}
		kind, err := config.ParseFilterKind(parts[0])
		if err != nil {
			return nil, err
		}
		f1, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing f1hz in %q: %w", tok, err)
		}
		var f2 float64
		if len(parts) == 3 {
			f2, err = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
			if err != nil {
				return nil, fmt.Errorf("parsing f2hz in %q: %w", tok, err)
			}
		}
		reqs = append(reqs, filter.Request{Kind: kind, F1Hz: f1, F2Hz: f2})
	}
	return reqs, nil
}

func buildInputs(cfg config.Config) (pipeline.Inputs, error) {
	if cfg.InputKind == config.InputSoundcard {
		return pipeline.Inputs{SDRDriver: soundcard.New(cfg.InputPath, cfg.InputRateHz, cfg.BaseSamples)}, nil
	}

	formatHint, err := sampleformat.Parse(cfg.InputFormat)
	if err != nil {
		return pipeline.Inputs{}, err
	}
	var src driver.FileSource = file.New(cfg.InputPath, formatHint, cfg.InputRateHz)
	return pipeline.Inputs{FileSource: src}, nil
}

func buildContainerWriter(cfg config.Config) (containerwriter.Writer, error) {
	switch cfg.OutputKind {
	case config.OutputStdout:
		return containerwriter.NewStdout(os.Stdout), nil
	case config.OutputWav:
		path, err := containerwriter.ResolveFilename(cfg.OutputPath, time.Now())
		if err != nil {
			return nil, fmt.Errorf("resolving output filename: %w", err)
		}
		return containerwriter.NewWav(path), nil
	default:
		path, err := containerwriter.ResolveFilename(cfg.OutputPath, time.Now())
		if err != nil {
			return nil, fmt.Errorf("resolving output filename: %w", err)
		}
		return containerwriter.NewRaw(path), nil
	}
}
