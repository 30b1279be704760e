package pipeline

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/pclov3r/iqtool/internal/chunk"
	"github.com/pclov3r/iqtool/internal/config"
	"github.com/pclov3r/iqtool/internal/containerwriter"
	"github.com/pclov3r/iqtool/internal/driver"
	"github.com/pclov3r/iqtool/internal/dsp/agc"
	"github.com/pclov3r/iqtool/internal/dsp/dcblock"
	"github.com/pclov3r/iqtool/internal/dsp/filter"
	"github.com/pclov3r/iqtool/internal/dsp/iqcorrect"
	"github.com/pclov3r/iqtool/internal/dsp/iqopt"
	"github.com/pclov3r/iqtool/internal/dsp/nco"
	"github.com/pclov3r/iqtool/internal/dsp/resample"
	"github.com/pclov3r/iqtool/internal/progress"
	"github.com/pclov3r/iqtool/internal/ringbuf"
	"github.com/pclov3r/iqtool/internal/sampleformat"
)

// Inputs collects one run's source: exactly one of FileSource/SDRDriver is
// set, per cfg.InputKind (spec.md §4.4).
type Inputs struct {
	FileSource driver.FileSource
	SDRDriver  driver.SDRDriver
}

// Run builds the stage graph spec.md §4.12 describes (allocate the pool,
// design filters, build the resampler, wire queues around absent stages,
// spawn every goroutine in dependency order) and blocks until the run
// finishes or is cancelled. It is the single entry point cmd/iqtool calls.
// cancel, if non-nil, is an external cooperative-cancel signal (closed or
// sent to by the caller, e.g. on SIGINT/SIGTERM); a nil channel simply never
// fires and Run proceeds exactly as if no external cancellation existed.
func Run(cfg config.Config, logger *log.Logger, in Inputs, cw containerwriter.Writer, reporter *progress.Reporter, cancel <-chan struct{}) error {
	ctx := NewContext(logger)
	isSDR := in.SDRDriver != nil

	initResult, err := initializeInput(in)
	if err != nil {
		return fmt.Errorf("pipeline: initializing input: %w", err)
	}

	inputRateHz := cfg.InputRateHz
	if initResult.SampleRateHz > 0 {
		inputRateHz = initResult.SampleRateHz
	}
	outputRateHz := cfg.OutputRateHz
	if cfg.NoResample {
		outputRateHz = inputRateHz
	}
	resamplerPresent := !cfg.RawPassthrough && outputRateHz != inputRateHz

	outputFormat, err := sampleformat.Parse(cfg.OutputFormat)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	preFilterEngine, err := buildFilterEngine(cfg.PreFilter, inputRateHz, cfg.PreShiftHz)
	if err != nil {
		return fmt.Errorf("pipeline: designing pre-resample filter: %w", err)
	}
	postFilterEngine, err := buildFilterEngine(cfg.PostFilter, outputRateHz, 0)
	if err != nil {
		return fmt.Errorf("pipeline: designing post-resample filter: %w", err)
	}

	var resampler *resample.Resampler
	resampledCapacity := cfg.BaseSamples
	if resamplerPresent {
		resampler = resample.New(inputRateHz, outputRateHz)
		resampledCapacity = resampler.OutputCapacity(cfg.BaseSamples)
	}

	sizing := chunk.DefaultSizing(cfg.BaseSamples, resampledCapacity)
	pool := chunk.NewPool(chunk.PipelineNumChunks, sizing)

	expectedOutputFrames := expectedFrames(initResult.KnownLengthFrames, resamplerPresent, inputRateHz, outputRateHz)

	var dcBlocker *dcblock.Blocker
	if cfg.DCBlock {
		dcBlocker = dcblock.New(inputRateHz)
	}
	var preShiftNCO *nco.Oscillator
	if cfg.PreShiftHz != 0 {
		preShiftNCO = nco.New(cfg.PreShiftHz, inputRateHz)
	}
	var postShiftNCO *nco.Oscillator
	if cfg.PostShiftHz != 0 {
		postShiftNCO = nco.New(cfg.PostShiftHz, outputRateHz)
	}
	var agcEngine agc.Engine
	if cfg.AGCEnabled {
		agcEngine = agc.New(cfg.AGCProfile, outputRateHz)
	}

	var factors *iqcorrect.AtomicFactors
	var trainingQueue *chunk.Queue[*chunk.Chunk]
	var optimizer *iqopt.Optimizer
	if cfg.IQCorrect {
		factors = &iqcorrect.AtomicFactors{}
		trainingQueue = chunk.NewQueue[*chunk.Chunk](QueueCapacity)
		optimizer = iqopt.New(factors)
	}

	if cfg.IQCorrect && !isSDR {
		if rewindable, ok := in.FileSource.(interface{ Rewind() error }); ok {
			if cerr := preStreamCalibrate(in.FileSource, pool, factors); cerr != nil {
				ctx.Log.Warn("pipeline: pre-stream I/Q calibration failed, continuing uncalibrated", "error", cerr)
			}
			if rerr := rewindable.Rewind(); rerr != nil {
				return fmt.Errorf("pipeline: rewinding after pre-stream calibration: %w", rerr)
			}
		}
	}

	if err := cw.Initialize(containerwriter.Info{
		Format:            outputFormat,
		SampleRateHz:      outputRateHz,
		KnownLengthFrames: expectedOutputFrames,
	}); err != nil {
		return fmt.Errorf("pipeline: initializing container writer: %w", err)
	}

	readerOut := chunk.NewQueue[*chunk.Chunk](QueueCapacity)
	var preOut, postIn, writerIn *chunk.Queue[*chunk.Chunk]
	if cfg.RawPassthrough {
		writerIn = readerOut
	} else {
		postIn = chunk.NewQueue[*chunk.Chunk](QueueCapacity)
		writerIn = chunk.NewQueue[*chunk.Chunk](QueueCapacity)
		if resamplerPresent {
			preOut = chunk.NewQueue[*chunk.Chunk](QueueCapacity)
		} else {
			preOut = postIn
		}
	}

	// writerRing is the Writer's own coarse-grained byte ring (spec.md §2,
	// §4.7, §6.2); absent in raw_passthrough, where the Writer calls
	// write_chunk directly per chunk instead (spec.md §6.2's pass-through
	// path, which explicitly bypasses the byte ring).
	var writerRing *ringbuf.ByteRingBuffer
	if !cfg.RawPassthrough {
		writerRing = ringbuf.NewByteRingBuffer(containerwriter.FileWriterBufferBytes)
	}

	var hb *driver.Heartbeat
	var rb *ringbuf.FramedRingBuffer
	var capture *Capture
	var watchdog *Watchdog
	var reader *Reader

	if isSDR {
		hb = &driver.Heartbeat{}
		rb = ringbuf.New(ringbuf.DefaultSDRCapacityBytes, logger)
		capture = NewCapture(in.SDRDriver, rb, hb, ctx)
		watchdog = NewWatchdog(hb, ctx)
		reader = NewRingReader(rb, pool, readerOut, ctx)
	} else {
		reader = NewFileReader(in.FileSource, cfg.RawPassthrough, pool, readerOut, writerIn, writerRing, ctx)
	}

	var preStage *PreProcessor
	var resamplerStage *ResamplerStage
	var postStage *PostProcessor
	var iqStage *IQOptimizerStage

	if !cfg.RawPassthrough {
		preStage = NewPreProcessor(PreProcessorConfig{
			In: readerOut, Out: preOut, Pool: pool,
			TrainingOut: trainingQueue, Factors: factors,
			DCBlock: dcBlocker, PreShiftNCO: preShiftNCO, PreFilter: preFilterEngine,
			ResamplerPresent: resamplerPresent,
		}, ctx)

		if resamplerPresent {
			resamplerStage = NewResamplerStage(preOut, postIn, resampler, ctx)
		}

		postStage = NewPostProcessor(PostProcessorConfig{
			In: postIn, Out: writerIn,
			PostFilter: postFilterEngine, PostShiftNCO: postShiftNCO, AGC: agcEngine,
			OutputFormat: outputFormat,
		}, ctx)

		if optimizer != nil {
			iqStage = NewIQOptimizerStage(trainingQueue, pool, optimizer, ctx)
		}
	}

	writer := NewWriter(writerIn, pool, cw, outputFormat, reporter, expectedOutputFrames, writerRing, rb, ctx)

	shutdownQueues := []*chunk.Queue[*chunk.Chunk]{readerOut, writerIn}
	if postIn != nil {
		shutdownQueues = append(shutdownQueues, postIn)
	}
	if preOut != nil {
		shutdownQueues = append(shutdownQueues, preOut)
	}
	if trainingQueue != nil {
		shutdownQueues = append(shutdownQueues, trainingQueue)
	}

	stopWatch := make(chan struct{})
	go shutdownWatcher(ctx, shutdownQueues, rb, writerRing, stopWatch, cancel)

	// g runs every data-path stage goroutine (capture/reader/pre/resampler/
	// post/iqopt/writer); none of them report an error through the group
	// itself (fatal errors are instead funneled through ctx.RequestShutdown
	// and read back via ctx.Err() below) so g.Wait() here is just a join —
	// but errgroup.Group still gives the pipeline one coherent place to add
	// a genuinely error-returning stage later without re-plumbing a bespoke
	// WaitGroup.
	var g errgroup.Group
	runStage := func(fn func()) {
		g.Go(func() error {
			fn()
			return nil
		})
	}

	if isSDR {
		runStage(capture.Run)
	}
	runStage(reader.Run)
	if !cfg.RawPassthrough {
		runStage(preStage.Run)
		if resamplerStage != nil {
			runStage(resamplerStage.Run)
		}
		runStage(postStage.Run)
		if iqStage != nil {
			runStage(iqStage.Run)
		}
	}

	var writerErr error
	var wdWG sync.WaitGroup
	if isSDR {
		wdWG.Add(1)
		go func() {
			defer wdWG.Done()
			watchdog.Run()
		}()
	}

	g.Go(func() error {
		writerErr = writer.Run()
		return nil
	})

	g.Wait()
	close(stopWatch)

	if isSDR {
		watchdog.Stop()
		wdWG.Wait()
		capture.Stop()
		if cerr := in.SDRDriver.Cleanup(); cerr != nil {
			ctx.Log.Warn("pipeline: driver cleanup failed", "error", cerr)
		}
	} else if cerr := in.FileSource.Close(); cerr != nil {
		ctx.Log.Warn("pipeline: closing input failed", "error", cerr)
	}

	pool.Shutdown()

	if writerErr != nil {
		return writerErr
	}
	if ctx.ErrOccurred() {
		return ctx.Err()
	}
	return nil
}

func initializeInput(in Inputs) (driver.InitResult, error) {
	if in.SDRDriver != nil {
		if err := in.SDRDriver.Validate(); err != nil {
			return driver.InitResult{}, err
		}
		return in.SDRDriver.Initialize()
	}
	return in.FileSource.Initialize()
}

func buildFilterEngine(fc config.FilterConfig, sampleRateHz, preShiftHz float64) (filter.Engine, error) {
	chain, err := filter.Design(filter.Spec{
		Requests:            fc.Requests,
		SampleRateHz:        sampleRateHz,
		PreShiftHz:          preShiftHz,
		TapsOverride:        fc.TapsOverride,
		TransitionWidthHz:   fc.TransitionWidthHz,
		AttenuationDB:       fc.AttenuationDB,
		ForceImplementation: fc.ForceImplementation,
		FFTSizeOverride:     fc.FFTSizeOverride,
	})
	if err != nil || chain == nil {
		return nil, err
	}
	return filter.NewEngine(chain), nil
}

// expectedFrames computes expected_total_output_frames (spec.md §4.12) for a
// known-length source; 0 (unknown) otherwise.
func expectedFrames(knownLengthFrames int64, resamplerPresent bool, inputRateHz, outputRateHz float64) int64 {
	if knownLengthFrames <= 0 {
		return 0
	}
	if !resamplerPresent {
		return knownLengthFrames
	}
	return int64(math.Ceil(float64(knownLengthFrames) * outputRateHz / inputRateHz))
}

// preStreamCalibrate implements the file-mode half of spec.md §4.10's
// optional synchronous one-shot calibration pass: borrow one chunk, read one
// block, run a single hill-climb pass against it, and publish the result
// before the caller rewinds the source for normal streaming. iqopt.Feed
// always runs on an Optimizer's first call (its interval gate only applies
// to *subsequent* calls), so this one-shot instance fires unconditionally.
func preStreamCalibrate(src driver.FileSource, pool *chunk.Pool, factors *iqcorrect.AtomicFactors) error {
	c, ok := pool.Get()
	if !ok {
		return fmt.Errorf("pipeline: pool unavailable for pre-stream calibration")
	}
	defer pool.Put(c)

	frames, format, _, err := src.ReadInto(c.RawInput)
	if err != nil {
		return err
	}
	if frames < iqopt.FFTSize {
		return nil
	}

	dec := sampleformat.DecoderFor(format)
	bpp := format.BytesPerSamplePair()
	for n := 0; n < iqopt.FFTSize; n++ {
		c.ComplexPreResample[n] = dec(c.RawInput[n*bpp : (n+1)*bpp])
	}

	calibrator := iqopt.New(factors)
	calibrator.Feed(c.ComplexPreResample[:iqopt.FFTSize], time.Now())
	return nil
}

// shutdownWatcher polls ctx for a shutdown request and, once observed,
// broadcasts it to every inter-stage queue, the SDR ring buffer (if any),
// and the Writer's byte ring (if any) so every blocked
// Enqueue/Dequeue/ReadPacket/Read/Write call wakes immediately. It
// deliberately never touches the chunk pool: stages still unwinding from a
// forced shutdown must be able to return their in-flight chunks via
// Pool.Put, which requires the pool to keep accepting Enqueue calls until
// every stage goroutine has actually exited.
func shutdownWatcher(ctx *Context, queues []*chunk.Queue[*chunk.Chunk], rb *ringbuf.FramedRingBuffer, writerRing *ringbuf.ByteRingBuffer, done <-chan struct{}, cancel <-chan struct{}) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	broadcast := func() {
		for _, q := range queues {
			q.Shutdown()
		}
		if rb != nil {
			rb.SignalShutdown()
		}
		if writerRing != nil {
			writerRing.SignalShutdown()
		}
	}

	for {
		select {
		case <-done:
			return
		case <-cancel:
			ctx.RequestShutdown(nil)
			broadcast()
			return
		case <-ticker.C:
			if !ctx.ShuttingDown() {
				continue
			}
			broadcast()
			return
		}
	}
}
