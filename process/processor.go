package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/subfine/subfine/asr"
	"github.com/subfine/subfine/dict"
	"github.com/subfine/subfine/media"
	"github.com/subfine/subfine/refine"
	"github.com/subfine/subfine/srt"
	"github.com/subfine/subfine/store"
	"github.com/subfine/subfine/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OpenAI caps audio uploads at 25MB
const maxChunkFileSize = 1024 * 1024 * 25

const (
	DefaultChunkSeconds = 300
	DefaultConcurrency  = 1
)

// TableSource yields the correction table snapshot a run should use.
// Both *dict.Table and *dict.Watcher satisfy it.
type TableSource interface {
	Current() *dict.Table
}

// Media is the subset of *media.FFmpeg the processor uses.
type Media interface {
	FFprobeDurationFromFile(ctx context.Context, filePath string) (float64, error)
	FFmpegTranscodeAudioFromFile(ctx context.Context, filePath string, maxSize int) ([]byte, error)
	FFmpegSplitAudioFromFile(ctx context.Context, filePath, dir string, segmentSeconds int) ([]string, error)
}

// RunRecorder persists run metadata. *store.Store satisfies it.
type RunRecorder interface {
	CreateTranscription(ctx context.Context, inputFile string) (int64, error)
	FinishTranscription(ctx context.Context, params store.FinishTranscriptionParams) error
	FailTranscription(ctx context.Context, id int64) error
}

type Processor struct {
	log *zap.Logger

	dictionary TableSource
	asrAPI     asr.SpeechRecognitionAPI
	refiner    refine.Refiner
	store      RunRecorder

	media Media

	outputDir    string
	chunkSeconds int
	concurrency  int
}

type ProcessorOptions struct {
	ParentLogger *zap.Logger
	Dictionary   TableSource
	ASR          asr.SpeechRecognitionAPI
	Refiner      refine.Refiner
	// Store records run metadata when set.
	Store RunRecorder

	OutputDir    string
	ChunkSeconds int
	Concurrency  int
}

type ProcessorOptionsExtraOptions func(*Processor)

func WithMedia(m Media) ProcessorOptionsExtraOptions {
	return func(p *Processor) {
		p.media = m
	}
}

func NewProcessor(options ProcessorOptions, extraOptions ...ProcessorOptionsExtraOptions) (*Processor, error) {
	if options.Dictionary == nil {
		return nil, fmt.Errorf("dictionary source is required")
	}
	if options.ASR == nil {
		return nil, fmt.Errorf("speech recognition api is required")
	}
	if options.Refiner == nil {
		return nil, fmt.Errorf("refiner is required")
	}

	p := &Processor{
		log: options.ParentLogger.Named("processor"),

		dictionary: options.Dictionary,
		asrAPI:     options.ASR,
		refiner:    options.Refiner,
		store:      options.Store,

		media: media.NewFFmpeg(),

		outputDir:    options.OutputDir,
		chunkSeconds: options.ChunkSeconds,
		concurrency:  options.Concurrency,
	}
	for _, option := range extraOptions {
		option(p)
	}

	if p.outputDir == "" {
		p.outputDir = "."
	}
	if p.chunkSeconds <= 0 {
		p.chunkSeconds = DefaultChunkSeconds
	}
	if p.concurrency <= 0 {
		p.concurrency = DefaultConcurrency
	}

	return p, nil
}

// Result summarizes one processed recording.
type Result struct {
	BeforePath string
	AfterPath  string

	ModelName      string
	AudioDuration  float64
	Chunks         int
	RuleCount      int
	ProcessingTime float64
}

// Run transcribes the recording at inputPath, applies the correction
// table, refines the result, and writes the merged subtitle files into
// the output directory.
func (p *Processor) Run(ctx context.Context, inputPath string) (*Result, error) {
	log := utils.GetLogFromContext(ctx, p.log)

	var transcriptionID int64
	if p.store != nil {
		id, err := p.store.CreateTranscription(ctx, filepath.Base(inputPath))
		if err != nil {
			log.Error("failed to create transcription in db", zap.Error(err))
		} else {
			transcriptionID = id
		}
	}

	result, err := p.process(ctx, inputPath)
	if err != nil {
		if transcriptionID != 0 {
			if dbErr := p.store.FailTranscription(ctx, transcriptionID); dbErr != nil {
				log.Error("failed to mark transcription as failed in db", zap.Error(dbErr))
			}
		}
		return nil, err
	}

	if transcriptionID != 0 {
		if dbErr := p.store.FinishTranscription(ctx, store.FinishTranscriptionParams{
			ID:             transcriptionID,
			ModelName:      result.ModelName,
			AudioDuration:  result.AudioDuration,
			ChunkCount:     int32(result.Chunks),
			RuleCount:      int32(result.RuleCount),
			ProcessingTime: result.ProcessingTime,
		}); dbErr != nil {
			log.Error("failed to mark transcription as done in db", zap.Error(dbErr))
		}
	}

	return result, nil
}

func (p *Processor) process(ctx context.Context, inputPath string) (*Result, error) {
	log := utils.GetLogFromContext(ctx, p.log)

	start := time.Now()

	duration, err := p.media.FFprobeDurationFromFile(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("duration: %w", err)
	}

	table := p.dictionary.Current()

	tempDir, err := os.MkdirTemp("", "subfine-*")
	if err != nil {
		return nil, fmt.Errorf("making temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	chunks, err := p.prepareChunks(ctx, inputPath, tempDir, duration)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no audio chunks produced")
	}

	log.With(
		zap.Float64("duration", duration),
		zap.Int("chunks", len(chunks)),
		zap.Int("rules", table.Len()),
	).Info("transcribing")

	corrected := make([][]srt.Cue, len(chunks))
	refined := make([][]srt.Cue, len(chunks))
	models := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, c := range chunks {
		g.Go(func() error {
			chunkCtx, chunkLog := utils.LogContextWith(gctx, log, zap.Int("chunk", c.index))

			data, err := c.load()
			if err != nil {
				return fmt.Errorf("chunk %d: %w", c.index, err)
			}

			out, err := p.processChunk(chunkCtx, chunkLog, table, data)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", c.index, err)
			}

			offset := time.Duration(c.index) * time.Duration(p.chunkSeconds) * time.Second
			corrected[i] = srt.Shift(out.corrected, offset)
			refined[i] = srt.Shift(out.refined, offset)
			models[i] = out.model
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	beforePath, afterPath, err := p.writeOutputs(inputPath, corrected, refined)
	if err != nil {
		return nil, err
	}

	return &Result{
		BeforePath:     beforePath,
		AfterPath:      afterPath,
		ModelName:      models[0],
		AudioDuration:  duration,
		Chunks:         len(chunks),
		RuleCount:      table.Len(),
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}

type chunk struct {
	index int

	path string
	data []byte
}

// load returns the chunk's audio, reading it from disk when it came
// from the segment muxer.
func (c chunk) load() ([]byte, error) {
	if c.data != nil {
		return c.data, nil
	}

	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("opening chunk: %w", err)
	}
	defer f.Close()

	data, err := utils.ReadAllLimit(f, maxChunkFileSize)
	if err != nil {
		return nil, fmt.Errorf("reading chunk: %w", err)
	}

	return data, nil
}

// prepareChunks transcodes recordings no longer than one chunk in a
// single pass, and splits everything else into chunk files under
// tempDir.
func (p *Processor) prepareChunks(ctx context.Context, inputPath, tempDir string, duration float64) ([]chunk, error) {
	if duration <= float64(p.chunkSeconds) {
		data, err := p.media.FFmpegTranscodeAudioFromFile(ctx, inputPath, maxChunkFileSize)
		if err != nil {
			return nil, fmt.Errorf("transcoding: %w", err)
		}
		return []chunk{{data: data}}, nil
	}

	paths, err := p.media.FFmpegSplitAudioFromFile(ctx, inputPath, tempDir, p.chunkSeconds)
	if err != nil {
		return nil, fmt.Errorf("splitting audio: %w", err)
	}

	chunks := make([]chunk, len(paths))
	for i, path := range paths {
		chunks[i] = chunk{index: i, path: path}
	}

	return chunks, nil
}

type chunkOutput struct {
	corrected []srt.Cue
	refined   []srt.Cue
	model     string
}

func (p *Processor) processChunk(ctx context.Context, log *zap.Logger, table *dict.Table, data []byte) (*chunkOutput, error) {
	transcription, err := p.asrAPI.Run(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("generating transcript: %w", err)
	}

	cues, err := srt.Parse(transcription.Text)
	if err != nil {
		return nil, fmt.Errorf("parsing transcript: %w", err)
	}

	corrected := srt.Correct(cues, table)

	refined := corrected
	if len(corrected) > 0 {
		refinement, err := p.refiner.Refine(ctx, srt.Render(corrected))
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("refining: %w", err)
			}
			log.Warn("refinement failed, keeping corrected subtitles", zap.Error(err))
		} else if refinedCues, parseErr := srt.Parse(refinement.Text); parseErr != nil {
			log.Warn("refined subtitles unparsable, keeping corrected subtitles", zap.Error(parseErr))
		} else {
			refined = refinedCues
		}
	}

	return &chunkOutput{
		corrected: corrected,
		refined:   refined,
		model:     transcription.ModelName,
	}, nil
}

func (p *Processor) writeOutputs(inputPath string, corrected, refined [][]srt.Cue) (string, string, error) {
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return "", "", fmt.Errorf("making output dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	beforePath := filepath.Join(p.outputDir, base+"_before.srt")
	afterPath := filepath.Join(p.outputDir, base+"_after.srt")

	if err := os.WriteFile(beforePath, []byte(srt.Render(srt.Merge(corrected...))), 0o644); err != nil {
		return "", "", fmt.Errorf("writing corrected subtitles: %w", err)
	}
	if err := os.WriteFile(afterPath, []byte(srt.Render(srt.Merge(refined...))), 0o644); err != nil {
		return "", "", fmt.Errorf("writing refined subtitles: %w", err)
	}

	return beforePath, afterPath, nil
}
