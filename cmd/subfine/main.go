package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/caarlos0/env/v9"
	openaiwhisper "github.com/subfine/subfine/asr/openai-whisper"
	"github.com/subfine/subfine/dict"
	"github.com/subfine/subfine/process"
	"github.com/subfine/subfine/prompts"
	openaichat "github.com/subfine/subfine/refine/openai-chat"
	"github.com/subfine/subfine/store"
	"github.com/subfine/subfine/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var CommitHash = ""

type config struct {
	PostgresDSN string `env:"POSTGRES_DSN"`

	ChunkSeconds     int `env:"CHUNK_SECONDS" envDefault:"300"`
	ChunkConcurrency int `env:"CHUNK_CONCURRENCY" envDefault:"1"`

	WhisperOptions openaiwhisper.OpenAIWhisperClientOptions `envPrefix:"ASR_OPENAI_WHISPER_"`
	RefinerOptions openaichat.OpenAIChatRefinerOptions      `envPrefix:"REFINE_OPENAI_CHAT_"`
}

const environmentPrefix = "SUBFINE_"
const logLevelEnvKey = environmentPrefix + "LOG_LEVEL"

func createLog() *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = ""

	logLevelValue := os.Getenv(logLevelEnvKey)
	logLevel, logLevelErr := zapcore.ParseLevel(logLevelValue)

	if logLevelErr != nil {
		logLevel = zapcore.InfoLevel
	}

	rawLog := zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		logLevel,
	)).Named("subfine")

	if CommitHash != "" {
		rawLog = rawLog.With(zap.String("commit", CommitHash))
	}

	if logLevelErr != nil && logLevelValue != "" {
		rawLog.With(zap.String(logLevelEnvKey, logLevelValue)).Warn("unable to parse log level, using INFO")
	}

	return rawLog
}

func main() {
	dictPath := flag.String("dict", "error_dict.txt", "path to the correction dictionary")
	outputDir := flag.String("out", ".", "directory for the generated subtitle files")
	watchDict := flag.Bool("watch-dict", false, "reload the dictionary when its file changes")
	strictDict := flag.Bool("strict-dict", false, "reject dictionaries with malformed lines")
	dictOptional := flag.Bool("dict-optional", false, "run without corrections when the dictionary can't be read")
	flag.Parse()

	parentLogger := createLog()
	defer parentLogger.Sync()

	log := parentLogger.Named("main")
	log.With(zap.String("min_log_level", parentLogger.Level().String())).Info("starting")

	inputs := flag.Args()
	if len(inputs) == 0 {
		log.Fatal("no input files, usage: subfine [flags] file...")
	}

	cfg := config{}
	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix: environmentPrefix,
	}); err != nil {
		log.Fatal("failed to parse config", zap.Error(err))
	}

	var parseOptions []dict.ParseOption
	if *strictDict {
		parseOptions = append(parseOptions, dict.Strict())
	}

	var source process.TableSource
	var watcher *dict.Watcher
	if *watchDict {
		w, err := dict.NewWatcher(*dictPath, parentLogger, parseOptions...)
		if err == nil {
			watcher = w
			source = w
		} else if *dictOptional && errors.Is(err, dict.ErrResourceUnavailable) {
			log.Warn("dictionary unavailable, continuing without corrections", zap.Error(err))
			source = dict.New()
		} else {
			log.Fatal("failed to start dictionary watcher", zap.Error(err))
		}
	} else {
		table, err := dict.Load(*dictPath, parseOptions...)
		if err == nil {
			source = table
		} else if *dictOptional && errors.Is(err, dict.ErrResourceUnavailable) {
			log.Warn("dictionary unavailable, continuing without corrections", zap.Error(err))
			source = dict.New()
		} else {
			log.Fatal("failed to load dictionary", zap.Error(err))
		}
	}

	var s *store.Store
	if cfg.PostgresDSN != "" {
		s = store.NewStore(context.Background(), parentLogger)
		if err := s.Connect(context.Background(), cfg.PostgresDSN); err != nil {
			log.Fatal("failed to connect store", zap.Error(err))
		}
		defer s.Close()
	}

	promptProvider, err := prompts.NewPromptProvider()
	if err != nil {
		log.Fatal("failed to create prompt provider", zap.Error(err))
	}

	refiner := openaichat.NewOpenAIChatRefiner(cfg.RefinerOptions, parentLogger, promptProvider)
	asrClient := openaiwhisper.NewOpenAIWhisperClient(cfg.WhisperOptions)

	processorOptions := process.ProcessorOptions{
		ParentLogger: parentLogger,
		Dictionary:   source,
		ASR:          asrClient,
		Refiner:      refiner,
		OutputDir:    *outputDir,
		ChunkSeconds: cfg.ChunkSeconds,
		Concurrency:  cfg.ChunkConcurrency,
	}
	if s != nil {
		processorOptions.Store = s
	}

	processor, err := process.NewProcessor(processorOptions)
	if err != nil {
		log.Fatal("failed to create processor", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := errgroup.Group{}

	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	g.Go(func() error {
		defer cancel()

		failed := 0
		for _, input := range inputs {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			fileCtx, fileLog := utils.LogContextWith(ctx, log, zap.String("input_file", filepath.Base(input)))

			result, err := processor.Run(fileCtx, input)
			if err != nil {
				failed++
				fileLog.Error("failed to process file", zap.Error(err))
				continue
			}

			fileLog.With(
				zap.String("before", result.BeforePath),
				zap.String("after", result.AfterPath),
				zap.Float64("audio_duration", result.AudioDuration),
				zap.Int("chunks", result.Chunks),
				zap.Float64("processing_time", result.ProcessingTime),
			).Info("subtitles written")
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(inputs))
		}
		return nil
	})

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-shutdownSignal:
		cancel()
		log.Info("received signal, shutting down")
	case <-ctx.Done():
		log.Info("context done, shutting down")
	}

	err = g.Wait()
	if err != nil {
		log.Fatal("error group error", zap.Error(err))
	}
}
