package media

import (
	"time"
)

const DefaultFFmpegBinary = "ffmpeg"
const DefaultFFprobeBinary = "ffprobe"

const DefaultCommandTimeout = time.Second * 30

// Transcoding or segmenting a long recording takes far longer than a probe.
const DefaultTranscodeTimeout = time.Minute * 10

type FFmpegOptions func(*FFmpeg)

type FFmpeg struct {
	ffmpegBinary     string
	ffprobeBinary    string
	commandTimeout   time.Duration
	transcodeTimeout time.Duration
}

func WithFFmpegBinary(ffmpegBinary string) FFmpegOptions {
	return func(f *FFmpeg) {
		f.ffmpegBinary = ffmpegBinary
	}
}

func WithFFprobeBinary(ffprobeBinary string) FFmpegOptions {
	return func(f *FFmpeg) {
		f.ffprobeBinary = ffprobeBinary
	}
}

func WithCommandTimeout(timeout time.Duration) FFmpegOptions {
	return func(f *FFmpeg) {
		f.commandTimeout = timeout
	}
}

func WithTranscodeTimeout(timeout time.Duration) FFmpegOptions {
	return func(f *FFmpeg) {
		f.transcodeTimeout = timeout
	}
}

func NewFFmpeg(options ...FFmpegOptions) *FFmpeg {
	ffmpeg := &FFmpeg{
		ffmpegBinary:     DefaultFFmpegBinary,
		ffprobeBinary:    DefaultFFprobeBinary,
		commandTimeout:   DefaultCommandTimeout,
		transcodeTimeout: DefaultTranscodeTimeout,
	}

	for _, option := range options {
		option(ffmpeg)
	}

	return ffmpeg
}
