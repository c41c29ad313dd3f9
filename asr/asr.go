package asr

import "context"

// SpeechRecognitionAPI turns audio bytes into subtitle text.
type SpeechRecognitionAPI interface {
	Run(ctx context.Context, data []byte) (*Output, error)
}

// Output carries the engine's transcription payload. Text holds SRT when
// the engine was asked for subtitles.
type Output struct {
	Text      string
	ModelName string
}
