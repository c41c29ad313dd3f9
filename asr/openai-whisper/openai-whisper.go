package openaiwhisper

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/subfine/subfine/asr"
	"github.com/subfine/subfine/utils"
)

// used for the model name in run records
const apiPrefix = "openai_whisper-"

// a subtitle body larger than this is not a transcription
const maxResponseSize = 1024 * 1024 * 10

const errorBodyExcerpt = 512

type OpenAIWhisperClient struct {
	baseURL  string
	apiKey   string
	model    string
	language string

	http *http.Client
}

type OpenAIWhisperClientOptions struct {
	BaseURL  string `env:"BASE_URL" envDefault:"https://api.openai.com/v1"`
	APIKey   string `env:"API_KEY,required"`
	Model    string `env:"MODEL_NAME" envDefault:"whisper-1"`
	Language string `env:"LANGUAGE" envDefault:"zh"`
}

func NewOpenAIWhisperClient(options OpenAIWhisperClientOptions) *OpenAIWhisperClient {
	return &OpenAIWhisperClient{
		baseURL:  strings.TrimSuffix(options.BaseURL, "/"),
		apiKey:   options.APIKey,
		model:    options.Model,
		language: options.Language,
		http:     http.DefaultClient,
	}
}

// Run posts the audio to the transcriptions endpoint and returns the SRT
// body the engine produces.
func (w *OpenAIWhisperClient) Run(ctx context.Context, data []byte) (*asr.Output, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	part, err := form.CreateFormFile("file", "audio.mp3")
	if err != nil {
		return nil, fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("writing file part: %w", err)
	}

	fields := map[string]string{
		"model":           w.model,
		"language":        w.language,
		"response_format": "srt",
	}
	for field, value := range fields {
		if err := form.WriteField(field, value); err != nil {
			return nil, fmt.Errorf("writing %s field: %w", field, err)
		}
	}

	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := w.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := utils.ReadAllLimit(resp.Body, errorBodyExcerpt)
		return nil, fmt.Errorf("non-ok http response: [%d] %s: %s", resp.StatusCode, resp.Status, excerpt)
	}

	srtBody, err := utils.ReadAllLimit(resp.Body, maxResponseSize)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &asr.Output{
		Text:      string(srtBody),
		ModelName: apiPrefix + w.model,
	}, nil
}
