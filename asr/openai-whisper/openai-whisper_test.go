package openaiwhisper_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openaiwhisper "github.com/subfine/subfine/asr/openai-whisper"
)

const responseSRT = "1\n00:00:00,000 --> 00:00:02,000\n你好\n"

func TestRunPostsMultipartAndReturnsSRT(t *testing.T) {
	t.Parallel()

	audio := []byte("fake mp3 bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %q, want /audio/transcriptions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
		}
		for field, want := range map[string]string{
			"model":           "whisper-1",
			"language":        "zh",
			"response_format": "srt",
		} {
			if got := r.FormValue(field); got != want {
				t.Errorf("field %s = %q, want %q", field, got, want)
			}
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file part: %v", err)
		} else {
			defer file.Close()
			content, _ := io.ReadAll(file)
			if string(content) != string(audio) {
				t.Errorf("file content = %q, want %q", content, audio)
			}
		}

		w.Write([]byte(responseSRT))
	}))
	defer server.Close()

	client := openaiwhisper.NewOpenAIWhisperClient(openaiwhisper.OpenAIWhisperClientOptions{
		BaseURL:  server.URL,
		APIKey:   "test-key",
		Model:    "whisper-1",
		Language: "zh",
	})

	output, err := client.Run(context.Background(), audio)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if output.Text != responseSRT {
		t.Errorf("Text = %q, want %q", output.Text, responseSRT)
	}
	if output.ModelName != "openai_whisper-whisper-1" {
		t.Errorf("ModelName = %q", output.ModelName)
	}
}

func TestRunNonOKStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := openaiwhisper.NewOpenAIWhisperClient(openaiwhisper.OpenAIWhisperClientOptions{
		BaseURL: server.URL,
		APIKey:  "bad-key",
		Model:   "whisper-1",
	})

	_, err := client.Run(context.Background(), []byte("audio"))
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error %q should mention the status code", err)
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error %q should carry a body excerpt", err)
	}
}
