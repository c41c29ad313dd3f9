package openaichat

import (
	"context"
	"fmt"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/subfine/subfine/prompts"
	"github.com/subfine/subfine/refine"
	"github.com/subfine/subfine/srt"
	"go.uber.org/zap"
)

// used for the model name in run records
const apiPrefix = "openai_chat-"

type OpenAIChatRefiner struct {
	log *zap.Logger

	client oai.Client
	model  string

	maxAttempts int
	companyName string
	knownNames  []string

	prompts *prompts.PromptProvider
}

type OpenAIChatRefinerOptions struct {
	BaseURL     string `env:"BASE_URL"`
	APIKey      string `env:"API_KEY,required"`
	Model       string `env:"MODEL_NAME" envDefault:"gpt-4o"`
	MaxAttempts int    `env:"MAX_ATTEMPTS" envDefault:"3"`

	CompanyName string   `env:"COMPANY_NAME"`
	KnownNames  []string `env:"KNOWN_NAMES"`
}

func NewOpenAIChatRefiner(options OpenAIChatRefinerOptions, parentLogger *zap.Logger, promptProvider *prompts.PromptProvider) *OpenAIChatRefiner {
	requestOptions := []option.RequestOption{
		option.WithAPIKey(options.APIKey),
	}
	if options.BaseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(options.BaseURL))
	}

	maxAttempts := options.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &OpenAIChatRefiner{
		log:         parentLogger.Named("openai_chat_refiner"),
		client:      oai.NewClient(requestOptions...),
		model:       options.Model,
		maxAttempts: maxAttempts,
		companyName: options.CompanyName,
		knownNames:  options.KnownNames,
		prompts:     promptProvider,
	}
}

// Refine asks the model to polish the subtitles and checks the answer still
// lines up with the input cues. Failed attempts are retried up to the
// configured limit; the last error comes back when every attempt failed.
func (r *OpenAIChatRefiner) Refine(ctx context.Context, srtText string) (*refine.Output, error) {
	inputCues, err := srt.Parse(srtText)
	if err != nil {
		return nil, fmt.Errorf("parsing input subtitles: %w", err)
	}
	if len(inputCues) == 0 {
		return nil, fmt.Errorf("no cues to refine")
	}

	rendered, err := r.prompts.RefineSubtitles(prompts.RefineData{
		CompanyName: r.companyName,
		KnownNames:  r.knownNames,
		SRT:         srtText,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		content, err := r.complete(ctx, rendered)
		if err != nil {
			lastErr = err
		} else {
			cues, err := validateRefined(content, inputCues)
			if err == nil {
				return &refine.Output{
					Text:      srt.Render(cues),
					ModelName: apiPrefix + r.model,
				}, nil
			}
			lastErr = err
		}

		r.log.Warn("refinement attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)

		if ctx.Err() != nil {
			return nil, fmt.Errorf("refining subtitles: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("refining subtitles after %d attempts: %w", r.maxAttempts, lastErr)
}

func (r *OpenAIChatRefiner) complete(ctx context.Context, prompt *prompts.RenderedPrompt) (string, error) {
	resp, err := r.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(r.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(prompt.System),
			oai.UserMessage(prompt.User),
		},
		Temperature: param.NewOpt(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}

	return resp.Choices[0].Message.Content, nil
}

// validateRefined checks the model obeyed the prompt: the reply must parse
// as SRT and every cue must keep a timing that exists in the input, so
// merged timelines get rejected. Dropped cues are fine, the prompt tells
// the model to leave out ending music.
func validateRefined(content string, input []srt.Cue) ([]srt.Cue, error) {
	cues, err := srt.Parse(stripMarkdown(content))
	if err != nil {
		return nil, fmt.Errorf("response is not valid srt: %w", err)
	}
	if len(cues) == 0 {
		return nil, fmt.Errorf("response contains no cues")
	}
	if len(cues) > len(input) {
		return nil, fmt.Errorf("response has %d cues, input had %d", len(cues), len(input))
	}

	timings := make(map[[2]time.Duration]struct{}, len(input))
	for _, cue := range input {
		timings[[2]time.Duration{cue.Start, cue.End}] = struct{}{}
	}
	for _, cue := range cues {
		if _, ok := timings[[2]time.Duration{cue.Start, cue.End}]; !ok {
			return nil, fmt.Errorf("cue %d timing %v --> %v not present in input", cue.Index, cue.Start, cue.End)
		}
	}

	return cues, nil
}

func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```srt"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	}
	s = strings.TrimSpace(s)
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
