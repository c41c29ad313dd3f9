package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/google/go-jsonnet"
)

//go:embed jsonnet/*
var templates embed.FS

// RenderedPrompt is the message pair a template evaluates to.
type RenderedPrompt struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// RefineData feeds the subtitle refinement template. CompanyName and
// KnownNames are optional; their rules are left out of the prompt when
// unset.
type RefineData struct {
	CompanyName string   `json:"company_name"`
	KnownNames  []string `json:"known_names"`
	SRT         string   `json:"srt"`
}

type PromptProvider struct {
	mu sync.Mutex
	vm *jsonnet.VM
}

func NewPromptProvider() (*PromptProvider, error) {
	p := &PromptProvider{
		vm: jsonnet.MakeVM(),
	}

	imports := make(map[string]jsonnet.Contents)
	fs.WalkDir(templates, ".", func(path string, d fs.DirEntry, err error) error {
		if d != nil && !d.IsDir() {
			content, _ := templates.ReadFile(path)
			imports[strings.TrimPrefix(path, "jsonnet/")] = jsonnet.MakeContentsRaw(content)
		}
		return nil
	})

	p.vm.Importer(&jsonnet.MemoryImporter{
		Data: imports,
	})

	_, _, err := p.vm.ImportData("anonymous", "index.jsonnet")
	if err != nil {
		return nil, fmt.Errorf("importing index: %w", err)
	}

	return p, nil
}

// ExecutePrompt evaluates the template registered under promptKey with data
// as its argument. The jsonnet VM is single threaded; calls serialize.
func (p *PromptProvider) ExecutePrompt(promptKey string, data any) (*RenderedPrompt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.vm.TLAVar("prompt_key", promptKey)

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling data: %w", err)
	}
	p.vm.TLACode("data", string(jsonData))

	defer p.vm.TLAReset()

	jsonOut, err := p.vm.EvaluateAnonymousSnippet("anonymous", "function(prompt_key, data) (import 'index.jsonnet')[prompt_key](data)")
	if err != nil {
		return nil, fmt.Errorf("evaluating jsonnet: %w", err)
	}

	rendered := &RenderedPrompt{}
	if err := json.Unmarshal([]byte(jsonOut), rendered); err != nil {
		return nil, fmt.Errorf("unmarshaling rendered prompt: %w", err)
	}

	return rendered, nil
}

// RefineSubtitles renders the subtitle refinement prompt.
func (p *PromptProvider) RefineSubtitles(data RefineData) (*RenderedPrompt, error) {
	return p.ExecutePrompt("refine_srt", data)
}
