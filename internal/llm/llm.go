// Package llm converts prose into draft chapter blocks with a language model,
// as an alternative to the backend's own conversion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/csheth/chapterdesk/internal/blocks"
)

const (
	defaultOllamaHost  = "http://localhost:11434"
	defaultOllamaModel = "ministral-3:latest"
	defaultOpenAIBase  = "https://api.openai.com/v1"
	defaultOpenAIModel = "gpt-4o-mini"

	// Roughly 15k tokens of prose, well inside the context of the default
	// models once the prompt and the JSON answer are added.
	maxConvertChars = 60_000
)

const defaultLLMHTTPTimeout = 3 * time.Minute

const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

var (
	ErrTextTooLong  = errors.New("text too long to convert in one pass")
	ErrNoBlocks     = errors.New("model returned no usable blocks")
	ErrMissingToken = errors.New("openai backend requires an API key")
)

// Config describes how to build a converter.
type Config struct {
	Backend    string
	Model      string
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

// Client turns pasted prose into draft blocks. The chapter id only labels the
// request; the model never sees chapter contents.
type Client interface {
	ConvertText(ctx context.Context, chapterID, text string) ([]blocks.Block, error)
	Name() string
}

// New builds the client for cfg.Backend, filling in default hosts and models.
func New(cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendOllama:
		host := strings.TrimRight(cfg.Endpoint, "/")
		if host == "" {
			host = defaultOllamaHost
		}
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return &ollamaClient{host: host, model: model, client: pickHTTPClient(cfg.HTTPClient)}, nil
	case BackendOpenAI:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, ErrMissingToken
		}
		base := strings.TrimRight(cfg.Endpoint, "/")
		if base == "" {
			base = defaultOpenAIBase
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return &openAIClient{apiKey: cfg.APIKey, model: model, base: base, client: pickHTTPClient(cfg.HTTPClient)}, nil
	default:
		return nil, fmt.Errorf("llm: unknown backend %q", cfg.Backend)
	}
}

func pickHTTPClient(custom *http.Client) *http.Client {
	if custom != nil {
		return custom
	}
	// Local models often need more than a minute; callers cancel through ctx.
	return &http.Client{Timeout: defaultLLMHTTPTimeout}
}

type generateFunc func(ctx context.Context, prompt string) (string, error)

func convertWith(ctx context.Context, generate generateFunc, text string) ([]blocks.Block, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text empty; nothing to convert")
	}
	if len([]rune(text)) > maxConvertChars {
		return nil, fmt.Errorf("%w (%d characters, limit %d)", ErrTextTooLong, len([]rune(text)), maxConvertChars)
	}
	raw, err := generate(ctx, buildConvertPrompt(text))
	if err != nil {
		return nil, err
	}
	return parseBlocks(raw)
}
