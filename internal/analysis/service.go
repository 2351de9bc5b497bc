package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrNoImage           = errors.New("no image supplied")
	ErrAnalysisFailed    = errors.New("analysis failed")
)

// Service turns a photo into a macro estimate with a single model call.
type Service struct {
	model  Model
	prompt string
}

func NewService(model Model, params PromptParams) *Service {
	return &Service{model: model, prompt: BuildPrompt(params)}
}

// NewModel builds the model for the configured provider.
func NewModel(provider, model, geminiKey, openaiKey, openaiBaseURL string) (Model, error) {
	switch provider {
	case "", ProviderGemini:
		return NewGeminiModel(geminiKey, model), nil
	case ProviderOpenAI:
		return NewOpenAIModel(openaiKey, model, openaiBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported analysis provider: %s", provider)
	}
}

// Configured reports whether the model credential is present.
func (s *Service) Configured() bool {
	return s.model.Configured()
}

// Estimate decodes payload, asks the model once and parses its answer.
// Errors are one of ErrMissingCredential, ErrNoImage or ErrAnalysisFailed.
func (s *Service) Estimate(ctx context.Context, payload string) (MacroEstimate, error) {
	if !s.Configured() {
		return MacroEstimate{}, ErrMissingCredential
	}

	image, err := DecodePayload(payload)
	if err != nil {
		slog.Debug("Analysis: rejected image payload", "error", err)
		return MacroEstimate{}, ErrNoImage
	}

	text, err := s.model.Generate(ctx, s.prompt, image)
	if err != nil {
		slog.Error("Analysis: model call failed",
			"model", s.model.Name(), "mime", image.MIMEType, "error", err)
		return MacroEstimate{}, ErrAnalysisFailed
	}

	estimate, err := ParseEstimate(text)
	if err != nil {
		slog.Error("Analysis: unparseable model response",
			"model", s.model.Name(), "response", text, "error", err)
		return MacroEstimate{}, ErrAnalysisFailed
	}

	slog.Info("Analysis: estimate ready", "model", s.model.Name(), "name", estimate.Name, "calories", estimate.Calories)
	return estimate, nil
}
