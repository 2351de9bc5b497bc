package analysis

import "context"

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// Model sends one prompt with one image to a hosted multimodal model and
// returns its raw text answer.
type Model interface {
	Name() string
	// Configured reports whether the credential for the model is present.
	Configured() bool
	Generate(ctx context.Context, prompt string, image Image) (string, error)
}
