package llm

// Gemini uses Google's OpenAI-compatible endpoint for the
// Generative Language API.
type Gemini struct {
	*OpenAICompatible
}

func NewGemini(apiKey, model string) *Gemini {
	return &Gemini{
		OpenAICompatible: NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    "https://generativelanguage.googleapis.com",
			ChatPath:   "/v1beta/openai/chat/completions",
			APIKey:     apiKey,
			Model:      model,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
		}),
	}
}
