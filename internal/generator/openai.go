package generator

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIGenerator produces replies with a chat completion call. On API
// failure it falls back to the template pool so the user still gets a
// turn.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	fallback    *TemplateGenerator
	logger      *zap.Logger
}

func NewOpenAIGenerator(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		fallback:    NewTemplateGenerator(0),
		logger:      logger,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, userMessage string) (string, error) {
	resp, err := g.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userMessage,
				},
			},
			MaxTokens:   g.maxTokens,
			Temperature: float32(g.temperature),
		},
	)
	if err != nil {
		g.logger.Error("Failed to get completion, using template reply", zap.Error(err))
		return g.fallback.Generate(ctx, userMessage)
	}

	return resp.Choices[0].Message.Content, nil
}
