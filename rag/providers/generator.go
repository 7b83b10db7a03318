package providers

import (
	"context"
	"fmt"

	"lodestone/rag"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// GeneratorConfig holds the sampling knobs for the generation boundary.
type GeneratorConfig struct {
	// MaxOutputTokens caps the completion length; 0 leaves the provider default.
	MaxOutputTokens int
	// Temperature is the sampling temperature; nil leaves the provider default.
	Temperature *float32
}

// chatGenerator adapts an eino chat model to the rag.Generator boundary: one
// prompt in, one completion out, failures wrapped as generation-service
// errors.
type chatGenerator struct {
	model  model.BaseChatModel
	config GeneratorConfig
}

// NewGenerator wraps a chat model as a rag.Generator.
func NewGenerator(chatModel model.BaseChatModel, cfg GeneratorConfig) (rag.Generator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	return &chatGenerator{model: chatModel, config: cfg}, nil
}

// Generate sends the prompt as a single user message and returns the model's
// completion text.
func (g *chatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var opts []model.Option
	if g.config.MaxOutputTokens > 0 {
		opts = append(opts, model.WithMaxTokens(g.config.MaxOutputTokens))
	}
	if g.config.Temperature != nil {
		opts = append(opts, model.WithTemperature(*g.config.Temperature))
	}

	msg, err := g.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)}, opts...)
	if err != nil {
		return "", &rag.GenerationServiceError{Err: err}
	}
	if msg == nil || msg.Content == "" {
		return "", &rag.GenerationServiceError{Err: fmt.Errorf("empty completion returned")}
	}

	return msg.Content, nil
}
