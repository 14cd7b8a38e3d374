package ai

import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL     = "https://api.studio.nebius.com/v1/"
	DefaultVisionModel = "Qwen/Qwen2-VL-72B-Instruct"
	DefaultChatModel   = "google/gemma-3-27b-it"
)

type Config struct {
	APIKey      string
	BaseURL     string
	VisionModel string
	ChatModel   string
}

func NewConfig() *Config {
	return &Config{
		BaseURL:     DefaultBaseURL,
		VisionModel: DefaultVisionModel,
		ChatModel:   DefaultChatModel,
	}
}

// Completer is the slice of the OpenAI client the rest of the package
// needs; tests substitute a stub.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient builds an OpenAI-compatible client pointed at the
// configured base URL.
func NewClient(config *Config) (*openai.Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("AI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = DefaultBaseURL
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	log.Printf("AI client configured: base_url=%s vision_model=%s chat_model=%s",
		clientConfig.BaseURL, config.VisionModel, config.ChatModel)

	return openai.NewClientWithConfig(clientConfig), nil
}

// completionText runs a chat completion and returns the first choice's
// content.
func completionText(ctx context.Context, client Completer, req openai.ChatCompletionRequest) (string, error) {
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in model response")
	}
	return resp.Choices[0].Message.Content, nil
}
