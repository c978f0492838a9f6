package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cppla/branch/models"
)

const systemPrompt = "You are a warm, concise accountability coach for a small group of friends."

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
	log    *zap.SugaredLogger
}

// NewOpenAIClient builds a client. baseURL may be empty for the public API.
func NewOpenAIClient(apiKey, model, baseURL string, logger *zap.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    logger.Sugar(),
	}
}

func (o *OpenAIClient) complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
		req.Messages[1].Content += "\nRespond with a JSON object of the form {\"suggestions\": [\"...\"]}."
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	o.log.Debugw("chat completion", "model", o.model, "finish_reason", resp.Choices[0].FinishReason)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAIClient) list(ctx context.Context, prompt string) ([]string, error) {
	text, err := o.complete(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	return parseSuggestions(text)
}

func (o *OpenAIClient) Focus(ctx context.Context, history []models.CheckIn) ([]string, error) {
	return o.list(ctx, focusPrompt(history))
}

func (o *OpenAIClient) Goals(ctx context.Context, focus string) ([]string, error) {
	if strings.TrimSpace(focus) == "" {
		return nil, nil
	}
	return o.list(ctx, goalsPrompt(focus))
}

func (o *OpenAIClient) Replies(ctx context.Context, checkIn models.CheckIn, author, from models.User) ([]string, error) {
	return o.list(ctx, repliesPrompt(checkIn, author, from))
}

func (o *OpenAIClient) Encouragement(ctx context.Context, author models.User, checkIn models.CheckIn) (string, error) {
	return o.complete(ctx, encouragementPrompt(author, checkIn), false)
}

func (o *OpenAIClient) Recap(ctx context.Context, checkIn models.CheckIn) (string, error) {
	return o.complete(ctx, recapPrompt(checkIn), false)
}
