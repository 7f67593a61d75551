// Package llm wraps the chat completion API used for cloud OCR, entity
// recognition and text cleanup.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// ErrEmptyResponse is returned when the model answers with no choices
var ErrEmptyResponse = errors.New("model returned no choices")

// ErrNoAPIKey is returned by NewOpenAIClient when no key is configured
var ErrNoAPIKey = errors.New("no OpenAI API key configured")

// Request is a single system + user exchange
type Request struct {
	System      string
	User        string
	ImageURL    string // data: URL or https URL; optional
	JSON        bool
	MaxTokens   int
	Temperature float64
	Model       string // overrides the client default
}

// Completer answers one Request with the model's text
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAIClient implements Completer on the chat completions endpoint
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient builds a client for model. An empty apiKey falls back to
// OPENAI_API_KEY.
func NewOpenAIClient(apiKey, model string, opts ...option.RequestOption) (*OpenAIClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIClient{
		client: openai.NewClient(options...),
		model:  model,
	}, nil
}

// Model returns the default model name
func (c *OpenAIClient) Model() string { return c.model }

// Complete sends req and returns the content of the first choice
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	if req.ImageURL != "" {
		parts := []openai.ChatCompletionContentPartUnionParam{
			{
				OfText: &openai.ChatCompletionContentPartTextParam{
					Type: constant.Text("text"),
					Text: req.User,
				},
			},
			{
				OfImageURL: &openai.ChatCompletionContentPartImageParam{
					Type: constant.ImageURL("image_url"),
					ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
						URL:    req.ImageURL,
						Detail: "high",
					},
				},
			},
		}
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: parts,
				},
			},
		})
	} else {
		messages = append(messages, openai.UserMessage(req.User))
	}

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    c.model,
	}
	if req.Model != "" {
		params.Model = req.Model
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return completion.Choices[0].Message.Content, nil
}

// JSONObject returns the outermost {...} span of s, if any. Models asked for
// JSON sometimes wrap it in prose or code fences.
func JSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
