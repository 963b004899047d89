package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var openaiTracer = otel.Tracer("assistant.internal.conversation.openai")

// OpenAIClient implements LLMClient against an OpenAI-compatible
// chat-completions endpoint.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIClient builds a client for the given API base URL (without the
// /v1/chat/completions suffix).
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *OpenAIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ LLMClient = (*OpenAIClient)(nil)

type openaiChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int32         `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int32 `json:"prompt_tokens"`
		CompletionTokens int32 `json:"completion_tokens"`
		TotalTokens      int32 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete posts the conditioning entries plus history as one messages array,
// retrying transient failures with jitter. Client errors (4xx) are returned
// immediately.
func (c *OpenAIClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if c.apiKey == "" {
		return LLMResponse{}, errors.New("conversation: openai api key missing")
	}

	ctx, span := openaiTracer.Start(ctx, "conversation.openai.complete")
	defer span.End()
	span.SetAttributes(attribute.String("assistant.model", req.Model))

	messages := make([]ChatMessage, 0, len(req.System)+len(req.Messages))
	for _, system := range req.System {
		if strings.TrimSpace(system) == "" {
			continue
		}
		messages = append(messages, ChatMessage{Role: ChatRoleSystem, Content: system})
	}
	messages = append(messages, req.Messages...)

	body, err := json.Marshal(openaiChatRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: failed to marshal completion request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			return LLMResponse{}, fmt.Errorf("conversation: failed to build completion request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
		} else {
			result, retryable, err := c.decode(resp)
			if err == nil {
				return result, nil
			}
			if !retryable {
				span.RecordError(err)
				return LLMResponse{}, err
			}
			lastErr = err
		}

		if attempt < 3 {
			select {
			case <-ctx.Done():
				return LLMResponse{}, ctx.Err()
			case <-time.After(time.Duration(200+rand.Intn(300)) * time.Millisecond):
			}
		}
	}

	span.RecordError(lastErr)
	return LLMResponse{}, fmt.Errorf("conversation: completion failed: %w", lastErr)
}

func (c *OpenAIClient) decode(resp *http.Response) (LLMResponse, bool, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return LLMResponse{}, true, fmt.Errorf("conversation: failed to read completion response: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return LLMResponse{}, true, fmt.Errorf("conversation: completion endpoint returned status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return LLMResponse{}, false, fmt.Errorf("conversation: completion endpoint returned status %d", resp.StatusCode)
	}

	var parsed openaiChatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return LLMResponse{}, false, fmt.Errorf("conversation: failed to decode completion response: %w", err)
	}
	if parsed.Error != nil {
		return LLMResponse{}, false, fmt.Errorf("conversation: completion endpoint error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		// No usable text; the orchestrator substitutes the fallback.
		return LLMResponse{Usage: TokenUsage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		}}, false, nil
	}

	choice := parsed.Choices[0]
	return LLMResponse{
		Text:       strings.TrimSpace(choice.Message.Content),
		StopReason: choice.FinishReason,
		Usage: TokenUsage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		},
	}, false, nil
}
