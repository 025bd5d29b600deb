// Package llm provides a client for OpenAI-compatible chat completion APIs.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"smart-journal-go/internal/config"
	"strings"
	"time"
)

// ChunkWriter 接收流式生成的文本分块。
type ChunkWriter interface {
	WriteChunk(chunk string) error
}

// ChunkWriterFunc 把普通函数适配为 ChunkWriter。
type ChunkWriterFunc func(chunk string) error

func (f ChunkWriterFunc) WriteChunk(chunk string) error { return f(chunk) }

// Client defines the interface for an LLM client.
type Client interface {
	// Complete 发送一次非流式请求并返回完整回复。
	Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
	// StreamChatMessages 以 role-based 消息与可选生成参数调用聊天接口，并将流式分块写入 writer。
	StreamChatMessages(ctx context.Context, messages []Message, gen *GenerationParams, writer ChunkWriter) error
}

type openAIClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client from the config.
func NewClient(cfg config.LLMConfig) Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &openAIClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Stream         bool            `json:"stream"`
	Temperature    *float64        `json:"temperature,omitempty"`
	TopP           *float64        `json:"top_p,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerationParams 控制生成行为，nil 字段使用配置中的默认值。
type GenerationParams struct {
	Model       string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	JSONMode    bool
}

// Float64 返回 v 的指针，便于构造 GenerationParams。
func Float64(v float64) *float64 { return &v }

// Int 返回 v 的指针。
func Int(v int) *int { return &v }

func (c *openAIClient) buildRequest(messages []Message, gen *GenerationParams, stream bool) chatRequest {
	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   stream,
	}
	// 从全局配置注入（若非零值）
	if c.cfg.Generation.Temperature != 0 {
		reqBody.Temperature = Float64(c.cfg.Generation.Temperature)
	}
	if c.cfg.Generation.TopP != 0 {
		reqBody.TopP = Float64(c.cfg.Generation.TopP)
	}
	if c.cfg.Generation.MaxTokens != 0 {
		reqBody.MaxTokens = Int(c.cfg.Generation.MaxTokens)
	}
	// 传参优先生效
	if gen != nil {
		if gen.Model != "" {
			reqBody.Model = gen.Model
		}
		if gen.Temperature != nil {
			reqBody.Temperature = gen.Temperature
		}
		if gen.TopP != nil {
			reqBody.TopP = gen.TopP
		}
		if gen.MaxTokens != nil {
			reqBody.MaxTokens = gen.MaxTokens
		}
		if gen.JSONMode {
			reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
		}
	}
	return reqBody
}

func (c *openAIClient) post(ctx context.Context, reqBody chatRequest) (*http.Response, error) {
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if reqBody.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat api: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}
	return resp, nil
}

func (c *openAIClient) Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	resp, err := c.post(ctx, c.buildRequest(messages, gen, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat api returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *openAIClient) StreamChatMessages(ctx context.Context, messages []Message, gen *GenerationParams, writer ChunkWriter) error {
	resp, err := c.post(ctx, c.buildRequest(messages, gen, true))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read from stream: %w", err)
		}

		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk chatStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if err := writer.WriteChunk(chunk.Choices[0].Delta.Content); err != nil {
			return fmt.Errorf("failed to write chunk: %w", err)
		}
	}
	return nil
}
