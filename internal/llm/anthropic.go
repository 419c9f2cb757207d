// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel/llmcompiler/internal/httpclient"
)

const anthropicDefaultHost = "https://api.anthropic.com"

// AnthropicProvider talks to the Anthropic messages endpoint.
type AnthropicProvider struct {
	apiKey     string
	model      string
	host       string
	httpClient *httpclient.Client
}

// NewAnthropicProvider constructs a Provider backed by the Anthropic
// messages API. host defaults to the public API when empty.
func NewAnthropicProvider(apiKey, model, host string) *AnthropicProvider {
	if host == "" {
		host = anthropicDefaultHost
	}
	return &AnthropicProvider{
		apiKey: apiKey,
		model:  model,
		host:   host,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
			httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders),
		),
	}
}

func (p *AnthropicProvider) ModelName() string { return p.model }

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	StopSeqs    []string           `json:"stop_sequences,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *AnthropicProvider) maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return 1024
}

func (p *AnthropicProvider) newRequest(ctx context.Context, req Request, stream bool) (*http.Request, error) {
	body := anthropicRequest{
		Model:       p.model,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		StopSeqs:    req.Stop,
		Temperature: req.Temperature,
		MaxTokens:   p.maxTokens(req),
		Stream:      stream,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	return httpReq, nil
}

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (Response, error) {
	httpReq, err := p.newRequest(ctx, req, false)
	if err != nil {
		return Response{}, err
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("anthropic: HTTP %d: %s", resp.StatusCode, httpclient.ReadJSONError(resp))
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	var text strings.Builder
	for _, block := range parsed.Content {
		text.WriteString(block.Text)
	}
	return Response{
		Text:         text.String(),
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
	}, nil
}

// CompleteStream issues a server-sent-events streamed request, invoking
// onToken for each text delta, and returns the assembled Response.
func (p *AnthropicProvider) CompleteStream(ctx context.Context, req Request, onToken func(string)) (Response, error) {
	httpReq, err := p.newRequest(ctx, req, true)
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic stream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("anthropic: HTTP %d: %s", resp.StatusCode, httpclient.ReadJSONError(resp))
	}

	var out strings.Builder
	var usage struct {
		InputTokens  int
		OutputTokens int
	}
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var event struct {
			Type  string `json:"type"`
			Delta struct {
				Text string `json:"text"`
			} `json:"delta"`
			Usage struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text != "" {
				out.WriteString(event.Delta.Text)
				onToken(event.Delta.Text)
			}
		case "message_delta":
			usage.OutputTokens = event.Usage.OutputTokens
		}
	}
	if err := scanner.Err(); err != nil {
		return Response{}, fmt.Errorf("read stream: %w", err)
	}
	return Response{Text: out.String(), InputTokens: usage.InputTokens, OutputTokens: usage.OutputTokens}, nil
}
