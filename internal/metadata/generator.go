// Package metadata asks a chat model for a short summary and keyword list
// describing an ingested document.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/bull/docqa/internal/embedding"
	"github.com/bull/docqa/internal/logger"
	"github.com/bull/docqa/internal/retry"
)

// DefaultMaxTokens is the maximum content length before truncation (in tokens).
const DefaultMaxTokens = 16000

// maxKeywords caps the keyword list kept per document.
const maxKeywords = 12

// Summary is the LLM-generated description of a document.
type Summary struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// Generator produces document summaries with a chat model.
type Generator struct {
	client    *openai.Client
	model     string
	maxTokens int
	log       *logger.Logger
}

// NewGenerator creates a summary generator. An empty model falls back to
// gpt-4o-mini and maxTokens <= 0 to DefaultMaxTokens.
func NewGenerator(client *openai.Client, model string, maxTokens int, log *logger.Logger) *Generator {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{client: client, model: model, maxTokens: maxTokens, log: log}
}

// Summarize analyzes document content and produces a summary and keyword list.
func (g *Generator) Summarize(ctx context.Context, title, content string) (*Summary, error) {
	truncated := g.truncateContent(content)

	prompt := fmt.Sprintf(`Analyze this document and provide:
1. A concise summary (1-2 sentences) capturing the main topic and key points
2. A list of up to 10 keywords or named concepts a reader might search for

Document title: %s

Document content:
%s

Respond in JSON format:
{"summary": "Brief description of what this document covers", "keywords": ["keyword1", "keyword2"]}`, title, truncated)

	var raw string
	err := retry.Once(ctx, func() error {
		resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model: openai.ChatModel(g.model),
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &openai.ResponseFormatJSONObjectParam{
					Type: "json_object",
				},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("completion returned no choices")
		}
		raw = resp.Choices[0].Message.Content
		return nil
	}, embedding.IsTransient)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	return parseSummary(raw)
}

func parseSummary(raw string) (*Summary, error) {
	var s Summary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	s.Summary = strings.TrimSpace(s.Summary)

	seen := make(map[string]bool, len(s.Keywords))
	keywords := s.Keywords[:0]
	for _, k := range s.Keywords {
		k = strings.TrimSpace(k)
		key := strings.ToLower(k)
		if k == "" || seen[key] {
			continue
		}
		seen[key] = true
		keywords = append(keywords, k)
		if len(keywords) == maxKeywords {
			break
		}
	}
	s.Keywords = keywords
	return &s, nil
}

// truncateContent truncates content to fit within token limits.
// Uses rough estimate of 4 characters per token.
func (g *Generator) truncateContent(content string) string {
	maxChars := g.maxTokens * 4

	if len(content) <= maxChars {
		return content
	}

	g.log.Warn("truncating document for summary",
		"chars", len(content), "limit", maxChars, "est_tokens", g.maxTokens)

	return strings.ToValidUTF8(content[:maxChars], "")
}
