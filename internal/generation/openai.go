package generation

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/bull/docqa/internal/domain"
	"github.com/bull/docqa/internal/embedding"
	"github.com/bull/docqa/internal/retry"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gpt-4o-mini"

type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// OpenAI generates answers with the chat completions API.
type OpenAI struct {
	client *openai.Client
	opts   Options
}

func NewOpenAI(client *openai.Client, opts Options) *OpenAI {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	return &OpenAI{client: client, opts: opts}
}

func (g *OpenAI) params(prompt string) openai.ChatCompletionNewParams {
	p := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(g.opts.Model),
		Temperature: openai.Float(g.opts.Temperature),
	}
	if g.opts.MaxTokens > 0 {
		p.MaxTokens = openai.Int(int64(g.opts.MaxTokens))
	}
	return p
}

// Complete returns the full answer. Transient API failures are retried once.
func (g *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	var answer string
	err := retry.Once(ctx, func() error {
		resp, err := g.client.Chat.Completions.New(ctx, g.params(prompt))
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("completion returned no choices")
		}
		answer = resp.Choices[0].Message.Content
		return nil
	}, embedding.IsTransient)
	if err != nil {
		return "", domain.E(domain.KindGeneration, "generation.Complete", err)
	}
	return answer, nil
}

// Stream starts a streaming completion. Cancelling ctx aborts the HTTP
// response body and ends the stream. A transient failure before the first
// fragment is retried once; after that, errors end the stream.
func (g *OpenAI) Stream(ctx context.Context, prompt string) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.E(domain.KindGeneration, "generation.Stream", err)
	}
	params := g.params(prompt)
	open := func() *ssestream.Stream[openai.ChatCompletionChunk] {
		return g.client.Chat.Completions.NewStreaming(ctx, params)
	}
	return &openAIStream{ctx: ctx, open: open, stream: open()}, nil
}

type openAIStream struct {
	ctx      context.Context
	open     func() *ssestream.Stream[openai.ChatCompletionChunk]
	stream   *ssestream.Stream[openai.ChatCompletionChunk]
	started  bool
	err      error
	fragment string
}

func (s *openAIStream) Next() bool {
	if s.started {
		return s.advance()
	}
	s.started = true

	attempt := 0
	ok := false
	err := retry.Once(s.ctx, func() error {
		if attempt > 0 {
			s.stream.Close()
			s.stream = s.open()
		}
		attempt++
		ok = s.advance()
		if ok {
			return nil
		}
		return s.stream.Err()
	}, embedding.IsTransient)
	if err != nil {
		s.err = err
		return false
	}
	return ok
}

func (s *openAIStream) advance() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			s.fragment = delta
			return true
		}
	}
	return false
}

func (s *openAIStream) Fragment() string { return s.fragment }

func (s *openAIStream) Err() error {
	err := s.err
	if err == nil {
		err = s.stream.Err()
	}
	if err != nil {
		return domain.E(domain.KindGeneration, "generation.Stream", err)
	}
	return nil
}

func (s *openAIStream) Close() error { return s.stream.Close() }
