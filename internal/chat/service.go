// Package chat answers questions grounded in the indexed documents:
// embed the question, retrieve the closest page records, and stream a
// generated answer that cites them.
package chat

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"docchat/internal/domain"
	"docchat/internal/retry"
	"docchat/internal/vectorstore"
)

// DeclineAnswer is returned without consulting the model when retrieval
// finds nothing to ground an answer in.
const DeclineAnswer = "I couldn't find anything about that in the indexed documents, so I don't know the answer to this question."

var ErrEmptyQuestion = errors.New("chat: empty question")

type Service struct {
	embedder  domain.Embedder
	store     vectorstore.Storage
	generator domain.AnswerGenerator
	retrier   *retry.Retrier
	topK      int
	doc       string
	log       zerolog.Logger
}

type Config struct {
	TopK   int
	Doc    string // restrict retrieval to one document when non-empty
	Logger zerolog.Logger
}

func NewService(e domain.Embedder, s vectorstore.Storage, g domain.AnswerGenerator, retrier *retry.Retrier, cfg Config) *Service {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	if retrier == nil {
		retrier = &retry.Retrier{}
	}
	return &Service{
		embedder:  e,
		store:     s,
		generator: g,
		retrier:   retrier,
		topK:      topK,
		doc:       cfg.Doc,
		log:       cfg.Logger,
	}
}

// Answer carries the retrieved sources and the streamed answer text.
// Chunks is closed when the stream ends; Err reports what ended it and is
// valid only after Chunks is closed.
type Answer struct {
	Matches []domain.Match
	chunks  chan string
	err     error
}

func (a *Answer) Chunks() <-chan string { return a.chunks }

func (a *Answer) Err() error { return a.err }

// Options override the configured retrieval bounds for a single call. Zero
// values fall back to the service configuration.
type Options struct {
	TopK int
	Doc  string
}

// Retrieve embeds the question and returns the closest page records in
// deterministic order. Both hosted calls are idempotent and retried.
func (s *Service) Retrieve(ctx context.Context, question string) ([]domain.Match, error) {
	return s.RetrieveWithOptions(ctx, question, Options{})
}

// RetrieveWithOptions is Retrieve with per-call top-K and document overrides.
func (s *Service) RetrieveWithOptions(ctx context.Context, question string, opts Options) ([]domain.Match, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = s.topK
	}
	doc := opts.Doc
	if doc == "" {
		doc = s.doc
	}
	var vec domain.Vector
	err := s.retrier.Do(ctx, func() error {
		var err error
		vec, err = s.embedder.Embed(ctx, question)
		return err
	})
	if err != nil {
		return nil, err
	}
	var matches []domain.Match
	err = s.retrier.Do(ctx, func() error {
		var err error
		matches, err = s.store.Search(ctx, vec, vectorstore.SearchOptions{TopK: topK, Doc: doc})
		return err
	})
	if err != nil {
		return nil, err
	}
	domain.SortMatches(matches)
	return matches, nil
}

// Ask retrieves context for the question and starts streaming an answer.
// Generation is not retried: a broken stream surfaces through Answer.Err and
// the caller decides whether to ask again. Cancel ctx to abandon the stream.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	return s.AskWithOptions(ctx, question, Options{})
}

// AskWithOptions is Ask with per-call top-K and document overrides.
func (s *Service) AskWithOptions(ctx context.Context, question string, opts Options) (*Answer, error) {
	matches, err := s.RetrieveWithOptions(ctx, question, opts)
	if err != nil {
		return nil, err
	}

	var stream domain.AnswerStream
	if len(matches) == 0 {
		s.log.Info().Str("question", question).Msg("no matches, declining locally")
		stream = domain.NewTextAnswerStream(DeclineAnswer)
	} else {
		stream, err = s.generator.GenerateAnswer(ctx, question, matches)
		if err != nil {
			return nil, err
		}
	}
	return StreamAnswer(ctx, matches, stream), nil
}

// StreamAnswer adapts an answer stream to the channel consumption used by
// the frontends and starts the pump goroutine feeding it.
func StreamAnswer(ctx context.Context, matches []domain.Match, stream domain.AnswerStream) *Answer {
	answer := &Answer{Matches: matches, chunks: make(chan string)}
	go answer.pump(ctx, stream)
	return answer
}

func (a *Answer) pump(ctx context.Context, stream domain.AnswerStream) {
	defer close(a.chunks)
	defer stream.Close()
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			a.err = err
			return
		}
		select {
		case a.chunks <- chunk:
		case <-ctx.Done():
			a.err = ctx.Err()
			return
		}
	}
}
