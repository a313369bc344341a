package domain

import (
	"context"
	"io"
)

// Embedder converts free text into a numeric vector via a hosted model.
// Deterministic for a given model version and input, and safe to retry.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) (Vector, error)
}

// Transcriber reads one page image with a hosted vision model and returns
// the page's full transcription plus a short bullet summary. Calls are
// independent per page; the implementation keeps no cross-page state.
type Transcriber interface {
	TranscribePage(ctx context.Context, img PageImage) (PageTranscript, error)
}

// AnswerStream is a finite, non-restartable sequence of answer text chunks.
// Recv returns io.EOF after the final chunk. Abandoning a stream only
// requires ceasing to call Recv and calling Close.
type AnswerStream interface {
	Recv() (string, error)
	Close() error
}

// AnswerGenerator produces a grounded answer to a question using only the
// supplied matches as evidence, streamed chunk by chunk.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, contexts []Match) (AnswerStream, error)
}

// TextAnswerStream adapts a fixed text to the AnswerStream interface. It is
// used for answers produced locally, such as the decline response when
// retrieval comes back empty.
type TextAnswerStream struct {
	text string
	done bool
}

// NewTextAnswerStream returns a stream that yields text once and then io.EOF.
func NewTextAnswerStream(text string) *TextAnswerStream {
	return &TextAnswerStream{text: text}
}

func (s *TextAnswerStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	s.done = true
	return s.text, nil
}

func (s *TextAnswerStream) Close() error { return nil }
