package telegram

import (
	"bufio"
	"errors"
	"io"
)

// DefaultBufferSize is the buffer used when NewReaderSource gets size <= 0.
const DefaultBufferSize = 1024

// Source is a peekable byte supply.
//
// Peek returns the currently buffered bytes without consuming them, refilling from
// the underlying medium when the buffer is empty. A zero-length slice with a nil
// error means end of input. Consume marks n bytes of the last peeked slice as read.
type Source interface {
	Peek() ([]byte, error)
	Consume(n int)
}

// ReaderSource adapts an io.Reader to Source on top of bufio.Reader. A Read that
// returns data together with an error yields the data first; the error surfaces
// on the first Peek after that data is consumed.
type ReaderSource struct {
	br *bufio.Reader
}

func NewReaderSource(r io.Reader, size int) *ReaderSource {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &ReaderSource{br: bufio.NewReaderSize(r, size)}
}

func (s *ReaderSource) Peek() ([]byte, error) {
	if n := s.br.Buffered(); n > 0 {
		return s.br.Peek(n)
	}
	// Peek(1) blocks for one Read and gives up with io.ErrNoProgress after
	// repeated empty reads.
	if _, err := s.br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return s.br.Peek(s.br.Buffered())
}

func (s *ReaderSource) Consume(n int) {
	n = min(max(n, 0), s.br.Buffered())
	_, _ = s.br.Discard(n)
}
