package telegram

import (
	"bytes"
	"iter"
)

const (
	StartMarker byte = '/'
	Terminator  byte = '!'
	ChecksumLen      = 4

	// Terminator plus checksum digits.
	trailerLen = ChecksumLen + 1
)

// Kind tags an Outcome.
type Kind uint8

const (
	KindFrame Kind = iota + 1
	KindIncomplete
)

func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "frame"
	case KindIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// Outcome is one assembled telegram or truncated fragment.
type Outcome struct {
	Kind Kind
	Data []byte
}

// Complete reports whether Data ends with the terminator and checksum field.
func (o Outcome) Complete() bool {
	return o.Kind == KindFrame
}

type state uint8

const (
	stateSync state = iota
	stateBody
	stateTrailer
)

// Reader assembles telegrams from a Source.
//
// The state machine runs sync -> body -> trailer. All progress lives on the Reader,
// so the source may deliver one byte at a time. A Reader must not be shared between
// goroutines.
type Reader struct {
	src         Source
	state       state
	buf         []byte
	trailerLeft int
	dropped     uint64
	err         error
	done        bool
}

func NewReader(src Source) *Reader {
	return &Reader{src: src}
}

// Next returns the next outcome. It returns false at end of input or after a
// source failure; Err distinguishes the two.
func (r *Reader) Next() (Outcome, bool) {
	if r.done {
		return Outcome{}, false
	}
	for {
		avail, err := r.src.Peek()
		if err != nil {
			r.err = err
			r.done = true
			r.reset()
			return Outcome{}, false
		}

		switch r.state {
		case stateSync:
			if len(avail) == 0 {
				r.done = true
				return Outcome{}, false
			}
			i := bytes.IndexByte(avail, StartMarker)
			if i < 0 {
				r.dropped += uint64(len(avail))
				r.src.Consume(len(avail))
				continue
			}
			r.dropped += uint64(i)
			r.src.Consume(i + 1)
			r.buf = append(make([]byte, 0, 1024), StartMarker)
			r.state = stateBody

		case stateBody:
			if len(avail) == 0 {
				return r.emit(KindIncomplete), true
			}
			i := indexBoundary(avail)
			if i < 0 {
				r.buf = append(r.buf, avail...)
				r.src.Consume(len(avail))
				continue
			}
			r.buf = append(r.buf, avail[:i]...)
			r.src.Consume(i)
			if avail[i] == StartMarker {
				return r.emit(KindIncomplete), true
			}
			r.state = stateTrailer
			r.trailerLeft = trailerLen

		case stateTrailer:
			if len(avail) == 0 {
				return r.finish(), true
			}
			n := min(len(avail), r.trailerLeft)
			interrupted := false
			if j := bytes.IndexByte(avail[:n], StartMarker); j >= 0 {
				n = j
				interrupted = true
			}
			r.buf = append(r.buf, avail[:n]...)
			r.src.Consume(n)
			r.trailerLeft -= n
			if interrupted || r.trailerLeft == 0 {
				return r.finish(), true
			}
		}
	}
}

// Err returns the source failure that ended the sequence, or nil at clean end of input.
func (r *Reader) Err() error {
	return r.err
}

// Dropped returns the number of bytes discarded while searching for a start marker.
func (r *Reader) Dropped() uint64 {
	return r.dropped
}

// Outcomes ranges over Next until the sequence ends. Check Err afterwards.
func (r *Reader) Outcomes() iter.Seq[Outcome] {
	return func(yield func(Outcome) bool) {
		for {
			o, ok := r.Next()
			if !ok || !yield(o) {
				return
			}
		}
	}
}

func (r *Reader) finish() Outcome {
	if len(r.buf) >= trailerLen && r.buf[len(r.buf)-trailerLen] == Terminator {
		return r.emit(KindFrame)
	}
	return r.emit(KindIncomplete)
}

func (r *Reader) emit(kind Kind) Outcome {
	o := Outcome{Kind: kind, Data: r.buf}
	r.reset()
	return o
}

func (r *Reader) reset() {
	r.buf = nil
	r.state = stateSync
	r.trailerLeft = 0
}

func indexBoundary(b []byte) int {
	for i, c := range b {
		if c == StartMarker || c == Terminator {
			return i
		}
	}
	return -1
}
