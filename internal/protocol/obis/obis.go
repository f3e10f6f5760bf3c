// Package obis parses and formats OBIS object identifiers.
//
// Grammar:
//
//	identifier := [ group "-" ] [ group ":" ] group "." group "." group [ "." group ]
//	group      := 1*3 DIGIT  ; 0-255
//
// A and B are optional, C, D and E are required, F defaults to 255.
package obis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultF is the value of group F when the text omits it.
const DefaultF uint8 = 255

var ErrInvalidIdentifier = errors.New("obis: invalid identifier")

// Group is an optional value group.
type Group struct {
	Value uint8
	Valid bool
}

func Some(v uint8) Group {
	return Group{Value: v, Valid: true}
}

// Identifier is a parsed OBIS code. Values are comparable with ==.
type Identifier struct {
	A Group
	B Group
	C uint8
	D uint8
	E uint8
	F uint8
}

// New returns C.D.E with F defaulted.
func New(c, d, e uint8) Identifier {
	return Identifier{C: c, D: d, E: e, F: DefaultF}
}

func (id Identifier) WithA(a uint8) Identifier {
	id.A = Some(a)
	return id
}

func (id Identifier) WithB(b uint8) Identifier {
	id.B = Some(b)
	return id
}

func (id Identifier) WithF(f uint8) Identifier {
	id.F = f
	return id
}

// Parse returns false unless text matches the grammar in full.
func Parse(text string) (Identifier, bool) {
	s := scanner{text: text}

	first, ok := s.group()
	if !ok {
		return Identifier{}, false
	}

	var id Identifier
	sep := s.peek()
	if sep == '-' {
		s.pos++
		id.A = Some(first)
		if first, ok = s.group(); !ok {
			return Identifier{}, false
		}
		sep = s.peek()
	}
	if sep == ':' {
		s.pos++
		id.B = Some(first)
		if first, ok = s.group(); !ok {
			return Identifier{}, false
		}
	}

	id.C = first
	if !s.expect('.') {
		return Identifier{}, false
	}
	if id.D, ok = s.group(); !ok {
		return Identifier{}, false
	}
	if !s.expect('.') {
		return Identifier{}, false
	}
	if id.E, ok = s.group(); !ok {
		return Identifier{}, false
	}

	id.F = DefaultF
	if s.expect('.') {
		if id.F, ok = s.group(); !ok {
			return Identifier{}, false
		}
	}
	if !s.done() {
		return Identifier{}, false
	}
	return id, true
}

// MustParse is Parse for package-level values; it panics on bad input.
func MustParse(text string) Identifier {
	id, ok := Parse(text)
	if !ok {
		panic(fmt.Sprintf("obis: MustParse(%q): invalid identifier", text))
	}
	return id
}

// String formats the identifier. Group F is always written.
func (id Identifier) String() string {
	var b strings.Builder
	b.Grow(20)
	if id.A.Valid {
		b.WriteString(strconv.Itoa(int(id.A.Value)))
		b.WriteByte('-')
	}
	if id.B.Valid {
		b.WriteString(strconv.Itoa(int(id.B.Value)))
		b.WriteByte(':')
	}
	b.WriteString(strconv.Itoa(int(id.C)))
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(int(id.D)))
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(int(id.E)))
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(int(id.F)))
	return b.String()
}

func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identifier) UnmarshalText(text []byte) error {
	parsed, ok := Parse(string(text))
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, text)
	}
	*id = parsed
	return nil
}

type scanner struct {
	text string
	pos  int
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.text) {
		return 0
	}
	return s.text[s.pos]
}

func (s *scanner) expect(c byte) bool {
	if s.peek() != c {
		return false
	}
	s.pos++
	return true
}

func (s *scanner) done() bool {
	return s.pos >= len(s.text)
}

// group reads 1-3 digits with a value of at most 255.
func (s *scanner) group() (uint8, bool) {
	start := s.pos
	v := 0
	for s.pos < len(s.text) && s.pos-start < 3 {
		c := s.text[s.pos]
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + int(c-'0')
		s.pos++
	}
	if s.pos == start || v > 255 {
		return 0, false
	}
	if s.pos < len(s.text) && isDigit(s.text[s.pos]) {
		return 0, false
	}
	return uint8(v), true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
