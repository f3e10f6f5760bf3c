// Package payload tokenizes the data lines of an assembled telegram.
//
// Each line is an OBIS identifier followed by one or more parenthesized values:
//
//	1-0:1.8.1(001581.123*kWh)
//	0-1:24.2.1(260114101500W)(00861.215*m3)
//
// Values stay text. Register meanings and unit conversion belong to callers.
package payload

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/p1ctl/internal/protocol/obis"
)

var (
	ErrMalformedTelegram = errors.New("payload: malformed telegram")
	ErrMalformedLine     = errors.New("payload: malformed line")
)

// Value is one parenthesized value. Text and Unit split Raw at the last '*'.
type Value struct {
	Raw  string `json:"raw"`
	Text string `json:"text"`
	Unit string `json:"unit,omitempty"`
}

// Identifier parses the value as an OBIS identifier, as used by log buffers.
func (v Value) Identifier() (obis.Identifier, bool) {
	return obis.Parse(v.Raw)
}

type Line struct {
	ID     obis.Identifier `json:"id"`
	Values []Value         `json:"values"`
}

// Telegram is the tokenized payload of one frame.
type Telegram struct {
	Header  string   `json:"header"`
	Lines   []Line   `json:"lines"`
	Unknown []string `json:"unknown,omitempty"`
}

// Lookup returns the first line carrying id.
func (t Telegram) Lookup(id obis.Identifier) (Line, bool) {
	for _, l := range t.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return Line{}, false
}

// Parse tokenizes a frame from '/' through '!'. Bytes after '!' are ignored.
// Lines whose identifier does not parse are kept raw in Unknown.
func Parse(frame []byte) (Telegram, error) {
	if len(frame) == 0 || frame[0] != '/' {
		return Telegram{}, fmt.Errorf("%w: missing start marker", ErrMalformedTelegram)
	}
	end := bytes.IndexByte(frame, '!')
	if end < 0 {
		return Telegram{}, fmt.Errorf("%w: missing terminator", ErrMalformedTelegram)
	}

	raw := strings.Split(string(frame[1:end]), "\n")
	tg := Telegram{
		Header: strings.TrimRight(raw[0], "\r"),
		Lines:  make([]Line, 0, len(raw)),
	}

	logical := make([]string, 0, len(raw))
	for _, l := range raw[1:] {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if l[0] == '(' && len(logical) > 0 {
			logical[len(logical)-1] += l
			continue
		}
		logical = append(logical, l)
	}

	for i, l := range logical {
		idText, values, err := splitLine(l)
		if err != nil {
			return Telegram{}, fmt.Errorf("line %d %q: %w", i+1, l, err)
		}
		id, ok := obis.Parse(idText)
		if !ok {
			tg.Unknown = append(tg.Unknown, l)
			continue
		}
		tg.Lines = append(tg.Lines, Line{ID: id, Values: values})
	}
	return tg, nil
}

func splitLine(l string) (string, []Value, error) {
	open := strings.IndexByte(l, '(')
	if open <= 0 {
		return "", nil, ErrMalformedLine
	}
	id := l[:open]
	rest := l[open:]
	values := make([]Value, 0, 1)
	for rest != "" {
		if rest[0] != '(' {
			return "", nil, ErrMalformedLine
		}
		closing := strings.IndexByte(rest, ')')
		if closing < 0 {
			return "", nil, ErrMalformedLine
		}
		values = append(values, newValue(rest[1:closing]))
		rest = rest[closing+1:]
	}
	return id, values, nil
}

func newValue(raw string) Value {
	v := Value{Raw: raw, Text: raw}
	if i := strings.LastIndexByte(raw, '*'); i >= 0 {
		v.Text = raw[:i]
		v.Unit = raw[i+1:]
	}
	return v
}
