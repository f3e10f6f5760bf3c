package obis

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestStringAllGroupShapes(t *testing.T) {
	cases := []struct {
		id   Identifier
		want string
	}{
		{id: New(96, 7, 21).WithA(1).WithB(0), want: "1-0:96.7.21.255"},
		{id: New(96, 7, 21).WithB(0), want: "0:96.7.21.255"},
		{id: New(96, 7, 21).WithA(1), want: "1-96.7.21.255"},
		{id: New(96, 7, 21), want: "96.7.21.255"},
		{id: New(1, 8, 1).WithA(1).WithB(0).WithF(0), want: "1-0:1.8.1.0"},
	}
	for _, tc := range cases {
		if got := tc.id.String(); got != tc.want {
			t.Fatalf("format mismatch: got=%q want=%q", got, tc.want)
		}
	}
}

func TestParseAllGroupShapes(t *testing.T) {
	cases := []struct {
		in   string
		want Identifier
	}{
		{in: "1-0:96.7.21.255", want: Identifier{A: Some(1), B: Some(0), C: 96, D: 7, E: 21, F: 255}},
		{in: "0:96.7.21.255", want: Identifier{B: Some(0), C: 96, D: 7, E: 21, F: 255}},
		{in: "1-96.7.21.255", want: Identifier{A: Some(1), C: 96, D: 7, E: 21, F: 255}},
		{in: "96.7.21.255", want: Identifier{C: 96, D: 7, E: 21, F: 255}},
		{in: "1-0:96.7.21", want: Identifier{A: Some(1), B: Some(0), C: 96, D: 7, E: 21, F: 255}},
		{in: "0-1:24.2.1", want: Identifier{A: Some(0), B: Some(1), C: 24, D: 2, E: 1, F: 255}},
		{in: "255-255:255.255.255.0", want: Identifier{A: Some(255), B: Some(255), C: 255, D: 255, E: 255, F: 0}},
		{in: "001.002.003", want: Identifier{C: 1, D: 2, E: 3, F: 255}},
	}
	for _, tc := range cases {
		got, ok := Parse(tc.in)
		if !ok {
			t.Fatalf("Parse(%q) failed", tc.in)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q): got=%+v want=%+v", tc.in, got, tc.want)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"1-2-96.7.21.255",
		"256.7.21",
		"1-0:96.7.256",
		"1-0:96.7.21.300",
		"96.7",
		"96.7.21.",
		"96.7.21.255.1",
		"96..21",
		"1:0-96.7.21",
		"0001.2.3",
		"a.b.c",
		" 96.7.21",
		"96.7.21 ",
		"1-0:96.7.21(",
		"-0:96.7.21",
	} {
		if id, ok := Parse(in); ok {
			t.Fatalf("Parse(%q) accepted: %+v", in, id)
		}
	}
}

func TestParseDefaultF(t *testing.T) {
	short, ok := Parse("1-0:96.7.21")
	if !ok {
		t.Fatalf("parse short form failed")
	}
	long, ok := Parse("1-0:96.7.21.255")
	if !ok {
		t.Fatalf("parse long form failed")
	}
	if short != long {
		t.Fatalf("default F mismatch: short=%+v long=%+v", short, long)
	}
	if short.String() != "1-0:96.7.21.255" {
		t.Fatalf("short form did not format with F: %q", short.String())
	}
}

func TestRoundTripAcrossValueRange(t *testing.T) {
	values := []uint8{0, 1, 9, 10, 99, 100, 254, 255}
	for _, a := range []Group{{}, Some(0), Some(255)} {
		for _, b := range []Group{{}, Some(1), Some(128)} {
			for _, v := range values {
				in := Identifier{A: a, B: b, C: v, D: 255 - v, E: v / 2, F: v}
				out, ok := Parse(in.String())
				if !ok {
					t.Fatalf("Parse(%q) failed", in.String())
				}
				if out != in {
					t.Fatalf("round trip mismatch: in=%+v out=%+v text=%q", in, out, in.String())
				}
			}
		}
	}
}

func TestTextMarshalling(t *testing.T) {
	type reading struct {
		ID Identifier `json:"id"`
	}
	raw, err := json.Marshal(reading{ID: MustParse("1-0:1.8.1")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"id":"1-0:1.8.1.255"}` {
		t.Fatalf("unexpected json: %s", raw)
	}

	var out reading
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != MustParse("1-0:1.8.1.255") {
		t.Fatalf("unexpected id: %+v", out.ID)
	}

	err = json.Unmarshal([]byte(`{"id":"1-2-3.4.5"}`), &out)
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestMustParsePanicsOnInvalid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustParse("not-an-id")
}
