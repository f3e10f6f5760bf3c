// Package crc verifies the checksum field of assembled P1 telegrams.
//
// The checksum is CRC-16/ARC (poly 0x8005 reflected, init 0, no final xor) over
// every byte from '/' through '!', written as 4 ASCII hex digits after '!'.
package crc

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/danmuck/p1ctl/internal/protocol/telegram"
	"github.com/sigurn/crc16"
)

var ErrInvalidChecksum = errors.New("crc: invalid checksum")

var table = crc16.MakeTable(crc16.CRC16_ARC)

// Status tags a Result.
type Status uint8

const (
	StatusVerified Status = iota + 1
	StatusIncomplete
	StatusInvalidChecksum
)

func (s Status) String() string {
	switch s {
	case StatusVerified:
		return "verified"
	case StatusIncomplete:
		return "incomplete"
	case StatusInvalidChecksum:
		return "invalid_checksum"
	default:
		return "unknown"
	}
}

// Result is a verified outcome. Expected and Actual are only set for
// StatusInvalidChecksum; HasExpected is false when the trailer is not hex text.
type Result struct {
	Status      Status
	Data        []byte
	Expected    uint16
	HasExpected bool
	Actual      uint16
}

// Err returns nil unless the checksum did not match.
func (r Result) Err() error {
	if r.Status != StatusInvalidChecksum {
		return nil
	}
	if !r.HasExpected {
		return fmt.Errorf("%w: trailer %q is not hex, computed %04X", ErrInvalidChecksum, trailer(r.Data), r.Actual)
	}
	return fmt.Errorf("%w: expected %04X, computed %04X", ErrInvalidChecksum, r.Expected, r.Actual)
}

func Sum(data []byte) uint16 {
	return crc16.Checksum(data, table)
}

// Verify checks a complete frame. Incomplete outcomes pass through unchanged.
func Verify(o telegram.Outcome) Result {
	if o.Kind != telegram.KindFrame || len(o.Data) < telegram.ChecksumLen {
		return Result{Status: StatusIncomplete, Data: o.Data}
	}

	body := o.Data[:len(o.Data)-telegram.ChecksumLen]
	actual := Sum(body)
	expected, ok := ParseTrailer(trailer(o.Data))
	if ok && expected == actual {
		return Result{Status: StatusVerified, Data: o.Data}
	}
	return Result{
		Status:      StatusInvalidChecksum,
		Data:        o.Data,
		Expected:    expected,
		HasExpected: ok,
		Actual:      actual,
	}
}

// ParseTrailer decodes exactly 4 ASCII hex digits, either case.
func ParseTrailer(b []byte) (uint16, bool) {
	if len(b) != telegram.ChecksumLen {
		return 0, false
	}
	v, err := strconv.ParseUint(string(b), 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

// AppendTrailer appends the checksum digits for body, which must end with '!'.
func AppendTrailer(body []byte) []byte {
	return fmt.Appendf(body, "%04X", Sum(body))
}

func trailer(data []byte) []byte {
	if len(data) < telegram.ChecksumLen {
		return data
	}
	return data[len(data)-telegram.ChecksumLen:]
}
