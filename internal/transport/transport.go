// Package transport opens the byte streams a P1 reader consumes.
//
// Ownership boundary:
// - serial ports (direct P1 cable)
// - TCP bridges (ser2net style)
// - capture files (replay)
//
// Openers only connect. Framing and retry belong to callers.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/tarm/serial"
)

const (
	KindSerial = "serial"
	KindTCP    = "tcp"
	KindFile   = "file"
)

var (
	ErrUnknownKind   = errors.New("transport: unknown kind")
	ErrMissingTarget = errors.New("transport: missing device or address")
	ErrInvalidSerial = errors.New("transport: invalid serial settings")
)

// Config selects and parameterizes one transport.
type Config struct {
	Kind        string
	Device      string
	Address     string
	Path        string
	Baud        int
	DataBits    int
	Parity      string
	StopBits    int
	DialTimeout time.Duration
}

// DefaultConfig is DSMR 4/5: 115200 baud, 8N1.
func DefaultConfig() Config {
	return Config{
		Kind:        KindSerial,
		Device:      "/dev/ttyUSB0",
		Baud:        115200,
		DataBits:    8,
		Parity:      "N",
		StopBits:    1,
		DialTimeout: 5 * time.Second,
	}
}

// Opener connects one byte stream per call.
type Opener interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

func New(cfg Config) (Opener, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case KindSerial:
		sc, err := serialConfig(cfg)
		if err != nil {
			return nil, err
		}
		return SerialOpener{Config: sc}, nil
	case KindTCP:
		if strings.TrimSpace(cfg.Address) == "" {
			return nil, fmt.Errorf("%w: tcp", ErrMissingTarget)
		}
		return TCPOpener{Address: cfg.Address, Timeout: cfg.DialTimeout}, nil
	case KindFile:
		if strings.TrimSpace(cfg.Path) == "" {
			return nil, fmt.Errorf("%w: file", ErrMissingTarget)
		}
		return FileOpener{Path: cfg.Path}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// SerialOpener opens a local serial device.
type SerialOpener struct {
	Config serial.Config
}

func (o SerialOpener) Open(context.Context) (io.ReadCloser, error) {
	cfg := o.Config
	port, err := serial.OpenPort(&cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial %s: %w", o.Config.Name, err)
	}
	return port, nil
}

func (o SerialOpener) String() string {
	return fmt.Sprintf("serial:%s@%d", o.Config.Name, o.Config.Baud)
}

// TCPOpener dials a network bridge exposing the meter port.
type TCPOpener struct {
	Address string
	Timeout time.Duration
}

func (o TCPOpener) Open(ctx context.Context) (io.ReadCloser, error) {
	d := net.Dialer{Timeout: o.Timeout}
	conn, err := d.DialContext(ctx, "tcp", o.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", o.Address, err)
	}
	return conn, nil
}

func (o TCPOpener) String() string {
	return "tcp:" + o.Address
}

// FileOpener replays a capture. The stream ends at end of file.
type FileOpener struct {
	Path string
}

func (o FileOpener) Open(context.Context) (io.ReadCloser, error) {
	f, err := os.Open(o.Path)
	if err != nil {
		return nil, fmt.Errorf("transport: open file: %w", err)
	}
	return f, nil
}

func (o FileOpener) String() string {
	return "file:" + o.Path
}

// Finite reports whether the opener's stream has a natural end that is not a fault.
func Finite(o Opener) bool {
	_, ok := o.(FileOpener)
	return ok
}

func serialConfig(cfg Config) (serial.Config, error) {
	if strings.TrimSpace(cfg.Device) == "" {
		return serial.Config{}, fmt.Errorf("%w: serial", ErrMissingTarget)
	}
	if cfg.Baud <= 0 {
		return serial.Config{}, fmt.Errorf("%w: baud %d", ErrInvalidSerial, cfg.Baud)
	}

	sc := serial.Config{Name: cfg.Device, Baud: cfg.Baud}

	switch cfg.DataBits {
	case 0, 8:
		sc.Size = 8
	case 7:
		sc.Size = 7
	default:
		return serial.Config{}, fmt.Errorf("%w: data bits %d", ErrInvalidSerial, cfg.DataBits)
	}

	switch strings.ToUpper(strings.TrimSpace(cfg.Parity)) {
	case "", "N", "NONE":
		sc.Parity = serial.ParityNone
	case "E", "EVEN":
		sc.Parity = serial.ParityEven
	case "O", "ODD":
		sc.Parity = serial.ParityOdd
	default:
		return serial.Config{}, fmt.Errorf("%w: parity %q", ErrInvalidSerial, cfg.Parity)
	}

	switch cfg.StopBits {
	case 0, 1:
		sc.StopBits = serial.Stop1
	case 2:
		sc.StopBits = serial.Stop2
	default:
		return serial.Config{}, fmt.Errorf("%w: stop bits %d", ErrInvalidSerial, cfg.StopBits)
	}
	return sc, nil
}
