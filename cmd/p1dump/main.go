package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/p1ctl/internal/api"
	"github.com/danmuck/p1ctl/internal/logging"
	"github.com/danmuck/p1ctl/internal/meter"
	"github.com/danmuck/p1ctl/internal/protocol/crc"
	"github.com/danmuck/p1ctl/internal/protocol/telegram"
)

type options struct {
	Lines      bool
	JSON       bool
	BufferSize int
}

func main() {
	input := flag.String("input", "-", "capture file to replay (\"-\" reads stdin)")
	lines := flag.Bool("lines", false, "print tokenized OBIS lines of verified telegrams")
	asJSON := flag.Bool("json", false, "print one JSON object per outcome")
	bufSize := flag.Int("buffer", telegram.DefaultBufferSize, "source read buffer size")
	flag.Parse()

	logging.ConfigureRuntime()

	in := io.Reader(os.Stdin)
	name := "stdin"
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "p1dump: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in, name = f, *input
	}

	opts := options{Lines: *lines, JSON: *asJSON, BufferSize: *bufSize}
	if err := dump(name, in, os.Stdout, opts); err != nil {
		fmt.Fprintf(os.Stderr, "p1dump: %v\n", err)
		os.Exit(1)
	}
}

// dump prints every outcome read from in followed by a summary line.
func dump(name string, in io.Reader, out io.Writer, opts options) error {
	r := telegram.NewReader(telegram.NewReaderSource(in, opts.BufferSize))
	p := meter.Pipeline{Source: name}
	enc := json.NewEncoder(out)

	var counts [4]int
	var writeErr error
	err := p.Process(r, func(rd meter.Reading) {
		counts[rd.Result.Status]++
		if writeErr != nil {
			return
		}
		if opts.JSON {
			writeErr = enc.Encode(api.NewReadingView(rd))
			return
		}
		writeErr = printReading(out, rd, opts.Lines)
	})
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if opts.JSON {
		return nil
	}
	_, err = fmt.Fprintf(out, "summary verified=%d invalid_checksum=%d incomplete=%d dropped_bytes=%d\n",
		counts[crc.StatusVerified], counts[crc.StatusInvalidChecksum], counts[crc.StatusIncomplete], r.Dropped())
	return err
}

func printReading(out io.Writer, rd meter.Reading, withLines bool) error {
	res := rd.Result
	var err error
	switch res.Status {
	case crc.StatusInvalidChecksum:
		expected := "----"
		if res.HasExpected {
			expected = fmt.Sprintf("%04X", res.Expected)
		}
		_, err = fmt.Fprintf(out, "%s bytes=%d expected=%s actual=%04X\n", res.Status, len(res.Data), expected, res.Actual)
	default:
		_, err = fmt.Fprintf(out, "%s bytes=%d\n", res.Status, len(res.Data))
	}
	if err != nil || !withLines || res.Status != crc.StatusVerified {
		return err
	}
	if rd.ParseErr != nil {
		_, err = fmt.Fprintf(out, "  payload error: %v\n", rd.ParseErr)
		return err
	}
	if _, err := fmt.Fprintf(out, "  header %s\n", rd.Telegram.Header); err != nil {
		return err
	}
	for _, l := range rd.Telegram.Lines {
		if _, err := fmt.Fprintf(out, "  %s", l.ID); err != nil {
			return err
		}
		for _, v := range l.Values {
			if _, err := fmt.Fprintf(out, " (%s)", v.Raw); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(out); err != nil {
			return err
		}
	}
	return nil
}
