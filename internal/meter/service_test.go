package meter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/p1ctl/internal/protocol/crc"
	"github.com/danmuck/p1ctl/internal/testutil/testlog"
	"github.com/danmuck/p1ctl/internal/transport"
)

func testConfig() ServiceConfig {
	cfg := DefaultServiceConfig()
	cfg.HeartbeatInterval = 10 * time.Millisecond
	cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1}
	return cfg
}

func TestServiceReplaysCaptureFile(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join("..", "protocol", "telegram", "testdata", "telegram_2.txt")
	svc := NewServiceWithOpener(testConfig(), transport.FileOpener{Path: path})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.RunContext(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	st := svc.Stats()
	if st.Verified != 1 || st.Incomplete != 0 || st.InvalidChecksum != 0 || st.Reconnects != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	rd, ok := svc.Latest()
	if !ok {
		t.Fatalf("expected latest reading")
	}
	if rd.Telegram == nil || rd.Telegram.Header != "KFM5KAIFA-METER" {
		t.Fatalf("unexpected latest telegram: %+v", rd.Telegram)
	}
	if svc.Source() != "file:"+path {
		t.Fatalf("unexpected source: %q", svc.Source())
	}
}

func TestServiceReconnectsUntilExhausted(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.MaxReconnects = 3
	op := &flakyOpener{err: errors.New("no such device")}
	svc := NewServiceWithOpener(cfg, op)

	err := svc.RunContext(context.Background())
	if !errors.Is(err, ErrReconnectExhausted) {
		t.Fatalf("expected ErrReconnectExhausted, got %v", err)
	}
	if got := op.opens.Load(); got != 4 {
		t.Fatalf("open attempts: got=%d want=4", got)
	}
	if svc.Stats().Reconnects != 3 {
		t.Fatalf("reconnects: got=%d want=3", svc.Stats().Reconnects)
	}
}

func TestServiceReopensAfterStreamEnds(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.MaxReconnects = 1
	t2 := fixture(t, "telegram_2.txt")
	op := &flakyOpener{data: t2}
	svc := NewServiceWithOpener(cfg, op)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := svc.RunContext(ctx)
	if !errors.Is(err, ErrReconnectExhausted) {
		t.Fatalf("expected ErrReconnectExhausted, got %v", err)
	}
	// Each successful read resets the attempt counter, so the stream is read
	// until an open fails twice in a row.
	if svc.Stats().Verified == 0 {
		t.Fatalf("expected verified readings before exhaustion")
	}
}

func TestServiceStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	pr, pw := io.Pipe()
	defer pw.Close()
	svc := NewServiceWithOpener(testConfig(), pipeOpener{r: pr})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunContext(ctx) }()

	if _, err := pw.Write(fixture(t, "telegram_1.txt")); err != nil {
		t.Fatalf("write: %v", err)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("service did not stop after cancel")
	}
}

func TestServiceRejectsInvalidHeartbeat(t *testing.T) {
	cfg := testConfig()
	cfg.HeartbeatInterval = 0
	svc := NewServiceWithOpener(cfg, &flakyOpener{})
	if err := svc.RunContext(context.Background()); !errors.Is(err, ErrInvalidHeartbeatInterval) {
		t.Fatalf("expected ErrInvalidHeartbeatInterval, got %v", err)
	}
}

func TestServiceHandleVerifiedWithoutTelegram(t *testing.T) {
	testlog.Start(t)
	svc := NewServiceWithOpener(testConfig(), &flakyOpener{})
	svc.Handle(Reading{Result: crc.Result{Status: crc.StatusVerified, Data: []byte("/X\r\n!0000")}})

	rd, ok := svc.Latest()
	if !ok || rd.Telegram != nil {
		t.Fatalf("expected verified reading without payload, got %+v ok=%v", rd, ok)
	}
	if st := svc.Stats(); st.Verified != 1 || st.ParseErrors != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestServiceJitterUsesRandomSource(t *testing.T) {
	cfg := testConfig()
	cfg.Backoff = BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second, Jitter: true}
	svc := NewServiceWithOpener(cfg, &flakyOpener{})
	if svc.rng == nil {
		t.Fatalf("service has no random source")
	}
	seen := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		d := NextBackoffDelay(svc.cfg.Backoff, 3, svc.rng)
		if d < 200*time.Millisecond || d >= 600*time.Millisecond {
			t.Fatalf("jittered delay out of bounds: %v", d)
		}
		seen[d] = true
	}
	if len(seen) < 2 {
		t.Fatalf("jitter produced a constant delay: %v", seen)
	}
}

func TestServiceHandleKeepInvalid(t *testing.T) {
	testlog.Start(t)
	bad := Reading{Result: crc.Result{Status: crc.StatusInvalidChecksum, Data: []byte("/X!0000"), Actual: 0x1234}}

	svc := NewServiceWithOpener(testConfig(), &flakyOpener{})
	svc.Handle(bad)
	if _, ok := svc.Latest(); ok {
		t.Fatalf("invalid reading published without KeepInvalid")
	}

	cfg := testConfig()
	cfg.KeepInvalid = true
	svc = NewServiceWithOpener(cfg, &flakyOpener{})
	svc.Handle(bad)
	rd, ok := svc.Latest()
	if !ok || rd.Result.Status != crc.StatusInvalidChecksum {
		t.Fatalf("expected invalid reading published, got %+v ok=%v", rd, ok)
	}
	if svc.Stats().InvalidChecksum != 1 {
		t.Fatalf("unexpected stats: %+v", svc.Stats())
	}
}

// flakyOpener serves data on odd opens and fails on even ones, or always fails
// when data is empty.
type flakyOpener struct {
	data  []byte
	err   error
	opens atomic.Int64
}

func (o *flakyOpener) Open(context.Context) (io.ReadCloser, error) {
	n := o.opens.Add(1)
	if len(o.data) == 0 || n%2 == 0 {
		if o.err != nil {
			return nil, o.err
		}
		return nil, errors.New("flaky: refused")
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

func (o *flakyOpener) String() string { return "flaky" }

type pipeOpener struct{ r *io.PipeReader }

func (o pipeOpener) Open(context.Context) (io.ReadCloser, error) { return o.r, nil }

func (o pipeOpener) String() string { return "pipe" }
