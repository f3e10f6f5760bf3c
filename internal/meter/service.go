package meter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/p1ctl/internal/observability"
	"github.com/danmuck/p1ctl/internal/protocol/crc"
	"github.com/danmuck/p1ctl/internal/protocol/telegram"
	"github.com/danmuck/p1ctl/internal/transport"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidHeartbeatInterval = errors.New("meter: invalid heartbeat interval")
	ErrReconnectExhausted       = errors.New("meter: reconnect attempts exhausted")
)

// ServiceConfig configures the reader runtime.
type ServiceConfig struct {
	Name              string
	Transport         transport.Config
	BufferSize        int
	Backoff           BackoffConfig
	MaxReconnects     int
	HeartbeatInterval time.Duration
	// KeepInvalid also publishes checksum failures as the latest reading.
	KeepInvalid bool
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:              "p1ctl",
		Transport:         transport.DefaultConfig(),
		BufferSize:        telegram.DefaultBufferSize,
		Backoff:           DefaultBackoffConfig(),
		MaxReconnects:     0,
		HeartbeatInterval: time.Minute,
	}
}

// Stats counts handled outcomes since start.
type Stats struct {
	Verified        uint64 `json:"verified"`
	Incomplete      uint64 `json:"incomplete"`
	InvalidChecksum uint64 `json:"invalid_checksum"`
	ParseErrors     uint64 `json:"parse_errors"`
	Reconnects      uint64 `json:"reconnects"`
}

// Service reads telegrams from one transport until shutdown.
type Service struct {
	cfg    ServiceConfig
	opener transport.Opener
	log    zerolog.Logger
	// rng jitters reconnect delays; only readLoop uses it.
	rng    *rand.Rand

	mu     sync.RWMutex
	latest Reading
	has    bool

	verified        atomic.Uint64
	incomplete      atomic.Uint64
	invalidChecksum atomic.Uint64
	parseErrors     atomic.Uint64
	reconnects      atomic.Uint64
}

func NewService() (*Service, error) {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig) (*Service, error) {
	opener, err := transport.New(cfg.Transport)
	if err != nil {
		return nil, err
	}
	return NewServiceWithOpener(cfg, opener), nil
}

// NewServiceWithOpener skips transport selection; used by tests and replay tools.
func NewServiceWithOpener(cfg ServiceConfig, opener transport.Opener) *Service {
	if cfg.Name == "" {
		cfg.Name = "p1ctl"
	}
	return &Service{
		cfg:    cfg,
		opener: opener,
		log:    observability.Component("meter").With().Str("source", opener.String()).Logger(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run blocks until SIGINT/SIGTERM or a fatal error.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext reads until ctx is done. File sources stop at end of input; other
// sources are reopened with backoff.
func (s *Service) RunContext(ctx context.Context) error {
	if s.cfg.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	readErr := make(chan error, 1)
	go func() {
		readErr <- s.readLoop(ctx)
	}()

	s.log.Info().Str("name", s.cfg.Name).Msg("meter.Service.run start")
	for {
		select {
		case <-ctx.Done():
			<-readErr
			s.log.Info().Msg("meter.Service.run shutdown")
			return nil
		case err := <-readErr:
			if err != nil {
				return err
			}
			s.log.Info().Msg("meter.Service.run source finished")
			return nil
		case <-ticker.C:
			st := s.Stats()
			s.log.Info().
				Uint64("verified", st.Verified).
				Uint64("incomplete", st.Incomplete).
				Uint64("invalid_checksum", st.InvalidChecksum).
				Uint64("parse_errors", st.ParseErrors).
				Uint64("reconnects", st.Reconnects).
				Msg("meter.Service.heartbeat")
		}
	}
}

func (s *Service) readLoop(ctx context.Context) error {
	attempt := 0
	for {
		handled, err := s.readSource(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil && transport.Finite(s.opener) {
			return nil
		}
		if handled > 0 {
			attempt = 0
		}
		attempt++
		if s.cfg.MaxReconnects > 0 && attempt > s.cfg.MaxReconnects {
			return fmt.Errorf("%w: last error: %v", ErrReconnectExhausted, err)
		}

		s.reconnects.Add(1)
		observability.RecordReconnect(s.opener.String())
		delay := NextBackoffDelay(s.cfg.Backoff, attempt, s.rng)
		s.log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("meter.Service.readLoop source lost")
		if err := wait(ctx, delay); err != nil {
			return nil
		}
	}
}

// readSource opens the transport once and drains it. It returns the number of
// outcomes handled and the error that ended the source (nil at end of input).
func (s *Service) readSource(ctx context.Context) (int, error) {
	rc, err := s.opener.Open(ctx)
	if err != nil {
		return 0, err
	}
	stop := closeOnDone(ctx, rc)
	defer stop()

	src := telegram.NewReaderSource(rc, s.cfg.BufferSize)
	p := Pipeline{Source: s.opener.String()}
	handled := 0
	err = p.Process(telegram.NewReader(src), func(rd Reading) {
		handled++
		s.Handle(rd)
	})
	return handled, err
}

// Handle logs and counts one reading and updates the latest snapshot.
func (s *Service) Handle(rd Reading) {
	res := rd.Result
	switch res.Status {
	case crc.StatusVerified:
		s.verified.Add(1)
		if rd.ParseErr != nil {
			s.parseErrors.Add(1)
			s.log.Warn().Err(rd.ParseErr).Int("bytes", len(res.Data)).Msg("meter.Service.handle payload rejected")
		} else if rd.Telegram == nil {
			s.log.Debug().Int("bytes", len(res.Data)).Msg("meter.Service.handle verified without payload")
		} else {
			s.log.Debug().Int("bytes", len(res.Data)).Int("lines", len(rd.Telegram.Lines)).Msg("meter.Service.handle verified")
		}
		s.store(rd)
	case crc.StatusIncomplete:
		s.incomplete.Add(1)
		s.log.Warn().Int("bytes", len(res.Data)).Msg("meter.Service.handle incomplete telegram")
	case crc.StatusInvalidChecksum:
		s.invalidChecksum.Add(1)
		ev := s.log.Warn().Int("bytes", len(res.Data)).Str("actual", fmt.Sprintf("%04X", res.Actual))
		if res.HasExpected {
			ev = ev.Str("expected", fmt.Sprintf("%04X", res.Expected))
		}
		ev.Msg("meter.Service.handle checksum mismatch")
		if s.cfg.KeepInvalid {
			s.store(rd)
		}
	}
}

// Latest returns the most recent published reading.
func (s *Service) Latest() (Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.has
}

func (s *Service) Stats() Stats {
	return Stats{
		Verified:        s.verified.Load(),
		Incomplete:      s.incomplete.Load(),
		InvalidChecksum: s.invalidChecksum.Load(),
		ParseErrors:     s.parseErrors.Load(),
		Reconnects:      s.reconnects.Load(),
	}
}

// Source names the transport being read.
func (s *Service) Source() string {
	return s.opener.String()
}

func (s *Service) store(rd Reading) {
	s.mu.Lock()
	s.latest = rd
	s.has = true
	s.mu.Unlock()
}

// closeOnDone closes c when ctx ends so a blocked Read returns.
func closeOnDone(ctx context.Context, c io.Closer) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = c.Close()
	}()
	return func() {
		close(done)
	}
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
