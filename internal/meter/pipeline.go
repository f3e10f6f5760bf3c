package meter

import (
	"time"

	"github.com/danmuck/p1ctl/internal/observability"
	"github.com/danmuck/p1ctl/internal/protocol/crc"
	"github.com/danmuck/p1ctl/internal/protocol/payload"
	"github.com/danmuck/p1ctl/internal/protocol/telegram"
)

// Reading is one handled outcome.
type Reading struct {
	Source   string
	Received time.Time
	Result   crc.Result
	// Telegram is set only for verified frames that tokenized cleanly.
	Telegram *payload.Telegram
	ParseErr error
}

// Pipeline runs outcomes from one Reader through verification and tokenizing.
type Pipeline struct {
	Source string
	Now    func() time.Time
}

// Process drains r, handing each reading to sink in stream order. It returns the
// source failure that ended r, or nil at end of input.
func (p Pipeline) Process(r *telegram.Reader, sink func(Reading)) error {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	var reported uint64
	for o := range r.Outcomes() {
		rd := p.handle(o, now())
		if dropped := r.Dropped(); dropped > reported {
			observability.RecordDropped(p.Source, dropped-reported)
			reported = dropped
		}
		sink(rd)
	}
	if dropped := r.Dropped(); dropped > reported {
		observability.RecordDropped(p.Source, dropped-reported)
	}
	return r.Err()
}

func (p Pipeline) handle(o telegram.Outcome, at time.Time) Reading {
	res := crc.Verify(o)
	rd := Reading{Source: p.Source, Received: at, Result: res}
	if res.Status == crc.StatusVerified {
		tg, err := payload.Parse(res.Data)
		if err != nil {
			rd.ParseErr = err
		} else {
			rd.Telegram = &tg
		}
	}
	observability.RecordOutcome(p.Source, res.Status.String(), len(res.Data))
	return rd
}
