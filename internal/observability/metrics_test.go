package observability

import (
	"testing"
	"time"

	"github.com/danmuck/p1ctl/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog/log"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordReconnect("serial")
	RecordDropped("serial", 0)

	log.Debug().Msg("observability/metrics: registration idempotent and recording paths executed")
}

func TestRecordOutcomeCounts(t *testing.T) {
	before := testutil.ToFloat64(telegramOutcomes.WithLabelValues("test-source", "verified"))
	RecordOutcome("test-source", "verified", 632)
	RecordOutcome("test-source", "verified", 244)
	after := testutil.ToFloat64(telegramOutcomes.WithLabelValues("test-source", "verified"))
	if after-before != 2 {
		t.Fatalf("outcome counter delta: got=%v want=2", after-before)
	}
	if got := testutil.ToFloat64(telegramBytes.WithLabelValues("test-source", "verified")); got < 876 {
		t.Fatalf("byte counter too small: %v", got)
	}

	RecordDropped("test-source", 7)
	if got := testutil.ToFloat64(droppedBytes.WithLabelValues("test-source")); got != 7 {
		t.Fatalf("dropped counter: got=%v want=7", got)
	}
}
