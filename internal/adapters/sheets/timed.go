package sheets

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"rollcall/internal/perf"
)

// DefaultSlowCallMs is the default threshold for slow remote-call warnings.
const DefaultSlowCallMs = 800

var slowCallMs int64
var slowCallOnce sync.Once

// getSlowCallThreshold returns the slow-call threshold in milliseconds.
func getSlowCallThreshold() float64 {
	slowCallOnce.Do(func() {
		ms := DefaultSlowCallMs
		if v := os.Getenv("ROLLCALL_SLOW_REMOTE_MS"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				ms = n
			}
		}
		atomic.StoreInt64(&slowCallMs, int64(ms))
	})
	return float64(atomic.LoadInt64(&slowCallMs))
}

// TimedClient wraps a Client to log slow remote-table calls and
// optionally record timings to a collector. Satisfies Client so it can
// be passed anywhere the raw client is accepted.
type TimedClient struct {
	client    Client
	collector *perf.Collector
	threshold float64
}

// Compile-time check that *TimedClient satisfies Client.
var _ Client = (*TimedClient)(nil)

// NewTimedClient wraps a Client with timing instrumentation.
// PRE: client is non-nil; collector may be nil
// POST: Returns a TimedClient that logs slow calls and records to collector
func NewTimedClient(client Client, collector *perf.Collector) *TimedClient {
	return &TimedClient{
		client:    client,
		collector: collector,
		threshold: getSlowCallThreshold(),
	}
}

// logCall logs and optionally records one remote-call timing.
func (t *TimedClient) logCall(op string, start time.Time, err error) {
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		slog.Warn("remote_call_failed", "op", op, "duration_ms", durationMs, "error", err)
	} else if durationMs >= t.threshold {
		slog.Warn("slow_remote_call", "op", op, "duration_ms", durationMs)
	} else {
		slog.Debug("remote_call", "op", op, "duration_ms", durationMs)
	}

	if t.collector != nil {
		t.collector.Record(perf.Entry{
			Kind:       perf.KindRemote,
			Path:       "sheets." + op,
			DurationMs: durationMs,
			Timestamp:  start,
		})
	}
}

// ReadGrid delegates to the wrapped client with timing.
func (t *TimedClient) ReadGrid(ctx context.Context) (Grid, error) {
	start := time.Now()
	grid, err := t.client.ReadGrid(ctx)
	t.logCall("ReadGrid", start, err)
	return grid, err
}

// ReadHeader delegates to the wrapped client with timing.
func (t *TimedClient) ReadHeader(ctx context.Context) ([]string, error) {
	start := time.Now()
	header, err := t.client.ReadHeader(ctx)
	t.logCall("ReadHeader", start, err)
	return header, err
}

// WriteBatch delegates to the wrapped client with timing.
func (t *TimedClient) WriteBatch(ctx context.Context, writes []CellWrite) error {
	start := time.Now()
	err := t.client.WriteBatch(ctx, writes)
	t.logCall("WriteBatch", start, err)
	return err
}
