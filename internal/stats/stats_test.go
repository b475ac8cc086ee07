package stats

import (
	"errors"
	"math"
	"testing"
	"time"
)

// clock is a manually advanced time source.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newRecorder(maxAge time.Duration) (*Recorder, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRecorder(maxAge)
	r.now = c.now
	return r, c
}

func TestSnapshotPercentiles(t *testing.T) {
	r, _ := newRecorder(time.Hour)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		r.Record("convert", time.Duration(ms)*time.Millisecond, nil)
	}

	snap, ok := r.Snapshot()["convert"]
	if !ok {
		t.Fatal("expected a convert snapshot")
	}
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%v max=%v", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %v", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %v", snap.P50Ms)
	}
	if math.Abs(snap.P95Ms-480) > 1e-9 {
		t.Fatalf("expected p95=480, got %v", snap.P95Ms)
	}
	if math.Abs(snap.P99Ms-496) > 1e-9 {
		t.Fatalf("expected p99=496, got %v", snap.P99Ms)
	}
}

func TestPrunesExpiredSamples(t *testing.T) {
	r, c := newRecorder(10 * time.Minute)
	r.Record("annotate", time.Second, errors.New("boom"))
	c.t = c.t.Add(11 * time.Minute)

	if snap := r.Snapshot(); len(snap) != 0 {
		t.Fatalf("expected no operations after prune, got %v", snap)
	}

	r.Record("annotate", 200*time.Millisecond, nil)
	snap := r.Snapshot()["annotate"]
	if snap.Count != 1 || snap.Errors != 0 {
		t.Fatalf("expected one fresh sample and no errors, got %+v", snap)
	}
	if snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected min=max=200, got min=%v max=%v", snap.MinMs, snap.MaxMs)
	}
}

func TestRecordClampsNegativeDuration(t *testing.T) {
	r, _ := newRecorder(time.Hour)
	r.Record("convert", -time.Second, nil)
	if snap := r.Snapshot()["convert"]; snap.MinMs != 0 {
		t.Fatalf("expected negative duration clamped to 0, got %v", snap.MinMs)
	}
}

func TestSince(t *testing.T) {
	r, c := newRecorder(time.Hour)
	start := c.t
	c.t = c.t.Add(1500 * time.Millisecond)
	r.Since("build", start, errors.New("failed"))

	snap := r.Snapshot()["build"]
	if snap.Count != 1 || snap.Errors != 1 || snap.MaxMs != 1500 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
