// Package stats keeps rolling latency statistics per operation.
package stats

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at       time.Time
	duration time.Duration
}

// Snapshot aggregates the samples of one operation.
type Snapshot struct {
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

type window struct {
	samples []sample
	errors  []time.Time
}

// Recorder tracks latencies of named operations within a rolling window.
// It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	ops    map[string]*window
	maxAge time.Duration
	now    func() time.Time
}

func NewRecorder(maxAge time.Duration) *Recorder {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Recorder{ops: make(map[string]*window), maxAge: maxAge, now: time.Now}
}

// Record adds one sample for op. Failed calls count towards Errors as well.
func (r *Recorder) Record(op string, d time.Duration, err error) {
	d = max(d, 0)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.ops[op]
	if !ok {
		w = &window{samples: make([]sample, 0, 64)}
		r.ops[op] = w
	}
	r.pruneLocked(w, now)
	w.samples = append(w.samples, sample{at: now, duration: d})
	if err != nil {
		w.errors = append(w.errors, now)
	}
}

// Since records the time elapsed since start.
func (r *Recorder) Since(op string, start time.Time, err error) {
	r.Record(op, r.now().Sub(start), err)
}

// Snapshot returns the aggregate of every operation with samples in the
// window.
func (r *Recorder) Snapshot() map[string]Snapshot {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Snapshot, len(r.ops))
	for op, w := range r.ops {
		r.pruneLocked(w, now)
		if len(w.samples) == 0 {
			delete(r.ops, op)
			continue
		}
		out[op] = summarize(w)
	}
	return out
}

func summarize(w *window) Snapshot {
	values := make([]float64, len(w.samples))
	var sum float64
	for i, s := range w.samples {
		values[i] = float64(s.duration) / float64(time.Millisecond)
		sum += values[i]
	}
	slices.Sort(values)
	return Snapshot{
		Count:  len(values),
		Errors: len(w.errors),
		MinMs:  values[0],
		MaxMs:  values[len(values)-1],
		AvgMs:  sum / float64(len(values)),
		P50Ms:  percentile(values, 50),
		P95Ms:  percentile(values, 95),
		P99Ms:  percentile(values, 99),
	}
}

func (r *Recorder) pruneLocked(w *window, now time.Time) {
	cutoff := now.Add(-r.maxAge)
	w.samples = slices.DeleteFunc(w.samples, func(s sample) bool { return s.at.Before(cutoff) })
	w.errors = slices.DeleteFunc(w.errors, func(t time.Time) bool { return t.Before(cutoff) })
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return sorted[0]
	}
	if pct >= 100 {
		return sorted[len(sorted)-1]
	}
	index := float64(len(sorted)-1) * pct / 100
	lower := int(index)
	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower] + (sorted[lower+1]-sorted[lower])*weight
}
