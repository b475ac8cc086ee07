package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/pdfloc/internal/job"
	"github.com/dgallion1/pdfloc/internal/stats"
)

// Worker processes a single annotation job.
type Worker struct {
	opts  Options
	stats *stats.Recorder
	log   *slog.Logger
}

func NewWorker(opts Options, rec *stats.Recorder, log *slog.Logger) *Worker {
	return &Worker{opts: opts, stats: rec, log: log}
}

// Process converts the job's requests and stores the annotated output.
func (w *Worker) Process(ctx context.Context, j *Job) {
	log := w.log.With("job_id", j.ID, "filename", j.Filename)
	start := time.Now()

	j.SetStatus(StatusConverting, "converting")
	j.mu.Lock()
	data, requests := j.fileData, j.requests
	j.mu.Unlock()

	ann, err := Annotate(ctx, data, requests, w.opts, log)
	if w.stats != nil {
		w.stats.Since("annotate", start, err)
	}
	if ann != nil {
		for i, r := range ann.Results {
			if r.Failed() {
				j.AddError(fmt.Sprintf("request %d (%s): %s: %v", i, r.Job.Input, job.Kind(r.Err), r.Err))
			}
		}
	}
	if err != nil {
		if !errors.Is(err, ErrNothingToAnnotate) {
			j.AddError(err.Error())
		}
		log.Error("annotation failed", "kind", job.Kind(err), "error", err)
		j.Finish(nil, 0, 0)
		j.SetStatus(StatusFailed, "converting")
		return
	}

	out := ann.Update
	if j.Full() {
		out = make([]byte, 0, len(data)+len(ann.Update))
		out = append(append(out, data...), ann.Update...)
	}
	converted := len(ann.Results) - ann.Failed()
	j.Finish(out, converted, ann.Written.Annotations)

	if ann.Failed() > 0 {
		log.Warn("annotation partially complete", "failed", ann.Failed(), "annotations", ann.Written.Annotations)
		j.SetStatus(StatusPartial, "done")
		return
	}
	log.Info("annotation complete", "annotations", ann.Written.Annotations, "duration_ms", time.Since(start).Milliseconds())
	j.SetStatus(StatusCompleted, "done")
}
