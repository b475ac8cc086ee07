package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/pdfloc/internal/annotate"
	"github.com/dgallion1/pdfloc/internal/comment"
	"github.com/dgallion1/pdfloc/internal/config"
	"github.com/dgallion1/pdfloc/internal/job"
	"github.com/dgallion1/pdfloc/internal/locator"
	"github.com/dgallion1/pdfloc/internal/objgraph"
)

// ErrNothingToAnnotate is returned when no job produced a region.
var ErrNothingToAnnotate = errors.New("no job produced a region")

// Options control conversion and annotation.
type Options struct {
	Strict   bool
	MaxSteps int

	// WholeDocument builds every page instead of only the pages the jobs
	// name.
	WholeDocument bool

	RichText bool
	Author   string
	// Color is the highlight color; the zero value keeps the writer's
	// yellow.
	Color [3]float64
}

// OptionsFromConfig returns the options the service runs with.
func OptionsFromConfig(cfg config.Config) Options {
	color, err := config.ParseColor(cfg.HighlightColor)
	if err != nil {
		color = [3]float64{1, 1, 0}
	}
	return Options{
		Strict:   cfg.StrictRefs,
		MaxSteps: cfg.MaxTraversalSteps,
		RichText: cfg.RichTextComments,
		Author:   cfg.AnnotationAuthor,
		Color:    color,
	}
}

// Convert runs jobs against the document in data.
func Convert(ctx context.Context, data []byte, jobs []job.Job, opts Options, log *slog.Logger) ([]job.Result, error) {
	conv, err := locator.New(data, locator.Options{Strict: opts.Strict, MaxSteps: opts.MaxSteps}, log)
	if err != nil {
		return nil, err
	}
	if !opts.WholeDocument {
		if err := conv.Restrict(job.Pages(jobs, conv.NumPage())); err != nil {
			return nil, err
		}
	}
	if err := conv.Build(ctx); err != nil {
		return nil, fmt.Errorf("build layout: %w", err)
	}
	return job.Run(ctx, conv, jobs, log)
}

// Annotation is the outcome of Annotate.
type Annotation struct {
	Update  []byte // bytes to append to the original file
	Results []job.Result
	Written annotate.Result
}

// Failed counts the jobs that produced no regions.
func (a *Annotation) Failed() int {
	n := 0
	for _, r := range a.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Annotate converts jobs and renders one highlight per successful job as an
// incremental update of data.
func Annotate(ctx context.Context, data []byte, jobs []job.Job, opts Options, log *slog.Logger) (*Annotation, error) {
	results, err := Convert(ctx, data, jobs, opts, log)
	if err != nil {
		return nil, err
	}
	sets := job.Sets(results)
	if len(sets) == 0 {
		return &Annotation{Results: results}, ErrNothingToAnnotate
	}

	doc, err := objgraph.Parse(data)
	if err != nil {
		return nil, err
	}
	w := annotate.NewWriter(doc)
	w.Author = opts.Author
	if opts.Color != ([3]float64{}) {
		w.Color = opts.Color
	}
	if opts.RichText {
		w.Comments = comment.NewRenderer(true)
	}

	update, written, err := w.Update(sets)
	if err != nil {
		return nil, err
	}
	log.Info("annotated document",
		"annotations", written.Annotations,
		"pages", written.Pages,
		"objects", len(written.Objects),
		"update_bytes", len(update),
	)
	return &Annotation{Update: update, Results: results, Written: written}, nil
}
