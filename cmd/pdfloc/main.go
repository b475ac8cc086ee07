// Command pdfloc converts pdfloc location ranges to page regions and writes
// them back into documents as highlight annotations.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"golang.org/x/term"

	"github.com/dgallion1/pdfloc/internal/config"
	"github.com/dgallion1/pdfloc/internal/job"
	"github.com/dgallion1/pdfloc/internal/locator"
	"github.com/dgallion1/pdfloc/internal/pdfloc"
	"github.com/dgallion1/pdfloc/internal/pipeline"
	"github.com/dgallion1/pdfloc/internal/region"
	"github.com/dgallion1/pdfloc/internal/report"
	"github.com/dgallion1/pdfloc/internal/server"
)

// Globals are flags shared by every command.
type Globals struct {
	Verbose  bool `short:"v" help:"Log debug output."`
	Strict   bool `help:"Fail on unresolved font or form references instead of skipping them."`
	MaxSteps int  `name:"max-steps" default:"100000" help:"Traversal step limit for one range."`
}

func (g *Globals) options() pipeline.Options {
	return pipeline.Options{Strict: g.Strict, MaxSteps: g.MaxSteps}
}

var cli struct {
	Globals

	Convert  ConvertCmd  `cmd:"" help:"Resolve jobs to page regions and print a report."`
	Annotate AnnotateCmd `cmd:"" help:"Highlight every resolved job in the document."`
	Locate   LocateCmd   `cmd:"" help:"Resolve a single token, or convert boxes to a pdfloc range."`
	Text     TextCmd     `cmd:"" help:"Print the text lines of pages as the locator sees them."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API server."`
}

// JobSource reads the document and its jobs.
type JobSource struct {
	File    string   `arg:"" type:"existingfile" help:"PDF document."`
	Jobs    []string `arg:"" optional:"" help:"Jobs: pdfloc ranges or page,left,top,right,bottom boxes."`
	JobFile string   `short:"f" name:"jobs" placeholder:"FILE" help:"Read jobs from FILE, - for stdin."`
}

// load returns the document and parsed jobs. Jobs read from a stream may
// name any page, so the whole document is laid out for them.
func (s *JobSource) load() (data []byte, batch *job.Batch, whole bool, err error) {
	data, err = os.ReadFile(s.File)
	if err != nil {
		return nil, nil, false, err
	}

	texts := s.Jobs
	if s.JobFile != "" {
		var r io.Reader = os.Stdin
		if s.JobFile != "-" {
			f, err := os.Open(s.JobFile)
			if err != nil {
				return nil, nil, false, err
			}
			defer f.Close()
			r = f
		}
		sc := job.NewScanner(r)
		for sc.Scan() {
			texts = append(texts, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return nil, nil, false, fmt.Errorf("read jobs: %w", err)
		}
		whole = true
	}
	if len(texts) == 0 {
		return nil, nil, false, errors.New("no jobs given")
	}
	return data, job.ParseBatch(texts), whole, nil
}

type ConvertCmd struct {
	JobSource
	Format string `default:"text" enum:"text,json,docx" help:"Report format (${enum})."`
	Out    string `short:"o" type:"path" help:"Write the report to this file."`
}

func (c *ConvertCmd) Run(ctx context.Context, g *Globals, log *slog.Logger) error {
	data, batch, whole, err := c.load()
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(c.Format)
	if err != nil {
		return err
	}

	results := batch.Results
	if len(batch.Jobs) > 0 {
		opts := g.options()
		opts.WholeDocument = whole
		converted, err := pipeline.Convert(ctx, data, batch.Jobs, opts, log)
		if err != nil {
			return err
		}
		results = batch.Merge(converted)
	}

	w, err := openOutput(c.Out, format.Binary())
	if err != nil {
		return err
	}
	if err := report.Write(w, format, results); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

type AnnotateCmd struct {
	JobSource
	Out        string `short:"o" type:"path" help:"Write the annotated document to this file."`
	UpdateOnly bool   `name:"update-only" help:"Write only the incremental update, not the whole document."`
	Rich       bool   `help:"Render comments as rich text (Markdown)."`
	Author     string `help:"Annotation author."`
	Color      string `default:"1 1 0" help:"Highlight color as three RGB components in 0..1."`
}

func (c *AnnotateCmd) Run(ctx context.Context, g *Globals, log *slog.Logger) error {
	color, err := config.ParseColor(c.Color)
	if err != nil {
		return err
	}
	data, batch, whole, err := c.load()
	if err != nil {
		return err
	}
	if len(batch.Jobs) == 0 {
		report.Write(os.Stderr, report.FormatText, batch.Results)
		return pipeline.ErrNothingToAnnotate
	}

	opts := g.options()
	opts.WholeDocument = whole
	opts.RichText = c.Rich
	opts.Author = c.Author
	opts.Color = color

	ann, err := pipeline.Annotate(ctx, data, batch.Jobs, opts, log)
	if errors.Is(err, pipeline.ErrNothingToAnnotate) {
		report.Write(os.Stderr, report.FormatText, batch.Merge(ann.Results))
		return err
	}
	if err != nil {
		return err
	}
	results := batch.Merge(ann.Results)
	for _, r := range results {
		if r.Failed() {
			log.Warn("job skipped", "input", r.Job.Input, "kind", job.Kind(r.Err), "error", r.Err)
		}
	}

	w, err := openOutput(c.Out, true)
	if err != nil {
		return err
	}
	if !c.UpdateOnly {
		if _, err := w.Write(data); err != nil {
			w.Close()
			return err
		}
	}
	if _, err := w.Write(ann.Update); err != nil {
		w.Close()
		return err
	}
	log.Info("annotated", "annotations", ann.Written.Annotations, "pages", ann.Written.Pages)
	return w.Close()
}

type LocateCmd struct {
	File    string   `arg:"" type:"existingfile" help:"PDF document."`
	Query   []string `arg:"" help:"A pdfloc token, or page,left,top,right,bottom boxes."`
	Comment string   `help:"Comment to attach to the generated range."`
}

func (c *LocateCmd) Run(ctx context.Context, g *Globals, log *slog.Logger) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	conv, err := locator.New(data, locator.Options{Strict: g.Strict, MaxSteps: g.MaxSteps}, log)
	if err != nil {
		return err
	}

	query := strings.Join(c.Query, ";")
	if strings.HasPrefix(strings.ToLower(query), "#pdfloc") {
		tok, err := pdfloc.ParseToken(query)
		if err != nil {
			return err
		}
		if err := build(ctx, conv, []int{tok.Page}); err != nil {
			return err
		}
		reg, err := conv.TokenToRegion(tok)
		if err != nil {
			return err
		}
		fmt.Println(report.Line(reg))
		return nil
	}

	boxes, err := job.ParseBoxes(query)
	if err != nil {
		return err
	}
	if err := build(ctx, conv, locator.PagesOf(nil, [][]region.Region{boxes}, conv.NumPage())); err != nil {
		return err
	}
	r, err := conv.BoxesToRange(boxes, c.Comment)
	if err != nil {
		return err
	}
	fmt.Println(r)
	return nil
}

type TextCmd struct {
	File  string `arg:"" type:"existingfile" help:"PDF document."`
	Pages []int  `short:"p" name:"page" help:"Pages to print (0-based); all when omitted."`
}

func (c *TextCmd) Run(ctx context.Context, g *Globals, log *slog.Logger) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	conv, err := locator.New(data, locator.Options{Strict: g.Strict, MaxSteps: g.MaxSteps}, log)
	if err != nil {
		return err
	}
	if err := build(ctx, conv, c.Pages); err != nil {
		return err
	}

	pages := c.Pages
	if len(pages) == 0 {
		for i := range conv.NumPage() {
			pages = append(pages, i)
		}
	}
	for _, p := range pages {
		text, err := conv.Text(p)
		if err != nil {
			return err
		}
		fmt.Printf("--- page %d ---\n%s", p, text)
	}
	return nil
}

type ServeCmd struct {
	Port string `help:"Listen port; overrides PORT."`
}

func (c *ServeCmd) Run(ctx context.Context) error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()
	if c.Port != "" {
		cfg.Port = c.Port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return server.Run(ctx, cfg, log)
}

func build(ctx context.Context, conv *locator.Converter, pages []int) error {
	if err := conv.Restrict(pages); err != nil {
		return err
	}
	return conv.Build(ctx)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput opens path for writing, or stdout when path is empty. Binary
// output is never written to a terminal.
func openOutput(path string, binary bool) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		if binary && term.IsTerminal(int(os.Stdout.Fd())) {
			return nil, errors.New("refusing to write binary output to a terminal; use -o")
		}
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("pdfloc"),
		kong.Description("Convert pdfloc location ranges to page regions and highlight annotations."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	err := kctx.Run(&cli.Globals, log)
	kctx.FatalIfErrorf(err)
}
