package job

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dgallion1/pdfloc/internal/annotate"
	"github.com/dgallion1/pdfloc/internal/content"
	"github.com/dgallion1/pdfloc/internal/engine"
	"github.com/dgallion1/pdfloc/internal/layout"
	"github.com/dgallion1/pdfloc/internal/locator"
	"github.com/dgallion1/pdfloc/internal/objgraph"
	"github.com/dgallion1/pdfloc/internal/pdfloc"
	"github.com/dgallion1/pdfloc/internal/region"
)

// Converter performs the conversions of a batch. *locator.Converter
// implements it.
type Converter interface {
	RangeToRegions(r pdfloc.Range) (region.Set, error)
	BoxesToRange(boxes []region.Region, comment string) (pdfloc.Range, error)
}

// Result is the outcome of one job. Range jobs fill Set; box jobs fill Set
// with their boxes and Range with the equivalent pdfloc range.
type Result struct {
	Job   Job
	Set   region.Set
	Range pdfloc.Range
	Err   error
}

// Failed reports whether the job produced nothing usable.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Run converts jobs in order. A failing job is logged and recorded in its
// result; the batch goes on.
func Run(ctx context.Context, conv Converter, jobs []Job, log *slog.Logger) ([]Result, error) {
	results := make([]Result, 0, len(jobs))
	for i, j := range jobs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := Result{Job: j}
		switch j.Type {
		case TypeRange:
			res.Set, res.Err = conv.RangeToRegions(j.Range)
		case TypeBoxes:
			res.Set = region.Set{Regions: j.Boxes}
			res.Range, res.Err = conv.BoxesToRange(j.Boxes, "")
		}
		if res.Err != nil {
			log.Warn("job failed", "job", i, "input", j.Input, "kind", Kind(res.Err), "error", res.Err)
		}
		results = append(results, res)
	}
	return results, nil
}

// Sets groups the regions of successful results by page for the annotation
// writer.
func Sets(results []Result) map[int][]region.Set {
	sets := make(map[int][]region.Set)
	for _, r := range results {
		if r.Failed() || len(r.Set.Regions) == 0 {
			continue
		}
		p := r.Set.Page()
		sets[p] = append(sets[p], r.Set)
	}
	return sets
}

// Pages returns the pages below numPages the jobs touch.
func Pages(jobs []Job, numPages int) []int {
	var ranges []pdfloc.Range
	var boxes [][]region.Region
	for _, j := range jobs {
		switch j.Type {
		case TypeRange:
			ranges = append(ranges, j.Range)
		case TypeBoxes:
			boxes = append(boxes, j.Boxes)
		}
	}
	return locator.PagesOf(ranges, boxes, numPages)
}

var kinds = []struct {
	err  error
	name string
}{
	{pdfloc.ErrMalformedToken, "malformed-token"},
	{ErrMalformedJob, "malformed-job"},
	{layout.ErrKeyLookup, "key-lookup"},
	{layout.ErrDetachedNode, "detached-node"},
	{region.ErrTraversalOverrun, "traversal-overrun"},
	{region.ErrEndNotFound, "end-not-found"},
	{region.ErrOutOfRange, "out-of-range"},
	{content.ErrUnresolvedReference, "unresolved-reference"},
	{annotate.ErrUnknownPage, "unknown-page"},
	{annotate.ErrEmptyRegionSet, "empty-region-set"},
	{locator.ErrAlreadyBuilt, "already-built"},
	{locator.ErrNotBuilt, "not-built"},
	{locator.ErrNoText, "no-text"},
	{objgraph.ErrXRefStream, "xref-stream"},
	{objgraph.ErrEncrypted, "encrypted"},
	{objgraph.ErrMalformed, "malformed-pdf"},
	{engine.ErrOpen, "malformed-pdf"},
	{engine.ErrContent, "content"},
	{context.Canceled, "cancelled"},
	{context.DeadlineExceeded, "timeout"},
}

// Kind names the error class of err for reports. Unknown errors are
// "internal".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}

// Batch holds parsed job texts. Texts that fail to parse keep their place
// as failed results.
type Batch struct {
	Jobs    []Job
	Results []Result
	index   []int // Results position of Jobs[i]
}

// ParseBatch parses every text in order.
func ParseBatch(texts []string) *Batch {
	b := &Batch{}
	for _, text := range texts {
		j, err := Parse(text)
		if err != nil {
			b.Results = append(b.Results, Result{Job: Job{Input: strings.TrimSpace(text)}, Err: err})
			continue
		}
		b.index = append(b.index, len(b.Results))
		b.Results = append(b.Results, Result{Job: j})
		b.Jobs = append(b.Jobs, j)
	}
	return b
}

// Merge stores the results of running b.Jobs at their original positions
// and returns all results.
func (b *Batch) Merge(converted []Result) []Result {
	for i, r := range converted {
		b.Results[b.index[i]] = r
	}
	return b.Results
}
