package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minios-linux/potranslate/pofile"
)

// Batch is a contiguous run of selected items.
type Batch struct {
	// Number is 1-based.
	Number int
	// Start is the position of the first item among all selected items.
	Start int
	Items []Item
}

// Sources returns the source texts of the batch in order.
func (b Batch) Sources() []string {
	out := make([]string, len(b.Items))
	for i, it := range b.Items {
		out[i] = it.Source
	}
	return out
}

// End is the position after the last item.
func (b Batch) End() int {
	return b.Start + len(b.Items)
}

// multiline counts the sources that span several lines. The numbered list
// sent to the service is read back one line per item.
func (b Batch) multiline() int {
	n := 0
	for _, it := range b.Items {
		if strings.Contains(it.Source, "\n") {
			n++
		}
	}
	return n
}

// Partition splits items into batches of size items; only the last batch
// may be shorter.
func Partition(items []Item, size int) []Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([]Batch, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, Batch{
			Number: len(batches) + 1,
			Start:  start,
			Items:  items[start:end],
		})
	}
	return batches
}

// schedule drives each batch through the recovery policy, one at a time.
func (t *Translator) schedule(ctx context.Context, f *pofile.File, batches []Batch, total int, stats *Stats, log *slog.Logger) {
	if total == 0 {
		return
	}
	t.opts.progress(0, total, "Starting batch translation...")

	for i, b := range batches {
		if t.cancelled(ctx) {
			t.halt(batches[i:], total, stats, log)
			return
		}

		if n := b.multiline(); n > 0 && len(b.Items) > 1 {
			log.Warn("batch has multi-line sources, answers after them may be misaligned",
				"batch", b.Number, "multiline", n, "items", len(b.Items))
		}

		out := t.runBatch(ctx, b, len(batches), total, log)
		switch out.state {
		case StateSucceeded:
			apply(f, b, out.result.Texts)
			if n := len(out.result.Fallback); n > 0 {
				stats.Fallback += n
				log.Warn("service answered fewer lines than requested, kept source text",
					"batch", b.Number, "positions", out.result.Fallback)
			}
		case StateSkipped:
			apply(f, b, b.Sources())
			stats.Errors += len(b.Items)
			stats.SkippedBatches++
			log.Warn("batch skipped, kept source text", "batch", b.Number, "items", len(b.Items))
		case StateStopped:
			t.halt(batches[i:], total, stats, log)
			return
		}
		t.opts.progress(b.End(), total, fmt.Sprintf("Completed batch %d/%d", b.Number, len(batches)))
	}
}

func (t *Translator) halt(rest []Batch, total int, stats *Stats, log *slog.Logger) {
	for _, b := range rest {
		stats.Unresolved += len(b.Items)
	}
	stats.Stopped = true
	processed := total
	if len(rest) > 0 {
		processed = rest[0].Start
	}
	log.Info("translation stopped", "remaining_batches", len(rest), "unresolved", stats.Unresolved)
	t.opts.progress(processed, total, "Translation stopped by user")
}
