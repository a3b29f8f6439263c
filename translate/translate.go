// Package translate drives the translation of a PO catalog: it selects the
// entries that need work, sends them to a provider in fixed-size batches,
// recovers from failed calls and writes the merged catalog back.
package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/minios-linux/potranslate/langmeta"
	"github.com/minios-linux/potranslate/pofile"
	"github.com/minios-linux/potranslate/provider"
	"github.com/minios-linux/potranslate/sanitize"
)

// Defaults.
const (
	DefaultBatchSize   = 10
	DefaultMaxAttempts = 3
)

// Client performs one translation call for an ordered list of texts.
// *provider.BatchClient and *provider.ItemClient satisfy it.
type Client interface {
	Translate(ctx context.Context, texts []string, sourceLang, targetLang string) (provider.Result, error)
}

// ProgressFunc receives the number of processed items, the number of items
// to translate and a status line.
type ProgressFunc func(processed, total int, status string)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls a translation run.
type Options struct {
	// SourceLang and TargetLang are language codes (e.g. "en", "zh_CN").
	// TargetLang is written to the catalog's Language header.
	SourceLang string
	TargetLang string
	// BatchSize is the number of entries per call. Default: 10.
	BatchSize int
	// MaxAttempts is the number of calls allowed per batch. Default: 3.
	MaxAttempts int
	// Decider chooses how to continue after a failed call. Default:
	// AutoDecider, which retries until MaxAttempts and then skips.
	Decider Decider
	// OnProgress is called synchronously from the run.
	OnProgress ProgressFunc
	Logger     *slog.Logger
}

func (o *Options) effectiveBatchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

func (o *Options) effectiveMaxAttempts() int {
	if o.MaxAttempts > 0 {
		return o.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (o *Options) effectiveDecider() Decider {
	if o.Decider != nil {
		return o.Decider
	}
	return AutoDecider{}
}

func (o *Options) progress(processed, total int, status string) {
	if o.OnProgress != nil {
		o.OnProgress(processed, total, status)
	}
}

// ---------------------------------------------------------------------------
// Statistics
// ---------------------------------------------------------------------------

// Stats summarizes a run. Translated, Fuzzy and Untranslated describe the
// catalog as it was read; entries with an empty source are in none of them.
type Stats struct {
	RunID string

	Total        int
	Translated   int
	Fuzzy        int
	Untranslated int

	// Errors counts entries of skipped batches; they received their source
	// text as translation.
	Errors int
	// Fallback counts entries the service left unanswered in an otherwise
	// successful call; they also received their source text.
	Fallback int
	// Unresolved counts entries left untouched because the run was stopped.
	Unresolved int

	Batches        int
	SkippedBatches int
	// Repaired counts input lines fixed before parsing.
	Repaired int
	Stopped  bool
}

// ---------------------------------------------------------------------------
// Translator
// ---------------------------------------------------------------------------

// Translator runs translations with one client. Stop may be called from any
// goroutine, also before the run starts. A stopped Translator stays stopped;
// use a new one for the next run.
type Translator struct {
	client Client
	opts   Options
	log    *slog.Logger
	stop   atomic.Bool
}

// New creates a translator.
func New(client Client, opts Options) *Translator {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Translator{client: client, opts: opts, log: log}
}

// Stop asks the current run to halt. The run notices it before the next
// batch or retry; a call already in flight is allowed to finish.
func (t *Translator) Stop() {
	t.stop.Store(true)
}

// Stopped reports whether Stop was called or a decider chose to stop.
func (t *Translator) Stopped() bool {
	return t.stop.Load()
}

func (t *Translator) cancelled(ctx context.Context) bool {
	if t.stop.Load() {
		return true
	}
	if ctx.Err() != nil {
		t.stop.Store(true)
		return true
	}
	return false
}

// TranslateFile reads the catalog at inPath, translates it and writes the
// result to outPath. The output is written even when the run is stopped,
// so that finished batches are kept.
func (t *Translator) TranslateFile(ctx context.Context, inPath, outPath string) (Stats, error) {
	f, repaired, err := LoadCatalog(inPath)
	if err != nil {
		return Stats{}, err
	}
	if len(repaired) > 0 {
		t.log.Info("repaired malformed strings", "file", inPath, "lines", repaired)
	}

	stats, err := t.TranslateCatalog(ctx, f)
	stats.Repaired = len(repaired)
	if err != nil {
		return stats, err
	}

	if err := f.WriteFile(outPath); err != nil {
		return stats, fmt.Errorf("writing %s: %w", outPath, err)
	}
	t.log.Info("catalog written", "run_id", stats.RunID, "file", outPath)
	return stats, nil
}

// TranslateCatalog translates f in place and prepares it for writing.
func (t *Translator) TranslateCatalog(ctx context.Context, f *pofile.File) (Stats, error) {
	if t.opts.TargetLang == "" {
		return Stats{}, errors.New("target language is required")
	}
	stats := Stats{RunID: uuid.NewString()}
	log := t.log.With("run_id", stats.RunID)

	items := Select(f, &stats)
	batches := Partition(items, t.opts.effectiveBatchSize())
	stats.Batches = len(batches)
	log.Info("catalog selected",
		"total", stats.Total, "translated", stats.Translated, "fuzzy", stats.Fuzzy,
		"untranslated", stats.Untranslated, "batches", stats.Batches)

	t.schedule(ctx, f, batches, len(items), &stats, log)

	Finalize(f, t.opts.TargetLang)
	return stats, nil
}

// LoadCatalog reads and parses a catalog, repairing unescaped quotes first.
// It returns the 1-based numbers of the repaired lines.
func LoadCatalog(path string) (*pofile.File, []int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	res, err := sanitize.Sanitize(string(data))
	if err != nil {
		return nil, nil, fmt.Errorf("repairing %s: %w", path, err)
	}
	f, err := pofile.ParseBytes([]byte(res.Text))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, res.Repaired, nil
}

func (t *Translator) languages() (source, target string) {
	source = t.opts.SourceLang
	if source == "" {
		source = "en"
	}
	return langmeta.Name(source), langmeta.Name(t.opts.TargetLang)
}
