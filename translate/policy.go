package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minios-linux/potranslate/provider"
)

// Decision is the answer of a Decider to a failed call.
type Decision int

const (
	// DecisionRetry repeats the call; it consumes one attempt and turns
	// into a skip once the attempts are used up.
	DecisionRetry Decision = iota
	// DecisionSkip keeps the source texts as translations of the batch.
	DecisionSkip
	// DecisionStop ends the run; later batches are not processed.
	DecisionStop
)

func (d Decision) String() string {
	switch d {
	case DecisionSkip:
		return "skip"
	case DecisionStop:
		return "stop"
	default:
		return "retry"
	}
}

// ParseDecision accepts "retry", "skip", "stop" and their first letters,
// plus "t" for stop.
func ParseDecision(s string) (Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r", "retry":
		return DecisionRetry, true
	case "s", "skip":
		return DecisionSkip, true
	case "t", "stop":
		return DecisionStop, true
	}
	return DecisionRetry, false
}

// Decider is consulted after every failed call. cause is a message fit for
// users; batch is 1-based and total is the number of batches.
type Decider interface {
	Decide(cause string, batch, total int) Decision
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(cause string, batch, total int) Decision

func (f DeciderFunc) Decide(cause string, batch, total int) Decision {
	return f(cause, batch, total)
}

// AutoDecider always retries, so a failing batch is skipped once its
// attempts are used up.
type AutoDecider struct{}

func (AutoDecider) Decide(string, int, int) Decision { return DecisionRetry }

// BatchState is the state of a batch in the recovery policy.
type BatchState int

const (
	StateAttempting BatchState = iota
	StateSucceeded
	StateSkipped
	StateStopped
)

func (s BatchState) String() string {
	switch s {
	case StateSucceeded:
		return "succeeded"
	case StateSkipped:
		return "skipped"
	case StateStopped:
		return "stopped"
	default:
		return "attempting"
	}
}

type outcome struct {
	state  BatchState
	result provider.Result
}

// runBatch calls the client until the batch succeeds, is skipped or the
// run stops.
func (t *Translator) runBatch(ctx context.Context, b Batch, batches, total int, log *slog.Logger) outcome {
	maxAttempts := t.opts.effectiveMaxAttempts()
	decider := t.opts.effectiveDecider()
	sources := b.Sources()

	t.opts.progress(b.Start, total, fmt.Sprintf("Translating batch %d/%d (%d items)...", b.Number, batches, len(b.Items)))

	state := StateAttempting
	for attempt := 1; state == StateAttempting; {
		res, err := t.attempt(ctx, sources)
		if err == nil {
			return outcome{state: StateSucceeded, result: res}
		}
		log.Warn("batch failed", "batch", b.Number, "attempt", attempt, "max_attempts", maxAttempts, "error", err)

		switch decider.Decide(err.Error(), b.Number, batches) {
		case DecisionStop:
			t.stop.Store(true)
			state = StateStopped
		case DecisionSkip:
			state = StateSkipped
		default:
			attempt++
			switch {
			case attempt > maxAttempts:
				log.Warn("attempts exhausted", "batch", b.Number)
				state = StateSkipped
			case t.cancelled(ctx):
				state = StateStopped
			default:
				t.opts.progress(b.Start, total, fmt.Sprintf("Retrying batch %d (attempt %d/%d)...", b.Number, attempt, maxAttempts))
			}
		}
	}
	return outcome{state: state}
}

// attempt performs one call. The call is detached from ctx cancellation so
// that stopping never aborts a request in flight; the client's timeout
// bounds it instead. A panic is reported as an unexpected failure.
func (t *Translator) attempt(ctx context.Context, texts []string) (res provider.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = provider.Unexpected("", fmt.Errorf("%v", r))
		}
	}()

	source, target := t.languages()
	res, err = t.client.Translate(context.WithoutCancel(ctx), texts, source, target)
	if err != nil {
		return provider.Result{}, err
	}
	if len(res.Texts) != len(texts) {
		return provider.Result{}, provider.Unexpected("", fmt.Errorf("got %d translations for %d texts", len(res.Texts), len(texts)))
	}
	return res, nil
}
