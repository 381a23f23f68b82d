package roboflow

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/ecg-analyzer-mcp/internal/config"
	"github.com/ironsheep/ecg-analyzer-mcp/internal/consolidate"
)

// ErrNotConfigured marks a slot whose endpoint has no URL.
var ErrNotConfigured = errors.New("roboflow: endpoint not configured")

// State describes what happened to one slot in a batch.
type State string

const (
	StateOK      State = "ok"
	StateFailed  State = "failed"
	StateSkipped State = "skipped"
)

// Outcome summarizes a whole batch.
type Outcome string

const (
	OutcomeComplete  Outcome = "complete"
	OutcomePartial   Outcome = "partial"
	OutcomeAllFailed Outcome = "all_failed"
)

// Entry is one slot of a batch together with how its call went.
type Entry struct {
	consolidate.Slot
	State State
	Err   error
}

// Batch holds the settled results of one fan-out, in endpoint order.
type Batch struct {
	Entries []Entry
}

// Slots returns the consolidation input for the batch.
func (b *Batch) Slots() []consolidate.Slot {
	slots := make([]consolidate.Slot, len(b.Entries))
	for i, e := range b.Entries {
		slots[i] = e.Slot
	}
	return slots
}

// Outcome reports whether every attempted call succeeded, some did, or none
// produced a result. Skipped slots do not count as failures.
func (b *Batch) Outcome() Outcome {
	present, failed := 0, 0
	for _, e := range b.Entries {
		switch e.State {
		case StateOK:
			present++
		case StateFailed:
			failed++
		}
	}
	switch {
	case present == 0:
		return OutcomeAllFailed
	case failed > 0:
		return OutcomePartial
	default:
		return OutcomeComplete
	}
}

// Logger receives per-slot diagnostics.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Analyzer fans an image out to every configured endpoint.
type Analyzer struct {
	cfg    config.Roboflow
	client *Client
	logger Logger
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithHTTPClient overrides the HTTP client used for model calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Analyzer) {
		if hc != nil {
			a.client = NewClient(hc)
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAnalyzer prepares an analyzer for the given endpoints.
func NewAnalyzer(cfg config.Roboflow, opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg:    cfg,
		client: NewClient(nil),
		logger: nopLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Endpoints returns the configured endpoints in slot order.
func (a *Analyzer) Endpoints() []config.Endpoint {
	return append([]config.Endpoint(nil), a.cfg.Endpoints...)
}

// Analyze calls every configured endpoint concurrently and waits for all of
// them to settle. A failed call never cancels the others; it simply leaves
// its slot absent.
func (a *Analyzer) Analyze(ctx context.Context, imageBase64 string) *Batch {
	batch := &Batch{Entries: make([]Entry, len(a.cfg.Endpoints))}

	var g errgroup.Group
	for i, ep := range a.cfg.Endpoints {
		entry := &batch.Entries[i]
		entry.Name = ep.Name

		if !ep.Configured() {
			entry.State = StateSkipped
			entry.Err = ErrNotConfigured
			continue
		}

		ep := ep
		g.Go(func() error {
			callCtx := ctx
			if a.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
				defer cancel()
			}

			start := time.Now()
			result, err := a.client.Detect(callCtx, ep, a.cfg.KeyFor(ep), imageBase64)
			if err != nil {
				a.logger.Printf("%s failed after %s: %v", ep.Name, time.Since(start).Round(time.Millisecond), err)
				entry.State = StateFailed
				entry.Err = err
				return nil
			}
			a.logger.Printf("%s returned %d predictions in %s", ep.Name, len(result.Predictions), time.Since(start).Round(time.Millisecond))
			entry.State = StateOK
			entry.Result = result
			return nil
		})
	}
	_ = g.Wait()

	return batch
}
