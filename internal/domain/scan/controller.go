// Package scan drives a single scan pass over the paginated corpus.
//
// A pass fetches pages strictly one after another: whether to fetch the next
// page depends on the previous page's matches and the server's "has more"
// signal. Initial passes keep going over empty pages until something matches
// (bounded by a batch cap); Continue passes fetch exactly one page.
package scan

import (
	"context"
	"errors"
	"fmt"

	"github.com/corey/chatscan/internal/ports"
)

// Defaults for Options.
const (
	DefaultPageSize   = 500
	DefaultBatchPages = 50
	DefaultMaxPages   = 1000
)

// Mode selects the stopping policy of a pass.
type Mode int

const (
	// Initial scans until the first hit, the batch cap, or the end of the corpus.
	Initial Mode = iota
	// Continue fetches a single page, even if it has no hits.
	Continue
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Initial:
		return "initial"
	case Continue:
		return "continue"
	default:
		return "unknown"
	}
}

// State is the controller's position within a pass, reported through Progress.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateEvaluating
	StateContinue
	StateStop
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateEvaluating:
		return "evaluating"
	case StateContinue:
		return "continue"
	case StateStop:
		return "stop"
	default:
		return "unknown"
	}
}

// ErrFetch is matched by every page-fetch failure returned from RunPass.
var ErrFetch = errors.New("page fetch failed")

// FetchError reports the page whose fetch aborted a pass.
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %d: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFetch) hold for any FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Evaluator turns a page of messages into admitted matches.
type Evaluator interface {
	Evaluate(msgs []ports.Message, keywords []string) []ports.ScoredMatch
}

// Options bounds a pass. Zero fields take the package defaults.
type Options struct {
	PageSize   int // messages per fetch
	BatchPages int // max pages an Initial pass fetches
	MaxPages   int // absolute safety cap per invocation, any mode
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.BatchPages <= 0 {
		o.BatchPages = DefaultBatchPages
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}

// Progress is reported after every state transition of a pass.
type Progress struct {
	State        State
	Page         int
	PagesFetched int
	Message      string // human readable, empty until the pass moves past its first page
}

// PassRequest describes one pass.
type PassRequest struct {
	Mode     Mode
	Keywords []string
	Cursor   ports.Cursor
}

// PassResult is what a pass produced. On error it still carries the cursor
// and exhaustion as of the last successful page.
type PassResult struct {
	Matches      []ports.ScoredMatch
	Cursor       ports.Cursor
	Exhausted    bool
	PagesFetched int
}

// Controller runs scan passes against a page source.
type Controller struct {
	source ports.PageSource
	eval   Evaluator
	opts   Options
}

// NewController creates a controller over source, scoring pages with eval.
func NewController(source ports.PageSource, eval Evaluator, opts Options) *Controller {
	return &Controller{source: source, eval: eval, opts: opts.withDefaults()}
}

// Options returns the effective (defaulted) options.
func (c *Controller) Options() Options {
	return c.opts
}

// RunPass executes one pass. exhausted is the caller's current exhaustion
// flag; it is returned unchanged if no page is fetched successfully.
//
// A fetch failure aborts the pass without retrying: the returned error wraps
// a *FetchError and the result keeps the cursor of the last good page. A
// cancelled ctx aborts before the next fetch and returns ctx.Err().
func (c *Controller) RunPass(ctx context.Context, req PassRequest, exhausted bool, onProgress func(Progress)) (PassResult, error) {
	report := func(p Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	res := PassResult{Cursor: req.Cursor, Exhausted: exhausted}
	if res.Cursor.StartPage <= 0 {
		res.Cursor.StartPage = 1
	}

	start := 1
	if req.Mode == Continue {
		start = req.Cursor.LastScannedPage + 1
	}
	filter := req.Cursor.Filter()

	for page := start; page < start+c.opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		report(Progress{State: StateFetching, Page: page, PagesFetched: res.PagesFetched})
		p, err := c.source.FetchPage(ctx, filter, page, c.opts.PageSize)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			return res, &FetchError{Page: page, Err: err}
		}

		res.PagesFetched++
		res.Cursor.LastScannedPage = page
		res.Exhausted = !p.HasNext

		report(Progress{State: StateEvaluating, Page: page, PagesFetched: res.PagesFetched})
		res.Matches = append(res.Matches, c.eval.Evaluate(p.Messages, req.Keywords)...)

		if len(res.Matches) > 0 ||
			res.PagesFetched >= c.opts.BatchPages ||
			req.Mode == Continue ||
			!p.HasNext {
			break
		}

		report(Progress{
			State:        StateContinue,
			Page:         page + 1,
			PagesFetched: res.PagesFetched,
			Message:      progressMessage(res.PagesFetched+1, c.opts.PageSize),
		})
	}

	report(Progress{State: StateStop, Page: res.Cursor.LastScannedPage, PagesFetched: res.PagesFetched})
	return res, nil
}

func progressMessage(pages, pageSize int) string {
	return fmt.Sprintf("Scanning database... Checked %d messages...", pages*pageSize)
}
