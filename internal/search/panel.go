// Package search holds the club search panel: one query box, one result
// list, and the bookkeeping needed to tell "not searched yet" apart from
// "searched, nothing found".
package search

import (
	"context"
	"log/slog"
	"strings"

	"clubportal/internal/club"
)

// State is the panel's render state. It is derived, never stored.
type State int

const (
	NotYetSearched State = iota
	SearchedWithResults
	SearchedNoResults
)

func (s State) String() string {
	switch s {
	case NotYetSearched:
		return "not_yet_searched"
	case SearchedWithResults:
		return "searched_with_results"
	case SearchedNoResults:
		return "searched_no_results"
	default:
		return "unknown"
	}
}

// Searcher is the remote club search collaborator.
type Searcher interface {
	Search(ctx context.Context, query string) ([]club.Club, error)
}

// Panel is not safe for concurrent use; callers serialize access.
type Panel struct {
	searcher Searcher
	logger   *slog.Logger

	query    string
	results  []club.Club
	searched bool
	lastErr  error
}

func NewPanel(searcher Searcher, logger *slog.Logger) *Panel {
	return &Panel{searcher: searcher, logger: logger}
}

// Submit runs a search for query. Blank queries are ignored and report
// false. A failed search renders as an empty result list; the error is
// logged and kept for Err.
func (p *Panel) Submit(ctx context.Context, query string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return false
	}

	results, err := p.searcher.Search(ctx, q)
	p.query = q
	p.searched = true
	p.lastErr = err
	if err != nil {
		p.logger.ErrorContext(ctx, "club search failed", "query", q, "error", err)
		p.results = nil
		return true
	}
	p.results = results
	return true
}

func (p *Panel) State() State {
	switch {
	case !p.searched:
		return NotYetSearched
	case len(p.results) > 0:
		return SearchedWithResults
	default:
		return SearchedNoResults
	}
}

// Query returns the last submitted query.
func (p *Panel) Query() string { return p.query }

// Results returns the last results in the order the collaborator sent them.
func (p *Panel) Results() []club.Club {
	out := make([]club.Club, len(p.results))
	copy(out, p.results)
	return out
}

// Err returns the failure of the last search, if any.
func (p *Panel) Err() error { return p.lastErr }

// Find looks up a club in the current results.
func (p *Panel) Find(id club.ID) (club.Club, bool) {
	for _, c := range p.results {
		if c.ID == id {
			return c, true
		}
	}
	return club.Club{}, false
}
