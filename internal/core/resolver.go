package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"songdl/internal/runner"
)

// ErrNotFound reports that no playable source matched the query. In batch
// mode it fails a single query without affecting its siblings.
var ErrNotFound = errors.New("no playable source found")

// Ranker reorders one provider's candidates against reference candidates.
type Ranker interface {
	Order(provider string, references, candidates []Candidate) []Candidate
}

// Observer receives per-provider completion events, typically to drive a
// progress display. Implementations must be safe for concurrent use.
type Observer interface {
	ProviderDone(provider string, candidates int, err error)
}

// Resolution is the outcome of resolving one query: the playable candidate
// to download, the merged metadata for tagging, and the full ranked lists.
type Resolution struct {
	Query Query
	// Best is the chosen playable candidate.
	Best Candidate
	// BestProvider names the provider Best came from.
	BestProvider string
	// Merged combines the top candidate of every provider field by field in
	// confidence order. It is the tag data for the downloaded file.
	Merged Candidate
	// Ranked holds every provider's candidate list after ranking, keyed by
	// provider name. Lists are never empty: a provider without results
	// contributes one placeholder candidate.
	Ranked map[string][]Candidate
	// Errors records provider search failures. A failed provider behaves
	// like one returning no results.
	Errors map[string]error
}

// Resolver fans a query out to all providers, ranks their results against
// each other and selects the best playable candidate.
type Resolver struct {
	providers []Provider
	ranker    Ranker
	config    *Config
	logger    *zap.Logger

	// Observer, when set, is notified as each provider search completes.
	Observer Observer
}

func NewResolver(providers []Provider, ranker Ranker, config *Config, logger *zap.Logger) *Resolver {
	return &Resolver{
		providers: providers,
		ranker:    ranker,
		config:    config,
		logger:    logger,
	}
}

type searchResult struct {
	provider   string
	candidates []Candidate
}

// Resolve runs the full pipeline for one query. It returns ErrNotFound when
// the primary playable source has nothing to offer; searches still pending
// at that point are cancelled.
func (r *Resolver) Resolve(ctx context.Context, query Query) (*Resolution, error) {
	r.logger.Info("resolving", zap.Stringer("query", query))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string][]Candidate, len(r.providers))
	searchErrors := make(map[string]error)
	primary := r.config.Providers.Primary()

	runner.Run(ctx, r.providers, func(ctx context.Context, p Provider) (searchResult, error) {
		candidates, err := p.Search(ctx, query)
		if err != nil {
			return searchResult{}, fmt.Errorf("%s: %w", p.Name(), err)
		}
		return searchResult{provider: p.Name(), candidates: candidates}, nil
	}, runner.Options[Provider, searchResult]{
		MaxWorkers: r.config.App.ProviderWorkers,
		OnSuccess: func(p Provider, res searchResult) {
			mu.Lock()
			results[res.provider] = res.candidates
			mu.Unlock()
			if r.Observer != nil {
				r.Observer.ProviderDone(res.provider, len(res.candidates), nil)
			}
			// Nothing from the primary playable source means nothing to
			// download: stop the remaining searches right away.
			if res.provider == primary && len(res.candidates) == 0 {
				r.logger.Warn("primary playable source returned nothing, cancelling remaining searches",
					zap.String("provider", primary))
				cancel()
			}
		},
		OnError: func(p Provider, err error) {
			mu.Lock()
			searchErrors[p.Name()] = err
			mu.Unlock()
			if r.Observer != nil {
				r.Observer.ProviderDone(p.Name(), 0, err)
			}
			r.logger.Warn("provider search failed", zap.String("provider", p.Name()), zap.Error(err))
			// A failed primary is an empty primary: nothing to download, so
			// stop the remaining searches right away.
			if p.Name() == primary {
				cancel()
			}
		},
	})

	if len(results[primary]) == 0 {
		return nil, fmt.Errorf("%s for %s: %w", primary, query, ErrNotFound)
	}

	// Every provider contributes exactly one top candidate to reference
	// building and merging, so backfill the empty ones with a placeholder.
	for _, name := range r.config.Providers.Order {
		if len(results[name]) == 0 {
			results[name] = []Candidate{{}}
		}
	}

	r.rank(results)

	best, bestProvider, ok := r.selectPlayable(results)
	if !ok {
		return nil, fmt.Errorf("all playable candidates filtered out for %s: %w", query, ErrNotFound)
	}

	return &Resolution{
		Query:        query,
		Best:         best,
		BestProvider: bestProvider,
		Merged:       Merge(r.topCandidates(results, "")),
		Ranked:       results,
		Errors:       searchErrors,
	}, nil
}

// rank reorders every provider's list against the other providers' top
// candidates. The most trusted provider defines ground truth and keeps its
// native order.
func (r *Resolver) rank(results map[string][]Candidate) {
	order := r.config.Providers.Order
	for i, name := range order {
		if i == 0 {
			continue
		}
		results[name] = r.ranker.Order(name, r.topCandidates(results, name), results[name])
		if len(results[name]) == 0 {
			results[name] = []Candidate{{}}
		}
	}
}

// topCandidates returns each provider's first candidate in confidence
// order, skipping the named provider.
func (r *Resolver) topCandidates(results map[string][]Candidate, skip string) []Candidate {
	tops := make([]Candidate, 0, len(results))
	for _, name := range r.config.Providers.Order {
		if name == skip || len(results[name]) == 0 {
			continue
		}
		tops = append(tops, results[name][0])
	}
	return tops
}

// selectPlayable picks the first playable provider, in confidence order,
// whose ranked top candidate is usable.
func (r *Resolver) selectPlayable(results map[string][]Candidate) (Candidate, string, bool) {
	for _, name := range r.config.Providers.Order {
		if !r.config.Providers.IsPlayable(name) || len(results[name]) == 0 {
			continue
		}
		top := results[name][0]
		if top.IsEmpty() {
			continue
		}
		return top, name, true
	}
	return Candidate{}, "", false
}
