// Package discovery implements the Link Discoverer: a cascade of strategies
// that each turn a Site into a list of candidate article URLs. Strategies
// run in order and the first one to return a non-empty list wins; any
// strategy may fail independently without blocking the others.
package discovery

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
)

// Strategy discovers candidate URLs for a Site. Implementations must be
// safe to fail (return an error and an empty slice) without bringing down
// the cascade. The relevance filter is applied uniformly to every
// strategy's output by the Discoverer, so a Strategy need not know the
// Site's Domain keywords itself.
type Strategy interface {
	Name() string
	Discover(ctx context.Context, site domain.Site) ([]string, error)
}

// Discoverer runs its Strategies in order, returning the first non-empty
// result, and owns the per-instance exact seen-URL set that prevents any
// strategy from returning the same URL twice within this run.
type Discoverer struct {
	strategies []Strategy
	logger     zerolog.Logger

	seen *seenSet
}

// New builds a Discoverer running strategies in the given order.
func New(logger zerolog.Logger, strategies ...Strategy) *Discoverer {
	return &Discoverer{
		strategies: strategies,
		logger:     logger,
		seen:       newSeenSet(),
	}
}

// Discover runs the cascade for one Site and returns deduplicated,
// relevance-filtered candidate URLs. keywords is the owning Domain's
// keyword list, used only to award the positive relevance score below.
func (d *Discoverer) Discover(ctx context.Context, site domain.Site, keywords []string) ([]string, error) {
	var lastErr error

	for _, s := range d.strategies {
		urls, err := s.Discover(ctx, site)
		if err != nil {
			d.logger.Debug().Err(err).Str("strategy", s.Name()).Str("site", site.ID).
				Msg("discovery strategy failed, trying next")
			lastErr = err
			continue
		}

		var out []string
		for _, u := range urls {
			if !isValidCrawlURL(u) {
				continue
			}
			if relevanceScore(u, keywords) < minRelevanceScore {
				continue
			}
			if d.seen.addIfNew(u) {
				out = append(out, u)
			}
		}

		if len(out) > 0 {
			d.logger.Debug().Str("strategy", s.Name()).Int("count", len(out)).Str("site", site.ID).
				Msg("discovery strategy produced candidates")
			return out, nil
		}
	}

	return nil, lastErr
}

// Reset clears the in-memory seen-URL set, e.g. between crawl runs of a
// long-lived Discoverer instance.
func (d *Discoverer) Reset() {
	d.seen.reset()
}
