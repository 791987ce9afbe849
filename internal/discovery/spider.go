package discovery

import (
	"container/heap"
	"context"
	"fmt"
	"net/http"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/rs/zerolog"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
)

const (
	spiderBloomExpectedPages = 200_000
	spiderBloomFalsePositive = 0.01
)

// frontierItem is one pending page in the focused spider's breadth-first
// frontier, prioritized by depth: shallower pages are visited first.
type frontierItem struct {
	url   string
	depth int
	index int
}

type frontierHeap []*frontierItem

func (h frontierHeap) Len() int            { return len(h) }
func (h frontierHeap) Less(i, j int) bool  { return h[i].depth < h[j].depth }
func (h frontierHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *frontierHeap) Push(x interface{}) {
	item := x.(*frontierItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *frontierHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// FocusedSpiderStrategy performs a bounded breadth-first crawl of a Site
// starting at its base URL, following only same-host links up to the
// strategy's maxDepth, stopping once maxPages pages have been visited (both
// set by NewFocusedSpiderStrategy, not by the Site's Policy). It is the most expensive strategy and runs first because its
// results are the most directly targeted to the Site's structure.
type FocusedSpiderStrategy struct {
	httpClient *http.Client
	userAgent  string
	maxPages   int
	maxDepth   int
	logger     zerolog.Logger
}

// NewFocusedSpiderStrategy builds a FocusedSpiderStrategy bounded by the
// given page and depth budgets.
func NewFocusedSpiderStrategy(userAgent string, maxPages, maxDepth int, logger zerolog.Logger) *FocusedSpiderStrategy {
	if maxPages <= 0 {
		maxPages = 200
	}
	if maxDepth <= 0 {
		maxDepth = 2
	}
	return &FocusedSpiderStrategy{
		httpClient: &http.Client{Timeout: discoveryTimeout},
		userAgent:  userAgent,
		maxPages:   maxPages,
		maxDepth:   maxDepth,
		logger:     logger,
	}
}

func (s *FocusedSpiderStrategy) Name() string { return "focused_spider" }

func (s *FocusedSpiderStrategy) Discover(ctx context.Context, site domain.Site) ([]string, error) {
	visited := bloom.NewWithEstimates(spiderBloomExpectedPages, spiderBloomFalsePositive)

	frontier := &frontierHeap{}
	heap.Init(frontier)
	heap.Push(frontier, &frontierItem{url: site.BaseURL, depth: 0})
	visited.AddString(site.BaseURL)

	var candidates []string
	pagesVisited := 0

	for frontier.Len() > 0 && pagesVisited < s.maxPages {
		select {
		case <-ctx.Done():
			return candidates, ctx.Err()
		default:
		}

		item := heap.Pop(frontier).(*frontierItem)
		pagesVisited++

		links, err := anchorsFrom(ctx, s.httpClient, s.userAgent, item.url)
		if err != nil {
			s.logger.Debug().Err(err).Str("page", item.url).Msg("spider page fetch failed")
			continue
		}

		for _, link := range links {
			if !isValidCrawlURL(link) {
				continue
			}
			candidates = append(candidates, link)

			if item.depth >= s.maxDepth {
				continue
			}
			if visited.TestString(link) {
				continue
			}
			visited.AddString(link)
			heap.Push(frontier, &frontierItem{url: link, depth: item.depth + 1})
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("focused spider found no candidates for site %s", site.ID)
	}

	return dedupe(candidates), nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
