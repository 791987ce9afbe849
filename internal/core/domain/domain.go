// Package domain holds the shared record types passed between the
// registries, the host pacer, the discoverer, the extractor and the stores.
package domain

import "time"

// Domain groups a set of Sites under one topical configuration: a keyword
// vocabulary used for relevance gating and quality scoring, and a shared
// rate/quality policy applied to every Site unless the Site overrides it.
type Domain struct {
	ID         string
	Name       string
	Active     bool
	Keywords   []string
	Policy     Policy
	MaxResults int // retriever search result cap, dev- or prod-selected at registry load time
}

// Policy is the tunable crawl behaviour shared by a Domain and optionally
// overridden per Site.
type Policy struct {
	RequestsPerSecond float64
	MaxConcurrent     int
	MaxPagesPerSite   int
	MaxDepth          int
	RefreshAfter      time.Duration
	MaxFailures       int
}

// Site is one crawl target belonging to a Domain.
type Site struct {
	ID             string
	DomainID       string
	Name           string
	BaseURL        string
	Active         bool
	DiscoveryHints []string // seed category/homepage paths, optional
	PolicyOverride *Policy
}

// EffectivePolicy returns the Site's override merged over its Domain's base
// policy, falling back to the Domain's values for any zero field.
func (s Site) EffectivePolicy(base Policy) Policy {
	if s.PolicyOverride == nil {
		return base
	}
	p := base
	o := *s.PolicyOverride
	if o.RequestsPerSecond != 0 {
		p.RequestsPerSecond = o.RequestsPerSecond
	}
	if o.MaxConcurrent != 0 {
		p.MaxConcurrent = o.MaxConcurrent
	}
	if o.MaxPagesPerSite != 0 {
		p.MaxPagesPerSite = o.MaxPagesPerSite
	}
	if o.MaxDepth != 0 {
		p.MaxDepth = o.MaxDepth
	}
	if o.RefreshAfter != 0 {
		p.RefreshAfter = o.RefreshAfter
	}
	if o.MaxFailures != 0 {
		p.MaxFailures = o.MaxFailures
	}
	return p
}

// LinkState is the lifecycle state of a DiscoveredLink.
type LinkState string

const (
	LinkStateNew      LinkState = "new"
	LinkStateCrawling LinkState = "crawling"
	LinkStateCrawled  LinkState = "crawled"
	LinkStateFailed   LinkState = "failed"
	LinkStateBlocked  LinkState = "blocked"
	LinkStateObsolete LinkState = "obsolete"
)

// DiscoveredLink is one URL under a Site, tracked through the crawl
// lifecycle: new -> crawling -> crawled|failed -> blocked|obsolete.
type DiscoveredLink struct {
	ID            string
	SiteID        string
	URL           string
	State         LinkState
	DiscoveredAt  time.Time
	DiscoveredVia string // strategy name: spider, sitemap, category, homepage
	Depth         int
	LastCrawledAt *time.Time
	ErrorCount    int
	LastError     string
	ArticleID     *string
}

// CrawlAttempt is an audit row recorded for every extraction attempt against
// a DiscoveredLink, successful or not.
type CrawlAttempt struct {
	ID         string
	LinkID     string
	StartedAt  time.Time
	FinishedAt time.Time
	Success    bool
	Error      string
	HTTPStatus int
}

// ExtractedArticle is the relational record of a successfully extracted
// page: everything except the embedding vector, which lives in the Vector
// Store as an ArticleVector keyed by VectorID.
type ExtractedArticle struct {
	ID           string
	LinkID       string
	SiteID       string
	DomainID     string
	URL          string
	Title        string
	Author       string
	PublishedAt  *time.Time
	Language     string
	SourceName   string
	WordCount    int
	QualityScore float64
	Keywords     []string
	ContentHash  string
	VectorID     *string
	ExtractedAt  time.Time
}

// ArticleVector is the Vector Store record: the embedding plus enough
// metadata to filter a similarity search without a relational join.
type ArticleVector struct {
	ID        string
	ArticleID string
	DomainID  string
	Embedding []float32
	Quality   float64
	CreatedAt time.Time
}

// JobType enumerates the Scheduler's recurring job kinds.
type JobType string

const (
	JobTypeCrawlDomain JobType = "crawl_domain"
	JobTypeCrawlSite   JobType = "crawl_site"
	JobTypeRefresh     JobType = "refresh"
	JobTypeCleanup     JobType = "cleanup"
	JobTypeSync        JobType = "sync"
)

// JobStatus is the lifecycle state of a scheduled Job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is one unit of scheduled work, held in the Scheduler's in-memory
// priority queue and mirrored into history once it finishes.
type Job struct {
	ID          string
	Type        JobType
	TargetID    string // Domain ID or Site ID, depending on Type
	Priority    int
	ScheduledAt time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	Status      JobStatus
	Error       string
}

// CrawlStats is a per-run rollup written by the Crawl Orchestrator and read
// by the stats operation.
type CrawlStats struct {
	JobID             string
	SiteID            string
	DomainID          string
	LinksDiscovered   int
	LinksCrawled      int
	ArticlesExtracted int
	Errors            int
	StartedAt         time.Time
	FinishedAt        time.Time
}

// ReconciliationHint is written by the Store Coordinator when the relational
// insert fails after the vector write and the orphaned vector object cannot
// be deleted. A failed CRAWLED transition after both inserts records no hint.
// The Sync job checks each hint's vector object, resets a still-CRAWLED link
// to FAILED "store-write" when that object is gone, and deletes the hint; it
// does not retry any link-state transition.
type ReconciliationHint struct {
	ID        string
	LinkID    string
	VectorID  string
	CreatedAt time.Time
}
