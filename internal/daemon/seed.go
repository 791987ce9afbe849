package daemon

import (
	"context"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
	"github.com/fcollova/tanea-crawler/internal/scheduler"
)

const (
	priorityCrawl   = 10
	priorityRefresh = 5
	priorityCleanup = 1
	prioritySync    = 1
)

// Seed enqueues one recurring job per active Domain (crawl_domain, then
// refresh), plus one cleanup and one sync job for the whole process. It is
// passed as scheduler.LoopConfig.Seed so it runs every SeedInterval tick.
func (r *Runner) Seed(ctx context.Context, s *scheduler.Scheduler) {
	for _, dom := range r.reg.ActiveDomains() {
		s.Enqueue(domain.Job{
			Type:     domain.JobTypeCrawlDomain,
			TargetID: dom.ID,
			Priority: priorityCrawl,
		})
		s.Enqueue(domain.Job{
			Type:     domain.JobTypeRefresh,
			TargetID: dom.ID,
			Priority: priorityRefresh,
		})
	}
	s.Enqueue(domain.Job{Type: domain.JobTypeCleanup, Priority: priorityCleanup})
	s.Enqueue(domain.Job{Type: domain.JobTypeSync, Priority: prioritySync})
}
