package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
	"github.com/fcollova/tanea-crawler/internal/platform/clock"
)

type recordingRunner struct {
	ran []domain.Job
	err error
}

func (r *recordingRunner) Run(_ context.Context, job domain.Job) error {
	r.ran = append(r.ran, job)
	return r.err
}

func TestScheduler_RunsHighestPriorityFirst(t *testing.T) {
	runner := &recordingRunner{}
	s := New(runner, clock.NewFake(time.Unix(0, 0)), zerolog.Nop(), 10)

	s.Enqueue(domain.Job{Type: domain.JobTypeCleanup, Priority: 1})
	s.Enqueue(domain.Job{Type: domain.JobTypeCrawlDomain, Priority: 10})
	s.Enqueue(domain.Job{Type: domain.JobTypeSync, Priority: 5})

	require.True(t, s.RunOnce(t.Context()))
	require.True(t, s.RunOnce(t.Context()))
	require.True(t, s.RunOnce(t.Context()))
	assert.False(t, s.RunOnce(t.Context()))

	require.Len(t, runner.ran, 3)
	assert.Equal(t, domain.JobTypeCrawlDomain, runner.ran[0].Type)
	assert.Equal(t, domain.JobTypeSync, runner.ran[1].Type)
	assert.Equal(t, domain.JobTypeCleanup, runner.ran[2].Type)
}

func TestScheduler_RecordsFailureInHistory(t *testing.T) {
	runner := &recordingRunner{err: errors.New("boom")}
	s := New(runner, clock.NewFake(time.Unix(0, 0)), zerolog.Nop(), 10)

	s.Enqueue(domain.Job{Type: domain.JobTypeRefresh})
	s.RunOnce(t.Context())

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, domain.JobStatusFailed, history[0].Status)
	assert.Equal(t, "boom", history[0].Error)
}

func TestScheduler_DrainEmptiesQueue(t *testing.T) {
	runner := &recordingRunner{}
	s := New(runner, clock.NewFake(time.Unix(0, 0)), zerolog.Nop(), 10)

	for i := 0; i < 5; i++ {
		s.Enqueue(domain.Job{Type: domain.JobTypeCrawlSite})
	}
	s.Drain(t.Context())

	assert.Equal(t, 0, s.Pending())
	assert.Len(t, runner.ran, 5)
}
