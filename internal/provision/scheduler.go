package provision

import (
	"context"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/loopgate/loopgate/internal/region"
)

// Scheduler re-runs provisioning on a cron schedule so servers added to a
// roster after startup still get listeners. Existing listeners are never
// closed by a refresh.
type Scheduler struct {
	pipeline *Pipeline
	units    []*region.Unit

	cron    *cron.Cron
	runMu   sync.Mutex // serializes overlapping refreshes
	lifeCtx context.Context
	cancel  context.CancelFunc
}

// NewScheduler validates the cron expression and builds a stopped
// scheduler.
func NewScheduler(pipeline *Pipeline, units []*region.Unit, schedule string) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, err
	}

	lifeCtx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		pipeline: pipeline,
		units:    units,
		cron:     cron.New(),
		lifeCtx:  lifeCtx,
		cancel:   cancel,
	}
	if _, err := s.cron.AddFunc(schedule, s.refresh); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// Start begins firing on schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[provision] refresh scheduler started")
}

// Stop halts the schedule and cancels any in-flight refresh fetches.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) refresh() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.lifeCtx.Err() != nil {
		return
	}
	log.Println("[provision] scheduled roster refresh")
	s.pipeline.ProvisionAll(s.lifeCtx, s.units)
}
