// Package maintenance runs periodic database upkeep on a cron schedule.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/tablekit/tablekit/internal/dbmanager"
)

// Scheduler periodically refreshes planner statistics and optionally
// vacuums the database.
type Scheduler struct {
	mgr     *dbmanager.Manager
	cron    *cron.Cron
	entryID cron.EntryID
	vacuum  bool

	mu      sync.Mutex
	running bool
}

// New creates a stopped scheduler bound to the manager.
func New(mgr *dbmanager.Manager) *Scheduler {
	return &Scheduler{
		mgr:  mgr,
		cron: cron.New(),
	}
}

// Start begins running maintenance on the given cron schedule. An empty
// schedule leaves the scheduler stopped. vacuum additionally rebuilds
// storage on each run.
func (s *Scheduler) Start(schedule string, vacuum bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule == "" {
		log.Debug().Msg("Maintenance scheduler not started (no schedule configured)")
		return nil
	}
	if s.running {
		return nil
	}

	s.vacuum = vacuum
	id, err := s.cron.AddFunc(schedule, s.run)
	if err != nil {
		return err
	}
	s.entryID = id
	s.cron.Start()
	s.running = true
	log.Info().Str("schedule", schedule).Bool("vacuum", vacuum).Msg("Maintenance scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	log.Info().Msg("Maintenance scheduler stopped")
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.mgr.Optimize(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduled optimize failed")
		return
	}
	if s.vacuum {
		if err := s.mgr.Vacuum(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled vacuum failed")
			return
		}
	}
	log.Debug().Msg("Scheduled maintenance complete")
}
