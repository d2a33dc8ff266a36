// Package retention prunes expired day-bucketed usage counters. Counters
// expire logically at day rollover; this worker only reclaims table space.
package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// CounterPruner deletes counter rows older than a cutoff and reports how
// many rows were removed
type CounterPruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner runs retention passes over the usage counter table
type Pruner struct {
	counters      CounterPruner
	retentionDays int
	now           func() time.Time
}

// NewPruner creates a pruner that keeps retentionDays of counter history
func NewPruner(counters CounterPruner, retentionDays int) *Pruner {
	return &Pruner{
		counters:      counters,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Run executes one retention pass
func (p *Pruner) Run(ctx context.Context) error {
	cutoff := p.now().UTC().AddDate(0, 0, -p.retentionDays)
	deleted, err := p.counters.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retention pass failed: %w", err)
	}
	log.Printf("[retention] pruned %d usage counter rows older than %s", deleted, cutoff.Format("2006-01-02"))
	return nil
}

// Scheduler runs the pruner on a cron schedule
type Scheduler struct {
	cron   *cron.Cron
	pruner *Pruner
}

// NewScheduler wires the pruner onto the given cron spec ("0 3 * * *" runs
// daily at 03:00 UTC)
func NewScheduler(pruner *Pruner, spec string) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	s := &Scheduler{cron: c, pruner: pruner}

	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := pruner.Run(ctx); err != nil {
			log.Printf("[retention] scheduled run failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}

	return s, nil
}

// Start begins the schedule in a background goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for an in-flight run to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
