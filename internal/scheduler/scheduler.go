// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/user/coursestate/internal/state"
)

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Pruner removes history snapshots older than the retention window.
type Pruner struct {
	db        *gorm.DB
	retention time.Duration
	batchSize int
}

func NewPruner(db *gorm.DB, retention time.Duration, batchSize int) *Pruner {
	return &Pruner{db: db, retention: retention, batchSize: batchSize}
}

// Run prunes one pass and returns the number of rows removed.
func (p *Pruner) Run(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-p.retention)
	return state.PruneHistory(ctx, p.db, cutoff, p.batchSize)
}

// Scheduler fires the history pruner on a cron schedule.
type Scheduler struct {
	pruner   *Pruner
	schedule string
	cron     *cron.Cron
}

// New creates a Scheduler that runs the pruner on the given cron schedule.
func New(pruner *Pruner, schedule string) *Scheduler {
	return &Scheduler{
		pruner:   pruner,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the cron entry and starts the ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		removed, err := s.pruner.Run(ctx)
		if err != nil {
			slog.Error("history cleanup failed", "error", err)
			return
		}
		slog.Info("history cleanup finished", "rows_removed", removed)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	slog.Info("scheduled history cleanup", "schedule", s.schedule)
	return nil
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
