// workers/ledger_jobs.go
package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"quest-ledger/services"

	"github.com/go-co-op/gocron/v2"
)

// LedgerJobs describes the periodic work run next to the HTTP server.
type LedgerJobs struct {
	Health         *services.StoreHealth
	HealthInterval time.Duration
	ProbeTimeout   time.Duration

	// Snapshots is optional; nil disables the export job.
	Snapshots        *services.SnapshotExporter
	SnapshotInterval time.Duration
}

// Start registers the jobs and starts the scheduler. Jobs stop when ctx is
// cancelled; callers should still Shutdown the returned scheduler.
func (j LedgerJobs) Start(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	if j.Health != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(j.HealthInterval),
			gocron.NewTask(func() {
				_ = j.Health.Probe(ctx, j.ProbeTimeout)
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		); err != nil {
			return nil, fmt.Errorf("schedule health probe: %w", err)
		}
	}

	if j.Snapshots != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(j.SnapshotInterval),
			gocron.NewTask(func() {
				if _, err := j.Snapshots.Export(ctx); err != nil {
					log.Printf("❌ [SNAPSHOT] Export failed: %v", err)
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, fmt.Errorf("schedule snapshot export: %w", err)
		}
	}

	sched.Start()
	log.Printf("⏱️ [JOBS] Scheduler started (health every %s, snapshots enabled=%t)", j.HealthInterval, j.Snapshots != nil)
	return sched, nil
}
