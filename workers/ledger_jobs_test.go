package workers

import (
	"context"
	"testing"
	"time"

	"quest-ledger/services"
)

func TestLedgerJobsRunsHealthProbeImmediately(t *testing.T) {
	store := services.NewMemoryStore()
	store.Close()
	health := services.NewStoreHealth(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched, err := LedgerJobs{
		Health:         health,
		HealthInterval: time.Hour,
		ProbeTimeout:   time.Second,
	}.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Shutdown()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ok, checked, _ := health.Status(); !checked.IsZero() {
			if ok {
				t.Fatalf("closed store reported healthy")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("health probe never ran")
}
