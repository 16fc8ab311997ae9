package jobs_test

import (
	"testing"
	"time"

	"github.com/limbo/serenity/internal/docstore"
	"github.com/limbo/serenity/internal/jobs"
	"github.com/limbo/serenity/internal/repository"
)

func TestSchedulerStopsCleanly(t *testing.T) {
	store := docstore.NewMemoryStore()
	job := jobs.NewAggregationJob(
		repository.NewUsersRepo(store),
		repository.NewActivityRepo(store),
		repository.NewSnapshotsRepo(store),
	)
	sched := jobs.NewScheduler(job, 2)
	sched.Start()
	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}
