// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/coursestate/internal/state"
	"github.com/user/coursestate/internal/types"
)

func TestPrunerRun(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := state.Migrate(db); err != nil {
		t.Fatal(err)
	}
	client := state.NewClient(db, nil)
	ctx := context.Background()

	key := types.BlockKey{Course: "course-v1:TestX", BlockType: "problem", BlockID: "b1"}
	if err := client.SetMany(ctx, "alice", map[types.BlockKey]map[string]any{
		key: {"a": 1},
	}, types.ScopeUserState); err != nil {
		t.Fatal(err)
	}

	// A long retention window keeps everything.
	removed, err := NewPruner(db, 24*time.Hour, 100).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("expected nothing pruned within retention, got %d", removed)
	}

	// A zero-length window prunes the snapshot just written.
	removed, err = NewPruner(db, 0, 100).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("expected 1 row pruned, got %d", removed)
	}
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := state.Migrate(db); err != nil {
		t.Fatal(err)
	}

	sched := New(NewPruner(db, time.Hour, 100), "not a schedule")
	if err := sched.Start(context.Background()); err == nil {
		sched.Stop()
		t.Fatal("expected error for invalid cron expression")
	}
}
