//go:build integration

package test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/coursestate/internal/scheduler"
	"github.com/user/coursestate/internal/state"
	"github.com/user/coursestate/internal/telemetry"
	"github.com/user/coursestate/internal/types"
)

func TestEndToEnd(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "integration.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := state.Migrate(db); err != nil {
		t.Fatal(err)
	}

	recorder := telemetry.NewRecorder()
	client := state.NewClient(db, recorder)
	ctx := context.Background()

	course := types.CourseID("course-v1:IntX")

	// Simulate a user working through several blocks.
	for i := 0; i < 5; i++ {
		key := types.BlockKey{Course: course, BlockType: "problem", BlockID: fmt.Sprintf("b%d", i)}
		updates := map[types.BlockKey]map[string]any{
			key: {"attempts": i, "done": i%2 == 0},
		}
		if err := client.SetMany(ctx, "alice", updates, types.ScopeUserState); err != nil {
			t.Fatal(err)
		}
	}

	keys := make([]types.BlockKey, 0, 5)
	for i := 0; i < 5; i++ {
		keys = append(keys, types.BlockKey{Course: course, BlockType: "problem", BlockID: fmt.Sprintf("b%d", i)})
	}

	states, err := client.GetMany(ctx, "alice", keys, types.ScopeUserState, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 5 {
		t.Fatalf("expected 5 blocks with state, got %d", len(states))
	}

	// Clear one block and check the tri-state semantics end to end.
	if err := client.DeleteMany(ctx, "alice", keys[:1], types.ScopeUserState, nil); err != nil {
		t.Fatal(err)
	}
	states, err = client.GetMany(ctx, "alice", keys, types.ScopeUserState, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 4 {
		t.Fatalf("expected 4 blocks after clear, got %d", len(states))
	}
	history, err := client.GetHistory(ctx, "alice", keys[0], types.ScopeUserState)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].State != nil {
		t.Fatalf("expected cleared snapshot newest in history, got %+v", history)
	}

	// Retention pass removes the accumulated snapshots but not current rows.
	pruner := scheduler.NewPruner(db, 0, 2)
	time.Sleep(10 * time.Millisecond)
	removed, err := pruner.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 6 {
		t.Fatalf("expected 6 history rows pruned, got %d", removed)
	}
	states, err = client.GetMany(ctx, "alice", keys, types.ScopeUserState, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 4 {
		t.Fatalf("current state should survive retention, got %d blocks", len(states))
	}
}
