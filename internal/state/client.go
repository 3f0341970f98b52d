// internal/state/client.go
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/user/coursestate/internal/telemetry"
	"github.com/user/coursestate/internal/types"
)

// chunkSize bounds the number of block IDs in a single IN query. Lookups
// are partitioned by course first, then chunked, so one request never turns
// into an unbounded result set.
const chunkSize = 500

// Client implements types.UserStateStore on top of the gorm models.
//
// A note on the stored format: the state column holds a serialized JSON
// mapping and may be NULL. NULL means the user never touched the block;
// "{}" means the block stored state at some point that has since been
// cleared. GetMany treats both as "no state", but GetHistory still reports
// cleared snapshots, so the two remain distinguishable through history.
type Client struct {
	db   *gorm.DB
	sink telemetry.Sink
}

// NewClient returns a store backed by db. The sink receives operation
// telemetry; it is guarded so a misbehaving sink cannot fail a store call.
// A nil sink disables telemetry.
func NewClient(db *gorm.DB, sink telemetry.Sink) *Client {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Client{db: db, sink: telemetry.NewGuard(sink)}
}

func checkScope(scope types.Scope) error {
	if scope != types.ScopeUserState {
		return fmt.Errorf("%w, not %q", types.ErrUnsupportedScope, scope)
	}
	return nil
}

// mapErr folds backend failures into the store's error vocabulary so that
// driver errors never leak to callers.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", types.ErrServiceUnavailable, err)
	}
}

// findModules loads the StudentModule rows for the given user and block
// keys. Keys are grouped by course and each course's lookup is chunked.
// Rows come back paired with the key they matched.
func (c *Client) findModules(ctx context.Context, username types.Username, blockKeys []types.BlockKey) ([]moduleMatch, error) {
	byCourse := make(map[types.CourseID][]types.BlockKey)
	for _, key := range blockKeys {
		byCourse[key.Course] = append(byCourse[key.Course], key)
	}

	var matches []moduleMatch
	for course, keys := range byCourse {
		wanted := make(map[types.BlockKey]bool, len(keys))
		ids := make([]string, 0, len(keys))
		for _, key := range keys {
			wanted[key] = true
			ids = append(ids, key.BlockID)
		}

		for start := 0; start < len(ids); start += chunkSize {
			end := min(start+chunkSize, len(ids))

			var rows []StudentModule
			err := c.db.WithContext(ctx).
				Where("username = ? AND course_id = ? AND block_id IN ?", string(username), string(course), ids[start:end]).
				Find(&rows).Error
			if err != nil {
				return nil, mapErr(err)
			}

			for _, row := range rows {
				key := types.BlockKey{Course: course, BlockType: row.BlockType, BlockID: row.BlockID}
				// The IN clause only constrains block_id; drop rows whose
				// block type does not match a requested key.
				if !wanted[key] {
					continue
				}
				matches = append(matches, moduleMatch{module: row, key: key})
			}
		}
	}
	return matches, nil
}

type moduleMatch struct {
	module StudentModule
	key    types.BlockKey
}

// GetMany returns the stored state for each block in blockKeys that has a
// populated mapping, optionally restricted to a subset of fields.
func (c *Client) GetMany(ctx context.Context, username types.Username, blockKeys []types.BlockKey, scope types.Scope, fields []string) ([]types.BlockUserState, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}

	start := time.Now()
	c.sink.Histogram("get_many.blks_requested", float64(len(blockKeys)), nil)

	matches, err := c.findModules(ctx, username, blockKeys)
	if err != nil {
		return nil, err
	}

	out := make([]types.BlockUserState, 0, len(matches))
	for _, m := range matches {
		if m.module.State == nil {
			c.sink.Increment("get_many.empty_state", nil)
			continue
		}

		stateSize := len(m.module.State)
		c.sink.Histogram("get_many.block_size", float64(stateSize), nil)

		stored := make(map[string]any)
		if err := json.Unmarshal(m.module.State, &stored); err != nil {
			return nil, fmt.Errorf("decode state for %s: %w", m.key, err)
		}

		// Cleared state reads as absent.
		if len(stored) == 0 {
			continue
		}

		tags := telemetry.Tags{"block_type": m.key.BlockType}
		c.sink.Increment("get_many.count", tags)
		c.sink.Histogram("get_many.size", float64(stateSize), tags)

		if fields != nil {
			filtered := make(map[string]any, len(fields))
			for _, f := range fields {
				if v, ok := stored[f]; ok {
					filtered[f] = v
				}
			}
			stored = filtered
		}

		out = append(out, types.BlockUserState{
			Username: username,
			BlockKey: m.key,
			State:    stored,
			Modified: m.module.ModifiedAt,
			Scope:    scope,
		})
	}

	c.sink.Histogram("get_many.blks_out", float64(len(out)), nil)
	c.sink.Histogram("get_many.response_time", float64(time.Since(start).Milliseconds()), nil)
	return out, nil
}

// SetMany overlays each supplied field mapping onto the stored mapping for
// its block. The merge is read-modify-write inside a transaction per block,
// so concurrent writers to disjoint fields do not clobber each other. A
// racing insert surfaces as a duplicate-key error; the conflicting write is
// logged and dropped rather than failing the whole batch.
func (c *Client) SetMany(ctx context.Context, username types.Username, updates map[types.BlockKey]map[string]any, scope types.Scope) error {
	if err := checkScope(scope); err != nil {
		return err
	}

	// Anonymous identities are never persisted.
	if username.IsAnonymous() {
		return nil
	}

	start := time.Now()
	for key, fields := range updates {
		raw, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("encode state for %s: %w", key, err)
		}

		module := StudentModule{
			Username:  string(username),
			CourseID:  string(key.Course),
			BlockType: key.BlockType,
			BlockID:   key.BlockID,
		}
		res := c.db.WithContext(ctx).
			Where(&StudentModule{
				Username:  string(username),
				CourseID:  string(key.Course),
				BlockType: key.BlockType,
				BlockID:   key.BlockID,
			}).
			Attrs(StudentModule{State: datatypes.JSON(raw)}).
			FirstOrCreate(&module)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				c.logConflict(username, key, len(updates))
				continue
			}
			return mapErr(res.Error)
		}

		created := res.RowsAffected > 0
		fieldsBefore, fieldsAfter := len(fields), len(fields)
		stateSize := len(raw)

		if created {
			c.sink.Increment("set_many.state_created", nil)
		} else {
			mergedSize, before, after, err := c.mergeFields(ctx, module.ID, fields)
			if err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					c.logConflict(username, key, len(updates))
					continue
				}
				return mapErr(err)
			}
			fieldsBefore, fieldsAfter, stateSize = before, after, mergedSize
			c.sink.Increment("set_many.state_updated", nil)
		}

		tags := telemetry.Tags{"block_type": key.BlockType}
		c.sink.Increment("set_many.count", tags)
		c.sink.Histogram("set_many.size", float64(stateSize), tags)
		c.sink.Histogram("set_many.fields_in", float64(len(fields)), nil)

		fieldsSet := fieldsAfter - fieldsBefore
		if created {
			fieldsSet = len(fields)
		}
		c.sink.Histogram("set_many.fields_set", float64(fieldsSet), nil)
		c.sink.Histogram("set_many.fields_updated", float64(max(0, len(fields)-fieldsSet)), nil)
	}

	c.sink.Histogram("set_many.blks_updated", float64(len(updates)), nil)
	c.sink.Histogram("set_many.response_time", float64(time.Since(start).Milliseconds()), nil)
	return nil
}

// mergeFields re-reads the row inside a transaction, overlays the supplied
// fields, and saves. Returns the serialized size and the field counts
// before and after the merge.
func (c *Client) mergeFields(ctx context.Context, moduleID int64, fields map[string]any) (size, before, after int, err error) {
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current StudentModule
		if err := tx.First(&current, moduleID).Error; err != nil {
			return err
		}

		merged := make(map[string]any)
		if current.State != nil {
			if err := json.Unmarshal(current.State, &merged); err != nil {
				return fmt.Errorf("decode stored state: %w", err)
			}
		}
		before = len(merged)
		for k, v := range fields {
			merged[k] = v
		}
		after = len(merged)

		raw, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode merged state: %w", err)
		}
		size = len(raw)

		current.State = datatypes.JSON(raw)
		return tx.Save(&current).Error
	})
	return size, before, after, err
}

func (c *Client) logConflict(username types.Username, key types.BlockKey, batchSize int) {
	slog.Warn("set_many: conflicting insert, dropping write",
		"username", string(username),
		"course_id", string(key.Course),
		"block_key", key.String(),
		"batch_size", batchSize,
	)
	c.sink.Increment("set_many.conflict", nil)
}

// DeleteMany clears the whole stored mapping for each block when fields is
// nil, or removes only the named fields otherwise. The row is kept either
// way; a cleared mapping is stored as "{}" so history can still distinguish
// "cleared" from "never touched".
func (c *Client) DeleteMany(ctx context.Context, username types.Username, blockKeys []types.BlockKey, scope types.Scope, fields []string) error {
	if err := checkScope(scope); err != nil {
		return err
	}

	start := time.Now()
	if fields == nil {
		c.sink.Increment("delete_many.empty_state", nil)
	} else {
		c.sink.Histogram("delete_many.field_count", float64(len(fields)), nil)
	}
	c.sink.Histogram("delete_many.block_count", float64(len(blockKeys)), nil)

	matches, err := c.findModules(ctx, username, blockKeys)
	if err != nil {
		return err
	}

	for _, m := range matches {
		module := m.module
		if fields == nil {
			module.State = datatypes.JSON("{}")
		} else {
			current := make(map[string]any)
			if module.State != nil {
				if err := json.Unmarshal(module.State, &current); err != nil {
					return fmt.Errorf("decode state for %s: %w", m.key, err)
				}
			}
			for _, f := range fields {
				delete(current, f)
			}
			raw, err := json.Marshal(current)
			if err != nil {
				return fmt.Errorf("encode state for %s: %w", m.key, err)
			}
			module.State = datatypes.JSON(raw)
		}

		if err := c.db.WithContext(ctx).Save(&module).Error; err != nil {
			return mapErr(err)
		}
	}

	c.sink.Histogram("delete_many.response_time", float64(time.Since(start).Milliseconds()), nil)
	return nil
}

// GetHistory returns every recorded snapshot for one block, newest first.
// Snapshots whose mapping was empty are reported with a nil State, matching
// the soft-delete convention.
func (c *Client) GetHistory(ctx context.Context, username types.Username, blockKey types.BlockKey, scope types.Scope) ([]types.BlockUserState, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}

	matches, err := c.findModules(ctx, username, []types.BlockKey{blockKey})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, types.ErrDoesNotExist
	}

	var entries []StudentModuleHistory
	err = c.db.WithContext(ctx).
		Where("student_module_id = ?", matches[0].module.ID).
		Order("created_at DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, mapErr(err)
	}

	// A current row with no history rows is treated the same as a block
	// that was never touched.
	if len(entries) == 0 {
		return nil, types.ErrDoesNotExist
	}

	out := make([]types.BlockUserState, 0, len(entries))
	for _, entry := range entries {
		var snapshot map[string]any
		if entry.State != nil {
			decoded := make(map[string]any)
			if err := json.Unmarshal(entry.State, &decoded); err != nil {
				return nil, fmt.Errorf("decode history for %s: %w", blockKey, err)
			}
			// Empty snapshots read as "no state".
			if len(decoded) > 0 {
				snapshot = decoded
			}
		}
		out = append(out, types.BlockUserState{
			Username: username,
			BlockKey: blockKey,
			State:    snapshot,
			Modified: entry.CreatedAt,
			Scope:    scope,
		})
	}
	return out, nil
}

// IterAllForBlock scans every user's state for one block. No ordering
// guarantee; meant for offline jobs.
func (c *Client) IterAllForBlock(ctx context.Context, blockKey types.BlockKey, scope types.Scope, batchSize int) ([]types.BlockUserState, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	return nil, types.ErrNotImplemented
}

// IterAllForCourse scans all state in one course. No ordering guarantee;
// meant for offline jobs.
func (c *Client) IterAllForCourse(ctx context.Context, course types.CourseID, blockType string, scope types.Scope, batchSize int) ([]types.BlockUserState, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	return nil, types.ErrNotImplemented
}
