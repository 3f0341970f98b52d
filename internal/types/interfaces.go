// internal/types/interfaces.go
package types

import "context"

// UserStateStore persists and retrieves per-user, per-block field state.
//
// A stored record is tri-state: absent (never touched), emptied (touched and
// then cleared), or populated. Absent and emptied are indistinguishable to
// GetMany; only GetHistory can tell them apart.
type UserStateStore interface {
	// GetMany returns the stored state for each block in blockKeys that has
	// a populated mapping. Blocks with absent or emptied state are skipped.
	// If fields is non-nil, each result carries only the intersection of
	// the requested and stored fields.
	GetMany(ctx context.Context, username Username, blockKeys []BlockKey, scope Scope, fields []string) ([]BlockUserState, error)

	// SetMany overlays each supplied field mapping onto the stored mapping
	// for its block, creating records as needed. Fields not mentioned are
	// preserved. Writes for anonymous identities are silent no-ops.
	SetMany(ctx context.Context, username Username, updates map[BlockKey]map[string]any, scope Scope) error

	// DeleteMany clears the whole mapping for each block when fields is nil,
	// or removes only the named fields otherwise. Blocks with no record are
	// skipped; fields not currently stored are ignored.
	DeleteMany(ctx context.Context, username Username, blockKeys []BlockKey, scope Scope, fields []string) error

	// GetHistory returns every recorded snapshot for one block, newest
	// first. It returns ErrDoesNotExist if the block was never touched.
	GetHistory(ctx context.Context, username Username, blockKey BlockKey, scope Scope) ([]BlockUserState, error)

	// IterAllForBlock scans every user's state for one block in batches of
	// batchSize, with no ordering guarantee. Offline use only.
	IterAllForBlock(ctx context.Context, blockKey BlockKey, scope Scope, batchSize int) ([]BlockUserState, error)

	// IterAllForCourse scans all state in one course, optionally restricted
	// to a block type, with no ordering guarantee. Offline use only.
	IterAllForCourse(ctx context.Context, course CourseID, blockType string, scope Scope, batchSize int) ([]BlockUserState, error)
}

// PreferenceProvider returns the named settings stored for one user.
type PreferenceProvider interface {
	Preferences(ctx context.Context, username Username) (map[string]string, error)
}
