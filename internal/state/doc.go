// Package state provides the relational storage layer for per-user,
// per-block courseware state.
package state

import "github.com/user/coursestate/internal/types"

// Compile-time interface compliance check.
var _ types.UserStateStore = (*Client)(nil)
