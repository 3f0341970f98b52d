// internal/types/models.go
package types

import "time"

// BlockUserState is one user's stored field values for one block at a point
// in time. A nil State on a history entry means the state had been cleared
// when the snapshot was taken.
type BlockUserState struct {
	Username Username       `json:"username"`
	BlockKey BlockKey       `json:"block_key"`
	State    map[string]any `json:"state"`
	Modified time.Time      `json:"modified"`
	Scope    Scope          `json:"scope"`
}

// UserPrefs carries the preference values surfaced to request handlers.
// Nil pointers mean the user has not set the preference.
type UserPrefs struct {
	Timezone *string `json:"user_timezone"`
	Language *string `json:"user_language"`
}
