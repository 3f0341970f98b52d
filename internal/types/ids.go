// internal/types/ids.go
package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Username string
type CourseID string
type Scope string

// ScopeUserState is the only scope this system stores: per-user,
// per-block state. All other scope values are rejected.
const ScopeUserState Scope = "user_state"

// BlockKey identifies one addressable unit of learning content. The course
// is embedded so that lookups can be partitioned by course.
type BlockKey struct {
	Course    CourseID
	BlockType string
	BlockID   string
}

func (k BlockKey) String() string {
	return fmt.Sprintf("%s/%s@%s", k.Course, k.BlockType, k.BlockID)
}

// ParseBlockKey parses the "course/type@id" form produced by String.
func ParseBlockKey(s string) (BlockKey, error) {
	course, rest, ok := strings.Cut(s, "/")
	if !ok {
		return BlockKey{}, fmt.Errorf("invalid block key %q", s)
	}
	blockType, blockID, ok := strings.Cut(rest, "@")
	if !ok || course == "" || blockType == "" || blockID == "" {
		return BlockKey{}, fmt.Errorf("invalid block key %q", s)
	}
	return BlockKey{Course: CourseID(course), BlockType: blockType, BlockID: blockID}, nil
}

const anonymousPrefix = "anon-"

// NewAnonymousUsername mints a throwaway identity for an unauthenticated
// visitor. State writes for such identities are never persisted.
func NewAnonymousUsername() Username {
	return Username(anonymousPrefix + uuid.New().String())
}

// IsAnonymous reports whether the username names an unauthenticated identity.
func (u Username) IsAnonymous() bool {
	return u == "" || strings.HasPrefix(string(u), anonymousPrefix)
}
