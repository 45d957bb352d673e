// ABOUTME: Default IdGenerator — produces execution ids via google/uuid
// ABOUTME: Swappable through types.IdGenerator so tests can supply deterministic ids

package idgen

import (
	"github.com/google/uuid"

	"github.com/corewave/orchestrator/pkg/types"
)

// UUID is the default types.IdGenerator, handing out random v4 UUIDs.
type UUID struct{}

func New() types.IdGenerator { return UUID{} }

func (UUID) NextID() string { return uuid.NewString() }
