package encounter

import (
	"context"
	"sync"

	"github.com/KirkDiggler/rpg-toolkit/core"
	"github.com/KirkDiggler/rpg-toolkit/tools/spatial"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
)

// EntityType is the core.Entity type of every spawned hostile
const EntityType = "hostile"

// DeathFunc is called once when a hostile dies
type DeathFunc func(ctx context.Context, h *Hostile) error

// Hostile is one spawned enemy. Its death is reported through the callback it
// was spawned with.
type Hostile struct {
	id          string
	archetypeID string
	tier        entities.HostileTier
	wave        int
	position    entities.Position

	onDeath DeathFunc
	once    sync.Once
}

var (
	_ core.Entity       = (*Hostile)(nil)
	_ spatial.Placeable = (*Hostile)(nil)
)

// GetID implements core.Entity
func (h *Hostile) GetID() string { return h.id }

// GetType implements core.Entity
func (h *Hostile) GetType() string { return EntityType }

// GetSize implements spatial.Placeable
func (h *Hostile) GetSize() int { return 1 }

// BlocksMovement implements spatial.Placeable
func (h *Hostile) BlocksMovement() bool { return true }

// BlocksLineOfSight implements spatial.Placeable
func (h *Hostile) BlocksLineOfSight() bool { return false }

// ArchetypeID returns the hostile archetype it was spawned from
func (h *Hostile) ArchetypeID() string { return h.archetypeID }

// Tier returns the hostile's tier
func (h *Hostile) Tier() entities.HostileTier { return h.tier }

// Wave returns the wave index that spawned it
func (h *Hostile) Wave() int { return h.wave }

// Position returns the spawn position in world space
func (h *Hostile) Position() entities.Position { return h.position }

// Kill reports the hostile's death. Only the first call reaches the callback.
func (h *Hostile) Kill(ctx context.Context) error {
	var err error
	h.once.Do(func() {
		if h.onDeath != nil {
			err = h.onDeath(ctx, h)
		}
	})
	return err
}
