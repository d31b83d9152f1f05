package encounter

import (
	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
)

// State is a controller's position in the wave sequence
type State string

// Controller states. Cleared is terminal.
const (
	StateIdle          State = "idle"
	StateSpawning      State = "spawning"
	StateAwaitingClear State = "awaiting_clear"
	StateCleared       State = "cleared"
)

// DefaultScatterRadius spreads group members when the wave does not set a radius
const DefaultScatterRadius = 1.5

// StartInput configures the waves of an encounter
type StartInput struct {
	TotalWaves int
	Waves      []entities.WaveSpec
}

// StartOutput reports the controller state after Start
type StartOutput struct {
	State   State
	Spawned []*Hostile
}

// HostileDeathOutput reports the controller state after a death
type HostileDeathOutput struct {
	State State
	// Spawned holds the next wave when the death emptied the previous one
	Spawned []*Hostile
	// Cleared is true only for the death that cleared the room
	Cleared bool
}

// Snapshot is a read-only view of a controller
type Snapshot struct {
	NodeID     string
	State      State
	WaveIndex  int
	TotalWaves int
	Alive      int
	Spawned    int
	Cleared    bool
}

// TierFor returns the hostile tier that may spawn in a room type
func TierFor(roomType entities.RoomType) entities.HostileTier {
	switch roomType {
	case entities.RoomTypeBoss:
		return entities.HostileTierBoss
	case entities.RoomTypeElite:
		return entities.HostileTierElite
	default:
		return entities.HostileTierBasic
	}
}
