package room

import (
	"time"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/orchestrators/encounter"
)

// Portal is the concrete doorway for one outgoing edge of a live room
type Portal struct {
	EdgeID     string
	TargetID   string
	TargetType entities.RoomType
}

// Instance is the live form of a room node. At most one exists per node.
type Instance struct {
	ID       string
	NodeID   string
	Floor    int
	RoomType entities.RoomType
	Template *entities.RoomTemplate
	// Degraded is set when no template matched the room type and another was used
	Degraded bool
	Handle   string
	Origin   entities.Position

	Encounter  *encounter.Controller
	Portals    []Portal
	RareReward bool
	CreatedAt  time.Time
}

// EntryPosition is the world position an actor is placed at on entry
func (i *Instance) EntryPosition() entities.Position {
	if i.Template == nil {
		return i.Origin
	}
	return i.Origin.Add(i.Template.EntryPoint)
}
