package encounter

import (
	"github.com/KirkDiggler/rpg-toolkit/tools/spatial"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/selection"
)

// ArenaType is the spatial room type of a scatter cluster
const ArenaType = "encounter_arena"

// cluster spreads one spawn group over a gridless disk centred on its spawn
// point. Members block each other, so no two share a sample position.
type cluster struct {
	arena  *spatial.BasicRoom
	center spatial.Position
	free   []spatial.Position
}

func newCluster(nodeID string, radius float64) *cluster {
	if radius <= 0 {
		return nil
	}
	grid := spatial.NewGridlessRoom(spatial.GridlessConfig{Width: 2 * radius, Height: 2 * radius})
	center := spatial.Position{X: radius, Y: radius}
	return &cluster{
		arena:  spatial.NewBasicRoom(spatial.BasicRoomConfig{ID: nodeID, Type: ArenaType, Grid: grid}),
		center: center,
		free:   grid.GetPositionsInRange(center, radius),
	}
}

// place seats h at a random free sample and returns its offset from the
// spawn point. An exhausted cluster stacks the rest on the spawn point.
func (cl *cluster) place(h *Hostile, rnd selection.Source) entities.Position {
	if cl == nil {
		return entities.Position{}
	}
	for len(cl.free) > 0 {
		i := min(int(rnd.Float64()*float64(len(cl.free))), len(cl.free)-1)
		pos := cl.free[i]
		if !cl.arena.CanPlaceEntity(h, pos) {
			last := len(cl.free) - 1
			cl.free[i] = cl.free[last]
			cl.free = cl.free[:last]
			continue
		}
		if err := cl.arena.PlaceEntity(h, pos); err != nil {
			break
		}
		off := pos.Subtract(cl.center)
		return entities.Position{X: off.X, Y: off.Y}
	}
	return entities.Position{}
}
