package topology

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/idgen"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/random"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/selection"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/roompool"
)

// FloorGenerator grows one floor of the graph at a time
type FloorGenerator interface {
	GenerateFloor(ctx context.Context, input *GenerateFloorInput) (*GenerateFloorOutput, error)
	UsedUniqueIDs() []string
	RestoreUniqueIDs(ids []string)
}

// GeneratorConfig holds the dependencies and tuning for floor generation
type GeneratorConfig struct {
	Graph   *Graph
	Catalog *roompool.Catalog

	// MinRooms and MaxRooms bound the room count per floor, start and boss included
	MinRooms int
	MaxRooms int
	// GridExtent bounds sampled cells to [-GridExtent, GridExtent]
	GridExtent           int
	MaxPlacementAttempts int

	ForceShopBeforeBoss     bool
	ForceRestBeforeBoss     bool
	PreventConsecutiveTypes bool
}

// Validate ensures all required dependencies are provided
func (c *GeneratorConfig) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}

	vb := errors.NewValidationBuilder()
	if c.Graph == nil {
		vb.RequiredField("Graph")
	}
	if c.Catalog == nil {
		vb.RequiredField("Catalog")
	}
	if c.MinRooms < 1 {
		vb.Field("MinRooms", "must be at least 1")
	}
	errors.ValidateBounds("Rooms", c.MinRooms, c.MaxRooms, vb)
	if c.GridExtent < 1 {
		vb.Field("GridExtent", "must be at least 1")
	}
	if c.MaxPlacementAttempts < 1 {
		vb.Field("MaxPlacementAttempts", "must be at least 1")
	}
	return vb.Build()
}

// Generator builds floors by querying room pools
type Generator struct {
	cfg GeneratorConfig

	mu   sync.Mutex
	used map[string]bool
}

// NewGenerator creates a floor generator
func NewGenerator(cfg *GeneratorConfig) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &Generator{cfg: *cfg, used: make(map[string]bool)}, nil
}

var _ FloorGenerator = (*Generator)(nil)

// GenerateFloorInput selects the floor and its seed
type GenerateFloorInput struct {
	Floor int
	Seed  int64
}

// GenerateFloorOutput describes the generated floor
type GenerateFloorOutput struct {
	StartID string
	BossID  string
	NodeIDs []string
	// Degraded counts slots that hit a fallback: placement, archetype or skipped
	Degraded int
}

// floorBuild carries the per-call state of one GenerateFloor run
type floorBuild struct {
	floor    int
	pool     *roompool.Pool
	src      random.Source
	roller   dice.Roller
	ids      idgen.Generator
	counts   map[entities.Category]int
	degraded int
}

// GenerateFloor grows a complete floor: start at the origin, regular rooms
// attached to their nearest neighbor with a free door, and the boss last.
func (g *Generator) GenerateFloor(ctx context.Context, input *GenerateFloorInput) (*GenerateFloorOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.Floor < 1 {
		return nil, errors.InvalidArgumentf("floor must be at least 1, got %d", input.Floor)
	}
	if g.cfg.Graph.HasFloor(input.Floor) {
		return nil, errors.AlreadyExistsf("floor %d was already generated", input.Floor)
	}

	src := random.New(input.Seed)
	b := &floorBuild{
		floor:  input.Floor,
		pool:   g.cfg.Catalog.ForFloor(input.Floor),
		src:    src,
		roller: random.NewRoller(src),
		ids:    idgen.FloorNodes(input.Floor),
		counts: make(map[entities.Category]int),
	}

	total, err := random.Between(b.roller, g.cfg.MinRooms, g.cfg.MaxRooms)
	if err != nil {
		return nil, errors.Wrap(err, "failed to roll room count")
	}

	slog.Info("Generating floor",
		"floor", b.floor,
		"pool", b.pool.Name(),
		"rooms", total,
		"seed", input.Seed,
	)

	start, err := g.cfg.Graph.CreateNode(&CreateNodeInput{
		ID:        b.ids.Generate(),
		Floor:     b.floor,
		Position:  entities.Origin,
		Archetype: b.pool.Entry(b.floor),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create start room")
	}
	b.counts[roompool.CategoryOf(start.Type())]++

	hasBoss := b.pool.Has(entities.CategoryBoss, b.floor)
	regular := total - 1
	if hasBoss {
		regular--
	}

	for i := 0; i < regular; i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.FromContext(err, "floor generation canceled")
		}
		if !g.growRegular(b, regular-i) {
			b.degraded++
		}
	}

	if hasBoss && !g.growBoss(b) {
		b.degraded++
	}

	g.topUpDoors(b)
	g.ensureConnected(b, start.ID)

	special, err := g.cfg.Graph.AssignSpecialRooms(b.floor)
	if err != nil {
		return nil, errors.Wrap(err, "failed to assign special rooms")
	}

	out := &GenerateFloorOutput{
		StartID:  special.StartID,
		BossID:   special.BossID,
		Degraded: b.degraded,
	}
	for _, n := range g.cfg.Graph.Nodes(b.floor) {
		out.NodeIDs = append(out.NodeIDs, n.ID)
	}
	return out, nil
}

// growRegular places one regular room. It returns false when the slot degraded.
func (g *Generator) growRegular(b *floorBuild, remaining int) bool {
	pos, found := g.cfg.Graph.FindValidPosition(b.src, b.floor, g.cfg.GridExtent, g.cfg.MaxPlacementAttempts)

	parent := g.nearestWithCapacity(b.floor, pos, "")
	if parent == nil {
		slog.Warn("No room has a free door, skipping slot", "floor", b.floor)
		return false
	}

	archetype := g.pickRegular(b, parent, remaining)
	if archetype == nil {
		return false
	}

	node, err := g.cfg.Graph.CreateNode(&CreateNodeInput{
		ID:        b.ids.Generate(),
		Floor:     b.floor,
		Position:  pos,
		Archetype: archetype,
	})
	if err != nil {
		slog.Warn("Failed to place room, skipping slot",
			"floor", b.floor,
			"archetype", archetype.ID,
			"error", err,
		)
		return false
	}

	g.attach(b, parent, node)
	return found
}

func (g *Generator) growBoss(b *floorBuild) bool {
	archetype, err := b.pool.Pick(b.src, &roompool.PickInput{
		Category:    entities.CategoryBoss,
		Depth:       b.floor,
		ExcludedIDs: g.usedSnapshot(),
	})
	if err != nil {
		slog.Warn("No boss archetype available", "floor", b.floor, "error", err)
		return false
	}

	pos, found := g.cfg.Graph.FindValidPosition(b.src, b.floor, g.cfg.GridExtent, g.cfg.MaxPlacementAttempts)
	parent := g.nearestWithCapacity(b.floor, pos, "")
	if parent == nil {
		slog.Warn("No room has a free door for the boss", "floor", b.floor)
		return false
	}

	node, err := g.cfg.Graph.CreateNode(&CreateNodeInput{
		ID:        b.ids.Generate(),
		Floor:     b.floor,
		Position:  pos,
		Archetype: archetype,
	})
	if err != nil {
		slog.Warn("Failed to place boss room", "floor", b.floor, "error", err)
		return false
	}

	g.attach(b, parent, node)
	return found
}

func (g *Generator) attach(b *floorBuild, parent, node *entities.RoomNode) {
	if _, err := g.cfg.Graph.Connect(&ConnectInput{
		SourceID: parent.ID,
		TargetID: node.ID,
		Weight:   nextTypeWeight(parent.Archetype, node.Type()),
	}); err != nil {
		slog.Warn("Failed to connect new room", "parent_id", parent.ID, "node_id", node.ID, "error", err)
	}

	b.counts[roompool.CategoryOf(node.Type())]++
	if node.Archetype.UniquePerRun {
		g.mu.Lock()
		g.used[node.Archetype.ID] = true
		g.mu.Unlock()
	}
}

// pickRegular chooses the archetype for a regular slot: a forced shop or rest
// room when the floor is running out of slots, otherwise a type drawn from the
// parent's next-type weights, falling back to the combat category.
func (g *Generator) pickRegular(b *floorBuild, parent *entities.RoomNode, remaining int) *entities.RoomArchetype {
	excluded := g.usedSnapshot()

	if forced := g.forcedCategory(b, remaining); forced != "" {
		a, err := b.pool.Pick(b.src, &roompool.PickInput{
			Category:    forced,
			Depth:       b.floor,
			ExcludedIDs: excluded,
			Counts:      b.counts,
		})
		if err == nil {
			slog.Debug("Forced room before boss", "floor", b.floor, "category", forced, "archetype", a.ID)
			return a
		}
		slog.Warn("Forced room unavailable", "floor", b.floor, "category", forced, "error", err)
	}

	roomType := g.pickNextType(b, parent)
	a, err := b.pool.Pick(b.src, &roompool.PickInput{
		Category:    roompool.CategoryOf(roomType),
		Depth:       b.floor,
		ExcludedIDs: excluded,
		Types:       []entities.RoomType{roomType},
		Counts:      b.counts,
	})
	if err == nil {
		return a
	}

	slog.Warn("Room pool lookup failed, falling back to combat",
		"floor", b.floor,
		"room_type", roomType,
		"error", err,
	)
	b.degraded++
	a, err = b.pool.Pick(b.src, &roompool.PickInput{
		Category:    entities.CategoryCombat,
		Depth:       b.floor,
		ExcludedIDs: excluded,
	})
	if err != nil {
		slog.Warn("No combat archetype either, skipping slot", "floor", b.floor, "error", err)
		return nil
	}
	return a
}

// forcedCategory returns the category that must be placed now so the floor
// still gets its guaranteed shop and rest rooms before the boss.
func (g *Generator) forcedCategory(b *floorBuild, remaining int) entities.Category {
	var missing []entities.Category
	if g.cfg.ForceShopBeforeBoss && b.counts[entities.CategoryShop] == 0 && b.pool.Has(entities.CategoryShop, b.floor) {
		missing = append(missing, entities.CategoryShop)
	}
	if g.cfg.ForceRestBeforeBoss && b.counts[entities.CategoryRest] == 0 && b.pool.Has(entities.CategoryRest, b.floor) {
		missing = append(missing, entities.CategoryRest)
	}
	if len(missing) == 0 || remaining > len(missing) {
		return ""
	}
	return missing[0]
}

// pickNextType draws the new room's type from the parent's next-type weights,
// skipping types whose per-door cap, category cap or pool availability rules
// them out. Boss and entry types are never drawn for regular slots.
func (g *Generator) pickNextType(b *floorBuild, parent *entities.RoomNode) entities.RoomType {
	perType := map[entities.RoomType]int{}
	for _, e := range g.cfg.Graph.NeighborsOf(parent.ID) {
		perType[e.TargetType]++
	}

	options := make([]selection.Entry[entities.NextRoomType], 0, len(parent.Archetype.NextTypes))
	for _, nt := range parent.Archetype.NextTypes {
		options = append(options, selection.Entry[entities.NextRoomType]{Item: nt, Weight: nt.Weight})
	}

	base := func(nt entities.NextRoomType) bool {
		category := roompool.CategoryOf(nt.Type)
		switch {
		case category == entities.CategoryBoss, category == entities.CategoryEntry:
			return true
		case nt.MaxDoors > 0 && perType[nt.Type] >= nt.MaxDoors:
			return true
		case b.pool.CapReached(category, b.counts):
			return true
		default:
			return !b.pool.Has(category, b.floor)
		}
	}

	if g.cfg.PreventConsecutiveTypes {
		next, ok := selection.Pick(b.src, options, func(nt entities.NextRoomType) bool {
			return base(nt) || nt.Type == parent.Type()
		})
		if ok {
			return next.Type
		}
	}

	next, ok := selection.Pick(b.src, options, base)
	if !ok {
		return entities.RoomTypeCombat
	}
	return next.Type
}

func nextTypeWeight(parent *entities.RoomArchetype, t entities.RoomType) float64 {
	for _, nt := range parent.NextTypes {
		if nt.Type == t {
			return nt.Weight
		}
	}
	return 1
}

// nearestWithCapacity returns the floor node closest to pos that can take
// another door, ties broken by creation order. excludeID is skipped.
func (g *Generator) nearestWithCapacity(floor int, pos entities.GridPosition, excludeID string) *entities.RoomNode {
	var best *entities.RoomNode
	bestDist := 0.0
	for _, n := range g.cfg.Graph.Nodes(floor) {
		if n.ID == excludeID || !n.Archetype.HasDoorCapacity(g.cfg.Graph.DoorCount(n.ID)) {
			continue
		}
		if d := n.Position.DistanceTo(pos); best == nil || d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}

// topUpDoors connects rooms below their minimum door count to their nearest
// neighbors that still have capacity.
func (g *Generator) topUpDoors(b *floorBuild) {
	for _, n := range g.cfg.Graph.Nodes(b.floor) {
		for g.cfg.Graph.DoorCount(n.ID) < n.Archetype.MinDoorCount {
			candidate := g.nearestUnconnected(b.floor, n)
			if candidate == nil {
				slog.Warn("Room is below its minimum door count",
					"node_id", n.ID,
					"doors", g.cfg.Graph.DoorCount(n.ID),
					"min_door_count", n.Archetype.MinDoorCount,
				)
				b.degraded++
				break
			}
			if _, err := g.cfg.Graph.Connect(&ConnectInput{SourceID: n.ID, TargetID: candidate.ID}); err != nil {
				slog.Warn("Failed to add door", "node_id", n.ID, "error", err)
				b.degraded++
				break
			}
		}
	}
}

func (g *Generator) nearestUnconnected(floor int, n *entities.RoomNode) *entities.RoomNode {
	if !n.Archetype.HasDoorCapacity(g.cfg.Graph.DoorCount(n.ID)) {
		return nil
	}

	candidates := g.cfg.Graph.Nodes(floor)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Position.DistanceTo(n.Position) < candidates[j].Position.DistanceTo(n.Position)
	})
	for _, c := range candidates {
		if c.ID == n.ID || c.Type() == entities.RoomTypeBoss {
			continue
		}
		if _, linked := g.cfg.Graph.EdgeBetween(n.ID, c.ID); linked {
			continue
		}
		if c.Archetype.HasDoorCapacity(g.cfg.Graph.DoorCount(c.ID)) {
			return c
		}
	}
	return nil
}

// ensureConnected links every room unreachable from the start to its nearest
// reachable room with a free door.
func (g *Generator) ensureConnected(b *floorBuild, startID string) {
	for _, n := range g.cfg.Graph.Nodes(b.floor) {
		reachable := g.cfg.Graph.Distances(startID)
		if _, ok := reachable[n.ID]; ok {
			continue
		}

		var best *entities.RoomNode
		bestDist := 0.0
		for _, c := range g.cfg.Graph.Nodes(b.floor) {
			if _, ok := reachable[c.ID]; !ok || !c.Archetype.HasDoorCapacity(g.cfg.Graph.DoorCount(c.ID)) {
				continue
			}
			if d := c.Position.DistanceTo(n.Position); best == nil || d < bestDist {
				best, bestDist = c, d
			}
		}
		if best == nil {
			slog.Error("Room is unreachable from the start", "node_id", n.ID, "floor", b.floor)
			b.degraded++
			continue
		}
		if _, err := g.cfg.Graph.Connect(&ConnectInput{SourceID: best.ID, TargetID: n.ID}); err != nil {
			slog.Error("Failed to repair room access", "node_id", n.ID, "error", err)
			b.degraded++
		}
	}
}

func (g *Generator) usedSnapshot() map[string]bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]bool, len(g.used))
	for k := range g.used {
		out[k] = true
	}
	return out
}

// UsedUniqueIDs returns the unique-per-run archetypes placed so far, sorted
func (g *Generator) UsedUniqueIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]string, 0, len(g.used))
	for k := range g.used {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RestoreUniqueIDs replaces the used set, for resumed runs and restarts
func (g *Generator) RestoreUniqueIDs(ids []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.used = make(map[string]bool, len(ids))
	for _, id := range ids {
		g.used[id] = true
	}
}
