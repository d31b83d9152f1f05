// Package topology owns the dungeon room graph: nodes, doors, placement and
// connectivity queries, plus the floor generator that grows it.
package topology

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/random"
)

// Failure reasons attached to graph errors
const (
	ReasonDoorCapacity = "door_capacity"
	ReasonLocked       = "locked"
	ReasonDesync       = "desync"
)

// Graph is the node/edge graph for every floor of a run.
// All reads return copies; mutation goes through the methods below.
type Graph struct {
	mu       sync.RWMutex
	nodes    map[string]*entities.RoomNode
	order    []string
	occupied map[int]map[entities.GridPosition]string
	edges    map[string]*entities.Edge
	outgoing map[string][]string
	start    map[int]string
	boss     map[int]string
}

// NewGraph returns an empty graph
func NewGraph() *Graph {
	g := &Graph{}
	g.resetLocked()
	return g
}

func (g *Graph) resetLocked() {
	g.nodes = make(map[string]*entities.RoomNode)
	g.order = nil
	g.occupied = make(map[int]map[entities.GridPosition]string)
	g.edges = make(map[string]*entities.Edge)
	g.outgoing = make(map[string][]string)
	g.start = make(map[int]string)
	g.boss = make(map[int]string)
}

// Reset drops every floor. Only a full dungeon restart calls it.
func (g *Graph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
}

// CreateNodeInput describes a new room node
type CreateNodeInput struct {
	ID        string
	Floor     int
	Position  entities.GridPosition
	Archetype *entities.RoomArchetype
}

// CreateNode adds a node at an unoccupied position on its floor
func (g *Graph) CreateNode(input *CreateNodeInput) (*entities.RoomNode, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.ID == "" {
		return nil, errors.InvalidArgument("node ID is required")
	}
	if input.Archetype == nil {
		return nil, errors.InvalidArgument("archetype is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[input.ID]; exists {
		return nil, errors.AlreadyExistsf("node %s already exists", input.ID)
	}
	if occupant, taken := g.occupied[input.Floor][input.Position]; taken {
		return nil, errors.AlreadyExistsf("position (%d,%d) on floor %d is occupied",
			input.Position.X, input.Position.Y, input.Floor).
			WithMeta("occupant", occupant)
	}

	node := &entities.RoomNode{
		ID:        input.ID,
		Floor:     input.Floor,
		Position:  input.Position,
		Archetype: input.Archetype,
		Order:     len(g.order),
	}
	g.nodes[node.ID] = node
	g.order = append(g.order, node.ID)
	if g.occupied[node.Floor] == nil {
		g.occupied[node.Floor] = make(map[entities.GridPosition]string)
	}
	g.occupied[node.Floor][node.Position] = node.ID

	slog.Debug("Room node created",
		"node_id", node.ID,
		"floor", node.Floor,
		"x", node.Position.X,
		"y", node.Position.Y,
		"type", node.Type(),
	)

	out := *node
	return &out, nil
}

// FindValidPosition samples cells in [-extent, extent] on both axes until an
// unoccupied one is found. After maxAttempts it logs a density warning and
// returns the origin with found=false.
func (g *Graph) FindValidPosition(src random.Source, floor, extent, maxAttempts int) (pos entities.GridPosition, found bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	span := 2*extent + 1
	for i := 0; i < maxAttempts; i++ {
		candidate := entities.GridPosition{
			X: src.Intn(span) - extent,
			Y: src.Intn(span) - extent,
		}
		if _, taken := g.occupied[floor][candidate]; !taken {
			return candidate, true
		}
	}

	slog.Warn("No free position found, falling back to origin",
		"floor", floor,
		"attempts", maxAttempts,
		"extent", extent,
		"rooms_on_floor", len(g.occupied[floor]),
	)
	return entities.Origin, false
}

// ConnectInput describes a door pair between two rooms
type ConnectInput struct {
	SourceID string
	TargetID string
	Weight   float64
}

// Connect links two rooms on the same floor with a door in each direction and
// returns the source-to-target edge. An existing door pair is reused.
func (g *Graph) Connect(input *ConnectInput) (*entities.Edge, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.SourceID == input.TargetID {
		return nil, errors.InvalidArgumentf("cannot connect %s to itself", input.SourceID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	source, err := g.nodeLocked(input.SourceID)
	if err != nil {
		return nil, err
	}
	target, err := g.nodeLocked(input.TargetID)
	if err != nil {
		return nil, err
	}
	if source.Floor != target.Floor {
		return nil, errors.InvalidArgumentf("cannot connect rooms on floors %d and %d", source.Floor, target.Floor)
	}

	if existing, ok := g.edges[edgeID(source.ID, target.ID)]; ok {
		out := *existing
		return &out, nil
	}

	for _, n := range []*entities.RoomNode{source, target} {
		if !n.Archetype.HasDoorCapacity(len(g.outgoing[n.ID])) {
			return nil, errors.FailedPreconditionf("room %s has no free door", n.ID).
				WithReason(ReasonDoorCapacity).
				WithMeta("max_door_count", n.Archetype.MaxDoorCount)
		}
	}

	weight := input.Weight
	if weight <= 0 {
		weight = 1
	}
	forward := g.addEdgeLocked(source, target, weight)
	g.addEdgeLocked(target, source, weight)

	out := *forward
	return &out, nil
}

func (g *Graph) addEdgeLocked(source, target *entities.RoomNode, weight float64) *entities.Edge {
	edge := &entities.Edge{
		ID:         edgeID(source.ID, target.ID),
		SourceID:   source.ID,
		TargetID:   target.ID,
		TargetType: target.Type(),
		Weight:     weight,
		Lock:       initialLock(source),
	}
	g.edges[edge.ID] = edge
	g.outgoing[source.ID] = append(g.outgoing[source.ID], edge.ID)
	return edge
}

func initialLock(source *entities.RoomNode) entities.LockState {
	if source.RequiresClearing() && !source.Cleared {
		return entities.LockStateLocked
	}
	return entities.LockStateUnlocked
}

func edgeID(sourceID, targetID string) string {
	return fmt.Sprintf("door_%s_to_%s", sourceID, targetID)
}

// SpecialRooms names a floor's start and boss nodes
type SpecialRooms struct {
	StartID string
	BossID  string
}

// AssignSpecialRooms marks the node at the origin as the floor's start and the
// last boss-archetype node grown on the floor as its boss. BossID is empty when
// the floor has no boss room.
func (g *Graph) AssignSpecialRooms(floor int) (*SpecialRooms, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	startID, ok := g.occupied[floor][entities.Origin]
	if !ok {
		return nil, errors.NotFoundf("floor %d has no room at the origin", floor)
	}

	bossID := ""
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Floor != floor {
			continue
		}
		n.IsStart = id == startID
		n.IsBoss = false
		if id != startID && n.Type() == entities.RoomTypeBoss {
			bossID = id
		}
	}
	if bossID != "" {
		g.nodes[bossID].IsBoss = true
	}

	g.start[floor] = startID
	g.boss[floor] = bossID

	slog.Info("Special rooms assigned",
		"floor", floor,
		"start_id", startID,
		"boss_id", bossID,
	)
	return &SpecialRooms{StartID: startID, BossID: bossID}, nil
}

// StartNodeID returns the start node of a floor
func (g *Graph) StartNodeID(floor int) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.start[floor]
}

// BossNodeID returns the boss node of a floor, or ""
func (g *Graph) BossNodeID(floor int) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.boss[floor]
}

// HasFloor reports whether any node exists on the floor
func (g *Graph) HasFloor(floor int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.occupied[floor]) > 0
}

// Node returns a copy of a node
func (g *Graph) Node(id string) (*entities.RoomNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, err := g.nodeLocked(id)
	if err != nil {
		return nil, err
	}
	out := *n
	return &out, nil
}

func (g *Graph) nodeLocked(id string) (*entities.RoomNode, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, errors.NotFoundf("room node %s not found", id).WithMeta("node_id", id)
	}
	return n, nil
}

// Nodes returns copies of a floor's nodes in creation order
func (g *Graph) Nodes(floor int) []*entities.RoomNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*entities.RoomNode
	for _, id := range g.order {
		if n := g.nodes[id]; n.Floor == floor {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out
}

// Edge returns a copy of an edge
func (g *Graph) Edge(id string) (*entities.Edge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.edges[id]
	if !ok {
		return nil, errors.NotFoundf("door %s not found", id).WithMeta("edge_id", id)
	}
	out := *e
	return &out, nil
}

// EdgeBetween returns the door leading from source to target, if any
func (g *Graph) EdgeBetween(sourceID, targetID string) (*entities.Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.edges[edgeID(sourceID, targetID)]
	if !ok {
		return nil, false
	}
	out := *e
	return &out, true
}

// NeighborsOf returns copies of the doors leaving a node
func (g *Graph) NeighborsOf(id string) []*entities.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := g.outgoing[id]
	out := make([]*entities.Edge, 0, len(ids))
	for _, eid := range ids {
		cp := *g.edges[eid]
		out = append(out, &cp)
	}
	return out
}

// DoorCount returns the number of doors leaving a node
func (g *Graph) DoorCount(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.outgoing[id])
}

// LookupByPosition returns the node occupying a cell
func (g *Graph) LookupByPosition(floor int, pos entities.GridPosition) (*entities.RoomNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, ok := g.occupied[floor][pos]
	if !ok {
		return nil, false
	}
	out := *g.nodes[id]
	return &out, true
}

// ResolveWorldPosition maps a world position to the room containing it: the
// exact grid cell if occupied, otherwise the nearest occupied cell within one
// cell. It fails when nothing is within that radius.
func (g *Graph) ResolveWorldPosition(floor int, pos entities.Position, spacing float64) (*entities.RoomNode, error) {
	if spacing <= 0 {
		return nil, errors.InvalidArgumentf("room spacing must be positive, got %v", spacing)
	}

	cell := entities.GridPosition{
		X: int(math.Round(pos.X / spacing)),
		Y: int(math.Round(pos.Y / spacing)),
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if id, ok := g.occupied[floor][cell]; ok {
		out := *g.nodes[id]
		return &out, nil
	}

	var best *entities.RoomNode
	bestDist := math.MaxFloat64
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			id, ok := g.occupied[floor][entities.GridPosition{X: cell.X + dx, Y: cell.Y + dy}]
			if !ok {
				continue
			}
			n := g.nodes[id]
			d := pos.DistanceTo(n.Position.World(spacing))
			if d < bestDist || (d == bestDist && n.Order < best.Order) {
				best, bestDist = n, d
			}
		}
	}

	if best == nil {
		slog.Error("Position does not map to any room",
			"floor", floor,
			"x", pos.X,
			"y", pos.Y,
		)
		return nil, errors.NotFoundf("no room within one cell of (%.1f, %.1f) on floor %d", pos.X, pos.Y, floor).
			WithReason(ReasonDesync)
	}

	out := *best
	return &out, nil
}

// Distances returns the door-hop distance from a node to every node reachable from it
func (g *Graph) Distances(fromID string) map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	dist := map[string]int{}
	if _, ok := g.nodes[fromID]; !ok {
		return dist
	}
	dist[fromID] = 0
	queue := []string{fromID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, eid := range g.outgoing[id] {
			next := g.edges[eid].TargetID
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[id] + 1
			queue = append(queue, next)
		}
	}
	return dist
}

// MarkVisited flags a node as entered by the actor
func (g *Graph) MarkVisited(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, err := g.nodeLocked(id)
	if err != nil {
		return err
	}
	n.Visited = true
	return nil
}

// MarkCleared flags a node's encounter as complete. It never resets the flag
// and reports whether this call changed it.
func (g *Graph) MarkCleared(id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, err := g.nodeLocked(id)
	if err != nil {
		return false, err
	}
	if n.Cleared {
		return false, nil
	}
	n.Cleared = true
	return true, nil
}

// UnlockEdgesFrom unlocks every door leaving a node. It refuses while the
// node still requires clearing.
func (g *Graph) UnlockEdgesFrom(id string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, err := g.nodeLocked(id)
	if err != nil {
		return 0, err
	}
	if n.RequiresClearing() && !n.Cleared {
		return 0, errors.FailedPreconditionf("room %s is not cleared", id).WithReason(ReasonLocked)
	}

	unlocked := 0
	for _, eid := range g.outgoing[id] {
		if e := g.edges[eid]; e.Locked() {
			e.Lock = entities.LockStateUnlocked
			unlocked++
		}
	}
	return unlocked, nil
}

// LinkInstance records the live instance for a node. A node holds at most one.
func (g *Graph) LinkInstance(nodeID, instanceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, err := g.nodeLocked(nodeID)
	if err != nil {
		return err
	}
	if n.InstanceID != "" && n.InstanceID != instanceID {
		return errors.FailedPreconditionf("room %s already has live instance %s", nodeID, n.InstanceID)
	}
	n.InstanceID = instanceID
	return nil
}

// UnlinkInstance clears the node's instance link if it still points at instanceID
func (g *Graph) UnlinkInstance(nodeID, instanceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, err := g.nodeLocked(nodeID)
	if err != nil {
		return err
	}
	if n.InstanceID == instanceID {
		n.InstanceID = ""
	}
	return nil
}
