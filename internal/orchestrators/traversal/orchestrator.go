// Package traversal moves the actor between rooms. Each transition runs the
// phases Requested, Staging, Gating, Committing and Done, and a denied
// transition leaves the actor and the world as they were.
package traversal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
	"github.com/KirkDiggler/rpg-dungeon/internal/events"
	"github.com/KirkDiggler/rpg-dungeon/internal/orchestrators/encounter"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/random"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/room"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/roompool"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/topology"
)

// Service coordinates one run through the dungeon
type Service interface {
	// Begin generates the first floor and places the actor in its start room
	Begin(ctx context.Context, input *BeginInput) (*BeginOutput, error)
	// Transition moves the actor to a fixed or randomly chosen room
	Transition(ctx context.Context, input *TransitionInput) (*TransitionOutput, error)
	// InteractDoor transitions through a door of the current room
	InteractDoor(ctx context.Context, input *InteractDoorInput) (*TransitionOutput, error)
	AvailableTargets(ctx context.Context) (*AvailableTargetsOutput, error)
	// ResolveActorRoom maps the actor's world position to a room
	ResolveActorRoom(ctx context.Context) (*ResolveActorRoomOutput, error)
	State() *entities.DungeonState
	Phase() Phase
	Snapshot(runID string) (*entities.RunState, error)
	// Resume regenerates a saved floor and places the actor where it was saved
	Resume(ctx context.Context, input *ResumeInput) (*BeginOutput, error)
	// End tears down every live room and the event bus
	End(ctx context.Context) error
}

// Config holds the dependencies for the coordinator
type Config struct {
	Graph     *topology.Graph
	Generator topology.FloorGenerator
	Catalog   *roompool.Catalog
	Rooms     room.Service
	EventBus  events.Bus
	Clock     clock.Clock
	Rand      random.Source

	Seed        int64
	RoomSpacing float64
	// RetentionCount rooms from the history stay loaded besides the current one
	RetentionCount int
	UnloadDelay    time.Duration
	// TransitionDuration is waited before a transition commits
	TransitionDuration time.Duration
	// MaxFloors ends the run when its boss is cleared. 0 means no limit.
	MaxFloors int
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}

	vb := errors.NewValidationBuilder()
	if c.Graph == nil {
		vb.RequiredField("Graph")
	}
	if c.Generator == nil {
		vb.RequiredField("Generator")
	}
	if c.Catalog == nil {
		vb.RequiredField("Catalog")
	}
	if c.Rooms == nil {
		vb.RequiredField("Rooms")
	}
	if c.EventBus == nil {
		vb.RequiredField("EventBus")
	}
	if c.Clock == nil {
		vb.RequiredField("Clock")
	}
	if c.Rand == nil {
		vb.RequiredField("Rand")
	}
	errors.ValidatePositive("RoomSpacing", c.RoomSpacing, vb)
	if c.RetentionCount < 0 {
		vb.Field("RetentionCount", "must not be negative")
	}
	if c.UnloadDelay < 0 {
		vb.Field("UnloadDelay", "must not be negative")
	}
	if c.TransitionDuration < 0 {
		vb.Field("TransitionDuration", "must not be negative")
	}
	if c.MaxFloors < 0 {
		vb.Field("MaxFloors", "must not be negative")
	}
	return vb.Build()
}

type orchestrator struct {
	cfg Config

	busy  atomic.Bool
	phase atomic.Value

	mu             sync.RWMutex
	seed           int64
	state          *entities.DungeonState
	actor          Actor
	started        bool
	ended          bool
	pendingDescent bool
	floorUniqueIDs []string
	subscription   string
}

// NewOrchestrator creates a coordinator and subscribes its clear handler to
// the bus ahead of any other subscriber of the run.
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	o := &orchestrator{
		cfg:   *cfg,
		seed:  cfg.Seed,
		state: entities.NewDungeonState(),
	}
	o.phase.Store(PhaseIdle)
	o.subscription = cfg.EventBus.Subscribe(events.TypeRoomCleared, o.onRoomCleared)
	return o, nil
}

func (o *orchestrator) setPhase(p Phase) {
	o.phase.Store(p)
}

// Phase implements Service
func (o *orchestrator) Phase() Phase {
	return o.phase.Load().(Phase)
}

// acquire claims the single in-flight transition slot
func (o *orchestrator) acquire() error {
	if !o.busy.CompareAndSwap(false, true) {
		return errors.Aborted("a transition is already in flight").WithReason(ReasonBusy)
	}
	return nil
}

func (o *orchestrator) release() {
	o.setPhase(PhaseIdle)
	o.busy.Store(false)
}

// Begin implements Service
func (o *orchestrator) Begin(ctx context.Context, input *BeginInput) (*BeginOutput, error) {
	if input == nil || input.Actor == nil {
		return nil, errors.InvalidArgument("actor is required")
	}
	if err := o.acquire(); err != nil {
		return nil, err
	}
	defer o.release()

	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil, errors.FailedPrecondition("run already started")
	}
	o.started = true
	o.actor = input.Actor
	seed := o.seed
	o.mu.Unlock()

	startID, err := o.generateFloor(ctx, 1)
	if err != nil {
		o.mu.Lock()
		o.started = false
		o.mu.Unlock()
		return nil, err
	}

	slog.Info("Run started", "actor_id", input.Actor.GetID(), "seed", seed, "start_id", startID)
	return o.place(ctx, startID, nil)
}

// generateFloor builds a floor from the run seed and returns its start node
func (o *orchestrator) generateFloor(ctx context.Context, floor int) (string, error) {
	before := o.cfg.Generator.UsedUniqueIDs()

	o.mu.RLock()
	seed := o.seed
	o.mu.RUnlock()

	out, err := o.cfg.Generator.GenerateFloor(ctx, &topology.GenerateFloorInput{
		Floor: floor,
		Seed:  random.FloorSeed(seed, floor),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to generate floor %d", floor)
	}
	if out.Degraded > 0 {
		slog.Warn("Floor generated with degraded slots", "floor", floor, "degraded", out.Degraded)
	}

	o.mu.Lock()
	o.floorUniqueIDs = before
	o.mu.Unlock()
	return out.StartID, nil
}

// place materializes a node and puts the actor in it outside of a
// transition: at the entry point, or at offset from the room origin.
func (o *orchestrator) place(ctx context.Context, nodeID string, offset *entities.Position) (*BeginOutput, error) {
	out, err := o.cfg.Rooms.Materialize(ctx, &room.MaterializeInput{NodeID: nodeID, Pin: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to materialize room")
	}
	defer o.cfg.Rooms.Release(nodeID)
	inst := out.Instance

	pos := inst.EntryPosition()
	if offset != nil {
		pos = inst.Origin.Add(*offset)
	}

	o.mu.RLock()
	actor := o.actor
	o.mu.RUnlock()

	if err := actor.MoveTo(ctx, pos); err != nil {
		return nil, errors.Wrap(err, "failed to place actor")
	}

	node, err := o.enter(ctx, nodeID, inst)
	if err != nil {
		return nil, err
	}

	if err := o.cfg.EventBus.Publish(ctx, events.ActorSpawned{Handle: actor.GetID(), NodeID: nodeID, Position: pos, Entity: actor}); err != nil {
		slog.Warn("Failed to publish actor spawn", "error", err)
	}
	o.announce(ctx, "", node)
	o.startEncounter(ctx, node, inst)
	o.retain(ctx)

	return &BeginOutput{NodeID: nodeID, InstanceID: inst.ID, Floor: node.Floor, Position: pos}, nil
}

// enter records the actor in a node: visited, current and appended to history.
// The node's doors open when it has nothing outstanding.
func (o *orchestrator) enter(_ context.Context, nodeID string, inst *room.Instance) (*entities.RoomNode, error) {
	if err := o.cfg.Graph.MarkVisited(nodeID); err != nil {
		return nil, err
	}
	node, err := o.cfg.Graph.Node(nodeID)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.state.CurrentNodeID = nodeID
	if n := len(o.state.History); n == 0 || o.state.History[n-1] != nodeID {
		o.state.History = append(o.state.History, nodeID)
	}
	if o.pendingDescent && node.Floor == o.state.Floor {
		o.pendingDescent = false
	}
	o.mu.Unlock()

	if !node.RequiresClearing() || node.Cleared || inst.Encounter.Cleared() {
		if _, err := o.cfg.Graph.UnlockEdgesFrom(nodeID); err != nil {
			slog.Warn("Failed to open doors of entered room", "node_id", nodeID, "error", err)
		}
	}
	return node, nil
}

func (o *orchestrator) announce(ctx context.Context, fromID string, node *entities.RoomNode) {
	if fromID != "" {
		from, err := o.cfg.Graph.Node(fromID)
		if err == nil {
			if err := o.cfg.EventBus.Publish(ctx, events.RoomExited{NodeID: from.ID, Floor: from.Floor}); err != nil {
				slog.Warn("Failed to publish room exit", "node_id", fromID, "error", err)
			}
		}
	}
	if err := o.cfg.EventBus.Publish(ctx, events.RoomEntered{NodeID: node.ID, Floor: node.Floor, RoomType: node.Type()}); err != nil {
		slog.Warn("Failed to publish room entry", "node_id", node.ID, "error", err)
	}
}

func (o *orchestrator) startEncounter(ctx context.Context, node *entities.RoomNode, inst *room.Instance) encounter.State {
	input := &encounter.StartInput{}
	if node.Archetype != nil {
		input.TotalWaves = node.Archetype.TotalWaves
		input.Waves = node.Archetype.Waves
	}
	out, err := inst.Encounter.Start(ctx, input)
	if err != nil {
		slog.Warn("Encounter start reported an error", "node_id", node.ID, "error", err)
	}
	if out == nil {
		return inst.Encounter.State()
	}
	return out.State
}

func (o *orchestrator) retain(ctx context.Context) {
	o.mu.RLock()
	input := &room.RetentionInput{
		History:        append([]string(nil), o.state.History...),
		CurrentNodeID:  o.state.CurrentNodeID,
		RetentionCount: o.cfg.RetentionCount,
		UnloadDelay:    o.cfg.UnloadDelay,
	}
	o.mu.RUnlock()

	if _, err := o.cfg.Rooms.ApplyRetentionPolicy(ctx, input); err != nil {
		slog.Warn("Retention pass failed", "current_node_id", input.CurrentNodeID, "error", err)
	}
}

// Transition implements Service
func (o *orchestrator) Transition(ctx context.Context, input *TransitionInput) (*TransitionOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if !input.Random && input.TargetNodeID == "" {
		return nil, errors.InvalidArgument("target node ID is required unless random")
	}
	if err := o.acquire(); err != nil {
		return nil, err
	}
	defer o.release()

	return o.transition(ctx, input)
}

func (o *orchestrator) transition(ctx context.Context, input *TransitionInput) (*TransitionOutput, error) {
	o.setPhase(PhaseRequested)

	o.mu.RLock()
	active := o.started && !o.ended
	sourceID := o.state.CurrentNodeID
	floor := o.state.Floor
	completed := o.state.RoomsCompletedInFloor
	descending := o.pendingDescent
	o.mu.RUnlock()
	if !active {
		return nil, errors.FailedPrecondition("run is not active")
	}

	targetID := input.TargetNodeID
	if input.Random {
		targets, err := o.AvailableTargets(ctx)
		if err != nil {
			return nil, err
		}
		targetID = targets.NodeIDs[o.cfg.Rand.Intn(len(targets.NodeIDs))]
	}

	target, err := o.cfg.Graph.Node(targetID)
	if err != nil {
		return nil, err
	}
	if targetID == sourceID {
		return nil, errors.FailedPreconditionf("actor is already in room %s", targetID)
	}
	if target.Floor != floor {
		return nil, errors.FailedPreconditionf("room %s is not on floor %d", targetID, floor)
	}
	if descending && !target.IsStart {
		return nil, errors.FailedPreconditionf("floor %d must be entered through its start room", floor)
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(err)
	}

	// Staging
	o.setPhase(PhaseStaging)
	_, wasLive := o.cfg.Rooms.Instance(targetID)
	staged, err := o.cfg.Rooms.Materialize(ctx, &room.MaterializeInput{NodeID: targetID, Pin: true})
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceled(ctx.Err())
		}
		slog.Warn("Transition denied", "target_id", targetID, "phase", PhaseStaging, "error", err)
		return nil, errors.Wrapf(err, "failed to stage room %s", targetID)
	}
	// the target stays pinned until retention has seen the new current room
	pinned := true
	unpin := func() {
		if pinned {
			o.cfg.Rooms.Release(targetID)
			pinned = false
		}
	}
	defer unpin()

	inst := staged.Instance
	fresh := !wasLive && !staged.Reused
	rollback := func() {
		unpin()
		if !fresh {
			// the pin dropped any pending eviction of the target
			o.retain(context.WithoutCancel(ctx))
			return
		}
		if _, err := o.cfg.Rooms.Evict(context.WithoutCancel(ctx), &room.EvictInput{NodeID: targetID}); err != nil {
			slog.Warn("Failed to roll back staged room", "target_id", targetID, "error", err)
		}
	}

	// Gating
	o.setPhase(PhaseGating)
	if err := o.gate(sourceID, target, completed); err != nil {
		rollback()
		slog.Info("Transition denied",
			"source_id", sourceID,
			"target_id", targetID,
			"reason", ReasonOf(err),
		)
		return nil, err
	}

	if err := clock.Sleep(ctx, o.cfg.Clock, o.cfg.TransitionDuration); err != nil {
		rollback()
		return nil, canceled(err)
	}

	o.mu.RLock()
	actor := o.actor
	o.mu.RUnlock()
	if err := actor.MoveTo(ctx, inst.EntryPosition()); err != nil {
		rollback()
		return nil, errors.Wrap(err, "failed to move actor")
	}

	// Committing runs to Done regardless of cancellation
	o.setPhase(PhaseCommitting)
	commitCtx := context.WithoutCancel(ctx)
	node, err := o.enter(commitCtx, targetID, inst)
	if err != nil {
		return nil, errors.Wrap(err, "failed to record room entry")
	}
	o.announce(commitCtx, sourceID, node)
	state := o.startEncounter(commitCtx, node, inst)
	o.retain(commitCtx)
	o.setPhase(PhaseDone)

	slog.Info("Transition committed",
		"source_id", sourceID,
		"target_id", targetID,
		"floor", node.Floor,
		"encounter", state,
	)
	return &TransitionOutput{
		FromNodeID:     sourceID,
		ToNodeID:       targetID,
		InstanceID:     inst.ID,
		Floor:          node.Floor,
		Descended:      descending,
		EncounterState: state,
	}, nil
}

// gate refuses a transition out of an uncleared room, or into a boss room
// before enough rooms on the floor were completed.
func (o *orchestrator) gate(sourceID string, target *entities.RoomNode, completed int) error {
	source, err := o.cfg.Graph.Node(sourceID)
	if err != nil {
		return err
	}
	if source.RequiresClearing() && !source.Cleared {
		return errors.FailedPreconditionf("room %s is not cleared", sourceID).
			WithReason(ReasonLocked).
			WithMeta("node_id", sourceID)
	}

	if target.IsBoss {
		need := o.cfg.Catalog.ForFloor(target.Floor).MinRoomsBeforeBoss()
		if completed < need {
			return errors.FailedPreconditionf("boss room needs %d completed rooms, have %d", need, completed).
				WithReason(ReasonBossLocked).
				WithMeta("node_id", target.ID)
		}
	}
	return nil
}

func canceled(err error) error {
	return errors.FromContext(err, "transition canceled before commit").WithReason(ReasonCanceled)
}

// InteractDoor implements Service
func (o *orchestrator) InteractDoor(ctx context.Context, input *InteractDoorInput) (*TransitionOutput, error) {
	if input == nil || input.EdgeID == "" {
		return nil, errors.InvalidArgument("edge ID is required")
	}

	edge, err := o.cfg.Graph.Edge(input.EdgeID)
	if err != nil {
		return nil, err
	}

	o.mu.RLock()
	current := o.state.CurrentNodeID
	o.mu.RUnlock()

	if edge.SourceID != current {
		return nil, errors.FailedPreconditionf("door %s is not in the current room", edge.ID)
	}
	if edge.Locked() {
		return nil, errors.FailedPreconditionf("door %s is locked", edge.ID).
			WithReason(ReasonLocked).
			WithMeta("edge_id", edge.ID)
	}

	return o.Transition(ctx, &TransitionInput{TargetNodeID: edge.TargetID})
}

// ResolveActorRoom implements Service
func (o *orchestrator) ResolveActorRoom(_ context.Context) (*ResolveActorRoomOutput, error) {
	o.mu.RLock()
	actor := o.actor
	current := o.state.CurrentNodeID
	o.mu.RUnlock()

	if actor == nil || current == "" {
		return nil, errors.FailedPrecondition("run has not started")
	}
	node, err := o.cfg.Graph.Node(current)
	if err != nil {
		return nil, err
	}

	resolved, err := o.cfg.Graph.ResolveWorldPosition(node.Floor, actor.Position(), o.cfg.RoomSpacing)
	if err != nil {
		return nil, err
	}
	return &ResolveActorRoomOutput{Node: resolved}, nil
}

// State implements Service
func (o *orchestrator) State() *entities.DungeonState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state.Clone()
}

// End implements Service
func (o *orchestrator) End(ctx context.Context) error {
	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		return nil
	}
	o.ended = true
	o.mu.Unlock()

	err := o.cfg.Rooms.Close(ctx)
	if uerr := o.cfg.EventBus.Unsubscribe(o.subscription); uerr != nil {
		slog.Warn("Failed to unsubscribe clear handler", "error", uerr)
	}
	o.cfg.EventBus.Close()

	slog.Info("Run ended")
	return err
}
