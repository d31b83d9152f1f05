package traversal

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/random"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/topology"
)

// Snapshot implements Service. The floor layout is not saved; it is
// regenerated from the seed on Resume.
func (o *orchestrator) Snapshot(runID string) (*entities.RunState, error) {
	if runID == "" {
		return nil, errors.InvalidArgument("run ID is required")
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if !o.started || o.actor == nil {
		return nil, errors.FailedPrecondition("run has not started")
	}

	run := &entities.RunState{
		RunID:                 runID,
		Seed:                  o.seed,
		Floor:                 o.state.Floor,
		CategoryVisits:        make(map[entities.Category]int, len(o.state.CategoryVisits)),
		RoomsCompletedInFloor: o.state.RoomsCompletedInFloor,
		RoomsCompletedTotal:   o.state.RoomsCompletedTotal,
		History:               append([]string(nil), o.state.History...),
		PreviousRoomTypes:     append([]entities.RoomType(nil), o.state.PreviousRoomTypes...),
		UsedUniqueIDs:         o.cfg.Generator.UsedUniqueIDs(),
		FloorUniqueIDs:        append([]string(nil), o.floorUniqueIDs...),
		LastNodeID:            o.state.CurrentNodeID,
		Completed:             o.state.Completed,
		SavedAt:               o.cfg.Clock.Now(),
	}
	for k, v := range o.state.CategoryVisits {
		run.CategoryVisits[k] = v
	}
	for _, n := range o.cfg.Graph.Nodes(o.state.Floor) {
		if n.Visited {
			run.VisitedNodeIDs = append(run.VisitedNodeIDs, n.ID)
		}
		if n.Cleared {
			run.ClearedNodeIDs = append(run.ClearedNodeIDs, n.ID)
		}
	}

	// A pending descent resumes at the start of the next floor
	if o.pendingDescent {
		run.LastNodeID = o.cfg.Graph.StartNodeID(o.state.Floor)
		return run, nil
	}
	if inst, ok := o.cfg.Rooms.Instance(o.state.CurrentNodeID); ok {
		run.LocalOffset = o.actor.Position().Sub(inst.Origin)
	}
	return run, nil
}

// Resume implements Service
func (o *orchestrator) Resume(ctx context.Context, input *ResumeInput) (*BeginOutput, error) {
	if input == nil || input.Actor == nil {
		return nil, errors.InvalidArgument("actor is required")
	}
	saved := input.State
	if saved == nil {
		return nil, errors.InvalidArgument("saved state is required")
	}
	if saved.Floor < 1 {
		return nil, errors.InvalidArgumentf("saved floor %d is invalid", saved.Floor)
	}
	if saved.LastNodeID == "" {
		return nil, errors.InvalidArgument("saved state has no room")
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
	o.seed = saved.Seed
	o.mu.Unlock()

	if err := o.restoreFloor(ctx, saved); err != nil {
		o.mu.Lock()
		o.started = false
		o.mu.Unlock()
		return nil, err
	}

	o.mu.Lock()
	o.state = &entities.DungeonState{
		Floor:                 saved.Floor,
		RoomsCompletedInFloor: saved.RoomsCompletedInFloor,
		RoomsCompletedTotal:   saved.RoomsCompletedTotal,
		History:               append([]string(nil), saved.History...),
		CategoryVisits:        make(map[entities.Category]int, len(saved.CategoryVisits)),
		PreviousRoomTypes:     append([]entities.RoomType(nil), saved.PreviousRoomTypes...),
		Completed:             saved.Completed,
	}
	for k, v := range saved.CategoryVisits {
		o.state.CategoryVisits[k] = v
	}
	o.mu.Unlock()

	// a room never entered, such as the start of a floor descended into, is
	// entered at its entry point
	var offset *entities.Position
	if last, err := o.cfg.Graph.Node(saved.LastNodeID); err == nil && last.Visited {
		offset = &saved.LocalOffset
	}
	out, err := o.place(ctx, saved.LastNodeID, offset)
	if err != nil {
		return nil, err
	}

	slog.Info("Run resumed",
		"run_id", saved.RunID,
		"floor", saved.Floor,
		"node_id", saved.LastNodeID,
	)
	return out, nil
}

// restoreFloor regenerates the saved floor and reapplies its progress
func (o *orchestrator) restoreFloor(ctx context.Context, saved *entities.RunState) error {
	o.cfg.Graph.Reset()
	o.cfg.Generator.RestoreUniqueIDs(saved.FloorUniqueIDs)

	out, err := o.cfg.Generator.GenerateFloor(ctx, &topology.GenerateFloorInput{
		Floor: saved.Floor,
		Seed:  random.FloorSeed(saved.Seed, saved.Floor),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to regenerate floor %d", saved.Floor)
	}
	o.cfg.Generator.RestoreUniqueIDs(saved.UsedUniqueIDs)

	o.mu.Lock()
	o.floorUniqueIDs = append([]string(nil), saved.FloorUniqueIDs...)
	o.mu.Unlock()

	for _, id := range saved.VisitedNodeIDs {
		if err := o.cfg.Graph.MarkVisited(id); err != nil {
			return errors.Wrap(err, "saved state does not match the regenerated floor").WithReason(ReasonDesync)
		}
	}
	for _, id := range saved.ClearedNodeIDs {
		if _, err := o.cfg.Graph.MarkCleared(id); err != nil {
			return errors.Wrap(err, "saved state does not match the regenerated floor").WithReason(ReasonDesync)
		}
		if _, err := o.cfg.Graph.UnlockEdgesFrom(id); err != nil {
			return err
		}
	}
	if _, err := o.cfg.Graph.Node(saved.LastNodeID); err != nil {
		return errors.Wrap(err, "saved room does not exist on the regenerated floor").WithReason(ReasonDesync)
	}

	slog.Debug("Floor regenerated", "floor", saved.Floor, "start_id", out.StartID, "rooms", len(out.NodeIDs))
	return nil
}
