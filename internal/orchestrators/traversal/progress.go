package traversal

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
	"github.com/KirkDiggler/rpg-dungeon/internal/events"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/roompool"
)

// onRoomCleared records a cleared room. Clearing the boss of the current
// floor generates the next floor, or completes the run at MaxFloors.
func (o *orchestrator) onRoomCleared(ctx context.Context, e events.Event) error {
	cleared, ok := e.(events.RoomCleared)
	if !ok {
		return errors.InvalidArgumentf("unexpected event %s", e.EventType())
	}

	changed, err := o.cfg.Graph.MarkCleared(cleared.NodeID)
	if err != nil {
		return errors.Wrap(err, "failed to record cleared room")
	}
	if !changed {
		return nil
	}
	if _, err := o.cfg.Graph.UnlockEdgesFrom(cleared.NodeID); err != nil {
		return errors.Wrap(err, "failed to open doors of cleared room")
	}

	node, err := o.cfg.Graph.Node(cleared.NodeID)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if !node.IsStart {
		o.state.RoomsCompletedInFloor++
		o.state.RoomsCompletedTotal++
		o.state.CategoryVisits[roompool.CategoryOf(node.Type())]++
		o.state.RememberType(node.Type())
	}
	bossDown := node.IsBoss && node.Floor == o.state.Floor && !o.state.Completed
	completed := o.state.RoomsCompletedInFloor
	o.mu.Unlock()

	slog.Info("Room cleared",
		"node_id", node.ID,
		"floor", node.Floor,
		"room_type", node.Type(),
		"rooms_completed_in_floor", completed,
	)

	if bossDown {
		return o.advanceFloor(ctx)
	}
	return nil
}

func (o *orchestrator) advanceFloor(ctx context.Context) error {
	o.mu.Lock()
	if o.cfg.MaxFloors > 0 && o.state.Floor >= o.cfg.MaxFloors {
		o.state.Completed = true
		floor := o.state.Floor
		o.mu.Unlock()
		slog.Info("Run completed", "floor", floor, "rooms_completed_total", o.State().RoomsCompletedTotal)
		return nil
	}
	next := o.state.Floor + 1
	o.state.ResetFloor(next)
	o.mu.Unlock()

	startID, err := o.generateFloor(ctx, next)
	if err != nil {
		slog.Error("Failed to generate next floor", "floor", next, "error", err)
		return err
	}

	o.mu.Lock()
	o.pendingDescent = true
	o.mu.Unlock()

	slog.Info("Floor unlocked", "floor", next, "start_id", startID)
	return o.cfg.EventBus.Publish(ctx, events.FloorChanged{Depth: next, StartID: startID})
}

// AvailableTargets implements Service. Outside a pending descent the targets
// are the unvisited regular rooms of the floor; once those run out the boss
// is offered alone when its threshold is met.
func (o *orchestrator) AvailableTargets(_ context.Context) (*AvailableTargetsOutput, error) {
	o.mu.RLock()
	floor := o.state.Floor
	current := o.state.CurrentNodeID
	completed := o.state.RoomsCompletedInFloor
	descending := o.pendingDescent
	runDone := o.state.Completed
	o.mu.RUnlock()

	if descending {
		if startID := o.cfg.Graph.StartNodeID(floor); startID != "" {
			return &AvailableTargetsOutput{NodeIDs: []string{startID}, Descent: true}, nil
		}
	}

	var ids []string
	var boss *entities.RoomNode
	for _, n := range o.cfg.Graph.Nodes(floor) {
		switch {
		case n.IsBoss:
			boss = n
		case n.IsStart, n.ID == current, n.Visited:
		default:
			ids = append(ids, n.ID)
		}
	}
	if len(ids) > 0 {
		return &AvailableTargetsOutput{NodeIDs: ids}, nil
	}

	if !runDone && boss != nil && !boss.Visited && boss.ID != current &&
		completed >= o.cfg.Catalog.ForFloor(floor).MinRoomsBeforeBoss() {
		return &AvailableTargetsOutput{NodeIDs: []string{boss.ID}, BossOnly: true}, nil
	}

	return nil, errors.NotFoundf("no rooms left to enter on floor %d", floor).WithReason(ReasonNoTargets)
}
