// Package encounter runs the wave encounter of one live room. A Controller
// spawns hostiles wave by wave and raises RoomCleared once the last wave dies.
package encounter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
	"github.com/KirkDiggler/rpg-dungeon/internal/events"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/idgen"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/random"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/selection"
)

// Config holds the dependencies for one room's controller
type Config struct {
	NodeID           string
	Floor            int
	RoomType         entities.RoomType
	RequiresClearing bool
	Roster           []*entities.HostileArchetype
	// Origin is the room's world origin; spawn points are relative to it
	Origin entities.Position

	Roller      dice.Roller
	Rand        selection.Source
	IDGenerator idgen.Generator
	EventBus    events.Bus

	// Cleared restores a controller for a room that was cleared before eviction
	Cleared bool
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}

	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("NodeID", c.NodeID, vb)
	if c.Roller == nil {
		vb.RequiredField("Roller")
	}
	if c.Rand == nil {
		vb.RequiredField("Rand")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}
	if c.EventBus == nil {
		vb.RequiredField("EventBus")
	}
	return vb.Build()
}

// Controller sequences the waves of one live room
type Controller struct {
	cfg Config

	mu         sync.Mutex
	state      State
	wave       int
	totalWaves int
	waves      []entities.WaveSpec
	alive      map[string]*Hostile
	spawned    []*Hostile
}

// NewController creates a controller in Idle, or in Cleared when restoring
func NewController(cfg *Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	state := StateIdle
	if cfg.Cleared {
		state = StateCleared
	}
	return &Controller{
		cfg:   *cfg,
		state: state,
		alive: make(map[string]*Hostile),
	}, nil
}

// Start spawns the first wave. Rooms with no waves, or that do not require
// clearing, clear immediately. Calling Start on a started controller is a no-op.
func (c *Controller) Start(ctx context.Context, input *StartInput) (*StartOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.TotalWaves < 0 {
		return nil, errors.InvalidArgumentf("total waves must not be negative, got %d", input.TotalWaves)
	}

	c.mu.Lock()
	if c.state != StateIdle {
		out := &StartOutput{State: c.state}
		c.mu.Unlock()
		return out, nil
	}

	c.totalWaves = input.TotalWaves
	c.waves = append([]entities.WaveSpec(nil), input.Waves...)

	var spawned []*Hostile
	var pending []events.Event
	if input.TotalWaves == 0 || !c.cfg.RequiresClearing {
		c.state = StateCleared
		pending = append(pending, c.clearedEvent())
		slog.Info("Room cleared on entry", "node_id", c.cfg.NodeID, "room_type", c.cfg.RoomType)
	} else {
		spawned, pending = c.spawnWaveLocked(0)
	}
	out := &StartOutput{State: c.state, Spawned: spawned}
	c.mu.Unlock()

	return out, c.publish(ctx, pending)
}

// OnHostileDeath removes a hostile from the alive set. When the set empties
// the next wave spawns, or the room clears after the last one. Unknown ids and
// deaths after the room cleared are ignored.
func (c *Controller) OnHostileDeath(ctx context.Context, hostileID string) (*HostileDeathOutput, error) {
	c.mu.Lock()
	dead, ok := c.alive[hostileID]
	if !ok || c.state != StateAwaitingClear {
		out := &HostileDeathOutput{State: c.state}
		c.mu.Unlock()
		return out, nil
	}

	delete(c.alive, hostileID)
	pending := []events.Event{events.HostileDied{Handle: hostileID, NodeID: c.cfg.NodeID, Entity: dead}}
	out := &HostileDeathOutput{}

	if len(c.alive) == 0 {
		if c.wave+1 < c.totalWaves {
			var next []events.Event
			out.Spawned, next = c.spawnWaveLocked(c.wave + 1)
			pending = append(pending, next...)
			out.Cleared = c.state == StateCleared
		} else {
			c.state = StateCleared
			out.Cleared = true
			pending = append(pending, c.clearedEvent())
			slog.Info("Room cleared",
				"node_id", c.cfg.NodeID,
				"waves", c.totalWaves,
				"hostiles", len(c.spawned),
			)
		}
	}
	out.State = c.state
	c.mu.Unlock()

	return out, c.publish(ctx, pending)
}

// spawnWaveLocked places every hostile of a wave. A wave that yields nothing
// clears the room so traversal cannot deadlock on it.
func (c *Controller) spawnWaveLocked(index int) ([]*Hostile, []events.Event) {
	c.state = StateSpawning
	c.wave = index

	var spec entities.WaveSpec
	if len(c.waves) > 0 {
		spec = c.waves[min(index, len(c.waves)-1)]
	}

	tier := TierFor(c.cfg.RoomType)
	candidates := make([]selection.Entry[*entities.HostileArchetype], 0, len(c.cfg.Roster))
	for _, a := range c.cfg.Roster {
		if a != nil && a.Tier == tier {
			candidates = append(candidates, selection.Entry[*entities.HostileArchetype]{Item: a, Weight: a.SpawnWeight})
		}
	}

	var spawned []*Hostile
	var pending []events.Event
	for _, point := range spec.SpawnPoints {
		archetype, ok := selection.Pick(c.cfg.Rand, candidates, nil)
		if !ok {
			slog.Warn("No hostile archetype for tier", "node_id", c.cfg.NodeID, "tier", tier)
			continue
		}

		size, err := groupSize(c.cfg.Roller, archetype)
		if err != nil {
			slog.Warn("Failed to roll group size", "node_id", c.cfg.NodeID, "archetype", archetype.ID, "error", err)
			continue
		}

		radius := spec.ScatterRadius
		if radius <= 0 && size > 1 {
			radius = DefaultScatterRadius
		}

		group := newCluster(c.cfg.NodeID, radius)
		for j := 0; j < size; j++ {
			h := &Hostile{
				id:          c.cfg.IDGenerator.Generate(),
				archetypeID: archetype.ID,
				tier:        tier,
				wave:        index,
				onDeath:     c.handleDeath,
			}
			h.position = c.cfg.Origin.Add(point).Add(group.place(h, c.cfg.Rand))
			c.alive[h.id] = h
			c.spawned = append(c.spawned, h)
			spawned = append(spawned, h)
			pending = append(pending, events.ActorSpawned{
				Handle:      h.id,
				NodeID:      c.cfg.NodeID,
				ArchetypeID: archetype.ID,
				Wave:        index,
				Position:    h.position,
				Entity:      h,
			})

			slog.Debug("Hostile spawned",
				"node_id", c.cfg.NodeID,
				"hostile_id", h.id,
				"archetype", archetype.ID,
				"wave", index,
			)
		}
	}

	if len(spawned) == 0 {
		slog.Warn("Wave has no spawnable hostiles, clearing room",
			"node_id", c.cfg.NodeID,
			"wave", index,
			"spawn_points", len(spec.SpawnPoints),
		)
		c.state = StateCleared
		return nil, append(pending, c.clearedEvent())
	}

	c.state = StateAwaitingClear
	slog.Info("Wave spawned",
		"node_id", c.cfg.NodeID,
		"wave", index,
		"total_waves", c.totalWaves,
		"hostiles", len(spawned),
	)
	return spawned, pending
}

func groupSize(roller dice.Roller, a *entities.HostileArchetype) (int, error) {
	lo := max(a.MinGroupSize, 1)
	hi := max(a.MaxGroupSize, lo)
	return random.Between(roller, lo, hi)
}

func (c *Controller) handleDeath(ctx context.Context, h *Hostile) error {
	_, err := c.OnHostileDeath(ctx, h.id)
	return err
}

func (c *Controller) clearedEvent() events.Event {
	return events.RoomCleared{NodeID: c.cfg.NodeID, Floor: c.cfg.Floor, RoomType: c.cfg.RoomType}
}

func (c *Controller) publish(ctx context.Context, pending []events.Event) error {
	var errs []error
	for _, e := range pending {
		if err := c.cfg.EventBus.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Wrap(errors.Join(errs...), "failed to publish encounter events")
	}
	return nil
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cleared reports whether the encounter reached its terminal state
func (c *Controller) Cleared() bool {
	return c.State() == StateCleared
}

// Hostiles returns the living hostiles in spawn order
func (c *Controller) Hostiles() []*Hostile {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Hostile, 0, len(c.alive))
	for _, h := range c.spawned {
		if _, ok := c.alive[h.id]; ok {
			out = append(out, h)
		}
	}
	return out
}

// Snapshot returns a read-only view of the controller
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		NodeID:     c.cfg.NodeID,
		State:      c.state,
		WaveIndex:  c.wave,
		TotalWaves: c.totalWaves,
		Alive:      len(c.alive),
		Spawned:    len(c.spawned),
		Cleared:    c.state == StateCleared,
	}
}
