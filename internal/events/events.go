// Package events carries dungeon notifications between the traversal
// coordinator, room instances and encounter controllers. Events travel over a
// rpg-toolkit event bus as GameEvents.
package events

import (
	"github.com/KirkDiggler/rpg-toolkit/core"
	rpgevents "github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
)

// Type identifies an event kind for subscription
type Type string

// Event types
const (
	TypeRoomEntered  Type = "dungeon.room.entered"
	TypeRoomExited   Type = "dungeon.room.exited"
	TypeRoomCleared  Type = "dungeon.room.cleared"
	TypeFloorChanged Type = "dungeon.floor.changed"
	TypeActorSpawned Type = "dungeon.actor.spawned"
	TypeHostileDied  Type = "dungeon.hostile.died"
)

// GameEvent context keys. KeyPayload holds the typed Event.
const (
	KeyPayload   = "payload"
	KeyNodeID    = "node_id"
	KeyFloor     = "floor"
	KeyDepth     = "depth"
	KeyRoomType  = "room_type"
	KeyStartID   = "start_id"
	KeyHandle    = "handle"
	KeyArchetype = "archetype_id"
	KeyWave      = "wave"
)

// EntityTypeRoom is the core.Entity type of RoomRef
const EntityTypeRoom = "dungeon_room"

// RoomRef names a room node as a core.Entity
type RoomRef string

// GetID implements core.Entity
func (r RoomRef) GetID() string { return string(r) }

// GetType implements core.Entity
func (r RoomRef) GetType() string { return EntityTypeRoom }

// Event is anything published on a Bus
type Event interface {
	EventType() Type
	// source is the entity the GameEvent is attributed to
	source() core.Entity
	annotate(c rpgevents.Context)
}

// RoomEntered fires after a traversal commits
type RoomEntered struct {
	NodeID   string
	Floor    int
	RoomType entities.RoomType
}

// EventType implements Event
func (RoomEntered) EventType() Type { return TypeRoomEntered }

func (e RoomEntered) source() core.Entity { return RoomRef(e.NodeID) }

func (e RoomEntered) annotate(c rpgevents.Context) {
	c.Set(KeyNodeID, e.NodeID)
	c.Set(KeyFloor, e.Floor)
	c.Set(KeyRoomType, string(e.RoomType))
}

// RoomExited fires for the room the actor left, just before RoomEntered
type RoomExited struct {
	NodeID string
	Floor  int
}

// EventType implements Event
func (RoomExited) EventType() Type { return TypeRoomExited }

func (e RoomExited) source() core.Entity { return RoomRef(e.NodeID) }

func (e RoomExited) annotate(c rpgevents.Context) {
	c.Set(KeyNodeID, e.NodeID)
	c.Set(KeyFloor, e.Floor)
}

// RoomCleared fires once per room when its last wave is defeated
type RoomCleared struct {
	NodeID   string
	Floor    int
	RoomType entities.RoomType
}

// EventType implements Event
func (RoomCleared) EventType() Type { return TypeRoomCleared }

func (e RoomCleared) source() core.Entity { return RoomRef(e.NodeID) }

func (e RoomCleared) annotate(c rpgevents.Context) {
	c.Set(KeyNodeID, e.NodeID)
	c.Set(KeyFloor, e.Floor)
	c.Set(KeyRoomType, string(e.RoomType))
}

// FloorChanged fires after the next floor has been generated
type FloorChanged struct {
	Depth   int
	StartID string
}

// EventType implements Event
func (FloorChanged) EventType() Type { return TypeFloorChanged }

func (e FloorChanged) source() core.Entity { return RoomRef(e.StartID) }

func (e FloorChanged) annotate(c rpgevents.Context) {
	c.Set(KeyDepth, e.Depth)
	c.Set(KeyStartID, e.StartID)
}

// ActorSpawned fires when the actor is placed and for every hostile an
// encounter spawns. Entity, when set, becomes the GameEvent source.
type ActorSpawned struct {
	Handle      string
	NodeID      string
	ArchetypeID string
	Wave        int
	Position    entities.Position
	Entity      core.Entity
}

// EventType implements Event
func (ActorSpawned) EventType() Type { return TypeActorSpawned }

func (e ActorSpawned) source() core.Entity {
	if e.Entity != nil {
		return e.Entity
	}
	return RoomRef(e.NodeID)
}

func (e ActorSpawned) annotate(c rpgevents.Context) {
	c.Set(KeyHandle, e.Handle)
	c.Set(KeyNodeID, e.NodeID)
	c.Set(KeyArchetype, e.ArchetypeID)
	c.Set(KeyWave, e.Wave)
}

// HostileDied fires when a spawned hostile is removed
type HostileDied struct {
	Handle string
	NodeID string
	Entity core.Entity
}

// EventType implements Event
func (HostileDied) EventType() Type { return TypeHostileDied }

func (e HostileDied) source() core.Entity {
	if e.Entity != nil {
		return e.Entity
	}
	return RoomRef(e.NodeID)
}

func (e HostileDied) annotate(c rpgevents.Context) {
	c.Set(KeyHandle, e.Handle)
	c.Set(KeyNodeID, e.NodeID)
}

// Encode wraps e in a GameEvent. The room is the target of every event.
func Encode(e Event) *rpgevents.GameEvent {
	var target core.Entity
	if id := nodeOf(e); id != "" {
		target = RoomRef(id)
	}
	ge := rpgevents.NewGameEvent(string(e.EventType()), e.source(), target)
	ge.Context().Set(KeyPayload, e)
	e.annotate(ge.Context())
	return ge
}

// Decode returns the typed event carried by a GameEvent
func Decode(ge rpgevents.Event) (Event, bool) {
	if ge == nil || ge.Context() == nil {
		return nil, false
	}
	v, ok := ge.Context().Get(KeyPayload)
	if !ok {
		return nil, false
	}
	e, ok := v.(Event)
	return e, ok
}

func nodeOf(e Event) string {
	switch v := e.(type) {
	case RoomEntered:
		return v.NodeID
	case RoomExited:
		return v.NodeID
	case RoomCleared:
		return v.NodeID
	case FloorChanged:
		return v.StartID
	case ActorSpawned:
		return v.NodeID
	case HostileDied:
		return v.NodeID
	}
	return ""
}
