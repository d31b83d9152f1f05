// Package entities provides core data structures for dungeon generation and traversal.
package entities

import "math"

// RoomType tags an archetype with the kind of room it produces
type RoomType string

// Room types
const (
	RoomTypeEntry   RoomType = "entry"
	RoomTypeCombat  RoomType = "combat"
	RoomTypeElite   RoomType = "elite"
	RoomTypeReward  RoomType = "reward"
	RoomTypeShop    RoomType = "shop"
	RoomTypeRest    RoomType = "rest"
	RoomTypeSpecial RoomType = "special"
	RoomTypeBoss    RoomType = "boss"
)

// Category groups room types for pool lookups and caps
type Category string

// Pool categories
const (
	CategoryEntry   Category = "entry"
	CategoryCombat  Category = "combat"
	CategoryReward  Category = "reward"
	CategoryShop    Category = "shop"
	CategoryRest    Category = "rest"
	CategorySpecial Category = "special"
	CategoryBoss    Category = "boss"
)

// NextRoomType is one weighted option for the rooms a door may lead to
type NextRoomType struct {
	Type   RoomType `json:"type"`
	Weight float64  `json:"weight"`
	// MaxDoors caps how many doors of one room may lead to this type. 0 means no cap.
	MaxDoors int `json:"max_doors,omitempty"`
}

// RoomArchetype is an immutable template for a category of room
type RoomArchetype struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Type             RoomType       `json:"type"`
	Difficulty       int            `json:"difficulty"`
	MinDoorCount     int            `json:"min_door_count"`
	MaxDoorCount     int            `json:"max_door_count"` // 0 means unlimited
	NextTypes        []NextRoomType `json:"next_types,omitempty"`
	UniquePerRun     bool           `json:"unique_per_run,omitempty"`
	MinFloorDepth    int            `json:"min_floor_depth,omitempty"` // 0 means no lower bound
	MaxFloorDepth    int            `json:"max_floor_depth,omitempty"` // 0 means no upper bound
	RequiresClearing bool           `json:"requires_clearing"`
	TotalWaves       int            `json:"total_waves,omitempty"`
	Waves            []WaveSpec     `json:"waves,omitempty"`
}

// ValidAtDepth reports whether the archetype may appear on the given floor depth
func (a *RoomArchetype) ValidAtDepth(depth int) bool {
	if a.MinFloorDepth > 0 && depth < a.MinFloorDepth {
		return false
	}
	if a.MaxFloorDepth > 0 && depth > a.MaxFloorDepth {
		return false
	}
	return true
}

// HasDoorCapacity reports whether a room with doors existing doors can take one more
func (a *RoomArchetype) HasDoorCapacity(doors int) bool {
	return a.MaxDoorCount == 0 || doors < a.MaxDoorCount
}

// WaveSpec describes one wave of hostiles, relative to the room origin
type WaveSpec struct {
	SpawnPoints   []Position `json:"spawn_points"`
	ScatterRadius float64    `json:"scatter_radius,omitempty"`
}

// RoomTemplate is concrete room content that can be built for compatible room types
type RoomTemplate struct {
	Name       string     `json:"name"`
	RoomTypes  []RoomType `json:"room_types"`
	EntryPoint Position   `json:"entry_point"`
	Weight     float64    `json:"weight,omitempty"`
}

// Supports reports whether the template can be built for the room type
func (t *RoomTemplate) Supports(roomType RoomType) bool {
	for _, rt := range t.RoomTypes {
		if rt == roomType {
			return true
		}
	}
	return false
}

// HostileTier separates regular, elite and boss hostiles
type HostileTier string

// Hostile tiers
const (
	HostileTierBasic HostileTier = "basic"
	HostileTierElite HostileTier = "elite"
	HostileTierBoss  HostileTier = "boss"
)

// HostileArchetype describes a spawnable hostile
type HostileArchetype struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Tier         HostileTier `json:"tier"`
	SpawnWeight  float64     `json:"spawn_weight"`
	MinGroupSize int         `json:"min_group_size"`
	MaxGroupSize int         `json:"max_group_size"`
}

// PoolEntry is a weighted archetype within a floor pool
type PoolEntry struct {
	Archetype *RoomArchetype `json:"archetype"`
	Weight    float64        `json:"weight"`
}

// FloorPool is the room table for one floor
type FloorPool struct {
	Name               string      `json:"name"`
	Depth              int         `json:"depth"`
	Entries            []PoolEntry `json:"entries"`
	MinRoomsBeforeBoss int         `json:"min_rooms_before_boss"`
	MaxShopRooms       int         `json:"max_shop_rooms,omitempty"`    // 0 means unlimited
	MaxSpecialRooms    int         `json:"max_special_rooms,omitempty"` // 0 means unlimited
}

// Position is a world-space coordinate
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Add returns p offset by o
func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

// Sub returns the offset from o to p
func (p Position) Sub(o Position) Position {
	return Position{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

// DistanceTo returns the planar distance between two positions
func (p Position) DistanceTo(o Position) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// GridPosition is a room's cell on its floor grid
type GridPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Origin is the grid cell of every floor's start room
var Origin = GridPosition{}

// DistanceTo returns the Euclidean distance between two cells
func (g GridPosition) DistanceTo(o GridPosition) float64 {
	return math.Hypot(float64(g.X-o.X), float64(g.Y-o.Y))
}

// World converts the cell to the world position of its room origin
func (g GridPosition) World(spacing float64) Position {
	return Position{X: float64(g.X) * spacing, Y: float64(g.Y) * spacing}
}
