package entities

// LockState is the traversal state of a door
type LockState string

// Lock states
const (
	LockStateLocked   LockState = "locked"
	LockStateUnlocked LockState = "unlocked"
)

// RoomNode is one vertex of the dungeon graph
type RoomNode struct {
	ID        string         `json:"id"`
	Floor     int            `json:"floor"`
	Position  GridPosition   `json:"position"`
	Archetype *RoomArchetype `json:"archetype"`
	Order     int            `json:"order"`
	IsStart   bool           `json:"is_start,omitempty"`
	IsBoss    bool           `json:"is_boss,omitempty"`
	Cleared   bool           `json:"cleared"`
	Visited   bool           `json:"visited"`
	// InstanceID links the node to its live instance, if any
	InstanceID string `json:"instance_id,omitempty"`
}

// Type returns the node's room type
func (n *RoomNode) Type() RoomType {
	if n.Archetype == nil {
		return RoomTypeCombat
	}
	return n.Archetype.Type
}

// RequiresClearing reports whether the node's encounter gates its doors
func (n *RoomNode) RequiresClearing() bool {
	return n.Archetype != nil && n.Archetype.RequiresClearing
}

// Edge is a directed door from one room to another
type Edge struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	TargetID   string    `json:"target_id"`
	TargetType RoomType  `json:"target_type"`
	Weight     float64   `json:"weight"`
	Lock       LockState `json:"lock"`
}

// Locked reports whether the door refuses traversal
func (e *Edge) Locked() bool {
	return e.Lock == LockStateLocked
}
