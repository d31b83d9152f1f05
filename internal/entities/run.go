package entities

import "time"

// RunState is the minimal saved state needed to resume a run
type RunState struct {
	RunID                 string           `json:"run_id"`
	Seed                  int64            `json:"seed"`
	Floor                 int              `json:"floor"`
	VisitedNodeIDs        []string         `json:"visited_node_ids"`
	ClearedNodeIDs        []string         `json:"cleared_node_ids"`
	CategoryVisits        map[Category]int `json:"category_visits"`
	RoomsCompletedInFloor int              `json:"rooms_completed_in_floor"`
	RoomsCompletedTotal   int              `json:"rooms_completed_total"`
	History               []string         `json:"history"`
	PreviousRoomTypes     []RoomType       `json:"previous_room_types,omitempty"`
	// UsedUniqueIDs holds every unique-per-run archetype placed so far
	UsedUniqueIDs []string `json:"used_unique_ids,omitempty"`
	// FloorUniqueIDs holds the unique archetypes placed before the saved floor
	// was generated, so the floor regenerates identically
	FloorUniqueIDs []string `json:"floor_unique_ids,omitempty"`
	LastNodeID     string   `json:"last_node_id"`
	// LocalOffset is the actor's position relative to the last node's room origin
	LocalOffset Position  `json:"local_offset"`
	Completed   bool      `json:"completed,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}
