package entities

// PreviousTypesWindow is how many recently cleared room types are remembered
const PreviousTypesWindow = 3

// DungeonState is the run-wide traversal bookkeeping
type DungeonState struct {
	Floor                 int              `json:"floor"`
	RoomsCompletedInFloor int              `json:"rooms_completed_in_floor"`
	RoomsCompletedTotal   int              `json:"rooms_completed_total"`
	History               []string         `json:"history"`
	CategoryVisits        map[Category]int `json:"category_visits"`
	PreviousRoomTypes     []RoomType       `json:"previous_room_types"`
	CurrentNodeID         string           `json:"current_node_id"`
	Completed             bool             `json:"completed"`
}

// NewDungeonState returns the state at the start of a run
func NewDungeonState() *DungeonState {
	return &DungeonState{
		Floor:          1,
		CategoryVisits: make(map[Category]int),
	}
}

// Clone returns a deep copy safe to hand to readers
func (s *DungeonState) Clone() *DungeonState {
	out := *s
	out.History = append([]string(nil), s.History...)
	out.PreviousRoomTypes = append([]RoomType(nil), s.PreviousRoomTypes...)
	out.CategoryVisits = make(map[Category]int, len(s.CategoryVisits))
	for k, v := range s.CategoryVisits {
		out.CategoryVisits[k] = v
	}
	return &out
}

// RememberType appends a cleared room type, keeping the last PreviousTypesWindow
func (s *DungeonState) RememberType(t RoomType) {
	s.PreviousRoomTypes = append(s.PreviousRoomTypes, t)
	if n := len(s.PreviousRoomTypes); n > PreviousTypesWindow {
		s.PreviousRoomTypes = append([]RoomType(nil), s.PreviousRoomTypes[n-PreviousTypesWindow:]...)
	}
}

// ResetFloor clears the per-floor counters when descending
func (s *DungeonState) ResetFloor(floor int) {
	s.Floor = floor
	s.RoomsCompletedInFloor = 0
	s.CategoryVisits = make(map[Category]int)
	s.PreviousRoomTypes = nil
}
