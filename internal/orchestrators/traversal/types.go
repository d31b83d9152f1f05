package traversal

import (
	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
	"github.com/KirkDiggler/rpg-dungeon/internal/orchestrators/encounter"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/room"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/topology"
)

// Phase is the stage of the transition in flight
type Phase string

// Transition phases. Idle means no transition is in flight.
const (
	PhaseIdle       Phase = "idle"
	PhaseRequested  Phase = "requested"
	PhaseStaging    Phase = "staging"
	PhaseGating     Phase = "gating"
	PhaseCommitting Phase = "committing"
	PhaseDone       Phase = "done"
)

// Denial reasons reported to the caller of a refused transition
const (
	ReasonBusy            = "busy"
	ReasonLocked          = topology.ReasonLocked
	ReasonBossLocked      = "boss_locked"
	ReasonNoTargets       = "no_targets"
	ReasonCanceled        = "canceled"
	ReasonTemplateMissing = room.ReasonTemplateMissing
	ReasonDesync          = topology.ReasonDesync
)

// ReasonOf returns the denial reason carried by a traversal error, or ""
func ReasonOf(err error) string {
	return errors.GetReason(err)
}

// BeginInput starts a run
type BeginInput struct {
	Actor Actor
}

// BeginOutput describes where the actor was placed
type BeginOutput struct {
	NodeID     string
	InstanceID string
	Floor      int
	Position   entities.Position
}

// TransitionInput requests a move. Random picks from the available targets
// and ignores TargetNodeID.
type TransitionInput struct {
	TargetNodeID string
	Random       bool
}

// TransitionOutput describes a committed transition
type TransitionOutput struct {
	FromNodeID     string
	ToNodeID       string
	InstanceID     string
	Floor          int
	Descended      bool
	EncounterState encounter.State
}

// InteractDoorInput names the door the actor used
type InteractDoorInput struct {
	EdgeID string
}

// AvailableTargetsOutput lists the nodes a random transition may pick
type AvailableTargetsOutput struct {
	NodeIDs []string
	// BossOnly is set when every other room is visited and the boss is the only choice
	BossOnly bool
	// Descent is set when the only target is the start of the next floor
	Descent bool
}

// ResolveActorRoomOutput holds the node containing the actor
type ResolveActorRoomOutput struct {
	Node *entities.RoomNode
}

// ResumeInput restores a saved run
type ResumeInput struct {
	Actor Actor
	State *entities.RunState
}
