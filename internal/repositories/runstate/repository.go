// Package runstate stores saved dungeon runs so they can be resumed
package runstate

import (
	"context"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
)

// Repository defines the storage interface for saved runs
type Repository interface {
	// Save stores a run, replacing any earlier save with the same run ID
	Save(ctx context.Context, input *SaveInput) (*SaveOutput, error)

	// Get retrieves a saved run by ID
	Get(ctx context.Context, input *GetInput) (*GetOutput, error)

	// Delete removes a saved run
	Delete(ctx context.Context, input *DeleteInput) (*DeleteOutput, error)
}

// SaveInput defines the input for saving a run
type SaveInput struct {
	State *entities.RunState
}

// SaveOutput defines the output of saving a run
type SaveOutput struct {
	RunID string
}

// GetInput defines the input for retrieving a run
type GetInput struct {
	RunID string
}

// GetOutput defines the output of retrieving a run
type GetOutput struct {
	State *entities.RunState
}

// DeleteInput defines the input for deleting a run
type DeleteInput struct {
	RunID string
}

// DeleteOutput defines the output of deleting a run
type DeleteOutput struct {
	Deleted bool
}

func validateState(state *entities.RunState) error {
	if state == nil {
		return errRequired("state")
	}
	if state.RunID == "" {
		return errRequired("run ID")
	}
	return nil
}
