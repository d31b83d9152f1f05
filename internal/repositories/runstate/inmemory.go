package runstate

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
)

// InMemoryRepository implements Repository using in-memory storage. Saves
// are stored encoded so callers never share state with the store.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store map[string][]byte
}

// NewInMemory creates a new in-memory repository
func NewInMemory() *InMemoryRepository {
	return &InMemoryRepository{
		store: make(map[string][]byte),
	}
}

var _ Repository = (*InMemoryRepository)(nil)

// Save implements Repository
func (r *InMemoryRepository) Save(_ context.Context, input *SaveInput) (*SaveOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if err := validateState(input.State); err != nil {
		return nil, err
	}

	data, err := json.Marshal(input.State)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal run state")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[input.State.RunID] = data

	return &SaveOutput{RunID: input.State.RunID}, nil
}

// Get implements Repository
func (r *InMemoryRepository) Get(_ context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil || input.RunID == "" {
		return nil, errRequired("run ID")
	}

	r.mu.RLock()
	data, exists := r.store[input.RunID]
	r.mu.RUnlock()
	if !exists {
		return nil, errors.NotFoundf("run %s not found", input.RunID)
	}

	var state entities.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal run %s", input.RunID)
	}
	return &GetOutput{State: &state}, nil
}

// Delete implements Repository
func (r *InMemoryRepository) Delete(_ context.Context, input *DeleteInput) (*DeleteOutput, error) {
	if input == nil || input.RunID == "" {
		return nil, errRequired("run ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.store[input.RunID]
	delete(r.store, input.RunID)
	return &DeleteOutput{Deleted: exists}, nil
}
