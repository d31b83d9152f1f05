package traversal

import (
	"context"
	"sync"

	"github.com/KirkDiggler/rpg-toolkit/core"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
)

// Actor is the character moving through the dungeon. Its controller lives
// outside this package; traversal only reads and sets its position.
type Actor interface {
	core.Entity
	Position() entities.Position
	MoveTo(ctx context.Context, pos entities.Position) error
}

// BasicActor is an Actor with no presence beyond its position
type BasicActor struct {
	id string

	mu  sync.RWMutex
	pos entities.Position
}

// NewBasicActor returns an actor at the world origin
func NewBasicActor(id string) *BasicActor {
	return &BasicActor{id: id}
}

var _ Actor = (*BasicActor)(nil)

// GetID implements core.Entity
func (a *BasicActor) GetID() string { return a.id }

// GetType implements core.Entity
func (a *BasicActor) GetType() string { return "actor" }

// Position implements Actor
func (a *BasicActor) Position() entities.Position {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pos
}

// MoveTo implements Actor
func (a *BasicActor) MoveTo(_ context.Context, pos entities.Position) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pos = pos
	return nil
}
