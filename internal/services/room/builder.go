package room

import (
	"context"
	"sync"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
)

//go:generate mockgen -destination=mock/mock_builder.go -package=roommock github.com/KirkDiggler/rpg-dungeon/internal/services/room Builder,NavMeshBaker

// Builder creates and destroys the concrete geometry of a room
type Builder interface {
	Build(ctx context.Context, input *BuildInput) (*BuildOutput, error)
	Destroy(ctx context.Context, input *DestroyInput) error
}

// BuildInput describes the geometry to create
type BuildInput struct {
	InstanceID string
	Node       *entities.RoomNode
	Template   *entities.RoomTemplate
	Origin     entities.Position
}

// BuildOutput holds the builder's handle for the geometry
type BuildOutput struct {
	Handle string
}

// DestroyInput names the geometry to tear down
type DestroyInput struct {
	InstanceID string
	Handle     string
}

// NavMeshBaker prepares navigation data for rooms with hostiles.
// Bake returns false when the bake completed without usable data.
type NavMeshBaker interface {
	Bake(ctx context.Context, input *BakeInput) (bool, error)
}

// BakeInput names the instance to bake
type BakeInput struct {
	InstanceID string
	NodeID     string
	Handle     string
}

// VirtualBuilder hands out geometry handles without building anything. It is
// used by headless runs.
type VirtualBuilder struct {
	mu   sync.Mutex
	live map[string]bool
}

// NewVirtualBuilder returns an empty VirtualBuilder
func NewVirtualBuilder() *VirtualBuilder {
	return &VirtualBuilder{live: make(map[string]bool)}
}

var _ Builder = (*VirtualBuilder)(nil)

// Build implements Builder
func (b *VirtualBuilder) Build(_ context.Context, input *BuildInput) (*BuildOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	handle := "geo_" + input.InstanceID
	b.live[handle] = true
	return &BuildOutput{Handle: handle}, nil
}

// Destroy implements Builder
func (b *VirtualBuilder) Destroy(_ context.Context, input *DestroyInput) error {
	if input == nil {
		return errors.InvalidArgument("input is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.live[input.Handle] {
		return errors.NotFoundf("geometry %s not found", input.Handle)
	}
	delete(b.live, input.Handle)
	return nil
}

// Live returns the number of built, undestroyed handles
func (b *VirtualBuilder) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

// InstantBaker reports every bake as successful
type InstantBaker struct{}

var _ NavMeshBaker = InstantBaker{}

// Bake implements NavMeshBaker
func (InstantBaker) Bake(context.Context, *BakeInput) (bool, error) {
	return true, nil
}
