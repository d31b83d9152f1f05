// Package roompool provides per-floor room archetype tables and weighted lookups.
package roompool

import (
	"log/slog"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/selection"
)

// Failure reasons attached to pool errors
const (
	ReasonNoSelection = "no_selection"
	ReasonCategoryCap = "category_cap"
)

// Pool is the immutable room table for one floor
type Pool struct {
	name               string
	depth              int
	minRoomsBeforeBoss int
	maxShopRooms       int
	maxSpecialRooms    int
	entries            []selection.Entry[*entities.RoomArchetype]
}

// PickInput narrows a pool lookup
type PickInput struct {
	Category entities.Category
	Depth    int
	// ExcludedIDs holds unique-per-run archetypes that were already used
	ExcludedIDs map[string]bool
	// Types optionally restricts the pick to specific room types within the category
	Types []entities.RoomType
	// Counts holds rooms already placed per category on this floor, for caps
	Counts map[entities.Category]int
}

// New validates a floor pool and indexes it
func New(cfg *entities.FloorPool) (*Pool, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("floor pool is required")
	}

	vb := errors.NewValidationBuilder()
	if len(cfg.Entries) == 0 {
		vb.RequiredField("Entries")
	}
	if cfg.MinRoomsBeforeBoss < 0 {
		vb.Field("MinRoomsBeforeBoss", "must not be negative")
	}
	if cfg.MaxShopRooms < 0 {
		vb.Field("MaxShopRooms", "must not be negative")
	}
	if cfg.MaxSpecialRooms < 0 {
		vb.Field("MaxSpecialRooms", "must not be negative")
	}
	for i, e := range cfg.Entries {
		if e.Archetype == nil {
			vb.Fieldf("Entries", "entry %d has no archetype", i)
			continue
		}
		if e.Archetype.ID == "" {
			vb.Fieldf("Entries", "entry %d archetype has no id", i)
		}
		errors.ValidatePositive(e.Archetype.ID+".Weight", e.Weight, vb)
		errors.ValidateBounds(e.Archetype.ID+".DoorCount", e.Archetype.MinDoorCount, maxOrMin(e.Archetype), vb)
	}
	if err := vb.Build(); err != nil {
		return nil, errors.Wrapf(err, "invalid floor pool %q", cfg.Name)
	}

	p := &Pool{
		name:               cfg.Name,
		depth:              cfg.Depth,
		minRoomsBeforeBoss: cfg.MinRoomsBeforeBoss,
		maxShopRooms:       cfg.MaxShopRooms,
		maxSpecialRooms:    cfg.MaxSpecialRooms,
	}
	for _, e := range cfg.Entries {
		p.entries = append(p.entries, selection.Entry[*entities.RoomArchetype]{Item: e.Archetype, Weight: e.Weight})
	}
	return p, nil
}

// unlimited door counts validate as an open upper bound
func maxOrMin(a *entities.RoomArchetype) int {
	if a.MaxDoorCount == 0 {
		return a.MinDoorCount
	}
	return a.MaxDoorCount
}

// Name returns the pool's display name
func (p *Pool) Name() string { return p.name }

// MinRoomsBeforeBoss is the number of rooms to complete on the floor before the boss opens
func (p *Pool) MinRoomsBeforeBoss() int { return p.minRoomsBeforeBoss }

// CapFor returns the per-floor cap for a category, 0 meaning unlimited
func (p *Pool) CapFor(category entities.Category) int {
	switch category {
	case entities.CategoryShop:
		return p.maxShopRooms
	case entities.CategorySpecial:
		return p.maxSpecialRooms
	default:
		return 0
	}
}

// CapReached reports whether counts already hit the category's cap
func (p *Pool) CapReached(category entities.Category, counts map[entities.Category]int) bool {
	limit := p.CapFor(category)
	return limit > 0 && counts[category] >= limit
}

// Pick selects an archetype of the requested category valid at the given depth
func (p *Pool) Pick(src selection.Source, input *PickInput) (*entities.RoomArchetype, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	if p.CapReached(input.Category, input.Counts) {
		return nil, errors.ResourceExhaustedf("category %s reached its cap of %d", input.Category, p.CapFor(input.Category)).
			WithReason(ReasonCategoryCap).
			WithMeta("pool", p.name)
	}

	exclude := func(a *entities.RoomArchetype) bool {
		if CategoryOf(a.Type) != input.Category {
			return true
		}
		if !a.ValidAtDepth(input.Depth) {
			return true
		}
		if input.ExcludedIDs[a.ID] {
			return true
		}
		return len(input.Types) > 0 && !containsType(input.Types, a.Type)
	}

	archetype, ok := selection.Pick(src, p.entries, exclude)
	if !ok {
		slog.Debug("Room pool has no eligible archetype",
			"pool", p.name,
			"category", input.Category,
			"depth", input.Depth,
		)
		return nil, errors.NotFoundf("no %s archetype available at depth %d", input.Category, input.Depth).
			WithReason(ReasonNoSelection).
			WithMeta("pool", p.name)
	}
	return archetype, nil
}

// Entry returns the archetype used for a floor's start room: the first entry
// archetype valid at depth, or the first archetype in the pool.
func (p *Pool) Entry(depth int) *entities.RoomArchetype {
	for _, e := range p.entries {
		if e.Item.Type == entities.RoomTypeEntry && e.Item.ValidAtDepth(depth) {
			return e.Item
		}
	}
	slog.Warn("Room pool has no entry archetype, using first entry", "pool", p.name)
	return p.entries[0].Item
}

// Has reports whether any archetype of the category is valid at depth
func (p *Pool) Has(category entities.Category, depth int) bool {
	for _, e := range p.entries {
		if CategoryOf(e.Item.Type) == category && e.Item.ValidAtDepth(depth) {
			return true
		}
	}
	return false
}

func containsType(types []entities.RoomType, t entities.RoomType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
