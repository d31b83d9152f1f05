package roompool

import (
	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
)

// Catalog holds the pools for every floor of a run
type Catalog struct {
	pools []*Pool
}

// NewCatalog builds one Pool per floor, in floor order
func NewCatalog(floors []*entities.FloorPool) (*Catalog, error) {
	if len(floors) == 0 {
		return nil, errors.InvalidArgument("at least one floor pool is required")
	}

	c := &Catalog{}
	for _, f := range floors {
		p, err := New(f)
		if err != nil {
			return nil, err
		}
		c.pools = append(c.pools, p)
	}
	return c, nil
}

// ForFloor returns the pool for a 1-based floor, clamping past either end
func (c *Catalog) ForFloor(floor int) *Pool {
	idx := floor - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(c.pools) {
		idx = len(c.pools) - 1
	}
	return c.pools[idx]
}

// Len returns the number of distinct floor pools
func (c *Catalog) Len() int {
	return len(c.pools)
}

// RareRewardChance returns the chance of a rare reward on a floor, clamped to [0, 1]
func RareRewardChance(base, perFloor float64, floor int) float64 {
	chance := base + perFloor*float64(floor-1)
	switch {
	case chance < 0:
		return 0
	case chance > 1:
		return 1
	default:
		return chance
	}
}
