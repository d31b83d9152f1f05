package config

import (
	"encoding/json"
	"os"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
)

// Content is the immutable data a run is generated from
type Content struct {
	FloorPools []*entities.FloorPool        `json:"floor_pools"`
	Templates  []*entities.RoomTemplate     `json:"templates"`
	Roster     []*entities.HostileArchetype `json:"roster"`
}

// LoadContent reads content from a JSON file
func LoadContent(path string) (*Content, error) {
	if path == "" {
		return nil, errors.InvalidArgument("content path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("content file %s not found", path)
		}
		return nil, errors.Wrapf(err, "failed to read content file %s", path)
	}

	var content Content
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "failed to decode content")
	}
	if err := content.Validate(); err != nil {
		return nil, err
	}
	return &content, nil
}

// Validate checks that every floor can produce a start and a boss room
func (c *Content) Validate() error {
	if c == nil {
		return errors.InvalidArgument("content is required")
	}

	vb := errors.NewValidationBuilder()
	if len(c.FloorPools) == 0 {
		vb.RequiredField("FloorPools")
	}
	if len(c.Templates) == 0 {
		vb.RequiredField("Templates")
	}
	if len(c.Roster) == 0 {
		vb.RequiredField("Roster")
	}

	for i, pool := range c.FloorPools {
		if pool == nil {
			vb.Fieldf("FloorPools", "pool %d is empty", i)
			continue
		}
		var entry, boss bool
		for _, e := range pool.Entries {
			if e.Archetype == nil {
				vb.Fieldf("FloorPools", "pool %s has an entry without archetype", pool.Name)
				continue
			}
			switch e.Archetype.Type {
			case entities.RoomTypeEntry:
				entry = true
			case entities.RoomTypeBoss:
				boss = true
			}
		}
		if !entry {
			vb.Fieldf("FloorPools", "pool %s has no entry room", pool.Name)
		}
		if !boss {
			vb.Fieldf("FloorPools", "pool %s has no boss room", pool.Name)
		}
	}
	return vb.Build()
}

// CheckReachable fails when a pool needs more completed rooms before its
// boss than the smallest floor can hold.
func (c *Content) CheckReachable(cfg *DungeonConfig) error {
	regular := cfg.MinRooms - 2
	for _, pool := range c.FloorPools {
		if pool.MinRoomsBeforeBoss > regular {
			return errors.InvalidArgumentf("pool %s needs %d rooms before its boss but floors may hold only %d",
				pool.Name, pool.MinRoomsBeforeBoss, regular).
				WithMeta("pool", pool.Name)
		}
	}
	return nil
}

// DefaultContent returns the built-in two-floor content set
func DefaultContent() *Content {
	wave := func(points ...entities.Position) entities.WaveSpec {
		return entities.WaveSpec{SpawnPoints: points, ScatterRadius: 1.5}
	}
	toCombat := []entities.NextRoomType{
		{Type: entities.RoomTypeCombat, Weight: 5},
		{Type: entities.RoomTypeElite, Weight: 1},
		{Type: entities.RoomTypeReward, Weight: 1, MaxDoors: 1},
		{Type: entities.RoomTypeShop, Weight: 1, MaxDoors: 1},
		{Type: entities.RoomTypeRest, Weight: 1, MaxDoors: 1},
		{Type: entities.RoomTypeSpecial, Weight: 0.5, MaxDoors: 1},
	}

	stair := &entities.RoomArchetype{
		ID: "collapsed_stair", Name: "Collapsed Stair", Type: entities.RoomTypeEntry,
		Difficulty: 1, MinDoorCount: 1, MaxDoorCount: 3,
		NextTypes: []entities.NextRoomType{{Type: entities.RoomTypeCombat, Weight: 1}},
	}
	barracks := &entities.RoomArchetype{
		ID: "barracks", Name: "Barracks", Type: entities.RoomTypeCombat,
		Difficulty: 2, MinDoorCount: 1, MaxDoorCount: 4, RequiresClearing: true,
		TotalWaves: 2, Waves: []entities.WaveSpec{wave(entities.Position{X: 3}, entities.Position{X: -3})},
		NextTypes: toCombat,
	}
	guardPost := &entities.RoomArchetype{
		ID: "guard_post", Name: "Guard Post", Type: entities.RoomTypeCombat,
		Difficulty: 3, MinDoorCount: 1, MaxDoorCount: 3, RequiresClearing: true,
		TotalWaves: 1, Waves: []entities.WaveSpec{wave(entities.Position{Y: 3})},
		NextTypes: toCombat,
	}
	ossuary := &entities.RoomArchetype{
		ID: "ossuary", Name: "Ossuary", Type: entities.RoomTypeElite,
		Difficulty: 6, MinDoorCount: 1, MaxDoorCount: 3, RequiresClearing: true, MinFloorDepth: 2,
		TotalWaves: 3, Waves: []entities.WaveSpec{
			wave(entities.Position{X: 2, Y: 2}),
			wave(entities.Position{X: -2, Y: 2}, entities.Position{X: 2, Y: -2}),
		},
		NextTypes: toCombat,
	}
	reliquary := &entities.RoomArchetype{
		ID: "reliquary", Name: "Reliquary", Type: entities.RoomTypeReward,
		Difficulty: 1, MinDoorCount: 1, MaxDoorCount: 2, UniquePerRun: true,
		NextTypes: []entities.NextRoomType{{Type: entities.RoomTypeCombat, Weight: 1}},
	}
	cache := &entities.RoomArchetype{
		ID: "supply_cache", Name: "Supply Cache", Type: entities.RoomTypeReward,
		Difficulty: 1, MinDoorCount: 1, MaxDoorCount: 2,
		NextTypes: []entities.NextRoomType{{Type: entities.RoomTypeCombat, Weight: 1}},
	}
	peddler := &entities.RoomArchetype{
		ID: "peddler", Name: "Peddler", Type: entities.RoomTypeShop,
		Difficulty: 1, MinDoorCount: 1, MaxDoorCount: 2,
		NextTypes: []entities.NextRoomType{{Type: entities.RoomTypeCombat, Weight: 1}},
	}
	spring := &entities.RoomArchetype{
		ID: "spring", Name: "Still Spring", Type: entities.RoomTypeRest,
		Difficulty: 1, MinDoorCount: 1, MaxDoorCount: 2,
		NextTypes: []entities.NextRoomType{{Type: entities.RoomTypeCombat, Weight: 1}},
	}
	oracle := &entities.RoomArchetype{
		ID: "oracle", Name: "Oracle", Type: entities.RoomTypeSpecial,
		Difficulty: 1, MinDoorCount: 1, MaxDoorCount: 1, UniquePerRun: true,
	}
	warden := &entities.RoomArchetype{
		ID: "warden", Name: "Warden's Hall", Type: entities.RoomTypeBoss,
		Difficulty: 10, MinDoorCount: 1, MaxDoorCount: 1, RequiresClearing: true, MaxFloorDepth: 1,
		TotalWaves: 1, Waves: []entities.WaveSpec{wave(entities.Position{Y: 4})},
	}
	drownedKing := &entities.RoomArchetype{
		ID: "drowned_king", Name: "Drowned Throne", Type: entities.RoomTypeBoss,
		Difficulty: 14, MinDoorCount: 1, MaxDoorCount: 1, RequiresClearing: true, MinFloorDepth: 2,
		TotalWaves: 2, Waves: []entities.WaveSpec{wave(entities.Position{Y: 4}), wave(entities.Position{X: 3}, entities.Position{X: -3})},
	}

	common := []entities.PoolEntry{
		{Archetype: stair, Weight: 1},
		{Archetype: barracks, Weight: 6},
		{Archetype: guardPost, Weight: 4},
		{Archetype: ossuary, Weight: 2},
		{Archetype: reliquary, Weight: 1},
		{Archetype: cache, Weight: 2},
		{Archetype: peddler, Weight: 1},
		{Archetype: spring, Weight: 1},
		{Archetype: oracle, Weight: 0.5},
	}

	return &Content{
		FloorPools: []*entities.FloorPool{
			{
				Name: "upper_halls", Depth: 1, MinRoomsBeforeBoss: 3, MaxShopRooms: 1, MaxSpecialRooms: 1,
				Entries: append(append([]entities.PoolEntry(nil), common...), entities.PoolEntry{Archetype: warden, Weight: 1}),
			},
			{
				Name: "flooded_depths", Depth: 2, MinRoomsBeforeBoss: 3, MaxShopRooms: 1, MaxSpecialRooms: 1,
				Entries: append(append([]entities.PoolEntry(nil), common...), entities.PoolEntry{Archetype: drownedKing, Weight: 1}),
			},
		},
		Templates: []*entities.RoomTemplate{
			{Name: "stairwell", RoomTypes: []entities.RoomType{entities.RoomTypeEntry}, EntryPoint: entities.Position{Y: -5}, Weight: 1},
			{Name: "hall_narrow", RoomTypes: []entities.RoomType{entities.RoomTypeCombat, entities.RoomTypeElite}, EntryPoint: entities.Position{Y: -4}, Weight: 2},
			{Name: "hall_wide", RoomTypes: []entities.RoomType{entities.RoomTypeCombat, entities.RoomTypeElite}, EntryPoint: entities.Position{Y: -5}, Weight: 1},
			{Name: "alcove", RoomTypes: []entities.RoomType{entities.RoomTypeReward, entities.RoomTypeShop, entities.RoomTypeRest, entities.RoomTypeSpecial}, EntryPoint: entities.Position{Y: -2}, Weight: 1},
			{Name: "arena", RoomTypes: []entities.RoomType{entities.RoomTypeBoss}, EntryPoint: entities.Position{Y: -5.5}, Weight: 1},
		},
		Roster: []*entities.HostileArchetype{
			{ID: "rat_swarm", Name: "Rat Swarm", Tier: entities.HostileTierBasic, SpawnWeight: 3, MinGroupSize: 2, MaxGroupSize: 3},
			{ID: "skeleton", Name: "Skeleton", Tier: entities.HostileTierBasic, SpawnWeight: 4, MinGroupSize: 1, MaxGroupSize: 2},
			{ID: "cultist", Name: "Cultist", Tier: entities.HostileTierBasic, SpawnWeight: 2, MinGroupSize: 1, MaxGroupSize: 1},
			{ID: "bone_knight", Name: "Bone Knight", Tier: entities.HostileTierElite, SpawnWeight: 1, MinGroupSize: 1, MaxGroupSize: 1},
			{ID: "warden", Name: "The Warden", Tier: entities.HostileTierBoss, SpawnWeight: 1, MinGroupSize: 1, MaxGroupSize: 1},
			{ID: "drowned_king", Name: "The Drowned King", Tier: entities.HostileTierBoss, SpawnWeight: 1, MinGroupSize: 1, MaxGroupSize: 1},
		},
	}
}
