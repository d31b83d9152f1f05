package testutils

import (
	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
)

// Archetype ids used by the fixtures
const (
	ArchetypeGate     = "gate"
	ArchetypeCrypt    = "crypt"
	ArchetypeOssuary  = "ossuary"
	ArchetypeVault    = "vault"
	ArchetypeMerchant = "merchant"
	ArchetypeShrine   = "shrine"
	ArchetypeThrone   = "throne"
)

// CreateTestArchetypes returns one archetype per room type, keyed by id
func CreateTestArchetypes() map[string]*entities.RoomArchetype {
	wave := entities.WaveSpec{
		SpawnPoints:   []entities.Position{{X: 2}, {X: -2}},
		ScatterRadius: 1,
	}

	return map[string]*entities.RoomArchetype{
		ArchetypeGate: {
			ID: ArchetypeGate, Name: "Sunken Gate", Type: entities.RoomTypeEntry,
			Difficulty: 1, MinDoorCount: 1, MaxDoorCount: 4,
			NextTypes: []entities.NextRoomType{
				{Type: entities.RoomTypeCombat, Weight: 5},
				{Type: entities.RoomTypeReward, Weight: 1, MaxDoors: 1},
				{Type: entities.RoomTypeShop, Weight: 1, MaxDoors: 1},
			},
		},
		ArchetypeCrypt: {
			ID: ArchetypeCrypt, Name: "Crypt", Type: entities.RoomTypeCombat,
			Difficulty: 3, MinDoorCount: 1, MaxDoorCount: 4, RequiresClearing: true,
			TotalWaves: 2, Waves: []entities.WaveSpec{wave},
			NextTypes: []entities.NextRoomType{
				{Type: entities.RoomTypeCombat, Weight: 4},
				{Type: entities.RoomTypeElite, Weight: 1},
				{Type: entities.RoomTypeReward, Weight: 1},
				{Type: entities.RoomTypeShop, Weight: 1},
				{Type: entities.RoomTypeRest, Weight: 1},
			},
		},
		ArchetypeOssuary: {
			ID: ArchetypeOssuary, Name: "Ossuary", Type: entities.RoomTypeElite,
			Difficulty: 6, MinDoorCount: 1, MaxDoorCount: 3, RequiresClearing: true,
			TotalWaves: 1, Waves: []entities.WaveSpec{wave},
			NextTypes: []entities.NextRoomType{{Type: entities.RoomTypeCombat, Weight: 1}},
		},
		ArchetypeVault: {
			ID: ArchetypeVault, Name: "Vault", Type: entities.RoomTypeReward,
			Difficulty: 1, MinDoorCount: 1, MaxDoorCount: 2, UniquePerRun: true,
			NextTypes: []entities.NextRoomType{{Type: entities.RoomTypeCombat, Weight: 1}},
		},
		ArchetypeMerchant: {
			ID: ArchetypeMerchant, Name: "Merchant", Type: entities.RoomTypeShop,
			Difficulty: 1, MinDoorCount: 1, MaxDoorCount: 2,
			NextTypes: []entities.NextRoomType{{Type: entities.RoomTypeCombat, Weight: 1}},
		},
		ArchetypeShrine: {
			ID: ArchetypeShrine, Name: "Shrine", Type: entities.RoomTypeRest,
			Difficulty: 1, MinDoorCount: 1, MaxDoorCount: 2,
			NextTypes: []entities.NextRoomType{{Type: entities.RoomTypeCombat, Weight: 1}},
		},
		ArchetypeThrone: {
			ID: ArchetypeThrone, Name: "Throne Room", Type: entities.RoomTypeBoss,
			Difficulty: 10, MinDoorCount: 1, MaxDoorCount: 1, RequiresClearing: true,
			TotalWaves: 1, Waves: []entities.WaveSpec{{SpawnPoints: []entities.Position{{}}}},
		},
	}
}

// CreateTestFloorPool returns a floor pool holding every fixture archetype
func CreateTestFloorPool(name string) *entities.FloorPool {
	a := CreateTestArchetypes()
	return &entities.FloorPool{
		Name:               name,
		MinRoomsBeforeBoss: 3,
		MaxShopRooms:       1,
		MaxSpecialRooms:    1,
		Entries: []entities.PoolEntry{
			{Archetype: a[ArchetypeGate], Weight: 1},
			{Archetype: a[ArchetypeCrypt], Weight: 6},
			{Archetype: a[ArchetypeOssuary], Weight: 2},
			{Archetype: a[ArchetypeVault], Weight: 1},
			{Archetype: a[ArchetypeMerchant], Weight: 1},
			{Archetype: a[ArchetypeShrine], Weight: 1},
			{Archetype: a[ArchetypeThrone], Weight: 1},
		},
	}
}

// CreateTestTemplates returns templates covering every fixture room type
func CreateTestTemplates() []*entities.RoomTemplate {
	return []*entities.RoomTemplate{
		{Name: "gate_hall", RoomTypes: []entities.RoomType{entities.RoomTypeEntry}, EntryPoint: entities.Position{Y: -4}, Weight: 1},
		{Name: "crypt_small", RoomTypes: []entities.RoomType{entities.RoomTypeCombat, entities.RoomTypeElite}, EntryPoint: entities.Position{Y: -3}, Weight: 1},
		{Name: "side_room", RoomTypes: []entities.RoomType{entities.RoomTypeReward, entities.RoomTypeShop, entities.RoomTypeRest}, EntryPoint: entities.Position{Y: -2}, Weight: 1},
		{Name: "throne_room", RoomTypes: []entities.RoomType{entities.RoomTypeBoss}, EntryPoint: entities.Position{Y: -5}, Weight: 1},
	}
}

// CreateTestRoster returns hostiles for every tier
func CreateTestRoster() []*entities.HostileArchetype {
	return []*entities.HostileArchetype{
		{ID: "skeleton", Name: "Skeleton", Tier: entities.HostileTierBasic, SpawnWeight: 3, MinGroupSize: 1, MaxGroupSize: 2},
		{ID: "ghoul", Name: "Ghoul", Tier: entities.HostileTierBasic, SpawnWeight: 1, MinGroupSize: 1, MaxGroupSize: 1},
		{ID: "wight", Name: "Wight", Tier: entities.HostileTierElite, SpawnWeight: 1, MinGroupSize: 1, MaxGroupSize: 1},
		{ID: "lich", Name: "Lich", Tier: entities.HostileTierBoss, SpawnWeight: 1, MinGroupSize: 1, MaxGroupSize: 1},
	}
}
