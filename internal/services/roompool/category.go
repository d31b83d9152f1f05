package roompool

import "github.com/KirkDiggler/rpg-dungeon/internal/entities"

var categoryByType = map[entities.RoomType]entities.Category{
	entities.RoomTypeEntry:   entities.CategoryEntry,
	entities.RoomTypeCombat:  entities.CategoryCombat,
	entities.RoomTypeElite:   entities.CategoryCombat,
	entities.RoomTypeReward:  entities.CategoryReward,
	entities.RoomTypeShop:    entities.CategoryShop,
	entities.RoomTypeRest:    entities.CategoryRest,
	entities.RoomTypeSpecial: entities.CategorySpecial,
	entities.RoomTypeBoss:    entities.CategoryBoss,
}

// CategoryOf maps a room type to its pool category.
// Unknown types resolve to the combat category.
func CategoryOf(t entities.RoomType) entities.Category {
	if c, ok := categoryByType[t]; ok {
		return c
	}
	return entities.CategoryCombat
}
