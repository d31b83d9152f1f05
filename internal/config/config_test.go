package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/rpg-dungeon/internal/config"
	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) TestLoadDefaults() {
	cfg, err := config.Load()
	s.Require().NoError(err)

	s.Equal(int64(0), cfg.Seed)
	s.Equal(5, cfg.MinRooms)
	s.Equal(10, cfg.MaxRooms)
	s.Equal(12.0, cfg.RoomSpacing)
	s.Equal(3, cfg.MaxFloors)
	s.Equal(1, cfg.RetentionCount)
	s.Equal(5*time.Second, cfg.UnloadDelay)
	s.True(cfg.PreventConsecutiveTypes)
	s.InDelta(0.15, cfg.BaseRareRewardChance, 1e-9)
}

func (s *ConfigTestSuite) TestLoadFromEnvironment() {
	s.T().Setenv("DUNGEON_SEED", "77")
	s.T().Setenv("DUNGEON_MAX_ROOMS", "14")
	s.T().Setenv("DUNGEON_UNLOAD_DELAY", "250ms")
	s.T().Setenv("DUNGEON_FORCED_SHOP_BEFORE_BOSS", "true")

	cfg, err := config.Load()
	s.Require().NoError(err)
	s.Equal(int64(77), cfg.Seed)
	s.Equal(14, cfg.MaxRooms)
	s.Equal(250*time.Millisecond, cfg.UnloadDelay)
	s.True(cfg.ForcedShopBeforeBoss)
}

func (s *ConfigTestSuite) TestLoadRejectsBadValues() {
	testCases := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unparsable int", key: "DUNGEON_MAX_ROOMS", value: "many"},
		{name: "unparsable duration", key: "DUNGEON_UNLOAD_DELAY", value: "soon"},
		{name: "rooms below minimum", key: "DUNGEON_MAX_ROOMS", value: "3"},
		{name: "negative retention", key: "DUNGEON_RETENTION_COUNT", value: "-1"},
		{name: "chance above one", key: "DUNGEON_BASE_RARE_REWARD_CHANCE", value: "1.5"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.T().Setenv(tc.key, tc.value)

			_, err := config.Load()
			s.Error(err)
			s.True(errors.IsInvalidArgument(err))
		})
	}
}

func (s *ConfigTestSuite) TestDefaultContentIsValid() {
	content := config.DefaultContent()
	s.Require().NoError(content.Validate())

	cfg, err := config.Load()
	s.Require().NoError(err)
	s.NoError(content.CheckReachable(cfg))
}

func (s *ConfigTestSuite) TestLoadContentRoundTrip() {
	path := filepath.Join(s.T().TempDir(), "content.json")
	data, err := json.Marshal(config.DefaultContent())
	s.Require().NoError(err)
	s.Require().NoError(os.WriteFile(path, data, 0o600))

	content, err := config.LoadContent(path)
	s.Require().NoError(err)

	want := config.DefaultContent()
	s.Len(content.FloorPools, len(want.FloorPools))
	s.Len(content.Templates, len(want.Templates))
	s.Len(content.Roster, len(want.Roster))
	s.Equal(want.FloorPools[1].Entries[3].Archetype.Waves, content.FloorPools[1].Entries[3].Archetype.Waves)
}

func (s *ConfigTestSuite) TestLoadContentErrors() {
	dir := s.T().TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		s.Require().NoError(os.WriteFile(path, []byte(body), 0o600))
		return path
	}

	testCases := []struct {
		name  string
		path  string
		check func(error) bool
	}{
		{name: "missing path", path: "", check: errors.IsInvalidArgument},
		{name: "missing file", path: filepath.Join(dir, "nope.json"), check: errors.IsNotFound},
		{name: "bad json", path: write("bad.json", "{"), check: errors.IsInvalidArgument},
		{name: "empty content", path: write("empty.json", "{}"), check: errors.IsInvalidArgument},
		{
			name: "pool without boss",
			path: write("noboss.json", `{
				"floor_pools": [{"name": "f1", "entries": [{"archetype": {"id": "door", "type": "entry"}, "weight": 1}]}],
				"templates": [{"name": "t", "room_types": ["entry"]}],
				"roster": [{"id": "rat", "tier": "basic", "spawn_weight": 1}]
			}`),
			check: errors.IsInvalidArgument,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := config.LoadContent(tc.path)
			s.Error(err)
			s.True(tc.check(err), "unexpected error %v", err)
		})
	}
}

func (s *ConfigTestSuite) TestCheckReachable() {
	content := config.DefaultContent()
	content.FloorPools[0].MinRoomsBeforeBoss = 9

	err := content.CheckReachable(&config.DungeonConfig{MinRooms: 5, MaxRooms: 10})
	s.Error(err)
	s.True(errors.IsInvalidArgument(err))

	s.NoError(content.CheckReachable(&config.DungeonConfig{MinRooms: 11, MaxRooms: 12}))
}

func (s *ConfigTestSuite) TestDefaultContentBossesByDepth() {
	content := config.DefaultContent()
	for i, pool := range content.FloorPools {
		var bosses []*entities.RoomArchetype
		for _, e := range pool.Entries {
			if e.Archetype.Type == entities.RoomTypeBoss && e.Archetype.ValidAtDepth(i+1) {
				bosses = append(bosses, e.Archetype)
			}
		}
		s.Len(bosses, 1, "pool %s", pool.Name)
	}
}
