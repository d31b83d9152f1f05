// Package config loads the runtime settings and content of a dungeon run
package config

import (
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
)

// DungeonConfig holds the tuning of a run. Fields load from DUNGEON_*
// environment variables; the CLI may override them with flags.
type DungeonConfig struct {
	// Seed pins the run layout. 0 draws a fresh seed.
	Seed int64 `env:"DUNGEON_SEED"`

	MinRooms             int     `env:"DUNGEON_MIN_ROOMS" envDefault:"5"`
	MaxRooms             int     `env:"DUNGEON_MAX_ROOMS" envDefault:"10"`
	RoomSpacing          float64 `env:"DUNGEON_ROOM_SPACING" envDefault:"12"`
	GridExtent           int     `env:"DUNGEON_GRID_EXTENT" envDefault:"8"`
	MaxPlacementAttempts int     `env:"DUNGEON_MAX_PLACEMENT_ATTEMPTS" envDefault:"100"`
	// MaxFloors ends the run after that floor's boss. 0 means endless.
	MaxFloors int `env:"DUNGEON_MAX_FLOORS" envDefault:"3"`

	RetentionCount     int           `env:"DUNGEON_RETENTION_COUNT" envDefault:"1"`
	UnloadDelay        time.Duration `env:"DUNGEON_UNLOAD_DELAY" envDefault:"5s"`
	SettleDelay        time.Duration `env:"DUNGEON_SETTLE_DELAY" envDefault:"0s"`
	TransitionDuration time.Duration `env:"DUNGEON_TRANSITION_DURATION" envDefault:"0s"`

	ForcedShopBeforeBoss    bool `env:"DUNGEON_FORCED_SHOP_BEFORE_BOSS" envDefault:"false"`
	ForcedHealBeforeBoss    bool `env:"DUNGEON_FORCED_HEAL_BEFORE_BOSS" envDefault:"false"`
	PreventConsecutiveTypes bool `env:"DUNGEON_PREVENT_CONSECUTIVE_TYPES" envDefault:"true"`
	StrictTemplates         bool `env:"DUNGEON_STRICT_TEMPLATES" envDefault:"false"`

	BaseRareRewardChance float64 `env:"DUNGEON_BASE_RARE_REWARD_CHANCE" envDefault:"0.15"`
	RareRewardPerFloor   float64 `env:"DUNGEON_RARE_REWARD_PER_FLOOR" envDefault:"0.05"`

	RedisAddr string        `env:"DUNGEON_REDIS_ADDR"`
	RunTTL    time.Duration `env:"DUNGEON_RUN_TTL" envDefault:"168h"`
}

// Load parses the environment and validates the result
func Load() (*DungeonConfig, error) {
	cfg := &DungeonConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "failed to parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the bounds every component relies on
func (c *DungeonConfig) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}

	vb := errors.NewValidationBuilder()
	if c.MinRooms < 2 {
		vb.Field("MinRooms", "must be at least 2 to fit a start and a boss")
	}
	errors.ValidateBounds("Rooms", c.MinRooms, c.MaxRooms, vb)
	errors.ValidatePositive("RoomSpacing", c.RoomSpacing, vb)
	if c.GridExtent < 1 {
		vb.Field("GridExtent", "must be at least 1")
	}
	if c.MaxPlacementAttempts < 1 {
		vb.Field("MaxPlacementAttempts", "must be at least 1")
	}
	if c.MaxFloors < 0 {
		vb.Field("MaxFloors", "must not be negative")
	}
	if c.RetentionCount < 0 {
		vb.Field("RetentionCount", "must not be negative")
	}
	if c.UnloadDelay < 0 || c.SettleDelay < 0 || c.TransitionDuration < 0 {
		vb.Field("Delays", "must not be negative")
	}
	if c.BaseRareRewardChance < 0 || c.BaseRareRewardChance > 1 {
		vb.Field("BaseRareRewardChance", "must be within [0, 1]")
	}
	if c.RareRewardPerFloor < 0 {
		vb.Field("RareRewardPerFloor", "must not be negative")
	}
	if c.RunTTL < 0 {
		vb.Field("RunTTL", "must not be negative")
	}
	return vb.Build()
}
