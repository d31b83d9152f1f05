package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	rpgevents "github.com/KirkDiggler/rpg-toolkit/events"
	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-dungeon/internal/config"
	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
	"github.com/KirkDiggler/rpg-dungeon/internal/events"
	"github.com/KirkDiggler/rpg-dungeon/internal/orchestrators/traversal"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/idgen"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/random"
	"github.com/KirkDiggler/rpg-dungeon/internal/redis"
	"github.com/KirkDiggler/rpg-dungeon/internal/repositories/runstate"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/room"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/roompool"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/topology"
)

var (
	seed        int64
	maxRooms    int
	floors      int
	contentPath string
	redisAddr   string
	steps       int
	logLevel    string
	logJSON     bool
	resumeRunID string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Walk a dungeon run headlessly",
	Long: `Generates a run and walks it with a scripted actor that clears every room and
takes random transitions until no targets remain, the run completes or the step
limit is hit. The run state is saved at the end.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().Int64Var(&seed, "seed", 0, "run seed (0 draws one; overrides DUNGEON_SEED)")
	simulateCmd.Flags().IntVar(&maxRooms, "max-rooms", 0, "maximum rooms per floor (overrides DUNGEON_MAX_ROOMS)")
	simulateCmd.Flags().IntVar(&floors, "floors", 0, "floors before the run completes (overrides DUNGEON_MAX_FLOORS)")
	simulateCmd.Flags().StringVar(&contentPath, "content", "", "JSON content file (built-in content when empty)")
	simulateCmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for run state (in-memory when empty)")
	simulateCmd.Flags().IntVar(&steps, "steps", 200, "maximum transitions")
	simulateCmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	simulateCmd.Flags().BoolVar(&logJSON, "log-json", false, "log as JSON")
	simulateCmd.Flags().StringVar(&resumeRunID, "resume", "", "resume a saved run instead of starting one")
}

func setupLogger() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return errors.InvalidArgumentf("invalid log level %q", logLevel)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if logJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.DungeonConfig, *config.Content, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("max-rooms") {
		cfg.MaxRooms = maxRooms
	}
	if flags.Changed("floors") {
		cfg.MaxFloors = floors
	}
	if flags.Changed("redis-addr") {
		cfg.RedisAddr = redisAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	content := config.DefaultContent()
	if contentPath != "" {
		content, err = config.LoadContent(contentPath)
		if err != nil {
			return nil, nil, err
		}
	}
	if err := content.CheckReachable(cfg); err != nil {
		return nil, nil, err
	}

	if cfg.Seed == 0 {
		cfg.Seed, err = random.NewSeed()
		if err != nil {
			return nil, nil, err
		}
	}
	return cfg, content, nil
}

func newRepository(cfg *config.DungeonConfig) (runstate.Repository, error) {
	if cfg.RedisAddr == "" {
		return runstate.NewInMemory(), nil
	}

	client, err := redis.NewClient(cfg.RedisAddr, nil)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "failed to create redis client")
	}
	return runstate.NewRedis(&runstate.RedisConfig{Client: client, TTL: cfg.RunTTL})
}

// run wires the components of one run
type run struct {
	rooms *room.Manager
	orch  traversal.Service
}

func newRun(cfg *config.DungeonConfig, content *config.Content) (*run, error) {
	catalog, err := roompool.NewCatalog(content.FloorPools)
	if err != nil {
		return nil, err
	}

	graph := topology.NewGraph()
	generator, err := topology.NewGenerator(&topology.GeneratorConfig{
		Graph:                   graph,
		Catalog:                 catalog,
		MinRooms:                cfg.MinRooms,
		MaxRooms:                cfg.MaxRooms,
		GridExtent:              cfg.GridExtent,
		MaxPlacementAttempts:    cfg.MaxPlacementAttempts,
		ForceShopBeforeBoss:     cfg.ForcedShopBeforeBoss,
		ForceRestBeforeBoss:     cfg.ForcedHealBeforeBoss,
		PreventConsecutiveTypes: cfg.PreventConsecutiveTypes,
	})
	if err != nil {
		return nil, err
	}

	toolkitBus := rpgevents.NewBus()
	bus := events.NewRunBus(toolkitBus)
	clk := clock.New()
	rng := random.New(cfg.Seed)

	rooms, err := room.NewManager(&room.Config{
		Graph:                graph,
		Templates:            content.Templates,
		Roster:               content.Roster,
		Builder:              room.NewVirtualBuilder(),
		NavMesh:              room.InstantBaker{},
		EventBus:             bus,
		Clock:                clk,
		IDGenerator:          idgen.NewUUID("inst"),
		Rand:                 rng,
		RoomSpacing:          cfg.RoomSpacing,
		SettleDelay:          cfg.SettleDelay,
		StrictTemplates:      cfg.StrictTemplates,
		BaseRareRewardChance: cfg.BaseRareRewardChance,
		RareRewardPerFloor:   cfg.RareRewardPerFloor,
	})
	if err != nil {
		return nil, err
	}

	orch, err := traversal.NewOrchestrator(&traversal.Config{
		Graph:              graph,
		Generator:          generator,
		Catalog:            catalog,
		Rooms:              rooms,
		EventBus:           bus,
		Clock:              clk,
		Rand:               rng,
		Seed:               cfg.Seed,
		RoomSpacing:        cfg.RoomSpacing,
		RetentionCount:     cfg.RetentionCount,
		UnloadDelay:        cfg.UnloadDelay,
		TransitionDuration: cfg.TransitionDuration,
		MaxFloors:          cfg.MaxFloors,
	})
	if err != nil {
		return nil, err
	}

	toolkitBus.SubscribeFunc(string(events.TypeFloorChanged), 0, func(_ context.Context, e rpgevents.Event) error {
		depth, _ := e.Context().Get(events.KeyDepth)
		slog.Info("Descending", "depth", depth, "start_id", e.Source().GetID())
		return nil
	})
	return &run{rooms: rooms, orch: orch}, nil
}

// clearCurrent kills every hostile of the current room, wave after wave
func (r *run) clearCurrent(ctx context.Context) error {
	id := r.orch.State().CurrentNodeID
	inst, ok := r.rooms.Instance(id)
	if !ok {
		return errors.Internalf("current room %s is not live", id)
	}

	for !inst.Encounter.Cleared() {
		hostiles := inst.Encounter.Hostiles()
		if len(hostiles) == 0 {
			return errors.Internalf("encounter in %s is stuck in %s", id, inst.Encounter.State())
		}
		for _, h := range hostiles {
			if err := h.Kill(ctx); err != nil {
				slog.Warn("Hostile death reported an error", "hostile_id", h.GetID(), "error", err)
			}
		}
	}
	return nil
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	if err := setupLogger(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, content, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	repo, err := newRepository(cfg)
	if err != nil {
		return err
	}

	runID := resumeRunID
	var saved *entities.RunState
	if resumeRunID != "" {
		out, err := repo.Get(ctx, &runstate.GetInput{RunID: resumeRunID})
		if err != nil {
			return err
		}
		saved = out.State
		cfg.Seed = saved.Seed
	} else {
		runID = idgen.NewUUID("run").Generate()
	}

	r, err := newRun(cfg, content)
	if err != nil {
		return err
	}

	actor := traversal.NewBasicActor("hero")
	if saved != nil {
		_, err = r.orch.Resume(ctx, &traversal.ResumeInput{Actor: actor, State: saved})
	} else {
		_, err = r.orch.Begin(ctx, &traversal.BeginInput{Actor: actor})
	}
	if err != nil {
		return err
	}

	walkErr := r.walk(ctx)

	snapshot, err := r.orch.Snapshot(runID)
	if err != nil {
		return err
	}
	// save with a fresh context so an interrupt still persists the run
	if _, err := repo.Save(context.WithoutCancel(ctx), &runstate.SaveInput{State: snapshot}); err != nil {
		return err
	}
	if err := r.orch.End(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("Run teardown reported an error", "error", err)
	}

	state := r.orch.State()
	fmt.Fprintf(cmd.OutOrStdout(), "run %s seed=%d floor=%d rooms=%d completed=%t\n",
		runID, cfg.Seed, state.Floor, state.RoomsCompletedTotal, state.Completed)
	return walkErr
}

func (r *run) walk(ctx context.Context) error {
	for step := 0; step < steps; step++ {
		if err := r.clearCurrent(ctx); err != nil {
			return err
		}
		if r.orch.State().Completed {
			return nil
		}

		out, err := r.orch.Transition(ctx, &traversal.TransitionInput{Random: true})
		if err != nil {
			switch traversal.ReasonOf(err) {
			case traversal.ReasonNoTargets:
				slog.Info("No rooms left to enter", "step", step)
				return nil
			case traversal.ReasonCanceled:
				slog.Info("Interrupted", "step", step)
				return nil
			}
			return err
		}
		slog.Debug("Moved",
			"step", step,
			"from", out.FromNodeID,
			"to", out.ToNodeID,
			"floor", out.Floor,
			"descended", out.Descended,
		)
	}
	slog.Info("Step limit reached", "steps", steps)
	return nil
}
