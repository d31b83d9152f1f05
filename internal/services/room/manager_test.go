package room_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
	"github.com/KirkDiggler/rpg-dungeon/internal/events"
	"github.com/KirkDiggler/rpg-dungeon/internal/orchestrators/encounter"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/idgen"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/random"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/room"
	roommock "github.com/KirkDiggler/rpg-dungeon/internal/services/room/mock"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/topology"
	"github.com/KirkDiggler/rpg-dungeon/internal/testutils"
)

type ManagerTestSuite struct {
	suite.Suite
	ctx     context.Context
	ctrl    *gomock.Controller
	graph   *topology.Graph
	clock   *clock.Manual
	builder *room.VirtualBuilder
	bus     *events.RunBus
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func (s *ManagerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.clock = clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.builder = room.NewVirtualBuilder()
	s.bus = events.NewBus()

	// gate - crypt - shrine - throne, plus vault off the gate
	s.graph = topology.NewGraph()
	archetypes := testutils.CreateTestArchetypes()
	layout := []struct {
		id        string
		archetype string
		x, y      int
	}{
		{"gate", testutils.ArchetypeGate, 0, 0},
		{"crypt", testutils.ArchetypeCrypt, 1, 0},
		{"shrine", testutils.ArchetypeShrine, 2, 0},
		{"throne", testutils.ArchetypeThrone, 3, 0},
		{"vault", testutils.ArchetypeVault, 0, 1},
	}
	for _, l := range layout {
		_, err := s.graph.CreateNode(&topology.CreateNodeInput{
			ID:        l.id,
			Floor:     1,
			Position:  entities.GridPosition{X: l.x, Y: l.y},
			Archetype: archetypes[l.archetype],
		})
		s.Require().NoError(err)
	}
	for _, pair := range [][2]string{{"gate", "crypt"}, {"crypt", "shrine"}, {"shrine", "throne"}, {"gate", "vault"}} {
		_, err := s.graph.Connect(&topology.ConnectInput{SourceID: pair[0], TargetID: pair[1]})
		s.Require().NoError(err)
	}
}

func (s *ManagerTestSuite) config() *room.Config {
	return &room.Config{
		Graph:                s.graph,
		Templates:            testutils.CreateTestTemplates(),
		Roster:               testutils.CreateTestRoster(),
		Builder:              s.builder,
		NavMesh:              room.InstantBaker{},
		EventBus:             s.bus,
		Clock:                s.clock,
		IDGenerator:          idgen.NewSequential("inst"),
		Rand:                 random.New(3),
		RoomSpacing:          10,
		BaseRareRewardChance: 1,
	}
}

func (s *ManagerTestSuite) newManager(mutate func(*room.Config)) *room.Manager {
	cfg := s.config()
	if mutate != nil {
		mutate(cfg)
	}
	m, err := room.NewManager(cfg)
	s.Require().NoError(err)
	return m
}

func (s *ManagerTestSuite) materialize(m *room.Manager, nodeID string) *room.Instance {
	out, err := m.Materialize(s.ctx, &room.MaterializeInput{NodeID: nodeID})
	s.Require().NoError(err)
	return out.Instance
}

func (s *ManagerTestSuite) TestMaterializeBuildsLinkedInstance() {
	m := s.newManager(nil)

	inst := s.materialize(m, "crypt")
	s.Equal("crypt", inst.NodeID)
	s.Equal(entities.RoomTypeCombat, inst.RoomType)
	s.True(inst.Template.Supports(entities.RoomTypeCombat))
	s.False(inst.Degraded)
	s.Equal(entities.Position{X: 10}, inst.Origin)
	s.Equal(entities.Position{X: 10, Y: -3}, inst.EntryPosition())
	s.Len(inst.Portals, 2)
	s.Equal(encounter.StateIdle, inst.Encounter.State())
	s.Equal(1, s.builder.Live())

	node, err := s.graph.Node("crypt")
	s.Require().NoError(err)
	s.Equal(inst.ID, node.InstanceID)

	s.Run("rare reward rolled for reward rooms", func() {
		vault := s.materialize(m, "vault")
		s.True(vault.RareReward)
		s.False(inst.RareReward)
	})
}

func (s *ManagerTestSuite) TestMaterializeTwiceReturnsSameInstance() {
	builder := roommock.NewMockBuilder(s.ctrl)
	builder.EXPECT().Build(gomock.Any(), gomock.Any()).Return(&room.BuildOutput{Handle: "geo"}, nil).Times(1)
	m := s.newManager(func(c *room.Config) { c.Builder = builder })

	first, err := m.Materialize(s.ctx, &room.MaterializeInput{NodeID: "shrine"})
	s.Require().NoError(err)
	second, err := m.Materialize(s.ctx, &room.MaterializeInput{NodeID: "shrine"})
	s.Require().NoError(err)

	s.False(first.Reused)
	s.True(second.Reused)
	s.Same(first.Instance, second.Instance)
}

func (s *ManagerTestSuite) TestConcurrentMaterializeSharesStaging() {
	entered := make(chan struct{})
	release := make(chan struct{})
	builder := roommock.NewMockBuilder(s.ctrl)
	builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *room.BuildInput) (*room.BuildOutput, error) {
			close(entered)
			<-release
			return &room.BuildOutput{Handle: "geo"}, nil
		}).Times(1)
	m := s.newManager(func(c *room.Config) { c.Builder = builder })

	var wg sync.WaitGroup
	results := make([]*room.Instance, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := m.Materialize(s.ctx, &room.MaterializeInput{NodeID: "crypt"})
			s.NoError(err)
			if out != nil {
				results[i] = out.Instance
			}
		}(i)
		if i == 0 {
			<-entered
		}
	}
	close(release)
	wg.Wait()

	s.Require().NotNil(results[0])
	s.Require().NotNil(results[1])
	s.Equal(results[0].ID, results[1].ID)
	s.Equal([]string{"crypt"}, m.LiveNodeIDs())
}

func (s *ManagerTestSuite) TestTemplateResolution() {
	onlyCombat := []*entities.RoomTemplate{
		{Name: "crypt_small", RoomTypes: []entities.RoomType{entities.RoomTypeCombat}, Weight: 1},
	}

	s.Run("falls back to any template", func() {
		m := s.newManager(func(c *room.Config) { c.Templates = onlyCombat })
		inst := s.materialize(m, "throne")
		s.True(inst.Degraded)
		s.Equal("crypt_small", inst.Template.Name)
	})

	s.Run("picks among compatible templates", func() {
		s.SetupTest()
		m := s.newManager(func(c *room.Config) {
			c.Templates = []*entities.RoomTemplate{
				{Name: "crypt_small", RoomTypes: []entities.RoomType{entities.RoomTypeCombat}, Weight: 1},
				{Name: "crypt_long", RoomTypes: []entities.RoomType{entities.RoomTypeCombat}, Weight: 2.5},
				{Name: "throne_room", RoomTypes: []entities.RoomType{entities.RoomTypeBoss}, Weight: 10},
			}
		})
		inst := s.materialize(m, "crypt")
		s.False(inst.Degraded)
		s.Contains([]string{"crypt_small", "crypt_long"}, inst.Template.Name)
	})

	s.Run("strict templates refuse", func() {
		s.SetupTest()
		m := s.newManager(func(c *room.Config) {
			c.Templates = onlyCombat
			c.StrictTemplates = true
		})
		_, err := m.Materialize(s.ctx, &room.MaterializeInput{NodeID: "throne"})
		s.Require().Error(err)
		s.True(errors.IsNotFound(err))
		s.Equal(room.ReasonTemplateMissing, errors.GetReason(err))
		s.Empty(m.LiveNodeIDs())
		s.Zero(s.builder.Live())

		node, err := s.graph.Node("throne")
		s.Require().NoError(err)
		s.Empty(node.InstanceID)
	})
}

func (s *ManagerTestSuite) TestNavMeshBakedOnlyForRoomsWithHostiles() {
	baker := roommock.NewMockNavMeshBaker(s.ctrl)
	baker.EXPECT().Bake(gomock.Any(), gomock.Any()).Return(false, nil).Times(1)
	m := s.newManager(func(c *room.Config) { c.NavMesh = baker })

	s.materialize(m, "shrine")
	inst := s.materialize(m, "crypt")
	s.NotNil(inst.Encounter, "a failed bake still produces a room")
}

func (s *ManagerTestSuite) TestCanceledStagingDestroysGeometry() {
	builder := roommock.NewMockBuilder(s.ctrl)
	gomock.InOrder(
		builder.EXPECT().Build(gomock.Any(), gomock.Any()).Return(&room.BuildOutput{Handle: "geo_1"}, nil),
		builder.EXPECT().Destroy(gomock.Any(), &room.DestroyInput{InstanceID: "inst_1", Handle: "geo_1"}).Return(nil),
	)
	m := s.newManager(func(c *room.Config) {
		c.Builder = builder
		c.SettleDelay = time.Second
	})

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := m.Materialize(ctx, &room.MaterializeInput{NodeID: "crypt"})
	s.Require().Error(err)
	s.True(errors.IsCanceled(err))
	s.Empty(m.LiveNodeIDs())
}

func (s *ManagerTestSuite) TestSettleDelayWaitsOnClock() {
	m := s.newManager(func(c *room.Config) { c.SettleDelay = 2 * time.Second })

	done := make(chan *room.Instance)
	go func() {
		out, err := m.Materialize(s.ctx, &room.MaterializeInput{NodeID: "shrine"})
		s.NoError(err)
		done <- out.Instance
	}()

	s.Eventually(func() bool { return s.clock.Pending() == 1 }, time.Second, time.Millisecond)
	select {
	case <-done:
		s.Fail("materialize returned before the room settled")
	default:
	}

	s.clock.Advance(2 * time.Second)
	inst := <-done
	s.Equal("shrine", inst.NodeID)
}

func (s *ManagerTestSuite) TestEvictCopiesClearStateBack() {
	m := s.newManager(nil)
	inst := s.materialize(m, "crypt")

	_, err := inst.Encounter.Start(s.ctx, &encounter.StartInput{
		TotalWaves: 1,
		Waves:      []entities.WaveSpec{{SpawnPoints: []entities.Position{{}}}},
	})
	s.Require().NoError(err)
	for _, h := range inst.Encounter.Hostiles() {
		s.Require().NoError(h.Kill(s.ctx))
	}
	s.Require().True(inst.Encounter.Cleared())

	out, err := m.Evict(s.ctx, &room.EvictInput{NodeID: "crypt"})
	s.Require().NoError(err)
	s.True(out.Evicted)
	s.True(out.Cleared)
	s.Zero(s.builder.Live())

	node, err := s.graph.Node("crypt")
	s.Require().NoError(err)
	s.True(node.Cleared)
	s.Empty(node.InstanceID)

	s.Run("rematerialized room stays cleared", func() {
		again := s.materialize(m, "crypt")
		s.NotEqual(inst.ID, again.ID)
		s.True(again.Encounter.Cleared())
	})

	s.Run("evicting an unloaded room is a no-op", func() {
		out, err := m.Evict(s.ctx, &room.EvictInput{NodeID: "vault"})
		s.Require().NoError(err)
		s.False(out.Evicted)
	})
}

func (s *ManagerTestSuite) TestEvictRefusesCurrentRoom() {
	m := s.newManager(nil)
	s.materialize(m, "gate")
	_, err := m.ApplyRetentionPolicy(s.ctx, &room.RetentionInput{History: []string{"gate"}, CurrentNodeID: "gate", RetentionCount: 1})
	s.Require().NoError(err)

	_, err = m.Evict(s.ctx, &room.EvictInput{NodeID: "gate"})
	s.Require().Error(err)
	s.True(errors.IsFailedPrecondition(err))
	s.Equal(room.ReasonRefused, errors.GetReason(err))
	s.Equal([]string{"gate"}, m.LiveNodeIDs())
}

func (s *ManagerTestSuite) TestEvictWaitsForStaging() {
	entered := make(chan struct{})
	release := make(chan struct{})
	builder := roommock.NewMockBuilder(s.ctrl)
	builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *room.BuildInput) (*room.BuildOutput, error) {
			close(entered)
			<-release
			return &room.BuildOutput{Handle: "geo"}, nil
		})
	builder.EXPECT().Destroy(gomock.Any(), gomock.Any()).Return(nil)
	m := s.newManager(func(c *room.Config) { c.Builder = builder })

	go func() {
		_, err := m.Materialize(s.ctx, &room.MaterializeInput{NodeID: "shrine"})
		s.NoError(err)
	}()
	<-entered

	evicted := make(chan *room.EvictOutput)
	go func() {
		out, err := m.Evict(s.ctx, &room.EvictInput{NodeID: "shrine"})
		s.NoError(err)
		evicted <- out
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-evicted:
		s.Fail("eviction ran ahead of staging")
	default:
	}

	close(release)
	out := <-evicted
	s.True(out.Evicted)
	s.Empty(m.LiveNodeIDs())
}

func (s *ManagerTestSuite) TestKeepSet() {
	testCases := []struct {
		name     string
		history  []string
		current  string
		k        int
		expected map[string]bool
	}{
		{
			name:     "current plus last k",
			history:  []string{"a", "b", "c", "d"},
			current:  "d",
			k:        1,
			expected: map[string]bool{"c": true, "d": true},
		},
		{
			name:     "repeats count once",
			history:  []string{"a", "b", "c", "b", "c"},
			current:  "c",
			k:        2,
			expected: map[string]bool{"a": true, "b": true, "c": true},
		},
		{
			name:     "zero retention keeps current only",
			history:  []string{"a", "b"},
			current:  "b",
			k:        0,
			expected: map[string]bool{"b": true},
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.expected, room.KeepSet(tc.history, tc.current, tc.k))
		})
	}
}

func (s *ManagerTestSuite) TestRetentionSettlesToWindow() {
	m := s.newManager(nil)
	history := []string{"gate", "vault", "crypt", "shrine", "throne"}
	for _, id := range history {
		s.materialize(m, id)
	}

	out, err := m.ApplyRetentionPolicy(s.ctx, &room.RetentionInput{
		History:        history,
		CurrentNodeID:  "throne",
		RetentionCount: 1,
		UnloadDelay:    5 * time.Second,
	})
	s.Require().NoError(err)
	s.Equal([]string{"shrine", "throne"}, out.Kept)
	s.Equal([]string{"crypt", "gate", "vault"}, out.Scheduled)
	s.Len(m.LiveNodeIDs(), 5, "nothing unloads before the delay")

	s.clock.Advance(4 * time.Second)
	s.Len(m.LiveNodeIDs(), 5)

	s.clock.Advance(time.Second)
	s.Equal([]string{"shrine", "throne"}, m.LiveNodeIDs())
	s.Empty(m.PendingEvictions())
	s.Equal(2, s.builder.Live())
}

func (s *ManagerTestSuite) TestReturningCancelsPendingEviction() {
	m := s.newManager(nil)
	s.materialize(m, "gate")
	s.materialize(m, "crypt")
	s.materialize(m, "shrine")

	_, err := m.ApplyRetentionPolicy(s.ctx, &room.RetentionInput{
		History:       []string{"gate", "crypt", "shrine"},
		CurrentNodeID: "shrine",
		UnloadDelay:   5 * time.Second,
	})
	s.Require().NoError(err)
	s.Equal([]string{"crypt", "gate"}, m.PendingEvictions())

	// actor walks back into the crypt before the delay runs out
	s.clock.Advance(2 * time.Second)
	_, err = m.ApplyRetentionPolicy(s.ctx, &room.RetentionInput{
		History:       []string{"gate", "crypt", "shrine", "crypt"},
		CurrentNodeID: "crypt",
		UnloadDelay:   5 * time.Second,
	})
	s.Require().NoError(err)
	s.Equal([]string{"gate", "shrine"}, m.PendingEvictions())

	s.clock.Advance(3 * time.Second)
	s.Equal([]string{"crypt", "shrine"}, m.LiveNodeIDs(), "gate's original timer fired")

	s.clock.Advance(2 * time.Second)
	s.Equal([]string{"crypt"}, m.LiveNodeIDs())
}

func (s *ManagerTestSuite) TestPinnedRoomOutlivesPendingEviction() {
	m := s.newManager(nil)
	s.materialize(m, "gate")
	s.materialize(m, "crypt")

	retain := func() *room.RetentionOutput {
		out, err := m.ApplyRetentionPolicy(s.ctx, &room.RetentionInput{
			History:       []string{"gate", "crypt"},
			CurrentNodeID: "crypt",
			UnloadDelay:   5 * time.Second,
		})
		s.Require().NoError(err)
		return out
	}
	retain()
	s.Equal([]string{"gate"}, m.PendingEvictions())

	// the actor heads back to the gate
	out, err := m.Materialize(s.ctx, &room.MaterializeInput{NodeID: "gate", Pin: true})
	s.Require().NoError(err)
	s.True(out.Reused)
	s.Empty(m.PendingEvictions())

	_, err = m.Evict(s.ctx, &room.EvictInput{NodeID: "gate"})
	s.Require().Error(err)
	s.Equal(room.ReasonRefused, errors.GetReason(err))

	s.Contains(retain().Kept, "gate")
	s.Empty(m.PendingEvictions())
	s.clock.Advance(10 * time.Second)
	s.Equal([]string{"crypt", "gate"}, m.LiveNodeIDs())

	m.Release("gate")
	s.Equal([]string{"gate"}, retain().Scheduled)
	s.clock.Advance(5 * time.Second)
	s.Equal([]string{"crypt"}, m.LiveNodeIDs())
}

func (s *ManagerTestSuite) TestCanceledCallerLeavesSharedStagingRunning() {
	entered := make(chan struct{})
	release := make(chan struct{})
	var buildCtx context.Context
	builder := roommock.NewMockBuilder(s.ctrl)
	builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ *room.BuildInput) (*room.BuildOutput, error) {
			buildCtx = ctx
			close(entered)
			<-release
			return &room.BuildOutput{Handle: "geo"}, nil
		}).Times(1)
	m := s.newManager(func(c *room.Config) { c.Builder = builder })

	first := make(chan *room.MaterializeOutput, 1)
	go func() {
		out, err := m.Materialize(s.ctx, &room.MaterializeInput{NodeID: "crypt"})
		s.NoError(err)
		first <- out
	}()
	<-entered

	ctx, cancel := context.WithCancel(s.ctx)
	second := make(chan error, 1)
	go func() {
		_, err := m.Materialize(ctx, &room.MaterializeInput{NodeID: "crypt"})
		second <- err
	}()
	cancel()

	select {
	case err := <-second:
		s.True(errors.IsCanceled(err))
	case <-time.After(time.Second):
		s.Fail("canceled caller kept waiting on shared staging")
	}
	s.NoError(buildCtx.Err())

	close(release)
	out := <-first
	s.Require().NotNil(out)
	s.Equal([]string{"crypt"}, m.LiveNodeIDs())
}

func (s *ManagerTestSuite) TestStagingStopsWhenEveryCallerGivesUp() {
	entered := make(chan struct{})
	builder := roommock.NewMockBuilder(s.ctrl)
	builder.EXPECT().Build(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ *room.BuildInput) (*room.BuildOutput, error) {
			close(entered)
			<-ctx.Done()
			return nil, ctx.Err()
		}).Times(1)
	m := s.newManager(func(c *room.Config) { c.Builder = builder })

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() {
		_, err := m.Materialize(ctx, &room.MaterializeInput{NodeID: "crypt"})
		done <- err
	}()
	<-entered
	cancel()

	s.True(errors.IsCanceled(<-done))
	s.Empty(m.LiveNodeIDs())

	node, err := s.graph.Node("crypt")
	s.Require().NoError(err)
	s.Empty(node.InstanceID)
}

func (s *ManagerTestSuite) TestZeroDelayEvictsImmediately() {
	m := s.newManager(nil)
	s.materialize(m, "gate")
	s.materialize(m, "crypt")

	out, err := m.ApplyRetentionPolicy(s.ctx, &room.RetentionInput{
		History:       []string{"gate", "crypt"},
		CurrentNodeID: "crypt",
	})
	s.Require().NoError(err)
	s.Equal([]string{"gate"}, out.Evicted)
	s.Equal([]string{"crypt"}, m.LiveNodeIDs())
	s.Zero(s.clock.Pending())
}

func (s *ManagerTestSuite) TestCloseTearsDownEverything() {
	m := s.newManager(nil)
	s.materialize(m, "gate")
	s.materialize(m, "crypt")
	_, err := m.ApplyRetentionPolicy(s.ctx, &room.RetentionInput{
		History:       []string{"gate", "crypt"},
		CurrentNodeID: "crypt",
		UnloadDelay:   time.Minute,
	})
	s.Require().NoError(err)

	s.Require().NoError(m.Close(s.ctx))
	s.Empty(m.LiveNodeIDs())
	s.Empty(m.PendingEvictions())
	s.Zero(s.clock.Pending())
	s.Zero(s.builder.Live())

	_, err = m.Materialize(s.ctx, &room.MaterializeInput{NodeID: "gate"})
	s.True(errors.IsUnavailable(err))
}

func (s *ManagerTestSuite) TestConfigValidation() {
	testCases := []struct {
		name   string
		mutate func(*room.Config)
	}{
		{name: "missing graph", mutate: func(c *room.Config) { c.Graph = nil }},
		{name: "missing templates", mutate: func(c *room.Config) { c.Templates = nil }},
		{name: "missing builder", mutate: func(c *room.Config) { c.Builder = nil }},
		{name: "missing clock", mutate: func(c *room.Config) { c.Clock = nil }},
		{name: "zero spacing", mutate: func(c *room.Config) { c.RoomSpacing = 0 }},
		{name: "negative settle delay", mutate: func(c *room.Config) { c.SettleDelay = -time.Second }},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			cfg := s.config()
			tc.mutate(cfg)
			_, err := room.NewManager(cfg)
			s.True(errors.IsInvalidArgument(err))
		})
	}
}
