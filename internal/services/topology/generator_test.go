package topology_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/rpg-dungeon/internal/entities"
	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/roompool"
	"github.com/KirkDiggler/rpg-dungeon/internal/services/topology"
	"github.com/KirkDiggler/rpg-dungeon/internal/testutils"
)

type GeneratorTestSuite struct {
	suite.Suite
	ctx     context.Context
	catalog *roompool.Catalog
}

func TestGeneratorSuite(t *testing.T) {
	suite.Run(t, new(GeneratorTestSuite))
}

func (s *GeneratorTestSuite) SetupTest() {
	s.ctx = context.Background()

	catalog, err := roompool.NewCatalog([]*entities.FloorPool{
		testutils.CreateTestFloorPool("catacombs"),
		testutils.CreateTestFloorPool("deep_catacombs"),
	})
	s.Require().NoError(err)
	s.catalog = catalog
}

func (s *GeneratorTestSuite) newGenerator(mutate func(*topology.GeneratorConfig)) (*topology.Generator, *topology.Graph) {
	graph := topology.NewGraph()
	cfg := &topology.GeneratorConfig{
		Graph:                graph,
		Catalog:              s.catalog,
		MinRooms:             5,
		MaxRooms:             10,
		GridExtent:           4,
		MaxPlacementAttempts: 100,
	}
	if mutate != nil {
		mutate(cfg)
	}
	gen, err := topology.NewGenerator(cfg)
	s.Require().NoError(err)
	return gen, graph
}

func (s *GeneratorTestSuite) TestNewGeneratorValidation() {
	testCases := []struct {
		name   string
		mutate func(*topology.GeneratorConfig)
	}{
		{name: "missing graph", mutate: func(c *topology.GeneratorConfig) { c.Graph = nil }},
		{name: "missing catalog", mutate: func(c *topology.GeneratorConfig) { c.Catalog = nil }},
		{name: "inverted room bounds", mutate: func(c *topology.GeneratorConfig) { c.MinRooms, c.MaxRooms = 8, 3 }},
		{name: "zero extent", mutate: func(c *topology.GeneratorConfig) { c.GridExtent = 0 }},
		{name: "zero attempts", mutate: func(c *topology.GeneratorConfig) { c.MaxPlacementAttempts = 0 }},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			cfg := &topology.GeneratorConfig{
				Graph:                topology.NewGraph(),
				Catalog:              s.catalog,
				MinRooms:             5,
				MaxRooms:             10,
				GridExtent:           4,
				MaxPlacementAttempts: 100,
			}
			tc.mutate(cfg)
			_, err := topology.NewGenerator(cfg)
			s.Require().Error(err)
			s.True(errors.IsInvalidArgument(err))
		})
	}
}

func (s *GeneratorTestSuite) TestSameSeedSameFloor() {
	type shape struct {
		ID        string
		X, Y      int
		Archetype string
		Doors     int
	}
	layout := func(seed int64) []shape {
		gen, graph := s.newGenerator(nil)
		_, err := gen.GenerateFloor(s.ctx, &topology.GenerateFloorInput{Floor: 1, Seed: seed})
		s.Require().NoError(err)

		var out []shape
		for _, n := range graph.Nodes(1) {
			out = append(out, shape{n.ID, n.Position.X, n.Position.Y, n.Archetype.ID, graph.DoorCount(n.ID)})
		}
		return out
	}

	s.Equal(layout(42), layout(42))
	s.NotEqual(layout(42), layout(43))
}

func (s *GeneratorTestSuite) TestFloorShape() {
	for seed := int64(1); seed <= 20; seed++ {
		gen, graph := s.newGenerator(nil)
		out, err := gen.GenerateFloor(s.ctx, &topology.GenerateFloorInput{Floor: 1, Seed: seed})
		s.Require().NoError(err)

		nodes := graph.Nodes(1)
		s.GreaterOrEqual(len(nodes), 5, "seed %d", seed)
		s.LessOrEqual(len(nodes), 10, "seed %d", seed)
		s.Len(out.NodeIDs, len(nodes))

		s.Equal(nodes[0].ID, out.StartID)
		s.Equal(entities.Origin, nodes[0].Position)
		s.Equal(entities.RoomTypeEntry, nodes[0].Type())

		s.Require().NotEmpty(out.BossID, "seed %d", seed)
		s.Equal(nodes[len(nodes)-1].ID, out.BossID, "boss is grown last")

		reachable := graph.Distances(out.StartID)
		seen := map[entities.GridPosition]bool{}
		for _, n := range nodes {
			s.Contains(reachable, n.ID, "seed %d node %s unreachable", seed, n.ID)
			s.False(seen[n.Position], "seed %d duplicate cell", seed)
			seen[n.Position] = true

			doors := graph.DoorCount(n.ID)
			if n.Archetype.MaxDoorCount > 0 {
				s.LessOrEqual(doors, n.Archetype.MaxDoorCount, n.ID)
			}
			s.GreaterOrEqual(doors, 1, n.ID)

			if n.ID != out.StartID {
				s.NotEqual(entities.RoomTypeEntry, n.Type(), "entry only at the start")
			}
			if n.ID != out.BossID {
				s.NotEqual(entities.RoomTypeBoss, n.Type(), "boss only once")
			}
		}
	}
}

func (s *GeneratorTestSuite) TestDoorsOfUnclearedRoomsStartLocked() {
	gen, graph := s.newGenerator(nil)
	_, err := gen.GenerateFloor(s.ctx, &topology.GenerateFloorInput{Floor: 1, Seed: 7})
	s.Require().NoError(err)

	for _, n := range graph.Nodes(1) {
		for _, e := range graph.NeighborsOf(n.ID) {
			s.Equal(n.RequiresClearing(), e.Locked(), e.ID)
		}
	}
}

func (s *GeneratorTestSuite) TestForcedShopBeforeBoss() {
	for seed := int64(1); seed <= 20; seed++ {
		gen, graph := s.newGenerator(func(c *topology.GeneratorConfig) {
			c.ForceShopBeforeBoss = true
			c.ForceRestBeforeBoss = true
		})
		_, err := gen.GenerateFloor(s.ctx, &topology.GenerateFloorInput{Floor: 1, Seed: seed})
		s.Require().NoError(err)

		counts := map[entities.RoomType]int{}
		for _, n := range graph.Nodes(1) {
			counts[n.Type()]++
		}
		s.Equal(1, counts[entities.RoomTypeShop], "seed %d: exactly one shop under the cap", seed)
		s.GreaterOrEqual(counts[entities.RoomTypeRest], 1, "seed %d", seed)
	}
}

func (s *GeneratorTestSuite) TestUniqueArchetypesAcrossFloors() {
	gen, graph := s.newGenerator(func(c *topology.GeneratorConfig) {
		c.MinRooms, c.MaxRooms = 10, 10
	})

	vaults := 0
	for floor := 1; floor <= 3; floor++ {
		_, err := gen.GenerateFloor(s.ctx, &topology.GenerateFloorInput{Floor: floor, Seed: int64(floor)})
		s.Require().NoError(err)
		for _, n := range graph.Nodes(floor) {
			if n.Archetype.ID == testutils.ArchetypeVault {
				vaults++
			}
		}
	}

	s.LessOrEqual(vaults, 1)
	if vaults == 1 {
		s.Equal([]string{testutils.ArchetypeVault}, gen.UsedUniqueIDs())
	}
}

func (s *GeneratorTestSuite) TestRestoreUniqueIDsExcludesArchetype() {
	gen, graph := s.newGenerator(func(c *topology.GeneratorConfig) {
		c.MinRooms, c.MaxRooms = 10, 10
	})
	gen.RestoreUniqueIDs([]string{testutils.ArchetypeVault})

	for seed := int64(1); seed <= 5; seed++ {
		graph.Reset()
		_, err := gen.GenerateFloor(s.ctx, &topology.GenerateFloorInput{Floor: 1, Seed: seed})
		s.Require().NoError(err)
		for _, n := range graph.Nodes(1) {
			s.NotEqual(testutils.ArchetypeVault, n.Archetype.ID)
		}
	}
}

func (s *GeneratorTestSuite) TestFloorWithoutBoss() {
	pool := testutils.CreateTestFloorPool("open_caves")
	var entries []entities.PoolEntry
	for _, e := range pool.Entries {
		if e.Archetype.Type != entities.RoomTypeBoss {
			entries = append(entries, e)
		}
	}
	pool.Entries = entries
	catalog, err := roompool.NewCatalog([]*entities.FloorPool{pool})
	s.Require().NoError(err)

	gen, graph := s.newGenerator(func(c *topology.GeneratorConfig) { c.Catalog = catalog })
	out, err := gen.GenerateFloor(s.ctx, &topology.GenerateFloorInput{Floor: 1, Seed: 3})
	s.Require().NoError(err)
	s.Empty(out.BossID)
	s.Empty(graph.BossNodeID(1))
}

func (s *GeneratorTestSuite) TestGenerateFloorErrors() {
	gen, _ := s.newGenerator(nil)

	_, err := gen.GenerateFloor(s.ctx, nil)
	s.True(errors.IsInvalidArgument(err))

	_, err = gen.GenerateFloor(s.ctx, &topology.GenerateFloorInput{Floor: 0})
	s.True(errors.IsInvalidArgument(err))

	_, err = gen.GenerateFloor(s.ctx, &topology.GenerateFloorInput{Floor: 1, Seed: 1})
	s.Require().NoError(err)
	_, err = gen.GenerateFloor(s.ctx, &topology.GenerateFloorInput{Floor: 1, Seed: 1})
	s.True(errors.IsAlreadyExists(err))

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err = gen.GenerateFloor(ctx, &topology.GenerateFloorInput{Floor: 2, Seed: 1})
	s.True(errors.IsCanceled(err))
}
