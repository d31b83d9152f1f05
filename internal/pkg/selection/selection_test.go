package selection_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/random"
	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/selection"
)

// fixedSource replays a scripted sequence of draws
type fixedSource struct {
	draws []float64
	calls int
}

func (f *fixedSource) Float64() float64 {
	v := f.draws[f.calls%len(f.draws)]
	f.calls++
	return v
}

type SelectionTestSuite struct {
	suite.Suite
	entries []selection.Entry[string]
}

func TestSelectionSuite(t *testing.T) {
	suite.Run(t, new(SelectionTestSuite))
}

func (s *SelectionTestSuite) SetupTest() {
	s.entries = []selection.Entry[string]{
		{Item: "combat", Weight: 6},
		{Item: "reward", Weight: 2},
		{Item: "shop", Weight: 1},
		{Item: "rest", Weight: 1},
	}
}

func (s *SelectionTestSuite) TestCumulativeBoundaries() {
	testCases := []struct {
		name     string
		draw     float64
		expected string
	}{
		{"first bucket", 0.0, "combat"},
		{"just below first boundary", 0.599, "combat"},
		{"second bucket", 0.6, "reward"},
		{"third bucket", 0.85, "shop"},
		{"last bucket", 0.95, "rest"},
		{"top of range", 0.9999999999, "rest"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			src := &fixedSource{draws: []float64{tc.draw}}
			item, ok := selection.Pick(src, s.entries, nil)
			s.True(ok)
			s.Equal(tc.expected, item)
			s.Equal(1, src.calls)
		})
	}
}

func (s *SelectionTestSuite) TestExclusionRenormalizes() {
	// with combat excluded the eligible total is 4: reward [0,2) shop [2,3) rest [3,4)
	src := &fixedSource{draws: []float64{0.5}}
	item, ok := selection.Pick(src, s.entries, func(v string) bool { return v == "combat" })
	s.True(ok)
	s.Equal("shop", item)
}

func (s *SelectionTestSuite) TestNoSelection() {
	s.Run("empty list", func() {
		_, ok := selection.Pick[string](&fixedSource{draws: []float64{0.5}}, nil, nil)
		s.False(ok)
	})

	s.Run("all excluded", func() {
		src := &fixedSource{draws: []float64{0.5}}
		_, ok := selection.Pick(src, s.entries, func(string) bool { return true })
		s.False(ok)
		s.Equal(0, src.calls)
	})

	s.Run("zero weights are ineligible", func() {
		entries := []selection.Entry[string]{{Item: "a", Weight: 0}, {Item: "b", Weight: -1}}
		s.Equal(-1, selection.PickIndex(&fixedSource{draws: []float64{0.1}}, entries, nil))
	})
}

func (s *SelectionTestSuite) TestDeterministicForSeed() {
	first, second := random.New(99), random.New(99)
	for i := 0; i < 50; i++ {
		a, _ := selection.Pick(first, s.entries, nil)
		b, _ := selection.Pick(second, s.entries, nil)
		s.Equal(a, b)
	}
}

func (s *SelectionTestSuite) TestDistributionMatchesWeights() {
	src := random.New(2024)
	counts := map[string]int{}
	const draws = 20000
	for i := 0; i < draws; i++ {
		item, ok := selection.Pick(src, s.entries, nil)
		s.Require().True(ok)
		counts[item]++
	}

	s.InDelta(0.6, float64(counts["combat"])/draws, 0.02)
	s.InDelta(0.2, float64(counts["reward"])/draws, 0.02)
	s.InDelta(0.1, float64(counts["shop"])/draws, 0.02)
	s.InDelta(0.1, float64(counts["rest"])/draws, 0.02)
}
