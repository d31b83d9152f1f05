package clock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/rpg-dungeon/internal/pkg/clock"
)

type ManualClockTestSuite struct {
	suite.Suite
	start time.Time
	clk   *clock.Manual
}

func TestManualClockSuite(t *testing.T) {
	suite.Run(t, new(ManualClockTestSuite))
}

func (s *ManualClockTestSuite) SetupTest() {
	s.start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.clk = clock.NewManual(s.start)
}

func (s *ManualClockTestSuite) TestAfterFuncFiresInDeadlineOrder() {
	var fired []string
	s.clk.AfterFunc(2*time.Second, func() { fired = append(fired, "late") })
	s.clk.AfterFunc(time.Second, func() { fired = append(fired, "early") })

	s.clk.Advance(500 * time.Millisecond)
	s.Empty(fired)
	s.Equal(2, s.clk.Pending())

	s.clk.Advance(2 * time.Second)
	s.Equal([]string{"early", "late"}, fired)
	s.Equal(0, s.clk.Pending())
	s.Equal(s.start.Add(2500*time.Millisecond), s.clk.Now())
}

func (s *ManualClockTestSuite) TestStop() {
	fired := false
	timer := s.clk.AfterFunc(time.Second, func() { fired = true })

	s.True(timer.Stop())
	s.False(timer.Stop())
	s.clk.Advance(time.Minute)
	s.False(fired)
}

func (s *ManualClockTestSuite) TestZeroDelayFiresImmediately() {
	fired := false
	timer := s.clk.AfterFunc(0, func() { fired = true })
	s.True(fired)
	s.False(timer.Stop())
}

func (s *ManualClockTestSuite) TestSleep() {
	s.Run("zero duration returns immediately", func() {
		s.NoError(clock.Sleep(context.Background(), s.clk, 0))
	})

	s.Run("canceled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s.ErrorIs(clock.Sleep(ctx, s.clk, time.Hour), context.Canceled)
	})

	s.Run("wakes on advance", func() {
		done := make(chan error, 1)
		go func() { done <- clock.Sleep(context.Background(), s.clk, time.Second) }()

		s.Eventually(func() bool { return s.clk.Pending() == 1 }, time.Second, time.Millisecond)
		s.clk.Advance(time.Second)
		s.NoError(<-done)
	})
}
