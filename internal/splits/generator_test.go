package splits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// climb is one observation per section, in map order, that crosses the
// position thresholds.
var climb = []Observation{
	{X: 0, Y: 5, Grabbing: true, HighestGrab: 6},
	{X: 1, Y: 32},
	{X: -1, Y: 56},
	{X: 9, Y: 84},
	{X: 19, Y: 110},
	{X: 30, Y: 136},
	{X: 30, Y: 153},
	{X: 46, Y: 205},
	{X: 46, Y: 241, InWater: true},
}

// grabClimb crosses the grab thresholds.
var grabClimb = []Observation{
	{X: 0, Y: 5, Grabbing: true, HighestGrab: 6},
	{Y: 30, Grabbing: true, HighestGrab: 34},
	{Y: 58, Grabbing: true, HighestGrab: 61},
	{Y: 84, InWater: true},
	{Y: 110, Grabbing: true, HighestGrab: 113},
	{Y: 136, Grabbing: true, HighestGrab: 138},
	{Y: 153, Grabbing: true, HighestGrab: 155},
	{Y: 206, Grabbing: true, HighestGrab: 208},
	{Y: 241, InWater: true},
}

var runOrder = []Command{
	StartTimer, SplitIntro, SplitJungle, SplitGears, SplitPool,
	SplitConstruction, SplitCave, SplitIce, SplitFinal,
}

func TestGenerator_MonotonicPositionRun(t *testing.T) {
	g := NewGenerator(DefaultThresholds(), Options{})
	require.Equal(t, Reset, g.Spawn())

	var got []Command
	phases := []Command{g.Phase()}
	for _, o := range climb {
		// Each observation is seen twice; only the first one transitions.
		for i := 0; i < 2; i++ {
			if e, ok := g.Observe(o); ok {
				assert.False(t, e.Skip)
				got = append(got, e.Command)
			}
		}
		phases = append(phases, g.Phase())
	}

	assert.Equal(t, runOrder, got)
	for i := 1; i < len(phases); i++ {
		assert.Equal(t, phases[i-1]+1, phases[i], "phase step %d", i)
	}
	assert.Equal(t, Reset, g.Phase())
}

func TestGenerator_MonotonicGrabRun(t *testing.T) {
	g := NewGenerator(DefaultThresholds(), Options{UseGrabSplits: true})
	g.Spawn()

	var got []Command
	for _, o := range grabClimb {
		if e, ok := g.Observe(o); ok {
			got = append(got, e.Command)
		}
	}

	assert.Equal(t, runOrder, got)
	assert.Equal(t, Reset, g.Phase())
}

func TestGenerator_NeverRegresses(t *testing.T) {
	g := NewGenerator(DefaultThresholds(), Options{})
	g.Spawn()
	for _, o := range climb[:6] {
		g.Observe(o)
	}
	require.Equal(t, SplitCave, g.Phase())

	// Falling back into earlier sections changes nothing.
	for _, o := range climb[:5] {
		_, ok := g.Observe(o)
		assert.False(t, ok)
	}
	assert.Equal(t, SplitCave, g.Phase())
}

func TestGenerator_SkipsLaterSections(t *testing.T) {
	g := NewGenerator(DefaultThresholds(), Options{})
	g.Spawn()
	g.Observe(climb[0])

	e, ok := g.Observe(climb[7])
	require.True(t, ok)
	assert.Equal(t, SplitIce, e.Command)
	assert.Equal(t, SplitFinal, g.Phase())

	_, ok = g.Observe(climb[3])
	assert.False(t, ok)
}

func TestGenerator_InGameTimeLeavesStartAndFinal(t *testing.T) {
	g := NewGenerator(DefaultThresholds(), Options{UseInGameTime: true})
	g.Spawn()

	var got []Command
	for _, o := range climb {
		if e, ok := g.Observe(o); ok {
			got = append(got, e.Command)
		}
	}

	assert.Equal(t, runOrder[1:len(runOrder)-1], got)
	assert.Equal(t, Reset, g.Phase())
}

func TestGenerator_SpawnAfterCompletedRun(t *testing.T) {
	g := NewGenerator(DefaultThresholds(), Options{})
	g.Spawn()
	for _, o := range climb {
		g.Observe(o)
	}
	require.Equal(t, Reset, g.Phase())

	assert.Equal(t, UpdateStatus, g.Spawn())
	assert.Equal(t, StartTimer, g.Phase())
	assert.Equal(t, Reset, g.Spawn())
}

func TestGenerator_SkipModeAfterMidLevelSpawn(t *testing.T) {
	g := NewGenerator(DefaultThresholds(), Options{UseGrabSplits: true})
	g.Spawn()

	// Spawned at a checkpoint: grab splits are ignored while skipping, so
	// positions decide.
	e, ok := g.Observe(Observation{X: 1, Y: 32, Grabbing: true, HighestGrab: 70})
	require.True(t, ok)
	assert.Equal(t, SplitIntro, e.Command)
	assert.True(t, e.Skip)

	e, ok = g.Observe(Observation{X: -1, Y: 56})
	require.True(t, ok)
	assert.Equal(t, SplitJungle, e.Command)
	assert.True(t, e.Skip)

	// Skip mode is used up; grab splits apply again.
	e, ok = g.Observe(Observation{Y: 84, InWater: true})
	require.True(t, ok)
	assert.Equal(t, SplitGears, e.Command)
	assert.False(t, e.Skip)
}

func TestGenerator_IntroNeedsPositiveXWhileSkipping(t *testing.T) {
	g := NewGenerator(DefaultThresholds(), Options{})
	g.Spawn()

	_, ok := g.Observe(Observation{X: -3, Y: 32})
	assert.False(t, ok)

	_, ok = g.Observe(Observation{X: 2, Y: 32})
	assert.True(t, ok)
}

func TestGenerator_LowPositionClearsSkipMode(t *testing.T) {
	g := NewGenerator(DefaultThresholds(), Options{})
	g.Spawn()

	e, ok := g.Observe(Observation{Y: 10, Grabbing: true, HighestGrab: 11})
	require.True(t, ok)
	assert.Equal(t, StartTimer, e.Command)
	assert.False(t, e.Skip)
}

func TestGenerator_FinalNeedsWaterAndFreeHands(t *testing.T) {
	g := NewGenerator(DefaultThresholds(), Options{})
	g.Spawn()
	g.Observe(climb[0])
	g.Observe(climb[7])

	_, ok := g.Observe(Observation{X: 60, Y: 241, InWater: true, Grabbing: true, HighestGrab: 241})
	assert.False(t, ok)
	_, ok = g.Observe(Observation{X: 60, Y: 241})
	assert.False(t, ok)

	e, ok := g.Observe(Observation{X: 60, Y: 241, InWater: true})
	require.True(t, ok)
	assert.Equal(t, SplitFinal, e.Command)
}

func TestCommand_StringAndParse(t *testing.T) {
	for c := StartTimer; c <= UpdateStatus; c++ {
		got, err := ParseCommand(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseCommand("warp")
	assert.Error(t, err)
	assert.Equal(t, "Command(42)", Command(42).String())
	assert.True(t, SplitIce.IsSplit())
	assert.False(t, SplitFinal.IsSplit())
	assert.False(t, StartTimer.IsSplit())
}
