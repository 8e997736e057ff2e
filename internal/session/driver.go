package session

import (
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
	"github.com/SmitUplenchwar2687/splitghost/internal/splits"
)

// defaultPublishEvery is how often the run time is handed to the timer.
const defaultPublishEvery = 10 * time.Second

// Timer is the part of the timer-sync client the driver needs.
type Timer interface {
	Command(cmd splits.Command, t float32) bool
	SetSyncTime(t float32)
}

// SplitDriver feeds climber observations through a split generator and
// forwards the resulting commands to the timer. Run time is measured on a
// stopwatch that the game's own start and pause events control.
//
// Like the generator it runs on the host's update loop.
type SplitDriver struct {
	gen   *splits.Generator
	timer Timer
	clock clock.Clock
	run   *clock.Stopwatch
	log   logrus.FieldLogger

	publishEvery time.Duration
	published    time.Time
}

// NewSplitDriver creates a driver. A nil timer makes it track phases
// without sending anything.
func NewSplitDriver(gen *splits.Generator, timer Timer, clk clock.Clock, log logrus.FieldLogger) *SplitDriver {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &SplitDriver{
		gen:          gen,
		timer:        timer,
		clock:        clk,
		run:          clock.NewStopwatch(clk),
		log:          log.WithField("component", "splits"),
		publishEvery: defaultPublishEvery,
		published:    clk.Now(),
	}
}

// SetPublishInterval changes how often Update publishes the run time.
func (d *SplitDriver) SetPublishInterval(every time.Duration) {
	if every > 0 {
		d.publishEvery = every
	}
}

// Generator returns the underlying generator.
func (d *SplitDriver) Generator() *splits.Generator {
	return d.gen
}

// RunTime is the elapsed run time in seconds.
func (d *SplitDriver) RunTime() float32 {
	return float32(d.run.Elapsed().Seconds())
}

func (d *SplitDriver) send(cmd splits.Command, t float32) {
	if d.timer == nil {
		return
	}
	if !d.timer.Command(cmd, t) {
		d.log.WithField("command", cmd).Warn("timer queue full, command dropped")
	}
}

// Spawn handles a freshly spawned climber: the timer is reset, or only
// queried if the previous run was completed.
func (d *SplitDriver) Spawn() {
	cmd := d.gen.Spawn()
	d.log.WithField("command", cmd).Debug("climber spawned")
	d.send(cmd, 0)
}

// Observe evaluates one physics tick. Commands flagged as skipped right
// after a mid-level spawn are not forwarded.
func (d *SplitDriver) Observe(o splits.Observation) {
	e, ok := d.gen.Observe(o)
	if !ok {
		return
	}
	if e.Skip {
		d.log.WithField("command", e.Command).Debug("skipping split after spawn")
		return
	}
	if e.Command == splits.StartTimer {
		d.run.Restart()
	}
	d.send(e.Command, d.RunTime())
}

// StartTimer handles the game's own run start. Only used with in-game
// time.
func (d *SplitDriver) StartTimer() {
	d.run.Restart()
	if !d.gen.Options().UseInGameTime {
		return
	}
	d.send(splits.StartTimer, d.RunTime())
}

// Pause handles the pause menu opening or closing.
func (d *SplitDriver) Pause(paused bool) {
	if paused {
		d.run.Stop()
	} else if d.run.Elapsed() > 0 {
		d.run.Start()
	}
	if !d.gen.Options().UseInGameTime {
		return
	}
	cmd := splits.Unpause
	if paused {
		cmd = splits.Pause
	}
	d.send(cmd, d.RunTime())
}

// GameWon handles the game's completion event with its final time.
func (d *SplitDriver) GameWon(completed float32) {
	d.run.Stop()
	if !d.gen.Options().UseInGameTime {
		return
	}
	d.send(splits.SplitFinal, completed)
}

// Update publishes the run time, rounded to milliseconds, once per
// publish interval. Nothing is published once the run is complete.
func (d *SplitDriver) Update() {
	if d.clock.Since(d.published) < d.publishEvery {
		return
	}
	d.published = d.clock.Now()
	if d.gen.Phase() == splits.Reset || d.timer == nil {
		return
	}
	t := float32(math.Round(d.run.Elapsed().Seconds()*1000) / 1000)
	d.timer.SetSyncTime(t)
}
