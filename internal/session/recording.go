// Package session ties the replay core to a running game: it records the
// player, plays ghosts alongside and drives the split timer.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
	"github.com/SmitUplenchwar2687/splitghost/internal/keyframe"
	"github.com/SmitUplenchwar2687/splitghost/internal/recorder"
	"github.com/SmitUplenchwar2687/splitghost/internal/replay"
	"github.com/SmitUplenchwar2687/splitghost/internal/store"
	"github.com/SmitUplenchwar2687/splitghost/internal/world"
)

// ErrNotRecording is returned by operations that need an active recording.
var ErrNotRecording = errors.New("session: not recording")

const nameLayout = "2006-01-02_15-04-05"

// Config controls the recording cadence.
type Config struct {
	// Interval is the minimum run time between keyframes, in seconds.
	Interval float32
	// SyncEvery forces a sync keyframe whenever the number of recorded
	// keyframes is a multiple of it.
	SyncEvery int
	// Version is written into saved replays.
	Version string
}

// DefaultConfig returns a 20 Hz cadence with a sync frame every 200
// keyframes.
func DefaultConfig() Config {
	return Config{Interval: 0.05, SyncEvery: 200, Version: "1"}
}

// Ghost is a replay playing back on its own body.
type Ghost struct {
	Name   string
	Player *replay.Player
	// Matched counts recorded nodes that found a live node.
	Matched int
	Nodes   int
}

// Recording records one body while ghosts play alongside it. It is driven
// by the host's update loop and is not safe for concurrent use.
type Recording struct {
	cfg   Config
	store store.Store
	clock clock.Clock
	log   logrus.FieldLogger

	rec   *recorder.Recorder
	paths []string
	time  float32
	next  float32

	quickValid bool
	quickTime  float32

	ghosts []*Ghost
}

// Option configures a Recording.
type Option func(*Recording)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Recording) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock sets the clock used to name saved replays.
func WithClock(c clock.Clock) Option {
	return func(r *Recording) {
		if c != nil {
			r.clock = c
		}
	}
}

// NewRecording creates an idle session. st may be nil, in which case
// Stop never persists.
func NewRecording(cfg Config, st store.Store, opts ...Option) *Recording {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.SyncEvery <= 0 {
		cfg.SyncEvery = def.SyncEvery
	}
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	r := &Recording{cfg: cfg, store: st, clock: clock.NewRealClock(), log: discard}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithField("component", "session")
	return r
}

// Start begins a new recording of the tree under armature, anchored at
// root, and rewinds every ghost. A recording already running is dropped
// without saving.
func (r *Recording) Start(root world.Root, armature world.Node) error {
	tracked := world.Enumerate(armature)
	samplers, err := world.Samplers(tracked)
	if err != nil {
		return err
	}
	rec, err := recorder.New(root, samplers)
	if err != nil {
		return fmt.Errorf("starting recorder: %w", err)
	}

	r.rec = rec
	r.paths = world.Paths(tracked)
	r.time = 0
	r.next = r.cfg.Interval
	r.quickValid = false
	for _, g := range r.ghosts {
		g.Player.Reset()
	}
	r.log.WithField("nodes", len(samplers)).Info("started recording")
	return nil
}

// Recording reports whether a recorder is active.
func (r *Recording) Recording() bool {
	return r.rec != nil
}

// Time is the run time of the current recording.
func (r *Recording) Time() float32 {
	return r.time
}

// Keyframes returns the number of keyframes recorded so far.
func (r *Recording) Keyframes() int {
	if r.rec == nil {
		return 0
	}
	return r.rec.Len()
}

// Tick advances ghosts and run time by dt and records a keyframe when the
// cadence is due. Keyframes stay on a fixed grid of Interval; after a
// stall longer than one interval the grid restarts from the current time.
//
// If a tracked node can no longer be sampled, what was recorded so far is
// saved, recording stops and the sampling error is returned.
func (r *Recording) Tick(ctx context.Context, dt float32) error {
	for _, g := range r.ghosts {
		g.Player.Advance(dt)
	}

	r.time += dt
	if r.rec == nil || r.time < r.next {
		return nil
	}
	r.next += r.cfg.Interval
	if r.next <= r.time {
		r.next = r.time + r.cfg.Interval
	}

	force := r.rec.Len()%r.cfg.SyncEvery == 0
	err := r.rec.RecordKeyframe(r.time, force)
	if err == nil {
		return nil
	}

	var se *recorder.SampleError
	if !errors.As(err, &se) {
		return err
	}
	r.log.WithError(err).Warn("tracked node lost, saving partial recording")
	if _, _, saveErr := r.Stop(ctx, true); saveErr != nil {
		return errors.Join(err, saveErr)
	}
	return err
}

// QuickSave remembers the current run time as a rollback point. The host
// saves its own physics state alongside.
func (r *Recording) QuickSave() {
	r.quickValid = true
	r.quickTime = r.time
	r.log.WithField("time", r.time).Info("quick save")
}

// QuickLoad rolls the session back to the last QuickSave: recorded
// history after that point is discarded and every ghost seeks to it. It
// reports false when there is nothing to load.
func (r *Recording) QuickLoad() (bool, error) {
	if !r.quickValid {
		return false, nil
	}
	r.time = r.quickTime
	if r.rec != nil {
		if err := r.rec.PurgeAfter(r.time); err != nil {
			return false, err
		}
		r.next = r.rec.LastTime() + r.cfg.Interval
	}
	for _, g := range r.ghosts {
		g.Player.JumpTo(r.time)
	}
	r.log.WithField("time", r.time).Info("quick load")
	return true, nil
}

// Stop ends the recording. With save set the keyframes are packaged and,
// if a store is configured, persisted. The returned replay is valid
// whenever save is set and err is nil; the entry is nil without a store.
func (r *Recording) Stop(ctx context.Context, save bool) (keyframe.ReplayFile, *store.Entry, error) {
	rec := r.rec
	r.rec = nil
	r.quickValid = false
	if rec == nil {
		if save {
			return keyframe.ReplayFile{}, nil, ErrNotRecording
		}
		return keyframe.ReplayFile{}, nil, nil
	}
	if !save {
		return keyframe.ReplayFile{}, nil, nil
	}

	rf, err := rec.Finish(r.cfg.Version, r.paths)
	if err != nil {
		return keyframe.ReplayFile{}, nil, fmt.Errorf("finishing recording: %w", err)
	}
	if r.store == nil {
		return rf, nil, nil
	}

	name := r.clock.Now().Format(nameLayout)
	entry, err := r.store.Put(ctx, name, rf)
	if err != nil {
		return rf, nil, fmt.Errorf("saving recording: %w", err)
	}
	r.log.WithFields(logrus.Fields{
		"id":        entry.ID,
		"keyframes": entry.Keyframes,
		"duration":  entry.Duration,
	}).Info("saved recording")
	return rf, &entry, nil
}

// AddGhost plays rf on the body under armature. Recorded paths are
// matched against the live hierarchy; recorded nodes with no live
// counterpart are left alone. A ghost added mid-run starts at the current
// run time.
func (r *Recording) AddGhost(name string, rf keyframe.ReplayFile, root world.Root, armature world.Node) (*Ghost, error) {
	live := world.Enumerate(armature)
	mapping := replay.MatchPaths(rf.Paths, world.Paths(live))
	targets := replay.Retarget(world.Targets(live), mapping)

	p, err := replay.New(root, targets, rf.Keyframes)
	if err != nil {
		return nil, fmt.Errorf("ghost %s: %w", name, err)
	}
	if r.time > 0 {
		p.JumpTo(r.time)
	}

	g := &Ghost{Name: name, Player: p, Nodes: len(rf.Paths)}
	for _, j := range mapping {
		if j >= 0 {
			g.Matched++
		}
	}
	if g.Matched < g.Nodes {
		r.log.WithFields(logrus.Fields{
			"ghost":     name,
			"matched":   g.Matched,
			"nodes":     g.Nodes,
			"live_node": len(live),
		}).Warn("ghost hierarchy differs from recording")
	}
	r.ghosts = append(r.ghosts, g)
	return g, nil
}

// GhostBody creates the body a stored replay plays on.
type GhostBody func(e store.Entry) (world.Root, world.Node, error)

// LoadGhosts adds a ghost for every replay in the store. A replay that
// fails to load or play is logged and skipped; the others still load.
func (r *Recording) LoadGhosts(ctx context.Context, body GhostBody) (int, []error) {
	if r.store == nil {
		return 0, nil
	}
	loaded, errs := store.LoadAll(ctx, r.store)
	for _, err := range errs {
		r.log.WithError(err).Warn("skipping replay")
	}

	n := 0
	for _, l := range loaded {
		root, armature, err := body(l.Entry)
		if err == nil {
			_, err = r.AddGhost(l.Entry.Name, l.Replay, root, armature)
		}
		if err != nil {
			r.log.WithError(err).WithField("id", l.Entry.ID).Warn("skipping replay")
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errs
}

// Ghosts returns the active ghosts.
func (r *Recording) Ghosts() []*Ghost {
	return append([]*Ghost(nil), r.ghosts...)
}

// ClearGhosts removes every ghost.
func (r *Recording) ClearGhosts() {
	r.ghosts = nil
}
