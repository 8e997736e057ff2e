// Package store persists replays and lists them for playback.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/SmitUplenchwar2687/splitghost/internal/codec"
	"github.com/SmitUplenchwar2687/splitghost/internal/keyframe"
)

// ErrNotFound is returned when no replay has the requested ID.
var ErrNotFound = errors.New("store: replay not found")

// Entry describes a stored replay without its keyframes.
type Entry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Nodes     int       `json:"nodes"`
	Keyframes int       `json:"keyframes"`
	Duration  float32   `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
}

// Store holds replays keyed by a generated ID.
type Store interface {
	// Put stores rf under a new ID and returns its entry.
	Put(ctx context.Context, name string, rf keyframe.ReplayFile) (Entry, error)
	Get(ctx context.Context, id string) (keyframe.ReplayFile, Entry, error)
	// List returns all entries, oldest first.
	List(ctx context.Context) ([]Entry, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

func newEntry(name string, rf keyframe.ReplayFile, now time.Time) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Name:      name,
		Version:   rf.Version,
		Nodes:     len(rf.Paths),
		Keyframes: len(rf.Keyframes),
		Duration:  rf.Duration(),
		CreatedAt: now.UTC(),
	}
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

// Loaded is one replay returned by LoadAll.
type Loaded struct {
	Entry  Entry
	Replay keyframe.ReplayFile
}

// LoadAll reads every listed replay. A replay that fails to load does not
// stop the others; its error is returned alongside the successes.
func LoadAll(ctx context.Context, s Store) ([]Loaded, []error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, []error{fmt.Errorf("listing replays: %w", err)}
	}

	var (
		out  []Loaded
		errs []error
	)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rf, entry, err := s.Get(ctx, e.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("loading replay %s: %w", e.ID, err))
			continue
		}
		out = append(out, Loaded{Entry: entry, Replay: rf})
	}
	return out, errs
}

// zstdMagic opens every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func compress(raw []byte) ([]byte, error) {
	zw, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer zw.Close()
	return zw.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// DecodeBlob decodes a replay that may or may not be zstd compressed.
func DecodeBlob(blob []byte) (keyframe.ReplayFile, error) {
	if !bytes.HasPrefix(blob, zstdMagic) {
		return codec.Unmarshal(blob)
	}
	zr, err := zstd.NewReader(bytes.NewReader(blob))
	if err != nil {
		return keyframe.ReplayFile{}, err
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return keyframe.ReplayFile{}, fmt.Errorf("decompressing replay: %w", err)
	}
	return codec.Unmarshal(raw)
}

// EncodeBlob encodes rf, zstd compressing it when compressed is set.
func EncodeBlob(rf keyframe.ReplayFile, compressed bool) ([]byte, error) {
	raw, err := codec.Marshal(rf)
	if err != nil {
		return nil, err
	}
	if !compressed {
		return raw, nil
	}
	return compress(raw)
}

// ReadFile reads a replay file, compressed or not.
func ReadFile(path string) (keyframe.ReplayFile, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return keyframe.ReplayFile{}, err
	}
	return DecodeBlob(blob)
}
