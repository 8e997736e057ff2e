package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
	"github.com/SmitUplenchwar2687/splitghost/internal/keyframe"
)

const (
	// Extension is the replay file extension.
	Extension = ".dcg"
	// stampLayout prefixes replay file names.
	stampLayout = "2006-01-02_15-04-05"
)

// DirStore keeps one replay file per entry in a directory, named
// <yyyy-MM-dd_HH-mm-ss>_<id>.dcg. Any other *.dcg file in the directory
// is listed too, with its stem as ID and its modification time as
// creation time. Entry names are the file stems.
type DirStore struct {
	dir      string
	compress bool
	clock    clock.Clock
}

// NewDirStore creates dir if needed. With compress set, new files are
// written zstd compressed; reads accept both forms.
func NewDirStore(dir string, compress bool, c clock.Clock) (*DirStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	if c == nil {
		c = clock.NewRealClock()
	}
	return &DirStore{dir: dir, compress: compress, clock: c}, nil
}

// Dir returns the backing directory.
func (s *DirStore) Dir() string {
	return s.dir
}

func (s *DirStore) Put(ctx context.Context, name string, rf keyframe.ReplayFile) (Entry, error) {
	blob, err := EncodeBlob(rf, s.compress)
	if err != nil {
		return Entry{}, err
	}
	e := newEntry(name, rf, s.clock.Now().Truncate(time.Second))
	stem := e.CreatedAt.Format(stampLayout) + "_" + e.ID
	e.Name = stem

	path := filepath.Join(s.dir, stem+Extension)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return Entry{}, fmt.Errorf("writing replay: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return Entry{}, fmt.Errorf("writing replay: %w", err)
	}
	return e, nil
}

func (s *DirStore) Get(ctx context.Context, id string) (keyframe.ReplayFile, Entry, error) {
	files, err := s.files()
	if err != nil {
		return keyframe.ReplayFile{}, Entry{}, err
	}
	for _, f := range files {
		if f.entry.ID != id {
			continue
		}
		rf, err := s.read(f.path)
		if err != nil {
			return keyframe.ReplayFile{}, Entry{}, err
		}
		return rf, fill(f.entry, rf), nil
	}
	return keyframe.ReplayFile{}, Entry{}, ErrNotFound
}

// List decodes every file to report its metadata. Files that fail to
// decode are still listed, with only ID, name and time set.
func (s *DirStore) List(ctx context.Context) ([]Entry, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e := f.entry
		if rf, err := s.read(f.path); err == nil {
			e = fill(e, rf)
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func (s *DirStore) Delete(ctx context.Context, id string) error {
	files, err := s.files()
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.entry.ID == id {
			return os.Remove(f.path)
		}
	}
	return ErrNotFound
}

// Close is a no-op.
func (s *DirStore) Close() error {
	return nil
}

type replayFile struct {
	path  string
	entry Entry
}

func (s *DirStore) files() ([]replayFile, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading store directory: %w", err)
	}
	var out []replayFile
	for _, de := range dirEntries {
		if de.IsDir() || !strings.EqualFold(filepath.Ext(de.Name()), Extension) {
			continue
		}
		stem := strings.TrimSuffix(de.Name(), filepath.Ext(de.Name()))
		e := Entry{ID: stem, Name: stem}
		if created, id, ok := parseStem(stem); ok {
			e.ID = id
			e.CreatedAt = created
		} else if info, err := de.Info(); err == nil {
			e.CreatedAt = info.ModTime().UTC()
		}
		out = append(out, replayFile{path: filepath.Join(s.dir, de.Name()), entry: e})
	}
	return out, nil
}

func (s *DirStore) read(path string) (keyframe.ReplayFile, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return keyframe.ReplayFile{}, ErrNotFound
		}
		return keyframe.ReplayFile{}, err
	}
	return DecodeBlob(blob)
}

func parseStem(stem string) (time.Time, string, bool) {
	if len(stem) <= len(stampLayout)+1 || stem[len(stampLayout)] != '_' {
		return time.Time{}, "", false
	}
	created, err := time.Parse(stampLayout, stem[:len(stampLayout)])
	if err != nil {
		return time.Time{}, "", false
	}
	return created, stem[len(stampLayout)+1:], true
}

func fill(e Entry, rf keyframe.ReplayFile) Entry {
	e.Version = rf.Version
	e.Nodes = len(rf.Paths)
	e.Keyframes = len(rf.Keyframes)
	e.Duration = rf.Duration()
	return e
}
