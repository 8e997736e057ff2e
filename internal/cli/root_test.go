package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SmitUplenchwar2687/splitghost/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	want := []string{"inspect", "generate", "play", "simulate", "timer-server", "timer", "store"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestGenerateAndInspect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "climb.dcg")

	out, err := execute(t, "generate", "run", "--output", path, "--seed", "1")
	if err != nil {
		t.Fatalf("generate run error = %v", err)
	}
	if !strings.Contains(out, "Generated climb replay to "+path) {
		t.Errorf("generate output = %q", out)
	}

	out, err = execute(t, "inspect", path, "--json")
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	var infos []replayInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("decoding inspect output: %v\n%s", err, out)
	}
	if len(infos) != 1 {
		t.Fatalf("len(infos) = %d, want 1", len(infos))
	}
	info := infos[0]
	if info.Error != "" {
		t.Fatalf("inspect error field = %q", info.Error)
	}
	if info.Nodes != 10 {
		t.Errorf("Nodes = %d, want 10", info.Nodes)
	}
	if info.Keyframes == 0 || info.SyncFrames == 0 {
		t.Errorf("Keyframes = %d, SyncFrames = %d, want both positive", info.Keyframes, info.SyncFrames)
	}
	if info.Duration <= 0 {
		t.Errorf("Duration = %v, want positive", info.Duration)
	}
}

func TestInspect_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.dcg")
	if err := os.WriteFile(path, []byte("not a replay"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "inspect", path)
	if err == nil {
		t.Fatal("expected error for an undecodable file")
	}
	if !strings.Contains(out, "Error:") {
		t.Errorf("inspect output = %q, want an Error line", out)
	}
}

func TestStoreCommands(t *testing.T) {
	dir := t.TempDir()
	storeDir := filepath.Join(dir, "Replays")
	path := filepath.Join(dir, "fall.dcg")

	if _, err := execute(t, "generate", "run", "--pattern", "fall", "--seed", "2", "--output", path); err != nil {
		t.Fatalf("generate run error = %v", err)
	}

	out, err := execute(t, "store", "push", path, "--store", "dir", "--store-dir", storeDir)
	if err != nil {
		t.Fatalf("store push error = %v", err)
	}
	_, id, ok := strings.Cut(strings.TrimSpace(out), " -> ")
	if !ok || id == "" {
		t.Fatalf("store push output = %q, want %q", out, "FILE -> ID")
	}

	out, err = execute(t, "store", "list", "--store", "dir", "--store-dir", storeDir)
	if err != nil {
		t.Fatalf("store list error = %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "1 replay(s)") {
		t.Errorf("store list output = %q, want %s listed", out, id)
	}

	pulled := filepath.Join(dir, "pulled.dcg")
	if _, err := execute(t, "store", "pull", id, "--output", pulled, "--store", "dir", "--store-dir", storeDir); err != nil {
		t.Fatalf("store pull error = %v", err)
	}
	if _, err := os.Stat(pulled); err != nil {
		t.Errorf("pulled file: %v", err)
	}

	if _, err := execute(t, "store", "rm", id, "--store", "dir", "--store-dir", storeDir); err != nil {
		t.Fatalf("store rm error = %v", err)
	}
	out, err = execute(t, "store", "list", "--store", "dir", "--store-dir", storeDir)
	if err != nil {
		t.Fatalf("store list error = %v", err)
	}
	if !strings.Contains(out, "No replays stored.") {
		t.Errorf("store list after rm = %q", out)
	}
}

func TestGenerateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "splitghost.json")

	if _, err := execute(t, "generate", "config", "--output", path); err != nil {
		t.Fatalf("generate config error = %v", err)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("generated config invalid: %v", err)
	}
}

func TestTimerCmd_UnknownCommand(t *testing.T) {
	if _, err := execute(t, "timer", "moonwalk"); err == nil {
		t.Fatal("expected error for an unknown timer command")
	}
}
