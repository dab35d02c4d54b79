package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rumble-backup/pkg/models"
)

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "backup_state.json"))

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if state == nil {
		t.Fatal("Expected default state, got nil")
	}
	if len(state.Channels) != 0 {
		t.Errorf("Expected empty channel map, got %d entries", len(state.Channels))
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup_state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	store := NewStore(path)
	state, err := store.Load()
	if err != nil {
		t.Fatalf("Expected corruption to be swallowed, got %v", err)
	}
	if len(state.Channels) != 0 {
		t.Errorf("Expected fresh state after corruption, got %d channels", len(state.Channels))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "backup_state.json")
	store := NewStore(path)

	state := models.NewBackupState()
	cs := state.Channel("newschannel")
	cs.Add("v1")
	cs.Add("v2")
	now := time.Now().UTC().Truncate(time.Second)
	cs.LastBackup = &now
	state.LastRun = &now

	if err := store.Save(state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	loadedCS, ok := loaded.Channels["newschannel"]
	if !ok {
		t.Fatal("Expected newschannel to be present after reload")
	}
	if !loadedCS.Has("v1") || !loadedCS.Has("v2") {
		t.Error("Expected recorded ids to survive a round trip")
	}
	if loadedCS.LastBackup == nil || !loadedCS.LastBackup.Equal(now) {
		t.Errorf("Expected last backup %v, got %v", now, loadedCS.LastBackup)
	}
	if loaded.LastRun == nil || !loaded.LastRun.Equal(now) {
		t.Errorf("Expected last run %v, got %v", now, loaded.LastRun)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "backup_state.json"))

	if err := store.Save(models.NewBackupState()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".rb-tmp-") {
			t.Errorf("Expected no leftover temp file, found %s", entry.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("Expected exactly the state file, got %d entries", len(entries))
	}
}

func TestSaveIsHumanReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup_state.json")
	store := NewStore(path)

	state := models.NewBackupState()
	state.Channel("ch").Add("v1")
	if err := store.Save(state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if !strings.Contains(string(data), "\n  ") {
		t.Error("Expected indented JSON output")
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("Expected trailing newline")
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Expected valid JSON on disk, got %v", err)
	}
	if _, ok := decoded["channels"]; !ok {
		t.Error("Expected top-level channels key")
	}
}

func TestWriteJSONOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	if err := WriteJSON(path, map[string]int{"a": 1}); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := WriteJSON(path, map[string]int{"b": 2}); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if strings.Contains(string(data), "\"a\"") {
		t.Error("Expected second write to replace the first document")
	}
	if !strings.Contains(string(data), "\"b\"") {
		t.Error("Expected second document content")
	}
}
