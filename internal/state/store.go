package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"rumble-backup/pkg/models"
)

// StateFileName is the name of the progress document inside the config
// directory.
const StateFileName = "backup_state.json"

// Store persists the backup progress document as human-readable JSON, safe
// to hand-edit between runs.
type Store struct {
	path   string
	logger zerolog.Logger
}

// NewStore returns a store reading and writing the given file path.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		logger: zerolog.New(os.Stdout).With().Timestamp().Str("component", "state").Logger(),
	}
}

// Path returns the location of the state file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted state. An absent or unparsable file yields an
// empty default state; only a real read failure is an error.
func (s *Store) Load() (*models.BackupState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.NewBackupState(), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state models.BackupState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("State file unparsable, starting with empty state")
		return models.NewBackupState(), nil
	}

	if state.Channels == nil {
		state.Channels = make(map[string]*models.ChannelState)
	}
	return &state, nil
}

// Save durably writes the state. The rename is the commit point: a crash
// before it leaves the previous document intact, a crash after it leaves the
// new one.
func (s *Store) Save(state *models.BackupState) error {
	if err := WriteJSON(s.path, state); err != nil {
		return fmt.Errorf("failed to save state file: %w", err)
	}
	return nil
}

// WriteJSON atomically writes v as indented JSON to path.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	data = append(data, '\n')
	return WriteBytes(path, data)
}

// WriteBytes atomically writes data to path via a temp file in the same
// directory, synced before the rename.
func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".rb-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
